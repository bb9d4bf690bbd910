// Package pathutil provides centralized path management for taxonomy files, the database
// and generated instance documents.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// TaxonomyPrefix is the file-name prefix the regulator uses for every taxonomy artifact.
const TaxonomyPrefix = "strix_"

// PathResolver manages paths for taxonomy files, database, and output documents.
type PathResolver struct {
	taxonomyDir     string
	taxonomyVersion string
	databasePath    string
	outputDir       string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// TaxonomyDir holds the schema, label and presentation files
	TaxonomyDir string
	// TaxonomyVersion is the version token embedded in taxonomy file names
	// (e.g. Real_Estate_AML_CFT_survey_2025)
	TaxonomyVersion string
	// DatabasePath is the path to the SQLite database file
	DatabasePath string
	// OutputDir is the root directory for generated instance documents
	OutputDir string
}

// TaxonomyFiles lists the three taxonomy artifacts for one version.
type TaxonomyFiles struct {
	Schema       string
	Labels       string
	Presentation string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {OutputDir}/.data/amsf.db
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.OutputDir, ".data", "amsf.db")
	}

	return &PathResolver{
		taxonomyDir:     config.TaxonomyDir,
		taxonomyVersion: config.TaxonomyVersion,
		databasePath:    dbPath,
		outputDir:       config.OutputDir,
	}
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetOutputDir returns the output root directory.
func (p *PathResolver) GetOutputDir() string {
	return p.outputDir
}

// GetTaxonomyFiles returns the schema, label and presentation file paths.
// Example: taxonomy/strix_Real_Estate_AML_CFT_survey_2025.xsd
func (p *PathResolver) GetTaxonomyFiles() TaxonomyFiles {
	base := filepath.Join(p.taxonomyDir, TaxonomyPrefix+p.taxonomyVersion)
	return TaxonomyFiles{
		Schema:       base + ".xsd",
		Labels:       base + "_lab.xml",
		Presentation: base + "_pre.xml",
	}
}

// GetYearDir returns the output directory for a reporting year.
func (p *PathResolver) GetYearDir(year int) string {
	return filepath.Join(p.outputDir, strconv.Itoa(year))
}

// GetDocumentPath returns the file path for a generated instance document.
// Example: out/2025/amsf_survey_2025_MC12345.xml
func (p *PathResolver) GetDocumentPath(fileName string, year int) (string, error) {
	if year < 1000 || year > 9999 {
		return "", fmt.Errorf("invalid year: %d. Expected YYYY", year)
	}
	if fileName == "" || filepath.Base(fileName) != fileName {
		return "", fmt.Errorf("invalid document file name: %q", fileName)
	}
	return filepath.Join(p.GetYearDir(year), fileName), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	return p.EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// IsDir checks if a path is a directory.
func (p *PathResolver) IsDir(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}
