// Package archive stores generated instance documents on the file system, one
// directory per reporting year.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/pathutil"
)

// DocumentExt is the extension of archived instance documents.
const DocumentExt = ".xml"

// Repository defines the interface for instance document storage.
type Repository interface {
	// WriteDocument stores a document, replacing any previous version
	WriteDocument(year int, fileName, content string) (*StoredDocument, error)

	// ReadDocument reads a stored document
	ReadDocument(year int, fileName string) (string, error)

	// DocumentExists checks if a document is stored
	DocumentExists(year int, fileName string) bool

	// ListDocuments lists the document file names of a year
	ListDocuments(year int) ([]string, error)

	// ListYears lists the years that have a directory
	ListYears() ([]int, error)
}

// StoredDocument describes a written document.
type StoredDocument struct {
	Path   string
	SHA256 string
	Size   int
}

// FileSystemRepository is a file system implementation of Repository.
type FileSystemRepository struct {
	pathResolver *pathutil.PathResolver
}

// NewFileSystemRepository creates a new FileSystemRepository.
func NewFileSystemRepository(pathResolver *pathutil.PathResolver) *FileSystemRepository {
	return &FileSystemRepository{
		pathResolver: pathResolver,
	}
}

// WriteDocument writes a document through a temporary file so readers never see a
// partial document.
func (r *FileSystemRepository) WriteDocument(year int, fileName, content string) (*StoredDocument, error) {
	filePath, err := r.pathResolver.GetDocumentPath(fileName, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get document path: %w", err)
	}

	if err := r.pathResolver.EnsureParentDir(filePath); err != nil {
		return nil, fmt.Errorf("failed to ensure parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+fileName+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return nil, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return nil, fmt.Errorf("failed to move document into place: %w", err)
	}

	sum := sha256.Sum256([]byte(content))
	return &StoredDocument{
		Path:   filePath,
		SHA256: hex.EncodeToString(sum[:]),
		Size:   len(content),
	}, nil
}

// ReadDocument reads a stored document.
// Returns empty string if file doesn't exist.
func (r *FileSystemRepository) ReadDocument(year int, fileName string) (string, error) {
	filePath, err := r.pathResolver.GetDocumentPath(fileName, year)
	if err != nil {
		return "", fmt.Errorf("failed to get document path: %w", err)
	}

	if !r.pathResolver.FileExists(filePath) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return string(data), nil
}

// DocumentExists checks if a document is stored.
func (r *FileSystemRepository) DocumentExists(year int, fileName string) bool {
	filePath, err := r.pathResolver.GetDocumentPath(fileName, year)
	if err != nil {
		return false
	}

	return r.pathResolver.FileExists(filePath)
}

// ListDocuments lists the documents of a year, sorted by name.
func (r *FileSystemRepository) ListDocuments(year int) ([]string, error) {
	yearDir := r.pathResolver.GetYearDir(year)
	if !r.pathResolver.IsDir(yearDir) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(yearDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read year directory: %w", err)
	}

	documents := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != DocumentExt {
			continue
		}
		documents = append(documents, name)
	}
	sort.Strings(documents)

	return documents, nil
}

// ListYears lists the year directories under the output root in ascending order.
func (r *FileSystemRepository) ListYears() ([]int, error) {
	root := r.pathResolver.GetOutputDir()
	if !r.pathResolver.IsDir(root) {
		return []int{}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	years := []int{}
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 4 {
			continue
		}
		year, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		years = append(years, year)
	}
	sort.Ints(years)

	return years, nil
}
