// Package config provides configuration management for the survey reporting tools.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Taxonomy  TaxonomyConfig
	Storage   StorageConfig
	Report    ReportConfig
	Validator ValidatorConfig
	Debug     bool
	AppEnv    string
}

// TaxonomyConfig locates the regulator taxonomy files and the hand-maintained tables.
type TaxonomyConfig struct {
	Dir           string
	Version       string
	OverridesFile string
	SectionsFile  string
	VisibilityDir string
}

// StorageConfig represents database configuration.
type StorageConfig struct {
	DBPath string
}

// ReportConfig represents output document configuration.
type ReportConfig struct {
	OutputDir string
	Prefix    string
}

// ValidatorConfig represents the external validation service configuration.
type ValidatorConfig struct {
	URL            string
	Path           string
	Mode           string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retries        int
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	connectTimeout, err := parseSecondsEnv("AMSF_VALIDATOR_CONNECT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	readTimeout, err := parseSecondsEnv("AMSF_VALIDATOR_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	retries, err := parseIntEnv("AMSF_VALIDATOR_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("invalid AMSF_VALIDATOR_RETRIES: must not be negative")
	}

	config := &Config{
		Taxonomy: TaxonomyConfig{
			Dir:           getEnvOrDefault("AMSF_TAXONOMY_DIR", "./taxonomy"),
			Version:       getEnvOrDefault("AMSF_TAXONOMY_VERSION", "Real_Estate_AML_CFT_survey_2025"),
			OverridesFile: os.Getenv("AMSF_TAXONOMY_OVERRIDES"),
			SectionsFile:  os.Getenv("AMSF_SECTIONS_FILE"),
			VisibilityDir: os.Getenv("AMSF_VISIBILITY_DIR"),
		},
		Storage: StorageConfig{
			DBPath: getEnvOrDefault("AMSF_DB_PATH", "./data/amsf.db"),
		},
		Report: ReportConfig{
			OutputDir: getEnvOrDefault("AMSF_OUTPUT_DIR", "./out"),
			Prefix:    getEnvOrDefault("AMSF_REPORT_PREFIX", "amsf_survey"),
		},
		Validator: ValidatorConfig{
			URL:            os.Getenv("AMSF_VALIDATOR_URL"),
			Path:           getEnvOrDefault("AMSF_VALIDATOR_PATH", "/api/validate"),
			Mode:           strings.ToLower(getEnvOrDefault("AMSF_VALIDATOR_MODE", "json")),
			ConnectTimeout: connectTimeout,
			ReadTimeout:    readTimeout,
			Retries:        retries,
		},
		Debug:  os.Getenv("DEBUG") == "true",
		AppEnv: getEnvOrDefault("APP_ENV", "development"),
	}

	return config, nil
}

// IsProduction reports whether the process runs in production mode.
// Taxonomy load failures are fatal only in this mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "taxonomy":
			switch path[1] {
			case "dir":
				value = c.Taxonomy.Dir
			case "version":
				value = c.Taxonomy.Version
			case "sectionsFile":
				value = c.Taxonomy.SectionsFile
			}
		case "storage":
			if path[1] == "dbPath" {
				value = c.Storage.DBPath
			}
		case "report":
			switch path[1] {
			case "outputDir":
				value = c.Report.OutputDir
			case "prefix":
				value = c.Report.Prefix
			}
		case "validator":
			switch path[1] {
			case "url":
				value = c.Validator.URL
			case "mode":
				if c.Validator.Mode == "json" || c.Validator.Mode == "raw" {
					value = c.Validator.Mode
				}
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

// parseSecondsEnv parses a number of seconds (fractions allowed) from an environment variable.
func parseSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid duration in seconds for %s: %s", key, value)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
