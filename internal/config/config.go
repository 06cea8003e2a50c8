// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envHome      = "INVADMIN_HOME"
	envAPIURL    = "INVADMIN_API_URL"
	envAPIToken  = "INVADMIN_API_TOKEN"
	envTimeout   = "INVADMIN_TIMEOUT"
	envRetries   = "INVADMIN_RETRIES"
	envLogLevel  = "INVADMIN_LOG_LEVEL"
	envManifests = "INVADMIN_MANIFESTS"
	envLogFile   = "INVADMIN_LOG_FILE"
	envLogFormat = "INVADMIN_LOG_FORMAT"

	defaultAPIURL  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

// Config holds global configuration settings
type Config struct {
	// BaseDir is the root directory for local drafts
	BaseDir string

	// APIURL is the base URL of the REST backend; resources live under /api
	APIURL string

	// APIToken is sent as a bearer token when set
	APIToken string

	// Timeout bounds every request to the backend
	Timeout time.Duration

	// Retries is the number of transport-level retries for failed GET, PUT and DELETE
	// requests; creates and patches are never retried
	Retries int

	// LogLevel is the minimum log level name (debug, info, warn, error)
	LogLevel string

	// ManifestDir optionally points at extra or overriding entity manifests
	ManifestDir string

	// LogFile additionally receives every log line when set
	LogFile string

	// LogFormat is "console" or "json"
	LogFormat string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseDir:   getDefaultBaseDir(),
		APIURL:    defaultAPIURL,
		Timeout:   defaultTimeout,
		LogLevel:  "warn",
		LogFormat: "console",
	}
}

// getDefaultBaseDir returns the default base directory path
func getDefaultBaseDir() string {
	// Check for environment variable first
	if envDir := os.Getenv(envHome); envDir != "" {
		return envDir
	}

	// Fallback to default location in user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get the home directory, use current directory
		return ".invadmin"
	}
	return filepath.Join(homeDir, ".invadmin")
}

// LoadConfig loads configuration from the environment, optionally seeded from a .env file,
// and validates it. A missing envFile is not an error.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// missing .env files are fine when configuration comes from the environment
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	// Override with environment variables if present
	if envDir := os.Getenv(envHome); envDir != "" {
		cfg.BaseDir = envDir
	}
	cfg.APIURL = getenvWithDefault(envAPIURL, cfg.APIURL)
	cfg.APIToken = os.Getenv(envAPIToken)
	cfg.LogLevel = getenvWithDefault(envLogLevel, cfg.LogLevel)
	cfg.ManifestDir = os.Getenv(envManifests)
	cfg.LogFile = os.Getenv(envLogFile)
	cfg.LogFormat = getenvWithDefault(envLogFormat, cfg.LogFormat)

	if raw := os.Getenv(envTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envTimeout, err)
		}
		cfg.Timeout = d
	}
	if raw := os.Getenv(envRetries); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envRetries, err)
		}
		cfg.Retries = n
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	// Convert to absolute path
	absPath, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	c.BaseDir = absPath

	if c.APIURL == "" {
		return fmt.Errorf("API URL cannot be empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API URL must be an absolute http(s) URL: %s", c.APIURL)
	}
	c.APIURL = strings.TrimSuffix(c.APIURL, "/")

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}

	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %s", c.LogFormat)
	}

	return nil
}

// DraftsDir returns the directory holding local drafts
func (c *Config) DraftsDir() string {
	return filepath.Join(c.BaseDir, "drafts")
}

// EnsureDirectories creates necessary directories if they don't exist
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.BaseDir,
		c.DraftsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
