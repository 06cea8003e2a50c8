package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	home := t.TempDir()
	t.Setenv(envHome, home)
	t.Setenv(envAPIURL, "https://inventory.example.com/")
	t.Setenv(envAPIToken, "secret")
	t.Setenv(envTimeout, "5s")
	t.Setenv(envRetries, "2")
	t.Setenv(envLogFormat, "json")
	t.Setenv(envLogFile, filepath.Join(home, "invadmin.log"))

	cfg, err := LoadConfig(filepath.Join(home, "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseDir != home {
		t.Errorf("expected base dir %s, got %s", home, cfg.BaseDir)
	}
	if cfg.APIURL != "https://inventory.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.APIURL)
	}
	if cfg.APIToken != "secret" || cfg.Timeout != 5*time.Second || cfg.Retries != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.LogFormat != "json" || cfg.LogFile != filepath.Join(home, "invadmin.log") {
		t.Errorf("unexpected log settings %q %q", cfg.LogFormat, cfg.LogFile)
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envHome, dir)
	envFile := filepath.Join(dir, ".env")
	content := "INVADMIN_API_URL=http://backend:9000\nINVADMIN_LOG_LEVEL=debug\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set
	t.Setenv(envAPIURL, "")
	os.Unsetenv(envAPIURL)
	t.Setenv(envLogLevel, "")
	os.Unsetenv(envLogLevel)

	cfg, err := LoadConfig(envFile)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.APIURL != "http://backend:9000" {
		t.Errorf("expected API URL from env file, got %s", cfg.APIURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level from env file, got %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty base dir", func(c *Config) { c.BaseDir = "" }, true},
		{"relative url", func(c *Config) { c.APIURL = "localhost:8080" }, true},
		{"ftp url", func(c *Config) { c.APIURL = "ftp://host" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative retries", func(c *Config) { c.Retries = -1 }, true},
		{"json logs", func(c *Config) { c.LogFormat = "json" }, false},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseDir = t.TempDir()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDir = filepath.Join(t.TempDir(), "home")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() error = %v", err)
	}
	if _, err := os.Stat(cfg.DraftsDir()); err != nil {
		t.Errorf("expected drafts dir to exist: %v", err)
	}
}
