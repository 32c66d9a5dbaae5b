package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("default port: %q", cfg.Port)
	}
	if cfg.WebhookMaxAttempts != 10 {
		t.Fatalf("default webhook attempts: %d", cfg.WebhookMaxAttempts)
	}
	if !cfg.DBMigrate {
		t.Fatalf("migrations should default on")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("port: \"9090\"\nauthMode: hmac\nrateRps: 50\nwebhookMaxAttempts: 5\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.AuthMode != "hmac" || cfg.RateRPS != 50 || cfg.WebhookMaxAttempts != 5 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("RATE_RPS", "25")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("env should override file, got %q", cfg.Port)
	}
	if cfg.RateRPS != 25 {
		t.Fatalf("env rate rps not applied: %v", cfg.RateRPS)
	}
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}
