package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Fetch.Timeout != 20*time.Second {
		t.Errorf("expected 20s fetch timeout, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Batch.MaxURLs != 10 {
		t.Errorf("expected batch cap 10, got %d", cfg.Batch.MaxURLs)
	}
	if cfg.Screenshot.Enabled {
		t.Error("screenshots should be disabled by default")
	}
	if len(cfg.Scoring.Brands) != 0 {
		t.Errorf("expected no brand override, got %v", cfg.Scoring.Brands)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RISKSCAN_SERVER_PORT", "9090")
	t.Setenv("RISKSCAN_FETCH_TIMEOUT", "7s")
	t.Setenv("RISKSCAN_BATCH_PARALLELISM", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Fetch.Timeout != 7*time.Second {
		t.Errorf("expected 7s, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Batch.Parallelism != 2 {
		t.Errorf("expected parallelism 2, got %d", cfg.Batch.Parallelism)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
server:
  port: 7000
database:
  path: /tmp/scans.db
scoring:
  brands: [acme, globex]
  suspicious_tlds: [".zip"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Port)
	}
	if cfg.Database.Path != "/tmp/scans.db" {
		t.Errorf("unexpected db path %q", cfg.Database.Path)
	}
	if len(cfg.Scoring.Brands) != 2 || cfg.Scoring.Brands[0] != "acme" {
		t.Errorf("unexpected brands %v", cfg.Scoring.Brands)
	}
	if len(cfg.Scoring.SuspiciousTLDs) != 1 || cfg.Scoring.SuspiciousTLDs[0] != ".zip" {
		t.Errorf("unexpected tlds %v", cfg.Scoring.SuspiciousTLDs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Port:  8080,
		Fetch: FetchConfig{Timeout: time.Second},
		Batch: BatchConfig{MaxURLs: 10},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Batch.Parallelism != 1 {
		t.Errorf("expected parallelism floor of 1, got %d", cfg.Batch.Parallelism)
	}

	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
