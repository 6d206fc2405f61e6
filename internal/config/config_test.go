package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archivist/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, found, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing config file")
	}
	if cfg.Paths.APIBind != "127.0.0.1:7519" {
		t.Fatalf("unexpected default api bind %q", cfg.Paths.APIBind)
	}
	if cfg.Workflow.HeartbeatTimeout <= cfg.Workflow.HeartbeatInterval {
		t.Fatal("default heartbeat timeout must exceed interval")
	}
}

func TestLoadOverlaysFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
library_dir = "` + filepath.Join(dir, "library") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = "127.0.0.1:9999"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, found, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api bind not overlaid: %q", cfg.Paths.APIBind)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level not overlaid: %q", cfg.Logging.Level)
	}
	// Unset sections keep defaults.
	if cfg.LLM.Model == "" || cfg.Transcriber.Model == "" {
		t.Fatal("expected defaults for unset sections")
	}
}

func TestValidateRejectsSharedDirs(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StagingDir = "/tmp/archivist-same"
	cfg.Paths.LibraryDir = "/tmp/archivist-same"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when staging and library dirs collide")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := config.ExpandPath("~/media")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "media") {
		t.Fatalf("ExpandPath = %q", got)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error writing over existing config")
	}
	// The sample must itself be loadable.
	if _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
