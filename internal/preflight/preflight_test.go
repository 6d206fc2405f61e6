package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"archivist/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := CheckDiskSpace("test", t.TempDir())
	if !result.Passed && result.Detail == "" {
		t.Fatalf("expected detail on failure, got %+v", result)
	}
}

func TestCheckBinary(t *testing.T) {
	if result := CheckBinary("shell", "sh"); !result.Passed {
		t.Fatalf("expected sh to resolve, got: %s", result.Detail)
	}
	if result := CheckBinary("missing", "definitely-not-a-binary-xyz"); result.Passed {
		t.Fatal("expected failure for missing binary")
	}
	if result := CheckBinary("unset", ""); result.Passed {
		t.Fatal("expected failure for empty command")
	}
}

func TestCheckTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Transcriber.BaseURL = srv.URL
	result := CheckTranscriber(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.LLM.APIKey = "bad-key"
	cfg.LLM.BaseURL = srv.URL
	result := CheckLLM(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for rejected key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsDirectoryFailures(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(t.TempDir(), "missing-staging")
	cfg.Paths.LibraryDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.LLM.APIKey = ""
	cfg.Transcriber.BaseURL = ""

	results := RunAll(context.Background(), &cfg)
	var stagingFailed bool
	for _, r := range results {
		if r.Name == "Staging directory" && !r.Passed {
			stagingFailed = true
		}
	}
	if !stagingFailed {
		t.Fatal("expected staging directory check to fail")
	}
}
