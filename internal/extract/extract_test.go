package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archivist/internal/extract"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/progress"
	"archivist/internal/services"
	"archivist/internal/staging"
	"archivist/internal/testsupport"
)

func newExtractor(t *testing.T) (*extract.Extractor, *staging.Manager, *progress.Hub) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	paths := staging.NewManager(cfg)
	hub := progress.NewHub(64)
	return extract.New(cfg, logging.NewNop(), hub, paths), paths, hub
}

func libraryItem(t *testing.T, paths *staging.Manager, contentType library.ContentType, body []byte) *library.Item {
	t.Helper()
	item := &library.Item{
		ID:             1,
		Title:          "Sprint Review",
		SourceFileName: "review.bin",
		ContentType:    contentType,
		Status:         library.StatusExtracting,
	}
	dir := paths.ItemLibraryDir(item)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	item.LibraryPath = filepath.Join(dir, item.SourceFileName)
	if err := os.WriteFile(item.LibraryPath, body, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return item
}

func TestExecuteExtractsAudioWithFFmpeg(t *testing.T) {
	ex, paths, _ := newExtractor(t)
	item := libraryItem(t, paths, library.ContentVideo, []byte("fake video"))

	var gotArgs []string
	ex.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		dest := args[len(args)-1]
		return os.WriteFile(dest, []byte("RIFF"), 0o644)
	})

	if err := ex.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := ex.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if filepath.Base(item.ExtractedPath) != "audio.wav" {
		t.Fatalf("ExtractedPath = %q", item.ExtractedPath)
	}
	if _, err := os.Stat(item.ExtractedPath); err != nil {
		t.Fatalf("audio artifact missing: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-vn", "-ac 1", "-ar 16000", item.LibraryPath} {
		if !strings.Contains(joined, want) {
			t.Fatalf("ffmpeg args missing %q: %s", want, joined)
		}
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress = %v", item.ProgressPercent)
	}
}

func TestExecuteFailsWhenFFmpegProducesNothing(t *testing.T) {
	ex, paths, _ := newExtractor(t)
	item := libraryItem(t, paths, library.ContentAudio, []byte("fake audio"))

	ex.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})

	if err := ex.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	err := ex.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestExecuteExtractsTextContent(t *testing.T) {
	ex, paths, _ := newExtractor(t)
	item := libraryItem(t, paths, library.ContentText, []byte("  meeting notes\nline two \n"))

	if err := ex.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := ex.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got, err := os.ReadFile(item.ExtractedPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(got) != "meeting notes\nline two\n" {
		t.Fatalf("extracted text = %q", got)
	}
}

func TestExecuteRejectsInvalidUTF8(t *testing.T) {
	ex, paths, _ := newExtractor(t)
	item := libraryItem(t, paths, library.ContentDocument, []byte{0xff, 0xfe, 0x00})

	if err := ex.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	err := ex.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRejectsEmptyText(t *testing.T) {
	ex, paths, _ := newExtractor(t)
	item := libraryItem(t, paths, library.ContentText, []byte("   \n  "))

	if err := ex.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := ex.Execute(context.Background(), item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrepareRequiresSourceFile(t *testing.T) {
	ex, _, _ := newExtractor(t)
	item := &library.Item{ID: 9, Title: "Ghost"}
	if err := ex.Prepare(context.Background(), item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	item.LibraryPath = filepath.Join(t.TempDir(), "missing.mp4")
	if err := ex.Prepare(context.Background(), item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing file, got %v", err)
	}
}
