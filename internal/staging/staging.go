// Package staging owns the upload landing area and the promotion of finished
// uploads into the permanent library layout. Each item stages under its own
// directory so partial uploads never collide and cleanup is a single remove.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"archivist/internal/config"
	"archivist/internal/fileutil"
	"archivist/internal/library"
	"archivist/internal/textutil"
)

// Manager lays out staged uploads and library artifacts on disk.
type Manager struct {
	stagingDir string
	libraryDir string
}

// NewManager builds a manager from the configured paths.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		stagingDir: cfg.Paths.StagingDir,
		libraryDir: cfg.Paths.LibraryDir,
	}
}

// ItemStagingDir returns the per-item staging directory.
func (m *Manager) ItemStagingDir(itemID int64) string {
	return filepath.Join(m.stagingDir, fmt.Sprintf("item-%d", itemID))
}

// WriteUpload streams an uploaded body into the item's staging directory and
// returns the staged path and byte count.
func (m *Manager) WriteUpload(itemID int64, fileName string, body io.Reader) (string, int64, error) {
	safe := textutil.SanitizeFileName(fileName)
	if safe == "" {
		safe = "upload.bin"
	}
	dir := m.ItemStagingDir(itemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create staging dir: %w", err)
	}
	target := filepath.Join(dir, safe)
	out, err := os.Create(target)
	if err != nil {
		return "", 0, fmt.Errorf("create staged file: %w", err)
	}
	written, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return "", 0, fmt.Errorf("write staged file: %w", err)
	}
	return target, written, nil
}

// ItemLibraryDir returns the permanent directory for an item's source and
// derived artifacts.
func (m *Manager) ItemLibraryDir(item *library.Item) string {
	slug := textutil.SanitizeToken(item.Title)
	if slug == "unknown" {
		slug = textutil.SanitizeToken(strings.TrimSuffix(item.SourceFileName, filepath.Ext(item.SourceFileName)))
	}
	return filepath.Join(m.libraryDir, fmt.Sprintf("%d-%s", item.ID, slug))
}

// Promote moves the staged upload into the library layout, clears the staging
// directory, and returns the permanent path.
func (m *Manager) Promote(item *library.Item) (string, error) {
	if item.StagedPath == "" {
		return "", fmt.Errorf("item %d has no staged upload", item.ID)
	}
	dir := m.ItemLibraryDir(item)
	target := filepath.Join(dir, filepath.Base(item.StagedPath))
	if err := fileutil.MoveFile(item.StagedPath, target); err != nil {
		return "", fmt.Errorf("promote staged upload: %w", err)
	}
	_ = os.RemoveAll(m.ItemStagingDir(item.ID))
	return target, nil
}

// ArtifactPath returns the path for a named derived artifact (audio,
// transcript, document, embeddings) beside the item's source file.
func (m *Manager) ArtifactPath(item *library.Item, name string) string {
	if item.LibraryPath != "" {
		return filepath.Join(filepath.Dir(item.LibraryPath), name)
	}
	return filepath.Join(m.ItemLibraryDir(item), name)
}

// DiscardStaging removes any staged data for an item.
func (m *Manager) DiscardStaging(itemID int64) error {
	return os.RemoveAll(m.ItemStagingDir(itemID))
}

// RemoveArtifacts deletes an item's library directory. Used by permanent
// deletes only; soft deletes keep files for restore.
func (m *Manager) RemoveArtifacts(item *library.Item) error {
	if item.LibraryPath == "" {
		return nil
	}
	return os.RemoveAll(filepath.Dir(item.LibraryPath))
}
