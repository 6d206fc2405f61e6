package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, including parent directories, with exactly size
// bytes of repeating filler so upload tests can assert on byte counts. A size
// of zero or less still produces a one-byte file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	filler := bytes.Repeat([]byte("archivist "), 512)
	for size > 0 {
		chunk := int64(len(filler))
		if size < chunk {
			chunk = size
		}
		if _, err := f.Write(filler[:chunk]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		size -= chunk
	}
}
