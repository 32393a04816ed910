package digest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFile_MemoizesUntilFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wasm")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCache(8)

	d1, err := c.File(path)
	if err != nil {
		t.Fatalf("File error: %v", err)
	}
	if d1 != Bytes([]byte("one")) {
		t.Fatalf("unexpected digest %s", d1)
	}
	if _, err := c.File(path); err != nil || c.Len() != 1 {
		t.Fatalf("expected a single memoized entry, got %d (%v)", c.Len(), err)
	}

	if err := os.WriteFile(path, []byte("three"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	d2, err := c.File(path)
	if err != nil {
		t.Fatalf("File error: %v", err)
	}
	if d2 == d1 || d2 != Bytes([]byte("three")) {
		t.Fatalf("expected new digest after change, got %s", d2)
	}
}

func TestFile_RejectsDirectory(t *testing.T) {
	if _, err := NewCache(1).File(t.TempDir()); err == nil {
		t.Fatalf("expected error for directory")
	}
}
