package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "katayori.db")
	if err := os.WriteFile(db, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != 10 {
		t.Errorf("single file: got %d bytes, want 10", got)
	}

	idx := filepath.Join(dir, "index.bleve")
	if err := os.Mkdir(idx, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "store"), []byte("abcd"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "meta"), []byte("xy"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(idx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("directory: got %d bytes, want 6", got)
	}

	got, err = DiskUsageBytes(db, idx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 16 {
		t.Errorf("file+dir: got %d bytes, want 16", got)
	}

	got, err = DiskUsageBytes(db, filepath.Join(dir, "nonexistent"), "")
	if err != nil {
		t.Fatal(err)
	}
	if got != 10 {
		t.Errorf("missing and empty paths skipped: got %d bytes, want 10", got)
	}
}
