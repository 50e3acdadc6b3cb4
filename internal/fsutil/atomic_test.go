package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic_CreatesParentAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	if err := WriteFileAtomic(path, []byte("one"), FilePerm); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two"), FilePerm); err != nil {
		t.Fatalf("WriteFileAtomic() second write error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want %q", data, "two")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestReadFileIfExists(t *testing.T) {
	dir := t.TempDir()

	data, ok, err := ReadFileIfExists(filepath.Join(dir, "missing"))
	if err != nil || ok || data != nil {
		t.Fatalf("missing file: got (%q, %v, %v), want (nil, false, nil)", data, ok, err)
	}

	path := filepath.Join(dir, "present")
	if err := os.WriteFile(path, []byte("x"), FilePerm); err != nil {
		t.Fatal(err)
	}
	data, ok, err = ReadFileIfExists(path)
	if err != nil || !ok || string(data) != "x" {
		t.Fatalf("present file: got (%q, %v, %v)", data, ok, err)
	}
}

func TestBestEffortBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	// Nothing to back up yet: must not create a .bak.
	BestEffortBackup(path, FilePerm)
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Fatalf("unexpected backup for missing file: %v", err)
	}

	if err := WriteFileAtomic(path, []byte("original"), FilePerm); err != nil {
		t.Fatal(err)
	}
	BestEffortBackup(path, FilePerm)

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(bak) != "original" {
		t.Errorf("backup = %q, want %q", bak, "original")
	}
}
