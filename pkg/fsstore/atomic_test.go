package fsstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func listTempFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}

	var tmps []string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			tmps = append(tmps, e.Name())
		}
	}
	return tmps
}

func TestWriteAtomic_NewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := WriteAtomic(path, []byte("content"), nil); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("expected %q, got %q", "content", data)
	}
	if tmps := listTempFiles(t, dir); len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}

func TestWriteAtomic_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := WriteAtomic(path, []byte("new"), nil); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("expected %q, got %q", "new", data)
	}
}

func TestWriteAtomic_ValidateFailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := os.WriteFile(path, []byte("prior"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	wantErr := errors.New("bad content")
	err := WriteAtomic(path, []byte("partial"), func([]byte) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "prior" {
		t.Errorf("target changed after failed validate: %q", data)
	}
	if tmps := listTempFiles(t, dir); len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}

func TestWriteAtomic_RenameFailureLeavesTargetAbsent(t *testing.T) {
	dir := t.TempDir()

	// A directory at the target path makes the final rename fail after the
	// temp file has been fully written.
	path := filepath.Join(dir, "state.yaml")
	if err := os.MkdirAll(filepath.Join(path, "sub"), 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}

	if err := WriteAtomic(path, []byte("content"), nil); err == nil {
		t.Fatal("expected rename failure, got nil")
	}
	if tmps := listTempFiles(t, dir); len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}

func TestWriteAtomic_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions", "sess-1", "state.yaml")

	if err := WriteAtomic(path, []byte("x"), nil); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("target missing: %v", err)
	}
}
