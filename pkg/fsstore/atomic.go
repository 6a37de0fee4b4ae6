package fsstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteAtomic writes data to path using a write-to-temp-then-rename protocol.
// The content is first written and fsynced to a uniquely named temporary
// sibling of path, then validate (if non-nil) is invoked on the content, and
// only then is the temporary file renamed onto path. On any failure the
// temporary file is removed and path is left exactly as it was before the
// call. Temp names carry a random suffix so concurrent writers to different
// targets in the same directory never collide.
func WriteAtomic(path string, data []byte, validate func([]byte) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf("%s.tmp.%s", filepath.Base(path), uuid.New().String()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmp, err)
	}

	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file %s: %w", tmp, werr)
	}

	if validate != nil {
		if err := validate(data); err != nil {
			_ = os.Remove(tmp)
			return err
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}

	return nil
}

// ReadFile reads the full content of path. Reads are plain reads; mutual
// exclusion over a workspace is the workspace lock's job, not this package's.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
