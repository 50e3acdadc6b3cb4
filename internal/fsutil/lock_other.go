//go:build !unix

package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// LockFile creates path and returns a no-op release. Without flock(2) there
// is no cross-process exclusion; callers still serialise within the process.
func LockFile(path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirPerm); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, FilePerm)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}
	return f.Close, nil
}
