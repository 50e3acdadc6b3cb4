package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"alarmclock/internal/fsutil"
)

// FileName is the JSON document FileStore keeps under its data directory.
const FileName = "prefs.json"

// LockFileName guards read-modify-write cycles on FileName across processes.
const LockFileName = "prefs.lock"

// FileStore persists all keys in one JSON object, written atomically with a
// .bak copy of the previous version. The file is re-read on every access so
// that writes from another process (the CLI) are observed by the daemon.
// Writers hold an flock on LockFileName from load to rename.
type FileStore struct {
	dataDir   string
	mu        sync.Mutex
	closed    bool
	now       func() time.Time
	onRecover func(error)
}

type fileDoc struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

const fileDocVersion = 1

// NewFileStore creates dataDir if needed and returns a store rooted there.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, fsutil.DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir, now: time.Now}, nil
}

// SetNowFunc overrides the clock used to name quarantined files.
// Passing nil resets it to time.Now.
func (s *FileStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// OnRecover registers a callback invoked whenever a corrupt file was
// replaced (from backup or by a reset).
func (s *FileStore) OnRecover(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecover = fn
}

// Path returns the JSON file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dataDir, FileName)
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}
	values, err := s.loadLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Apply(ctx context.Context, edits ...Edit) error {
	return s.Update(ctx, func(Getter) ([]Edit, error) { return edits, nil })
}

func (s *FileStore) Update(_ context.Context, fn func(get Getter) ([]Edit, error)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	unlock, err := fsutil.LockFile(filepath.Join(s.dataDir, LockFileName))
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("unlock %s: %w", LockFileName, uerr)
		}
	}()

	values, err := s.loadLocked()
	if err != nil {
		return err
	}
	edits, err := fn(mapGetter(values))
	if err != nil || len(edits) == 0 {
		return err
	}
	applyEdits(values, edits)
	return s.writeLocked(values)
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	values, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return keysWithPrefix(values, prefix), nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) writeLocked(values map[string]string) error {
	data, err := json.MarshalIndent(fileDoc{Version: fileDocVersion, Values: values}, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize %s: %w", FileName, err)
	}

	path := s.Path()
	fsutil.BestEffortBackup(path, fsutil.FilePerm)
	if err := fsutil.WriteFileAtomic(path, data, fsutil.FilePerm); err != nil {
		return fmt.Errorf("write %s: %w", FileName, err)
	}
	return nil
}

// loadLocked reads the document. A missing file is an empty store; an
// empty or unparseable file is recovered and never fails the caller.
func (s *FileStore) loadLocked() (map[string]string, error) {
	data, ok, err := fsutil.ReadFileIfExists(s.Path())
	if err != nil {
		return nil, err
	}
	if !ok {
		return make(map[string]string), nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return s.recoverLocked(fmt.Errorf("%s is empty", FileName))
	}
	values, err := decodeFileDoc(data)
	if err != nil {
		return s.recoverLocked(fmt.Errorf("parse %s: %w", FileName, err))
	}
	return values, nil
}

func decodeFileDoc(data []byte) (map[string]string, error) {
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	return doc.Values, nil
}

func (s *FileStore) recoverLocked(cause error) (map[string]string, error) {
	path := s.Path()
	corruptPath := fmt.Sprintf("%s.corrupt.%s", path, s.now().Format("20060102-150405"))

	values := make(map[string]string)
	recovery := fmt.Errorf("%w (reset to empty; original moved to %s)", cause, corruptPath)

	if bak, ok, _ := fsutil.ReadFileIfExists(path + ".bak"); ok && len(bytes.TrimSpace(bak)) > 0 {
		if fromBackup, err := decodeFileDoc(bak); err == nil {
			values = fromBackup
			recovery = fmt.Errorf("%w (recovered from %s.bak)", cause, FileName)
		}
	}

	_ = os.Rename(path, corruptPath)
	data, err := json.MarshalIndent(fileDoc{Version: fileDocVersion, Values: values}, "", "  ")
	if err == nil {
		_ = fsutil.WriteFileAtomic(path, data, fsutil.FilePerm)
	}

	if s.onRecover != nil {
		s.onRecover(recovery)
	}
	return values, nil
}
