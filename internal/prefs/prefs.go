// Package prefs is the durable key-value store the alarm lifecycle persists
// into: active-alarm metadata, the scheduled-alarm list, volume and the
// pending-action handshake between the CLI and the daemon.
//
// Values are strings; Editor and the typed getters handle ints and bools.
// Every Apply is durable before it returns.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("prefs: store closed")

// Edit is a single put or remove.
type Edit struct {
	Key    string
	Value  string
	Delete bool
}

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value for key and whether it is present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Apply performs edits atomically: either all become durable or none.
	Apply(ctx context.Context, edits ...Edit) error

	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Update reads through get and applies the edits fn returns. The reads
	// and the write are one atomic step against every other writer of the
	// store, other processes included. An error or no edits writes nothing.
	// fn must not call back into the store.
	Update(ctx context.Context, fn func(get Getter) ([]Edit, error)) error

	Close() error
}

// Getter reads a key inside Update.
type Getter func(key string) (string, bool, error)

// Editor batches edits for a single Apply.
type Editor struct {
	edits []Edit
}

// NewEditor starts a new batch.
func NewEditor() *Editor { return &Editor{} }

// PutString sets key to v.
func (e *Editor) PutString(key, v string) *Editor {
	e.edits = append(e.edits, Edit{Key: key, Value: v})
	return e
}

// PutInt sets key to v.
func (e *Editor) PutInt(key string, v int) *Editor {
	return e.PutString(key, strconv.Itoa(v))
}

// PutInt64 sets key to v.
func (e *Editor) PutInt64(key string, v int64) *Editor {
	return e.PutString(key, strconv.FormatInt(v, 10))
}

// PutBool sets key to v.
func (e *Editor) PutBool(key string, v bool) *Editor {
	return e.PutString(key, strconv.FormatBool(v))
}

// Remove deletes key.
func (e *Editor) Remove(key string) *Editor {
	e.edits = append(e.edits, Edit{Key: key, Delete: true})
	return e
}

// Edits returns the accumulated edits.
func (e *Editor) Edits() []Edit { return e.edits }

// Commit applies the batch to s.
func (e *Editor) Commit(ctx context.Context, s Store) error {
	if len(e.edits) == 0 {
		return nil
	}
	return s.Apply(ctx, e.edits...)
}

// String returns the value for key, or def when absent.
func String(ctx context.Context, s Store, key, def string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// Int returns the value for key parsed as an int, or def when absent.
// A present but malformed value is an error.
func Int(ctx context.Context, s Store, key string, def int) (int, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("prefs: %s is not an int: %w", key, err)
	}
	return n, nil
}

// Int64 returns the value for key parsed as an int64, or def when absent.
func Int64(ctx context.Context, s Store, key string, def int64) (int64, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def, fmt.Errorf("prefs: %s is not an int64: %w", key, err)
	}
	return n, nil
}

// Bool returns the value for key parsed as a bool, or def when absent.
func Bool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("prefs: %s is not a bool: %w", key, err)
	}
	return b, nil
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open opens the named backend rooted at dataDir.
func Open(ctx context.Context, backend, dataDir string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileStore(dataDir)
	case BackendSQLite:
		return OpenSQLite(ctx, SQLitePath(dataDir))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("prefs: unknown backend %q", backend)
	}
}
