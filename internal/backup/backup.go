// Package backup takes timestamped snapshots of the preference store and
// restores them. A snapshot holds every key, so scheduled alarms, the
// ringing alarm and the volume all come back together.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"alarmclock/internal/fsutil"
	"alarmclock/internal/prefs"
	"alarmclock/internal/registry"
)

// Version constants for the backup format.
const (
	ManifestVersion = "1.0"
	ManifestFile    = "manifest.json"
	SnapshotFile    = "prefs.json"
	BackupsDir      = "backups"
)

const nameLayout = "2006-01-02_150405"

// Manager handles backup and restore operations for one store.
type Manager struct {
	store      prefs.Store
	backupDir  string // e.g. ~/.alarmclock/backups
	appVersion string
	now        func() time.Time
}

// Manifest contains metadata about a backup.
type Manifest struct {
	Version    string         `json:"version"`
	CreatedAt  time.Time      `json:"created_at"`
	AppVersion string         `json:"app_version"`
	Stats      map[string]int `json:"stats"`
}

// BackupInfo contains summary information about a backup.
type BackupInfo struct {
	Name      string         // Directory name (2026-03-01_063000_000)
	Path      string         // Full path to backup directory
	CreatedAt time.Time      // When the backup was created
	Stats     map[string]int // keys, alarms, active
}

// NewManager creates a backup manager for store, keeping backups under
// dataDir/backups.
func NewManager(store prefs.Store, dataDir, appVersion string) *Manager {
	return &Manager{
		store:      store,
		backupDir:  filepath.Join(dataDir, BackupsDir),
		appVersion: appVersion,
		now:        time.Now,
	}
}

// SetNowFunc replaces the clock used to name backups.
func (m *Manager) SetNowFunc(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Dir returns the directory holding the backups.
func (m *Manager) Dir() string { return m.backupDir }

// Create snapshots the store and returns the backup name.
func (m *Manager) Create(ctx context.Context) (string, error) {
	values, err := snapshot(ctx, m.store)
	if err != nil {
		return "", fmt.Errorf("failed to read store: %w", err)
	}

	if err := os.MkdirAll(m.backupDir, fsutil.DirPerm); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := m.now()
	name, backupPath, err := m.reserve(now)
	if err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(backupPath, SnapshotFile), values); err != nil {
		_ = os.RemoveAll(backupPath)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	manifest := Manifest{
		Version:    ManifestVersion,
		CreatedAt:  now,
		AppVersion: m.appVersion,
		Stats:      statsFor(values),
	}
	if err := writeJSON(filepath.Join(backupPath, ManifestFile), manifest); err != nil {
		_ = os.RemoveAll(backupPath)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return name, nil
}

// reserve creates the backup directory, stepping forward a millisecond at
// a time when the name is taken.
func (m *Manager) reserve(now time.Time) (string, string, error) {
	for i := 0; i < 1000; i++ {
		t := now.Add(time.Duration(i) * time.Millisecond)
		name := fmt.Sprintf("%s_%03d", t.Format(nameLayout), t.Nanosecond()/1e6)
		path := filepath.Join(m.backupDir, name)
		err := os.Mkdir(path, fsutil.DirPerm)
		if err == nil {
			return name, path, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("failed to create backup: %w", err)
		}
	}
	return "", "", fmt.Errorf("failed to create backup: no free name near %s", now.Format(nameLayout))
}

// List returns all available backups, sorted by creation time (newest first).
func (m *Manager) List() ([]BackupInfo, error) {
	if _, err := os.Stat(m.backupDir); os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := m.info(entry.Name())
		if err != nil {
			continue // Skip invalid backups
		}
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Restore replaces the store contents with a backup. A safety backup of
// the current contents is taken first and its name returned.
func (m *Manager) Restore(ctx context.Context, name string) (string, error) {
	if err := validateBackupName(name); err != nil {
		return "", err
	}

	backupPath := filepath.Join(m.backupDir, name)
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return "", fmt.Errorf("backup not found: %s", name)
	}

	var values map[string]string
	if err := readJSON(filepath.Join(backupPath, SnapshotFile), &values); err != nil {
		return "", fmt.Errorf("backup %s is unreadable: %w", name, err)
	}

	safetyName, err := m.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create safety backup: %w", err)
	}

	current, err := m.store.Keys(ctx, "")
	if err != nil {
		return safetyName, fmt.Errorf("failed to read store (safety backup: %s): %w", safetyName, err)
	}

	edits := make([]prefs.Edit, 0, len(current)+len(values))
	for _, k := range current {
		if _, ok := values[k]; !ok {
			edits = append(edits, prefs.Edit{Key: k, Delete: true})
		}
	}
	for _, k := range sortedKeys(values) {
		edits = append(edits, prefs.Edit{Key: k, Value: values[k]})
	}

	if err := m.store.Apply(ctx, edits...); err != nil {
		return safetyName, fmt.Errorf("failed to restore %s (safety backup: %s): %w", name, safetyName, err)
	}
	return safetyName, nil
}

// RestoreLatest restores from the most recent backup.
func (m *Manager) RestoreLatest(ctx context.Context) (string, string, error) {
	backups, err := m.List()
	if err != nil {
		return "", "", err
	}
	if len(backups) == 0 {
		return "", "", fmt.Errorf("no backups available")
	}

	safety, err := m.Restore(ctx, backups[0].Name)
	return backups[0].Name, safety, err
}

// Delete removes a specific backup.
func (m *Manager) Delete(name string) error {
	if err := validateBackupName(name); err != nil {
		return err
	}

	backupPath := filepath.Join(m.backupDir, name)
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", name)
	}

	return os.RemoveAll(backupPath)
}

// Prune removes old backups, keeping only the N most recent.
func (m *Manager) Prune(keepCount int) (int, error) {
	if keepCount < 0 {
		return 0, fmt.Errorf("keepCount must be non-negative")
	}

	backups, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(backups) <= keepCount {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[keepCount:] {
		if err := m.Delete(backup.Name); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// GetBackup returns information about a specific backup.
func (m *Manager) GetBackup(name string) (*BackupInfo, error) {
	if err := validateBackupName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(m.backupDir, name)); os.IsNotExist(err) {
		return nil, fmt.Errorf("backup not found: %s", name)
	}
	return m.info(name)
}

func (m *Manager) info(name string) (*BackupInfo, error) {
	backupPath := filepath.Join(m.backupDir, name)

	var manifest Manifest
	if err := readJSON(filepath.Join(backupPath, ManifestFile), &manifest); err != nil {
		// Fall back to the timestamp in the directory name
		createdAt, parseErr := parseBackupName(name)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid backup: %s", name)
		}
		manifest.CreatedAt = createdAt
		manifest.Stats = make(map[string]int)
	}

	return &BackupInfo{
		Name:      name,
		Path:      backupPath,
		CreatedAt: manifest.CreatedAt,
		Stats:     manifest.Stats,
	}, nil
}

// Helper functions

func snapshot(ctx context.Context, store prefs.Store) (map[string]string, error) {
	keys, err := store.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			values[k] = v
		}
	}
	return values, nil
}

// statsFor counts what a snapshot holds.
func statsFor(values map[string]string) map[string]int {
	entries, _ := registry.Valid(registry.Decode(values[registry.KeyScheduled]))
	stats := map[string]int{
		"keys":   len(values),
		"alarms": len(entries),
		"active": 0,
	}
	if id, err := strconv.Atoi(values[registry.KeyActiveID]); err == nil && id >= 0 {
		stats["active"] = 1
	}
	return stats
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateBackupName(name string) error {
	if name == "" {
		return fmt.Errorf("backup name is required")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid backup name: %q", name)
	}
	if _, err := parseBackupName(name); err != nil {
		return fmt.Errorf("invalid backup name: %q", name)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, fsutil.FilePerm)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// parseBackupName parses a backup directory name into a timestamp.
// Accepts 2006-01-02_150405 and 2006-01-02_150405_XXX.
func parseBackupName(name string) (time.Time, error) {
	if len(name) == 21 {
		baseTime, err := time.Parse(nameLayout, name[:17])
		if err != nil {
			return time.Time{}, err
		}
		if name[17] != '_' {
			return time.Time{}, fmt.Errorf("invalid backup format")
		}
		ms, err := strconv.Atoi(name[18:])
		if err != nil || ms < 0 || ms > 999 {
			return time.Time{}, fmt.Errorf("invalid milliseconds")
		}
		return baseTime.Add(time.Duration(ms) * time.Millisecond), nil
	}

	return time.Parse(nameLayout, name)
}
