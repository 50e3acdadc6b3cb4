package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alarmclock/internal/prefs"
	"alarmclock/internal/registry"
)

var t0 = time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC)

// createTestData schedules two alarms, one of them ringing, and sets the volume.
func createTestData(t *testing.T, store prefs.Store) {
	t.Helper()
	ctx := context.Background()
	reg := registry.New(store)

	for _, e := range []registry.Entry{
		{AlarmID: 1, SoundID: 2, TriggerTime: t0.Add(time.Hour)},
		{AlarmID: 2, SoundID: 1, TriggerTime: t0.Add(2 * time.Hour), NFCRequired: true},
	} {
		if err := reg.Put(ctx, e); err != nil {
			t.Fatalf("failed to put alarm: %v", err)
		}
	}
	if err := reg.SetActive(ctx, registry.Active{AlarmID: 7, SoundID: 3, Since: t0}); err != nil {
		t.Fatalf("failed to set active: %v", err)
	}
	if _, err := reg.SetVolume(ctx, 40); err != nil {
		t.Fatalf("failed to set volume: %v", err)
	}
}

// newTestManager returns a manager whose clock advances a second per call.
func newTestManager(t *testing.T, store prefs.Store) *Manager {
	t.Helper()
	m := NewManager(store, t.TempDir(), "test")
	now := t0
	m.SetNowFunc(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	return m
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	createTestData(t, store)
	m := newTestManager(t, store)

	name, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if name != "2026-03-01_063001_000" {
		t.Errorf("unexpected backup name %q", name)
	}

	backupPath := filepath.Join(m.Dir(), name)
	for _, f := range []string{ManifestFile, SnapshotFile} {
		if _, err := os.Stat(filepath.Join(backupPath, f)); err != nil {
			t.Errorf("expected %s in backup: %v", f, err)
		}
	}

	info, err := m.GetBackup(name)
	if err != nil {
		t.Fatalf("GetBackup failed: %v", err)
	}
	if info.Stats["alarms"] != 2 {
		t.Errorf("alarms stat = %d, want 2", info.Stats["alarms"])
	}
	if info.Stats["active"] != 1 {
		t.Errorf("active stat = %d, want 1", info.Stats["active"])
	}
	if info.Stats["keys"] == 0 {
		t.Error("keys stat should count stored keys")
	}
	if !info.CreatedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("CreatedAt = %v", info.CreatedAt)
	}
}

func TestManager_CreateSameInstant(t *testing.T) {
	ctx := context.Background()
	m := NewManager(prefs.NewMemoryStore(), t.TempDir(), "test")
	m.SetNowFunc(func() time.Time { return t0 })

	first, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if first == second {
		t.Errorf("backups at the same instant share a name: %s", first)
	}
}

func TestManager_CreateWithEmptyData(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, prefs.NewMemoryStore())

	name, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	info, err := m.GetBackup(name)
	if err != nil {
		t.Fatalf("GetBackup failed: %v", err)
	}
	if info.Stats["alarms"] != 0 || info.Stats["keys"] != 0 || info.Stats["active"] != 0 {
		t.Errorf("unexpected stats for empty store: %v", info.Stats)
	}
}

func TestManager_List(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, prefs.NewMemoryStore())

	backups, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %d", len(backups))
	}

	var names []string
	for i := 0; i < 3; i++ {
		name, err := m.Create(ctx)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		names = append(names, name)
	}

	// Stray entries are ignored
	if err := os.MkdirAll(filepath.Join(m.Dir(), "not-a-backup"), 0o700); err != nil {
		t.Fatal(err)
	}

	backups, err = m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(backups))
	}
	if backups[0].Name != names[2] {
		t.Errorf("newest first: got %s, want %s", backups[0].Name, names[2])
	}
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	createTestData(t, store)
	m := newTestManager(t, store)
	reg := registry.New(store)

	name, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Diverge from the backup
	if err := reg.Remove(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := reg.ClearActive(ctx); err != nil {
		t.Fatal(err)
	}
	if err := reg.PostPending(ctx, registry.Pending{Action: registry.ActionStop, AlarmID: 2}); err != nil {
		t.Fatal(err)
	}

	safety, err := m.Restore(ctx, name)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if safety == "" || safety == name {
		t.Errorf("expected a distinct safety backup, got %q", safety)
	}

	entries, _, err := reg.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 alarms after restore, got %d", len(entries))
	}
	active, ok, err := reg.Active(ctx)
	if err != nil || !ok || active.AlarmID != 7 {
		t.Errorf("active alarm not restored: %+v %v %v", active, ok, err)
	}
	if v := reg.Volume(ctx, registry.DefaultVolume); v != 40 {
		t.Errorf("volume = %d, want 40", v)
	}

	// Keys absent from the backup are removed
	keys, err := store.Keys(ctx, "pending_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("pending keys should be gone after restore: %v", keys)
	}
}

func TestManager_RestoreIntoFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := prefs.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	createTestData(t, store)

	m := NewManager(store, dir, "test")
	name, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := registry.New(store).Remove(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Restore(ctx, name); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	// A fresh store over the same directory sees the restored data
	reopened, err := prefs.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, ok, _ := registry.New(reopened).Get(ctx, 2); !ok {
		t.Error("alarm 2 should be back after restore")
	}
}

func TestManager_RestoreLatest(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	m := newTestManager(t, store)
	reg := registry.New(store)

	if _, _, err := m.RestoreLatest(ctx); err == nil {
		t.Error("expected an error with no backups")
	}

	if _, err := reg.SetVolume(ctx, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.SetVolume(ctx, 90); err != nil {
		t.Fatal(err)
	}
	latest, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.SetVolume(ctx, 50); err != nil {
		t.Fatal(err)
	}

	restored, _, err := m.RestoreLatest(ctx)
	if err != nil {
		t.Fatalf("RestoreLatest failed: %v", err)
	}
	if restored != latest {
		t.Errorf("restored %s, want %s", restored, latest)
	}
	if v := reg.Volume(ctx, registry.DefaultVolume); v != 90 {
		t.Errorf("volume = %d, want 90", v)
	}
}

func TestManager_RestoreNonexistent(t *testing.T) {
	m := newTestManager(t, prefs.NewMemoryStore())

	if _, err := m.Restore(context.Background(), "2025-01-01_000000_000"); err == nil {
		t.Error("expected error restoring a missing backup")
	}
	if _, err := m.Restore(context.Background(), "../etc"); err == nil {
		t.Error("expected error for an invalid name")
	}
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t, prefs.NewMemoryStore())

	name, err := m.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(name); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), name)); !os.IsNotExist(err) {
		t.Error("backup directory should be removed")
	}
	if err := m.Delete(name); err == nil {
		t.Error("expected error deleting twice")
	}
}

func TestManager_Prune(t *testing.T) {
	m := newTestManager(t, prefs.NewMemoryStore())

	for i := 0; i < 5; i++ {
		if _, err := m.Create(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := m.Prune(2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted %d, want 3", deleted)
	}
	backups, _ := m.List()
	if len(backups) != 2 {
		t.Errorf("expected 2 backups left, got %d", len(backups))
	}
	if _, err := m.Prune(-1); err == nil {
		t.Error("expected error for negative keepCount")
	}
}

func TestParseBackupName(t *testing.T) {
	tests := []struct {
		name    string
		want    time.Time
		wantErr bool
	}{
		{"2026-03-01_063000", time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC), false},
		{"2026-03-01_063000_250", time.Date(2026, 3, 1, 6, 30, 0, 250e6, time.UTC), false},
		{"2026-03-01_063000-250", time.Time{}, true},
		{"backup", time.Time{}, true},
	}
	for _, tc := range tests {
		got, err := parseBackupName(tc.name)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseBackupName(%q) expected error", tc.name)
			}
			continue
		}
		if err != nil || !got.Equal(tc.want) {
			t.Errorf("parseBackupName(%q) = %v, %v; want %v", tc.name, got, err, tc.want)
		}
	}
}
