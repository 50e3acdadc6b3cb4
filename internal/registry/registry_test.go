package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarmclock/internal/prefs"
)

func newTestRegistry(t *testing.T) (*Registry, prefs.Store) {
	t.Helper()
	store := prefs.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return New(store), store
}

func TestRegistry_PutReplacesByID(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	require.NoError(t, r.Put(ctx, Entry{AlarmID: 1, SoundID: 1, TriggerTime: at}))
	require.NoError(t, r.Put(ctx, Entry{AlarmID: 2, SoundID: 2, TriggerTime: at.Add(time.Hour)}))
	require.NoError(t, r.Put(ctx, Entry{AlarmID: 1, SoundID: 5, TriggerTime: at.Add(2 * time.Hour), NFCRequired: true}))

	entries, bad, err := r.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].AlarmID)
	assert.Equal(t, 5, entries[0].SoundID)
	assert.True(t, entries[0].NFCRequired)
	assert.True(t, entries[0].TriggerTime.Equal(at.Add(2*time.Hour)))
}

func TestRegistry_PutTruncatesToMillis(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	at := time.Date(2026, 3, 1, 7, 0, 0, 123456789, time.UTC)

	require.NoError(t, r.Put(ctx, Entry{AlarmID: 1, SoundID: 1, TriggerTime: at}))
	e, ok, err := r.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at.Truncate(time.Millisecond).UnixNano(), e.TriggerTime.UnixNano())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)

	require.NoError(t, r.Put(ctx, Entry{AlarmID: 1, SoundID: 1, TriggerTime: time.UnixMilli(1000)}))
	require.NoError(t, r.Remove(ctx, 1))
	require.NoError(t, r.Remove(ctx, 1))
	require.NoError(t, r.Remove(ctx, 42))

	_, ok, err := store.Get(ctx, KeyScheduled)
	require.NoError(t, err)
	assert.False(t, ok, "empty list removes the key")
}

func TestRegistry_LoadAllReportsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)
	require.NoError(t, prefs.NewEditor().PutString(KeyScheduled, "1:1:1000:false,oops,2:2:2000:true").Commit(ctx, store))

	entries, bad, err := r.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	require.Len(t, bad, 1)
	assert.ErrorIs(t, bad[0], ErrInvalidEntry)
}

func TestRegistry_RemoveIfRewritesFlatForm(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)
	legacy := `[{"alarmId":1,"soundId":2,"triggerTime":1},{"alarmId":2,"soundId":3,"triggerTime":2}]`
	require.NoError(t, prefs.NewEditor().PutString(KeyScheduled, legacy).Commit(ctx, store))

	removed, err := r.RemoveIf(ctx, func(e Entry) bool { return e.AlarmID == 1 })
	require.NoError(t, err)
	require.Len(t, removed, 1)

	raw, err := prefs.String(ctx, store, KeyScheduled, "")
	require.NoError(t, err)
	assert.Equal(t, "2:3:2000:false", raw)
}

func TestRegistry_ActiveLifecycle(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	_, ok, err := r.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	since := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	want := Active{AlarmID: 5, SoundID: 2, NFCRequired: true, Since: since, Activation: "act-1"}
	require.NoError(t, r.SetActive(ctx, want))

	got, ok, err := r.Active(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.AlarmID, got.AlarmID)
	assert.Equal(t, want.SoundID, got.SoundID)
	assert.True(t, got.NFCRequired)
	assert.Equal(t, "act-1", got.Activation)
	assert.True(t, got.Since.Equal(since))

	last, ok, err := r.LastActivated(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(since))

	require.NoError(t, r.ClearActive(ctx))
	_, ok, err = r.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.LastActivated(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok, "last activation survives clear")
}

func TestRegistry_Volume(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)

	assert.Equal(t, DefaultVolume, r.Volume(ctx, DefaultVolume))

	stored, err := r.SetVolume(ctx, 140)
	require.NoError(t, err)
	assert.Equal(t, 100, stored)
	assert.Equal(t, 100, r.Volume(ctx, DefaultVolume))

	require.NoError(t, prefs.NewEditor().PutString(KeyVolume, "loud").Commit(ctx, store))
	assert.Equal(t, DefaultVolume, r.Volume(ctx, DefaultVolume))
}

func TestRegistry_PendingConsumedOnce(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	require.NoError(t, r.PostPending(ctx, Pending{Action: ActionSnooze, AlarmID: 3, SoundID: 4}))

	p, ok, err := r.TakePending(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pending{Action: ActionSnooze, AlarmID: 3, SoundID: 4}, p)

	_, ok, err = r.TakePending(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_PendingUnknownActionIsCleared(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)
	require.NoError(t, prefs.NewEditor().PutString(KeyPendingAction, "explode").Commit(ctx, store))

	_, ok, err := r.TakePending(ctx)
	assert.Error(t, err)
	assert.False(t, ok)

	_, present, err := store.Get(ctx, KeyPendingAction)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestRegistry_ConcurrentPutsFromTwoHandles(t *testing.T) {
	const perHandle = 25
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	for _, backend := range []string{prefs.BackendSQLite, prefs.BackendFile} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			var regs []*Registry
			for i := 0; i < 2; i++ {
				store, err := prefs.Open(ctx, backend, dir)
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				regs = append(regs, New(store))
			}

			var wg sync.WaitGroup
			for h, r := range regs {
				for i := 0; i < perHandle; i++ {
					wg.Add(1)
					go func(r *Registry, id int) {
						defer wg.Done()
						assert.NoError(t, r.Put(ctx, Entry{AlarmID: id, SoundID: 1, TriggerTime: at}))
					}(r, h*perHandle+i+1)
				}
			}
			wg.Wait()

			entries, _, err := regs[1].LoadAll(ctx)
			require.NoError(t, err)
			assert.Len(t, entries, 2*perHandle, "every Put must survive")
		})
	}
}
