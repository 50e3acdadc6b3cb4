package daemon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarmclock/internal/clock"
	"alarmclock/internal/config"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/notify"
	"alarmclock/internal/platform"
	"alarmclock/internal/prefs"
	"alarmclock/internal/registry"
	"alarmclock/internal/sound"
)

var t0 = time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC)

type fixture struct {
	d       *Daemon
	clk     *clock.Fake
	plat    *platform.Fake
	notes   *notify.Recorder
	backend *sound.FakeBackend
	store   prefs.Store

	// other writes to the same store the way a second process would.
	other *registry.Registry
}

func newFixture(t *testing.T, store prefs.Store) *fixture {
	t.Helper()
	if store == nil {
		store = prefs.NewMemoryStore()
	}
	f := &fixture{
		clk:     clock.NewFake(t0),
		plat:    platform.NewFake(),
		notes:   &notify.Recorder{},
		backend: &sound.FakeBackend{},
		store:   store,
		other:   registry.New(store),
	}

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	host := f.plat.Host()

	d, err := New(context.Background(), cfg, Options{
		Store:        store,
		Clock:        f.clk,
		Host:         &host,
		Notifier:     f.notes,
		SoundBackend: f.backend,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	f.d = d
	return f
}

func (f *fixture) put(t *testing.T, id int, at time.Time, nfc bool) {
	t.Helper()
	require.NoError(t, f.other.Put(context.Background(), registry.Entry{
		AlarmID: id, SoundID: 2, TriggerTime: at, NFCRequired: nfc,
	}))
}

func TestReconcile_ArmsNewEntries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.put(t, 7, t0.Add(time.Hour), false)

	rep, err := f.d.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, rep.Armed)

	armed, ok := f.d.Scheduler().Armed(7)
	require.True(t, ok)
	assert.True(t, armed.TriggerTime.Equal(t0.Add(time.Hour)))

	rep, err = f.d.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, rep.Changed(), "second reconcile should be a no-op")
}

func TestReconcile_RearmsChangedEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.put(t, 7, t0.Add(time.Hour), false)
	_, err := f.d.Reconcile(ctx)
	require.NoError(t, err)

	f.put(t, 7, t0.Add(2*time.Hour), true)
	rep, err := f.d.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, rep.Armed)

	armed, ok := f.d.Scheduler().Armed(7)
	require.True(t, ok)
	assert.True(t, armed.TriggerTime.Equal(t0.Add(2*time.Hour)))
	assert.True(t, armed.NFCRequired)
}

func TestReconcile_CancelsRemovedEntries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.True(t, f.d.Coordinator().Schedule(ctx, lifecycle.ScheduleRequest{
		AlarmID: 4, SoundID: 1, At: t0.Add(time.Hour),
	}))

	require.NoError(t, f.other.Remove(ctx, 4))
	rep, err := f.d.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, rep.Cancelled)

	_, ok := f.d.Scheduler().Armed(4)
	assert.False(t, ok)
}

func TestReconcile_DropsPastEntries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.put(t, 3, t0.Add(-time.Minute), false)
	f.put(t, 5, t0.Add(time.Minute), false)

	rep, err := f.d.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, rep.Dropped)
	assert.Equal(t, []int{5}, rep.Armed)

	_, ok, err := f.other.Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcile_CountsCorruptEntries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	future := strconv.FormatInt(t0.Add(time.Hour).UnixMilli(), 10)
	require.NoError(t, prefs.NewEditor().
		PutString(registry.KeyScheduled, "garbage,8:1:"+future+":false").
		Commit(ctx, f.store))

	rep, err := f.d.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Corrupt)
	assert.Equal(t, []int{8}, rep.Armed)
}

func TestScheduledAlarmRingsThroughDaemon(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, 9, t0.Add(10*time.Minute), true)
	_, err := f.d.Reconcile(context.Background())
	require.NoError(t, err)

	f.clk.Advance(10 * time.Minute)

	snap := f.d.Coordinator().Snapshot()
	assert.True(t, snap.Active)
	assert.Equal(t, 9, snap.AlarmID)
	assert.True(t, snap.NFCRequired)
	assert.NotEmpty(t, f.backend.Active())
}

func TestProcessPending_Stop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.d.Coordinator().Trigger(ctx, lifecycle.Request{AlarmID: 2, SoundID: 1})
	require.True(t, f.d.Coordinator().IsActive(2))

	require.NoError(t, f.other.PostPending(ctx, registry.Pending{Action: registry.ActionStop, AlarmID: 2}))
	p, ok, err := f.d.ProcessPending(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, registry.ActionStop, p.Action)
	assert.False(t, f.d.Coordinator().IsActive(2))

	_, ok, err = f.d.ProcessPending(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "pending action must be consumed once")
}

func TestProcessPending_StopWithoutID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.d.Coordinator().Trigger(ctx, lifecycle.Request{AlarmID: 6, SoundID: 1})

	require.NoError(t, f.other.PostPending(ctx, registry.Pending{Action: registry.ActionStop, AlarmID: -1}))
	_, ok, err := f.d.ProcessPending(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, f.d.Coordinator().Snapshot().Active)
}

func TestProcessPending_Snooze(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.d.Coordinator().Trigger(ctx, lifecycle.Request{AlarmID: 2, SoundID: 3})

	require.NoError(t, f.other.PostPending(ctx, registry.Pending{Action: registry.ActionSnooze, AlarmID: 2, SoundID: 3}))
	_, ok, err := f.d.ProcessPending(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, f.d.Coordinator().IsActive(2))
	armed, ok := f.d.Scheduler().Armed(2)
	require.True(t, ok)
	assert.True(t, armed.TriggerTime.Equal(t0.Add(5*time.Minute)))
	assert.Equal(t, 3, armed.SoundID)
}

func TestProcessPending_SnoozeNothingRinging(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.other.PostPending(ctx, registry.Pending{Action: registry.ActionSnooze, AlarmID: -1}))
	_, ok, err := f.d.ProcessPending(ctx)
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestProcessPending_TriggerUsesStoredNFC(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.put(t, 11, t0.Add(time.Hour), true)

	require.NoError(t, f.other.PostPending(ctx, registry.Pending{Action: registry.ActionTrigger, AlarmID: 11, SoundID: 2}))
	_, ok, err := f.d.ProcessPending(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	snap := f.d.Coordinator().Snapshot()
	assert.True(t, snap.Active)
	assert.Equal(t, 11, snap.AlarmID)
	assert.True(t, snap.NFCRequired)
}

func TestProcessPending_UnknownActionIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, prefs.NewEditor().
		PutString(registry.KeyPendingAction, "explode").
		PutInt(registry.KeyPendingAlarmID, 1).
		Commit(ctx, f.store))

	_, _, err := f.d.ProcessPending(ctx)
	assert.Error(t, err)

	_, ok, err := f.d.ProcessPending(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecover_RearmsFutureAlarms(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, 1, t0.Add(time.Hour), false)
	f.put(t, 2, t0.Add(-time.Hour), false)

	rep, err := f.d.Recover(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Rearmed, 1)
	assert.Equal(t, 1, rep.Rearmed[0].AlarmID)
	require.Len(t, rep.Dropped, 1)

	_, ok := f.d.Scheduler().Armed(1)
	assert.True(t, ok)
}

func TestStoreWatcher_PicksUpOtherProcessWrites(t *testing.T) {
	dir := t.TempDir()
	store, err := prefs.NewFileStore(dir)
	require.NoError(t, err)
	f := newFixture(t, store)

	// A second FileStore on the same directory stands in for the CLI.
	cliStore, err := prefs.NewFileStore(dir)
	require.NoError(t, err)
	cli := registry.New(cliStore)

	w := NewStoreWatcher(dir, prefs.BackendFile, f.d)
	w.SetIntervals(10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, cli.Put(context.Background(), registry.Entry{
		AlarmID: 21, SoundID: 1, TriggerTime: t0.Add(time.Hour),
	}))
	require.Eventually(t, func() bool {
		_, ok := f.d.Scheduler().Armed(21)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, cli.Remove(context.Background(), 21))
	require.Eventually(t, func() bool {
		_, ok := f.d.Scheduler().Armed(21)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMetricsHandler(t *testing.T) {
	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "alarmclock_active")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_StopsWithContext(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	plat := platform.NewFake()
	host := plat.Host()
	d, err := New(context.Background(), cfg, Options{
		Ephemeral:    true,
		Clock:        clock.NewFake(t0),
		Host:         &host,
		Notifier:     &notify.Recorder{},
		SoundBackend: &sound.FakeBackend{},
	})
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, d.Serve(ctx))
}
