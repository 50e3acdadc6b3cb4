package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarmclock/internal/clock"
	"alarmclock/internal/registry"
)

var t0 = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

type deliveries struct {
	mu  sync.Mutex
	got []registry.Entry
	at  []time.Time
	clk clock.Clock
}

func (d *deliveries) deliver(e registry.Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, e)
	d.at = append(d.at, d.clk.Now())
}

func (d *deliveries) ids() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []int
	for _, e := range d.got {
		ids = append(ids, e.AlarmID)
	}
	return ids
}

func newTestScheduler(t *testing.T) (*Scheduler, *clock.Fake, *deliveries) {
	t.Helper()
	clk := clock.NewFake(t0)
	d := &deliveries{clk: clk}
	s := New(clk, d.deliver, zerolog.Nop())
	t.Cleanup(s.Close)
	return s, clk, d
}

func TestScheduler_FiresAtExactInstant(t *testing.T) {
	s, clk, d := newTestScheduler(t)
	at := t0.Add(90 * time.Minute)
	s.ScheduleExact(registry.Entry{AlarmID: 1, SoundID: 2, TriggerTime: at})

	clk.Advance(90*time.Minute - time.Millisecond)
	assert.Empty(t, d.ids())

	clk.Advance(time.Millisecond)
	require.Equal(t, []int{1}, d.ids())
	assert.True(t, d.at[0].Equal(at))
	assert.Empty(t, s.Pending(), "delivered entries are forgotten")
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s, clk, d := newTestScheduler(t)
	s.ScheduleExact(registry.Entry{AlarmID: 1, TriggerTime: t0.Add(time.Minute)})
	s.ScheduleExact(registry.Entry{AlarmID: 1, TriggerTime: t0.Add(time.Hour)})

	clk.Advance(30 * time.Minute)
	assert.Empty(t, d.ids())
	clk.Advance(30 * time.Minute)
	assert.Equal(t, []int{1}, d.ids())
}

func TestScheduler_Cancel(t *testing.T) {
	s, clk, d := newTestScheduler(t)
	s.ScheduleExact(registry.Entry{AlarmID: 1, TriggerTime: t0.Add(time.Minute)})

	assert.True(t, s.Cancel(1))
	assert.False(t, s.Cancel(1))
	clk.Advance(time.Hour)
	assert.Empty(t, d.ids())
}

func TestScheduler_PendingAndNext(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.ScheduleExact(registry.Entry{AlarmID: 3, TriggerTime: t0.Add(3 * time.Hour)})
	s.ScheduleExact(registry.Entry{AlarmID: 1, TriggerTime: t0.Add(time.Hour)})
	s.ScheduleExact(registry.Entry{AlarmID: 2, TriggerTime: t0.Add(2 * time.Hour)})

	var ids []int
	for _, e := range s.Pending() {
		ids = append(ids, e.AlarmID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)

	next, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, 1, next.AlarmID)
}

func TestScheduler_PastInstantFiresOnNextTick(t *testing.T) {
	s, clk, d := newTestScheduler(t)
	s.ScheduleExact(registry.Entry{AlarmID: 9, TriggerTime: t0.Add(-time.Minute)})

	clk.Advance(0)
	assert.Equal(t, []int{9}, d.ids())
}

func TestScheduler_CloseDisarms(t *testing.T) {
	s, clk, d := newTestScheduler(t)
	s.ScheduleExact(registry.Entry{AlarmID: 1, TriggerTime: t0.Add(time.Minute)})
	s.Close()
	s.ScheduleExact(registry.Entry{AlarmID: 2, TriggerTime: t0.Add(time.Minute)})

	clk.Advance(time.Hour)
	assert.Empty(t, d.ids())
	assert.Equal(t, 0, clk.Pending())
}
