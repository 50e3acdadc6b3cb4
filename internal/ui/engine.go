package ui

import (
	"context"
	"slices"
	"time"

	"alarmclock/internal/clock"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/registry"
)

// Engine is the alarm engine the console drives.
type Engine interface {
	Now() time.Time
	Snapshot() lifecycle.Snapshot
	Scheduled(ctx context.Context) ([]registry.Entry, error)
	Schedule(ctx context.Context, req lifecycle.ScheduleRequest) bool
	Cancel(ctx context.Context, alarmID int) bool
	Stop(ctx context.Context, alarmID int) bool
	Snooze(ctx context.Context, alarmID, soundID int) bool
	Volume(ctx context.Context) int
	SetVolume(ctx context.Context, pct int) (int, error)
}

// LocalEngine drives a coordinator running in this process.
type LocalEngine struct {
	coord *lifecycle.Coordinator
	reg   *registry.Registry
	clock clock.Clock
}

// NewLocalEngine wraps coord and the registry it persists to.
func NewLocalEngine(coord *lifecycle.Coordinator, reg *registry.Registry, clk clock.Clock) *LocalEngine {
	if clk == nil {
		clk = clock.Real()
	}
	return &LocalEngine{coord: coord, reg: reg, clock: clk}
}

func (e *LocalEngine) Now() time.Time { return e.clock.Now() }

func (e *LocalEngine) Snapshot() lifecycle.Snapshot { return e.coord.Snapshot() }

// Scheduled returns the persisted alarms in trigger order. Corrupt entries
// are left out.
func (e *LocalEngine) Scheduled(ctx context.Context) ([]registry.Entry, error) {
	entries, _, err := e.reg.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	SortEntries(entries)
	return entries, nil
}

func (e *LocalEngine) Schedule(ctx context.Context, req lifecycle.ScheduleRequest) bool {
	return e.coord.Schedule(ctx, req)
}

func (e *LocalEngine) Cancel(ctx context.Context, alarmID int) bool {
	return e.coord.Cancel(ctx, alarmID)
}

func (e *LocalEngine) Stop(ctx context.Context, alarmID int) bool {
	return e.coord.Stop(ctx, alarmID)
}

func (e *LocalEngine) Snooze(ctx context.Context, alarmID, soundID int) bool {
	return e.coord.Snooze(ctx, alarmID, soundID)
}

func (e *LocalEngine) Volume(ctx context.Context) int {
	return e.reg.Volume(ctx, registry.DefaultVolume)
}

func (e *LocalEngine) SetVolume(ctx context.Context, pct int) (int, error) {
	return e.coord.SetVolume(ctx, pct)
}

// SortEntries orders entries by trigger time, then id.
func SortEntries(entries []registry.Entry) {
	slices.SortFunc(entries, func(a, b registry.Entry) int {
		if c := a.TriggerTime.Compare(b.TriggerTime); c != 0 {
			return c
		}
		return a.AlarmID - b.AlarmID
	})
}

// NextAlarmID returns an id not used by entries or the ringing alarm.
func NextAlarmID(entries []registry.Entry, active lifecycle.Snapshot) int {
	next := 1
	for _, e := range entries {
		if e.AlarmID >= next {
			next = e.AlarmID + 1
		}
	}
	if active.Active && active.AlarmID >= next {
		next = active.AlarmID + 1
	}
	return next
}
