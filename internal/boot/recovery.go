// Package boot rebuilds alarm state when the daemon starts: it clears
// leftover notifications, re-rings a recently active alarm and re-arms the
// scheduled alarms that are still in the future.
package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"alarmclock/internal/clock"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/metrics"
	"alarmclock/internal/registry"
)

// DefaultStaleness is how old an Active alarm may be and still be re-rung.
const DefaultStaleness = 30 * time.Minute

// Triggerer re-rings an alarm.
type Triggerer interface {
	Trigger(ctx context.Context, req lifecycle.Request) lifecycle.Outcome
}

// Arm re-arms an entry at its persisted instant.
type Arm interface {
	ScheduleExact(e registry.Entry)
}

// Dismisser clears outward notifications.
type Dismisser interface {
	DismissAll() error
}

// Report summarises a recovery run.
type Report struct {
	Restored    *registry.Active
	Expired     *registry.Active
	Rearmed     []registry.Entry
	Dropped     []registry.Entry
	Corrupt     int
	CorruptErrs []error
}

// Recovery performs the startup sequence.
type Recovery struct {
	Registry      *registry.Registry
	Scheduler     Arm
	Coordinator   Triggerer
	Notifications Dismisser
	Clock         clock.Clock
	Log           zerolog.Logger
	Staleness     time.Duration
}

// Run executes recovery. Only store failures are returned; every other
// problem is logged and recovery continues.
func (r *Recovery) Run(ctx context.Context) (Report, error) {
	var rep Report
	now := r.Clock.Now()
	staleness := r.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}

	if err := r.Notifications.DismissAll(); err != nil {
		r.Log.Warn().Err(err).Msg("failed to clear leftover notifications")
	}

	active, ok, err := r.Registry.Active(ctx)
	if err != nil {
		return rep, fmt.Errorf("load active alarm: %w", err)
	}
	if ok {
		age := now.Sub(active.Since)
		if !active.Since.IsZero() && age >= 0 && age < staleness {
			rep.Restored = &active
			r.Log.Info().Int("alarm_id", active.AlarmID).Dur("age", age).Msg("restoring active alarm")
			r.Coordinator.Trigger(ctx, lifecycle.Request{
				AlarmID:     active.AlarmID,
				SoundID:     active.SoundID,
				NFCRequired: active.NFCRequired,
			})
		} else {
			rep.Expired = &active
			r.Log.Info().Int("alarm_id", active.AlarmID).Dur("age", age).Msg("active alarm too old, clearing")
			if err := r.Registry.ClearActive(ctx); err != nil {
				return rep, err
			}
		}
	}

	entries, bad, err := r.Registry.LoadAll(ctx)
	if err != nil {
		return rep, fmt.Errorf("load alarms: %w", err)
	}
	rep.Corrupt = len(bad)
	rep.CorruptErrs = bad
	for _, e := range bad {
		r.Log.Warn().Err(e).Msg("skipping corrupt alarm entry")
	}

	// Rewriting the list also discards the corrupt entries.
	dropped, err := r.Registry.RemoveIf(ctx, func(e registry.Entry) bool {
		return !e.TriggerTime.After(now)
	})
	if err != nil {
		return rep, fmt.Errorf("drop past alarms: %w", err)
	}
	rep.Dropped = dropped
	for _, e := range dropped {
		r.Log.Info().Int("alarm_id", e.AlarmID).Time("at", e.TriggerTime).Msg("dropping past alarm")
	}

	for _, e := range entries {
		if !e.TriggerTime.After(now) {
			continue
		}
		r.Scheduler.ScheduleExact(e)
		rep.Rearmed = append(rep.Rearmed, e)
		r.Log.Debug().Int("alarm_id", e.AlarmID).Time("at", e.TriggerTime).Msg("re-armed alarm")
	}

	metrics.RecordRecovery("rearmed", len(rep.Rearmed))
	metrics.RecordRecovery("dropped", len(rep.Dropped))
	metrics.RecordRecovery("corrupt", rep.Corrupt)
	if rep.Restored != nil {
		metrics.RecordRecovery("restored", 1)
	}
	if rep.Expired != nil {
		metrics.RecordRecovery("expired", 1)
	}

	r.Log.Info().Int("rearmed", len(rep.Rearmed)).Int("dropped", len(rep.Dropped)).
		Int("corrupt", rep.Corrupt).Bool("restored", rep.Restored != nil).Msg("boot recovery complete")
	return rep, nil
}
