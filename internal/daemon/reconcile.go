package daemon

import (
	"context"
	"fmt"

	"alarmclock/internal/lifecycle"
	"alarmclock/internal/metrics"
	"alarmclock/internal/registry"
)

// ReconcileReport lists what Reconcile changed, by alarm id.
type ReconcileReport struct {
	Armed     []int
	Cancelled []int
	Dropped   []int
	Corrupt   int
}

// Changed reports whether the scheduler or registry was touched.
func (r ReconcileReport) Changed() bool {
	return len(r.Armed)+len(r.Cancelled)+len(r.Dropped) > 0
}

// Reconcile aligns the scheduler with the registry after another process
// wrote to it. Future entries that are new or changed are armed, armed ids no
// longer persisted are cancelled and past entries are dropped. A past entry
// still armed at its persisted instant is left for the scheduler to fire.
func (d *Daemon) Reconcile(ctx context.Context) (ReconcileReport, error) {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	var rep ReconcileReport
	now := d.clock.Now()

	_, corrupt, err := d.reg.LoadAll(ctx)
	if err != nil {
		return rep, fmt.Errorf("load alarms: %w", err)
	}
	rep.Corrupt = len(corrupt)
	for _, cerr := range corrupt {
		d.log.Warn().Err(cerr).Msg("skipping corrupt alarm entry")
	}

	dropped, err := d.reg.RemoveIf(ctx, func(e registry.Entry) bool {
		if e.TriggerTime.After(now) {
			return false
		}
		armed, ok := d.sched.Armed(e.AlarmID)
		return !ok || !armed.TriggerTime.Equal(e.TriggerTime)
	})
	if err != nil {
		return rep, fmt.Errorf("drop past alarms: %w", err)
	}
	for _, e := range dropped {
		d.sched.Cancel(e.AlarmID)
		rep.Dropped = append(rep.Dropped, e.AlarmID)
		d.log.Info().Int("alarm_id", e.AlarmID).Time("at", e.TriggerTime).Msg("dropping past alarm")
	}

	entries, _, err := d.reg.LoadAll(ctx)
	if err != nil {
		return rep, fmt.Errorf("reload alarms: %w", err)
	}
	persisted := make(map[int]bool, len(entries))
	for _, e := range entries {
		persisted[e.AlarmID] = true
		if !e.TriggerTime.After(now) {
			continue
		}
		if armed, ok := d.sched.Armed(e.AlarmID); ok && sameEntry(armed, e) {
			continue
		}
		d.sched.ScheduleExact(e)
		rep.Armed = append(rep.Armed, e.AlarmID)
	}

	for _, e := range d.sched.Pending() {
		if persisted[e.AlarmID] {
			continue
		}
		// The list may have been written since it was loaded.
		if _, ok, err := d.reg.Get(ctx, e.AlarmID); err != nil || ok {
			continue
		}
		if d.sched.Cancel(e.AlarmID) {
			rep.Cancelled = append(rep.Cancelled, e.AlarmID)
		}
	}

	metrics.RecordSchedule("reconcile", nil)
	if rep.Changed() {
		d.log.Info().
			Ints("armed", rep.Armed).
			Ints("cancelled", rep.Cancelled).
			Ints("dropped", rep.Dropped).
			Msg("scheduler reconciled with registry")
	}
	return rep, nil
}

func sameEntry(a, b registry.Entry) bool {
	return a.AlarmID == b.AlarmID &&
		a.SoundID == b.SoundID &&
		a.NFCRequired == b.NFCRequired &&
		a.TriggerTime.Equal(b.TriggerTime)
}

// ProcessPending consumes the pending action left by another process, if
// any, and applies it to the coordinator. It reports whether an action was
// taken from the store.
func (d *Daemon) ProcessPending(ctx context.Context) (registry.Pending, bool, error) {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	p, ok, err := d.reg.TakePending(ctx)
	if err != nil {
		metrics.RecordPendingAction("invalid", err)
		return p, false, fmt.Errorf("take pending action: %w", err)
	}
	if !ok {
		return p, false, nil
	}

	err = d.apply(ctx, p)
	metrics.RecordPendingAction(string(p.Action), err)
	if err != nil {
		d.log.Warn().Err(err).Str("action", string(p.Action)).Int("alarm_id", p.AlarmID).Msg("pending action failed")
		return p, true, err
	}
	d.log.Info().Str("action", string(p.Action)).Int("alarm_id", p.AlarmID).Msg("pending action applied")
	return p, true, nil
}

func (d *Daemon) apply(ctx context.Context, p registry.Pending) error {
	switch p.Action {
	case registry.ActionStop:
		var stopped bool
		if p.AlarmID < 0 {
			stopped = d.coord.StopActive(ctx)
		} else {
			stopped = d.coord.Stop(ctx, p.AlarmID)
		}
		if !stopped {
			d.log.Debug().Int("alarm_id", p.AlarmID).Msg("stop requested but nothing was ringing")
		}
		return nil

	case registry.ActionSnooze:
		id, soundID := p.AlarmID, p.SoundID
		if id < 0 {
			active, ok := d.coord.ActiveAlarmID()
			if !ok {
				return fmt.Errorf("snooze: no alarm is ringing")
			}
			id, soundID = active, d.coord.ActiveSoundID()
		}
		if !d.coord.Snooze(ctx, id, soundID) {
			return fmt.Errorf("snooze alarm %d failed", id)
		}
		return nil

	case registry.ActionTrigger:
		if p.AlarmID < 0 {
			return fmt.Errorf("trigger: missing alarm id")
		}
		req := lifecycle.Request{AlarmID: p.AlarmID, SoundID: p.SoundID}
		if e, ok, err := d.reg.Get(ctx, p.AlarmID); err == nil && ok {
			req.NFCRequired = e.NFCRequired
		}
		outcome := d.coord.Trigger(ctx, req)
		if outcome == lifecycle.OutcomeRejected {
			return fmt.Errorf("trigger alarm %d rejected", p.AlarmID)
		}
		return nil

	default:
		return fmt.Errorf("unhandled pending action %q", p.Action)
	}
}

// Sync consumes any pending action and then reconciles. It is what the
// watcher runs after the store changes.
func (d *Daemon) Sync(ctx context.Context) error {
	if _, _, err := d.ProcessPending(ctx); err != nil {
		d.log.Warn().Err(err).Msg("pending action not applied")
	}
	_, err := d.Reconcile(ctx)
	return err
}
