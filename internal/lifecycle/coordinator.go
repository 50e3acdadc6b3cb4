// Package lifecycle runs the single-alarm state machine: Idle and Active,
// with duplicate-trigger suppression, a safety timeout and a full release
// of resources on every way out of Active.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"alarmclock/internal/clock"
	"alarmclock/internal/metrics"
	"alarmclock/internal/registry"
)

// Config holds the lifecycle timings.
type Config struct {
	DedupWindow             time.Duration
	SafetyTimeout           time.Duration
	SnoozeDelay             time.Duration
	SecondStopDelay         time.Duration
	DefaultVolume           int
	RearmVibrationOnRefresh bool
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		DedupWindow:             3 * time.Second,
		SafetyTimeout:           15 * time.Minute,
		SnoozeDelay:             5 * time.Minute,
		SecondStopDelay:         300 * time.Millisecond,
		DefaultVolume:           registry.DefaultVolume,
		RearmVibrationOnRefresh: false,
	}
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Registry      *registry.Registry
	Resources     Resources
	Notifications Notifications
	Sound         Sound
	Scheduler     Scheduler
	Clock         clock.Clock
	Log           zerolog.Logger
}

// activation is one Idle to Active transition.
type activation struct {
	id          string
	gen         uint64
	alarmID     int
	soundID     int
	nfcRequired bool
	since       time.Time
	lastTrigger time.Time
}

// Coordinator owns the Active alarm. All transitions hold mu; active is the
// flag that exactly one stopper may clear.
type Coordinator struct {
	cfg   Config
	reg   *registry.Registry
	res   Resources
	notes Notifications
	sound Sound
	sched Scheduler
	clock clock.Clock
	log   zerolog.Logger

	mu      sync.Mutex
	active  atomic.Bool
	cur     activation
	gen     uint64
	timeout clock.Timer
}

// New returns an Idle Coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Coordinator{
		cfg:   cfg,
		reg:   deps.Registry,
		res:   deps.Resources,
		notes: deps.Notifications,
		sound: deps.Sound,
		sched: deps.Scheduler,
		clock: clk,
		log:   deps.Log,
	}
}

// Trigger delivers an alarm. See Outcome for the possible results.
func (c *Coordinator) Trigger(ctx context.Context, req Request) (outcome Outcome) {
	defer c.recoverBoundary("trigger", func() { outcome = OutcomeRejected })

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	if c.active.Load() && c.cur.alarmID == req.AlarmID {
		if since := now.Sub(c.cur.lastTrigger); since < c.cfg.DedupWindow {
			c.log.Debug().Int("alarm_id", req.AlarmID).Dur("since_last", since).
				Msg("duplicate trigger ignored")
			metrics.RecordTrigger(OutcomeDuplicate.String())
			return OutcomeDuplicate
		}
		c.cur.lastTrigger = now
		c.refreshLocked(ctx, c.cur)
		metrics.RecordTrigger(OutcomeRefreshed.String())
		return OutcomeRefreshed
	}

	if c.active.CompareAndSwap(true, false) {
		c.log.Info().Int("alarm_id", c.cur.alarmID).Int("next_alarm_id", req.AlarmID).
			Msg("preempting active alarm")
		c.releaseLocked(ctx, ReasonPreempted)
	}

	c.activateLocked(ctx, req, now)
	metrics.RecordTrigger(OutcomeActivated.String())
	return OutcomeActivated
}

func (c *Coordinator) activateLocked(ctx context.Context, req Request, now time.Time) {
	c.gen++
	act := activation{
		id:          uuid.NewString(),
		gen:         c.gen,
		alarmID:     req.AlarmID,
		soundID:     req.SoundID,
		nfcRequired: req.NFCRequired,
		since:       now,
		lastTrigger: now,
	}
	if act.soundID <= 0 {
		act.soundID = registry.DefaultSoundID
	}
	c.cur = act
	c.active.Store(true)

	gen := act.gen
	c.timeout = c.clock.AfterFunc(c.cfg.SafetyTimeout, func() { c.onTimeout(gen) })

	log := c.log.With().Int("alarm_id", act.alarmID).Str("activation", act.id).Logger()
	log.Info().Int("sound_id", act.soundID).Bool("nfc", act.nfcRequired).Msg("alarm activated")
	metrics.RecordActivation()

	c.res.AcquireAll(ctx)
	if err := c.notes.ShowAlarm(act.alarmID, act.nfcRequired); err != nil {
		log.Warn().Err(err).Msg("alarm notification failed")
	}
	c.sound.Start(ctx, act.alarmID, act.soundID, c.reg.Volume(ctx, c.cfg.DefaultVolume))

	err := c.reg.SetActive(ctx, registry.Active{
		AlarmID:     act.alarmID,
		SoundID:     act.soundID,
		NFCRequired: act.nfcRequired,
		Since:       act.since,
		Activation:  act.id,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to persist active alarm")
	}

	// The entry that came due leaves the schedule. A later entry for the same
	// id, such as tomorrow's occurrence, stays armed.
	_, err = c.reg.RemoveIf(ctx, func(e registry.Entry) bool {
		return e.AlarmID == act.alarmID && !e.TriggerTime.After(now)
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to remove fired alarm from registry")
	}
	if _, later, err := c.reg.Get(ctx, act.alarmID); err != nil || !later {
		c.sched.Cancel(act.alarmID)
	}
}

// refreshLocked re-asserts outward signals for the alarm already ringing.
// It runs under mu so a concurrent Stop cannot be undone by it.
func (c *Coordinator) refreshLocked(ctx context.Context, act activation) {
	c.log.Info().Int("alarm_id", act.alarmID).Str("activation", act.id).
		Bool("rearm_vibration", c.cfg.RearmVibrationOnRefresh).Msg("alarm refreshed")

	if err := c.notes.ShowAlarm(act.alarmID, act.nfcRequired); err != nil {
		c.log.Warn().Err(err).Int("alarm_id", act.alarmID).Msg("alarm notification failed")
	}
	c.sound.Start(ctx, act.alarmID, act.soundID, c.reg.Volume(ctx, c.cfg.DefaultVolume))
	if c.cfg.RearmVibrationOnRefresh {
		c.res.RefreshVibration(ctx)
	}
}

// Stop stops alarmID if it is the Active alarm. It reports whether this
// call performed the stop.
func (c *Coordinator) Stop(ctx context.Context, alarmID int) (stopped bool) {
	defer c.recoverBoundary("stop", func() { stopped = false })
	return c.stop(ctx, alarmID, true, ReasonUser)
}

// StopActive stops whatever alarm is Active.
func (c *Coordinator) StopActive(ctx context.Context) (stopped bool) {
	defer c.recoverBoundary("stop", func() { stopped = false })
	return c.stop(ctx, 0, false, ReasonUser)
}

func (c *Coordinator) stop(ctx context.Context, alarmID int, match bool, reason Reason) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if match && c.active.Load() && c.cur.alarmID != alarmID {
		c.log.Debug().Int("alarm_id", alarmID).Int("active_alarm_id", c.cur.alarmID).
			Msg("stop for an alarm that is not active")
		return false
	}
	if !c.active.CompareAndSwap(true, false) {
		c.log.Debug().Int("alarm_id", alarmID).Msg("stop while idle")
		return false
	}
	c.releaseLocked(ctx, reason)
	return true
}

// releaseLocked tears down the current activation. The caller has already
// cleared the active flag.
func (c *Coordinator) releaseLocked(ctx context.Context, reason Reason) {
	act := c.cur
	c.cur = activation{}
	if c.timeout != nil {
		c.timeout.Stop()
		c.timeout = nil
	}

	log := c.log.With().Int("alarm_id", act.alarmID).Str("activation", act.id).Logger()

	if err := c.res.ReleaseAll(); err != nil {
		log.Warn().Err(err).Msg("some resources failed to release")
	}
	c.sound.StopAlarm(act.alarmID)
	c.clock.AfterFunc(c.cfg.SecondStopDelay, func() { c.secondStop(act) })

	if err := c.notes.Dismiss(act.alarmID); err != nil {
		log.Warn().Err(err).Msg("failed to dismiss alarm notification")
	}
	if err := c.reg.ClearActive(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear active alarm")
	}

	rang := c.clock.Now().Sub(act.since)
	metrics.RecordStop(string(reason), rang)
	log.Info().Str("reason", string(reason)).Dur("rang", rang).Msg("alarm stopped")
}

// secondStop repeats the sound stop once, unless the same alarm is ringing
// again by then.
func (c *Coordinator) secondStop(act activation) {
	c.mu.Lock()
	ringing := c.active.Load() && c.cur.alarmID == act.alarmID
	c.mu.Unlock()
	if !ringing {
		c.sound.StopAlarm(act.alarmID)
	}
}

func (c *Coordinator) onTimeout(gen uint64) {
	defer c.recoverBoundary("timeout", nil)

	alarmID, fired := c.expire(gen)
	if !fired {
		return
	}
	if err := c.notes.ShowTimeout(alarmID, c.cfg.SafetyTimeout); err != nil {
		c.log.Warn().Err(err).Int("alarm_id", alarmID).Msg("timeout notification failed")
	}
}

// expire stops the activation numbered gen if it is still the Active one.
func (c *Coordinator) expire(gen uint64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active.Load() || c.cur.gen != gen {
		return 0, false
	}
	if !c.active.CompareAndSwap(true, false) {
		return 0, false
	}
	alarmID := c.cur.alarmID
	c.log.Warn().Int("alarm_id", alarmID).Dur("after", c.cfg.SafetyTimeout).Msg("safety timeout reached")
	c.releaseLocked(context.Background(), ReasonTimeout)
	return alarmID, true
}

// Snooze stops alarmID and schedules it again after the snooze delay.
// The snoozed alarm does not require NFC.
func (c *Coordinator) Snooze(ctx context.Context, alarmID, soundID int) (ok bool) {
	defer c.recoverBoundary("snooze", func() { ok = false })

	c.stop(ctx, alarmID, true, ReasonSnooze)
	at := c.clock.Now().Add(c.cfg.SnoozeDelay)
	c.log.Info().Int("alarm_id", alarmID).Time("at", at).Msg("alarm snoozed")
	return c.schedule(ctx, ScheduleRequest{AlarmID: alarmID, SoundID: soundID, At: at})
}

// Schedule persists req and arms it.
func (c *Coordinator) Schedule(ctx context.Context, req ScheduleRequest) (ok bool) {
	defer c.recoverBoundary("schedule", func() { ok = false })
	return c.schedule(ctx, req)
}

func (c *Coordinator) schedule(ctx context.Context, req ScheduleRequest) bool {
	if req.AlarmID < 0 {
		c.log.Warn().Int("alarm_id", req.AlarmID).Msg("refusing negative alarm id")
		metrics.RecordSchedule("schedule", fmt.Errorf("negative alarm id %d", req.AlarmID))
		return false
	}
	if req.SoundID <= 0 {
		req.SoundID = registry.DefaultSoundID
	}
	entry := registry.Entry{
		AlarmID:     req.AlarmID,
		SoundID:     req.SoundID,
		TriggerTime: req.At,
		NFCRequired: req.NFCRequired,
	}

	err := c.reg.Put(ctx, entry)
	metrics.RecordSchedule("schedule", err)
	if err != nil {
		c.log.Error().Err(err).Int("alarm_id", req.AlarmID).Msg("failed to persist alarm")
		return false
	}
	// Re-read so the armed instant is exactly the persisted one.
	if stored, ok, err := c.reg.Get(ctx, req.AlarmID); err == nil && ok {
		entry = stored
	}
	c.sched.ScheduleExact(entry)
	c.log.Info().Int("alarm_id", entry.AlarmID).Int("sound_id", entry.SoundID).
		Time("at", entry.TriggerTime).Bool("nfc", entry.NFCRequired).Msg("alarm scheduled")
	return true
}

// Cancel disarms alarmID and removes it from the registry. If alarmID is
// ringing it is stopped. Cancelling an unknown id succeeds.
func (c *Coordinator) Cancel(ctx context.Context, alarmID int) (ok bool) {
	defer c.recoverBoundary("cancel", func() { ok = false })

	c.sched.Cancel(alarmID)
	err := c.reg.Remove(ctx, alarmID)
	metrics.RecordSchedule("cancel", err)
	if c.IsActive(alarmID) {
		c.stop(ctx, alarmID, true, ReasonCancel)
	}
	if err != nil {
		c.log.Error().Err(err).Int("alarm_id", alarmID).Msg("failed to cancel alarm")
		return false
	}
	c.log.Info().Int("alarm_id", alarmID).Msg("alarm cancelled")
	return true
}

// Deliver adapts a due registry entry into a trigger.
func (c *Coordinator) Deliver(e registry.Entry) {
	c.Trigger(context.Background(), Request{
		AlarmID:     e.AlarmID,
		SoundID:     e.SoundID,
		NFCRequired: e.NFCRequired,
	})
}

// IsActive reports whether alarmID is ringing.
func (c *Coordinator) IsActive(alarmID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.Load() && c.cur.alarmID == alarmID
}

// ActiveAlarmID returns the ringing alarm, if any.
func (c *Coordinator) ActiveAlarmID() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active.Load() {
		return 0, false
	}
	return c.cur.alarmID, true
}

// ActiveSoundID returns the sound of the ringing alarm, or 1 when idle.
func (c *Coordinator) ActiveSoundID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active.Load() {
		return registry.DefaultSoundID
	}
	return c.cur.soundID
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active.Load() {
		return Snapshot{}
	}
	return Snapshot{
		Active:      true,
		AlarmID:     c.cur.alarmID,
		SoundID:     c.cur.soundID,
		NFCRequired: c.cur.nfcRequired,
		Since:       c.cur.since,
		Activation:  c.cur.id,
		Resources:   c.res.HeldKinds(),
	}
}

// SetVolume persists the playback volume and applies it to the ringing
// alarm.
func (c *Coordinator) SetVolume(ctx context.Context, pct int) (int, error) {
	stored, err := c.reg.SetVolume(ctx, pct)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	act, ringing := c.cur, c.active.Load()
	c.mu.Unlock()
	if ringing {
		c.sound.Start(ctx, act.alarmID, act.soundID, stored)
	}
	return stored, nil
}

// recoverBoundary keeps panics inside the coordinator from reaching the
// caller. onPanic sets the return value.
func (c *Coordinator) recoverBoundary(op string, onPanic func()) {
	if r := recover(); r != nil {
		c.log.Error().Str("op", op).Interface("panic", r).Msg("recovered panic in alarm lifecycle")
		if onPanic != nil {
			onPanic()
		}
	}
}
