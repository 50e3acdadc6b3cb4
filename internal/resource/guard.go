// Package resource owns the host primitives held while an alarm rings.
//
// Each kind has its own safety ceiling after which it is released even if
// nobody stops the alarm. Acquisition failures are retried on the clock a
// bounded number of times. Releasing one kind never prevents the release of
// another.
package resource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alarmclock/internal/clock"
	"alarmclock/internal/platform"
)

// Config holds ceilings and retry behaviour.
type Config struct {
	WakeLockCeiling   time.Duration
	ForegroundCeiling time.Duration
	AudioFocusCeiling time.Duration
	VibrationCeiling  time.Duration
	VibrationInterval time.Duration
	VibrationPattern  []time.Duration
	RetryDelay        time.Duration
	MaxAttempts       int
}

// DefaultVibrationPattern alternates off/on with growing pulses.
var DefaultVibrationPattern = []time.Duration{
	0,
	500 * time.Millisecond, 500 * time.Millisecond,
	600 * time.Millisecond, 600 * time.Millisecond,
	700 * time.Millisecond, 700 * time.Millisecond,
	800 * time.Millisecond, 800 * time.Millisecond,
}

// DefaultConfig returns the stock ceilings.
func DefaultConfig() Config {
	return Config{
		WakeLockCeiling:   10 * time.Minute,
		ForegroundCeiling: 25 * time.Minute,
		AudioFocusCeiling: 30 * time.Minute,
		VibrationCeiling:  15 * time.Minute,
		VibrationInterval: 5 * time.Second,
		VibrationPattern:  slices.Clone(DefaultVibrationPattern),
		RetryDelay:        time.Second,
		MaxAttempts:       3,
	}
}

// Ceiling returns the configured ceiling for kind.
func (c Config) Ceiling(kind platform.Kind) time.Duration {
	switch kind {
	case platform.WakeLock:
		return c.WakeLockCeiling
	case platform.Foreground:
		return c.ForegroundCeiling
	case platform.AudioFocus:
		return c.AudioFocusCeiling
	case platform.Vibration:
		return c.VibrationCeiling
	default:
		return 0
	}
}

// Recorder receives failure counts. It may be nil.
type Recorder interface {
	ResourceFailure(kind platform.Kind, op string)
}

// slot is one kind's state. A slot with no handle and a retry timer is
// waiting to re-attempt acquisition.
type slot struct {
	handle   platform.Releaser
	vibrate  bool
	attempts int
	ceiling  clock.Timer
	retry    clock.Timer
	refresh  clock.Timer
}

func (s *slot) held() bool { return s.handle != nil || s.vibrate }

func (s *slot) stopTimers() {
	for _, t := range []clock.Timer{s.ceiling, s.retry, s.refresh} {
		if t != nil {
			t.Stop()
		}
	}
	s.ceiling, s.retry, s.refresh = nil, nil, nil
}

// Guard holds at most one handle per kind.
type Guard struct {
	cfg   Config
	host  platform.Host
	clock clock.Clock
	log   zerolog.Logger
	rec   Recorder

	mu    sync.Mutex
	slots map[platform.Kind]*slot
}

// NewGuard returns a Guard over host.
func NewGuard(cfg Config, host platform.Host, clk clock.Clock, log zerolog.Logger, rec Recorder) *Guard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Guard{
		cfg:   cfg,
		host:  host,
		clock: clk,
		log:   log,
		rec:   rec,
		slots: make(map[platform.Kind]*slot),
	}
}

// AcquireAll acquires every kind. Failures are retried in the background
// and never returned.
func (g *Guard) AcquireAll(ctx context.Context) {
	for _, kind := range platform.Kinds {
		g.Acquire(ctx, kind)
	}
}

// Acquire takes kind unless it is already held or pending a retry.
func (g *Guard) Acquire(ctx context.Context, kind platform.Kind) {
	g.mu.Lock()
	if _, ok := g.slots[kind]; ok {
		g.mu.Unlock()
		return
	}
	s := &slot{}
	g.slots[kind] = s
	g.mu.Unlock()

	g.attempt(context.WithoutCancel(ctx), kind, s)
}

// attempt runs one acquisition for s, which must still be the current slot
// for kind when the result is installed.
func (g *Guard) attempt(ctx context.Context, kind platform.Kind, s *slot) {
	if kind == platform.Vibration && !g.host.Vibrator.HasVibrator() {
		g.mu.Lock()
		if g.slots[kind] == s {
			delete(g.slots, kind)
		}
		g.mu.Unlock()
		g.log.Debug().Str("kind", string(kind)).Msg("no vibrator, skipping")
		return
	}

	handle, err := g.open(ctx, kind)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots[kind] != s {
		// Released while acquiring.
		if err == nil && handle != nil {
			go func() { _ = safeRelease(handle.Release) }()
		}
		return
	}

	s.attempts++
	if err != nil {
		g.failure(kind, "acquire")
		if s.attempts >= g.cfg.MaxAttempts {
			delete(g.slots, kind)
			g.log.Warn().Err(err).Str("kind", string(kind)).Int("attempts", s.attempts).
				Msg("giving up on resource")
			return
		}
		g.log.Warn().Err(err).Str("kind", string(kind)).Int("attempt", s.attempts).
			Dur("retry_in", g.cfg.RetryDelay).Msg("resource acquisition failed, retrying")
		s.retry = g.clock.AfterFunc(g.cfg.RetryDelay, func() {
			g.mu.Lock()
			current := g.slots[kind] == s
			if current {
				s.retry = nil
			}
			g.mu.Unlock()
			if current {
				g.attempt(ctx, kind, s)
			}
		})
		return
	}

	if kind == platform.Vibration {
		s.vibrate = true
		g.scheduleRefreshLocked(s)
	} else {
		s.handle = handle
	}
	ceiling := g.cfg.Ceiling(kind)
	s.ceiling = g.clock.AfterFunc(ceiling, func() { g.expire(kind, s) })
	g.log.Debug().Str("kind", string(kind)).Dur("ceiling", ceiling).Msg("resource acquired")
}

func (g *Guard) open(ctx context.Context, kind platform.Kind) (platform.Releaser, error) {
	switch kind {
	case platform.WakeLock:
		return g.host.Power.AcquireWakeLock(ctx, "alarmclock:alarm", g.cfg.WakeLockCeiling)
	case platform.Foreground:
		return g.host.Foreground.Begin(ctx, "alarm", g.cfg.ForegroundCeiling)
	case platform.AudioFocus:
		return g.host.Audio.RequestFocus(ctx)
	case platform.Vibration:
		return nil, g.host.Vibrator.Vibrate(g.cfg.VibrationPattern)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}

// scheduleRefreshLocked re-issues the vibration pattern every interval
// until the slot is released.
func (g *Guard) scheduleRefreshLocked(s *slot) {
	s.refresh = g.clock.AfterFunc(g.cfg.VibrationInterval, func() {
		g.mu.Lock()
		if g.slots[platform.Vibration] != s || !s.vibrate {
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		if err := g.host.Vibrator.Vibrate(g.cfg.VibrationPattern); err != nil {
			g.failure(platform.Vibration, "refresh")
			g.log.Warn().Err(err).Msg("vibration re-issue failed")
		}

		g.mu.Lock()
		if g.slots[platform.Vibration] == s && s.vibrate {
			g.scheduleRefreshLocked(s)
		}
		g.mu.Unlock()
	})
}

// RefreshVibration re-issues the pattern now and restarts the interval, or
// acquires vibration if it is not held.
func (g *Guard) RefreshVibration(ctx context.Context) {
	g.mu.Lock()
	s, ok := g.slots[platform.Vibration]
	if !ok {
		g.mu.Unlock()
		g.Acquire(ctx, platform.Vibration)
		return
	}
	if !s.vibrate {
		g.mu.Unlock()
		return
	}
	if s.refresh != nil {
		s.refresh.Stop()
	}
	g.scheduleRefreshLocked(s)
	g.mu.Unlock()

	if err := g.host.Vibrator.Vibrate(g.cfg.VibrationPattern); err != nil {
		g.failure(platform.Vibration, "refresh")
		g.log.Warn().Err(err).Msg("vibration re-issue failed")
	}
}

func (g *Guard) expire(kind platform.Kind, s *slot) {
	g.mu.Lock()
	if g.slots[kind] != s {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	g.log.Info().Str("kind", string(kind)).Dur("ceiling", g.cfg.Ceiling(kind)).
		Msg("resource ceiling reached, releasing")
	if err := g.Release(kind); err != nil {
		g.log.Warn().Err(err).Str("kind", string(kind)).Msg("release after ceiling failed")
	}
}

// Release gives back kind and cancels any pending retry or refresh.
// Releasing a kind that is not held is a no-op.
func (g *Guard) Release(kind platform.Kind) error {
	g.mu.Lock()
	s, ok := g.slots[kind]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	delete(g.slots, kind)
	s.stopTimers()
	g.mu.Unlock()

	var err error
	switch {
	case s.vibrate:
		err = safeRelease(g.host.Vibrator.Cancel)
	case s.handle != nil:
		err = safeRelease(s.handle.Release)
	}
	if err != nil {
		g.failure(kind, "release")
		return fmt.Errorf("release %s: %w", kind, err)
	}
	return nil
}

// ReleaseAll releases every kind, in reverse acquisition order. Every kind
// is attempted; the joined error is for logging.
func (g *Guard) ReleaseAll() error {
	var errs []error
	for _, kind := range slices.Backward(platform.Kinds) {
		if err := g.Release(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Held reports whether kind currently holds a handle.
func (g *Guard) Held(kind platform.Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[kind]
	return ok && s.held()
}

// HeldKinds returns the kinds currently held, in acquisition order.
func (g *Guard) HeldKinds() []platform.Kind {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []platform.Kind
	for _, kind := range platform.Kinds {
		if s, ok := g.slots[kind]; ok && s.held() {
			out = append(out, kind)
		}
	}
	return out
}

func (g *Guard) failure(kind platform.Kind, op string) {
	if g.rec != nil {
		g.rec.ResourceFailure(kind, op)
	}
}

func safeRelease(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during release: %v", r)
		}
	}()
	return fn()
}
