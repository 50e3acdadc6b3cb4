// Package platform wraps the host primitives an Active alarm holds on to:
// a wake lock, audio focus, the vibrator and a foreground slot.
// It uses systemd-inhibit on Linux and caffeinate on macOS for the wake
// lock; the other primitives are process-local on desktop hosts.
package platform

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Kind identifies a resource held by an Active alarm.
type Kind string

const (
	WakeLock   Kind = "wake_lock"
	AudioFocus Kind = "audio_focus"
	Vibration  Kind = "vibration"
	Foreground Kind = "foreground"
)

// Kinds lists every kind in acquisition order.
var Kinds = []Kind{WakeLock, Foreground, AudioFocus, Vibration}

// ErrUnsupported is returned when the host lacks a primitive.
var ErrUnsupported = errors.New("platform: unsupported")

// Releaser gives back a held primitive. Release is safe to call twice.
type Releaser interface {
	Release() error
}

// ReleaseFunc adapts a function to Releaser.
type ReleaseFunc func() error

func (f ReleaseFunc) Release() error { return f() }

// Power keeps the host awake.
type Power interface {
	AcquireWakeLock(ctx context.Context, tag string, ceiling time.Duration) (Releaser, error)
}

// Audio grants exclusive playback focus.
type Audio interface {
	RequestFocus(ctx context.Context) (Releaser, error)
}

// Vibrator drives a haptic motor, when present.
type Vibrator interface {
	HasVibrator() bool
	Vibrate(pattern []time.Duration) error
	Cancel() error
}

// ForegroundHost marks the process as doing user-visible work.
type ForegroundHost interface {
	Begin(ctx context.Context, name string, ceiling time.Duration) (Releaser, error)
}

// Host bundles the primitives.
type Host struct {
	Power      Power
	Audio      Audio
	Vibrator   Vibrator
	Foreground ForegroundHost
}

// New returns the primitives available on this platform.
func New() Host {
	return Host{
		Power:      newPlatformPower(),
		Audio:      &localAudio{},
		Vibrator:   noVibrator{},
		Foreground: &localForeground{active: make(map[string]int)},
	}
}

// localAudio grants focus to one holder at a time; a new request takes it
// from the previous holder.
type localAudio struct {
	mu  sync.Mutex
	gen int
}

func (a *localAudio) RequestFocus(context.Context) (Releaser, error) {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	var once sync.Once
	return ReleaseFunc(func() error {
		once.Do(func() {
			a.mu.Lock()
			if a.gen == gen {
				a.gen++
			}
			a.mu.Unlock()
		})
		return nil
	}), nil
}

// localForeground counts outstanding foreground sessions by name.
type localForeground struct {
	mu     sync.Mutex
	active map[string]int
}

func (f *localForeground) Begin(_ context.Context, name string, _ time.Duration) (Releaser, error) {
	f.mu.Lock()
	f.active[name]++
	f.mu.Unlock()

	var once sync.Once
	return ReleaseFunc(func() error {
		once.Do(func() {
			f.mu.Lock()
			if f.active[name]--; f.active[name] <= 0 {
				delete(f.active, name)
			}
			f.mu.Unlock()
		})
		return nil
	}), nil
}

// noVibrator is the desktop vibrator.
type noVibrator struct{}

func (noVibrator) HasVibrator() bool              { return false }
func (noVibrator) Vibrate([]time.Duration) error { return ErrUnsupported }
func (noVibrator) Cancel() error                 { return nil }

// noopPower grants a wake lock that does nothing.
type noopPower struct{}

func (noopPower) AcquireWakeLock(context.Context, string, time.Duration) (Releaser, error) {
	return ReleaseFunc(func() error { return nil }), nil
}
