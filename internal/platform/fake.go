package platform

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInjected is the error returned by Fake for injected failures.
var ErrInjected = errors.New("platform: injected failure")

// Fake records every acquisition and release and can be told to fail.
// Use Fake.Host to plug it in where a Host is expected.
type Fake struct {
	mu           sync.Mutex
	hasVibrator  bool
	failAcquire  map[Kind]int
	failRelease  map[Kind]bool
	panicRelease map[Kind]bool
	acquired     map[Kind]int
	released     map[Kind]int
	held         map[Kind]int
	patterns     [][]time.Duration
	cancels      int
}

// NewFake returns a Fake with a vibrator present.
func NewFake() *Fake {
	return &Fake{
		hasVibrator:  true,
		failAcquire:  make(map[Kind]int),
		failRelease:  make(map[Kind]bool),
		panicRelease: make(map[Kind]bool),
		acquired:     make(map[Kind]int),
		released:     make(map[Kind]int),
		held:         make(map[Kind]int),
	}
}

// Host returns a Host backed by f.
func (f *Fake) Host() Host {
	return Host{
		Power:      fakePower{f},
		Audio:      fakeAudio{f},
		Vibrator:   fakeVibrator{f},
		Foreground: fakeForeground{f},
	}
}

// SetHasVibrator toggles vibrator presence.
func (f *Fake) SetHasVibrator(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasVibrator = v
}

// FailAcquire makes the next n acquisitions of kind fail.
func (f *Fake) FailAcquire(kind Kind, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAcquire[kind] = n
}

// FailRelease makes releases of kind return an error.
func (f *Fake) FailRelease(kind Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRelease[kind] = true
}

// PanicOnRelease makes releases of kind panic.
func (f *Fake) PanicOnRelease(kind Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicRelease[kind] = true
}

// Acquired returns how many times kind was successfully acquired.
func (f *Fake) Acquired(kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired[kind]
}

// Released returns how many releases of kind were attempted.
func (f *Fake) Released(kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[kind]
}

// Held returns the number of outstanding handles of kind.
func (f *Fake) Held(kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[kind]
}

// HeldAny reports whether any kind is still held.
func (f *Fake) HeldAny() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.held {
		if n > 0 {
			return true
		}
	}
	return false
}

// Vibrations returns how many times a pattern was issued.
func (f *Fake) Vibrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patterns)
}

// LastPattern returns the most recently issued pattern.
func (f *Fake) LastPattern() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.patterns) == 0 {
		return nil
	}
	return f.patterns[len(f.patterns)-1]
}

func (f *Fake) acquire(kind Kind) (Releaser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAcquire[kind] > 0 {
		f.failAcquire[kind]--
		return nil, ErrInjected
	}
	f.acquired[kind]++
	f.held[kind]++

	var once sync.Once
	return ReleaseFunc(func() error {
		var err error
		once.Do(func() { err = f.release(kind) })
		return err
	}), nil
}

func (f *Fake) release(kind Kind) error {
	f.mu.Lock()
	f.released[kind]++
	f.held[kind]--
	fail, panics := f.failRelease[kind], f.panicRelease[kind]
	f.mu.Unlock()

	if panics {
		panic("platform: injected release panic for " + string(kind))
	}
	if fail {
		return ErrInjected
	}
	return nil
}

type fakePower struct{ f *Fake }

func (p fakePower) AcquireWakeLock(context.Context, string, time.Duration) (Releaser, error) {
	return p.f.acquire(WakeLock)
}

type fakeAudio struct{ f *Fake }

func (a fakeAudio) RequestFocus(context.Context) (Releaser, error) {
	return a.f.acquire(AudioFocus)
}

type fakeForeground struct{ f *Fake }

func (g fakeForeground) Begin(context.Context, string, time.Duration) (Releaser, error) {
	return g.f.acquire(Foreground)
}

// fakeVibrator counts the vibration session itself as one held handle
// between the first Vibrate and Cancel.
type fakeVibrator struct{ f *Fake }

func (v fakeVibrator) HasVibrator() bool {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	return v.f.hasVibrator
}

func (v fakeVibrator) Vibrate(pattern []time.Duration) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if !v.f.hasVibrator {
		return ErrUnsupported
	}
	if v.f.failAcquire[Vibration] > 0 {
		v.f.failAcquire[Vibration]--
		return ErrInjected
	}
	v.f.patterns = append(v.f.patterns, append([]time.Duration(nil), pattern...))
	if v.f.held[Vibration] == 0 {
		v.f.acquired[Vibration]++
		v.f.held[Vibration] = 1
	}
	return nil
}

func (v fakeVibrator) Cancel() error {
	v.f.mu.Lock()
	v.f.cancels++
	v.f.released[Vibration]++
	v.f.held[Vibration] = 0
	fail, panics := v.f.failRelease[Vibration], v.f.panicRelease[Vibration]
	v.f.mu.Unlock()

	if panics {
		panic("platform: injected release panic for vibration")
	}
	if fail {
		return ErrInjected
	}
	return nil
}
