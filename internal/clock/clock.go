// Package clock abstracts wall-clock reads and deferred callbacks so that
// every wait in the alarm lifecycle (safety timeout, vibration re-issue,
// acquisition retry, player restart) is a cancellable callback rather than
// a sleep, and so tests can drive time explicitly.
package clock

import "time"

// Clock provides the current time and deferred callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending deferred callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented the
	// callback from running.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
