// Package ui provides the terminal console for alarmclock.
// This file defines message types for engine operations using the Bubble Tea
// command pattern. Every engine call returns one of these messages to keep
// the event loop non-blocking.
package ui

import (
	"time"

	"alarmclock/internal/lifecycle"
	"alarmclock/internal/registry"
)

// tickMsg is sent every second to refresh the clock and the ringing state.
type tickMsg time.Time

// alarmsLoadedMsg is sent when the scheduled alarms are read.
type alarmsLoadedMsg struct {
	alarms   []registry.Entry
	snapshot lifecycle.Snapshot
	volume   int
	err      error
}

// alarmScheduledMsg is sent when an alarm is added.
type alarmScheduledMsg struct {
	entry registry.Entry
	err   error
}

// alarmCancelledMsg is sent when an alarm is removed.
type alarmCancelledMsg struct {
	entry registry.Entry // full entry for restoration on undo
	err   error
}

// alarmStoppedMsg is sent after a stop attempt.
type alarmStoppedMsg struct {
	alarmID int
	stopped bool
}

// alarmSnoozedMsg is sent after a snooze attempt.
type alarmSnoozedMsg struct {
	alarmID int
	until   time.Time
	ok      bool
}

// volumeChangedMsg is sent when the volume is stored.
type volumeChangedMsg struct {
	volume int
	err    error
}

// undoResultMsg is sent when an undo operation completes.
type undoResultMsg struct {
	desc string
	err  error
}

// redoResultMsg is sent when a redo operation completes.
type redoResultMsg struct {
	desc string
	err  error
}
