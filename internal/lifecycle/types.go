package lifecycle

import (
	"context"
	"time"

	"alarmclock/internal/platform"
	"alarmclock/internal/registry"
)

// Outcome is what a trigger did.
type Outcome int

const (
	OutcomeActivated Outcome = iota
	OutcomeRefreshed
	OutcomeDuplicate
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeActivated:
		return "activated"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Reason says why an alarm stopped.
type Reason string

const (
	ReasonUser      Reason = "user"
	ReasonSnooze    Reason = "snooze"
	ReasonTimeout   Reason = "timeout"
	ReasonPreempted Reason = "preempted"
	ReasonCancel    Reason = "cancel"
)

// Request is a trigger delivery.
type Request struct {
	AlarmID     int
	SoundID     int
	NFCRequired bool
}

// ScheduleRequest asks for an alarm at an absolute instant.
type ScheduleRequest struct {
	AlarmID     int
	SoundID     int
	At          time.Time
	NFCRequired bool
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	Active      bool
	AlarmID     int
	SoundID     int
	NFCRequired bool
	Since       time.Time
	Activation  string
	Resources   []platform.Kind
}

// Notifications is the outward notification channel.
type Notifications interface {
	ShowAlarm(alarmID int, nfcRequired bool) error
	ShowTimeout(alarmID int, after time.Duration) error
	Dismiss(alarmID int) error
}

// Sound plays the alarm tone.
type Sound interface {
	Start(ctx context.Context, alarmID, soundID, volume int)
	StopAlarm(alarmID int) bool
}

// Resources holds the primitives of the Active alarm.
type Resources interface {
	AcquireAll(ctx context.Context)
	ReleaseAll() error
	RefreshVibration(ctx context.Context)
	HeldKinds() []platform.Kind
}

// Scheduler arms exact one-shot wakes.
type Scheduler interface {
	ScheduleExact(e registry.Entry)
	Cancel(alarmID int) bool
}
