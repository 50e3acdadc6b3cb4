// Package metrics exposes Prometheus instrumentation for the alarm daemon:
// trigger outcomes, stop reasons, resource failures, boot recovery and the
// scheduled-alarm count.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"alarmclock/internal/platform"
)

var (
	// Lifecycle
	AlarmTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarmclock_triggers_total",
			Help: "Trigger deliveries by outcome",
		},
		[]string{"outcome"}, // "activated", "refreshed", "duplicate"
	)

	AlarmStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarmclock_stops_total",
			Help: "Alarm stops by reason",
		},
		[]string{"reason"}, // "user", "snooze", "timeout", "preempted", "cancel"
	)

	AlarmActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarmclock_active",
			Help: "1 while an alarm is ringing",
		},
	)

	AlarmRingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alarmclock_ring_duration_seconds",
			Help:    "How long alarms rang before being stopped",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
		},
	)

	// Scheduling
	ScheduleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarmclock_schedule_calls_total",
			Help: "Schedule and cancel requests",
		},
		[]string{"op", "result"}, // op: "schedule", "cancel"; result: "ok", "error"
	)

	ScheduledAlarms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarmclock_scheduled_alarms",
			Help: "Alarms armed in the in-process scheduler",
		},
	)

	// Resources
	ResourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarmclock_resource_failures_total",
			Help: "Resource acquire/release failures",
		},
		[]string{"kind", "op"},
	)

	// Boot recovery
	RecoveryEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarmclock_recovery_entries_total",
			Help: "Registry entries handled during boot recovery",
		},
		[]string{"result"}, // "rearmed", "dropped", "corrupt", "restored", "expired"
	)

	// Pending actions
	PendingActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarmclock_pending_actions_total",
			Help: "Pending actions consumed from the store",
		},
		[]string{"action", "result"},
	)
)

// RecordTrigger counts a trigger outcome.
func RecordTrigger(outcome string) {
	AlarmTriggers.WithLabelValues(outcome).Inc()
}

// RecordActivation marks an alarm as ringing.
func RecordActivation() {
	AlarmActive.Set(1)
}

// RecordStop counts a stop and how long the alarm rang.
func RecordStop(reason string, rang time.Duration) {
	AlarmStops.WithLabelValues(reason).Inc()
	AlarmActive.Set(0)
	if rang > 0 {
		AlarmRingDuration.Observe(rang.Seconds())
	}
}

// RecordSchedule counts a schedule or cancel request.
func RecordSchedule(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ScheduleCalls.WithLabelValues(op, result).Inc()
}

// SetScheduled sets the armed-alarm gauge.
func SetScheduled(n int) {
	ScheduledAlarms.Set(float64(n))
}

// RecordRecovery adds n entries with the given result.
func RecordRecovery(result string, n int) {
	if n > 0 {
		RecoveryEntries.WithLabelValues(result).Add(float64(n))
	}
}

// RecordPendingAction counts a consumed pending action.
func RecordPendingAction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PendingActions.WithLabelValues(action, result).Inc()
}

// Resources reports resource failures; it satisfies resource.Recorder.
type Resources struct{}

func (Resources) ResourceFailure(kind platform.Kind, op string) {
	ResourceFailures.WithLabelValues(string(kind), op).Inc()
}
