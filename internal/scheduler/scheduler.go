// Package scheduler fires registry entries at their exact trigger time.
// It keeps one clock timer per alarm id and forgets an entry once it has
// been delivered.
package scheduler

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"alarmclock/internal/clock"
	"alarmclock/internal/metrics"
	"alarmclock/internal/registry"
)

// DeliverFunc receives an entry when its trigger time arrives.
type DeliverFunc func(registry.Entry)

type armed struct {
	entry registry.Entry
	timer clock.Timer
}

// Scheduler arms exact one-shot timers.
type Scheduler struct {
	clock   clock.Clock
	deliver DeliverFunc
	log     zerolog.Logger

	mu     sync.Mutex
	timers map[int]*armed
	closed bool
}

// New returns a Scheduler that calls deliver from timer goroutines.
func New(clk clock.Clock, deliver DeliverFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		clock:   clk,
		deliver: deliver,
		log:     log,
		timers:  make(map[int]*armed),
	}
}

// ScheduleExact arms e at e.TriggerTime, replacing any timer for the same
// alarm id. A trigger time in the past fires on the next tick.
func (s *Scheduler) ScheduleExact(e registry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.timers[e.AlarmID]; ok {
		prev.timer.Stop()
	}

	a := &armed{entry: e}
	delay := e.TriggerTime.Sub(s.clock.Now())
	a.timer = s.clock.AfterFunc(delay, func() { s.fire(a) })
	s.timers[e.AlarmID] = a
	metrics.SetScheduled(len(s.timers))

	s.log.Debug().Int("alarm_id", e.AlarmID).Time("at", e.TriggerTime).Dur("in", delay).Msg("alarm armed")
}

func (s *Scheduler) fire(a *armed) {
	s.mu.Lock()
	if s.closed || s.timers[a.entry.AlarmID] != a {
		s.mu.Unlock()
		return
	}
	delete(s.timers, a.entry.AlarmID)
	metrics.SetScheduled(len(s.timers))
	s.mu.Unlock()

	s.log.Info().Int("alarm_id", a.entry.AlarmID).Msg("alarm due")
	s.deliver(a.entry)
}

// Cancel disarms alarmID and reports whether it was armed.
func (s *Scheduler) Cancel(alarmID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.timers[alarmID]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.timers, alarmID)
	metrics.SetScheduled(len(s.timers))
	return true
}

// Pending returns the armed entries ordered by trigger time.
func (s *Scheduler) Pending() []registry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]registry.Entry, 0, len(s.timers))
	for _, a := range s.timers {
		out = append(out, a.entry)
	}
	slices.SortFunc(out, func(x, y registry.Entry) int {
		if c := x.TriggerTime.Compare(y.TriggerTime); c != 0 {
			return c
		}
		return x.AlarmID - y.AlarmID
	})
	return out
}

// Armed returns the entry armed for alarmID.
func (s *Scheduler) Armed(alarmID int) (registry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.timers[alarmID]
	if !ok {
		return registry.Entry{}, false
	}
	return a.entry, true
}

// Next returns the earliest armed entry.
func (s *Scheduler) Next() (registry.Entry, bool) {
	pending := s.Pending()
	if len(pending) == 0 {
		return registry.Entry{}, false
	}
	return pending[0], true
}

// Close disarms everything. Later calls to ScheduleExact are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, id)
	}
	s.closed = true
	metrics.SetScheduled(0)
}
