package notify

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification id ranges.
const (
	AlarmIDBase   = 20000
	TimeoutIDBase = 40000
)

// AlarmNotificationID returns the id of the ringing-alarm notification.
func AlarmNotificationID(alarmID int) int { return AlarmIDBase + alarmID }

// TimeoutNotificationID returns the id of the auto-stopped notification.
func TimeoutNotificationID(alarmID int) int { return TimeoutIDBase + alarmID }

// Presenter shows and withdraws alarm notifications and remembers which
// ones are outstanding. At most one alarm notification is visible.
type Presenter struct {
	n   Notifier
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	shown map[int]Notification
}

// NewPresenter returns a Presenter sending through n.
func NewPresenter(n Notifier, cfg Config, log zerolog.Logger) *Presenter {
	return &Presenter{
		n:     n,
		cfg:   cfg,
		log:   log,
		shown: make(map[int]Notification),
	}
}

// AlarmNotification builds the ringing-alarm notification.
func AlarmNotification(alarmID int, nfcRequired bool) Notification {
	body := "Time to wake up!"
	if nfcRequired {
		body = "Scan NFC tag to stop alarm"
	}
	return Notification{
		ID:         AlarmNotificationID(alarmID),
		Title:      "Alarm",
		Body:       body,
		Urgency:    UrgencyCritical,
		Persistent: true,
	}
}

// TimeoutNotification builds the notice shown after the safety timeout.
func TimeoutNotification(alarmID int, after time.Duration) Notification {
	return Notification{
		ID:      TimeoutNotificationID(alarmID),
		Title:   "Alarm Auto-Stopped",
		Body:    fmt.Sprintf("Your alarm was automatically stopped after %d minutes", int(after.Minutes())),
		Urgency: UrgencyNormal,
	}
}

// ShowAlarm shows (or re-shows) the alarm notification for alarmID and
// withdraws any other alarm's notification.
func (p *Presenter) ShowAlarm(alarmID int, nfcRequired bool) error {
	note := AlarmNotification(alarmID, nfcRequired)
	note.Sound = p.cfg.Sound

	p.mu.Lock()
	var stale []int
	for id := range p.shown {
		if isAlarmID(id) && id != note.ID {
			stale = append(stale, id)
		}
	}
	p.mu.Unlock()

	var errs []error
	for _, id := range stale {
		errs = append(errs, p.close(id))
	}
	errs = append(errs, p.send(note))
	return errors.Join(errs...)
}

// ShowTimeout shows the auto-stopped notice for alarmID.
func (p *Presenter) ShowTimeout(alarmID int, after time.Duration) error {
	note := TimeoutNotification(alarmID, after)
	note.Sound = p.cfg.Sound
	return p.send(note)
}

// Dismiss withdraws the alarm notification for alarmID. The timeout notice
// stays.
func (p *Presenter) Dismiss(alarmID int) error {
	return p.close(AlarmNotificationID(alarmID))
}

// DismissAll withdraws every tracked notification.
func (p *Presenter) DismissAll() error {
	p.mu.Lock()
	ids := make([]int, 0, len(p.shown))
	for id := range p.shown {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var errs []error
	for _, id := range ids {
		errs = append(errs, p.close(id))
	}
	return errors.Join(errs...)
}

// Outstanding returns the notifications currently shown, ordered by id.
func (p *Presenter) Outstanding() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, 0, len(p.shown))
	for _, n := range p.shown {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Notification) int { return a.ID - b.ID })
	return out
}

func (p *Presenter) send(note Notification) error {
	p.mu.Lock()
	p.shown[note.ID] = note
	p.mu.Unlock()

	if !p.cfg.Enabled {
		return nil
	}
	if err := p.n.Send(note); err != nil {
		p.log.Warn().Err(err).Int("notification_id", note.ID).Msg("failed to show notification")
		return fmt.Errorf("show notification %d: %w", note.ID, err)
	}
	return nil
}

func (p *Presenter) close(id int) error {
	p.mu.Lock()
	_, ok := p.shown[id]
	delete(p.shown, id)
	p.mu.Unlock()

	if !ok || !p.cfg.Enabled {
		return nil
	}
	if err := p.n.Close(id); err != nil {
		p.log.Warn().Err(err).Int("notification_id", id).Msg("failed to dismiss notification")
		return fmt.Errorf("dismiss notification %d: %w", id, err)
	}
	return nil
}

func isAlarmID(id int) bool {
	return id >= AlarmIDBase && id < TimeoutIDBase
}
