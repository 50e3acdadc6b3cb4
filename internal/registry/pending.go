package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"alarmclock/internal/prefs"
)

// Action is a request left for the daemon by another process.
type Action string

const (
	ActionStop    Action = "stop"
	ActionSnooze  Action = "snooze"
	ActionTrigger Action = "trigger"
)

// ParseAction accepts the known actions case-insensitively.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStop, ActionSnooze, ActionTrigger:
		return a, nil
	default:
		return "", fmt.Errorf("unknown pending action %q", s)
	}
}

// Pending is the launch-data handshake: one action plus the alarm it targets.
type Pending struct {
	Action  Action
	AlarmID int
	SoundID int
}

// PostPending stores p, replacing any pending action not yet consumed.
func (r *Registry) PostPending(ctx context.Context, p Pending) error {
	if p.SoundID <= 0 {
		p.SoundID = DefaultSoundID
	}
	err := prefs.NewEditor().
		PutString(KeyPendingAction, string(p.Action)).
		PutInt(KeyPendingAlarmID, p.AlarmID).
		PutInt(KeyPendingSoundID, p.SoundID).
		Commit(ctx, r.store)
	if err != nil {
		return fmt.Errorf("post pending %s: %w", p.Action, err)
	}
	return nil
}

// TakePending returns the pending action and clears it in the same store
// Update, so each action is consumed once. An unknown action is cleared and
// reported as an error.
func (r *Registry) TakePending(ctx context.Context) (Pending, bool, error) {
	var (
		raw   string
		found bool
		id    int
		sound int
		idErr error
	)
	err := r.store.Update(ctx, func(get prefs.Getter) ([]prefs.Edit, error) {
		var err error
		raw, found, err = get(KeyPendingAction)
		if err != nil || !found {
			return nil, err
		}
		id, idErr = intValue(get, KeyPendingAlarmID, -1)
		var soundErr error
		sound, soundErr = intValue(get, KeyPendingSoundID, DefaultSoundID)
		if soundErr != nil {
			sound = DefaultSoundID
		}
		return prefs.NewEditor().
			Remove(KeyPendingAction).
			Remove(KeyPendingAlarmID).
			Remove(KeyPendingSoundID).
			Edits(), nil
	})
	if err != nil {
		return Pending{}, false, fmt.Errorf("take pending action: %w", err)
	}
	if !found {
		return Pending{}, false, nil
	}

	action, err := ParseAction(raw)
	if err != nil {
		return Pending{}, false, err
	}
	if idErr != nil {
		return Pending{}, false, fmt.Errorf("pending %s: %w", action, idErr)
	}
	return Pending{Action: action, AlarmID: id, SoundID: sound}, true, nil
}

func intValue(get prefs.Getter, key string, def int) (int, error) {
	raw, ok, err := get(key)
	if err != nil || !ok {
		return def, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
