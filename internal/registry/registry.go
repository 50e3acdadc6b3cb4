// Package registry persists scheduled alarms, the single Active alarm and
// the small set of per-alarm keys the lifecycle writes, on top of a
// prefs.Store.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"alarmclock/internal/prefs"
)

// Durable keys.
const (
	KeyScheduled           = "scheduled_alarms"
	KeyActiveID            = "active_alarm_id"
	KeyActiveSound         = "active_alarm_sound"
	KeyActiveNFC           = "active_alarm_nfc"
	KeyActiveActivation    = "active_alarm_activation"
	KeyStartTime           = "alarm_start_time"
	KeyLastActivatedPrefix = "alarm_last_activated_"
	KeyVolume              = "alarm_volume"
	KeyPendingAction       = "pending_action"
	KeyPendingAlarmID      = "pending_alarm_id"
	KeyPendingSoundID      = "pending_sound_id"
)

const (
	DefaultSoundID = 1
	DefaultVolume  = 70
)

// Entry is one scheduled alarm.
type Entry struct {
	AlarmID     int
	SoundID     int
	TriggerTime time.Time
	NFCRequired bool
}

// Active describes the alarm currently ringing.
type Active struct {
	AlarmID     int
	SoundID     int
	NFCRequired bool
	Since       time.Time
	Activation  string
}

// Registry reads and writes alarm state. Read-modify-write cycles go
// through prefs.Store.Update.
type Registry struct {
	store prefs.Store
}

// New returns a Registry over store.
func New(store prefs.Store) *Registry {
	return &Registry{store: store}
}

// Store returns the underlying store.
func (r *Registry) Store() prefs.Store { return r.store }

// LoadAll returns every decodable entry and one error per rejected element.
// The error return is reserved for store failures.
func (r *Registry) LoadAll(ctx context.Context) ([]Entry, []error, error) {
	raw, err := prefs.String(ctx, r.store, KeyScheduled, "")
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", KeyScheduled, err)
	}
	entries, bad := Valid(Decode(raw))
	return dedupe(entries), bad, nil
}

// Get returns the entry for alarmID.
func (r *Registry) Get(ctx context.Context, alarmID int) (Entry, bool, error) {
	entries, _, err := r.LoadAll(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.AlarmID == alarmID {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Put inserts e or replaces the entry with the same id. The trigger time is
// truncated to millisecond precision, matching what is persisted.
func (r *Registry) Put(ctx context.Context, e Entry) error {
	e.TriggerTime = time.UnixMilli(e.TriggerTime.UnixMilli())

	return r.updateScheduled(ctx, func(entries []Entry, _ int) ([]Entry, bool) {
		for i := range entries {
			if entries[i].AlarmID == e.AlarmID {
				entries[i] = e
				return entries, true
			}
		}
		return append(entries, e), true
	})
}

// Remove deletes the entry for alarmID. Removing an absent id is a no-op.
func (r *Registry) Remove(ctx context.Context, alarmID int) error {
	_, err := r.RemoveIf(ctx, func(e Entry) bool { return e.AlarmID == alarmID })
	return err
}

// RemoveIf deletes every entry matching fn and returns the removed entries.
func (r *Registry) RemoveIf(ctx context.Context, fn func(Entry) bool) ([]Entry, error) {
	var removed []Entry
	err := r.updateScheduled(ctx, func(entries []Entry, bad int) ([]Entry, bool) {
		removed = nil
		kept := entries[:0]
		for _, e := range entries {
			if fn(e) {
				removed = append(removed, e)
			} else {
				kept = append(kept, e)
			}
		}
		return kept, len(removed) > 0 || bad > 0
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// updateScheduled rewrites the scheduled list in one store Update, so
// concurrent writers in other processes cannot drop each other's entries.
// modify gets the decoded entries and the count of undecodable ones; it
// reports whether the list must be written back.
func (r *Registry) updateScheduled(ctx context.Context, modify func(entries []Entry, bad int) ([]Entry, bool)) error {
	err := r.store.Update(ctx, func(get prefs.Getter) ([]prefs.Edit, error) {
		raw, _, err := get(KeyScheduled)
		if err != nil {
			return nil, err
		}
		entries, bad := Valid(Decode(raw))
		entries, write := modify(dedupe(entries), len(bad))
		if !write {
			return nil, nil
		}
		if len(entries) == 0 {
			return prefs.NewEditor().Remove(KeyScheduled).Edits(), nil
		}
		return prefs.NewEditor().PutString(KeyScheduled, Encode(entries)).Edits(), nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", KeyScheduled, err)
	}
	return nil
}

// dedupe keeps the last entry for each id, in first-seen order.
func dedupe(entries []Entry) []Entry {
	index := make(map[int]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.AlarmID]; ok {
			out[i] = e
			continue
		}
		index[e.AlarmID] = len(out)
		out = append(out, e)
	}
	return out
}

// Active returns the persisted Active alarm, if any.
func (r *Registry) Active(ctx context.Context) (Active, bool, error) {
	id, err := prefs.Int(ctx, r.store, KeyActiveID, -1)
	if err != nil {
		return Active{}, false, err
	}
	if id < 0 {
		return Active{}, false, nil
	}

	a := Active{AlarmID: id}
	if a.SoundID, err = prefs.Int(ctx, r.store, KeyActiveSound, DefaultSoundID); err != nil {
		a.SoundID = DefaultSoundID
	}
	if a.NFCRequired, err = prefs.Bool(ctx, r.store, KeyActiveNFC, false); err != nil {
		a.NFCRequired = false
	}
	if a.Activation, err = prefs.String(ctx, r.store, KeyActiveActivation, ""); err != nil {
		return Active{}, false, err
	}
	since, err := prefs.Int64(ctx, r.store, KeyStartTime, 0)
	if err != nil {
		since = 0
	}
	if since > 0 {
		a.Since = time.UnixMilli(since)
	}
	return a, true, nil
}

// SetActive persists a as the Active alarm and records its last-activation
// time in the same batch.
func (r *Registry) SetActive(ctx context.Context, a Active) error {
	ms := a.Since.UnixMilli()
	err := prefs.NewEditor().
		PutInt(KeyActiveID, a.AlarmID).
		PutInt(KeyActiveSound, a.SoundID).
		PutBool(KeyActiveNFC, a.NFCRequired).
		PutString(KeyActiveActivation, a.Activation).
		PutInt64(KeyStartTime, ms).
		PutInt64(lastActivatedKey(a.AlarmID), ms).
		Commit(ctx, r.store)
	if err != nil {
		return fmt.Errorf("save active alarm %d: %w", a.AlarmID, err)
	}
	return nil
}

// ClearActive removes the Active alarm metadata.
func (r *Registry) ClearActive(ctx context.Context) error {
	err := prefs.NewEditor().
		Remove(KeyActiveID).
		Remove(KeyActiveSound).
		Remove(KeyActiveNFC).
		Remove(KeyActiveActivation).
		Remove(KeyStartTime).
		Commit(ctx, r.store)
	if err != nil {
		return fmt.Errorf("clear active alarm: %w", err)
	}
	return nil
}

// LastActivated returns when alarmID last became Active.
func (r *Registry) LastActivated(ctx context.Context, alarmID int) (time.Time, bool, error) {
	ms, err := prefs.Int64(ctx, r.store, lastActivatedKey(alarmID), 0)
	if err != nil || ms <= 0 {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func lastActivatedKey(alarmID int) string {
	return KeyLastActivatedPrefix + strconv.Itoa(alarmID)
}

// Volume returns the playback volume percentage. Missing or malformed values
// yield def.
func (r *Registry) Volume(ctx context.Context, def int) int {
	v, err := prefs.Int(ctx, r.store, KeyVolume, def)
	if err != nil {
		return def
	}
	return ClampVolume(v)
}

// SetVolume persists pct clamped to 0..100 and returns the stored value.
func (r *Registry) SetVolume(ctx context.Context, pct int) (int, error) {
	pct = ClampVolume(pct)
	if err := prefs.NewEditor().PutInt(KeyVolume, pct).Commit(ctx, r.store); err != nil {
		return 0, fmt.Errorf("save volume: %w", err)
	}
	return pct, nil
}

// ClampVolume limits pct to 0..100.
func ClampVolume(pct int) int {
	return max(0, min(100, pct))
}
