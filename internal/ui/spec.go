package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"alarmclock/internal/sound"
)

// AlarmSpec is an alarm typed as "HH:MM [sound] [nfc]".
type AlarmSpec struct {
	Hour    int
	Minute  int
	SoundID int
	NFC     bool
}

// ParseAlarmSpec parses the add-alarm input. The sound defaults to 1.
func ParseAlarmSpec(s string) (AlarmSpec, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return AlarmSpec{}, fmt.Errorf("enter a time as HH:MM")
	}

	spec := AlarmSpec{SoundID: 1}
	h, m, err := ParseClock(fields[0])
	if err != nil {
		return AlarmSpec{}, err
	}
	spec.Hour, spec.Minute = h, m

	for _, f := range fields[1:] {
		if strings.EqualFold(f, "nfc") {
			spec.NFC = true
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return AlarmSpec{}, fmt.Errorf("unexpected %q: want a sound number or \"nfc\"", f)
		}
		if n < 1 || n > sound.NumSounds {
			return AlarmSpec{}, fmt.Errorf("sound must be 1-%d, got %d", sound.NumSounds, n)
		}
		spec.SoundID = n
	}
	return spec, nil
}

// ParseClock parses "H:MM" or "HH:MM" on a 24-hour clock.
func ParseClock(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(ms) != 2 || hs == "" || len(hs) > 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, herr := strconv.Atoi(hs)
	minute, merr := strconv.Atoi(ms)
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return hour, minute, nil
}

// Next returns the first instant at the spec's wall-clock time strictly
// after now, in now's location.
func (s AlarmSpec) Next(now time.Time) time.Time {
	return NextOccurrence(now, s.Hour, s.Minute)
}

// NextOccurrence returns today's hour:minute if it is still ahead of now,
// otherwise tomorrow's.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return at
}
