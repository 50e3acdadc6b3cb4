package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidEntry marks a persisted entry that could not be decoded.
var ErrInvalidEntry = errors.New("registry: invalid entry")

// Format classifies a raw scheduled_alarms value.
type Format int

const (
	FormatEmpty Format = iota
	FormatFlat
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatEmpty:
		return "empty"
	case FormatFlat:
		return "flat"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Decoded is one element of a decoded value: either Entry is valid, or Err
// says why Raw was rejected.
type Decoded struct {
	Entry Entry
	Raw   string
	Err   error
}

// OK reports whether the element decoded into an entry.
func (d Decoded) OK() bool { return d.Err == nil }

// Classify returns the format of raw without decoding it.
func Classify(raw string) Format {
	s := strings.TrimSpace(raw)
	switch {
	case s == "" || s == "[]":
		return FormatEmpty
	case strings.HasPrefix(s, "[") && json.Valid([]byte(s)):
		return FormatJSON
	default:
		return FormatFlat
	}
}

// Encode renders entries in the flat form: id:sound:millis:nfc joined by ",".
func Encode(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%d:%d:%d:%t",
			e.AlarmID, e.SoundID, e.TriggerTime.UnixMilli(), e.NFCRequired))
	}
	return strings.Join(parts, ",")
}

// Decode parses any accepted form. Every element yields one Decoded.
func Decode(raw string) []Decoded {
	switch Classify(raw) {
	case FormatEmpty:
		return nil
	case FormatJSON:
		return decodeJSON(strings.TrimSpace(raw))
	default:
		return decodeFlat(raw)
	}
}

// Valid returns the decoded entries and the per-element errors separately.
func Valid(decoded []Decoded) ([]Entry, []error) {
	var entries []Entry
	var errs []error
	for _, d := range decoded {
		if d.OK() {
			entries = append(entries, d.Entry)
		} else {
			errs = append(errs, d.Err)
		}
	}
	return entries, errs
}

func decodeFlat(raw string) []Decoded {
	var out []Decoded
	for _, part := range strings.Split(raw, ",") {
		tuple := strings.Trim(strings.TrimSpace(part), `[]"' `)
		if tuple == "" {
			continue
		}
		out = append(out, decodeTuple(tuple))
	}
	return out
}

// decodeTuple parses "id:sound:millis[:nfc]". A malformed sound id falls
// back to 1; a malformed id or time rejects the entry.
func decodeTuple(tuple string) Decoded {
	d := Decoded{Raw: tuple}
	fields := strings.Split(tuple, ":")
	if len(fields) < 3 {
		d.Err = fmt.Errorf("%w: %q has %d fields, want at least 3", ErrInvalidEntry, tuple, len(fields))
		return d
	}

	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		d.Err = fmt.Errorf("%w: %q: alarm id: %v", ErrInvalidEntry, tuple, err)
		return d
	}
	sound, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		sound = DefaultSoundID
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		d.Err = fmt.Errorf("%w: %q: trigger time: %v", ErrInvalidEntry, tuple, err)
		return d
	}
	nfc := len(fields) > 3 && strings.EqualFold(strings.TrimSpace(fields[3]), "true")

	d.Entry = Entry{
		AlarmID:     id,
		SoundID:     sound,
		TriggerTime: time.UnixMilli(millis),
		NFCRequired: nfc,
	}
	return d
}

// jsonEntry is the object form. TriggerTime is in epoch seconds and may
// carry a fraction.
type jsonEntry struct {
	AlarmID     *int     `json:"alarmId"`
	SoundID     *int     `json:"soundId"`
	TriggerTime *float64 `json:"triggerTime"`
	NFCRequired bool     `json:"nfcRequired"`
}

func decodeJSON(raw string) []Decoded {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		// Valid JSON but not an array of values: treat like flat text.
		return decodeFlat(raw)
	}

	out := make([]Decoded, 0, len(elems))
	for _, elem := range elems {
		trimmed := bytes.TrimSpace(elem)
		switch {
		case len(trimmed) > 0 && trimmed[0] == '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				out = append(out, Decoded{Raw: string(trimmed), Err: fmt.Errorf("%w: %v", ErrInvalidEntry, err)})
				continue
			}
			out = append(out, decodeTuple(strings.TrimSpace(s)))
		case len(trimmed) > 0 && trimmed[0] == '{':
			out = append(out, decodeObject(trimmed))
		default:
			out = append(out, Decoded{
				Raw: string(trimmed),
				Err: fmt.Errorf("%w: unexpected JSON element %s", ErrInvalidEntry, trimmed),
			})
		}
	}
	return out
}

func decodeObject(raw []byte) Decoded {
	d := Decoded{Raw: string(raw)}
	var je jsonEntry
	if err := json.Unmarshal(raw, &je); err != nil {
		d.Err = fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		return d
	}
	if je.AlarmID == nil {
		d.Err = fmt.Errorf("%w: object without alarmId", ErrInvalidEntry)
		return d
	}
	if je.TriggerTime == nil || math.IsNaN(*je.TriggerTime) || math.IsInf(*je.TriggerTime, 0) {
		d.Err = fmt.Errorf("%w: alarm %d: missing trigger time", ErrInvalidEntry, *je.AlarmID)
		return d
	}

	sound := DefaultSoundID
	if je.SoundID != nil {
		sound = *je.SoundID
	}
	d.Entry = Entry{
		AlarmID:     *je.AlarmID,
		SoundID:     sound,
		TriggerTime: time.UnixMilli(int64(math.Round(*je.TriggerTime * 1000))),
		NFCRequired: je.NFCRequired,
	}
	return d
}
