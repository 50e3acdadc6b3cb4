// Package reports summarises the alarm schedule for the list and export
// commands.
package reports

import "time"

// ScheduleReport is a point-in-time view of everything the registry holds.
type ScheduleReport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Volume      int           `json:"volume"`
	Active      *ActiveAlarm  `json:"active,omitempty"`
	Alarms      []AlarmLine   `json:"alarms"`
	ByDay       []DayCount    `json:"by_day"`
	NextIn      time.Duration `json:"next_in,omitempty"`
	Corrupt     int           `json:"corrupt"`
}

// ActiveAlarm is the alarm ringing when the report was made.
type ActiveAlarm struct {
	ID          int           `json:"id"`
	SoundID     int           `json:"sound_id"`
	NFCRequired bool          `json:"nfc_required"`
	Since       time.Time     `json:"since"`
	RingingFor  time.Duration `json:"ringing_for"`
}

// AlarmLine is one scheduled alarm.
type AlarmLine struct {
	ID            int        `json:"id"`
	SoundID       int        `json:"sound_id"`
	At            time.Time  `json:"at"`
	NFCRequired   bool       `json:"nfc_required"`
	In            string     `json:"in"`
	LastActivated *time.Time `json:"last_activated,omitempty"`
}

// DayCount counts alarms per calendar day.
type DayCount struct {
	Date      string `json:"date"`
	DayOfWeek string `json:"day_of_week"`
	Count     int    `json:"count"`
}
