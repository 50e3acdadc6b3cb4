package reports

import (
	"context"
	"fmt"
	"slices"
	"time"

	"alarmclock/internal/registry"
)

// Generator creates reports from registry data.
type Generator struct {
	reg *registry.Registry
	now func() time.Time
}

// NewGenerator creates a report generator. A nil now uses time.Now.
func NewGenerator(reg *registry.Registry, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{reg: reg, now: now}
}

// Generate reads the registry once and summarises it.
func (g *Generator) Generate(ctx context.Context) (*ScheduleReport, error) {
	now := g.now()

	entries, bad, err := g.reg.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)

	report := &ScheduleReport{
		GeneratedAt: now,
		Volume:      g.reg.Volume(ctx, registry.DefaultVolume),
		Alarms:      make([]AlarmLine, 0, len(entries)),
		Corrupt:     len(bad),
	}

	active, ok, err := g.reg.Active(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		report.Active = &ActiveAlarm{
			ID:          active.AlarmID,
			SoundID:     active.SoundID,
			NFCRequired: active.NFCRequired,
			Since:       active.Since,
			RingingFor:  now.Sub(active.Since).Truncate(time.Second),
		}
	}

	for _, e := range entries {
		line := AlarmLine{
			ID:          e.AlarmID,
			SoundID:     e.SoundID,
			At:          e.TriggerTime,
			NFCRequired: e.NFCRequired,
			In:          FormatUntil(e.TriggerTime.Sub(now)),
		}
		if last, ok, err := g.reg.LastActivated(ctx, e.AlarmID); err == nil && ok {
			line.LastActivated = &last
		}
		report.Alarms = append(report.Alarms, line)
	}

	report.ByDay = byDay(entries)
	for _, e := range entries {
		if e.TriggerTime.After(now) {
			report.NextIn = e.TriggerTime.Sub(now).Truncate(time.Second)
			break
		}
	}

	return report, nil
}

// byDay groups entries, already in trigger order, by calendar day.
func byDay(entries []registry.Entry) []DayCount {
	days := []DayCount{}
	for _, e := range entries {
		date := e.TriggerTime.Format("2006-01-02")
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Count++
			continue
		}
		days = append(days, DayCount{
			Date:      date,
			DayOfWeek: e.TriggerTime.Weekday().String(),
			Count:     1,
		})
	}
	return days
}

func sortEntries(entries []registry.Entry) {
	slices.SortFunc(entries, func(a, b registry.Entry) int {
		if c := a.TriggerTime.Compare(b.TriggerTime); c != 0 {
			return c
		}
		return a.AlarmID - b.AlarmID
	})
}

// FormatUntil renders a countdown as "45s", "12m" or "8h 12m". Past
// instants render as "due".
func FormatUntil(d time.Duration) string {
	switch {
	case d <= 0:
		return "due"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
