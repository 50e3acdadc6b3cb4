package reports

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"alarmclock/internal/prefs"
	"alarmclock/internal/registry"
)

var t0 = time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC)

func newTestGenerator(t *testing.T) (*Generator, *registry.Registry, prefs.Store) {
	t.Helper()
	store := prefs.NewMemoryStore()
	reg := registry.New(store)
	return NewGenerator(reg, func() time.Time { return t0 }), reg, store
}

func TestGenerate_Empty(t *testing.T) {
	g, _, _ := newTestGenerator(t)

	report, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(report.Alarms) != 0 || report.Active != nil {
		t.Errorf("expected an empty report, got %+v", report)
	}
	if report.Volume != registry.DefaultVolume {
		t.Errorf("Volume = %d, want %d", report.Volume, registry.DefaultVolume)
	}
	if !strings.Contains(FormatText(report), "No alarms scheduled.") {
		t.Error("text output should say nothing is scheduled")
	}
}

func TestGenerate_SortsAndGroups(t *testing.T) {
	ctx := context.Background()
	g, reg, store := newTestGenerator(t)

	for _, e := range []registry.Entry{
		{AlarmID: 3, SoundID: 1, TriggerTime: t0.Add(25 * time.Hour)},
		{AlarmID: 1, SoundID: 2, TriggerTime: t0.Add(time.Hour), NFCRequired: true},
		{AlarmID: 2, SoundID: 4, TriggerTime: t0.Add(90 * time.Minute)},
	} {
		if err := reg.Put(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.SetActive(ctx, registry.Active{AlarmID: 9, SoundID: 5, Since: t0.Add(-2 * time.Minute)}); err != nil {
		t.Fatal(err)
	}
	// One unreadable element alongside the valid ones
	raw, _, _ := store.Get(ctx, registry.KeyScheduled)
	if err := store.Apply(ctx, prefs.Edit{Key: registry.KeyScheduled, Value: raw + ",garbage"}); err != nil {
		t.Fatal(err)
	}

	report, err := g.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var ids []int
	for _, a := range report.Alarms {
		ids = append(ids, a.ID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("alarms out of order: %v", ids)
	}
	if report.Alarms[0].In != "1h 0m" {
		t.Errorf("In = %q, want 1h 0m", report.Alarms[0].In)
	}
	if report.NextIn != time.Hour {
		t.Errorf("NextIn = %v, want 1h", report.NextIn)
	}
	if report.Corrupt != 1 {
		t.Errorf("Corrupt = %d, want 1", report.Corrupt)
	}
	if len(report.ByDay) != 2 || report.ByDay[0].Count != 2 || report.ByDay[1].DayOfWeek != "Monday" {
		t.Errorf("unexpected ByDay: %+v", report.ByDay)
	}
	if report.Active == nil || report.Active.ID != 9 || report.Active.RingingFor != 2*time.Minute {
		t.Errorf("unexpected Active: %+v", report.Active)
	}
	if report.Alarms[0].LastActivated != nil {
		t.Error("alarm 1 never rang")
	}

	text := FormatText(report)
	for _, want := range []string{"RINGING  #9", "07:30", "08:00", "yes", "volume 70%", "1 unreadable"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output should contain %q:\n%s", want, text)
		}
	}

	md := FormatMarkdown(report)
	for _, want := range []string{"# Alarms", "## Ringing", "| 1 | 07:30 |", "## By day", "Monday 2026-03-02: 1"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown should contain %q:\n%s", want, md)
		}
	}

	data, err := FormatJSON(report)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if alarms, ok := decoded["alarms"].([]any); !ok || len(alarms) != 3 {
		t.Errorf("JSON alarms = %v", decoded["alarms"])
	}
}

func TestGenerate_LastActivated(t *testing.T) {
	ctx := context.Background()
	g, reg, _ := newTestGenerator(t)

	if err := reg.SetActive(ctx, registry.Active{AlarmID: 4, SoundID: 1, Since: t0.Add(-24 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := reg.ClearActive(ctx); err != nil {
		t.Fatal(err)
	}
	if err := reg.Put(ctx, registry.Entry{AlarmID: 4, SoundID: 1, TriggerTime: t0.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	report, err := g.Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	last := report.Alarms[0].LastActivated
	if last == nil || !last.Equal(t0.Add(-24*time.Hour)) {
		t.Errorf("LastActivated = %v", last)
	}
}

func TestFormatUntil(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "due"},
		{-time.Minute, "due"},
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{26*time.Hour + 3*time.Minute, "26h 3m"},
	}
	for _, tc := range tests {
		if got := FormatUntil(tc.d); got != tc.want {
			t.Errorf("FormatUntil(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
