package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestAlarmsPane_EmptyView(t *testing.T) {
	setupTest(t)
	pane := NewAlarmsPane(newFakeEngine(), createTestStyles())
	pane.SetSize(60, 20)

	view := pane.View(testNow)
	if !strings.Contains(view, "ALARMS") || !strings.Contains(view, "No alarms set") {
		t.Errorf("unexpected empty view:\n%s", view)
	}
}

func TestAlarmsPane_ListAndNavigate(t *testing.T) {
	setupTest(t)
	engine := newFakeEngine()
	engine.add(1, testNow.Add(90*time.Minute), false)
	engine.add(2, testNow.Add(25*time.Hour), true)

	pane := NewAlarmsPane(engine, createTestStyles())
	pane.SetSize(80, 20)
	pane.Update(loadAlarmsCmd(engine)())

	view := pane.View(testNow)
	for _, want := range []string{"#1", "08:00", "today", "#2", "07:30", "tmrw", "[nfc]", "2 scheduled", "next in 1h 30m"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q:\n%s", want, view)
		}
	}

	if e, ok := pane.Selected(); !ok || e.AlarmID != 1 {
		t.Fatalf("Selected() = %+v, %v, want alarm 1", e, ok)
	}
	pane.Update(keyRunes("j"))
	if e, _ := pane.Selected(); e.AlarmID != 2 {
		t.Errorf("after j, selected %d, want 2", e.AlarmID)
	}
	pane.Update(keyRunes("j"))
	if e, _ := pane.Selected(); e.AlarmID != 2 {
		t.Errorf("cursor should stop at the last alarm, got %d", e.AlarmID)
	}
	pane.Update(keyRunes("k"))
	if e, _ := pane.Selected(); e.AlarmID != 1 {
		t.Errorf("after k, selected %d, want 1", e.AlarmID)
	}
}

func TestAlarmsPane_CursorClampedOnReload(t *testing.T) {
	engine := newFakeEngine()
	engine.add(1, testNow.Add(time.Hour), false)
	engine.add(2, testNow.Add(2*time.Hour), false)

	pane := NewAlarmsPane(engine, createTestStyles())
	pane.Update(loadAlarmsCmd(engine)())
	pane.Update(keyRunes("j"))

	engine.Cancel(context.Background(), 2)
	pane.Update(loadAlarmsCmd(engine)())

	if e, ok := pane.Selected(); !ok || e.AlarmID != 1 {
		t.Errorf("Selected() = %+v, %v, want alarm 1", e, ok)
	}
}

func TestAlarmsPane_AddInput(t *testing.T) {
	pane := NewAlarmsPane(newFakeEngine(), createTestStyles())

	pane.Update(keyRunes("a"))
	if !pane.IsAdding() {
		t.Fatal("a should open the input")
	}
	if cmd := pane.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("empty input should not schedule")
	}
	if pane.IsAdding() {
		t.Error("empty enter should close the input")
	}
}

func TestFormatUntil(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{12 * time.Minute, "12m"},
		{8*time.Hour + 12*time.Minute, "8h 12m"},
	}
	for _, tc := range tests {
		if got := formatUntil(tc.d); got != tc.want {
			t.Errorf("formatUntil(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
