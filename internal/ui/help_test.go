package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestHelpOverlay_ContentStructure(t *testing.T) {
	setupTest(t)

	help := NewHelpOverlay(createTestStyles())
	help.SetSize(100, 40)

	output := help.View()

	sections := []string{
		"Keyboard Shortcuts",
		"Ringing Alarm",
		"Alarms",
		"Global",
	}
	for _, section := range sections {
		if !strings.Contains(output, section) {
			t.Errorf("help overlay should contain section: %s", section)
		}
	}

	descriptions := []string{"Stop", "Snooze", "NFC tag scanned", "Cancel alarm", "Volume up/down", "Quit"}
	for _, desc := range descriptions {
		if !strings.Contains(output, desc) {
			t.Errorf("help overlay should mention: %s", desc)
		}
	}
}

func TestHelpOverlay_SmallTerminal(t *testing.T) {
	setupTest(t)

	help := NewHelpOverlay(createTestStyles())
	help.SetSize(50, 25)

	if output := help.View(); !strings.Contains(output, "Ringing Alarm") {
		t.Errorf("small help overlay lost its content:\n%s", output)
	}
}

func TestApp_HelpToggle(t *testing.T) {
	app := newTestApp(t, newFakeEngine(), nil)

	if app.showHelp {
		t.Error("showHelp should be false initially")
	}

	press(app, "?")
	if !app.showHelp {
		t.Fatal("showHelp should be true after pressing ?")
	}
	if view := app.View(); !strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("view should show help overlay content")
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.showHelp {
		t.Error("esc should close the help overlay")
	}
	if view := app.View(); strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("view should not show help after closing it")
	}
}

func TestApp_HelpOverlayBlocksInput(t *testing.T) {
	app := newTestApp(t, newFakeEngine(), nil)
	app.showHelp = true

	press(app, "a")
	if app.alarmsPane.IsAdding() {
		t.Error("add should not open while help is shown")
	}
	if cmd := press(app, "q"); cmd != nil || app.quitting {
		t.Error("q should close help, not quit")
	}
}

func TestApp_ContextualHelp(t *testing.T) {
	tests := []struct {
		name      string
		ring      bool
		nfc       bool
		expectKey string
	}{
		{name: "idle", expectKey: "add"},
		{name: "ringing", ring: true, expectKey: "snooze"},
		{name: "ringing nfc", ring: true, nfc: true, expectKey: "tag scanned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			if tt.ring {
				engine.ring(1, tt.nfc)
			}
			app := newTestApp(t, engine, nil)

			helpBar := app.renderHelpBar()
			if !strings.Contains(helpBar, tt.expectKey) {
				t.Errorf("help bar %q should contain %q", helpBar, tt.expectKey)
			}
		})
	}
}

func TestApp_InputModeHelp(t *testing.T) {
	app := newTestApp(t, newFakeEngine(), nil)

	press(app, "a")
	if !app.alarmsPane.IsAdding() {
		t.Fatal("a should open the add input")
	}

	helpBar := app.renderHelpBar()
	if !strings.Contains(helpBar, "save") || !strings.Contains(helpBar, "cancel") {
		t.Error("help bar should show input mode help when adding an alarm")
	}
}
