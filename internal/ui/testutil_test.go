package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"alarmclock/internal/config"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/registry"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// setupTest prepares the test environment for deterministic rendering.
// It disables colors so assertions can match plain text.
func setupTest(t *testing.T) {
	t.Helper()
	// Use ASCII profile to disable all color codes in output
	lipgloss.SetColorProfile(termenv.Ascii)
}

// createTestStyles creates a default Styles instance for testing.
func createTestStyles() *Styles {
	return NewStylesFromTheme(&config.ThemeConfig{})
}

// testNow is 06:30 on a Sunday.
var testNow = time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC)

// fakeEngine is an in-memory Engine.
type fakeEngine struct {
	mu       sync.Mutex
	now      time.Time
	entries  map[int]registry.Entry
	snapshot lifecycle.Snapshot
	volume   int

	failSchedule bool
	stopped      []int
	snoozed      []int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		now:     testNow,
		entries: make(map[int]registry.Entry),
		volume:  registry.DefaultVolume,
	}
}

func (f *fakeEngine) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeEngine) Snapshot() lifecycle.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeEngine) Scheduled(context.Context) ([]registry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]registry.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	SortEntries(out)
	return out, nil
}

func (f *fakeEngine) Schedule(_ context.Context, req lifecycle.ScheduleRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSchedule || req.AlarmID < 0 || !req.At.After(f.now) {
		return false
	}
	f.entries[req.AlarmID] = registry.Entry{
		AlarmID:     req.AlarmID,
		SoundID:     req.SoundID,
		TriggerTime: req.At,
		NFCRequired: req.NFCRequired,
	}
	return true
}

func (f *fakeEngine) Cancel(_ context.Context, alarmID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, alarmID)
	return true
}

func (f *fakeEngine) Stop(_ context.Context, alarmID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.snapshot.Active || f.snapshot.AlarmID != alarmID {
		return false
	}
	f.stopped = append(f.stopped, alarmID)
	f.snapshot = lifecycle.Snapshot{}
	return true
}

func (f *fakeEngine) Snooze(_ context.Context, alarmID, soundID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.snapshot.Active || f.snapshot.AlarmID != alarmID {
		return false
	}
	f.snoozed = append(f.snoozed, alarmID)
	f.snapshot = lifecycle.Snapshot{}
	f.entries[alarmID] = registry.Entry{
		AlarmID:     alarmID,
		SoundID:     soundID,
		TriggerTime: f.now.Add(5 * time.Minute),
	}
	return true
}

func (f *fakeEngine) Volume(context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeEngine) SetVolume(_ context.Context, pct int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = min(max(pct, 0), 100)
	return f.volume, nil
}

func (f *fakeEngine) ring(alarmID int, nfc bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = lifecycle.Snapshot{
		Active:      true,
		AlarmID:     alarmID,
		SoundID:     1,
		NFCRequired: nfc,
		Since:       f.now,
	}
}

func (f *fakeEngine) add(alarmID int, at time.Time, nfc bool) registry.Entry {
	e := registry.Entry{AlarmID: alarmID, SoundID: 1, TriggerTime: at, NFCRequired: nfc}
	f.mu.Lock()
	f.entries[alarmID] = e
	f.mu.Unlock()
	return e
}

// newTestApp returns an App sized 100x40 with its alarms loaded.
func newTestApp(t *testing.T, engine *fakeEngine, cfg *AppConfig) *App {
	t.Helper()
	setupTest(t)
	if cfg == nil {
		cfg = &AppConfig{Keys: &config.KeysConfig{}}
	}
	app := NewApp(engine, createTestStyles(), cfg)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	reload(app)
	return app
}

// reload runs the load command synchronously.
func reload(app *App) {
	app.Update(loadAlarmsCmd(app.engine)())
}

// run executes cmd and feeds its message back into the app. Batches are
// not expanded.
func run(app *App, cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if msg != nil {
		app.Update(msg)
	}
	return msg
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(app *App, s string) tea.Cmd {
	_, cmd := app.Update(keyRunes(s))
	return cmd
}
