// Package ui provides the terminal console for alarmclock.
// This file contains the main App model which coordinates the alarm list,
// the ringing banner and the overlays using the Bubble Tea architecture.
package ui

import (
	"fmt"
	"strings"
	"time"

	"alarmclock/internal/config"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/registry"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// volumeStep is how much one volume key press changes the volume.
const volumeStep = 10

// AppConfig holds user configuration for the console behavior.
type AppConfig struct {
	Keys          *config.KeysConfig
	ConfirmCancel bool
}

// App is the main console model.
type App struct {
	engine      Engine
	styles      *Styles
	config      *AppConfig
	alarmsPane  *AlarmsPane
	helpOverlay *HelpOverlay
	undoManager *UndoManager
	undoBusy    bool
	confirm     *confirmState
	snapshot    lifecycle.Snapshot
	volume      int
	now         time.Time
	showHelp    bool
	width       int
	height      int
	status      string
	statusErr   bool
	statusUntil time.Time
	quitting    bool

	// Key bindings
	keys     GlobalKeyMap
	helpKeys HelpKeyMap
}

type confirmState struct {
	title string
	body  string
	cmd   tea.Cmd
}

// NewApp creates the console. Data loading is deferred to Init() to keep
// the constructor non-blocking.
func NewApp(engine Engine, styles *Styles, cfg *AppConfig) *App {
	if cfg == nil {
		cfg = &AppConfig{
			Keys:          &config.KeysConfig{},
			ConfirmCancel: true,
		}
	}
	if cfg.Keys == nil {
		cfg.Keys = &config.KeysConfig{}
	}

	pane := NewAlarmsPaneWithKeys(engine, styles, cfg.Keys)
	pane.SetFocused(true)

	return &App{
		engine:      engine,
		styles:      styles,
		config:      cfg,
		alarmsPane:  pane,
		helpOverlay: NewHelpOverlay(styles),
		undoManager: NewUndoManager(),
		volume:      registry.DefaultVolume,
		now:         engine.Now(),
		keys:        NewGlobalKeyMap(cfg.Keys),
		helpKeys:    DefaultHelpKeyMap(),
	}
}

// Init starts the clock and loads the alarms.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		a.alarmsPane.LoadAlarmsCmd(),
	)
}

// Update handles all messages and routes them appropriately.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Engine results first, regardless of overlays.
	switch msg := msg.(type) {
	case alarmsLoadedMsg:
		if msg.err != nil {
			a.SetStatus("Alarms: "+msg.err.Error(), true)
		} else {
			a.snapshot = msg.snapshot
			a.volume = msg.volume
		}
		return a, a.alarmsPane.Update(msg)

	case alarmScheduledMsg:
		if msg.err != nil {
			a.SetStatus("Add alarm: "+msg.err.Error(), true)
		} else {
			a.undoManager.Push(NewScheduleAlarmAction(a.engine, msg.entry))
			a.SetStatus(fmt.Sprintf("Alarm #%d set for %s (in %s)", msg.entry.AlarmID,
				msg.entry.TriggerTime.Format("15:04"), formatUntil(msg.entry.TriggerTime.Sub(a.now))), false)
		}
		return a, a.alarmsPane.Update(msg)

	case alarmCancelledMsg:
		if msg.err != nil {
			a.SetStatus("Cancel alarm: "+msg.err.Error(), true)
		} else {
			a.undoManager.Push(NewCancelAlarmAction(a.engine, msg.entry))
			a.SetStatus(fmt.Sprintf("Alarm #%d cancelled", msg.entry.AlarmID), false)
		}
		return a, a.alarmsPane.Update(msg)

	case alarmStoppedMsg:
		if msg.stopped {
			a.SetStatus(fmt.Sprintf("Alarm #%d stopped", msg.alarmID), false)
		} else {
			a.SetStatus("No alarm was ringing", false)
		}
		return a, a.alarmsPane.LoadAlarmsCmd()

	case alarmSnoozedMsg:
		switch {
		case !msg.ok:
			a.SetStatus(fmt.Sprintf("Alarm #%d could not be snoozed", msg.alarmID), true)
		case msg.until.IsZero():
			a.SetStatus(fmt.Sprintf("Alarm #%d snoozed", msg.alarmID), false)
		default:
			a.SetStatus(fmt.Sprintf("Alarm #%d snoozed until %s", msg.alarmID, msg.until.Format("15:04")), false)
		}
		return a, a.alarmsPane.LoadAlarmsCmd()

	case volumeChangedMsg:
		if msg.err != nil {
			a.SetStatus("Volume: "+msg.err.Error(), true)
		} else {
			a.volume = msg.volume
			a.SetStatus(fmt.Sprintf("Volume %d%%", msg.volume), false)
		}
		return a, nil

	case undoResultMsg:
		a.undoBusy = false
		if msg.err != nil {
			a.SetStatus("Undo failed: "+msg.err.Error(), true)
		} else if msg.desc != "" {
			a.SetStatus("Undid: "+msg.desc, false)
		} else {
			a.SetStatus("Nothing to undo", false)
		}
		return a, a.alarmsPane.LoadAlarmsCmd()

	case redoResultMsg:
		a.undoBusy = false
		if msg.err != nil {
			a.SetStatus("Redo failed: "+msg.err.Error(), true)
		} else if msg.desc != "" {
			a.SetStatus("Redid: "+msg.desc, false)
		} else {
			a.SetStatus("Nothing to redo", false)
		}
		return a, a.alarmsPane.LoadAlarmsCmd()

	case tickMsg:
		a.now = a.engine.Now()
		if a.status != "" && !a.statusUntil.IsZero() && a.now.After(a.statusUntil) {
			a.status = ""
			a.statusErr = false
			a.statusUntil = time.Time{}
		}
		return a, tea.Batch(tickCmd(), a.alarmsPane.LoadAlarmsCmd())

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateLayout()
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)
	}

	return a, a.alarmsPane.Update(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if a.confirm != nil {
		switch msg.String() {
		case "y", "Y", "enter":
			cmd := a.confirm.cmd
			a.confirm = nil
			return cmd
		case "n", "N", "esc":
			a.confirm = nil
			a.SetStatus("Canceled", false)
		}
		return nil
	}

	// Help overlay takes priority
	if a.showHelp {
		if key.Matches(msg, a.helpKeys.Close) {
			a.showHelp = false
		}
		return nil
	}

	if a.alarmsPane.IsAdding() {
		return a.alarmsPane.Update(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.quitting = true
		return tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
		return nil

	case key.Matches(msg, a.keys.Stop):
		if !a.snapshot.Active {
			a.SetStatus("No alarm is ringing", false)
			return nil
		}
		if a.snapshot.NFCRequired {
			a.SetStatus("Scan NFC tag to stop alarm", true)
			return nil
		}
		return stopAlarmCmd(a.engine, a.snapshot.AlarmID)

	case key.Matches(msg, a.keys.ScanTag):
		if !a.snapshot.Active {
			a.SetStatus("No alarm is ringing", false)
			return nil
		}
		return stopAlarmCmd(a.engine, a.snapshot.AlarmID)

	case key.Matches(msg, a.keys.Snooze):
		if !a.snapshot.Active {
			a.SetStatus("No alarm is ringing", false)
			return nil
		}
		if a.snapshot.NFCRequired {
			a.SetStatus("NFC alarms cannot be snoozed", true)
			return nil
		}
		return snoozeAlarmCmd(a.engine, a.snapshot.AlarmID, a.snapshot.SoundID)

	case key.Matches(msg, a.keys.VolumeUp):
		return setVolumeCmd(a.engine, a.volume+volumeStep)

	case key.Matches(msg, a.keys.VolumeDown):
		return setVolumeCmd(a.engine, a.volume-volumeStep)

	case key.Matches(msg, a.keys.Undo):
		if a.undoBusy {
			a.SetStatus("Undo: busy", true)
			return nil
		}
		a.undoBusy = true
		return undoCmd(a.undoManager)

	case key.Matches(msg, a.keys.Redo):
		if a.undoBusy {
			a.SetStatus("Redo: busy", true)
			return nil
		}
		a.undoBusy = true
		return redoCmd(a.undoManager)

	case key.Matches(msg, a.alarmsPane.keys.Cancel):
		entry, ok := a.alarmsPane.Selected()
		if !ok {
			a.SetStatus("No alarm selected", true)
			return nil
		}
		cmd := cancelAlarmCmd(a.engine, entry)
		if !a.config.ConfirmCancel {
			return cmd
		}
		a.confirm = &confirmState{
			title: "Cancel alarm?",
			body:  truncateText(a.alarmsPane.formatRow(entry, a.now), 60),
			cmd:   cmd,
		}
		return nil
	}

	return a.alarmsPane.Update(msg)
}

// updateLayout recalculates pane sizes based on terminal dimensions.
func (a *App) updateLayout() {
	a.helpOverlay.SetSize(a.width, a.height)

	// Title (1), banner (up to 6), help bar (1)
	contentHeight := a.height - 4
	if a.snapshot.Active {
		contentHeight -= 6
	}
	if contentHeight < 8 {
		contentHeight = 8
	}
	width := a.width - 2
	if width < 30 {
		width = 30
	}
	a.alarmsPane.SetSize(width, contentHeight)
}

// View renders the console.
func (a *App) View() string {
	if a.quitting {
		return "\n  Bye. Scheduled alarms stay armed while the daemon runs.\n\n"
	}

	if a.confirm != nil {
		return a.renderConfirm()
	}

	if a.showHelp {
		return a.helpOverlay.View()
	}

	var b strings.Builder
	b.WriteString(a.renderTitleBar())
	b.WriteString("\n")

	if banner := renderBanner(a.styles, a.snapshot, a.now, a.volume, a.width); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}

	b.WriteString(a.alarmsPane.View(a.now))
	b.WriteString("\n")
	b.WriteString(a.renderHelpBar())

	return b.String()
}

func (a *App) renderConfirm() string {
	overlayWidth := 60
	if a.width > 0 {
		overlayWidth = min(60, max(20, a.width-4))
	}

	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(a.styles.ColorAlert).
		Padding(1, 2).
		Width(overlayWidth)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(a.styles.ColorAlert).
		MarginBottom(1)

	bodyStyle := lipgloss.NewStyle().
		Foreground(a.styles.ColorText)

	hintStyle := lipgloss.NewStyle().
		Foreground(a.styles.ColorTextMuted)

	var b strings.Builder
	b.WriteString(titleStyle.Render(a.confirm.title))
	b.WriteString("\n\n")
	b.WriteString(bodyStyle.Render(a.confirm.body))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("[y/enter] confirm    [n/esc] keep"))

	content := overlayStyle.Render(b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}

// renderTitleBar shows the name, the clock and the volume.
func (a *App) renderTitleBar() string {
	title := a.styles.TitleStyle.Render(" alarmclock ")
	clock := a.styles.ClockStyle.Render(a.now.Format("15:04:05"))
	date := a.styles.DateStyle.Render(a.now.Format("Mon Jan 2"))
	volume := a.styles.StatLabelStyle.Render("vol ") + a.styles.StatValueStyle.Render(fmt.Sprintf("%d%%", a.volume))

	used := lipgloss.Width(title) + lipgloss.Width(clock) + lipgloss.Width(date) + lipgloss.Width(volume)
	spacer := a.width - used - 4
	if spacer < 2 {
		spacer = 2
	}
	left := strings.Repeat(" ", spacer/2)
	right := strings.Repeat(" ", spacer-spacer/2)

	return title + left + clock + "  " + date + right + volume
}

// renderHelpBar creates the bottom help bar with context-sensitive hints.
func (a *App) renderHelpBar() string {
	if a.status != "" {
		if a.statusErr {
			return a.styles.ErrorStyle.Render(a.status)
		}
		return a.styles.StatusStyle.Render(a.status)
	}

	if a.alarmsPane.IsAdding() {
		return a.styles.RenderHelp(
			"enter", "save",
			"esc", "cancel",
		)
	}

	if a.snapshot.Active {
		if a.snapshot.NFCRequired {
			return a.styles.RenderHelp(
				"n", "tag scanned",
				"+/-", "volume",
				"?", "help",
			)
		}
		return a.styles.RenderHelp(
			"s", "stop",
			"z", "snooze",
			"+/-", "volume",
			"?", "help",
		)
	}

	return a.styles.RenderHelp(
		"a", "add",
		"x", "cancel",
		"j/k", "nav",
		"+/-", "volume",
		"?", "help",
		"q", "quit",
	)
}

// SetStatus sets a status message to display to the user.
func (a *App) SetStatus(msg string, isErr bool) {
	a.status = msg
	a.statusErr = isErr
	ttl := 5 * time.Second
	if isErr {
		ttl = 8 * time.Second
	}
	a.statusUntil = a.engine.Now().Add(ttl)
}

// Run starts the Bubble Tea program against engine.
func Run(engine Engine, styles *Styles, cfg *AppConfig) error {
	app := NewApp(engine, styles, cfg)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
