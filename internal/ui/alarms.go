package ui

import (
	"fmt"
	"strings"
	"time"

	"alarmclock/internal/config"
	"alarmclock/internal/registry"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AlarmsPane lists the scheduled alarms and takes new ones.
type AlarmsPane struct {
	alarms   []registry.Entry
	cursor   int
	focused  bool
	width    int
	height   int
	adding   bool
	input    textinput.Model
	inputErr string
	engine   Engine
	styles   *Styles

	// Key bindings
	keys      AlarmKeyMap
	inputKeys InputKeyMap
}

// NewAlarmsPane creates a new alarm list with default key bindings.
func NewAlarmsPane(engine Engine, styles *Styles) *AlarmsPane {
	return NewAlarmsPaneWithKeys(engine, styles, &config.KeysConfig{})
}

// NewAlarmsPaneWithKeys creates a new alarm list with custom key bindings.
func NewAlarmsPaneWithKeys(engine Engine, styles *Styles, keyCfg *config.KeysConfig) *AlarmsPane {
	if keyCfg == nil {
		keyCfg = &config.KeysConfig{}
	}
	ti := textinput.New()
	ti.Placeholder = "07:30 [sound 1-8] [nfc]"
	ti.CharLimit = 32
	ti.Width = 40

	return &AlarmsPane{
		alarms:    []registry.Entry{},
		focused:   true,
		input:     ti,
		engine:    engine,
		styles:    styles,
		keys:      NewAlarmKeyMap(keyCfg),
		inputKeys: NewInputKeyMap(keyCfg),
	}
}

// LoadAlarmsCmd returns a command that loads alarms asynchronously.
func (p *AlarmsPane) LoadAlarmsCmd() tea.Cmd {
	return loadAlarmsCmd(p.engine)
}

// setAlarms replaces the list and keeps the cursor in bounds.
func (p *AlarmsPane) setAlarms(alarms []registry.Entry) {
	p.alarms = alarms
	if p.cursor >= len(p.alarms) {
		p.cursor = max(0, len(p.alarms)-1)
	}
}

// SetSize sets the pane dimensions.
func (p *AlarmsPane) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = max(10, width-6)
}

// SetFocused sets whether this pane is focused.
func (p *AlarmsPane) SetFocused(focused bool) {
	p.focused = focused
}

// IsAdding returns whether the add-alarm input is open.
func (p *AlarmsPane) IsAdding() bool {
	return p.adding
}

// Selected returns the alarm under the cursor.
func (p *AlarmsPane) Selected() (registry.Entry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.alarms) {
		return registry.Entry{}, false
	}
	return p.alarms[p.cursor], true
}

// Alarms returns the listed alarms.
func (p *AlarmsPane) Alarms() []registry.Entry {
	return p.alarms
}

// Update handles messages for the alarm list. Cancel is handled by the App
// so it can ask for confirmation.
func (p *AlarmsPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case alarmsLoadedMsg:
		if msg.err == nil {
			p.setAlarms(msg.alarms)
		}
		return nil

	case alarmScheduledMsg, alarmCancelledMsg:
		return p.LoadAlarmsCmd()
	}

	if p.adding {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(msg, p.inputKeys.Confirm):
				text := strings.TrimSpace(p.input.Value())
				if text == "" {
					p.closeInput()
					return nil
				}
				spec, err := ParseAlarmSpec(text)
				if err != nil {
					p.inputErr = err.Error()
					return nil
				}
				p.closeInput()
				return scheduleAlarmCmd(p.engine, spec)

			case key.Matches(msg, p.inputKeys.Cancel):
				p.closeInput()
				return nil
			}
		}

		p.input, cmd = p.input.Update(msg)
		return cmd
	}

	if !p.focused {
		return nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, p.keys.Down):
			if len(p.alarms) > 0 {
				p.cursor = min(p.cursor+1, len(p.alarms)-1)
			}

		case key.Matches(msg, p.keys.Up):
			if len(p.alarms) > 0 {
				p.cursor = max(p.cursor-1, 0)
			}

		case key.Matches(msg, p.keys.Top):
			p.cursor = 0

		case key.Matches(msg, p.keys.Bottom):
			if len(p.alarms) > 0 {
				p.cursor = len(p.alarms) - 1
			}

		case key.Matches(msg, p.keys.Add):
			p.adding = true
			p.inputErr = ""
			p.input.Focus()
			return textinput.Blink
		}
	}

	return nil
}

func (p *AlarmsPane) closeInput() {
	p.adding = false
	p.inputErr = ""
	p.input.Reset()
	p.input.Blur()
}

// View renders the alarm list relative to now.
func (p *AlarmsPane) View(now time.Time) string {
	var b strings.Builder

	b.WriteString(p.styles.PaneTitleStyle.Render("⏰ ALARMS"))
	b.WriteString("\n")

	sepWidth := p.width - 4
	if sepWidth < 10 {
		sepWidth = 30
	}
	b.WriteString(lipgloss.NewStyle().Foreground(p.styles.ColorMuted).Render(strings.Repeat("─", sepWidth)))
	b.WriteString("\n")

	if len(p.alarms) == 0 && !p.adding {
		b.WriteString(lipgloss.NewStyle().Foreground(p.styles.ColorTextMuted).Italic(true).Render("  No alarms set. Press 'a' to add one."))
		b.WriteString("\n")
	} else {
		maxRows := p.height - 6
		if maxRows < 3 {
			maxRows = 5
		}
		startIdx := 0
		if p.cursor >= maxRows {
			startIdx = p.cursor - maxRows + 1
		}

		for i, e := range p.alarms {
			if i < startIdx || i >= startIdx+maxRows {
				continue
			}
			line := p.formatRow(e, now)
			if i == p.cursor && p.focused && !p.adding {
				line = p.styles.AlarmSelectedStyle.Render(" " + line + " ")
			} else {
				line = " " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}

		b.WriteString("\n")
		next := ""
		if len(p.alarms) > 0 {
			next = " · next in " + formatUntil(p.alarms[0].TriggerTime.Sub(now))
		}
		b.WriteString("  " + p.styles.StatLabelStyle.Render(fmt.Sprintf("%d scheduled%s", len(p.alarms), next)))
		b.WriteString("\n")
	}

	if p.adding {
		b.WriteString("\n")
		b.WriteString(p.styles.InputPromptStyle.Render("+ ") + p.input.View())
		b.WriteString("\n")
		if p.inputErr != "" {
			b.WriteString("  " + p.styles.ErrorStyle.Render(p.inputErr))
			b.WriteString("\n")
		}
	}

	style := p.styles.PaneStyle
	if p.focused {
		style = p.styles.PaneFocusedStyle
	}
	return style.Width(p.width).Height(p.height).Render(b.String())
}

// formatRow renders "#3  07:30  Tue  sound 2  [nfc]  in 8h 12m".
func (p *AlarmsPane) formatRow(e registry.Entry, now time.Time) string {
	parts := []string{
		fmt.Sprintf("#%-3d", e.AlarmID),
		p.styles.AlarmTimeStyle.Render(e.TriggerTime.Format("15:04")),
		p.styles.AlarmMetaStyle.Render(dayLabel(e.TriggerTime, now)),
		p.styles.AlarmMetaStyle.Render(fmt.Sprintf("sound %d", e.SoundID)),
	}
	if e.NFCRequired {
		parts = append(parts, p.styles.NFCBadge)
	}
	parts = append(parts, p.styles.AlarmMetaStyle.Render("in "+formatUntil(e.TriggerTime.Sub(now))))
	return strings.Join(parts, "  ")
}

// dayLabel names the day of t relative to now.
func dayLabel(t, now time.Time) string {
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.Date()
	today := time.Date(y1, m1, d1, 0, 0, 0, 0, now.Location())
	day := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())
	switch days := int(day.Sub(today).Hours() / 24); {
	case days == 0:
		return "today"
	case days == 1:
		return "tmrw"
	default:
		return t.Format("Mon")
	}
}

// formatUntil renders a countdown as "45s", "12m" or "8h 12m".
func formatUntil(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
