// Package ui provides the terminal console for alarmclock.
// This file defines key bindings using the Bubble Tea key package for
// type-safe key matching, help text generation, and user customization.
package ui

import (
	"strings"

	"alarmclock/internal/config"

	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// Helpers
// =============================================================================

// parseKeys splits a comma-separated string into individual keys.
// If the input is empty, returns the default keys.
func parseKeys(customKeys string, defaultKeys ...string) []string {
	if customKeys == "" {
		return defaultKeys
	}
	keys := strings.Split(customKeys, ",")
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		trimmed := strings.TrimSpace(k)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// =============================================================================
// Global Keys (available whenever no input is open)
// =============================================================================

// GlobalKeyMap defines keys available throughout the console.
type GlobalKeyMap struct {
	Quit       key.Binding
	Help       key.Binding
	Stop       key.Binding
	Snooze     key.Binding
	ScanTag    key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Undo       key.Binding
	Redo       key.Binding
}

// DefaultGlobalKeyMap returns the default global key bindings.
func DefaultGlobalKeyMap() GlobalKeyMap {
	return NewGlobalKeyMap(&config.KeysConfig{})
}

// NewGlobalKeyMap creates global key bindings from config.
func NewGlobalKeyMap(cfg *config.KeysConfig) GlobalKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return GlobalKeyMap{
		Quit: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Quit, "q", "ctrl+c")...),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Help, "?")...),
			key.WithHelp("?", "help"),
		),
		Stop: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Stop, "s")...),
			key.WithHelp("s", "stop"),
		),
		Snooze: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Snooze, "z")...),
			key.WithHelp("z", "snooze"),
		),
		ScanTag: key.NewBinding(
			key.WithKeys(parseKeys(cfg.ScanTag, "n")...),
			key.WithHelp("n", "tag scanned"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys(parseKeys(cfg.VolumeUp, "+", "=")...),
			key.WithHelp("+", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys(parseKeys(cfg.VolumeDown, "-")...),
			key.WithHelp("-", "volume down"),
		),
		Undo: key.NewBinding(
			key.WithKeys("ctrl+z", "u"),
			key.WithHelp("u", "undo"),
		),
		Redo: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "redo"),
		),
	}
}

// =============================================================================
// Navigation Keys
// =============================================================================

// NavigationKeyMap defines keys for list navigation.
type NavigationKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
}

// NewNavigationKeyMap creates navigation key bindings from config.
func NewNavigationKeyMap(cfg *config.KeysConfig) NavigationKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return NavigationKeyMap{
		Up: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Up, "k", "up")...),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Down, "j", "down")...),
			key.WithHelp("j/↓", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// =============================================================================
// Input Keys
// =============================================================================

// InputKeyMap defines keys for text input mode.
type InputKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultInputKeyMap returns the default input key bindings.
func DefaultInputKeyMap() InputKeyMap {
	return NewInputKeyMap(&config.KeysConfig{})
}

// NewInputKeyMap creates input key bindings from config.
func NewInputKeyMap(cfg *config.KeysConfig) InputKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return InputKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Confirm, "enter")...),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Cancel, "esc")...),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// =============================================================================
// Alarm List Keys
// =============================================================================

// AlarmKeyMap defines keys for the scheduled alarm list.
type AlarmKeyMap struct {
	Add    key.Binding
	Cancel key.Binding
	NavigationKeyMap
}

// DefaultAlarmKeyMap returns the default alarm list key bindings.
func DefaultAlarmKeyMap() AlarmKeyMap {
	return NewAlarmKeyMap(&config.KeysConfig{})
}

// NewAlarmKeyMap creates alarm list key bindings from config.
func NewAlarmKeyMap(cfg *config.KeysConfig) AlarmKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return AlarmKeyMap{
		Add: key.NewBinding(
			key.WithKeys(parseKeys(cfg.AddAlarm, "a")...),
			key.WithHelp("a", "add alarm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys(parseKeys(cfg.CancelAlarm, "x")...),
			key.WithHelp("x", "cancel alarm"),
		),
		NavigationKeyMap: NewNavigationKeyMap(cfg),
	}
}

// ShortHelp returns the short help for the alarm list (implements help.KeyMap).
func (k AlarmKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Cancel, k.Down}
}

// FullHelp returns the full help for the alarm list (implements help.KeyMap).
func (k AlarmKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Add, k.Cancel},
		{k.Up, k.Down, k.Top, k.Bottom},
	}
}

// =============================================================================
// Help Overlay Keys
// =============================================================================

// HelpKeyMap defines keys for the help overlay.
type HelpKeyMap struct {
	Close key.Binding
}

// DefaultHelpKeyMap returns the default help overlay key bindings.
func DefaultHelpKeyMap() HelpKeyMap {
	return HelpKeyMap{
		Close: key.NewBinding(
			key.WithKeys("?", "esc", "q", "enter", " "),
			key.WithHelp("any key", "close"),
		),
	}
}
