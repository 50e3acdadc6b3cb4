// Package notify shows the outward alarm notification.
// It uses native notification mechanisms on macOS (osascript) and Linux
// (notify-send); Presenter tracks which notifications are on screen.
package notify

import (
	"fmt"
	"strings"
)

// Urgency mirrors the freedesktop urgency levels.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyCritical
)

// Notification is one outward notification.
type Notification struct {
	ID      int
	Title   string
	Body    string
	Urgency Urgency
	// Persistent notifications never expire on their own.
	Persistent bool
	Sound      bool
}

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// Send shows n. Sending an ID that is already shown replaces it when the
	// backend supports that.
	Send(n Notification) error

	// Close removes the notification with the given ID, if the backend can.
	Close(id int) error

	// IsSupported returns true if notifications are supported on this platform.
	IsSupported() bool
}

type noopNotifier struct{}

func (n *noopNotifier) Send(Notification) error { return nil }

func (n *noopNotifier) Close(int) error { return nil }

func (n *noopNotifier) IsSupported() bool {
	return false
}

// New creates a platform-specific notifier.
// Returns a no-op notifier if the platform doesn't support notifications.
func New() Notifier {
	n := newPlatformNotifier()
	if n == nil || !n.IsSupported() {
		return &noopNotifier{}
	}
	return n
}

// Config holds notification configuration.
type Config struct {
	// Enabled enables/disables notifications
	Enabled bool `yaml:"enabled"`

	// Sound asks the backend to play its own notification sound
	Sound bool `yaml:"sound"`
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Sound:   false, // the alarm loop plays its own sound
	}
}

// appleScript renders note as a "display notification" command. Only an
// explicit Sound asks for the system sound; the alarm loop plays the tone.
func appleScript(note Notification) string {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		escapeAppleScript(note.Body), escapeAppleScript(note.Title))
	if note.Persistent {
		script += ` subtitle "Until stopped"`
	}
	if note.Sound {
		script += ` sound name "default"`
	}
	return script
}

// escapeAppleScript escapes special characters for AppleScript strings.
func escapeAppleScript(s string) string {
	// Replace backslashes and quotes
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
