//go:build linux

// Package notify provides desktop notification support.
// This file implements Linux notifications using notify-send.
package notify

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// linuxNotifier implements notifications for Linux using notify-send.
// Server-assigned ids are remembered so a notification can be replaced or
// closed later.
type linuxNotifier struct {
	mu        sync.Mutex
	serverIDs map[int]string
}

// newPlatformNotifier creates the Linux notifier.
func newPlatformNotifier() Notifier {
	return &linuxNotifier{serverIDs: make(map[int]string)}
}

// IsSupported returns true if notify-send is available.
func (n *linuxNotifier) IsSupported() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}

// Send shows a notification, replacing the previous one with the same ID.
func (n *linuxNotifier) Send(note Notification) error {
	args := []string{
		"--app-name=alarmclock",
		"--print-id",
	}
	if note.Urgency == UrgencyCritical {
		args = append(args, "--urgency=critical")
	} else {
		args = append(args, "--urgency=normal")
	}
	if note.Persistent {
		args = append(args, "--expire-time=0")
	}

	n.mu.Lock()
	prev, ok := n.serverIDs[note.ID]
	n.mu.Unlock()
	if ok {
		args = append(args, "--replace-id="+prev)
	}
	args = append(args, note.Title, note.Body)

	out, err := exec.Command("notify-send", args...).Output()
	if err != nil {
		return fmt.Errorf("notify-send failed: %w", err)
	}

	if id := strings.TrimSpace(string(out)); id != "" {
		n.mu.Lock()
		n.serverIDs[note.ID] = id
		n.mu.Unlock()
	}
	return nil
}

// Close asks the notification server to remove the notification.
func (n *linuxNotifier) Close(id int) error {
	n.mu.Lock()
	serverID, ok := n.serverIDs[id]
	delete(n.serverIDs, id)
	n.mu.Unlock()
	if !ok {
		return nil
	}
	if _, err := strconv.ParseUint(serverID, 10, 32); err != nil {
		return nil
	}
	if _, err := exec.LookPath("gdbus"); err != nil {
		return nil
	}

	cmd := exec.Command("gdbus", "call", "--session",
		"--dest", "org.freedesktop.Notifications",
		"--object-path", "/org/freedesktop/Notifications",
		"--method", "org.freedesktop.Notifications.CloseNotification",
		serverID,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}
