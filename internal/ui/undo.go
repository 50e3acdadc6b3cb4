// Package ui provides the terminal console for alarmclock.
// This file implements undo/redo for alarm edits using a command pattern
// with the affected entry captured for each action.
package ui

import (
	"context"
	"fmt"
	"sync"

	"alarmclock/internal/registry"

	"github.com/mattn/go-runewidth"
)

// maxHistorySize limits the undo stack to prevent unbounded memory growth.
const maxHistorySize = 50

// UndoableAction represents an action that can be undone.
// It captures the state needed to reverse the operation.
type UndoableAction struct {
	Description string       // Human-readable description for status messages
	Undo        func() error // Function to reverse the action
	Redo        func() error // Function to redo the action (optional)
}

// UndoManager maintains the undo/redo history stacks.
type UndoManager struct {
	mu        sync.Mutex
	undoStack []*UndoableAction
	redoStack []*UndoableAction
}

// NewUndoManager creates a new UndoManager instance.
func NewUndoManager() *UndoManager {
	return &UndoManager{
		undoStack: make([]*UndoableAction, 0, maxHistorySize),
		redoStack: make([]*UndoableAction, 0, maxHistorySize),
	}
}

// Push adds an undoable action to the history.
// Clears the redo stack since a new action invalidates redo history.
func (m *UndoManager) Push(action *UndoableAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Clear redo stack on new action
	m.redoStack = m.redoStack[:0]

	// Enforce max size (remove oldest if full)
	if len(m.undoStack) >= maxHistorySize {
		m.undoStack = m.undoStack[1:]
	}

	m.undoStack = append(m.undoStack, action)
}

// CanUndo returns true if there are actions to undo.
func (m *UndoManager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undoStack) > 0
}

// CanRedo returns true if there are actions to redo.
func (m *UndoManager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redoStack) > 0
}

// Undo reverses the most recent action and returns its description.
// Returns empty string and nil error if nothing to undo.
func (m *UndoManager) Undo() (string, error) {
	m.mu.Lock()
	if len(m.undoStack) == 0 {
		m.mu.Unlock()
		return "", nil
	}
	action := m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	m.mu.Unlock()

	// Execute undo
	if err := action.Undo(); err != nil {
		// Push back on failure (action not undone)
		m.mu.Lock()
		m.undoStack = append(m.undoStack, action)
		m.mu.Unlock()
		return "", err
	}

	// Push to redo stack if redo is available
	if action.Redo != nil {
		m.mu.Lock()
		m.redoStack = append(m.redoStack, action)
		m.mu.Unlock()
	}

	return action.Description, nil
}

// Redo reapplies the most recently undone action and returns its description.
// Returns empty string and nil error if nothing to redo.
func (m *UndoManager) Redo() (string, error) {
	m.mu.Lock()
	if len(m.redoStack) == 0 {
		m.mu.Unlock()
		return "", nil
	}
	action := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	m.mu.Unlock()

	// Execute redo
	if err := action.Redo(); err != nil {
		// Push back on failure
		m.mu.Lock()
		m.redoStack = append(m.redoStack, action)
		m.mu.Unlock()
		return "", err
	}

	// Push back to undo stack
	m.mu.Lock()
	m.undoStack = append(m.undoStack, action)
	m.mu.Unlock()

	return action.Description, nil
}

// Clear removes all undo/redo history.
func (m *UndoManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undoStack = m.undoStack[:0]
	m.redoStack = m.redoStack[:0]
}

// =============================================================================
// Undoable Action Factories
// =============================================================================

// NewScheduleAlarmAction creates an undoable action for adding an alarm.
func NewScheduleAlarmAction(engine Engine, entry registry.Entry) *UndoableAction {
	return &UndoableAction{
		Description: "Added alarm " + formatEntry(entry),
		Undo: func() error {
			return cancelEntry(engine, entry)
		},
		Redo: func() error {
			return restoreEntry(engine, entry)
		},
	}
}

// NewCancelAlarmAction creates an undoable action for cancelling an alarm.
// The entry is captured before cancellation so it can be restored.
func NewCancelAlarmAction(engine Engine, entry registry.Entry) *UndoableAction {
	return &UndoableAction{
		Description: "Cancelled alarm " + formatEntry(entry),
		Undo: func() error {
			return restoreEntry(engine, entry)
		},
		Redo: func() error {
			return cancelEntry(engine, entry)
		},
	}
}

func cancelEntry(engine Engine, entry registry.Entry) error {
	if !engine.Cancel(context.Background(), entry.AlarmID) {
		return fmt.Errorf("alarm %d could not be cancelled", entry.AlarmID)
	}
	return nil
}

func restoreEntry(engine Engine, entry registry.Entry) error {
	if !entry.TriggerTime.After(engine.Now()) {
		return errAlarmPassed
	}
	return scheduleEntry(context.Background(), engine, entry)
}

// formatEntry renders an entry as "#3 07:30".
func formatEntry(e registry.Entry) string {
	return fmt.Sprintf("#%d %s", e.AlarmID, e.TriggerTime.Format("15:04"))
}

// truncateText shortens text to maxLen with ellipsis if needed.
func truncateText(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	return runewidth.Truncate(text, maxLen, "..")
}
