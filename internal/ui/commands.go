// Package ui provides the terminal console for alarmclock.
// This file contains tea.Cmd factories that wrap engine operations. These
// commands run off the Bubble Tea event loop, and each returns a message
// type defined in messages.go.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alarmclock/internal/lifecycle"
	"alarmclock/internal/registry"

	tea "github.com/charmbracelet/bubbletea"
)

// tickCmd returns a command that sends a tick every second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// =============================================================================
// Alarm Commands
// =============================================================================

// loadAlarmsCmd reads the scheduled alarms, the ringing state and the volume.
func loadAlarmsCmd(engine Engine) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		alarms, err := engine.Scheduled(ctx)
		return alarmsLoadedMsg{
			alarms:   alarms,
			snapshot: engine.Snapshot(),
			volume:   engine.Volume(ctx),
			err:      err,
		}
	}
}

// scheduleAlarmCmd adds spec under a fresh alarm id.
func scheduleAlarmCmd(engine Engine, spec AlarmSpec) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		alarms, err := engine.Scheduled(ctx)
		if err != nil {
			return alarmScheduledMsg{err: err}
		}
		entry := registry.Entry{
			AlarmID:     NextAlarmID(alarms, engine.Snapshot()),
			SoundID:     spec.SoundID,
			TriggerTime: spec.Next(engine.Now()),
			NFCRequired: spec.NFC,
		}
		return alarmScheduledMsg{entry: entry, err: scheduleEntry(ctx, engine, entry)}
	}
}

func scheduleEntry(ctx context.Context, engine Engine, e registry.Entry) error {
	ok := engine.Schedule(ctx, lifecycle.ScheduleRequest{
		AlarmID:     e.AlarmID,
		SoundID:     e.SoundID,
		At:          e.TriggerTime,
		NFCRequired: e.NFCRequired,
	})
	if !ok {
		return fmt.Errorf("alarm %d could not be scheduled", e.AlarmID)
	}
	return nil
}

// cancelAlarmCmd removes entry.
func cancelAlarmCmd(engine Engine, entry registry.Entry) tea.Cmd {
	return func() tea.Msg {
		var err error
		if !engine.Cancel(context.Background(), entry.AlarmID) {
			err = fmt.Errorf("alarm %d could not be cancelled", entry.AlarmID)
		}
		return alarmCancelledMsg{entry: entry, err: err}
	}
}

// stopAlarmCmd stops the ringing alarm.
func stopAlarmCmd(engine Engine, alarmID int) tea.Cmd {
	return func() tea.Msg {
		return alarmStoppedMsg{alarmID: alarmID, stopped: engine.Stop(context.Background(), alarmID)}
	}
}

// snoozeAlarmCmd snoozes the ringing alarm and reports when it rings again.
func snoozeAlarmCmd(engine Engine, alarmID, soundID int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		msg := alarmSnoozedMsg{alarmID: alarmID, ok: engine.Snooze(ctx, alarmID, soundID)}
		if !msg.ok {
			return msg
		}
		if alarms, err := engine.Scheduled(ctx); err == nil {
			for _, e := range alarms {
				if e.AlarmID == alarmID {
					msg.until = e.TriggerTime
					break
				}
			}
		}
		return msg
	}
}

// setVolumeCmd stores pct as the alarm volume.
func setVolumeCmd(engine Engine, pct int) tea.Cmd {
	return func() tea.Msg {
		v, err := engine.SetVolume(context.Background(), pct)
		return volumeChangedMsg{volume: v, err: err}
	}
}

// =============================================================================
// Undo/Redo Commands
// =============================================================================

func undoCmd(manager *UndoManager) tea.Cmd {
	return func() tea.Msg {
		desc, err := manager.Undo()
		return undoResultMsg{desc: desc, err: err}
	}
}

func redoCmd(manager *UndoManager) tea.Cmd {
	return func() tea.Msg {
		desc, err := manager.Redo()
		return redoResultMsg{desc: desc, err: err}
	}
}

// errAlarmPassed is returned when undo would restore an alarm whose time
// has already gone by.
var errAlarmPassed = errors.New("alarm time has passed")
