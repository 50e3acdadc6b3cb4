// Package main is the entry point for alarmclock.
// This file contains the subcommands that edit alarms in the shared store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"alarmclock/internal/config"
	"alarmclock/internal/fsutil"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/prefs"
	"alarmclock/internal/registry"
	"alarmclock/internal/reports"
	"alarmclock/internal/sound"
	"alarmclock/internal/ui"
)

const scheduleHelpText = `alarmclock schedule - Schedule an alarm

USAGE:
    alarmclock schedule (--at TIME | --in DURATION) [OPTIONS]

OPTIONS:
    --at TIME        HH:MM (next occurrence) or RFC3339 (2026-03-01T07:30:00+01:00)
    --in DURATION    Relative time, e.g. 20m or 1h30m
    --sound N        Alarm tone 1-8 (default 1)
    --nfc            Only the NFC tag can stop this alarm
    --id N           Alarm id; replaces an alarm with the same id (default: next free id)
    -h, --help       Show this help message
`

func runSchedule(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)

	at := fs.String("at", "", "HH:MM or RFC3339 time")
	in := fs.Duration("in", 0, "relative time")
	soundID := fs.Int("sound", registry.DefaultSoundID, "alarm tone 1-8")
	nfc := fs.Bool("nfc", false, "require the NFC tag to stop")
	id := fs.Int("id", 0, "alarm id")

	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")

	parseOrExit(fs, args, helpFlag, scheduleHelpText)

	if (*at == "") == (*in == 0) {
		fatalf("exactly one of --at or --in is required")
	}
	if *soundID < 1 || *soundID > sound.NumSounds {
		fatalf("--sound must be 1-%d, got %d", sound.NumSounds, *soundID)
	}

	now := time.Now()
	var when time.Time
	if *in != 0 {
		if *in < 0 {
			fatalf("--in must be positive, got %s", *in)
		}
		when = now.Add(*in)
	} else {
		t, err := parseAt(*at, now)
		if err != nil {
			fatalf("%v", err)
		}
		when = t
	}
	if !when.After(now) {
		fatalf("%s is in the past", when.Format(time.RFC3339))
	}

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	alarmID := *id
	if alarmID < 0 {
		fatalf("--id must not be negative")
	}
	if alarmID == 0 {
		entries, _, err := reg.LoadAll(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		alarmID = ui.NextAlarmID(entries, activeSnapshot(ctx, reg))
	}

	entry := registry.Entry{
		AlarmID:     alarmID,
		SoundID:     *soundID,
		TriggerTime: when,
		NFCRequired: *nfc,
	}
	if err := reg.Put(ctx, entry); err != nil {
		closeStore()
		fatalf("%v", err)
	}

	fmt.Printf("Scheduled alarm #%d for %s (in %s)\n",
		alarmID, when.Format("Mon 15:04"), reports.FormatUntil(when.Sub(now)))
}

// parseAt accepts HH:MM (next occurrence after now) or RFC3339.
func parseAt(s string, now time.Time) (time.Time, error) {
	if strings.Contains(s, "T") {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --at %q: %w", s, err)
		}
		return t, nil
	}
	h, m, err := ui.ParseClock(s)
	if err != nil {
		return time.Time{}, err
	}
	return ui.NextOccurrence(now, h, m), nil
}

func runCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")
	const help = "alarmclock cancel ID - Cancel an alarm; a ringing alarm is stopped\n"
	parseOrExit(fs, args, helpFlag, help)

	alarmID := requireID(fs, help)

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	_, scheduled, err := reg.Get(ctx, alarmID)
	if err != nil {
		closeStore()
		fatalf("%v", err)
	}
	if err := reg.Remove(ctx, alarmID); err != nil {
		closeStore()
		fatalf("%v", err)
	}

	ringing := false
	if a, ok, err := reg.Active(ctx); err == nil && ok && a.AlarmID == alarmID {
		ringing = true
		if err := reg.PostPending(ctx, registry.Pending{Action: registry.ActionStop, AlarmID: alarmID}); err != nil {
			closeStore()
			fatalf("%v", err)
		}
	}

	switch {
	case ringing:
		fmt.Printf("Cancelled alarm #%d and asked the daemon to stop it\n", alarmID)
	case scheduled:
		fmt.Printf("Cancelled alarm #%d\n", alarmID)
	default:
		fmt.Printf("No alarm #%d was scheduled\n", alarmID)
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output JSON")
	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")
	parseOrExit(fs, args, helpFlag, "alarmclock list [--json] - List scheduled alarms\n")

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	report, err := reports.NewGenerator(reg, nil).Generate(ctx)
	if err != nil {
		closeStore()
		fatalf("%v", err)
	}

	if *jsonFlag {
		data, err := reports.FormatJSON(report)
		if err != nil {
			closeStore()
			fatalf("%v", err)
		}
		fmt.Println(string(data))
		return
	}
	fmt.Print(reports.FormatText(report))
}

const stopHelpText = `alarmclock stop - Stop the ringing alarm

USAGE:
    alarmclock stop [--tag] [ID]

OPTIONS:
    --tag        The NFC tag has been scanned (required for NFC alarms)
    -h, --help   Show this help message
`

func runStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	tag := fs.Bool("tag", false, "the NFC tag has been scanned")
	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")
	parseOrExit(fs, args, helpFlag, stopHelpText)

	alarmID := optionalID(fs, stopHelpText)

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	active, ok := ringingAlarm(ctx, reg, alarmID)
	if !ok {
		fmt.Println("No alarm is ringing")
		return
	}
	if active.NFCRequired && !*tag {
		closeStore()
		fatalf("alarm #%d can only be stopped with its NFC tag (pass --tag once scanned)", active.AlarmID)
	}

	if err := reg.PostPending(ctx, registry.Pending{Action: registry.ActionStop, AlarmID: active.AlarmID}); err != nil {
		closeStore()
		fatalf("%v", err)
	}
	fmt.Printf("Asked the daemon to stop alarm #%d\n", active.AlarmID)
}

func runSnooze(args []string) {
	fs := flag.NewFlagSet("snooze", flag.ExitOnError)
	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")
	const help = "alarmclock snooze [ID] - Snooze the ringing alarm\n"
	parseOrExit(fs, args, helpFlag, help)

	alarmID := optionalID(fs, help)

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	active, ok := ringingAlarm(ctx, reg, alarmID)
	if !ok {
		fmt.Println("No alarm is ringing")
		return
	}
	if active.NFCRequired {
		closeStore()
		fatalf("alarm #%d requires its NFC tag and cannot be snoozed", active.AlarmID)
	}

	p := registry.Pending{Action: registry.ActionSnooze, AlarmID: active.AlarmID, SoundID: active.SoundID}
	if err := reg.PostPending(ctx, p); err != nil {
		closeStore()
		fatalf("%v", err)
	}
	fmt.Printf("Asked the daemon to snooze alarm #%d for %s\n", active.AlarmID, cfg.Alarm.SnoozeDelay)
}

func runTrigger(args []string) {
	fs := flag.NewFlagSet("trigger", flag.ExitOnError)
	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")
	const help = "alarmclock trigger ID - Ring a scheduled alarm now\n"
	parseOrExit(fs, args, helpFlag, help)

	alarmID := requireID(fs, help)

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	entry, ok, err := reg.Get(ctx, alarmID)
	if err != nil {
		closeStore()
		fatalf("%v", err)
	}
	if !ok {
		closeStore()
		fatalf("no alarm #%d is scheduled", alarmID)
	}

	p := registry.Pending{Action: registry.ActionTrigger, AlarmID: alarmID, SoundID: entry.SoundID}
	if err := reg.PostPending(ctx, p); err != nil {
		closeStore()
		fatalf("%v", err)
	}
	fmt.Printf("Asked the daemon to ring alarm #%d\n", alarmID)
}

func runVolume(args []string) {
	fs := flag.NewFlagSet("volume", flag.ExitOnError)
	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")
	const help = "alarmclock volume [PCT] - Show or set the alarm volume (0-100)\n"
	parseOrExit(fs, args, helpFlag, help)

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	defer closeStore()

	if fs.NArg() == 0 {
		fmt.Printf("%d%%\n", reg.Volume(ctx, cfg.Alarm.DefaultVolume))
		return
	}

	pct, err := strconv.Atoi(strings.TrimSuffix(fs.Arg(0), "%"))
	if err != nil || pct < 0 || pct > 100 {
		closeStore()
		fatalf("volume must be 0-100, got %q", fs.Arg(0))
	}
	pct, err = reg.SetVolume(ctx, pct)
	if err != nil {
		closeStore()
		fatalf("%v", err)
	}
	fmt.Printf("Volume set to %d%%\n", pct)
}

// Helpers

// openRegistry opens the configured store, or exits.
func openRegistry(ctx context.Context, cfg *config.Config) (*registry.Registry, func()) {
	store := openStore(ctx, cfg)
	return registry.New(store), func() { _ = store.Close() }
}

func openStore(ctx context.Context, cfg *config.Config) prefs.Store {
	if cfg.Store == prefs.BackendMemory {
		fatalf("store %q only exists inside a running daemon", prefs.BackendMemory)
	}
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, fsutil.DirPerm); err != nil {
		fatalf("creating data directory: %v", err)
	}
	store, err := prefs.Open(ctx, cfg.Store, dataDir)
	if err != nil {
		fatalf("opening store: %v", err)
	}
	return store
}

// ringingAlarm returns the recorded active alarm. A non-negative alarmID
// must match it.
func ringingAlarm(ctx context.Context, reg *registry.Registry, alarmID int) (registry.Active, bool) {
	active, ok, err := reg.Active(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	if !ok || (alarmID >= 0 && active.AlarmID != alarmID) {
		return registry.Active{}, false
	}
	return active, true
}

func activeSnapshot(ctx context.Context, reg *registry.Registry) lifecycle.Snapshot {
	a, ok, err := reg.Active(ctx)
	if err != nil || !ok {
		return lifecycle.Snapshot{}
	}
	return lifecycle.Snapshot{Active: true, AlarmID: a.AlarmID, SoundID: a.SoundID, NFCRequired: a.NFCRequired}
}

func parseOrExit(fs *flag.FlagSet, args []string, helpFlag *bool, help string) {
	fs.Usage = func() { fmt.Fprint(os.Stderr, help) }
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *helpFlag {
		fmt.Print(help)
		os.Exit(0)
	}
}

func requireID(fs *flag.FlagSet, help string) int {
	if fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return parseID(fs.Arg(0))
}

// optionalID returns -1 when no id was given.
func optionalID(fs *flag.FlagSet, help string) int {
	switch fs.NArg() {
	case 0:
		return -1
	case 1:
		return parseID(fs.Arg(0))
	default:
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
		return -1
	}
}

func parseID(s string) int {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id < 0 {
		fatalf("invalid alarm id %q", s)
	}
	return id
}
