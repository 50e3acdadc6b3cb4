// Package main is the entry point for alarmclock.
// It dispatches subcommands; with none it starts the daemon and the console.
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const helpText = `alarmclock - An alarm clock daemon with a terminal console

USAGE:
    alarmclock [OPTIONS]
    alarmclock <command> [ARGS]

COMMANDS:
    run                  Start the daemon and the console (default)
    run --headless       Start the daemon without the console
    schedule --at HH:MM  Schedule an alarm
    cancel ID            Cancel an alarm (stops it if it is ringing)
    list                 List scheduled alarms
    stop [ID]            Stop the ringing alarm
    snooze [ID]          Snooze the ringing alarm
    trigger ID           Ring a scheduled alarm now
    volume [PCT]         Show or set the alarm volume
    backup               Snapshot all alarm state
    restore NAME         Restore a snapshot (--latest for the newest)
    export               Write the schedule as Markdown or JSON

OPTIONS:
    -h, --help           Show this help message
    -v, --version        Show version information

DESCRIPTION:
    The daemon keeps alarms armed, rings them and keeps the machine awake
    while they ring. Commands other than run edit the shared store; a
    running daemon picks the change up within a moment.

    stop, snooze and trigger are handed to the daemon as a pending action.

CONSOLE KEYS:
    s            Stop the ringing alarm
    z            Snooze the ringing alarm (5 minutes)
    n            NFC tag scanned (the only way to stop an NFC alarm)
    a            Add alarm: HH:MM [sound 1-8] [nfc]
    x            Cancel the selected alarm
    +/-          Volume up/down
    u, Ctrl+Y    Undo / redo
    ?            Help
    q            Quit

DATA STORAGE:
    ~/.alarmclock/prefs.json   (store: file, default)
    ~/.alarmclock/prefs.db     (store: sqlite)
    ~/.alarmclock/backups/     snapshots

CONFIGURATION:
    Optional config file: ~/.config/alarmclock/config.yaml

EXAMPLES:
    # Wake up at 07:30 with sound 3, stopped only by the NFC tag
    alarmclock schedule --at 07:30 --sound 3 --nfc

    # A nap alarm in 20 minutes
    alarmclock schedule --in 20m

    # Stop whatever is ringing
    alarmclock stop
`

func main() {
	if len(os.Args) > 1 {
		args := os.Args[2:]
		switch os.Args[1] {
		case "run":
			runDaemon(args)
			return
		case "schedule":
			runSchedule(args)
			return
		case "cancel":
			runCancel(args)
			return
		case "list":
			runList(args)
			return
		case "stop":
			runStop(args)
			return
		case "snooze":
			runSnooze(args)
			return
		case "trigger":
			runTrigger(args)
			return
		case "volume":
			runVolume(args)
			return
		case "backup":
			runBackup(args)
			return
		case "restore":
			runRestore(args)
			return
		case "export":
			runExport(args)
			return
		}
	}

	showVersion := flag.Bool("version", false, "show version information")
	flag.BoolVar(showVersion, "v", false, "show version information (shorthand)")

	showHelp := flag.Bool("help", false, "show help message")
	flag.BoolVar(showHelp, "h", false, "show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, helpText)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("alarmclock version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	if *showHelp {
		fmt.Print(helpText)
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unknown command: %v\n\n", flag.Args())
		flag.Usage()
		os.Exit(1)
	}

	runDaemon(nil)
}

// fatalf prints an error and exits with status 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
