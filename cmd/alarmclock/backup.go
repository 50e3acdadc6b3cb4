// Package main is the entry point for alarmclock.
// This file contains the backup and restore subcommand handlers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"alarmclock/internal/backup"

	"github.com/dustin/go-humanize"
)

// backupHelpText is the help message for the backup subcommand.
const backupHelpText = `alarmclock backup - Create and manage backups

USAGE:
    alarmclock backup [OPTIONS]

OPTIONS:
    -l, --list       List available backups
    --keep N         Backups to keep after creating one (default: backup.keep)
    -h, --help       Show this help message

DESCRIPTION:
    Snapshots every stored key: scheduled alarms, the ringing alarm and the
    volume. Backups are stored in ~/.alarmclock/backups/.

EXAMPLES:
    # Create a new backup
    alarmclock backup

    # List all available backups
    alarmclock backup --list
`

// runBackup handles the "alarmclock backup" subcommand.
func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)

	listFlag := fs.Bool("list", false, "list available backups")
	fs.BoolVar(listFlag, "l", false, "list available backups (shorthand)")

	keep := fs.Int("keep", 0, "backups to keep")

	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")

	parseOrExit(fs, args, helpFlag, backupHelpText)

	cfg := loadConfig()
	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	manager := backup.NewManager(store, cfg.GetDataDir(), version)

	if *listFlag {
		listBackups(manager)
		return
	}

	if *keep <= 0 {
		*keep = cfg.Backup.Keep
	}
	if err := createBackup(ctx, manager, *keep); err != nil {
		_ = store.Close()
		fatalf("%v", err)
	}
}

// createBackup creates a new backup, prunes old ones and displays the result.
func createBackup(ctx context.Context, manager *backup.Manager, keep int) error {
	name, err := manager.Create(ctx)
	if err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}

	info, err := manager.GetBackup(name)
	if err != nil {
		return fmt.Errorf("reading backup info: %w", err)
	}

	fmt.Printf("✓ Backup created: %s\n", name)
	fmt.Printf("  Alarms: %d, Ringing: %d, Keys: %d\n",
		info.Stats["alarms"], info.Stats["active"], info.Stats["keys"])
	fmt.Printf("  Location: %s\n", info.Path)

	if keep > 0 {
		pruned, err := manager.Prune(keep)
		if err != nil {
			return fmt.Errorf("pruning backups: %w", err)
		}
		if pruned > 0 {
			fmt.Printf("  Pruned %d old backup(s)\n", pruned)
		}
	}
	return nil
}

// listBackups lists all available backups.
func listBackups(manager *backup.Manager) {
	backups, err := manager.List()
	if err != nil {
		fatalf("listing backups: %v", err)
	}

	if len(backups) == 0 {
		fmt.Println("No backups available.")
		fmt.Println("Run 'alarmclock backup' to create one.")
		return
	}

	fmt.Println("Available backups:")
	for _, b := range backups {
		fmt.Printf("  %s  (%s)   Alarms: %d\n",
			b.Name, humanize.Time(b.CreatedAt), b.Stats["alarms"])
	}
}

// restoreHelpText is the help message for the restore subcommand.
const restoreHelpText = `alarmclock restore - Restore alarms from a backup

USAGE:
    alarmclock restore NAME
    alarmclock restore --latest

OPTIONS:
    --latest     Restore the most recent backup
    -h, --help   Show this help message

DESCRIPTION:
    Replaces the stored alarm state with the backup. The current state is
    backed up first. A running daemon re-arms the restored alarms; a
    restored ringing alarm rings again on the next daemon start.
`

// runRestore handles the "alarmclock restore" subcommand.
func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)

	latest := fs.Bool("latest", false, "restore the most recent backup")

	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")

	parseOrExit(fs, args, helpFlag, restoreHelpText)

	if *latest == (fs.NArg() == 1) || fs.NArg() > 1 {
		fmt.Fprint(os.Stderr, restoreHelpText)
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	manager := backup.NewManager(store, cfg.GetDataDir(), version)

	var (
		name   string
		safety string
		err    error
	)
	if *latest {
		name, safety, err = manager.RestoreLatest(ctx)
	} else {
		name = fs.Arg(0)
		safety, err = manager.Restore(ctx, name)
	}
	if err != nil {
		_ = store.Close()
		fatalf("restoring backup: %v", err)
	}

	fmt.Printf("✓ Restored from: %s\n", name)
	fmt.Printf("  Previous state saved as: %s\n", safety)
}
