// Package main is the entry point for alarmclock.
// This file contains the run subcommand: the daemon, with or without the
// console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"alarmclock/internal/config"
	"alarmclock/internal/daemon"
	"alarmclock/internal/logging"
	"alarmclock/internal/ui"
)

const runHelpText = `alarmclock run - Start the alarm daemon

USAGE:
    alarmclock run [OPTIONS]

OPTIONS:
    --headless     Run without the console (logs to stderr)
    --ephemeral    Keep all state in memory (nothing survives exit)
    -h, --help     Show this help message

DESCRIPTION:
    Restores a recently ringing alarm, re-arms future alarms and keeps
    them armed until interrupted. Changes made by other alarmclock
    commands are picked up while it runs.

    With the console, logs go to log.file or ~/.alarmclock/alarmclock.log.
`

func runDaemon(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	headless := fs.Bool("headless", false, "run without the console")
	ephemeral := fs.Bool("ephemeral", false, "keep all state in memory")

	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, runHelpText)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *helpFlag {
		fmt.Print(runHelpText)
		os.Exit(0)
	}

	cfg := loadConfig()
	if !*headless && cfg.Log.File == "" {
		// The console owns the terminal.
		cfg.Log.File = filepath.Join(cfg.GetDataDir(), "alarmclock.log")
	}
	closeLog := initLogging(cfg)
	defer closeLog()

	if err := serve(cfg, *headless, *ephemeral); err != nil {
		closeLog()
		fatalf("%v", err)
	}
}

func serve(cfg *config.Config, headless, ephemeral bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.Component("main")

	d, err := daemon.New(ctx, cfg, daemon.Options{Ephemeral: ephemeral})
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	if _, err := d.Recover(ctx); err != nil {
		// Partial recovery still leaves a usable engine.
		log.Error().Err(err).Msg("boot recovery failed")
	}

	svcCtx, cancel := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- d.Serve(svcCtx) }()
	defer func() {
		cancel()
		<-served
	}()

	log.Info().
		Str("version", version).
		Str("store", cfg.Store).
		Str("data_dir", cfg.GetDataDir()).
		Bool("headless", headless).
		Msg("alarmclock running")

	if headless {
		select {
		case <-ctx.Done():
		case err := <-served:
			served <- err
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("services stopped: %w", err)
			}
		}
		log.Info().Msg("shutting down")
		return nil
	}

	engine := ui.NewLocalEngine(d.Coordinator(), d.Registry(), d.Clock())
	appCfg := &ui.AppConfig{
		Keys:          &cfg.Keys,
		ConfirmCancel: cfg.UX.ConfirmCancel,
	}
	if err := ui.Run(engine, ui.NewStylesFromTheme(&cfg.Theme), appCfg); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// loadConfig loads the configuration or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatalf("loading config: %v", err)
	}
	return cfg
}

// initLogging configures the global logger and returns a closer for the
// log file, if any.
func initLogging(cfg *config.Config) func() {
	logCfg, file, err := cfg.LoggingConfig()
	if err != nil {
		fatalf("opening log: %v", err)
	}
	logging.Init(logCfg)
	if file == nil {
		return func() {}
	}
	return func() { _ = file.Close() }
}
