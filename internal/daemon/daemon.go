// Package daemon assembles the alarm engine from configuration and runs it
// under a supervisor tree: boot recovery, the registry watcher that picks up
// changes made by other processes, and the optional metrics endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"alarmclock/internal/boot"
	"alarmclock/internal/clock"
	"alarmclock/internal/config"
	"alarmclock/internal/fsutil"
	"alarmclock/internal/lifecycle"
	"alarmclock/internal/logging"
	"alarmclock/internal/metrics"
	"alarmclock/internal/notify"
	"alarmclock/internal/platform"
	"alarmclock/internal/prefs"
	"alarmclock/internal/registry"
	"alarmclock/internal/resource"
	"alarmclock/internal/scheduler"
	"alarmclock/internal/sound"
)

// Options override the collaborators New would otherwise build from the host.
type Options struct {
	// Ephemeral keeps all state in memory.
	Ephemeral bool

	Store        prefs.Store
	Clock        clock.Clock
	Host         *platform.Host
	Notifier     notify.Notifier
	SoundBackend sound.Backend
}

// Daemon owns the object graph of a running alarm engine.
type Daemon struct {
	cfg     *config.Config
	dataDir string
	backend string
	log     zerolog.Logger
	clock   clock.Clock

	store     prefs.Store
	reg       *registry.Registry
	guard     *resource.Guard
	presenter *notify.Presenter
	loop      *sound.Loop
	sched     *scheduler.Scheduler
	coord     *lifecycle.Coordinator

	// syncMu serialises Reconcile and ProcessPending.
	syncMu sync.Mutex
}

// New builds the engine described by cfg. Nothing is armed until Recover.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	d := &Daemon{
		cfg:     cfg,
		dataDir: cfg.GetDataDir(),
		backend: cfg.Store,
		log:     logging.Component("daemon"),
		clock:   opts.Clock,
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}

	store, err := d.openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	d.store = store
	d.reg = registry.New(store)

	host := platform.New()
	if opts.Host != nil {
		host = *opts.Host
	}
	d.guard = resource.NewGuard(cfg.ResourceConfig(), host, d.clock, logging.Component("resource"), metrics.Resources{})

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.New()
	}
	d.presenter = notify.NewPresenter(notifier, cfg.NotifyConfig(), logging.Component("notify"))

	backend := opts.SoundBackend
	if backend == nil {
		backend = d.soundBackend()
	}
	d.loop = sound.NewLoop(cfg.SoundConfig(), backend, d.clock, logging.Component("sound"))

	d.sched = scheduler.New(d.clock, func(e registry.Entry) { d.coord.Deliver(e) }, logging.Component("scheduler"))

	d.coord = lifecycle.New(cfg.LifecycleConfig(), lifecycle.Deps{
		Registry:      d.reg,
		Resources:     d.guard,
		Notifications: d.presenter,
		Sound:         d.loop,
		Scheduler:     d.sched,
		Clock:         d.clock,
		Log:           logging.Component("lifecycle"),
	})
	return d, nil
}

func (d *Daemon) openStore(ctx context.Context, opts Options) (prefs.Store, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}
	if opts.Ephemeral {
		d.backend = prefs.BackendMemory
		return prefs.NewMemoryStore(), nil
	}

	if err := os.MkdirAll(d.dataDir, fsutil.DirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := prefs.Open(ctx, d.backend, d.dataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.backend, err)
	}
	if fs, ok := store.(*prefs.FileStore); ok {
		fs.OnRecover(func(err error) {
			d.log.Warn().Err(err).Str("path", fs.Path()).Msg("preferences file was damaged and has been recovered")
		})
	}
	return store, nil
}

func (d *Daemon) soundBackend() sound.Backend {
	if !d.cfg.Sound.Enabled {
		return sound.Silent{}
	}
	b, err := sound.NewProcessBackend()
	if err != nil {
		d.log.Warn().Err(err).Msg("no audio player found, alarms will be silent")
		return sound.Silent{}
	}
	d.log.Debug().Str("player", b.Name()).Msg("audio player selected")
	return b
}

// Coordinator returns the alarm lifecycle coordinator.
func (d *Daemon) Coordinator() *lifecycle.Coordinator { return d.coord }

// Registry returns the persistent alarm registry.
func (d *Daemon) Registry() *registry.Registry { return d.reg }

// Scheduler returns the in-process exact scheduler.
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.sched }

// Presenter returns the notification presenter.
func (d *Daemon) Presenter() *notify.Presenter { return d.presenter }

// Clock returns the clock driving the engine.
func (d *Daemon) Clock() clock.Clock { return d.clock }

// Recover runs boot recovery: leftover notifications are cleared, a recent
// active alarm rings again and future alarms are re-armed.
func (d *Daemon) Recover(ctx context.Context) (boot.Report, error) {
	rec := &boot.Recovery{
		Registry:      d.reg,
		Scheduler:     d.sched,
		Coordinator:   d.coord,
		Notifications: d.presenter,
		Clock:         d.clock,
		Log:           logging.Component("boot"),
		Staleness:     d.cfg.Alarm.RecoveryStaleness,
	}
	rep, err := rec.Run(ctx)
	if err != nil {
		return rep, fmt.Errorf("boot recovery: %w", err)
	}
	d.log.Info().
		Int("rearmed", len(rep.Rearmed)).
		Int("dropped", len(rep.Dropped)).
		Int("corrupt", rep.Corrupt).
		Bool("restored", rep.Restored != nil).
		Msg("boot recovery complete")
	return rep, nil
}

// Close silences the process and closes the store. A ringing alarm stays
// recorded as active so the next start can restore it.
func (d *Daemon) Close() error {
	var errs []error
	d.sched.Close()
	if d.loop.Stop() {
		d.log.Info().Msg("silenced ringing alarm on shutdown")
	}
	if err := d.guard.ReleaseAll(); err != nil {
		errs = append(errs, err)
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
