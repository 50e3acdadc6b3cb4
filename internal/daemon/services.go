package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"alarmclock/internal/logging"
	"alarmclock/internal/prefs"
)

const (
	// DefaultDebounce batches the bursts of events one atomic write produces.
	DefaultDebounce = 150 * time.Millisecond

	// DefaultPollInterval re-syncs even when no event arrived.
	DefaultPollInterval = 30 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Syncer is what the watcher runs after the store changes.
type Syncer interface {
	Sync(ctx context.Context) error
}

// StoreWatcher watches the data directory for writes to the preference
// store by other processes and runs a debounced Sync.
type StoreWatcher struct {
	dir      string
	names    map[string]bool
	syncer   Syncer
	debounce time.Duration
	poll     time.Duration
	log      zerolog.Logger
}

// NewStoreWatcher watches the files backing backend inside dir.
func NewStoreWatcher(dir, backend string, syncer Syncer) *StoreWatcher {
	names := map[string]bool{}
	switch backend {
	case prefs.BackendSQLite:
		names[prefs.SQLiteFileName] = true
		names[prefs.SQLiteFileName+"-wal"] = true
	default:
		names[prefs.FileName] = true
	}
	return &StoreWatcher{
		dir:      dir,
		names:    names,
		syncer:   syncer,
		debounce: DefaultDebounce,
		poll:     DefaultPollInterval,
		log:      logging.Component("watcher"),
	}
}

// SetIntervals overrides the debounce and poll intervals.
func (w *StoreWatcher) SetIntervals(debounce, poll time.Duration) {
	if debounce > 0 {
		w.debounce = debounce
	}
	if poll > 0 {
		w.poll = poll
	}
}

// Serve implements suture.Service.
func (w *StoreWatcher) Serve(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched rather than the file: atomic writes replace
	// the file by rename.
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Debug().Str("dir", w.dir).Msg("watching store")

	w.sync(ctx)

	poll := time.NewTicker(w.poll)
	defer poll.Stop()
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !w.names[filepath.Base(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case <-debounce:
			debounce = nil
			w.sync(ctx)

		case <-poll.C:
			w.sync(ctx)
		}
	}
}

func (w *StoreWatcher) sync(ctx context.Context) {
	if err := w.syncer.Sync(ctx); err != nil {
		w.log.Warn().Err(err).Msg("sync with store failed")
	}
}

func (w *StoreWatcher) String() string { return "store-watcher" }

// MetricsServer serves /metrics until its context ends.
type MetricsServer struct {
	server *http.Server
	log    zerolog.Logger
}

// MetricsHandler returns the mux served by MetricsServer.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// NewMetricsServer listens on addr.
func NewMetricsServer(addr string) *MetricsServer {
	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logging.Component("metrics"),
	}
}

// Serve implements suture.Service.
func (m *MetricsServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	m.log.Info().Str("addr", m.server.Addr).Msg("metrics endpoint listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (m *MetricsServer) String() string { return "metrics-server" }

// Supervisor builds the suture tree for the daemon's background services.
func (d *Daemon) Supervisor() *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger("supervisor")}
	root := suture.New("alarmclock", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})

	if d.backend != prefs.BackendMemory {
		root.Add(NewStoreWatcher(d.dataDir, d.backend, d))
	}
	if d.cfg.Metrics.Listen != "" {
		root.Add(NewMetricsServer(d.cfg.Metrics.Listen))
	}
	return root
}

// Serve runs the supervised services until ctx is cancelled.
func (d *Daemon) Serve(ctx context.Context) error {
	err := d.Supervisor().Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
