// Package daemon runs dochub in watch mode: periodic rebuilds on a schedule,
// rebuilds on manifest changes, and a Prometheus metrics endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/metrics"
)

// BuildFunc performs one full orchestration run. Errors are logged, never
// fatal to the daemon: the next trigger retries from scratch.
type BuildFunc func(ctx context.Context) error

// Daemon coordinates triggers and serializes builds: at most one run at a
// time, triggers arriving mid-build coalesce into a single follow-up run.
type Daemon struct {
	cfg      *config.Config
	build    BuildFunc
	registry *prom.Registry

	group    WorkerGroup
	triggers chan string
	server   *http.Server
}

// New creates a daemon. registry may be nil when metrics are disabled.
func New(cfg *config.Config, build BuildFunc, registry *prom.Registry) *Daemon {
	return &Daemon{
		cfg:      cfg,
		build:    build,
		registry: registry,
		// Capacity 1: a trigger during a build queues exactly one rerun.
		triggers: make(chan string, 1),
	}
}

// Start runs until the context is canceled.
func (d *Daemon) Start(ctx context.Context) error {
	if d.registry != nil {
		d.startMetricsServer()
	}

	var scheduler gocron.Scheduler
	if interval := d.cfg.Daemon.Interval(); interval > 0 {
		var err error
		scheduler, err = gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { d.Trigger("interval") }),
			gocron.WithName("periodic-build"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule periodic build: %w", err)
		}
		scheduler.Start()
		slog.Info("Periodic rebuilds scheduled", "interval", interval)
	}

	if d.cfg.Daemon.Watch {
		watcher, err := newManifestWatcher(d.cfg.PackagesDir, d.Trigger)
		if err != nil {
			return fmt.Errorf("failed to start manifest watcher: %w", err)
		}
		d.group.Go(func() { watcher.run(ctx) })
		slog.Info("Watching package manifests", "dir", d.cfg.PackagesDir)
	}

	// Initial build on startup.
	d.Trigger("startup")

	for {
		select {
		case <-ctx.Done():
			return d.shutdown(scheduler)
		case reason := <-d.triggers:
			slog.Info("Build triggered", "reason", reason)
			if err := d.build(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Build failed", "reason", reason, "error", err)
			}
		}
	}
}

// Trigger requests a build. Non-blocking: when a build is already queued the
// new trigger folds into it.
func (d *Daemon) Trigger(reason string) {
	select {
	case d.triggers <- reason:
	default:
		slog.Debug("Build already queued, coalescing trigger", "reason", reason)
	}
}

func (d *Daemon) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	d.server = &http.Server{
		Addr:              d.cfg.Daemon.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.group.Go(func() {
		slog.Info("Metrics endpoint listening", "addr", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	})
}

func (d *Daemon) shutdown(scheduler gocron.Scheduler) error {
	slog.Info("Daemon shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			slog.Warn("Scheduler shutdown failed", "error", err)
		}
	}
	if d.server != nil {
		if err := d.server.Shutdown(stopCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}
	return d.group.StopAndWait(stopCtx)
}
