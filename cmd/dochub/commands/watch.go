package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/daemon"
	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
)

// WatchCmd runs dochub continuously: periodic rebuilds plus rebuilds on
// manifest changes, with a Prometheus metrics endpoint.
type WatchCmd struct {
	Interval int  `name:"interval" help:"Override rebuild interval in seconds (0 disables the timer)"`
	NoWatch  bool `name:"no-watch" help:"Disable manifest watching, rebuild on the timer only"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if w.Interval > 0 {
		cfg.Daemon.IntervalSeconds = w.Interval
	}
	if w.NoWatch {
		cfg.Daemon.Watch = false
	} else if cfg.Daemon.IntervalSeconds == 0 {
		// With no timer, watching is the only trigger; default it on.
		cfg.Daemon.Watch = true
	}

	var registry *prom.Registry
	if cfg.Metrics.Enabled {
		registry = prom.NewRegistry()
	}

	build := func(ctx context.Context) error {
		_, err := ExecuteBuild(ctx, cfg, BuildOptions{}, registry)
		// Package failures are part of normal watch operation; only
		// pre-build errors should surface as daemon errors.
		var dhe *dherrors.DochubError
		if errors.As(err, &dhe) && (dhe.Category == dherrors.CategoryBuild || dhe.Category == dherrors.CategoryHub) {
			return nil
		}
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return daemon.New(cfg, build, registry).Start(ctx)
}
