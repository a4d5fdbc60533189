package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
	"git.home.luguber.info/inful/novelbuilder/internal/state"
	"git.home.luguber.info/inful/novelbuilder/internal/watch"
)

// WatchCmd rebuilds the target whenever its sources change.
type WatchCmd struct {
	TargetArg
	Debounce    time.Duration `default:"2s" help:"Quiet period after the last change before rebuilding"`
	Every       time.Duration `help:"Also force a full rebuild at this interval (0 disables)"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9090)"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, proj, pipeline, err := openPipeline(root.Config, w.Resolve())
	if err != nil {
		return err
	}

	if cfg.History.Enabled {
		store, err := state.Open(historyPath(cfg, proj))
		if err != nil {
			slog.Warn("Failed to open history store", logfields.Error(err))
		} else {
			defer func() { _ = store.Close() }()
			pipeline = pipeline.WithStore(store)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watcher, err := watch.New(proj, cfg.Template, func(ctx context.Context) error {
		_, err := pipeline.Run(ctx)
		return err
	}, watch.Options{
		Debounce:    w.Debounce,
		Every:       w.Every,
		MetricsAddr: w.MetricsAddr,
	})
	if err != nil {
		return err
	}
	if rec := watcher.Recorder(); rec != nil {
		pipeline.WithRecorder(rec)
	}

	slog.Info("Watching; press Ctrl-C to stop", logfields.Target(proj.Dir))
	return watcher.Run(ctx)
}
