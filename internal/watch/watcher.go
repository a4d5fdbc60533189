// Package watch rebuilds a target directory when its sources change.
// Chapter sources and the front-matter template are watched through
// fsnotify with debouncing; an optional gocron schedule forces periodic
// full builds; an optional HTTP endpoint exposes Prometheus metrics.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
	"git.home.luguber.info/inful/novelbuilder/internal/metrics"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
)

// Options configures a Watcher.
type Options struct {
	Debounce    time.Duration // quiet period after the last event, default 2s
	Every       time.Duration // periodic full rebuild, 0 disables
	MetricsAddr string        // address for /metrics, "" disables
}

// Watcher drives rebuilds of one project.
type Watcher struct {
	proj     *project.Project
	template string
	build    func(ctx context.Context) error
	opts     Options
	recorder *metrics.PrometheusRecorder

	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler
	trigger   chan string
}

// New creates a watcher for proj. build is invoked for every rebuild; its
// errors are logged, not fatal, so a broken chapter does not kill the loop.
func New(proj *project.Project, template string, build func(ctx context.Context) error, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		proj:     proj,
		template: template,
		build:    build,
		opts:     opts,
		watcher:  fsw,
		trigger:  make(chan string, 1),
	}
	if opts.MetricsAddr != "" {
		w.recorder = metrics.NewPrometheusRecorder()
	}
	return w, nil
}

// Recorder returns the Prometheus recorder when metrics are enabled, nil
// otherwise.
func (w *Watcher) Recorder() *metrics.PrometheusRecorder { return w.recorder }

// Run watches until ctx is cancelled. It performs one initial build before
// entering the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addWatches(); err != nil {
		return err
	}
	if err := w.startSchedule(); err != nil {
		return err
	}
	defer w.stopSchedule()

	if w.opts.MetricsAddr != "" {
		w.serveMetrics(ctx)
	}

	// Initial build so the watcher starts from a consistent state.
	w.runBuild(ctx, "startup")

	go w.eventLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-w.trigger:
			w.runBuild(ctx, reason)
		}
	}
}

// addWatches registers the target directory, every chapter directory, and
// the template's directory. Watching directories rather than files survives
// editors that replace files on save.
func (w *Watcher) addWatches() error {
	dirs := []string{w.proj.Dir, filepath.Dir(w.template)}
	chapters, err := w.proj.Chapters()
	if err != nil {
		return err
	}
	for _, ch := range chapters {
		dirs = append(dirs, ch.Dir)
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	slog.Info("Watching for changes",
		logfields.Target(w.proj.Dir),
		slog.Int("directories", len(dirs)))
	return nil
}

func (w *Watcher) startSchedule() error {
	if w.opts.Every <= 0 {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.opts.Every),
		gocron.NewTask(func() { w.requestBuild("schedule") }),
		gocron.WithName("periodic-build"),
	)
	if err != nil {
		return fmt.Errorf("create periodic build job: %w", err)
	}
	w.scheduler = s
	s.Start()
	slog.Info("Periodic rebuild enabled", slog.Duration("every", w.opts.Every))
	return nil
}

func (w *Watcher) stopSchedule() {
	if w.scheduler == nil {
		return
	}
	if err := w.scheduler.Shutdown(); err != nil {
		slog.Warn("Failed to shut down scheduler", logfields.Error(err))
	}
}

func (w *Watcher) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.recorder.Handler())
	srv := &http.Server{Addr: w.opts.MetricsAddr, Handler: mux}

	go func() {
		slog.Info("Serving metrics", slog.String("addr", w.opts.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// eventLoop debounces filesystem events into build triggers.
func (w *Watcher) eventLoop(ctx context.Context) {
	var timer *time.Timer
	var pending string

	// The timer callback runs on its own goroutine. It only signals expiry;
	// pending is read and cleared by this loop alone.
	expired := make(chan struct{}, 1)
	fire := func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-expired:
			w.requestBuild(pending)
			pending = ""
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("File event", slog.String("op", event.Op.String()), slog.String("path", event.Name))
			pending = fmt.Sprintf("change: %s", event.Name)
			if timer == nil {
				timer = time.AfterFunc(w.opts.Debounce, fire)
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// relevant filters events down to chapter sources, the template, and the
// map image. Generated artifacts must not retrigger builds.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	switch name {
	case project.ChapterSource, project.MapImage:
		return true
	}
	if sameFile(event.Name, w.template) {
		return true
	}
	// New chapter directories show up as created two-character dirs.
	if len(name) == 2 && !strings.HasPrefix(name, ".") && filepath.Dir(event.Name) == filepath.Clean(w.proj.Dir) {
		return true
	}
	return false
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// requestBuild coalesces triggers; a build already pending absorbs new ones.
func (w *Watcher) requestBuild(reason string) {
	select {
	case w.trigger <- reason:
	default:
	}
}

func (w *Watcher) runBuild(ctx context.Context, reason string) {
	slog.Info("Rebuilding", logfields.Target(w.proj.Dir), logfields.Reason(reason))
	if err := w.build(ctx); err != nil {
		slog.Error("Rebuild failed", logfields.Target(w.proj.Dir), logfields.Error(err))
		return
	}
	// A build may have created new chapter directories; refresh watches.
	if err := w.addWatches(); err != nil {
		slog.Warn("Failed to refresh watches", logfields.Error(err))
	}
}
