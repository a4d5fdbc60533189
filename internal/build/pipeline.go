// Package build assembles the rule chain for one target directory and runs
// it: map image, chapter fragments, final PDF. Rules run sequentially and
// the first failure halts the chain.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/novelbuilder/internal/config"
	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
	"git.home.luguber.info/inful/novelbuilder/internal/graph"
	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
	"git.home.luguber.info/inful/novelbuilder/internal/manifest"
	"git.home.luguber.info/inful/novelbuilder/internal/markdown"
	"git.home.luguber.info/inful/novelbuilder/internal/metrics"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
	"git.home.luguber.info/inful/novelbuilder/internal/state"
	"git.home.luguber.info/inful/novelbuilder/internal/toolchain"
)

// Rule names, in dependency order.
const (
	RuleMapImage = "map-image"
	RuleChapters = "chapters"
	RuleNovel    = "novel"
)

// Pipeline drives one target directory through the rule chain.
type Pipeline struct {
	cfg      *config.Config
	proj     *project.Project
	tools    *toolchain.Toolchain
	store    *state.Store
	recorder metrics.Recorder
}

// NewPipeline wires a pipeline for proj using cfg's toolchain.
func NewPipeline(cfg *config.Config, proj *project.Project) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		proj: proj,
		tools: &toolchain.Toolchain{
			Generator: cfg.Tools.Generator,
			Converter: cfg.Tools.Converter,
			Latex:     cfg.Tools.Latex,
		},
		recorder: metrics.NoopRecorder{},
	}
}

// WithRecorder injects a metrics recorder.
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	p.recorder = r
	return p
}

// WithStore injects the build-history store. Recording stays best-effort.
func (p *Pipeline) WithStore(s *state.Store) *Pipeline {
	p.store = s
	return p
}

// Tools exposes the toolchain for probing.
func (p *Pipeline) Tools() *toolchain.Toolchain { return p.tools }

// Rules assembles the chain. Chapter fragments are declared as inputs of
// the novel rule, so a reconverted chapter triggers recompilation.
func (p *Pipeline) Rules() ([]graph.Rule, error) {
	chapters, err := p.proj.Chapters()
	if err != nil {
		return nil, err
	}

	novelInputs := []string{p.cfg.Template, p.proj.MapFragmentPath()}
	for _, ch := range chapters {
		if ch.Name != p.proj.MapChapter {
			novelInputs = append(novelInputs, ch.FragmentPath())
		}
	}

	return []graph.Rule{
		{
			Name:    RuleMapImage,
			Outputs: []string{p.proj.MapImagePath()},
			Action: func(ctx context.Context) error {
				return p.tools.GenerateMap(ctx, p.proj.Dir)
			},
		},
		{
			Name:   RuleChapters,
			Stale:  p.chaptersStale,
			Action: p.ConvertChapters,
		},
		{
			Name:    RuleNovel,
			Outputs: []string{p.proj.PDFPath()},
			Inputs:  novelInputs,
			Action:  p.compileNovel,
		},
	}, nil
}

// Run executes the chain once, recording metrics and history.
func (p *Pipeline) Run(ctx context.Context) ([]graph.Outcome, error) {
	buildID := uuid.NewString()
	started := time.Now()
	p.recorder.BuildStarted()

	slog.Info("Starting build",
		logfields.BuildID(buildID),
		logfields.Target(p.proj.Dir))

	var outcomes []graph.Outcome
	rules, err := p.Rules()
	if err == nil {
		outcomes, err = graph.NewResolver(rules).Run(ctx)
	}

	finished := time.Now()
	status := "ok"
	if err != nil {
		status = "failed"
	}
	p.recorder.BuildFinished(status, finished.Sub(started))
	p.recordHistory(ctx, buildID, started, finished, status, outcomes)

	if err != nil {
		slog.Error("Build failed",
			logfields.BuildID(buildID),
			logfields.Target(p.proj.Dir),
			logfields.Error(err))
		return outcomes, err
	}
	slog.Info("Build completed",
		logfields.BuildID(buildID),
		logfields.Target(p.proj.Dir),
		logfields.DurationMS(float64(finished.Sub(started).Milliseconds())))
	return outcomes, nil
}

// Status evaluates rule freshness without executing anything.
func (p *Pipeline) Status() ([]graph.Outcome, error) {
	rules, err := p.Rules()
	if err != nil {
		return nil, err
	}
	return graph.NewResolver(rules).Status()
}

func (p *Pipeline) recordHistory(ctx context.Context, buildID string, started, finished time.Time, status string, outcomes []graph.Outcome) {
	if p.store == nil {
		return
	}
	rec := state.BuildRecord{
		ID:       buildID,
		Target:   p.proj.Dir,
		Started:  started,
		Finished: finished,
		Status:   status,
	}
	for _, o := range outcomes {
		ro := state.RuleOutcome{Rule: o.Rule, Ran: o.Ran, Reason: o.Reason, Duration: o.Duration}
		if o.Err != nil {
			ro.Error = o.Err.Error()
		}
		rec.Rules = append(rec.Rules, ro)
	}
	if err := p.store.RecordBuild(ctx, rec); err != nil {
		slog.Warn("Failed to record build history",
			logfields.BuildID(buildID),
			logfields.Error(nberrors.StateError("record build", err)))
	}
}

// chaptersStale implements checksum freshness for the chapter pass: stale
// when the map fragment is missing, the map image is newer than it, or any
// chapter's source changed since its recorded conversion.
func (p *Pipeline) chaptersStale() (bool, string, error) {
	if _, err := os.Stat(p.proj.MapFragmentPath()); err != nil {
		if os.IsNotExist(err) {
			return true, "map fragment missing", nil
		}
		return false, "", fmt.Errorf("stat map fragment: %w", err)
	}

	// The map fragment depends on the map image.
	if stale, reason, err := graph.Stale(
		[]string{p.proj.MapFragmentPath()},
		[]string{p.proj.MapImagePath()},
	); err != nil || stale {
		return stale, reason, err
	}

	chapters, err := p.proj.Chapters()
	if err != nil {
		return false, "", err
	}
	man, err := manifest.Load(p.proj.ManifestPath())
	if err != nil {
		return false, "", err
	}
	for _, ch := range chapters {
		sum, err := manifest.HashFile(ch.SourcePath())
		if err != nil {
			return false, "", err
		}
		if stale, reason := man.Stale(ch.Name, sum, ch.FragmentPath()); stale {
			return true, fmt.Sprintf("chapter %s: %s", ch.Name, reason), nil
		}
	}
	return false, "up to date", nil
}

// ConvertChapters runs the conversion pass: every chapter whose source
// changed (or whose fragment is missing) is reconverted, in lexicographic
// chapter order. The first conversion failure aborts the remaining loop.
func (p *Pipeline) ConvertChapters(ctx context.Context) error {
	chapters, err := p.proj.Chapters()
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		return fmt.Errorf("no chapter directories found in %s", p.proj.Dir)
	}

	man, err := manifest.Load(p.proj.ManifestPath())
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(chapters))
	for _, ch := range chapters {
		present[ch.Name] = true

		sum, err := manifest.HashFile(ch.SourcePath())
		if err != nil {
			return err
		}
		stale, reason := man.Stale(ch.Name, sum, ch.FragmentPath())
		if !stale {
			slog.Debug("Chapter up to date", logfields.Chapter(ch.Name))
			continue
		}

		p.lintChapter(ch)

		slog.Info("Converting chapter", logfields.Chapter(ch.Name), logfields.Reason(reason))
		if err := p.tools.ConvertChapter(ctx, ch.Dir); err != nil {
			return err
		}

		frag := manifest.Fragment{
			Chapter:      ch.Name,
			Source:       ch.SourcePath(),
			Path:         ch.FragmentPath(),
			SourceSHA256: sum,
			ConvertedAt:  time.Now(),
		}
		if source, err := os.ReadFile(ch.SourcePath()); err == nil {
			if report, err := markdown.Inspect(source); err == nil {
				frag.Title = report.Title
			}
		}
		man.Record(frag)
	}

	if _, err := os.Stat(p.proj.MapFragmentPath()); err != nil {
		return fmt.Errorf("map chapter %s produced no fragment (missing %s directory?): %w",
			p.proj.MapChapter, p.proj.MapChapter, err)
	}

	man.Prune(present)
	man.GeneratedAt = time.Now()
	man.SourceRevision = manifest.DetectSourceRevision(p.proj.Dir)
	return man.Write(p.proj.ManifestPath())
}

// lintChapter logs advisory findings; conversion proceeds regardless.
func (p *Pipeline) lintChapter(ch project.Chapter) {
	source, err := os.ReadFile(ch.SourcePath())
	if err != nil {
		return
	}
	findings, err := markdown.Lint(ch.SourcePath(), source)
	if err != nil {
		return
	}
	for _, f := range findings {
		slog.Warn("Chapter lint finding", logfields.Chapter(ch.Name), slog.String("finding", f.Message))
	}
}

// compileNovel copies the front-matter template to the document root and
// runs the LaTeX build tool. The copy is unconditional once the rule fires.
func (p *Pipeline) compileNovel(ctx context.Context) error {
	data, err := os.ReadFile(p.cfg.Template)
	if err != nil {
		return nberrors.FileSystemError("read template", err)
	}
	if err := os.WriteFile(p.proj.RootDocumentPath(), data, 0644); err != nil {
		return nberrors.FileSystemError("write document root", err)
	}
	return p.tools.CompilePDF(ctx, p.proj.Dir)
}
