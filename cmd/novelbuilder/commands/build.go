package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/novelbuilder/internal/graph"
	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
	"git.home.luguber.info/inful/novelbuilder/internal/state"
)

func mapImageFresh(proj *project.Project) (bool, error) {
	stale, _, err := graph.Stale([]string{proj.MapImagePath()}, nil)
	return !stale, err
}

// BuildCmd implements the 'build' command: the full rule chain.
type BuildCmd struct {
	TargetArg
	NoHistory bool `help:"Skip recording this build in the history store"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, proj, pipeline, err := openPipeline(root.Config, b.Resolve())
	if err != nil {
		return err
	}

	if cfg.History.Enabled && !b.NoHistory {
		store, err := state.Open(historyPath(cfg, proj))
		if err != nil {
			// History is best-effort; build without it.
			slog.Warn("Failed to open history store", logfields.Error(err))
		} else {
			defer func() { _ = store.Close() }()
			pipeline = pipeline.WithStore(store)
		}
	}

	_, err = pipeline.Run(context.Background())
	return err
}

// MapCmd implements the 'map' command: the map-image rule alone.
type MapCmd struct {
	TargetArg
	Force bool `short:"f" help:"Regenerate even if the map image already exists"`
}

func (m *MapCmd) Run(_ *Global, root *CLI) error {
	_, proj, pipeline, err := openPipeline(root.Config, m.Resolve())
	if err != nil {
		return err
	}

	if !m.Force {
		if fresh, err := mapImageFresh(proj); err != nil {
			return err
		} else if fresh {
			slog.Info("Map image up to date", logfields.Target(proj.Dir))
			return nil
		}
	}
	return pipeline.Tools().GenerateMap(context.Background(), proj.Dir)
}

// ConvertCmd implements the 'convert' command: the chapter pass alone.
type ConvertCmd struct {
	TargetArg
}

func (c *ConvertCmd) Run(_ *Global, root *CLI) error {
	_, _, pipeline, err := openPipeline(root.Config, c.Resolve())
	if err != nil {
		return err
	}
	return pipeline.ConvertChapters(context.Background())
}

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	TargetArg
}

func (c *CleanCmd) Run(_ *Global, root *CLI) error {
	_, _, pipeline, err := openPipeline(root.Config, c.Resolve())
	if err != nil {
		return err
	}
	return pipeline.Clean()
}
