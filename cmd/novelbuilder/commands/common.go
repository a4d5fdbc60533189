package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/novelbuilder/internal/build"
	"git.home.luguber.info/inful/novelbuilder/internal/config"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"novelbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Run the full build chain: map image, chapter fragments, final PDF"`
	Map     MapCmd     `cmd:"" help:"Generate the map image only"`
	Convert ConvertCmd `cmd:"" help:"Convert changed chapter sources to LaTeX fragments"`
	Lint    LintCmd    `cmd:"" help:"Check chapter sources for structural problems"`
	Status  StatusCmd  `cmd:"" help:"Show rule freshness without building"`
	History HistoryCmd `cmd:"" help:"List recent builds for a target"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild automatically when sources change"`
	Clean   CleanCmd   `cmd:"" help:"Remove generated artifacts from a target"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Doctor  DoctorCmd  `cmd:"" help:"Verify the external toolchain is available"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// TargetArg is the positional target-directory argument shared by most
// commands. The NOVEL environment variable supplies the default; absent
// that, the literal "novel".
type TargetArg struct {
	Target string `arg:"" optional:"" help:"Target directory holding the novel (default: $NOVEL or 'novel')"`
}

// Resolve returns the effective target directory.
func (t *TargetArg) Resolve() string {
	if t.Target != "" {
		return t.Target
	}
	if env := os.Getenv("NOVEL"); env != "" {
		return env
	}
	return "novel"
}

// openPipeline loads configuration and wires a pipeline for the target.
func openPipeline(configPath, target string) (*config.Config, *project.Project, *build.Pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	proj, err := project.Open(target, cfg.Map.Chapter)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, proj, build.NewPipeline(cfg, proj), nil
}

// historyPath returns the configured history database location for a target.
func historyPath(cfg *config.Config, proj *project.Project) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return filepath.Join(proj.StateDir(), "history.db")
}
