package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/novelbuilder/internal/build"
	"git.home.luguber.info/inful/novelbuilder/internal/config"
	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
)

// DoctorCmd verifies the configured external tools resolve.
type DoctorCmd struct{}

func (d *DoctorCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	// Doctor does not need a target directory; probe against a detached
	// pipeline built on the current directory.
	pipeline := build.NewPipeline(cfg, &project.Project{Dir: ".", MapChapter: cfg.Map.Chapter})

	results := pipeline.Tools().Probe()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TOOL\tCOMMAND\tRESOLVED\n")
	failures := 0
	for _, res := range results {
		resolved := res.Path
		if res.Err != nil {
			resolved = fmt.Sprintf("NOT FOUND (%v)", res.Err)
			failures++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Name, res.Command, resolved)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failures > 0 {
		return nberrors.ValidationFailed("tools", fmt.Sprintf("%d tool(s) missing", failures))
	}
	return nil
}
