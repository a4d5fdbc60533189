package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/novelbuilder/internal/state"
)

// StatusCmd shows every rule's freshness verdict without executing anything.
type StatusCmd struct {
	TargetArg
}

func (s *StatusCmd) Run(_ *Global, root *CLI) error {
	_, _, pipeline, err := openPipeline(root.Config, s.Resolve())
	if err != nil {
		return err
	}

	outcomes, err := pipeline.Status()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "RULE\tSTATE\tREASON\n")
	for _, o := range outcomes {
		st := "fresh"
		if o.Ran {
			st = "stale"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Rule, st, o.Reason)
	}
	return w.Flush()
}

// HistoryCmd lists recent builds from the history store.
type HistoryCmd struct {
	TargetArg
	Limit int `short:"n" default:"10" help:"Number of builds to show"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, proj, _, err := openPipeline(root.Config, h.Resolve())
	if err != nil {
		return err
	}

	store, err := state.Open(historyPath(cfg, proj))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.RecentBuilds(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No recorded builds.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "STARTED\tSTATUS\tDURATION\tRULES RUN\tID\n")
	for _, rec := range records {
		ran := 0
		for _, r := range rec.Rules {
			if r.Ran {
				ran++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
			rec.Started.Format(time.RFC3339),
			rec.Status,
			rec.Finished.Sub(rec.Started).Round(time.Millisecond),
			ran, len(rec.Rules),
			rec.ID)
	}
	return w.Flush()
}
