package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/novelbuilder/cmd/novelbuilder/commands"
	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
	"git.home.luguber.info/inful/novelbuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("novelbuilder"),
		kong.Description("Builds a novel PDF from chapter markup, a generated map, and a LaTeX front-matter template."),
		kong.Vars{"version": version.Version},
	)

	if err := ctx.Run(&commands.Global{}); err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(nberrors.ExitCodeFor(err))
	}
}
