package commands

import (
	"fmt"
	"os"

	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
	"git.home.luguber.info/inful/novelbuilder/internal/markdown"
)

// LintCmd checks every chapter source and exits nonzero on findings.
type LintCmd struct {
	TargetArg
}

func (l *LintCmd) Run(_ *Global, root *CLI) error {
	_, proj, _, err := openPipeline(root.Config, l.Resolve())
	if err != nil {
		return err
	}

	chapters, err := proj.Chapters()
	if err != nil {
		return err
	}

	total := 0
	for _, ch := range chapters {
		source, err := os.ReadFile(ch.SourcePath())
		if err != nil {
			return nberrors.FileSystemError("read chapter source", err)
		}
		findings, err := markdown.Lint(ch.SourcePath(), source)
		if err != nil {
			return err
		}
		for _, f := range findings {
			fmt.Println(f.String())
			total++
		}
	}

	if total > 0 {
		return nberrors.ValidationFailed("chapters", fmt.Sprintf("%d lint finding(s)", total))
	}
	fmt.Printf("%d chapter(s) checked, no findings.\n", len(chapters))
	return nil
}
