package build

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
)

// latexAuxExtensions are the working files the LaTeX tool leaves next to
// the document root.
var latexAuxExtensions = []string{
	".aux", ".log", ".toc", ".out", ".fls", ".fdb_latexmk", ".synctex.gz",
}

// Clean removes generated artifacts from the target directory: chapter
// fragments, the document root, the PDF, LaTeX working files, and the
// manifest. Sources and the map image are never touched.
func (p *Pipeline) Clean() error {
	chapters, err := p.proj.Chapters()
	if err != nil {
		return err
	}

	var paths []string
	for _, ch := range chapters {
		paths = append(paths, ch.FragmentPath())
	}
	paths = append(paths,
		p.proj.MapFragmentPath(),
		p.proj.RootDocumentPath(),
		p.proj.PDFPath(),
		p.proj.ManifestPath(),
	)
	base := filepath.Join(p.proj.Dir, strings.TrimSuffix(project.RootDocument, filepath.Ext(project.RootDocument)))
	for _, ext := range latexAuxExtensions {
		paths = append(paths, base+ext)
	}

	for _, path := range paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			slog.Debug("Removed artifact", slog.String("path", path))
		case os.IsNotExist(err):
			// Already absent.
		default:
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	slog.Info("Cleaned target", logfields.Target(p.proj.Dir))
	return nil
}
