// Package project models a target directory: one novel, its chapter
// subdirectories, and the artifacts the build produces inside it.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// ChapterSource is the markup file each chapter directory carries.
	ChapterSource = "map.md"
	// ChapterFragment is the LaTeX fragment written next to the source.
	ChapterFragment = "map.tex"
	// MapImage is the rendered map artifact inside the map chapter.
	MapImage = "map.png"
	// RootDocument is the LaTeX entry point copied from the template.
	RootDocument = "novel.tex"
	// PDF is the final build target.
	PDF = "novel.pdf"

	stateDirName = ".novelbuilder"
)

// Project is a target directory holding one novel's chapters and artifacts.
type Project struct {
	Dir        string // target directory path
	MapChapter string // two-character name of the map chapter, usually "99"
}

// Chapter is one two-character-named subdirectory with a markup source.
type Chapter struct {
	Name string // directory name, e.g. "01"
	Dir  string // absolute or target-relative path to the chapter directory
}

// SourcePath returns the chapter's markup source file.
func (c Chapter) SourcePath() string { return filepath.Join(c.Dir, ChapterSource) }

// FragmentPath returns the chapter's generated LaTeX fragment.
func (c Chapter) FragmentPath() string { return filepath.Join(c.Dir, ChapterFragment) }

// Open validates dir and returns the project handle.
func Open(dir, mapChapter string) (*Project, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target %s is not a directory", dir)
	}
	return &Project{Dir: dir, MapChapter: mapChapter}, nil
}

// MapImagePath returns <target>/<map-chapter>/map.png.
func (p *Project) MapImagePath() string {
	return filepath.Join(p.Dir, p.MapChapter, MapImage)
}

// MapFragmentPath returns <target>/<map-chapter>/map.tex, the fragment whose
// existence gates the final compile.
func (p *Project) MapFragmentPath() string {
	return filepath.Join(p.Dir, p.MapChapter, ChapterFragment)
}

// RootDocumentPath returns <target>/novel.tex.
func (p *Project) RootDocumentPath() string { return filepath.Join(p.Dir, RootDocument) }

// PDFPath returns <target>/novel.pdf.
func (p *Project) PDFPath() string { return filepath.Join(p.Dir, PDF) }

// StateDir returns the directory holding the fragment manifest and the
// build-history database.
func (p *Project) StateDir() string { return filepath.Join(p.Dir, stateDirName) }

// ManifestPath returns the fragment completion record.
func (p *Project) ManifestPath() string {
	return filepath.Join(p.StateDir(), "fragments.json")
}

// Chapters enumerates the two-character-named subdirectories that contain a
// markup source, sorted lexicographically for deterministic processing and
// document order.
func (p *Project) Chapters() ([]Chapter, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("enumerate chapters: %w", err)
	}

	var chapters []Chapter
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || len(name) != 2 || strings.HasPrefix(name, ".") {
			continue
		}
		dir := filepath.Join(p.Dir, name)
		if _, err := os.Stat(filepath.Join(dir, ChapterSource)); err != nil {
			continue // directory without a markup source is not a chapter
		}
		chapters = append(chapters, Chapter{Name: name, Dir: dir})
	}

	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Name < chapters[j].Name })
	return chapters, nil
}

// MapChapterDir reports whether the configured map chapter directory exists.
func (p *Project) MapChapterDir() (string, bool) {
	dir := filepath.Join(p.Dir, p.MapChapter)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
