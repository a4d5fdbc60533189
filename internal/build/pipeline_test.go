package build

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/novelbuilder/internal/config"
	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
	"git.home.luguber.info/inful/novelbuilder/internal/manifest"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
	"git.home.luguber.info/inful/novelbuilder/internal/state"
)

// fixture wires a pipeline against stub external tools: the generator
// creates the map image, the converter copies map.md to map.tex, the latex
// stub copies novel.tex to novel.pdf and counts its invocations.
type fixture struct {
	target   string
	template string
	cfg      *config.Config
	proj     *project.Project
	pipeline *Pipeline
}

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return path
}

func newFixture(t *testing.T, chapters ...string) *fixture {
	t.Helper()
	stubDir := t.TempDir()
	target := t.TempDir()

	for _, name := range chapters {
		dir := filepath.Join(target, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		source := "# Chapter " + name + "\n\nProse for " + name + ".\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "map.md"), []byte(source), 0644))
	}

	template := filepath.Join(t.TempDir(), "frame.tex")
	require.NoError(t, os.WriteFile(template, []byte("\\documentclass{book}\n"), 0644))

	cfg := &config.Config{
		Tools: config.ToolsConfig{
			Generator: writeStub(t, stubDir, "generate",
				`mkdir -p "$1/99" && echo png > "$1/99/map.png" && echo g >> "$1/genruns"`),
			Converter: writeStub(t, stubDir, "convert", `cp map.md map.tex`),
			Latex: writeStub(t, stubDir, "latexmk",
				`cp novel.tex novel.pdf && echo l >> latexruns`),
		},
		Template: template,
		Map:      config.MapConfig{Chapter: "99"},
	}

	proj, err := project.Open(target, cfg.Map.Chapter)
	require.NoError(t, err)

	return &fixture{
		target:   target,
		template: template,
		cfg:      cfg,
		proj:     proj,
		pipeline: NewPipeline(cfg, proj),
	}
}

func (f *fixture) runCount(t *testing.T, marker string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.target, marker))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

// backdate pushes every file under the target and the template into the
// past, so subsequent edits are unambiguously newer regardless of
// filesystem timestamp granularity.
func (f *fixture) backdate(t *testing.T) {
	t.Helper()
	past := time.Now().Add(-5 * time.Second)
	err := filepath.WalkDir(f.target, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(path, past, past)
	})
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(f.template, past, past))
}

func outcomeRan(t *testing.T, outcomes map[string]bool, rule string) bool {
	t.Helper()
	ran, ok := outcomes[rule]
	require.True(t, ok, "missing outcome for rule %s", rule)
	return ran
}

func runPipeline(t *testing.T, f *fixture) map[string]bool {
	t.Helper()
	outcomes, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	byRule := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		byRule[o.Rule] = o.Ran
	}
	return byRule
}

func TestFullBuildProducesAllArtifacts(t *testing.T) {
	f := newFixture(t, "01", "99")

	byRule := runPipeline(t, f)
	require.True(t, outcomeRan(t, byRule, RuleMapImage))
	require.True(t, outcomeRan(t, byRule, RuleChapters))
	require.True(t, outcomeRan(t, byRule, RuleNovel))

	require.FileExists(t, filepath.Join(f.target, "99", "map.png"))
	require.FileExists(t, filepath.Join(f.target, "01", "map.tex"))
	require.FileExists(t, filepath.Join(f.target, "99", "map.tex"))
	require.FileExists(t, filepath.Join(f.target, "novel.tex"))
	require.FileExists(t, filepath.Join(f.target, "novel.pdf"))

	// novel.tex is a verbatim copy of the template.
	rootDoc, err := os.ReadFile(filepath.Join(f.target, "novel.tex"))
	require.NoError(t, err)
	require.Equal(t, "\\documentclass{book}\n", string(rootDoc))

	man, err := manifest.Load(f.proj.ManifestPath())
	require.NoError(t, err)
	require.Len(t, man.Fragments, 2)
	frag, ok := man.Lookup("01")
	require.True(t, ok)
	require.Equal(t, "Chapter 01", frag.Title)
	require.NotEmpty(t, frag.SourceSHA256)
}

func TestSecondRunDoesNoWork(t *testing.T) {
	f := newFixture(t, "01", "99")
	runPipeline(t, f)

	byRule := runPipeline(t, f)
	require.False(t, outcomeRan(t, byRule, RuleMapImage))
	require.False(t, outcomeRan(t, byRule, RuleChapters))
	require.False(t, outcomeRan(t, byRule, RuleNovel))
	require.Equal(t, 1, f.runCount(t, "genruns"))
	require.Equal(t, 1, f.runCount(t, "latexruns"))
}

func TestGeneratorFailureHaltsChain(t *testing.T) {
	f := newFixture(t, "01", "99")
	f.cfg.Tools.Generator = writeStub(t, t.TempDir(), "generate", "exit 3")
	f.pipeline = NewPipeline(f.cfg, f.proj)

	outcomes, err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, nberrors.CategoryGenerator, nberrors.CategoryOf(err))
	require.Len(t, outcomes, 1)

	require.NoFileExists(t, filepath.Join(f.target, "01", "map.tex"))
	require.NoFileExists(t, filepath.Join(f.target, "novel.tex"))
	require.NoFileExists(t, filepath.Join(f.target, "novel.pdf"))
}

func TestTemplateChangeRecompilesWithoutReconverting(t *testing.T) {
	f := newFixture(t, "01", "99")
	runPipeline(t, f)
	f.backdate(t)

	require.NoError(t, os.WriteFile(f.template, []byte("\\documentclass[12pt]{book}\n"), 0644))

	byRule := runPipeline(t, f)
	require.False(t, outcomeRan(t, byRule, RuleMapImage))
	require.False(t, outcomeRan(t, byRule, RuleChapters))
	require.True(t, outcomeRan(t, byRule, RuleNovel))

	rootDoc, err := os.ReadFile(filepath.Join(f.target, "novel.tex"))
	require.NoError(t, err)
	require.Equal(t, "\\documentclass[12pt]{book}\n", string(rootDoc))
	require.Equal(t, 2, f.runCount(t, "latexruns"))
}

func TestChapterEditReconvertsOnlyThatChapter(t *testing.T) {
	f := newFixture(t, "01", "02", "99")
	runPipeline(t, f)
	f.backdate(t)

	mapFragBefore, err := os.Stat(filepath.Join(f.target, "99", "map.tex"))
	require.NoError(t, err)

	edited := "# Chapter 01 Revised\n\nNew prose.\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.target, "01", "map.md"), []byte(edited), 0644))

	byRule := runPipeline(t, f)
	require.False(t, outcomeRan(t, byRule, RuleMapImage))
	require.True(t, outcomeRan(t, byRule, RuleChapters))
	require.True(t, outcomeRan(t, byRule, RuleNovel))

	converted, err := os.ReadFile(filepath.Join(f.target, "01", "map.tex"))
	require.NoError(t, err)
	require.Equal(t, edited, string(converted))

	// The untouched map chapter kept its old fragment.
	mapFragAfter, err := os.Stat(filepath.Join(f.target, "99", "map.tex"))
	require.NoError(t, err)
	require.Equal(t, mapFragBefore.ModTime(), mapFragAfter.ModTime())

	man, err := manifest.Load(f.proj.ManifestPath())
	require.NoError(t, err)
	frag, ok := man.Lookup("01")
	require.True(t, ok)
	require.Equal(t, "Chapter 01 Revised", frag.Title)
}

func TestNewChapterIsPickedUp(t *testing.T) {
	f := newFixture(t, "01", "99")
	runPipeline(t, f)
	f.backdate(t)

	dir := filepath.Join(f.target, "02")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "map.md"), []byte("# Chapter 02\n"), 0644))

	byRule := runPipeline(t, f)
	require.True(t, outcomeRan(t, byRule, RuleChapters))
	require.FileExists(t, filepath.Join(dir, "map.tex"))

	man, err := manifest.Load(f.proj.ManifestPath())
	require.NoError(t, err)
	require.Len(t, man.Fragments, 3)
}

func TestMissingMapChapterIsStructuralError(t *testing.T) {
	f := newFixture(t, "01") // no 99 chapter source

	_, err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "map chapter")
	require.NoFileExists(t, filepath.Join(f.target, "novel.pdf"))
}

func TestRunRecordsHistory(t *testing.T) {
	f := newFixture(t, "01", "99")

	store, err := state.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	f.pipeline.WithStore(store)

	runPipeline(t, f)

	records, err := store.RecentBuilds(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "ok", records[0].Status)
	require.Len(t, records[0].Rules, 3)
}

func TestRunSucceedsWhenHistoryStoreFails(t *testing.T) {
	f := newFixture(t, "01", "99")

	store, err := state.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	f.pipeline.WithStore(store)

	// Recording is best-effort: a dead store is logged, not fatal.
	byRule := runPipeline(t, f)
	require.True(t, outcomeRan(t, byRule, RuleNovel))
	require.FileExists(t, filepath.Join(f.target, "novel.pdf"))
}

func TestCleanRemovesGeneratedArtifactsOnly(t *testing.T) {
	f := newFixture(t, "01", "99")
	runPipeline(t, f)

	require.NoError(t, f.pipeline.Clean())

	require.NoFileExists(t, filepath.Join(f.target, "01", "map.tex"))
	require.NoFileExists(t, filepath.Join(f.target, "99", "map.tex"))
	require.NoFileExists(t, filepath.Join(f.target, "novel.tex"))
	require.NoFileExists(t, filepath.Join(f.target, "novel.pdf"))
	require.NoFileExists(t, f.proj.ManifestPath())

	// Sources and the map image survive.
	require.FileExists(t, filepath.Join(f.target, "01", "map.md"))
	require.FileExists(t, filepath.Join(f.target, "99", "map.png"))
}

func TestStatusReportsWithoutBuilding(t *testing.T) {
	f := newFixture(t, "01", "99")

	outcomes, err := f.pipeline.Status()
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].Ran, "map image should be reported stale")
	require.Equal(t, 0, f.runCount(t, "genruns"))
	require.NoFileExists(t, filepath.Join(f.target, "novel.pdf"))
}

func TestStatusAfterFragmentDeletedReportsStale(t *testing.T) {
	f := newFixture(t, "01", "99")
	runPipeline(t, f)

	// A hand-deleted fragment leaves the novel rule with a missing input;
	// a build regenerates it, so status reports stale instead of failing.
	require.NoError(t, os.Remove(filepath.Join(f.target, "01", "map.tex")))

	outcomes, err := f.pipeline.Status()
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	require.True(t, outcomes[1].Ran, "chapters should be stale")
	require.True(t, outcomes[2].Ran, "novel should be stale")
}
