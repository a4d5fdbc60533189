// Package toolchain wraps the three external programs the build invokes:
// the map generator, the markup-to-LaTeX converter, and the LaTeX build
// tool. Every invocation gets an explicit working directory; the process
// CWD is never mutated.
package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
	"git.home.luguber.info/inful/novelbuilder/internal/project"
)

// Toolchain holds the configured external commands. Each command string may
// carry leading arguments ("python3 generate.py") and is split on whitespace.
type Toolchain struct {
	Generator string
	Converter string
	Latex     string
}

// GenerateMap runs the generator as `<generator> <target>` from the current
// repository root. The generator's contract is opaque: exit 0 and the map
// image exists afterwards.
func (t *Toolchain) GenerateMap(ctx context.Context, targetDir string) error {
	if err := t.run(ctx, t.Generator, []string{targetDir}, ""); err != nil {
		return nberrors.GeneratorFailed(targetDir, err)
	}
	return nil
}

// ConvertChapter converts map.md to map.tex inside chapterDir, promoting
// top-level markup sections to LaTeX chapter divisions.
func (t *Toolchain) ConvertChapter(ctx context.Context, chapterDir string) error {
	args := []string{
		"--top-level-division=chapter",
		"-t", "latex",
		project.ChapterSource,
		"-o", project.ChapterFragment,
	}
	if err := t.run(ctx, t.Converter, args, chapterDir); err != nil {
		return nberrors.ConversionFailed(chapterDir, err)
	}
	return nil
}

// CompilePDF runs the LaTeX build tool in auto-resolving mode inside the
// target directory; the tool reruns itself until cross-references stabilize.
func (t *Toolchain) CompilePDF(ctx context.Context, targetDir string) error {
	if err := t.run(ctx, t.Latex, []string{"--pdf", project.RootDocument}, targetDir); err != nil {
		return nberrors.CompilationFailed(targetDir, err)
	}
	return nil
}

// run executes command (split into program + leading args) with dir as the
// working directory, inheriting stdout/stderr so tool diagnostics reach the
// caller unmodified.
func (t *Toolchain) run(ctx context.Context, command string, args []string, dir string) error {
	program, argv, err := splitCommand(command, args)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, program, argv...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.Debug("Running external tool",
		logfields.Tool(program),
		slog.String("args", strings.Join(argv, " ")),
		slog.String("dir", dir))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", program, err)
	}
	return nil
}

func splitCommand(command string, extra []string) (string, []string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty tool command")
	}
	return fields[0], append(fields[1:], extra...), nil
}

// ProbeResult reports whether one external tool resolves on PATH.
type ProbeResult struct {
	Name    string
	Command string
	Path    string
	Err     error
}

// Probe checks that each configured tool's program can be found. Relative
// programs ("./generate.py") are checked against the filesystem instead of
// PATH. When the command carries a script argument ("python3 generate.py"),
// the script file is checked too.
func (t *Toolchain) Probe() []ProbeResult {
	tools := []struct{ name, command string }{
		{"generator", t.Generator},
		{"converter", t.Converter},
		{"latex", t.Latex},
	}

	results := make([]ProbeResult, 0, len(tools))
	for _, tool := range tools {
		res := ProbeResult{Name: tool.name, Command: tool.command}
		program, args, err := splitCommand(tool.command, nil)
		if err != nil {
			res.Err = err
		} else if strings.ContainsRune(program, os.PathSeparator) {
			if _, statErr := os.Stat(program); statErr != nil {
				res.Err = statErr
			} else {
				res.Path = program
			}
		} else {
			res.Path, res.Err = exec.LookPath(program)
		}
		if res.Err == nil && len(args) > 0 && looksLikeScript(args[0]) {
			if _, statErr := os.Stat(args[0]); statErr != nil {
				res.Err = statErr
			}
		}
		results = append(results, res)
	}
	return results
}

// looksLikeScript reports whether a tool argument names a script file rather
// than a flag ("generate.py" yes, "--verbose" and "latex" no).
func looksLikeScript(arg string) bool {
	return !strings.HasPrefix(arg, "-") && filepath.Ext(arg) != ""
}
