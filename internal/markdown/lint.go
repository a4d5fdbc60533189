package markdown

import "fmt"

// Finding is one lint observation about a chapter source.
type Finding struct {
	Path    string
	Message string
}

func (f Finding) String() string { return fmt.Sprintf("%s: %s", f.Path, f.Message) }

// Lint checks a chapter source for problems that degrade the converted
// document. Findings are advisory: conversion still runs.
func Lint(path string, source []byte) ([]Finding, error) {
	report, err := Inspect(source)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}

	var findings []Finding
	if report.Empty {
		findings = append(findings, Finding{Path: path, Message: "chapter source is empty"})
		return findings, nil
	}
	if report.Title == "" {
		findings = append(findings, Finding{
			Path:    path,
			Message: "no level-1 heading; the chapter will have no \\chapter division",
		})
	}
	return findings, nil
}
