// Package markdown inspects chapter markup with Goldmark. The converter
// promotes level-1 headings to LaTeX chapters, so the inspection surface is
// heading structure, not rendering.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// Heading is one markup heading with its raw text.
type Heading struct {
	Level int
	Text  string
}

// Report summarizes one chapter source.
type Report struct {
	Title    string // first level-1 heading, NFC-normalized; empty when absent
	Headings []Heading
	Empty    bool // no non-whitespace content at all
}

// Inspect parses source and extracts the heading structure.
func Inspect(source []byte) (*Report, error) {
	report := &Report{Empty: len(strings.TrimSpace(string(source))) == 0}
	if report.Empty {
		return report, nil
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	err := gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		heading, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		h := Heading{Level: heading.Level, Text: headingText(heading, source)}
		report.Headings = append(report.Headings, h)
		if h.Level == 1 && report.Title == "" {
			// Titles feed the manifest; normalize so checksummed records
			// do not churn on equivalent Unicode spellings.
			report.Title = norm.NFC.String(h.Text)
		}
		return gmast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// headingText collects the literal text under a heading node.
func headingText(heading *gmast.Heading, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(heading, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Text:
			sb.Write(node.Segment.Value(source))
		case *gmast.String:
			sb.Write(node.Value)
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
