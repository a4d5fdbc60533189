// Package graph is a small file-timestamp build resolver: ordered rules,
// each with declared outputs and inputs, run sequentially when stale. The
// first failing rule halts the chain.
package graph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/novelbuilder/internal/logfields"
)

// Rule is one build node. Rules are evaluated in the order given to the
// resolver; the caller is responsible for listing dependencies first.
type Rule struct {
	Name    string
	Outputs []string
	Inputs  []string

	// Stale overrides timestamp freshness when set (used by the chapter
	// rule, whose freshness is checksum-based through the manifest).
	Stale func() (bool, string, error)

	Action func(ctx context.Context) error
}

// Outcome reports what happened to one rule during a resolver pass.
type Outcome struct {
	Rule     string
	Ran      bool
	Reason   string // why the rule ran, or why it was skipped
	Err      error
	Duration time.Duration
}

// Resolver runs rules in order.
type Resolver struct {
	rules []Rule
}

// NewResolver returns a resolver over rules, dependency order preserved.
func NewResolver(rules []Rule) *Resolver {
	return &Resolver{rules: rules}
}

// Run evaluates every rule in order, executing stale ones. It stops at the
// first action error and returns the outcomes accumulated so far together
// with that error.
func (r *Resolver) Run(ctx context.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(r.rules))
	for _, rule := range r.rules {
		stale, reason, err := r.staleness(rule)
		if err != nil {
			outcomes = append(outcomes, Outcome{Rule: rule.Name, Err: err})
			return outcomes, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		if !stale {
			slog.Debug("Rule up to date", logfields.Rule(rule.Name))
			outcomes = append(outcomes, Outcome{Rule: rule.Name, Reason: reason})
			continue
		}

		slog.Info("Running rule", logfields.Rule(rule.Name), logfields.Reason(reason))
		start := time.Now()
		actErr := rule.Action(ctx)
		outcome := Outcome{
			Rule:     rule.Name,
			Ran:      true,
			Reason:   reason,
			Err:      actErr,
			Duration: time.Since(start),
		}
		outcomes = append(outcomes, outcome)
		if actErr != nil {
			return outcomes, actErr
		}
		slog.Info("Rule completed", logfields.Rule(rule.Name),
			logfields.DurationMS(float64(outcome.Duration.Milliseconds())))
	}
	return outcomes, nil
}

// Status evaluates staleness for every rule without executing anything.
// A missing input is reported as stale rather than an error: a build run
// regenerates it, so status should point at the rebuild, not fail.
func (r *Resolver) Status() ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(r.rules))
	for _, rule := range r.rules {
		stale, reason, err := r.staleness(rule)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				outcomes = append(outcomes, Outcome{Rule: rule.Name, Ran: true, Reason: "input missing, rebuild required"})
				continue
			}
			return outcomes, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		outcomes = append(outcomes, Outcome{Rule: rule.Name, Ran: stale, Reason: reason})
	}
	return outcomes, nil
}

func (r *Resolver) staleness(rule Rule) (bool, string, error) {
	if rule.Stale != nil {
		return rule.Stale()
	}
	return Stale(rule.Outputs, rule.Inputs)
}

// Stale implements timestamp freshness: a rule is stale when any output is
// missing or older than any input. A missing input is an error since
// nothing earlier in the chain claimed to produce it.
func Stale(outputs, inputs []string) (bool, string, error) {
	var oldest time.Time
	for i, out := range outputs {
		info, err := os.Stat(out)
		if err != nil {
			if os.IsNotExist(err) {
				return true, fmt.Sprintf("output %s missing", out), nil
			}
			return false, "", fmt.Errorf("stat output %s: %w", out, err)
		}
		if i == 0 || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			if os.IsNotExist(err) {
				return false, "", fmt.Errorf("input %s does not exist: %w", in, err)
			}
			return false, "", fmt.Errorf("stat input %s: %w", in, err)
		}
		if info.ModTime().After(oldest) {
			return true, fmt.Sprintf("input %s newer than outputs", in), nil
		}
	}
	return false, "up to date", nil
}
