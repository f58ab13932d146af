// Package risk evaluates operations against a per-context rule table and
// produces GREEN/AMBER/RED verdicts.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// Evaluator is implemented by anything that can produce a verdict: the local
// gate, a remote assessment service or a stub in tests.
type Evaluator interface {
	Evaluate(ctx context.Context, rc model.RiskContext, signals model.Signals) (model.RiskVerdict, error)
}

// Rule flags an issue when its predicate holds for the given signals.
type Rule struct {
	Code           string
	Severity       model.RiskLevel
	Message        string
	Recommendation string
	When           func(model.Signals) bool
}

// RuleTable maps each context to the rules evaluated for it.
type RuleTable map[model.RiskContext][]Rule

// Gate evaluates signals against a rule table. It holds no mutable state.
type Gate struct {
	rules RuleTable
}

// NewGate creates a gate over the given rules. A nil table uses DefaultRules.
func NewGate(rules RuleTable) *Gate {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Gate{rules: rules}
}

// Contexts returns the contexts the gate knows about.
func (g *Gate) Contexts() []model.RiskContext {
	out := make([]model.RiskContext, 0, len(g.rules))
	for c := range g.rules {
		out = append(out, c)
	}
	return out
}

// Evaluate implements Evaluator for in-process use.
func (g *Gate) Evaluate(_ context.Context, rc model.RiskContext, signals model.Signals) (model.RiskVerdict, error) {
	return g.Assess(rc, signals)
}

// Assess runs every rule registered for rc. The verdict is RED if any RED
// rule fires, AMBER if any AMBER rule fires and GREEN otherwise. The same
// inputs always produce the same verdict.
func (g *Gate) Assess(rc model.RiskContext, signals model.Signals) (model.RiskVerdict, error) {
	rules, ok := g.rules[rc]
	if !ok {
		return model.RiskVerdict{}, errors.InvalidInput("context", fmt.Sprintf("unknown risk context %q", rc))
	}

	verdict := model.RiskVerdict{
		Context:         rc,
		Risk:            model.RiskGreen,
		Issues:          []model.RiskIssue{},
		Recommendations: []string{},
	}
	seen := make(map[string]bool)
	var ambers, reds int

	for _, r := range rules {
		if !r.When(signals) {
			continue
		}
		verdict.Issues = append(verdict.Issues, model.RiskIssue{
			Code:     r.Code,
			Severity: r.Severity,
			Message:  r.Message,
		})
		if r.Recommendation != "" && !seen[r.Recommendation] {
			seen[r.Recommendation] = true
			verdict.Recommendations = append(verdict.Recommendations, r.Recommendation)
		}
		if r.Severity.Rank() > verdict.Risk.Rank() {
			verdict.Risk = r.Severity
		}
		switch r.Severity {
		case model.RiskRed:
			reds++
		case model.RiskAmber:
			ambers++
		}
	}

	verdict.Confidence = confidence(ambers, reds)
	return verdict, nil
}

// confidence drops with every issue raised and never goes below 0.5.
func confidence(ambers, reds int) float64 {
	c := 1.0 - 0.05*float64(ambers) - 0.1*float64(reds)
	if c < 0.5 {
		return 0.5
	}
	return float64(int(c*100+0.5)) / 100
}

// Predicates used by the rule tables.

func above(key string, limit float64) func(model.Signals) bool {
	return func(s model.Signals) bool {
		v, ok := s.Number(key)
		return ok && v > limit
	}
}

func below(key string, limit float64) func(model.Signals) bool {
	return func(s model.Signals) bool {
		v, ok := s.Number(key)
		return ok && v < limit
	}
}

func exceeds(key, limitKey string) func(model.Signals) bool {
	return func(s model.Signals) bool {
		v, ok1 := s.Number(key)
		limit, ok2 := s.Number(limitKey)
		return ok1 && ok2 && v > limit
	}
}

func blank(key string) func(model.Signals) bool {
	return func(s model.Signals) bool {
		v, _ := s.String(key)
		return strings.TrimSpace(v) == ""
	}
}

func notOneOf(key string, allowed ...string) func(model.Signals) bool {
	return func(s model.Signals) bool {
		v, ok := s.String(key)
		if !ok || v == "" {
			return false
		}
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				return false
			}
		}
		return true
	}
}

func oneOf(key string, values ...string) func(model.Signals) bool {
	return func(s model.Signals) bool {
		v, ok := s.String(key)
		if !ok {
			return false
		}
		for _, a := range values {
			if strings.EqualFold(v, a) {
				return true
			}
		}
		return false
	}
}

func all(preds ...func(model.Signals) bool) func(model.Signals) bool {
	return func(s model.Signals) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}
}
