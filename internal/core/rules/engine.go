package rules

import (
	"context"
	"fmt"
	"math"

	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"
)

// Engine evaluates a rule battery against one domain at a time
type Engine struct {
	rules []Rule
	log   *logger.Logger
}

// NewEngine builds an engine; with no rules it uses Default
func NewEngine(rs ...Rule) *Engine {
	if len(rs) == 0 {
		rs = Default()
	}
	return &Engine{rules: rs, log: logger.Named("rules")}
}

// Rules returns the battery in evaluation order
func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Evaluate runs every rule and appends the overall evaluation last
// a failing rule scores 0, is not critical and carries the error as details
func (e *Engine) Evaluate(ctx context.Context, m Metrics, s Subject) []Evaluation {
	out := make([]Evaluation, 0, len(e.rules)+1)
	for _, r := range e.rules {
		out = append(out, e.safeEval(ctx, r, m, s))
	}
	return append(out, Aggregate(s.Domain, out))
}

func (e *Engine) safeEval(ctx context.Context, r Rule, m Metrics, s Subject) (ev Evaluation) {
	fail := func(err error) Evaluation {
		metrics.RuleFailure(r.ID())
		e.log.Warn().Err(err).
			Str("analysis_id", s.AnalysisID).Str("rule", r.ID()).Str("domain", s.Domain).
			Msg("rule evaluation failed")
		return Evaluation{Domain: s.Domain, Rule: r.ID(), Details: err.Error()}
	}
	defer func() {
		if rec := recover(); rec != nil {
			ev = fail(fmt.Errorf("panic: %v", rec))
		}
	}()

	ev, err := r.Eval(ctx, s, m)
	if err != nil {
		return fail(err)
	}
	if math.IsNaN(ev.Score) || math.IsInf(ev.Score, 0) {
		return fail(fmt.Errorf("non finite score %v", ev.Score))
	}
	ev.Domain, ev.Rule = s.Domain, r.ID()
	return ev
}

// Aggregate folds rule evaluations into the overall one: the mean score and
// the OR of critical flags. Existing overall rows are skipped.
func Aggregate(domain string, evals []Evaluation) Evaluation {
	var sum float64
	var n int
	critical := false
	for _, ev := range evals {
		if ev.Rule == OverallRule {
			continue
		}
		sum += ev.Score
		n++
		critical = critical || ev.Critical
	}
	score := 0.0
	if n > 0 {
		score = sum / float64(n)
	}
	return Evaluation{
		Domain:   domain,
		Rule:     OverallRule,
		Score:    score,
		Critical: critical,
		Details:  fmt.Sprintf("%d rules", n),
	}
}
