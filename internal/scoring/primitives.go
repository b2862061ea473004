package scoring

import (
	"math"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/matcher"
	"ClaimScanner/internal/rules"
)

// PrimitiveExtractor derives the eight risk primitives from indicator phrase counts.
// It is a heuristic: values are bounded and monotone in the counts, nothing more.
type PrimitiveExtractor struct {
	rules *rules.RuleSet
}

// NewPrimitiveExtractor binds the extractor to a compiled rule set.
func NewPrimitiveExtractor(rs *rules.RuleSet) *PrimitiveExtractor {
	return &PrimitiveExtractor{rules: rs}
}

// Extract scores the combined analysis text. Primitives without a rule keep the
// neutral value 0.5.
func (e *PrimitiveExtractor) Extract(text string) domain.Primitives {
	t := matcher.NewText(text)

	var p domain.Primitives
	for _, name := range domain.PrimitiveNames {
		p.Set(name, 0.5)
	}

	for _, rule := range e.rules.Primitives {
		inc := countAll(t, rule.Increasing)
		dec := countAll(t, rule.Decreasing)
		p.Set(rule.Name, NetScore(rule.Baseline, inc, dec, rule.Saturation))
	}
	return p
}

// NetScore combines risk-increasing and risk-decreasing counts around a baseline.
// Each side saturates after sat matches and moves the value by at most the distance
// from the baseline to its bound.
func NetScore(baseline float64, inc, dec, sat int) float64 {
	if sat <= 0 {
		sat = 1
	}
	up := math.Min(1, float64(inc)/float64(sat))
	down := math.Min(1, float64(dec)/float64(sat))
	return clamp01(baseline + up*(1-baseline) - down*baseline)
}

func countAll(t matcher.Text, phrases []string) int {
	n := 0
	for _, phrase := range phrases {
		n += t.Count(phrase)
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
