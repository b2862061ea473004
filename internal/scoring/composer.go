package scoring

import (
	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/rules"
)

// Composer combines primitives, the selected category overlay and detected signals
// into the final score. It is deterministic for identical inputs.
type Composer struct {
	rules *rules.RuleSet
}

// NewComposer binds the composer to a compiled rule set.
func NewComposer(rs *rules.RuleSet) *Composer {
	return &Composer{rules: rs}
}

// Compose evaluates
//
//	base      = Σ w_i * p_i
//	overlayed = clamp01(base*multiplier + additive + Σ penalties − Σ credits)
//	harmed    = clamp01(overlayed * harmMultiplier)
//	final01   = harmed, or (1−s)*harmed + s*midpoint when confidence < shrinkThreshold
//	final     = round(final01 * 10, 1)
//
// Signals whose name is not a penalty or credit of the category contribute nothing.
// An unknown category is scored with the fallback category's overlay.
func (c *Composer) Compose(p domain.Primitives, category domain.CategoryCandidate, signals []domain.Signal) domain.ScoreBreakdown {
	params := c.rules.Scoring

	cat, ok := c.rules.Category(category.Category)
	if !ok {
		cat, _ = c.rules.Category(params.FallbackCategory)
	}

	var base float64
	for _, name := range domain.PrimitiveNames {
		base += params.Weights[name] * p.Get(name)
	}

	penalties, credits, applied := c.signalPoints(cat.Overlay, signals)
	overlayed := clamp01(base*cat.Overlay.Multiplier + cat.Overlay.Additive + penalties - credits)
	harmed := clamp01(overlayed * cat.HarmMultiplier)

	final01 := harmed
	shrunk := false
	if category.Confidence < params.ShrinkThreshold {
		final01 = (1-params.ShrinkStrength)*harmed + params.ShrinkStrength*params.Midpoint
		shrunk = true
	}

	return domain.ScoreBreakdown{
		Category:       category,
		BaseRisk:       base,
		OverlayDelta:   overlayed - base,
		Overlayed:      overlayed,
		HarmMultiplier: cat.HarmMultiplier,
		Harmed:         harmed,
		Shrunk:         shrunk,
		ConfidenceAdj:  final01,
		FinalScore:     domain.RoundScore(final01 * 10),
		Signals:        applied,
	}
}

func (c *Composer) signalPoints(o rules.Overlay, signals []domain.Signal) (penalties, credits float64, applied []domain.Signal) {
	for _, s := range signals {
		if r, ok := findRule(o.Penalties, s.Name); ok {
			pts := r.Points(s.Severity)
			penalties += pts
			applied = append(applied, domain.Signal{Name: s.Name, Kind: KindPenalty, Severity: s.Severity, Points: pts})
			continue
		}
		if r, ok := findRule(o.Credits, s.Name); ok {
			pts := r.Points(s.Severity)
			credits += pts
			applied = append(applied, domain.Signal{Name: s.Name, Kind: KindCredit, Severity: s.Severity, Points: pts})
		}
	}
	return penalties, credits, applied
}

func findRule(list []rules.OverlayRule, name string) (rules.OverlayRule, bool) {
	for _, r := range list {
		if r.Name == name {
			return r, true
		}
	}
	return rules.OverlayRule{}, false
}
