package scoring

import (
	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/matcher"
	"ClaimScanner/internal/rules"
)

// Signal kinds.
const (
	KindPenalty = "penalty"
	KindCredit  = "credit"
)

// SignalDetector finds the overlay penalties and credits of a category in text.
type SignalDetector struct {
	rules *rules.RuleSet
}

// NewSignalDetector binds the detector to a compiled rule set.
func NewSignalDetector(rs *rules.RuleSet) *SignalDetector {
	return &SignalDetector{rules: rs}
}

// Detect returns one signal per overlay rule with at least one distinct cue present.
// Severity grows with the number of distinct cues matched.
func (d *SignalDetector) Detect(category, text string) []domain.Signal {
	c, ok := d.rules.Category(category)
	if !ok {
		return nil
	}

	t := matcher.NewText(text)
	var out []domain.Signal
	for _, r := range c.Overlay.Penalties {
		if s, hit := d.evaluate(t, r, KindPenalty); hit {
			out = append(out, s)
		}
	}
	for _, r := range c.Overlay.Credits {
		if s, hit := d.evaluate(t, r, KindCredit); hit {
			out = append(out, s)
		}
	}
	return out
}

func (d *SignalDetector) evaluate(t matcher.Text, r rules.OverlayRule, kind string) (domain.Signal, bool) {
	hits := 0
	for _, cue := range r.Cues {
		if t.Contains(cue) {
			hits++
		}
	}
	if hits == 0 {
		return domain.Signal{}, false
	}

	severity := rules.SeverityLow
	switch {
	case hits >= d.rules.Scoring.HighHits:
		severity = rules.SeverityHigh
	case hits >= d.rules.Scoring.MediumHits:
		severity = rules.SeverityMed
	}

	return domain.Signal{
		Name:     r.Name,
		Kind:     kind,
		Severity: severity,
		Points:   r.Points(severity),
	}, true
}
