package matcher

import (
	"math"
	"sort"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/rules"
)

const (
	exactWeight   = 1.0
	partialWeight = 0.5
)

// ArchetypeMatch is the evaluation of one archetype against a text.
type ArchetypeMatch struct {
	Archetype  rules.Archetype
	Confidence float64
	Exact      int
	Matched    []string
	Partial    []string
	Intensity  int
	Eligible   bool
}

// Hit converts the match into its caller-facing form.
func (m ArchetypeMatch) Hit() *domain.ArchetypeHit {
	return &domain.ArchetypeHit{
		ID:         m.Archetype.ID,
		Name:       m.Archetype.Name,
		Confidence: m.Confidence,
		Matched:    m.Matched,
		Partial:    m.Partial,
	}
}

// ArchetypeMatcher scores text against every configured deceptive-claim archetype.
type ArchetypeMatcher struct {
	rules         *rules.RuleSet
	minConfidence float64
}

// NewArchetypeMatcher binds the matcher to a compiled rule set.
func NewArchetypeMatcher(rs *rules.RuleSet) *ArchetypeMatcher {
	return &ArchetypeMatcher{rules: rs, minConfidence: rs.Routing.ArchetypeConfidence}
}

// Evaluate scores every archetype. Results are ordered by priority, then confidence.
func (m *ArchetypeMatcher) Evaluate(text string) []ArchetypeMatch {
	t := NewText(text)

	out := make([]ArchetypeMatch, 0, len(m.rules.Archetypes))
	for _, a := range m.rules.Archetypes {
		match := ArchetypeMatch{Archetype: a}

		var weight float64
		for _, sig := range a.Signals {
			switch {
			case t.Contains(sig.Phrase):
				weight += exactWeight * sig.Weight
				match.Exact++
				match.Matched = append(match.Matched, sig.Phrase)
			case t.HasAllSignificant(sig.Phrase):
				weight += partialWeight * sig.Weight
				match.Partial = append(match.Partial, sig.Phrase)
			}
		}
		for _, mod := range a.Intensity {
			if t.Contains(mod) {
				match.Intensity++
			}
		}

		match.Confidence = math.Min(1, weight/a.Threshold)
		match.Eligible = match.Confidence >= m.minConfidence && match.Exact >= a.MinExact
		out = append(out, match)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Archetype.Priority != out[j].Archetype.Priority {
			return out[i].Archetype.Priority < out[j].Archetype.Priority
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Match returns the winning eligible archetype: lowest priority number first, highest
// confidence as tie-break. ok is false when nothing is eligible.
func (m *ArchetypeMatcher) Match(text string) (ArchetypeMatch, bool) {
	for _, match := range m.Evaluate(text) {
		if match.Eligible {
			return match, true
		}
	}
	return ArchetypeMatch{}, false
}

// Hint returns the archetype with the highest confidence, eligible or not, for display.
func (m *ArchetypeMatcher) Hint(text string) (ArchetypeMatch, bool) {
	var (
		best  ArchetypeMatch
		found bool
	)
	for _, match := range m.Evaluate(text) {
		if match.Confidence == 0 {
			continue
		}
		if !found || match.Confidence > best.Confidence {
			best, found = match, true
		}
	}
	return best, found
}
