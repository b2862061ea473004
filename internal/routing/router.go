// Package routing decides how much analysis an input needs before any scoring runs.
package routing

import (
	"hash/fnv"
	"math"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/matcher"
	"ClaimScanner/internal/rules"
)

// Decision is the outcome of routing one input.
type Decision struct {
	Tier      domain.Tier
	Archetype *matcher.ArchetypeMatch
	Hint      *matcher.ArchetypeMatch
	Tokens    int
}

// Router evaluates the commodity and archetype matchers in a fixed order.
type Router struct {
	rules      *rules.RuleSet
	commodity  *matcher.CommodityMatcher
	archetypes *matcher.ArchetypeMatcher
}

// NewRouter builds a router over a compiled rule set.
func NewRouter(rs *rules.RuleSet) *Router {
	return &Router{
		rules:      rs,
		commodity:  matcher.NewCommodityMatcher(rs),
		archetypes: matcher.NewArchetypeMatcher(rs),
	}
}

// Route picks the analysis tier. URL and image inputs always get full analysis and
// only collect an archetype hint; text inputs may short-circuit.
func (r *Router) Route(in domain.Input) Decision {
	text := in.Normalized()
	d := Decision{Tokens: len(matcher.Tokenize(text))}

	if in.Kind != domain.InputText {
		d.Tier = domain.TierFullAnalysis
		if hint, ok := r.archetypes.Hint(hintText(in)); ok {
			d.Hint = &hint
		}
		return d
	}

	if r.commodity.Match(text) {
		d.Tier = domain.TierInstantZero
		return d
	}

	if match, ok := r.archetypes.Match(text); ok {
		d.Tier = domain.TierInstantHigh
		d.Archetype = &match
		return d
	}

	hint, hasHint := r.archetypes.Hint(text)
	if hasHint {
		d.Hint = &hint
	}

	if d.Tokens < r.rules.Routing.MinTokens && in.DisambiguationFailed {
		d.Tier = domain.TierUnscorable
		return d
	}

	d.Tier = domain.TierFullAnalysis
	return d
}

// hintText is what the archetype hint sees for URL and image inputs: the address
// split into words, followed by the caption.
func hintText(in domain.Input) string {
	return domain.NormalizeText(in.URL + " " + in.Caption)
}

// InstantResult builds the result of an instant tier. ok is false for tiers that
// need the full pipeline.
func (r *Router) InstantResult(in domain.Input, d Decision) (domain.Result, bool) {
	switch d.Tier {
	case domain.TierInstantZero:
		score := 0.0
		return domain.Result{
			Tier:       d.Tier,
			Score:      &score,
			Severity:   "none",
			Confidence: 1.0,
			Category:   domain.CategoryCandidate{Category: r.rules.Scoring.FallbackCategory, Confidence: 1.0},
			Evidence:   []string{"Basic commodity with no marketing claims to evaluate."},
			RedFlags:   []string{},
		}, true

	case domain.TierInstantHigh:
		a := d.Archetype
		score := r.ArchetypeScore(*a, in.Normalized())
		category := a.Archetype.Category
		if category == "" {
			category = r.rules.Scoring.FallbackCategory
		}

		evidence := make([]string, 0, len(a.Matched)+len(a.Partial))
		for _, phrase := range a.Matched {
			evidence = append(evidence, "Matched known claim pattern: \""+phrase+"\"")
		}
		for _, phrase := range a.Partial {
			evidence = append(evidence, "Partially matched claim pattern: \""+phrase+"\"")
		}

		return domain.Result{
			Tier:       d.Tier,
			Score:      &score,
			Severity:   r.severity(score),
			Confidence: a.Confidence,
			Category:   domain.CategoryCandidate{Category: category, Confidence: a.Confidence},
			Evidence:   evidence,
			RedFlags:   append([]string{}, a.Archetype.RedFlags...),
			Subscores:  copyPillars(a.Archetype.PillarsFor(category)),
			Archetype:  a.Hit(),
		}, true

	case domain.TierUnscorable:
		return domain.Result{
			Tier:     d.Tier,
			Evidence: []string{},
			RedFlags: []string{},
			Reason:   "Input is too short to identify a product or claim, and clarification did not resolve it.",
		}, true
	}
	return domain.Result{}, false
}

// ArchetypeScore places an archetype hit inside its configured range. The position grows
// with confidence and intensity modifiers; a hash of the input adds a small stable offset.
func (r *Router) ArchetypeScore(m matcher.ArchetypeMatch, normalized string) float64 {
	a := m.Archetype
	floor := r.rules.Routing.ArchetypeConfidence

	position := 0.7
	if floor < 1 {
		position = (m.Confidence - floor) / (1 - floor) * 0.7
	}
	position += r.rules.Routing.IntensityStep * float64(m.Intensity)
	position = math.Max(0, math.Min(1, position))

	score := a.ScoreMin + (a.ScoreMax-a.ScoreMin)*position
	score += Jitter(normalized, r.rules.Routing.JitterSpan)
	score = domain.RoundScore(score)
	return math.Max(a.ScoreMin, math.Min(a.ScoreMax, score))
}

// Jitter maps text to a deterministic offset in [-span, +span].
func Jitter(text string, span float64) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	u := float64(h.Sum64()%10001) / 10000
	return (2*u - 1) * span
}

func (r *Router) severity(score float64) string {
	if score >= r.rules.Routing.HighSeverityScore {
		return "high"
	}
	return "elevated"
}

func copyPillars(p map[string]float64) map[string]float64 {
	if p == nil {
		return nil
	}
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
