// Package scoring turns analysis text into normalized risk primitives, detects the
// product category and composes the final 0-10 claim risk score.
package scoring

import (
	"math"
	"sort"
	"strings"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/matcher"
	"ClaimScanner/internal/rules"
)

// CategoryDetector ranks categories by keyword and URL heuristics.
type CategoryDetector struct {
	rules *rules.RuleSet
}

// NewCategoryDetector binds the detector to a compiled rule set.
func NewCategoryDetector(rs *rules.RuleSet) *CategoryDetector {
	return &CategoryDetector{rules: rs}
}

// Detect returns up to MaxCandidates candidates sorted by confidence. When nothing
// scores, a single fallback candidate with the configured confidence is returned.
func (d *CategoryDetector) Detect(text, rawURL string) []domain.CategoryCandidate {
	p := d.rules.Scoring
	t := matcher.NewText(text)
	u := strings.ToLower(rawURL)

	candidates := make([]domain.CategoryCandidate, 0, len(d.rules.Categories))
	for _, c := range d.rules.Categories {
		var score float64
		for _, kw := range c.Keywords {
			if t.Contains(kw) {
				score += p.KeywordWeight
			}
		}
		if u != "" {
			for _, pattern := range c.URLPatterns {
				if strings.Contains(u, strings.ToLower(pattern)) {
					score += p.URLWeight
				}
			}
		}
		if score <= 0 {
			continue
		}
		candidates = append(candidates, domain.CategoryCandidate{
			Category:   c.ID,
			Confidence: math.Min(1, score/p.CategoryDivisor),
		})
	}

	if len(candidates) == 0 {
		return []domain.CategoryCandidate{d.Fallback()}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Category < candidates[j].Category
	})
	if len(candidates) > p.MaxCandidates {
		candidates = candidates[:p.MaxCandidates]
	}
	return candidates
}

// Select picks the candidate whose overlay applies: the best one when it clears the
// apply threshold, otherwise the fallback category.
func (d *CategoryDetector) Select(candidates []domain.CategoryCandidate) domain.CategoryCandidate {
	if len(candidates) > 0 && candidates[0].Confidence >= d.rules.Scoring.ApplyOverlayThreshold {
		if _, ok := d.rules.Category(candidates[0].Category); ok {
			return candidates[0]
		}
	}
	return d.Fallback()
}

// Fallback is the fixed-confidence default category.
func (d *CategoryDetector) Fallback() domain.CategoryCandidate {
	return domain.CategoryCandidate{
		Category:   d.rules.Scoring.FallbackCategory,
		Confidence: d.rules.Scoring.FallbackConfidence,
	}
}
