package scoring

import (
	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/rules"
)

// Assessment is the full-analysis scoring outcome for one text.
type Assessment struct {
	Candidates []domain.CategoryCandidate
	Category   domain.CategoryCandidate
	Primitives domain.Primitives
	Breakdown  domain.ScoreBreakdown
}

// Engine chains category detection, primitive extraction, signal detection and composition.
type Engine struct {
	detector  *CategoryDetector
	extractor *PrimitiveExtractor
	signals   *SignalDetector
	composer  *Composer
}

// NewEngine builds every scoring stage over the same rule set.
func NewEngine(rs *rules.RuleSet) *Engine {
	return &Engine{
		detector:  NewCategoryDetector(rs),
		extractor: NewPrimitiveExtractor(rs),
		signals:   NewSignalDetector(rs),
		composer:  NewComposer(rs),
	}
}

// Assess scores the combined analysis text. rawURL feeds URL category heuristics and may be empty.
func (e *Engine) Assess(text, rawURL string) Assessment {
	candidates := e.detector.Detect(text, rawURL)
	category := e.detector.Select(candidates)
	primitives := e.extractor.Extract(text)
	signals := e.signals.Detect(category.Category, text)

	return Assessment{
		Candidates: candidates,
		Category:   category,
		Primitives: primitives,
		Breakdown:  e.composer.Compose(primitives, category, signals),
	}
}
