// Package rules holds the editable configuration that drives matching and scoring:
// commodity lexicons, archetype definitions, category overlays, primitive indicators
// and the scoring constants. A RuleSet is compiled once and never mutated afterwards.
package rules

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ClaimScanner/internal/domain"
)

//go:embed default.yaml
var defaultPack []byte

// Severity levels for overlay penalties and credits.
const (
	SeverityLow  = "low"
	SeverityMed  = "med"
	SeverityHigh = "high"
)

// RuleSet is the full configuration surface consumed by the engine.
type RuleSet struct {
	Version    string          `yaml:"version"`
	Commodity  CommodityRules  `yaml:"commodity"`
	Archetypes []Archetype     `yaml:"archetypes"`
	Categories []Category      `yaml:"categories"`
	Primitives []PrimitiveRule `yaml:"primitives"`
	Scoring    ScoringParams   `yaml:"scoring"`
	Routing    RoutingParams   `yaml:"routing"`

	lexicon       map[string]struct{}
	disqualifying map[string]struct{}
	modifiers     map[string]struct{}
	categoryIndex map[string]int
}

// CommodityRules configures the trivial-input matcher.
type CommodityRules struct {
	MaxTokens     int      `yaml:"maxTokens"`
	Lexicon       []string `yaml:"lexicon"`
	Disqualifying []string `yaml:"disqualifying"`
	Modifiers     []string `yaml:"modifiers"`
}

// WeightedPhrase is an archetype signal phrase with its contribution weight.
type WeightedPhrase struct {
	Phrase string  `yaml:"phrase"`
	Weight float64 `yaml:"weight"`
}

// UnmarshalYAML accepts either a bare phrase or a {phrase, weight} mapping.
func (w *WeightedPhrase) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		w.Phrase = node.Value
		w.Weight = 1
		return nil
	}

	type plain WeightedPhrase
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*w = WeightedPhrase(p)
	if w.Weight == 0 {
		w.Weight = 1
	}
	return nil
}

// Archetype is a known deceptive-claim pattern.
type Archetype struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Priority  int              `yaml:"priority"`
	ScoreMin  float64          `yaml:"scoreMin"`
	ScoreMax  float64          `yaml:"scoreMax"`
	Threshold float64          `yaml:"threshold"`
	MinExact  int              `yaml:"minExact"`
	Signals   []WeightedPhrase `yaml:"signals"`
	Intensity []string         `yaml:"intensity"`
	RedFlags  []string         `yaml:"redFlags"`
	Category  string           `yaml:"category"`
	// Pillars maps a category id to its base subscore vector; "default" applies otherwise.
	Pillars map[string]map[string]float64 `yaml:"pillars"`
}

// UnmarshalYAML defaults minExact to 1 when the key is absent.
func (a *Archetype) UnmarshalYAML(node *yaml.Node) error {
	type plain Archetype
	p := plain{MinExact: 1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = Archetype(p)
	return nil
}

// PillarsFor returns the base subscores for a category.
func (a Archetype) PillarsFor(category string) map[string]float64 {
	if p, ok := a.Pillars[category]; ok {
		return p
	}
	return a.Pillars["default"]
}

// Category describes detection heuristics and the score overlay of one product category.
type Category struct {
	ID             string   `yaml:"id"`
	Keywords       []string `yaml:"keywords"`
	URLPatterns    []string `yaml:"urlPatterns"`
	HarmMultiplier float64  `yaml:"harmMultiplier"`
	Overlay        Overlay  `yaml:"overlay"`
}

// UnmarshalYAML defaults both multipliers to 1 when their keys are absent; an explicit 0 is kept.
func (c *Category) UnmarshalYAML(node *yaml.Node) error {
	type plain Category
	p := plain{HarmMultiplier: 1, Overlay: Overlay{Multiplier: 1}}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Category(p)
	return nil
}

// Overlay adjusts the base risk for a category.
type Overlay struct {
	Multiplier float64       `yaml:"multiplier"`
	Additive   float64       `yaml:"additive"`
	Penalties  []OverlayRule `yaml:"penalties"`
	Credits    []OverlayRule `yaml:"credits"`
	RiskCues   []string      `yaml:"riskCues"`
	TrustCues  []string      `yaml:"trustCues"`
}

// OverlayRule is a named penalty or credit with severity-scaled points.
type OverlayRule struct {
	Name string   `yaml:"name"`
	Cues []string `yaml:"cues"`
	Low  float64  `yaml:"low"`
	Med  float64  `yaml:"med"`
	High float64  `yaml:"high"`
}

// Points returns the configured value of a severity level.
func (r OverlayRule) Points(severity string) float64 {
	switch severity {
	case SeverityLow:
		return r.Low
	case SeverityMed:
		return r.Med
	case SeverityHigh:
		return r.High
	}
	return 0
}

// PrimitiveRule lists the indicator phrases of one risk primitive.
type PrimitiveRule struct {
	Name       string   `yaml:"name"`
	Baseline   float64  `yaml:"baseline"`
	Saturation int      `yaml:"saturation"`
	Increasing []string `yaml:"increasing"`
	Decreasing []string `yaml:"decreasing"`
}

// UnmarshalYAML defaults the baseline to 0.5 when the key is absent.
func (p *PrimitiveRule) UnmarshalYAML(node *yaml.Node) error {
	type plain PrimitiveRule
	out := plain{Baseline: 0.5}
	if err := node.Decode(&out); err != nil {
		return err
	}
	*p = PrimitiveRule(out)
	return nil
}

// ScoringParams are the composer and category-detector constants.
type ScoringParams struct {
	Weights               map[string]float64 `yaml:"weights"`
	ShrinkThreshold       float64            `yaml:"shrinkThreshold"`
	ShrinkStrength        float64            `yaml:"shrinkStrength"`
	Midpoint              float64            `yaml:"midpoint"`
	ApplyOverlayThreshold float64            `yaml:"applyOverlayThreshold"`
	FallbackCategory      string             `yaml:"fallbackCategory"`
	FallbackConfidence    float64            `yaml:"fallbackConfidence"`
	MaxCandidates         int                `yaml:"maxCandidates"`
	KeywordWeight         float64            `yaml:"keywordWeight"`
	URLWeight             float64            `yaml:"urlWeight"`
	CategoryDivisor       float64            `yaml:"categoryDivisor"`
	MediumHits            int                `yaml:"mediumHits"`
	HighHits              int                `yaml:"highHits"`
}

// RoutingParams are the tiered-router constants.
type RoutingParams struct {
	ArchetypeConfidence float64 `yaml:"archetypeConfidence"`
	MinTokens           int     `yaml:"minTokens"`
	JitterSpan          float64 `yaml:"jitterSpan"`
	IntensityStep       float64 `yaml:"intensityStep"`
	HighSeverityScore   float64 `yaml:"highSeverityScore"`
}

// Default returns the embedded rule pack.
func Default() (*RuleSet, error) {
	return Parse(defaultPack)
}

// MustDefault is Default for callers that cannot recover from a broken embedded pack.
func MustDefault() *RuleSet {
	rs, err := Default()
	if err != nil {
		panic(err)
	}
	return rs
}

// Load reads a rule pack from path; an empty path selects the embedded pack.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule pack %s: %w", path, err)
	}

	rs, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes YAML and compiles the resulting rule set. Parameters whose zero
// value is meaningful are defaulted only when their key is absent.
func Parse(raw []byte) (*RuleSet, error) {
	rs := RuleSet{
		Scoring: ScoringParams{Midpoint: 0.5, KeywordWeight: 1, URLWeight: 3},
		Routing: RoutingParams{ArchetypeConfidence: 0.70, MinTokens: 3, HighSeverityScore: 7},
	}
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	return Compile(rs)
}

// Compile fills parameters that cannot be zero, validates and indexes a rule set.
// The input is copied.
func Compile(rs RuleSet) (*RuleSet, error) {
	out := rs
	out.Archetypes = append([]Archetype(nil), rs.Archetypes...)
	out.Categories = append([]Category(nil), rs.Categories...)
	out.Primitives = append([]PrimitiveRule(nil), rs.Primitives...)
	out.applyDefaults()

	if err := out.validate(); err != nil {
		return nil, err
	}

	out.lexicon = toSet(out.Commodity.Lexicon)
	out.disqualifying = toSet(out.Commodity.Disqualifying)
	out.modifiers = toSet(out.Commodity.Modifiers)
	out.categoryIndex = make(map[string]int, len(out.Categories))
	for i, c := range out.Categories {
		out.categoryIndex[c.ID] = i
	}

	sort.SliceStable(out.Archetypes, func(i, j int) bool {
		return out.Archetypes[i].Priority < out.Archetypes[j].Priority
	})

	return &out, nil
}

func (rs *RuleSet) applyDefaults() {
	if rs.Commodity.MaxTokens == 0 {
		rs.Commodity.MaxTokens = 5
	}
	for i := range rs.Archetypes {
		if rs.Archetypes[i].Name == "" {
			rs.Archetypes[i].Name = rs.Archetypes[i].ID
		}
	}
	for i := range rs.Primitives {
		if rs.Primitives[i].Saturation == 0 {
			rs.Primitives[i].Saturation = 3
		}
	}

	s := &rs.Scoring
	if s.MaxCandidates == 0 {
		s.MaxCandidates = 3
	}
	if s.CategoryDivisor == 0 {
		s.CategoryDivisor = 4
	}
	if s.MediumHits == 0 {
		s.MediumHits = 2
	}
	if s.HighHits == 0 {
		s.HighHits = 3
	}
}

func (rs *RuleSet) validate() error {
	var problems []string

	seen := map[string]bool{}
	for _, a := range rs.Archetypes {
		if a.ID == "" {
			problems = append(problems, "archetype without id")
			continue
		}
		if seen[a.ID] {
			problems = append(problems, fmt.Sprintf("archetype %s defined twice", a.ID))
		}
		seen[a.ID] = true
		if a.Threshold <= 0 {
			problems = append(problems, fmt.Sprintf("archetype %s: threshold must be positive", a.ID))
		}
		if a.ScoreMin < 0 || a.ScoreMax > 10 || a.ScoreMin > a.ScoreMax {
			problems = append(problems, fmt.Sprintf("archetype %s: invalid score range [%.1f,%.1f]", a.ID, a.ScoreMin, a.ScoreMax))
		}
		if len(a.Signals) == 0 {
			problems = append(problems, fmt.Sprintf("archetype %s: no signals", a.ID))
		}
	}

	catSeen := map[string]bool{}
	for _, c := range rs.Categories {
		if c.ID == "" {
			problems = append(problems, "category without id")
			continue
		}
		if catSeen[c.ID] {
			problems = append(problems, fmt.Sprintf("category %s defined twice", c.ID))
		}
		catSeen[c.ID] = true
	}
	if !catSeen[rs.Scoring.FallbackCategory] {
		problems = append(problems, fmt.Sprintf("fallback category %q is not defined", rs.Scoring.FallbackCategory))
	}

	known := map[string]bool{}
	for _, name := range domain.PrimitiveNames {
		known[name] = true
	}
	for _, p := range rs.Primitives {
		if !known[p.Name] {
			problems = append(problems, fmt.Sprintf("unknown primitive %q", p.Name))
		}
	}

	var sum float64
	for name, w := range rs.Scoring.Weights {
		if !known[name] {
			problems = append(problems, fmt.Sprintf("weight for unknown primitive %q", name))
		}
		if w < 0 {
			problems = append(problems, fmt.Sprintf("negative weight for %s", name))
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		problems = append(problems, fmt.Sprintf("primitive weights sum to %.4f, want 1", sum))
	}

	if rs.Scoring.ShrinkStrength < 0 || rs.Scoring.ShrinkStrength > 1 {
		problems = append(problems, "shrinkStrength must be within [0,1]")
	}
	if rs.Scoring.FallbackConfidence < 0 || rs.Scoring.FallbackConfidence > 1 {
		problems = append(problems, "fallbackConfidence must be within [0,1]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid rule pack: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InLexicon reports whether a normalized phrase is a commodity lexicon term.
func (rs *RuleSet) InLexicon(phrase string) bool {
	_, ok := rs.lexicon[phrase]
	return ok
}

// Disqualifies reports whether a token rules out the commodity tier.
func (rs *RuleSet) Disqualifies(token string) bool {
	_, ok := rs.disqualifying[token]
	return ok
}

// IsModifier reports whether a token is an allowed descriptive modifier.
func (rs *RuleSet) IsModifier(token string) bool {
	_, ok := rs.modifiers[token]
	return ok
}

// Category returns the category definition by id.
func (rs *RuleSet) Category(id string) (Category, bool) {
	i, ok := rs.categoryIndex[id]
	if !ok {
		return Category{}, false
	}
	return rs.Categories[i], true
}

// Archetype returns an archetype definition by id.
func (rs *RuleSet) Archetype(id string) (Archetype, bool) {
	for _, a := range rs.Archetypes {
		if a.ID == id {
			return a, true
		}
	}
	return Archetype{}, false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[domain.NormalizeText(v)] = struct{}{}
	}
	return set
}
