package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// InputKind describes what the caller submitted for scoring.
type InputKind string

const (
	InputText  InputKind = "text"
	InputURL   InputKind = "url"
	InputImage InputKind = "image"
)

// Input is the payload of a scoring request.
type Input struct {
	Kind    InputKind `json:"kind"`
	Text    string    `json:"text,omitempty"`
	URL     string    `json:"url,omitempty"`
	Caption string    `json:"caption,omitempty"`
	// DisambiguationFailed is set by the caller after a clarification round did not help.
	DisambiguationFailed bool `json:"disambiguationFailed,omitempty"`
}

// Validate checks that the input carries the fields its kind requires.
func (in Input) Validate() error {
	switch in.Kind {
	case InputText:
		if strings.TrimSpace(in.Text) == "" {
			return fmt.Errorf("%w: text input is empty", ErrInvalidInput)
		}
	case InputURL, InputImage:
		if strings.TrimSpace(in.URL) == "" {
			return fmt.Errorf("%w: %s input requires a url", ErrInvalidInput, in.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown input kind %q", ErrInvalidInput, in.Kind)
	}
	return nil
}

// Normalized returns the analysis text of the input: lowercased, trimmed, single-spaced.
func (in Input) Normalized() string {
	switch in.Kind {
	case InputText:
		return NormalizeText(in.Text)
	case InputImage:
		return NormalizeText(in.Caption)
	default:
		return ""
	}
}

// DedupKey derives the stable identifier used to collapse duplicate submissions.
func (in Input) DedupKey() string {
	subject := in.Normalized()
	if in.Kind != InputText {
		subject = strings.TrimSpace(strings.ToLower(in.URL)) + "\x00" + subject
	}

	sum := sha256.Sum256([]byte(string(in.Kind) + "\x00" + subject))
	return hex.EncodeToString(sum[:])
}

// NormalizeText lowercases and collapses all whitespace runs to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tier is the routing outcome that decides how much analysis an input receives.
type Tier string

const (
	TierInstantZero  Tier = "instant_zero"
	TierInstantHigh  Tier = "instant_high"
	TierFullAnalysis Tier = "full_analysis"
	TierUnscorable   Tier = "unscorable"
)

// Subscore names reported by the text-generation service and filled from archetype pillars.
const (
	SubscoreEvidence      = "evidence_strength"
	SubscoreVerifiability = "verifiability"
	SubscoreTransparency  = "transparency"
	SubscoreHarm          = "harm_potential"
)

// SubscoreNames lists the four pillars in report order.
var SubscoreNames = []string{SubscoreEvidence, SubscoreVerifiability, SubscoreTransparency, SubscoreHarm}

// Report is a validated response of the text-generation service.
type Report struct {
	Summary   string             `json:"summary"`
	Evidence  []string           `json:"evidence"`
	Subscores map[string]float64 `json:"subscores"`
	KeyClaims []string           `json:"keyClaims"`
	RedFlags  []string           `json:"redFlags"`
	Citations []string           `json:"citations"`
}

// CategoryCandidate is a detected product category with its confidence in [0,1].
type CategoryCandidate struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Signal is a named overlay penalty or credit detected in the analysis text.
type Signal struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Severity string  `json:"severity"`
	Points   float64 `json:"points"`
}

// Primitives are the eight normalized risk dimensions, 1 meaning higher risk.
type Primitives struct {
	ClaimDensity     float64 `json:"claimDensity"`
	ClaimSpecificity float64 `json:"claimSpecificity"`
	Verifiability    float64 `json:"verifiability"`
	EvidenceQuality  float64 `json:"evidenceQuality"`
	Transparency     float64 `json:"transparency"`
	PresentationRisk float64 `json:"presentationRisk"`
	SourceAuthority  float64 `json:"sourceAuthority"`
	HarmPotential    float64 `json:"harmPotential"`
}

// Primitive names used by the rule pack.
const (
	PrimitiveClaimDensity     = "claim_density"
	PrimitiveClaimSpecificity = "claim_specificity"
	PrimitiveVerifiability    = "verifiability"
	PrimitiveEvidenceQuality  = "evidence_quality"
	PrimitiveTransparency     = "transparency"
	PrimitivePresentationRisk = "presentation_risk"
	PrimitiveSourceAuthority  = "source_authority"
	PrimitiveHarmPotential    = "harm_potential"
)

// PrimitiveNames lists every primitive in a fixed order.
var PrimitiveNames = []string{
	PrimitiveClaimDensity,
	PrimitiveClaimSpecificity,
	PrimitiveVerifiability,
	PrimitiveEvidenceQuality,
	PrimitiveTransparency,
	PrimitivePresentationRisk,
	PrimitiveSourceAuthority,
	PrimitiveHarmPotential,
}

// Get returns a primitive by its rule-pack name.
func (p Primitives) Get(name string) float64 {
	switch name {
	case PrimitiveClaimDensity:
		return p.ClaimDensity
	case PrimitiveClaimSpecificity:
		return p.ClaimSpecificity
	case PrimitiveVerifiability:
		return p.Verifiability
	case PrimitiveEvidenceQuality:
		return p.EvidenceQuality
	case PrimitiveTransparency:
		return p.Transparency
	case PrimitivePresentationRisk:
		return p.PresentationRisk
	case PrimitiveSourceAuthority:
		return p.SourceAuthority
	case PrimitiveHarmPotential:
		return p.HarmPotential
	}
	return 0
}

// Set assigns a primitive by its rule-pack name; unknown names are ignored.
func (p *Primitives) Set(name string, v float64) {
	switch name {
	case PrimitiveClaimDensity:
		p.ClaimDensity = v
	case PrimitiveClaimSpecificity:
		p.ClaimSpecificity = v
	case PrimitiveVerifiability:
		p.Verifiability = v
	case PrimitiveEvidenceQuality:
		p.EvidenceQuality = v
	case PrimitiveTransparency:
		p.Transparency = v
	case PrimitivePresentationRisk:
		p.PresentationRisk = v
	case PrimitiveSourceAuthority:
		p.SourceAuthority = v
	case PrimitiveHarmPotential:
		p.HarmPotential = v
	}
}

// ScoreBreakdown records every intermediate value of one score composition.
type ScoreBreakdown struct {
	Category       CategoryCandidate `json:"category"`
	BaseRisk       float64           `json:"baseRisk"`
	OverlayDelta   float64           `json:"overlayDelta"`
	Overlayed      float64           `json:"overlayed"`
	HarmMultiplier float64           `json:"harmMultiplier"`
	Harmed         float64           `json:"harmed"`
	Shrunk         bool              `json:"shrunk"`
	ConfidenceAdj  float64           `json:"confidenceAdjusted"`
	FinalScore     float64           `json:"finalScore"`
	Signals        []Signal          `json:"signals,omitempty"`
}

// ArchetypeHit describes the archetype chosen by the signal matcher.
type ArchetypeHit struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Matched    []string `json:"matched"`
	Partial    []string `json:"partial,omitempty"`
}

// Result is the caller-facing outcome of scoring one input.
type Result struct {
	Tier        Tier                `json:"tier"`
	Score       *float64            `json:"score"`
	Severity    string              `json:"severity,omitempty"`
	Confidence  float64             `json:"confidence"`
	Category    CategoryCandidate   `json:"category"`
	Candidates  []CategoryCandidate `json:"candidates,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Evidence    []string            `json:"evidence"`
	RedFlags    []string            `json:"redFlags"`
	KeyClaims   []string            `json:"keyClaims,omitempty"`
	Citations   []string            `json:"citations,omitempty"`
	Subscores   map[string]float64  `json:"subscores,omitempty"`
	Archetype   *ArchetypeHit       `json:"archetype,omitempty"`
	Hint        *ArchetypeHit       `json:"archetypeHint,omitempty"`
	Primitives  *Primitives         `json:"primitives,omitempty"`
	Breakdown   *ScoreBreakdown     `json:"breakdown,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	PageFetched bool                `json:"pageFetched,omitempty"`
}

// RoundScore rounds a 0-10 score to one decimal and clamps it to the valid range.
func RoundScore(v float64) float64 {
	v = math.Round(v*10) / 10
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// FormatScore renders a score with exactly one decimal place.
func FormatScore(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// ChatMessage is one message of a text-generation request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
