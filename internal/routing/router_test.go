package routing

import (
	"math"
	"testing"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/matcher"
	"ClaimScanner/internal/rules"
)

func TestRouteTiers(t *testing.T) {
	t.Parallel()

	r := NewRouter(rules.MustDefault())
	cases := []struct {
		name string
		in   domain.Input
		want domain.Tier
	}{
		{"commodity", domain.Input{Kind: domain.InputText, Text: "Apple"}, domain.TierInstantZero},
		{"archetype", domain.Input{Kind: domain.InputText, Text: "This herbal tea cures cancer and is FDA approved"}, domain.TierInstantHigh},
		{"short after failed clarification", domain.Input{Kind: domain.InputText, Text: "zx9", DisambiguationFailed: true}, domain.TierUnscorable},
		{"short before clarification", domain.Input{Kind: domain.InputText, Text: "zx9"}, domain.TierFullAnalysis},
		{"ordinary text", domain.Input{Kind: domain.InputText, Text: "our serum visibly improves skin texture in two weeks"}, domain.TierFullAnalysis},
		{"url", domain.Input{Kind: domain.InputURL, URL: "https://shop.example/apple"}, domain.TierFullAnalysis},
		{"image", domain.Input{Kind: domain.InputImage, URL: "https://img.example/a.png", Caption: "cures cancer, FDA approved"}, domain.TierFullAnalysis},
	}
	for _, tc := range cases {
		if got := r.Route(tc.in).Tier; got != tc.want {
			t.Fatalf("%s: tier = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestInstantHighResult(t *testing.T) {
	t.Parallel()

	r := NewRouter(rules.MustDefault())
	in := domain.Input{Kind: domain.InputText, Text: "This herbal tea cures cancer and is FDA approved"}
	d := r.Route(in)

	res, ok := r.InstantResult(in, d)
	if !ok {
		t.Fatalf("expected an instant result")
	}
	if res.Archetype == nil || res.Archetype.ID != "disease_cure" {
		t.Fatalf("archetype = %+v, want disease_cure", res.Archetype)
	}
	if res.Score == nil || *res.Score < 8.5 || *res.Score > 9.8 {
		t.Fatalf("score = %v, want within [8.5, 9.8]", res.Score)
	}
	if res.Severity != "high" || len(res.RedFlags) == 0 || len(res.Evidence) == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	again, _ := r.InstantResult(in, r.Route(in))
	if *again.Score != *res.Score {
		t.Fatalf("archetype score is not deterministic: %.1f vs %.1f", *res.Score, *again.Score)
	}
}

func TestInstantZeroAndUnscorableResults(t *testing.T) {
	t.Parallel()

	r := NewRouter(rules.MustDefault())

	zero := domain.Input{Kind: domain.InputText, Text: "bananas"}
	res, ok := r.InstantResult(zero, r.Route(zero))
	if !ok || res.Score == nil || *res.Score != 0 || res.Confidence != 1 || len(res.RedFlags) != 0 {
		t.Fatalf("instant zero result = %+v", res)
	}

	short := domain.Input{Kind: domain.InputText, Text: "zx9", DisambiguationFailed: true}
	res, ok = r.InstantResult(short, r.Route(short))
	if !ok || res.Score != nil || res.Reason == "" {
		t.Fatalf("unscorable result = %+v", res)
	}

	full := domain.Input{Kind: domain.InputText, Text: "zx9"}
	if _, ok := r.InstantResult(full, r.Route(full)); ok {
		t.Fatalf("full analysis must not produce an instant result")
	}
}

func TestJitterIsStableAndBounded(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "a", "cures cancer", "lose 30 pounds in 30 days"} {
		first := Jitter(text, 0.15)
		if first != Jitter(text, 0.15) {
			t.Fatalf("Jitter(%q) changed between calls", text)
		}
		if math.Abs(first) > 0.15 {
			t.Fatalf("Jitter(%q) = %f, outside span", text, first)
		}
	}
	if Jitter("x", 0) != 0 {
		t.Fatalf("zero span must not move the score")
	}
}

func TestURLInputsCollectArchetypeHint(t *testing.T) {
	t.Parallel()

	r := NewRouter(rules.MustDefault())

	url := domain.Input{Kind: domain.InputURL, URL: "https://shop.example/this-tea-cures-cancer-fda-approved"}
	d := r.Route(url)
	if d.Tier != domain.TierFullAnalysis {
		t.Fatalf("url tier = %s, want %s", d.Tier, domain.TierFullAnalysis)
	}
	if d.Hint == nil || d.Hint.Archetype.ID != "disease_cure" {
		t.Fatalf("url hint = %+v, want disease_cure", d.Hint)
	}

	image := domain.Input{Kind: domain.InputImage, URL: "https://img.example/a.png", Caption: "Cures cancer, FDA approved"}
	if d := r.Route(image); d.Hint == nil || d.Hint.Archetype.ID != "disease_cure" {
		t.Fatalf("image hint = %+v, want disease_cure", d.Hint)
	}
}

func TestArchetypeScoreStaysInsideRangeAfterRounding(t *testing.T) {
	t.Parallel()

	r := NewRouter(rules.MustDefault())
	m := matcher.ArchetypeMatch{
		Archetype:  rules.Archetype{ID: "narrow", ScoreMin: 7.21, ScoreMax: 7.24},
		Confidence: 1,
	}
	for _, text := range []string{"a", "b", "cures cancer", "lose 30 pounds in 30 days", "miracle"} {
		score := r.ArchetypeScore(m, text)
		if score < 7.21 || score > 7.24 {
			t.Fatalf("ArchetypeScore(%q) = %.2f, outside [7.21, 7.24]", text, score)
		}
	}
}
