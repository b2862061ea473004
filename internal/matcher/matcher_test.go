package matcher

import (
	"testing"

	"ClaimScanner/internal/rules"
)

const testPack = `
commodity:
  lexicon: [apple, olive oil]
  disqualifying: [extract]
  modifiers: [organic, fresh]
archetypes:
  - id: low_priority
    priority: 3
    scoreMin: 6
    scoreMax: 8
    threshold: 5
    signals: [four, five, six, seven, never-seen]
  - id: partial_only
    priority: 2
    scoreMin: 5
    scoreMax: 7
    threshold: 0.5
    signals: [clinically proven formula]
  - id: high_priority
    priority: 1
    scoreMin: 8
    scoreMax: 9
    threshold: 4
    signals: [one, two, three, absent]
categories:
  - id: general
scoring:
  fallbackCategory: general
  weights:
    claim_density: 1.0
`

func mustParse(t *testing.T, raw string) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse rule pack: %v", err)
	}
	return rs
}

func TestCommodityMatcher(t *testing.T) {
	t.Parallel()

	m := NewCommodityMatcher(rules.MustDefault())
	cases := []struct {
		phrase string
		want   bool
	}{
		{"apple", true},
		{"  Fresh Apples ", true},
		{"organic apple", true},
		{"olive oil", true},
		{"organic apple extract", false},
		{"apple supplement", false},
		{"apple 2kg", false},
		{"www.apple.com", false},
		{"organic", false},
		{"green tea", false},
		{"fresh organic ripe raw whole apple", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.phrase); got != tc.want {
			t.Fatalf("Match(%q) = %v, want %v", tc.phrase, got, tc.want)
		}
	}
}

func TestArchetypePriorityBeatsConfidence(t *testing.T) {
	t.Parallel()

	m := NewArchetypeMatcher(mustParse(t, testPack))
	text := "one two three four five six seven"

	match, ok := m.Match(text)
	if !ok {
		t.Fatalf("expected an eligible archetype")
	}
	if match.Archetype.ID != "high_priority" || match.Confidence != 0.75 {
		t.Fatalf("Match() = %s at %.2f, want high_priority at 0.75", match.Archetype.ID, match.Confidence)
	}

	hint, ok := m.Hint(text)
	if !ok || hint.Archetype.ID != "low_priority" || hint.Confidence != 0.8 {
		t.Fatalf("Hint() = %+v, want low_priority at 0.80", hint)
	}
}

func TestArchetypePartialMatchIsNotExact(t *testing.T) {
	t.Parallel()

	m := NewArchetypeMatcher(mustParse(t, testPack))

	var partial ArchetypeMatch
	for _, match := range m.Evaluate("this formula was proven clinically") {
		if match.Archetype.ID == "partial_only" {
			partial = match
		}
	}
	if partial.Exact != 0 || len(partial.Partial) != 1 || len(partial.Matched) != 0 {
		t.Fatalf("partial match counted as exact: %+v", partial)
	}
	if partial.Confidence != 1 {
		t.Fatalf("confidence = %.2f, want 1", partial.Confidence)
	}
	if partial.Eligible {
		t.Fatalf("archetype without an exact signal must not be eligible")
	}
	if _, ok := m.Match("this formula was proven clinically"); ok {
		t.Fatalf("Match() returned an archetype for partial-only text")
	}
}

func TestArchetypeBelowConfidenceFloor(t *testing.T) {
	t.Parallel()

	m := NewArchetypeMatcher(mustParse(t, testPack))
	if match, ok := m.Match("one two"); ok {
		t.Fatalf("0.50 confidence matched %s", match.Archetype.ID)
	}
}

func TestTextPhraseLookups(t *testing.T) {
	t.Parallel()

	txt := NewText("Buy now, buy NOW! Doctors don't want you to know.")
	if got := txt.Count("buy now"); got != 2 {
		t.Fatalf("Count(buy now) = %d, want 2", got)
	}
	if !txt.Contains("now buy") {
		t.Fatalf("Contains should match across punctuation")
	}
	if txt.Contains("ow bu") {
		t.Fatalf("Contains matched inside words")
	}
	if !txt.Contains("doctors don't want") {
		t.Fatalf("apostrophes must stay inside tokens")
	}
	if txt.HasAllSignificant("the buy") {
		t.Fatalf("single significant word must not partially match")
	}
	if !txt.HasAllSignificant("know doctors") {
		t.Fatalf("HasAllSignificant should ignore word order")
	}
}

func TestTypographicApostropheMatchesPlainPhrase(t *testing.T) {
	t.Parallel()

	txt := NewText("Doctors don’t want you to know about this")
	if !txt.Contains("doctors don't want you to know") {
		t.Fatalf("curly apostrophe did not match the plain phrase")
	}
	if !NewText("doctors don't want you to know").Contains("doctors don’t want") {
		t.Fatalf("curly apostrophe in the phrase did not match plain text")
	}
}
