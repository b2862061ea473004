package matcher

import (
	"strings"
	"unicode"

	"ClaimScanner/internal/rules"
)

// CommodityMatcher recognises basic goods that carry no marketing claims.
type CommodityMatcher struct {
	rules *rules.RuleSet
}

// NewCommodityMatcher binds the matcher to a compiled rule set.
func NewCommodityMatcher(rs *rules.RuleSet) *CommodityMatcher {
	return &CommodityMatcher{rules: rs}
}

// Match reports whether phrase is a plain commodity. Every guard must pass and the
// phrase must be a lexicon term, optionally surrounded by allowed modifiers only.
func (m *CommodityMatcher) Match(phrase string) bool {
	phrase = strings.TrimSpace(strings.ToLower(phrase))
	if phrase == "" {
		return false
	}

	if looksLikeURL(phrase) {
		return false
	}
	for _, r := range phrase {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '\'' {
			return false
		}
	}

	tokens := strings.Fields(phrase)
	if len(tokens) > m.rules.Commodity.MaxTokens {
		return false
	}
	for _, tok := range tokens {
		if m.rules.Disqualifies(tok) {
			return false
		}
	}

	if m.rules.InLexicon(strings.Join(tokens, " ")) {
		return true
	}

	core := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if m.rules.IsModifier(tok) {
			continue
		}
		core = append(core, tok)
	}
	if len(core) == 0 || len(core) == len(tokens) {
		return false
	}
	return m.rules.InLexicon(strings.Join(core, " "))
}

func looksLikeURL(s string) bool {
	for _, marker := range []string{"://", "www.", ".com", ".net", ".org", ".io", "http"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
