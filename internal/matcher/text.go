package matcher

import (
	"strings"
	"unicode"
)

// stopwords are ignored when deciding whether a multi-word phrase partially matches.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "you": {}, "your": {}, "with": {}, "are": {},
	"was": {}, "its": {}, "our": {}, "all": {}, "any": {}, "from": {}, "that": {},
	"this": {}, "into": {}, "than": {}, "by": {}, "of": {}, "to": {}, "in": {},
	"on": {}, "a": {}, "an": {}, "or": {}, "is": {}, "it": {}, "be": {},
}

// Text is a tokenized view of analysis text used for whole-word phrase lookups.
type Text struct {
	padded string
	tokens map[string]struct{}
	count  int
}

// NewText lowercases s and splits it on anything that is not a letter, digit or apostrophe.
func NewText(s string) Text {
	toks := Tokenize(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return Text{
		padded: " " + strings.Join(toks, " ") + " ",
		tokens: set,
		count:  len(toks),
	}
}

// Tokenize splits s into lowercase word tokens. Typographic apostrophes fold to '.
func Tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "’", "'")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// Len returns the number of tokens.
func (t Text) Len() int {
	return t.count
}

// Contains reports whether phrase occurs as a contiguous run of whole tokens.
func (t Text) Contains(phrase string) bool {
	p := phraseKey(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(t.padded, p)
}

// Count returns the number of non-overlapping occurrences of phrase.
func (t Text) Count(phrase string) int {
	p := phraseKey(phrase)
	if p == "" {
		return 0
	}
	n, pos := 0, 0
	for {
		i := strings.Index(t.padded[pos:], p)
		if i < 0 {
			return n
		}
		n++
		// the trailing space is the leading boundary of the next occurrence
		pos += i + len(p) - 1
	}
}

// HasToken reports whether a single token is present.
func (t Text) HasToken(tok string) bool {
	_, ok := t.tokens[tok]
	return ok
}

// HasAllSignificant reports whether every significant word of a multi-word phrase is
// present somewhere in the text. Single-word phrases never partially match.
func (t Text) HasAllSignificant(phrase string) bool {
	words := SignificantWords(phrase)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if !t.HasToken(w) {
			return false
		}
	}
	return true
}

// SignificantWords returns the tokens of phrase that are not stopwords.
func SignificantWords(phrase string) []string {
	var out []string
	for _, tok := range Tokenize(phrase) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func phraseKey(phrase string) string {
	toks := Tokenize(phrase)
	if len(toks) == 0 {
		return ""
	}
	return " " + strings.Join(toks, " ") + " "
}
