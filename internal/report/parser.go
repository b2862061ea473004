package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ClaimScanner/internal/domain"
)

// ParseResult is either a fully valid report or a non-empty list of problems.
type ParseResult struct {
	Valid  bool
	Report *domain.Report
	Errors []string
}

// ValidationError is returned when a report stays invalid after the strict retry.
type ValidationError struct {
	Errors   []string
	Attempts int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("report failed validation after %d attempt(s): %s", e.Attempts, strings.Join(e.Errors, "; "))
}

// Code implements domain.CodedError.
func (e *ValidationError) Code() string {
	return domain.CodeReportInvalid
}

type section struct {
	header string
	lines  []numberedLine
	count  int
}

type numberedLine struct {
	n    int
	text string
}

// Parse validates raw service output against the protocol. It never returns a
// partially populated report: any problem yields Valid=false and Report=nil.
func Parse(raw string) ParseResult {
	var errs []string
	lines := strings.Split(strings.ReplaceAll(stripCodeFence(raw), "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return invalid([]string{"response is empty"})
	}
	if strings.TrimSpace(lines[i]) != Marker {
		errs = append(errs, fmt.Sprintf("line %d: expected marker %q, got %q", i+1, Marker, truncate(strings.TrimSpace(lines[i]), 60)))
	}

	sections := make(map[string]*section, len(Headers))
	for _, h := range Headers {
		sections[h] = &section{header: h}
	}

	var current *section
	var seen []string
	for n := i + 1; n < len(lines); n++ {
		line := strings.TrimSpace(lines[n])
		if s, ok := sections[line]; ok {
			s.count++
			if s.count == 1 {
				seen = append(seen, line)
			}
			current = s
			continue
		}
		if strings.HasPrefix(line, "###") {
			errs = append(errs, fmt.Sprintf("line %d: unknown section header %q", n+1, truncate(line, 60)))
			current = nil
			continue
		}
		if line == "" {
			continue
		}
		if current == nil {
			errs = append(errs, fmt.Sprintf("line %d: content outside of any section", n+1))
			continue
		}
		current.lines = append(current.lines, numberedLine{n: n + 1, text: line})
	}

	for _, h := range Headers {
		switch s := sections[h]; {
		case s.count == 0:
			errs = append(errs, fmt.Sprintf("missing section %s", h))
		case s.count > 1:
			errs = append(errs, fmt.Sprintf("section %s appears %d times", h, s.count))
		}
	}
	if orderErr := checkOrder(seen); orderErr != "" {
		errs = append(errs, orderErr)
	}

	rep := &domain.Report{}

	if s := sections[HeaderSummary]; s.count == 1 {
		texts := make([]string, 0, len(s.lines))
		for _, l := range s.lines {
			texts = append(texts, l.text)
		}
		rep.Summary = strings.Join(texts, " ")
		if rep.Summary == "" {
			errs = append(errs, "section ### SUMMARY is empty")
		}
	}

	rep.Evidence = parseBullets(sections[HeaderEvidence], MinEvidence, MaxEvidence, &errs)
	rep.KeyClaims = parseBullets(sections[HeaderKeyClaims], MinKeyClaims, MaxKeyClaims, &errs)
	rep.RedFlags = parseBullets(sections[HeaderRedFlags], MinRedFlags, MaxRedFlags, &errs)
	rep.Subscores = parseSubscores(sections[HeaderSubscores], &errs)
	rep.Citations = parseCitations(sections[HeaderCitations], &errs)

	if len(errs) > 0 {
		return invalid(errs)
	}
	return ParseResult{Valid: true, Report: rep}
}

func invalid(errs []string) ParseResult {
	return ParseResult{Valid: false, Errors: errs}
}

// checkOrder reports the first header that appears before one that should precede it.
func checkOrder(seen []string) string {
	rank := make(map[string]int, len(Headers))
	for i, h := range Headers {
		rank[h] = i
	}
	for i := 1; i < len(seen); i++ {
		if rank[seen[i]] < rank[seen[i-1]] {
			return fmt.Sprintf("section %s is out of order (appears after %s)", seen[i], seen[i-1])
		}
	}
	return ""
}

func parseBullets(s *section, minItems, maxItems int, errs *[]string) []string {
	if s.count != 1 {
		return nil
	}

	items := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		item, ok := bulletText(l.text)
		if !ok {
			*errs = append(*errs, fmt.Sprintf("line %d: %s entries must be bullets starting with \"- \"", l.n, s.header))
			continue
		}
		if item == "" {
			*errs = append(*errs, fmt.Sprintf("line %d: empty bullet in %s", l.n, s.header))
			continue
		}
		items = append(items, item)
	}

	if len(items) < minItems || len(items) > maxItems {
		*errs = append(*errs, fmt.Sprintf("%s has %d bullets, want between %d and %d", s.header, len(items), minItems, maxItems))
	}
	return items
}

func parseSubscores(s *section, errs *[]string) map[string]float64 {
	if s.count != 1 {
		return nil
	}

	known := make(map[string]bool, len(domain.SubscoreNames))
	for _, name := range domain.SubscoreNames {
		known[name] = true
	}

	scores := make(map[string]float64, len(domain.SubscoreNames))
	for _, l := range s.lines {
		text := l.text
		if item, ok := bulletText(text); ok {
			text = item
		}
		name, value, found := strings.Cut(text, ":")
		if !found {
			*errs = append(*errs, fmt.Sprintf("line %d: subscore must look like \"name: value\"", l.n))
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if !known[name] {
			*errs = append(*errs, fmt.Sprintf("line %d: unknown subscore %q", l.n, truncate(name, 40)))
			continue
		}
		if _, dup := scores[name]; dup {
			*errs = append(*errs, fmt.Sprintf("line %d: subscore %s given twice", l.n, name))
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			*errs = append(*errs, fmt.Sprintf("line %d: subscore %s is not a number", l.n, name))
			continue
		}
		if v < 0 || v > 10 {
			*errs = append(*errs, fmt.Sprintf("line %d: subscore %s=%g is outside [0,10]", l.n, name, v))
			continue
		}
		if v*2 != math.Trunc(v*2) {
			*errs = append(*errs, fmt.Sprintf("line %d: subscore %s=%g is not a multiple of 0.5", l.n, name, v))
			continue
		}
		scores[name] = v
	}

	for _, name := range domain.SubscoreNames {
		if _, ok := scores[name]; !ok && !mentioned(s, name) {
			*errs = append(*errs, fmt.Sprintf("missing subscore %s", name))
		}
	}
	return scores
}

// mentioned reports whether a subscore line exists even if it failed validation,
// so a bad value is not also reported as missing.
func mentioned(s *section, name string) bool {
	for _, l := range s.lines {
		text := l.text
		if item, ok := bulletText(text); ok {
			text = item
		}
		if key, _, found := strings.Cut(text, ":"); found && strings.ToLower(strings.TrimSpace(key)) == name {
			return true
		}
	}
	return false
}

func parseCitations(s *section, errs *[]string) []string {
	if s.count != 1 {
		return nil
	}

	citations := []string{}
	for _, l := range s.lines {
		if strings.EqualFold(l.text, "none") && len(s.lines) == 1 {
			return citations
		}
		item, ok := bulletText(l.text)
		if !ok || item == "" {
			*errs = append(*errs, fmt.Sprintf("line %d: %s entries must be bullets starting with \"- \"", l.n, s.header))
			continue
		}
		citations = append(citations, item)
	}
	return citations
}

func bulletText(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	if line == "-" || line == "*" {
		return "", true
	}
	return "", false
}

// stripCodeFence removes a markdown code fence wrapped around the whole response.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return raw
	}
	body := strings.TrimSuffix(trimmed, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		return body[nl+1:]
	}
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
