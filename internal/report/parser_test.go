package report

import (
	"errors"
	"strings"
	"testing"

	"ClaimScanner/internal/domain"
)

const (
	summaryBlock = `### SUMMARY
A detox tea sold with weight-loss and cure claims.`
	evidenceBlock = `### EVIDENCE
- No study is cited for the weight-loss figure.
- Testimonials are the only support.
- The ingredient list omits quantities.
- The seller cannot be identified.
- Results are described as guaranteed.`
	subscoresBlock = `### SUBSCORES
evidence_strength: 8.5
verifiability: 8
transparency: 7
harm_potential: 6.5`
	keyClaimsBlock = `### KEY CLAIMS
- Melts belly fat overnight
- Cures bloating permanently
- Doctors recommend it`
	redFlagsBlock = `### RED FLAGS
- Guaranteed results
- Disease treatment claim
- Anonymous seller`
	citationsBlock = `### CITATIONS
none`
)

func buildReport(blocks ...string) string {
	return Marker + "\n" + strings.Join(blocks, "\n")
}

func validRaw() string {
	return buildReport(summaryBlock, evidenceBlock, subscoresBlock, keyClaimsBlock, redFlagsBlock, citationsBlock)
}

func hasError(errs []string, fragment string) bool {
	for _, e := range errs {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}

func TestParseValidReport(t *testing.T) {
	t.Parallel()

	res := Parse(validRaw())
	if !res.Valid || len(res.Errors) != 0 {
		t.Fatalf("expected valid report, got errors %v", res.Errors)
	}
	rep := res.Report
	if rep.Summary != "A detox tea sold with weight-loss and cure claims." {
		t.Fatalf("summary = %q", rep.Summary)
	}
	if len(rep.Evidence) != 5 || len(rep.KeyClaims) != 3 || len(rep.RedFlags) != 3 {
		t.Fatalf("bullet counts = %d/%d/%d", len(rep.Evidence), len(rep.KeyClaims), len(rep.RedFlags))
	}
	if rep.Subscores[domain.SubscoreEvidence] != 8.5 || rep.Subscores[domain.SubscoreHarm] != 6.5 {
		t.Fatalf("subscores = %v", rep.Subscores)
	}
	if rep.Citations == nil || len(rep.Citations) != 0 {
		t.Fatalf("citations = %#v, want empty list", rep.Citations)
	}
}

func TestParseStripsCodeFenceAndBulletVariants(t *testing.T) {
	t.Parallel()

	raw := "```text\n" + buildReport(summaryBlock, evidenceBlock,
		"### SUBSCORES\n- evidence_strength: 8\n- verifiability: 8\n- transparency: 7\n- harm_potential: 6",
		strings.ReplaceAll(keyClaimsBlock, "- ", "* "), redFlagsBlock,
		"### CITATIONS\n- https://www.ftc.gov/business-guidance\n- pubmed search, no results") + "\n```"

	res := Parse(raw)
	if !res.Valid {
		t.Fatalf("expected valid report, got %v", res.Errors)
	}
	if len(res.Report.Citations) != 2 || res.Report.KeyClaims[0] != "Melts belly fat overnight" {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
}

func TestParseRejectsMissingSection(t *testing.T) {
	t.Parallel()

	res := Parse(buildReport(summaryBlock, evidenceBlock, subscoresBlock, keyClaimsBlock, citationsBlock))
	if res.Valid || res.Report != nil {
		t.Fatalf("report without red flags accepted: %+v", res)
	}
	if !hasError(res.Errors, "missing section ### RED FLAGS") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestParseRejectsBadSubscores(t *testing.T) {
	t.Parallel()

	bad := strings.Replace(subscoresBlock, "verifiability: 8", "verifiability: 7.3", 1)
	bad = strings.Replace(bad, "transparency: 7", "transparency: 11", 1)
	bad = strings.Replace(bad, "\nharm_potential: 6.5", "", 1)

	res := Parse(buildReport(summaryBlock, evidenceBlock, bad, keyClaimsBlock, redFlagsBlock, citationsBlock))
	if res.Valid {
		t.Fatalf("invalid subscores accepted")
	}
	for _, want := range []string{"not a multiple of 0.5", "outside [0,10]", "missing subscore harm_potential"} {
		if !hasError(res.Errors, want) {
			t.Fatalf("errors %v lack %q", res.Errors, want)
		}
	}
	if hasError(res.Errors, "missing subscore verifiability") {
		t.Fatalf("bad value also reported as missing: %v", res.Errors)
	}
}

func TestParseEnforcesBulletCounts(t *testing.T) {
	t.Parallel()

	shortEvidence := strings.Replace(evidenceBlock, "\n- Results are described as guaranteed.", "", 1)
	longFlags := redFlagsBlock + strings.Repeat("\n- another flag", 6)

	res := Parse(buildReport(summaryBlock, shortEvidence, subscoresBlock, keyClaimsBlock, longFlags, citationsBlock))
	if res.Valid {
		t.Fatalf("bad bullet counts accepted")
	}
	if !hasError(res.Errors, "### EVIDENCE has 4 bullets") || !hasError(res.Errors, "### RED FLAGS has 9 bullets") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestParseStructuralErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		raw  string
		want string
	}{
		"empty":          {raw: "  \n\n", want: "response is empty"},
		"no marker":      {raw: strings.TrimPrefix(validRaw(), Marker+"\n"), want: "expected marker"},
		"out of order":   {raw: buildReport(summaryBlock, evidenceBlock, subscoresBlock, redFlagsBlock, keyClaimsBlock, citationsBlock), want: "out of order"},
		"duplicate":      {raw: validRaw() + "\n" + citationsBlock, want: "appears 2 times"},
		"unknown header": {raw: validRaw() + "\n### NOTES\n- extra", want: "unknown section header"},
		"preamble":       {raw: Marker + "\nSure, here is the report.\n" + strings.TrimPrefix(validRaw(), Marker+"\n"), want: "content outside of any section"},
		"plain evidence": {raw: strings.Replace(validRaw(), "- Testimonials", "Testimonials", 1), want: "must be bullets"},
	}
	for name, tc := range cases {
		res := Parse(tc.raw)
		if res.Valid || res.Report != nil {
			t.Fatalf("%s: accepted", name)
		}
		if !hasError(res.Errors, tc.want) {
			t.Fatalf("%s: errors %v lack %q", name, res.Errors, tc.want)
		}
	}
}

func TestValidationErrorCode(t *testing.T) {
	t.Parallel()

	var err error = &ValidationError{Errors: []string{"missing section ### SUMMARY"}, Attempts: 2}
	if domain.ErrorCode(err) != domain.CodeReportInvalid || domain.Retryable(err) {
		t.Fatalf("validation error must be permanent report_invalid")
	}
	var target *ValidationError
	if !errors.As(err, &target) || target.Attempts != 2 {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestInstructionVariants(t *testing.T) {
	t.Parallel()

	standard := Instruction(false, nil)
	strict := Instruction(true, []string{"missing section ### RED FLAGS"})
	if standard == strict {
		t.Fatalf("strict instruction must replace the standard one")
	}
	if !strings.Contains(strict, "- missing section ### RED FLAGS") || !strings.Contains(strict, Marker) {
		t.Fatalf("strict instruction = %q", strict)
	}

	msgs := Messages(domain.Input{Kind: domain.InputURL, URL: " https://shop.example/tea "}, "", false, nil)
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("messages = %+v", msgs)
	}
	if !strings.Contains(msgs[1].Content, "URL: https://shop.example/tea") || !strings.Contains(msgs[1].Content, "Page text unavailable") {
		t.Fatalf("user message = %q", msgs[1].Content)
	}
}
