package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/report"
	"ClaimScanner/internal/rules"
)

func newTestPipeline(t *testing.T, provider *fakeProvider, fetcher *fakeFetcher) *Pipeline {
	t.Helper()
	rs, err := rules.Default()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	deps := PipelineDeps{Rules: rs}
	if provider != nil {
		deps.Provider = provider
	}
	if fetcher != nil {
		deps.Fetcher = fetcher
	}
	return NewPipeline(deps)
}

func TestAnalyzeCommodityIsInstantZero(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	res, err := newTestPipeline(t, provider, nil).Analyze(context.Background(), domain.Input{Kind: domain.InputText, Text: "Apple"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Tier != domain.TierInstantZero || res.Score == nil || domain.FormatScore(*res.Score) != "0.0" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Confidence != 1.0 || len(res.RedFlags) != 0 {
		t.Fatalf("confidence=%v red flags=%v", res.Confidence, res.RedFlags)
	}
	if len(provider.calls) != 0 {
		t.Fatalf("provider called for commodity input")
	}
}

func TestAnalyzeDiseaseCureIsInstantHigh(t *testing.T) {
	t.Parallel()

	res, err := newTestPipeline(t, &fakeProvider{}, nil).Analyze(context.Background(),
		domain.Input{Kind: domain.InputText, Text: "This herbal tea cures cancer and is FDA approved"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Tier != domain.TierInstantHigh || res.Archetype == nil || res.Archetype.ID != "disease_cure" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if *res.Score < 8.5 || *res.Score > 9.8 {
		t.Fatalf("score %.1f outside disease_cure range", *res.Score)
	}
	if len(res.RedFlags) == 0 || len(res.Evidence) == 0 {
		t.Fatalf("instant-high result lacks explanation: %+v", res)
	}
}

func TestAnalyzeUnscorableShortInput(t *testing.T) {
	t.Parallel()

	res, err := newTestPipeline(t, &fakeProvider{}, nil).Analyze(context.Background(),
		domain.Input{Kind: domain.InputText, Text: "zx9", DisambiguationFailed: true})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Tier != domain.TierUnscorable || res.Score != nil || res.Reason == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAnalyzeFullAnalysis(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{replies: []string{validReport}}
	res, err := newTestPipeline(t, provider, nil).Analyze(context.Background(),
		domain.Input{Kind: domain.InputText, Text: "New face serum with hyaluronic acid for glowing skin"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Tier != domain.TierFullAnalysis || res.Score == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if *res.Score < 0 || *res.Score > 10 || domain.RoundScore(*res.Score) != *res.Score {
		t.Fatalf("score %v not bounded to one decimal", *res.Score)
	}
	if res.Breakdown == nil || res.Primitives == nil || res.Breakdown.FinalScore != *res.Score {
		t.Fatalf("breakdown missing or inconsistent: %+v", res.Breakdown)
	}
	if res.Summary == "" || len(res.Evidence) != 5 || len(res.RedFlags) != 3 {
		t.Fatalf("report fields not carried over: %+v", res)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.calls))
	}
	msgs := provider.calls[0]
	if len(msgs) != 2 || msgs[0].Content != report.Instruction(false, nil) {
		t.Fatalf("unexpected request messages: %+v", msgs)
	}
	if !strings.Contains(msgs[1].Content, "new face serum") {
		t.Fatalf("user message lacks normalized input: %q", msgs[1].Content)
	}
}

func TestAnalyzeRetriesOnceWithStrictInstruction(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{replies: []string{reportWithoutRedFlags, validReport}}
	res, err := newTestPipeline(t, provider, nil).Analyze(context.Background(),
		domain.Input{Kind: domain.InputText, Text: "wrinkle cream with retinol for mature skin"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Tier != domain.TierFullAnalysis {
		t.Fatalf("tier = %s", res.Tier)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(provider.calls))
	}

	retry := provider.calls[1]
	if len(retry) != 2 {
		t.Fatalf("strict retry must replace the instruction, got %d messages", len(retry))
	}
	if retry[0].Content == provider.calls[0][0].Content {
		t.Fatalf("retry reused the standard instruction")
	}
	if !strings.Contains(retry[0].Content, "### RED FLAGS") || !strings.Contains(retry[0].Content, "missing section") {
		t.Fatalf("strict instruction does not list the previous errors: %q", retry[0].Content)
	}
}

func TestAnalyzeSecondInvalidReportIsPermanent(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{replies: []string{reportWithoutRedFlags}}
	_, err := newTestPipeline(t, provider, nil).Analyze(context.Background(),
		domain.Input{Kind: domain.InputText, Text: "wrinkle cream with retinol for mature skin"})

	var verr *report.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) == 0 || verr.Attempts != 2 {
		t.Fatalf("unexpected validation error: %+v", verr)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("provider calls = %d, want exactly 2", len(provider.calls))
	}
	if domain.ErrorCode(err) != domain.CodeReportInvalid || domain.Retryable(err) {
		t.Fatalf("validation failure must be permanent, code=%s", domain.ErrorCode(err))
	}
}

func TestAnalyzeProviderFailurePropagates(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: codedErr{code: domain.CodeProviderUnavailable}}
	_, err := newTestPipeline(t, provider, nil).Analyze(context.Background(),
		domain.Input{Kind: domain.InputText, Text: "wrinkle cream with retinol for mature skin"})
	if domain.ErrorCode(err) != domain.CodeProviderUnavailable || !domain.Retryable(err) {
		t.Fatalf("unexpected error %v (code %s)", err, domain.ErrorCode(err))
	}
	if len(provider.calls) != 1 {
		t.Fatalf("pipeline must not retry provider failures itself, calls = %d", len(provider.calls))
	}
}

func TestAnalyzeURLFallsBackWhenFetchFails(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{replies: []string{validReport}}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	res, err := newTestPipeline(t, provider, fetcher).Analyze(context.Background(),
		domain.Input{Kind: domain.InputURL, URL: "https://shop.example.com/supplements/miracle"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Tier != domain.TierFullAnalysis || res.PageFetched {
		t.Fatalf("unexpected result: %+v", res)
	}
	user := provider.calls[0][1].Content
	if !strings.Contains(user, "https://shop.example.com/supplements/miracle") || !strings.Contains(user, "unavailable") {
		t.Fatalf("user message = %q", user)
	}
	found := false
	for _, c := range res.Candidates {
		found = found || c.Category == "supplements"
	}
	if !found {
		t.Fatalf("url heuristics ignored, candidates = %+v", res.Candidates)
	}
}

func TestAnalyzeURLIncludesPageText(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{replies: []string{validReport}}
	fetcher := &fakeFetcher{text: "Buy our serum today [...truncated]"}
	res, err := newTestPipeline(t, provider, fetcher).Analyze(context.Background(),
		domain.Input{Kind: domain.InputURL, URL: "https://example.com/p/1"})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if !res.PageFetched {
		t.Fatalf("PageFetched = false")
	}
	if !strings.Contains(provider.calls[0][1].Content, "Buy our serum today [...truncated]") {
		t.Fatalf("page text missing from user message")
	}
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := newTestPipeline(t, nil, nil).Analyze(context.Background(), domain.Input{Kind: "video"})
	if !errors.Is(err, domain.ErrInvalidInput) || domain.Retryable(err) {
		t.Fatalf("expected permanent invalid input error, got %v", err)
	}
}
