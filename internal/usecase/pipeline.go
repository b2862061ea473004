package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/metrics"
	"ClaimScanner/internal/ports"
	"ClaimScanner/internal/report"
	"ClaimScanner/internal/routing"
	"ClaimScanner/internal/rules"
	"ClaimScanner/internal/scoring"
)

// ErrNoProvider is returned for full-analysis inputs when no text-generation service is configured.
var ErrNoProvider = errors.New("text-generation provider not configured")

// PipelineDeps wires all driven adapters into the scoring pipeline.
type PipelineDeps struct {
	Rules    *rules.RuleSet
	Provider ports.ReportProvider
	Fetcher  ports.PageFetcher
	Metrics  ports.Metrics
	Logger   *slog.Logger
}

// Pipeline turns one input into a scored result: route, then either build an
// instant result or request a report and run the scoring engine.
type Pipeline struct {
	rules    *rules.RuleSet
	router   *routing.Router
	engine   *scoring.Engine
	provider ports.ReportProvider
	fetcher  ports.PageFetcher
	metrics  ports.Metrics
	log      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	rs := deps.Rules
	if rs == nil {
		rs = rules.MustDefault()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		rules:    rs,
		router:   routing.NewRouter(rs),
		engine:   scoring.NewEngine(rs),
		provider: deps.Provider,
		fetcher:  deps.Fetcher,
		metrics:  m,
		log:      log,
	}
}

// Analyze scores one input. Validation failures of the external report after the
// strict retry surface as *report.ValidationError.
func (p *Pipeline) Analyze(ctx context.Context, in domain.Input) (domain.Result, error) {
	if err := in.Validate(); err != nil {
		return domain.Result{}, err
	}

	decision := p.router.Route(in)
	if res, ok := p.router.InstantResult(in, decision); ok {
		p.log.Debug("instant result", "tier", res.Tier, "tokens", decision.Tokens)
		return res, nil
	}

	var pageText string
	if in.Kind != domain.InputText && p.fetcher != nil {
		text, err := p.fetcher.FetchText(ctx, in.URL)
		if err != nil {
			p.log.Warn("page fetch failed, analyzing url only", "url", in.URL, "error", err)
		} else {
			pageText = text
		}
	}

	rep, err := p.requestReport(ctx, in, pageText)
	if err != nil {
		return domain.Result{}, err
	}

	assessment := p.engine.Assess(analysisText(in, pageText, rep), in.URL)
	score := assessment.Breakdown.FinalScore
	primitives := assessment.Primitives
	breakdown := assessment.Breakdown

	res := domain.Result{
		Tier:        domain.TierFullAnalysis,
		Score:       &score,
		Severity:    p.severity(score),
		Confidence:  assessment.Category.Confidence,
		Category:    assessment.Category,
		Candidates:  assessment.Candidates,
		Summary:     rep.Summary,
		Evidence:    rep.Evidence,
		RedFlags:    rep.RedFlags,
		KeyClaims:   rep.KeyClaims,
		Citations:   rep.Citations,
		Subscores:   rep.Subscores,
		Primitives:  &primitives,
		Breakdown:   &breakdown,
		PageFetched: pageText != "",
	}
	if decision.Hint != nil {
		res.Hint = decision.Hint.Hit()
	}
	return res, nil
}

// requestReport asks for a report and allows exactly one retry with the strict
// instruction when the first reply fails validation.
func (p *Pipeline) requestReport(ctx context.Context, in domain.Input, pageText string) (*domain.Report, error) {
	if p.provider == nil {
		return nil, ErrNoProvider
	}

	raw, err := p.complete(ctx, report.Messages(in, pageText, false, nil))
	if err != nil {
		return nil, err
	}
	parsed := report.Parse(raw)
	if parsed.Valid {
		return parsed.Report, nil
	}

	p.metrics.ReportRetried()
	p.log.Warn("report failed validation, retrying with strict instruction", "errors", len(parsed.Errors))

	raw, err = p.complete(ctx, report.Messages(in, pageText, true, parsed.Errors))
	if err != nil {
		return nil, err
	}
	parsed = report.Parse(raw)
	if parsed.Valid {
		return parsed.Report, nil
	}
	return nil, &report.ValidationError{Errors: parsed.Errors, Attempts: 2}
}

func (p *Pipeline) complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	start := time.Now()
	raw, err := p.provider.Complete(ctx, messages)
	p.metrics.ProviderCall(time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("request report: %w", err)
	}
	return raw, nil
}

func (p *Pipeline) severity(score float64) string {
	switch {
	case score >= p.rules.Routing.HighSeverityScore:
		return "high"
	case score >= 4:
		return "elevated"
	default:
		return "low"
	}
}

// analysisText joins everything known about the input for primitive and signal extraction.
func analysisText(in domain.Input, pageText string, rep *domain.Report) string {
	parts := []string{in.Normalized()}
	if in.Kind != domain.InputText {
		parts = append(parts, in.URL)
	}
	if pageText != "" {
		parts = append(parts, pageText)
	}
	parts = append(parts, rep.Summary)
	parts = append(parts, rep.Evidence...)
	parts = append(parts, rep.KeyClaims...)
	parts = append(parts, rep.RedFlags...)
	return strings.Join(parts, "\n")
}
