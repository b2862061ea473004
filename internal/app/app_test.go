package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"ClaimScanner/internal/config"
	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "claims.db")}
	cfg.Worker = config.WorkerConfig{Count: 1, MaxAttempts: 3}
	return cfg
}

func TestApplicationProcessesSubmittedJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	application, err := New(testConfig(t), logging.NewWithWriter(io.Discard, "error", "text"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer application.Close()

	if _, err := application.NewWorker("early"); !errors.Is(err, ErrStoreNotOpen) {
		t.Fatalf("expected ErrStoreNotOpen, got %v", err)
	}
	if err := application.OpenStore(ctx, true); err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}

	sub, err := application.Jobs().Submit(ctx, domain.Input{Kind: domain.InputText, Text: "Organic Apple"}, false)
	if err != nil || !sub.Created {
		t.Fatalf("submit: %+v, %v", sub, err)
	}

	worker, err := application.NewWorker("w1")
	if err != nil {
		t.Fatalf("NewWorker() error: %v", err)
	}
	if processed, err := worker.ProcessNext(ctx); err != nil || !processed {
		t.Fatalf("ProcessNext() = %v, %v", processed, err)
	}

	view, err := application.Jobs().Status(ctx, sub.Job.ID, sub.Job.Token)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if view.Status != domain.JobDone || view.FinalScore == nil || *view.FinalScore != 0 {
		t.Fatalf("status = %+v", view)
	}
	if view.Result == nil || view.Result.Tier != domain.TierInstantZero {
		t.Fatalf("result = %+v", view.Result)
	}
}

func TestApplicationHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), logging.NewWithWriter(io.Discard, "error", "text"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer application.Close()

	if _, err := application.Handler(); !errors.Is(err, ErrStoreNotOpen) {
		t.Fatalf("expected ErrStoreNotOpen, got %v", err)
	}
	if err := application.OpenStore(context.Background(), true); err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	handler, err := application.Handler()
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(`{"kind":"text","text":"bananas"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}

func TestNewRejectsMissingRulePack(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Rules.Path = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg, logging.NewWithWriter(io.Discard, "error", "text")); err == nil {
		t.Fatalf("expected error for a missing rule pack")
	}
}
