// Package api exposes job submission and status polling over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/usecase"
)

const maxBodyBytes = 64 << 10

// TokenHeader carries the job token on status requests.
const TokenHeader = "X-Job-Token"

// Jobs is the job service used by the handlers.
type Jobs interface {
	Submit(ctx context.Context, in domain.Input, forceRefresh bool) (domain.Submission, error)
	Status(ctx context.Context, id, token string) (domain.JobStatusView, error)
}

// Handler routes API requests.
type Handler struct {
	jobs     Jobs
	analyzer usecase.Analyzer
	metrics  http.Handler
	log      *slog.Logger
	mux      *http.ServeMux
}

// NewHandler registers every route. analyzer and metrics may be nil to disable
// synchronous scoring and the metrics endpoint.
func NewHandler(jobs Jobs, analyzer usecase.Analyzer, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{jobs: jobs, analyzer: analyzer, metrics: metrics, log: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/jobs", h.submit)
	h.mux.HandleFunc("GET /v1/jobs/{id}", h.status)
	h.mux.HandleFunc("GET /healthz", healthz)
	if analyzer != nil {
		h.mux.HandleFunc("POST /v1/score", h.score)
	}
	if metrics != nil {
		h.mux.Handle("GET /metrics", metrics)
	}
	return h
}

// NewMetricsMux serves only the health and metrics endpoints.
func NewMetricsMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.Handle("GET /metrics", metrics)
	return mux
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type submitRequest struct {
	domain.Input
	ForceRefresh bool `json:"forceRefresh"`
}

type submitResponse struct {
	Job     jobView `json:"job"`
	Created bool    `json:"created"`
	Reset   bool    `json:"reset"`
}

// jobView is the wire shape of a job record.
type jobView struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	DedupKey     string          `json:"dedupKey"`
	Token        string          `json:"token"`
	Attempts     int             `json:"attempts"`
	FinalScore   *float64        `json:"finalScore"`
	Result       json.RawMessage `json:"resultPayload"`
	ErrorCode    *string         `json:"errorCode"`
	ErrorMessage *string         `json:"errorMessage"`
}

func toJobView(j domain.Job) jobView {
	v := jobView{
		ID:         j.ID,
		Status:     string(j.Status),
		DedupKey:   j.DedupKey,
		Token:      j.Token,
		Attempts:   j.Attempts,
		FinalScore: j.FinalScore,
		Result:     j.Result,
	}
	if len(v.Result) == 0 {
		v.Result = json.RawMessage("null")
	}
	if j.ErrorCode != "" {
		v.ErrorCode = &j.ErrorCode
	}
	if j.ErrorMessage != "" {
		v.ErrorMessage = &j.ErrorMessage
	}
	return v
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sub, err := h.jobs.Submit(r.Context(), req.Input, req.ForceRefresh)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if sub.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, submitResponse{Job: toJobView(sub.Job), Created: sub.Created, Reset: sub.Reset})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	view, err := h.jobs.Status(r.Context(), r.PathValue("id"), token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request) {
	var in domain.Input
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.analyzer.Analyze(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: domain.CodeInvalidInput, Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTokenMismatch):
		status = http.StatusForbidden
	case domain.ErrorCode(err) == domain.CodeReportInvalid, domain.ErrorCode(err) == domain.CodeProviderUnavailable:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}

	code := domain.ErrorCode(err)
	switch status {
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusForbidden:
		code = "forbidden"
	}
	writeJSON(w, status, errorBody{Code: code, Error: strings.TrimSpace(err.Error())})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
