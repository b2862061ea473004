package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ClaimScanner/internal/config"
	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/ports"
)

// ProviderError is a failed call to the text-generation API.
type ProviderError struct {
	Status    int
	Transient bool
	Attempts  int
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chatgpt provider (status %d, %d attempt(s)): %v", e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("chatgpt provider (%d attempt(s)): %v", e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Code implements domain.CodedError.
func (e *ProviderError) Code() string {
	return domain.CodeProviderUnavailable
}

// ChatGPTClient implements ports.ReportProvider backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ ports.ReportProvider = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &ChatGPTClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxRetries: retries,
		backoff:    backoff,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the messages and returns the first choice's content. Network errors,
// timeouts, 429 and 5xx responses are retried with exponential backoff; other
// failures return immediately.
func (c *ChatGPTClient) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", &ProviderError{Err: errors.New("chatgpt client misconfigured")}
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	var last *ProviderError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", &ProviderError{Transient: true, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", &ProviderError{Transient: true, Attempts: attempt, Err: fmt.Errorf("rate limiter: %w", err)}
		}

		content, perr := c.do(ctx, body)
		if perr == nil {
			return content, nil
		}
		perr.Attempts = attempt + 1
		last = perr
		if !perr.Transient || ctx.Err() != nil {
			return "", perr
		}
	}
	return "", last
}

func (c *ChatGPTClient) do(ctx context.Context, body []byte) (string, *ProviderError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Transient: true, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Transient: true, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return "", &ProviderError{
			Status:    resp.StatusCode,
			Transient: transient,
			Err:       fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(truncateBytes(payload, 512)))),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Choices) == 0 {
		return "", &ProviderError{Status: resp.StatusCode, Err: errors.New("response has no choices")}
	}
	return decoded.Choices[0].Message.Content, nil
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
