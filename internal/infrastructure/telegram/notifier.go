package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/ports"
)

const (
	defaultAPIBase  = "https://api.telegram.org"
	maxSubjectBytes = 120
)

// Notifier sends failed-job alerts to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// JobFailed posts a short plain-text alert describing a permanently failed job.
func (n *Notifier) JobFailed(ctx context.Context, job domain.Job) error {
	return n.send(ctx, FailureMessage(job))
}

// FailureMessage renders the alert text for a failed job.
func FailureMessage(job domain.Job) string {
	subject := job.Input.Text
	if job.Input.Kind != domain.InputText {
		subject = job.Input.URL
	}
	if len(subject) > maxSubjectBytes {
		cut := maxSubjectBytes
		for cut > 0 && !utf8.RuneStart(subject[cut]) {
			cut--
		}
		subject = subject[:cut] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Claim job %s failed after %d attempt(s)\n", job.ID, job.Attempts)
	fmt.Fprintf(&b, "Code: %s\n", job.ErrorCode)
	if job.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(&b, "Input (%s): %s", job.Input.Kind, subject)
	return b.String()
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
