package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"ClaimScanner/internal/config"
	"ClaimScanner/internal/ports"
)

// TruncationMarker is appended when page text exceeds the byte budget.
const TruncationMarker = "[...truncated]"

const maxDocumentBytes = 5 << 20

// PageFetcher downloads an HTML page and flattens it to plain text.
type PageFetcher struct {
	client    *http.Client
	maxBytes  int
	userAgent string
}

var _ ports.PageFetcher = (*PageFetcher)(nil)

// NewPageFetcher wires an HTTP client; a nil client gets the configured timeout.
func NewPageFetcher(client *http.Client, cfg config.FetchConfig) *PageFetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 12000
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "ClaimScanner/1.0"
	}
	return &PageFetcher{client: client, maxBytes: maxBytes, userAgent: ua}
}

// FetchText returns the visible text of the page: title, meta description and body
// with scripts and styles removed, whitespace collapsed and truncated to the budget.
func (f *PageFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("unsupported url %q", rawURL)
	}

	doc, err := f.fetchDocument(ctx, u.String())
	if err != nil {
		return "", err
	}
	return Truncate(ExtractText(doc), f.maxBytes), nil
}

func (f *PageFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// ExtractText flattens a parsed document to single-spaced text.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	parts := make([]string, 0, 3)
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if desc = collapse(desc); desc != "" {
			parts = append(parts, desc)
		}
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	// Block elements get a trailing space so adjacent words do not merge.
	body.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, td, th, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	if text := collapse(body.Text()); text != "" {
		parts = append(parts, text)
	}

	return strings.Join(parts, "\n")
}

// Truncate cuts s to at most maxBytes on a rune boundary and appends the marker.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimRight(s[:cut], " \n") + " " + TruncationMarker
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
