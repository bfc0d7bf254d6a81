// Package translate sends text fragments to an Ollama-compatible
// /api/generate endpoint, one request per fragment.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MeKo-Tech/pdftrans/internal/config"
	"github.com/MeKo-Tech/pdftrans/internal/metrics"
)

// ErrEmptyResponse is reported when the endpoint answers without text.
var ErrEmptyResponse = errors.New("empty translation response")

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 512

// Status describes how a translation ended.
type Status int

const (
	// StatusFallback means the request failed and the original text is returned.
	StatusFallback Status = iota
	// StatusSkipped means the fragment was not worth translating.
	StatusSkipped
	// StatusTranslated means the endpoint returned a translation.
	StatusTranslated
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusTranslated:
		return "translated"
	default:
		return "fallback"
	}
}

// Result carries the text to use and how it was obtained.
type Result struct {
	Text   string
	Status Status
	Err    error
}

// Translator is implemented by Client.
type Translator interface {
	Translate(ctx context.Context, text string) Result
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
}

type generateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error,omitempty"`
}

// Client talks to the inference endpoint.
type Client struct {
	cfg    config.TranslatorConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a Client with an HTTP timeout from cfg.
func NewClient(cfg config.TranslatorConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = 2
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Translate returns a translation of text. It never fails: on any error the
// trimmed original comes back with StatusFallback.
func (c *Client) Translate(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if c.Skip(text) {
		metrics.TranslationDone(StatusSkipped.String(), 0)
		return Result{Text: text, Status: StatusSkipped}
	}

	start := time.Now()
	translated, err := c.generate(ctx, text)
	elapsed := time.Since(start)

	if err != nil {
		metrics.TranslationDone(StatusFallback.String(), elapsed)
		c.logger.Debug("translation failed, keeping original", "error", err, "chars", utf8.RuneCountInString(text))
		return Result{Text: text, Status: StatusFallback, Err: err}
	}

	metrics.TranslationDone(StatusTranslated.String(), elapsed)
	return Result{Text: translated, Status: StatusTranslated}
}

// Skip reports whether text is too short or purely numeric to translate.
func (c *Client) Skip(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < c.cfg.MinChars {
		return true
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Prompt builds the instruction sent for text.
func (c *Client) Prompt(text string) string {
	return fmt.Sprintf("Translate this %s text to %s. Output ONLY the translation.\nText: %s\nTranslation:",
		c.cfg.SourceLanguage, c.cfg.TargetLanguage, text)
}

func (c *Client) generate(ctx context.Context, text string) (string, error) {
	payload := generateRequest{
		Model:  c.cfg.Model,
		Prompt: c.Prompt(text),
		Stream: false,
		Options: generateOptions{
			Temperature: c.cfg.Temperature,
			NumCtx:      c.cfg.NumCtx,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("endpoint error: %s", out.Error)
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrEmptyResponse)
	}

	cleaned := Clean(*out.Response)
	if cleaned == "" {
		return "", ErrEmptyResponse
	}
	return cleaned, nil
}

// preambleMarkers flag a chatty reply whose last line holds the translation.
var preambleMarkers = []string{"Here is", "Translation:"}

// Clean trims the model output and, when it opens with conversational
// preamble, keeps only its last non-empty line.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for _, marker := range preambleMarkers {
		if strings.Contains(s, marker) {
			return lastLine(s)
		}
	}
	return s
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
