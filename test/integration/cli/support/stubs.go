package support

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/pdftrans/internal/testutil"
)

// TranslatorStub is an in-process stand-in for Ollama's /api/generate.
type TranslatorStub struct {
	server *httptest.Server

	mu      sync.Mutex
	answer  string
	down    bool
	prompts []string
}

// NewTranslatorStub starts a stub answering every prompt with answer.
func NewTranslatorStub(answer string) *TranslatorStub {
	s := &TranslatorStub{answer: answer}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *TranslatorStub) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	answer, down := s.answer, s.down
	s.mu.Unlock()

	if down {
		http.Error(w, `{"error":"model is loading"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":    req.Model,
		"response": answer,
		"done":     true,
	})
}

// URL returns the generate endpoint.
func (s *TranslatorStub) URL() string {
	return s.server.URL + "/api/generate"
}

// SetDown makes every request fail with 503.
func (s *TranslatorStub) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Prompts returns the prompts received so far.
func (s *TranslatorStub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Close stops the stub.
func (s *TranslatorStub) Close() {
	s.server.Close()
}

// writeOCRTool writes a shell script standing in for ocrmypdf.
func writeOCRTool(dir, body string) (string, error) {
	path := filepath.Join(dir, "fake-ocrmypdf")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil { //nolint:gosec
		return "", fmt.Errorf("failed to write fake OCR tool: %w", err)
	}
	return path, nil
}

// writePDF places a one-page PDF with a single line of text at path.
func writePDF(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data := testutil.BuildPDF([]testutil.TextRun{{X: 72, Y: 700, Size: 12, Text: text}})
	return os.WriteFile(path, data, 0o600)
}
