// Package provider is the client for the external reasoning service: one
// synchronous completion call against an OpenAI-compatible chat endpoint.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"aide/internal/config"
	"aide/internal/errors"
	"aide/internal/logging"
)

// Completer is the single operation the pipeline needs from the reasoning
// service. Implementations must be safe for concurrent use.
type Completer interface {
	// Complete sends a system prompt and user content, returning the raw
	// response text. The response may wrap JSON in prose or code fences;
	// callers use ExtractJSON to recover structured payloads.
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// HTTPProvider talks to an OpenAI-compatible chat-completions endpoint.
type HTTPProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
	logger *logging.Logger
}

// NewHTTPProvider creates a provider from config. The request timeout bounds
// every call; there is no internal retry.
func NewHTTPProvider(cfg config.ProviderConfig, logger *logging.Logger) *HTTPProvider {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements Completer.
func (p *HTTPProvider) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	reqBody := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(errors.InternalError, "failed to marshal completion request", err)
	}

	url := p.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(errors.InternalError, "failed to build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv(p.cfg.APIKeyEnv); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ProviderUnavailable, "reasoning service unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.ProviderUnavailable, "failed to read completion response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ProviderUnavailable,
			"reasoning service returned status %d", resp.StatusCode).
			WithDetail("body", truncate(string(body), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(errors.MalformedResponse, "unparseable completion payload", err).
			WithDetail("body", truncate(string(body), 500))
	}
	if parsed.Error != nil {
		return "", errors.Newf(errors.ProviderUnavailable,
			"reasoning service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.MalformedResponse, "completion response has no choices")
	}

	p.logger.Debug("Completion round-trip", map[string]interface{}{
		"model":      p.cfg.Model,
		"durationMs": time.Since(start).Milliseconds(),
		"bytes":      len(body),
	})

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Truncate exposes payload truncation for diagnostic logging of malformed
// responses.
func Truncate(s string, n int) string {
	return truncate(s, n)
}

var _ Completer = (*HTTPProvider)(nil)
