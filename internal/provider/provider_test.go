package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aide/internal/config"
	"aide/internal/errors"
	"aide/internal/logging"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"type": "question"}`,
			want:  `{"type": "question"}`,
		},
		{
			name:  "fenced with language tag",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "fenced without language tag",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounded by prose",
			input: "Here is the plan:\n{\"title\": \"x\"}\nLet me know.",
			want:  `{"title": "x"}`,
		},
		{
			name:  "nested objects",
			input: `{"outer": {"inner": {"deep": true}}}`,
			want:  `{"outer": {"inner": {"deep": true}}}`,
		},
		{
			name:  "braces inside string literals",
			input: `{"code": "if (x) { return; }"}`,
			want:  `{"code": "if (x) { return; }"}`,
		},
		{
			name:  "escaped quotes inside strings",
			input: `{"text": "she said \"hi {there}\""}`,
			want:  `{"text": "she said \"hi {there}\""}`,
		},
		{
			name:  "trailing garbage ignored",
			input: `{"a": 1}}}`,
			want:  `{"a": 1}`,
		},
		{
			name:    "no object at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			input:   `{"a": {"b": 1}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				if !errors.HasCode(err, errors.MalformedResponse) {
					t.Errorf("err = %v, want MALFORMED_RESPONSE", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("extracted payload is not valid JSON: %q", got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("got %q", got)
	}
}

func testProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.ProviderConfig{
		BaseURL:   srv.URL + "/v1",
		Model:     "test-model",
		TimeoutMs: 5000,
		MaxTokens: 256,
	}
	return NewHTTPProvider(cfg, logging.Silent())
}

func TestCompleteRoundTrip(t *testing.T) {
	var gotReq chatRequest
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "the answer"}},
			},
		})
	})

	got, err := p.Complete(context.Background(), "system prompt", "user content")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestCompleteNonOKStatus(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := p.Complete(context.Background(), "s", "u")
	if !errors.HasCode(err, errors.ProviderUnavailable) {
		t.Errorf("err = %v, want PROVIDER_UNAVAILABLE", err)
	}
}

func TestCompleteAPIError(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "model not found", "type": "invalid_request"},
		})
	})

	_, err := p.Complete(context.Background(), "s", "u")
	if !errors.HasCode(err, errors.ProviderUnavailable) {
		t.Errorf("err = %v, want PROVIDER_UNAVAILABLE", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := p.Complete(context.Background(), "s", "u")
	if !errors.HasCode(err, errors.MalformedResponse) {
		t.Errorf("err = %v, want MALFORMED_RESPONSE", err)
	}
}

func TestCompleteUnreachable(t *testing.T) {
	cfg := config.ProviderConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "m", TimeoutMs: 500}
	p := NewHTTPProvider(cfg, logging.Silent())

	_, err := p.Complete(context.Background(), "s", "u")
	if !errors.HasCode(err, errors.ProviderUnavailable) {
		t.Errorf("err = %v, want PROVIDER_UNAVAILABLE", err)
	}
}
