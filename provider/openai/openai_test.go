package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
)

func testClient(baseURL string) *Client {
	return New(config.LLMConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		PrimaryModel:   "big-model",
		SecondaryModel: "small-model",
		Temperature:    0.3,
		MaxTokens:      100,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
	}, nil)
}

func completionResponse(content string) string {
	return `{"choices":[{"message":{"content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerateRoutesTiers(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		models = append(models, req.Model)
		w.Write([]byte(completionResponse("ok")))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Generate(context.Background(), "p", brief.TierPrimary); err != nil {
		t.Fatalf("primary: %v", err)
	}
	if _, err := c.Generate(context.Background(), "p", brief.TierSecondary); err != nil {
		t.Fatalf("secondary: %v", err)
	}
	if len(models) != 2 || models[0] != "big-model" || models[1] != "small-model" {
		t.Fatalf("models = %v", models)
	}
}

func TestGenerateRetriesOn5xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(completionResponse("recovered")))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).Generate(context.Background(), "p", brief.TierPrimary)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "recovered" || calls != 2 {
		t.Fatalf("out=%q calls=%d", out, calls)
	}
}

func TestGenerateDoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "p", brief.TierPrimary); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("401 must not be retried, calls=%d", calls)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "p", brief.TierPrimary); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
