package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/store"
)

type stubGenerator struct {
	reply   string
	err     error
	prompts []string
	tiers   []brief.ModelTier
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, tier brief.ModelTier) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.tiers = append(g.tiers, tier)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newChatAPI(st *store.Store, gen brief.Generator) *echo.Echo {
	e := echo.New()
	h := &ChatHandler{Store: st, LLM: gen, Logger: log.New(io.Discard, "", 0)}
	h.Register(e.Group("/api"), testSecret)
	return e
}

func briefPayload(t *testing.T, topic, summary string) []byte {
	t.Helper()
	data, err := json.Marshal(brief.FinalBrief{Topic: topic, ExecutiveSummary: summary, KeyInsights: []string{"an insight"}})
	if err != nil {
		t.Fatalf("marshal brief: %v", err)
	}
	return data
}

func TestChatUsesStoredContext(t *testing.T) {
	st, mock := newMockStore(t)
	gen := &stubGenerator{reply: "quantum error correction has moved fast lately"}
	e := newChatAPI(st, gen)

	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, topic, depth, payload").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "topic", "depth", "payload", "execution_ms", "created_at"}).
			AddRow("b1", "u1", "quantum computing", "moderate", briefPayload(t, "quantum computing", "qubits are improving"), int64(10), now))
	mock.ExpectQuery("SELECT user_id, user_input, bot_reply, kind").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "user_input", "bot_reply", "kind", "created_at"}).
			AddRow("u1", "what about qubits?", "they are the unit of quantum information", "chat", now))
	mock.ExpectExec("INSERT INTO conversations").WillReturnResult(sqlmock.NewResult(1, 1))

	req := authedRequest(t, http.MethodPost, "/api/chat", `{"message":"any progress on error correction?"}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != gen.reply {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.PreviousBriefs != 1 || resp.PreviousConversations != 1 {
		t.Errorf("context counts = %d briefs, %d conversations", resp.PreviousBriefs, resp.PreviousConversations)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("generate called %d times", len(gen.prompts))
	}
	p := gen.prompts[0]
	for _, want := range []string{"quantum computing", "qubits are improving", "what about qubits?", "any progress on error correction?"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if gen.tiers[0] != brief.TierSecondary {
		t.Errorf("chat used tier %q", gen.tiers[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestChatDegradesWhenModelFails(t *testing.T) {
	st, mock := newMockStore(t)
	gen := &stubGenerator{err: fmt.Errorf("model down")}
	e := newChatAPI(st, gen)

	mock.ExpectQuery("SELECT id, user_id, topic, depth, payload").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "topic", "depth", "payload", "execution_ms", "created_at"}))
	mock.ExpectQuery("SELECT user_id, user_input, bot_reply, kind").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "user_input", "bot_reply", "kind", "created_at"}))
	mock.ExpectExec("INSERT INTO conversations").WillReturnResult(sqlmock.NewResult(1, 1))

	req := authedRequest(t, http.MethodPost, "/api/chat", `{"message":"tell me about rust"}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Response, "research brief") {
		t.Errorf("expected canned suggestion, got %q", resp.Response)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	st, _ := newMockStore(t)
	gen := &stubGenerator{}
	e := newChatAPI(st, gen)

	req := authedRequest(t, http.MethodPost, "/api/chat", `{"message":"   "}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(gen.prompts) != 0 {
		t.Errorf("generate called for empty message")
	}
}

