package server

import (
	"context"
	"encoding/json"
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

var testSecret = []byte("test-secret")

type stubRunner struct {
	res     brief.RunResult
	err     error
	calls   int
	lastReq brief.Request
}

func (r *stubRunner) Run(_ context.Context, req brief.Request) (brief.RunResult, error) {
	r.calls++
	r.lastReq = req
	return r.res, r.err
}

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &store.Store{DB: db}, mock
}

func newAPI(st *store.Store, runner Runner) *echo.Echo {
	e := echo.New()
	api := e.Group("/api")
	h := &BriefsHandler{Store: st, Runner: runner, Logger: log.New(io.Discard, "", 0)}
	h.Register(api, testSecret)
	th := &TopicsHandler{Store: st}
	th.Register(api, testSecret)
	return e
}

func authedRequest(t *testing.T, method, path, body, userID string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	tok, err := SignJWT(userID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestGenerateBriefPersistsAndResponds(t *testing.T) {
	st, mock := newMockStore(t)
	runner := &stubRunner{res: brief.RunResult{
		Brief: brief.FinalBrief{
			ID:               "b1",
			Topic:            "go generics",
			ExecutiveSummary: "short version",
		},
		ExecutionTime: 1500 * time.Millisecond,
	}}
	e := newAPI(st, runner)

	mock.ExpectExec("INSERT INTO briefs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))

	req := authedRequest(t, http.MethodPost, "/api/briefs", `{"topic":"go generics","depth":"shallow"}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp BriefResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Brief.ID != "b1" {
		t.Errorf("brief id = %q", resp.Brief.ID)
	}
	if resp.ExecutionMS != 1500 {
		t.Errorf("execution_ms = %d", resp.ExecutionMS)
	}
	if runner.lastReq.UserID != "u1" {
		t.Errorf("runner got user %q", runner.lastReq.UserID)
	}
	if runner.lastReq.Depth != brief.DepthShallow {
		t.Errorf("runner got depth %q", runner.lastReq.Depth)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGenerateBriefRequiresTopic(t *testing.T) {
	st, _ := newMockStore(t)
	runner := &stubRunner{}
	e := newAPI(st, runner)

	req := authedRequest(t, http.MethodPost, "/api/briefs", `{"depth":"deep"}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times", runner.calls)
	}
}

func TestGenerateBriefRequiresAuth(t *testing.T) {
	st, _ := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/briefs", strings.NewReader(`{"topic":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetBriefHidesOtherUsers(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	rows := sqlmock.NewRows([]string{"id", "user_id", "topic", "depth", "payload", "execution_ms", "created_at"}).
		AddRow("b1", "someone-else", "topic", "moderate", []byte(`{}`), int64(10), time.Now())
	mock.ExpectQuery("SELECT id, user_id, topic, depth, payload").WillReturnRows(rows)

	req := authedRequest(t, http.MethodGet, "/api/briefs/b1", "", "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHistoryForbiddenForOtherUser(t *testing.T) {
	st, _ := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	req := authedRequest(t, http.MethodGet, "/api/users/u2/history", "", "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHistoryReturnsNewestFirst(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "topic", "depth", "payload", "execution_ms", "created_at"}).
		AddRow("b2", "u1", "newer", "deep", []byte(`{}`), int64(10), now).
		AddRow("b1", "u1", "older", "shallow", []byte(`{}`), int64(10), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, user_id, topic, depth, payload").WillReturnRows(rows)

	req := authedRequest(t, http.MethodGet, "/api/users/me/history", "", "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Briefs) != 2 || resp.Briefs[0].Topic != "newer" {
		t.Fatalf("briefs = %+v", resp.Briefs)
	}
}

func TestDeleteUserIsTransactional(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM runs").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM briefs").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM topics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM conversations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := authedRequest(t, http.MethodDelete, "/api/users/me", "", "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateTopicRejectsBadCron(t *testing.T) {
	st, _ := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	req := authedRequest(t, http.MethodPost, "/api/topics", `{"topic":"rust news","cron_spec":"not a cron"}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateTopic(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAPI(st, &stubRunner{})

	mock.ExpectQuery("INSERT INTO topics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))

	req := authedRequest(t, http.MethodPost, "/api/topics", `{"topic":"rust news","cron_spec":"@daily"}`, "u1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp IDResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "t1" {
		t.Errorf("id = %q", resp.ID)
	}
}
