package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/briefly-ai/briefly/internal/store"
)

func newAuthAPI(st *store.Store) *echo.Echo {
	e := echo.New()
	h := &AuthHandler{Store: st, Secret: testSecret}
	h.Register(e.Group("/api/auth"))
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSignupCreatesUser(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAuthAPI(st)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	rec := postJSON(e, "/api/auth/signup", `{"email":"a@b.com","password":"longenough"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp IDResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "u1" {
		t.Errorf("id = %q", resp.ID)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	st, _ := newMockStore(t)
	e := newAuthAPI(st)

	rec := postJSON(e, "/api/auth/signup", `{"email":"a@b.com","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginIssuesTokenAndCookie(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAuthAPI(st)

	hash, err := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery("SELECT id, password_hash FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u1", string(hash)))

	rec := postJSON(e, "/api/auth/login", `{"email":"a@b.com","password":"longenough"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("empty token")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != resp.Token {
		t.Fatalf("auth cookie = %+v", cookie)
	}
	if !cookie.HttpOnly {
		t.Error("cookie not http-only")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	st, mock := newMockStore(t)
	e := newAuthAPI(st)

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpassword"), bcrypt.MinCost)
	mock.ExpectQuery("SELECT id, password_hash FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u1", string(hash)))

	rec := postJSON(e, "/api/auth/login", `{"email":"a@b.com","password":"wrongpassword"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWithAuthAcceptsCookie(t *testing.T) {
	e := echo.New()
	e.GET("/secret", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: c.Get("user_id").(string)})
	}, func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, testSecret) })

	tok, err := SignJWT("u1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "u1" {
		t.Errorf("user id = %q", resp.UserID)
	}
}

func TestWithAuthRejectsForgedToken(t *testing.T) {
	e := echo.New()
	e.GET("/secret", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, testSecret) })

	tok, err := SignJWT("u1", []byte("some-other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
