package serper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverParsesOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"organic":[
			{"title":"one","link":"https://one.example.com","snippet":"s1"},
			{"title":"two","link":"https://two.example.com","snippet":"s2"},
			{"title":"three","link":"https://three.example.com","snippet":"s3"}
		]}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "k", BaseURL: srv.URL}
	out, err := s.Discover(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("k cap not applied, got %d results", len(out))
	}
	if out[0].URL != "https://one.example.com" || out[0].Title != "one" {
		t.Fatalf("unexpected first result: %+v", out[0])
	}
}

func TestDiscoverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := Search{ApiKey: "k", BaseURL: srv.URL}
	if _, err := s.Discover(context.Background(), "q", 2); err == nil {
		t.Fatal("expected error on 403")
	}
}
