package web_fetch

import (
	"context"
	"fmt"
	"testing"

	"github.com/briefly-ai/briefly/tools/web_fetch/models"
)

type scriptedFetcher struct {
	res models.Result
	err error
}

func (f scriptedFetcher) Exec(ctx context.Context, url string) (models.Result, error) {
	return f.res, f.err
}

type countingRecorder struct {
	ok     int
	failed int
}

func (r *countingRecorder) RecordFetch(err error) {
	if err != nil {
		r.failed++
	} else {
		r.ok++
	}
}

func TestAdapterRecordsFetchOutcomes(t *testing.T) {
	rec := &countingRecorder{}

	ok := Adapter{
		Fetcher:  scriptedFetcher{res: models.Result{URL: "https://x.example.com", Title: "x", Text: "body"}},
		Recorder: rec,
	}
	page, err := ok.Fetch(context.Background(), "https://x.example.com")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Text != "body" {
		t.Errorf("text = %q", page.Text)
	}

	bad := Adapter{Fetcher: scriptedFetcher{err: fmt.Errorf("503")}, Recorder: rec}
	if _, err := bad.Fetch(context.Background(), "https://y.example.com"); err == nil {
		t.Fatal("expected error")
	}

	if rec.ok != 1 || rec.failed != 1 {
		t.Fatalf("recorded %d ok, %d failed", rec.ok, rec.failed)
	}
}

func TestAdapterWithoutRecorder(t *testing.T) {
	a := Adapter{Fetcher: scriptedFetcher{res: models.Result{URL: "u", Text: "t"}}}
	if _, err := a.Fetch(context.Background(), "u"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}
