package brief

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// runSearch fans out one search per plan query, deduplicates and caps the
// hits, then fetches the surviving URLs. Individual query or fetch failures
// degrade the run; ending up below the source minimum is fatal.
func (o *Orchestrator) runSearch(ctx context.Context, s *ResearchState) error {
	plan := s.Plan

	// Per-query fan-out into disjoint slots. Query counts are small (the
	// plan caps them), so this is unbounded.
	perQuery := make([][]SearchHit, len(plan.Queries))
	searchErrs := make([]error, len(plan.Queries))
	var wg sync.WaitGroup
	for i, q := range plan.Queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			hits, err := o.search.Search(ctx, q, o.research.MaxPerQuery)
			if err != nil {
				searchErrs[i] = err
				return
			}
			for j := range hits {
				hits[j].QueryOrigin = q
			}
			perQuery[i] = hits
		}(i, q)
	}
	wg.Wait()

	failedQueries := 0
	for i, err := range searchErrs {
		if err != nil {
			failedQueries++
			s.Fail(StageSearch, FailureSearch, fmt.Sprintf("query %q: %v", plan.Queries[i], err), true)
		}
	}
	if failedQueries == len(plan.Queries) {
		s.Fail(StageSearch, FailureSearch, "all search queries failed", false)
		return nil
	}

	s.Hits = capHits(perQuery, plan.ExpectedSources)
	if len(s.Hits) == 0 {
		s.Fail(StageSearch, FailureNoSources, "searches returned no usable results", false)
		return nil
	}

	// Bounded fetch fan-out, one slot per hit. Each fetch carries its own
	// timeout so one slow site cannot consume the request deadline. Workers
	// report into disjoint slots; failures are aggregated at the join in
	// index order so the failure log stays deterministic.
	pages := make([]PageContent, len(s.Hits))
	fetchErrs := make([]error, len(s.Hits))
	sem := make(chan struct{}, o.research.MaxConcurrentFetches)
	var fwg sync.WaitGroup
	for i, hit := range s.Hits {
		fwg.Add(1)
		go func(i int, hit SearchHit) {
			defer fwg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fctx, cancel := context.WithTimeout(ctx, o.research.FetchTimeout)
			defer cancel()

			page, err := o.fetch.Fetch(fctx, hit.URL)
			if err != nil {
				fetchErrs[i] = err
				return
			}
			if strings.TrimSpace(page.Text) == "" {
				fetchErrs[i] = errors.New("empty content")
				return
			}
			if page.Title == "" {
				page.Title = hit.Title
			}
			pages[i] = page
		}(i, hit)
	}
	fwg.Wait()

	var hits []SearchHit
	var kept []PageContent
	for i, err := range fetchErrs {
		if err != nil {
			kind := FailureFetch
			if errors.Is(err, context.DeadlineExceeded) {
				kind = FailureTimeout
			}
			s.Fail(StageSearch, kind, fmt.Sprintf("fetch %s: %v", s.Hits[i].URL, err), true)
			continue
		}
		hits = append(hits, s.Hits[i])
		kept = append(kept, pages[i])
	}
	total := len(s.Hits)
	s.Hits = hits
	s.Pages = kept

	if len(s.Pages) < o.research.MinSources {
		s.Fail(StageSearch, FailureNoSources,
			fmt.Sprintf("only %d of %d sources fetched (minimum %d)", len(s.Pages), total, o.research.MinSources), false)
		return nil
	}
	o.logger.Printf("run %s: fetched %d/%d sources", s.RunID, len(s.Pages), total)
	return nil
}

// capHits deduplicates hits by normalized URL and interleaves them
// round-robin across queries, in plan order, up to max. The interleave keeps
// one productive query from monopolizing the source budget.
func capHits(perQuery [][]SearchHit, max int) []SearchHit {
	seen := make(map[string]bool)
	var out []SearchHit
	for round := 0; ; round++ {
		progressed := false
		for _, hits := range perQuery {
			if round >= len(hits) {
				continue
			}
			progressed = true
			h := hits[round]
			key := normalizeURL(h.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, h)
			if len(out) == max {
				return out
			}
		}
		if !progressed {
			return out
		}
	}
}

// normalizeURL canonicalizes a URL for deduplication. Invalid URLs
// normalize to "".
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
