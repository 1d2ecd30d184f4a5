package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/briefly-ai/briefly/internal/schema"
)

// runSummarize summarizes every fetched page through a fixed-width worker
// pool. Workers write disjoint slots; a source whose summary never validates
// is dropped with a recoverable failure. Losing every source is fatal.
func (o *Orchestrator) runSummarize(ctx context.Context, s *ResearchState) error {
	summaries := make([]*SourceSummary, len(s.Pages))
	sumErrs := make([]error, len(s.Pages))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.research.MaxConcurrentSummaries; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				summaries[i], sumErrs[i] = o.summarizeOne(ctx, s, s.Pages[i])
			}
		}()
	}
	for i := range s.Pages {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range sumErrs {
		if err != nil {
			s.Fail(StageSummarize, classifyLLMFailure(err), fmt.Sprintf("summarize %s: %v", s.Pages[i].URL, err), true)
			continue
		}
		s.Summaries = append(s.Summaries, *summaries[i])
	}

	if len(s.Summaries) == 0 {
		s.Fail(StageSummarize, FailureNoSources, "no source could be summarized", false)
		return nil
	}
	o.logger.Printf("run %s: summarized %d/%d sources", s.RunID, len(s.Summaries), len(s.Pages))
	return nil
}

func (o *Orchestrator) summarizeOne(ctx context.Context, s *ResearchState, page PageContent) (*SourceSummary, error) {
	var focus []string
	if s.Plan != nil {
		focus = s.Plan.FocusAreas
	}
	doc, err := schema.GenerateValidated(ctx, o.generate(TierSecondary), summaryPrompt(s.Topic, focus, page), "source_summary", o.research.RetryBudget)
	if err != nil {
		return nil, err
	}
	var sum SourceSummary
	if err := json.Unmarshal(doc, &sum); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	// The URL is ground truth from the fetch, not from the model.
	sum.URL = page.URL
	if sum.Title == "" {
		sum.Title = page.Title
	}
	return &sum, nil
}
