package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly/internal/schema"
)

// runSynthesize turns the surviving summaries into the final brief. The
// references are sorted mechanically before the model is asked anything, so
// their order never depends on model output. If validation exhausts its
// budget the run degrades to a mechanical fallback brief instead of failing.
func (o *Orchestrator) runSynthesize(ctx context.Context, s *ResearchState) error {
	refs := sortedReferences(s.Summaries)

	brief := &FinalBrief{
		ID:          uuid.New().String(),
		UserID:      s.UserID,
		Topic:       s.Topic,
		References:  refs,
		GeneratedAt: time.Now().UTC(),
	}
	if s.Context != nil {
		brief.ContextUsed = s.Context.CondensedContext
	}

	doc, err := schema.GenerateValidated(ctx, o.generate(TierPrimary), synthesisPrompt(s.Topic, s.Context, refs), "final_brief", o.research.RetryBudget)
	if err != nil {
		s.Fail(StageSynthesize, classifyLLMFailure(err), fmt.Sprintf("synthesis: %v", err), true)
		fallbackBrief(brief, refs)
		brief.Warnings = s.Warnings()
		s.Brief = brief
		return nil
	}

	var draft struct {
		ExecutiveSummary string   `json:"executive_summary"`
		Synthesis        string   `json:"synthesis"`
		KeyInsights      []string `json:"key_insights"`
	}
	if err := json.Unmarshal(doc, &draft); err != nil {
		s.Fail(StageSynthesize, FailureValidation, fmt.Sprintf("decode synthesis: %v", err), true)
		fallbackBrief(brief, refs)
		brief.Warnings = s.Warnings()
		s.Brief = brief
		return nil
	}

	brief.ExecutiveSummary = draft.ExecutiveSummary
	brief.Synthesis = draft.Synthesis
	brief.KeyInsights = draft.KeyInsights
	brief.Warnings = s.Warnings()
	s.Brief = brief
	return nil
}

// sortedReferences orders summaries by relevance descending; equal scores
// keep discovery order.
func sortedReferences(summaries []SourceSummary) []SourceSummary {
	refs := make([]SourceSummary, len(summaries))
	copy(refs, summaries)
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].RelevanceScore > refs[j].RelevanceScore
	})
	return refs
}

// fallbackBrief fills the narrative fields mechanically from the summaries
// when synthesis could not produce validated output.
func fallbackBrief(b *FinalBrief, refs []SourceSummary) {
	b.ExecutiveSummary = fmt.Sprintf("Automated synthesis was unavailable for %q. The %d collected source summaries are listed below.", b.Topic, len(refs))
	b.Synthesis = ""
	for _, r := range refs {
		b.Synthesis += fmt.Sprintf("%s (%s): %s\n\n", r.Title, r.URL, r.Summary)
	}
	for _, r := range refs {
		b.KeyInsights = append(b.KeyInsights, r.KeyPoints...)
	}
	if len(b.KeyInsights) == 0 {
		b.KeyInsights = []string{"No key insights could be extracted."}
	}
}
