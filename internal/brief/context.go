package brief

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/briefly-ai/briefly/internal/schema"
)

// runContext condenses the user's recent briefs into context for a follow-up
// topic. Everything here is best-effort: on any failure the run proceeds
// without context and records a recoverable failure.
func (o *Orchestrator) runContext(ctx context.Context, s *ResearchState) error {
	if o.history == nil {
		s.Fail(StageContext, FailureStorage, "no history store configured", true)
		return nil
	}

	history, err := o.history.LoadHistory(ctx, s.UserID, o.research.HistoryWindow)
	if err != nil {
		s.Fail(StageContext, FailureStorage, fmt.Sprintf("load history: %v", err), true)
		return nil
	}
	if len(history) == 0 {
		o.logger.Printf("run %s: follow-up with no prior briefs", s.RunID)
		return nil
	}

	doc, err := schema.GenerateValidated(ctx, o.generate(TierSecondary), contextPrompt(s.Topic, history), "context_summary", o.research.RetryBudget)
	if err != nil {
		s.Fail(StageContext, classifyLLMFailure(err), fmt.Sprintf("context summarization: %v", err), true)
		return nil
	}

	var cs ContextSummary
	if err := json.Unmarshal(doc, &cs); err != nil {
		s.Fail(StageContext, FailureValidation, fmt.Sprintf("decode context summary: %v", err), true)
		return nil
	}
	s.Context = &cs
	return nil
}
