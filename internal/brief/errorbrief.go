package brief

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// buildErrorBrief produces the terminal error-shaped brief. It is pure
// formatting over the state: whatever evidence survived is attached, and the
// first non-recoverable failure becomes the failure reason.
func buildErrorBrief(s *ResearchState) {
	reason := "research failed"
	for _, f := range s.Failures {
		if !f.Recoverable {
			reason = f.String()
			break
		}
	}

	b := &FinalBrief{
		ID:               uuid.New().String(),
		UserID:           s.UserID,
		Topic:            s.Topic,
		ExecutiveSummary: fmt.Sprintf("Research on %q could not be completed: %s", s.Topic, reason),
		KeyInsights:      []string{},
		References:       sortedReferences(s.Summaries),
		FailureReason:    reason,
		Warnings:         s.Warnings(),
		GeneratedAt:      time.Now().UTC(),
	}
	if s.Context != nil {
		b.ContextUsed = s.Context.CondensedContext
	}
	s.Brief = b
}
