package brief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/briefly-ai/briefly/internal/schema"
)

// generate adapts the Generator port to the validator's GenerateFunc on a
// fixed model tier.
func (o *Orchestrator) generate(tier ModelTier) schema.GenerateFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return o.llm.Generate(ctx, prompt, tier)
	}
}

func classifyLLMFailure(err error) FailureKind {
	var vErr *schema.ValidationError
	if errors.As(err, &vErr) {
		return FailureValidation
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTimeout
	}
	return FailureGeneration
}

// runPlan asks the primary model for a research plan and normalizes it
// against the depth budget. A plan the run cannot execute is fatal.
func (o *Orchestrator) runPlan(ctx context.Context, s *ResearchState) error {
	prompt := planningPrompt(s.Topic, s.Depth, s.Context, s.AdditionalContext)
	doc, err := schema.GenerateValidated(ctx, o.generate(TierPrimary), prompt, "research_plan", o.research.RetryBudget)
	if err != nil {
		s.Fail(StagePlan, FailurePlanning, fmt.Sprintf("planning: %v", err), false)
		return nil
	}

	var plan ResearchPlan
	if err := json.Unmarshal(doc, &plan); err != nil {
		s.Fail(StagePlan, FailurePlanning, fmt.Sprintf("decode plan: %v", err), false)
		return nil
	}

	normalizePlan(&plan, s.Depth, o.research.MaxPerQuery)
	if len(plan.Queries) == 0 || plan.ExpectedSources <= 0 {
		s.Fail(StagePlan, FailurePlanning, "plan has no executable queries", false)
		return nil
	}

	s.Plan = &plan
	o.logger.Printf("run %s: plan with %d queries, expecting %d sources", s.RunID, len(plan.Queries), plan.ExpectedSources)
	return nil
}

// normalizePlan deduplicates queries and clamps expected_sources to the
// depth budget and to what the queries can actually yield.
func normalizePlan(p *ResearchPlan, depth Depth, maxPerQuery int) {
	seen := make(map[string]bool, len(p.Queries))
	queries := p.Queries[:0]
	for _, q := range p.Queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
	}
	p.Queries = queries

	minS, maxS := depth.SourceBudget()
	if p.ExpectedSources < minS {
		p.ExpectedSources = minS
	}
	if p.ExpectedSources > maxS {
		p.ExpectedSources = maxS
	}
	if ceiling := maxPerQuery * len(p.Queries); ceiling > 0 && p.ExpectedSources > ceiling {
		p.ExpectedSources = ceiling
	}
}
