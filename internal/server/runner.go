package server

import (
	"context"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/memory"
)

// Runner executes one brief-generation run. Handlers and the scheduler
// depend on this instead of the orchestrator so tests can stub it.
type Runner interface {
	Run(ctx context.Context, req brief.Request) (brief.RunResult, error)
}

// PipelineRunner builds an orchestrator per request. Construction is cheap,
// and it lets follow-up runs get a history store filtered by the request's
// topic when the search index is available.
type PipelineRunner struct {
	Cfg     *config.Config
	LLM     brief.Generator
	Search  brief.Searcher
	Fetch   brief.Fetcher
	History brief.HistoryStore
	Index   *memory.Index
	Sink    brief.EventSink
}

func (r *PipelineRunner) Run(ctx context.Context, req brief.Request) (brief.RunResult, error) {
	history := r.History
	if r.Index != nil && history != nil {
		history = memory.HistoryFilter{Base: history, Index: r.Index, Topic: req.Topic}
	}
	orch := brief.New(r.Cfg, r.LLM, r.Search, r.Fetch, history, r.Sink)
	return orch.Run(ctx, req)
}
