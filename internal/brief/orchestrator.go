package brief

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/briefly-ai/briefly/config"
)

// EventSink receives orchestration events. The telemetry package satisfies
// it; tests substitute a recorder.
type EventSink interface {
	StageEntered(runID string, seq int, stage string, at time.Time)
	StageExited(runID string, seq int, stage string, at time.Time, took time.Duration, err error)
	RecordRun(runID, topic string, took time.Duration, success bool)
}

type nopSink struct{}

func (nopSink) StageEntered(string, int, string, time.Time)                      {}
func (nopSink) StageExited(string, int, string, time.Time, time.Duration, error) {}
func (nopSink) RecordRun(string, string, time.Duration, bool)                    {}

// Orchestrator drives one research run through the fixed pipeline topology.
// It owns the run's state; nodes only fill their stage's slots and append
// failures, and only the orchestrator advances Stage.
type Orchestrator struct {
	research config.ResearchConfig
	deadline time.Duration

	llm     Generator
	search  Searcher
	fetch   Fetcher
	history HistoryStore

	sink   EventSink
	logger *log.Logger
	tracer trace.Tracer
}

// New creates an orchestrator. history and sink may be nil.
func New(cfg *config.Config, llm Generator, search Searcher, fetch Fetcher, history HistoryStore, sink EventSink) *Orchestrator {
	if sink == nil {
		sink = nopSink{}
	}
	return &Orchestrator{
		research: cfg.Research,
		deadline: cfg.General.MaxProcessingTime,
		llm:      llm,
		search:   search,
		fetch:    fetch,
		history:  history,
		sink:     sink,
		logger:   log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		tracer:   otel.Tracer("briefly/orchestrator"),
	}
}

// Run executes the pipeline for one request. It always returns a brief:
// degraded runs carry warnings, fatal runs carry an error-shaped brief with
// FailureReason set. A non-nil error means the request itself was invalid.
func (o *Orchestrator) Run(ctx context.Context, req Request) (RunResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return RunResult{}, fmt.Errorf("topic is required")
	}
	if req.Depth == "" {
		req.Depth = DepthModerate
	}
	if !req.Depth.Valid() {
		return RunResult{}, fmt.Errorf("unknown depth %q", req.Depth)
	}

	start := time.Now()
	if o.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deadline)
		defer cancel()
	}

	state := &ResearchState{
		RunID:             uuid.New().String(),
		Topic:             strings.TrimSpace(req.Topic),
		Depth:             req.Depth,
		UserID:            req.UserID,
		IsFollowUp:        req.IsFollowUp,
		AdditionalContext: req.AdditionalContext,
		Stage:             StageInit,
	}

	ctx, span := o.tracer.Start(ctx, "brief.run", trace.WithAttributes(
		attribute.String("run.id", state.RunID),
		attribute.String("run.depth", string(req.Depth)),
	))
	defer span.End()

	o.logger.Printf("run %s: topic=%q depth=%s follow_up=%t", state.RunID, state.Topic, state.Depth, state.IsFollowUp)

	seq := 0
	for state.Stage != StageDone {
		next := Next(state.Stage, state)
		if next == StageDone {
			state.Stage = StageDone
			break
		}
		state.Stage = next
		seq++

		// A blown request deadline is recoverable: the stage still runs so
		// it can degrade with whatever completed. Nodes fail fast on an
		// expired context, and synthesis falls back to a mechanical brief.
		if ctx.Err() != nil && next != StageError {
			state.Fail(next, FailureTimeout, "processing deadline exceeded", true)
		}

		entered := time.Now()
		o.sink.StageEntered(state.RunID, seq, string(next), entered)
		err := o.dispatch(ctx, next, state)
		o.sink.StageExited(state.RunID, seq, string(next), time.Now(), time.Since(entered), err)
		if err != nil {
			state.Fail(next, FailureGeneration, err.Error(), false)
		}
	}

	if state.Brief == nil {
		// Unreachable when the nodes hold their contracts, but a run must
		// never return without a brief.
		buildErrorBrief(state)
	}

	took := time.Since(start)
	success := state.Brief.FailureReason == ""
	o.sink.RecordRun(state.RunID, state.Topic, took, success)
	o.logger.Printf("run %s: done in %v, success=%t, failures=%d", state.RunID, took, success, len(state.Failures))

	return RunResult{
		Brief:         *state.Brief,
		Failures:      state.Failures,
		ExecutionTime: took,
	}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, stage Stage, state *ResearchState) error {
	ctx, span := o.tracer.Start(ctx, "brief.stage."+strings.ToLower(string(stage)))
	defer span.End()

	switch stage {
	case StageContext:
		return o.runContext(ctx, state)
	case StagePlan:
		return o.runPlan(ctx, state)
	case StageSearch:
		return o.runSearch(ctx, state)
	case StageSummarize:
		return o.runSummarize(ctx, state)
	case StageSynthesize:
		return o.runSynthesize(ctx, state)
	case StageError:
		buildErrorBrief(state)
		return nil
	default:
		return fmt.Errorf("no node for stage %s", stage)
	}
}
