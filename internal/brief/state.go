package brief

// Stage is the closed set of pipeline stages. Only the orchestrator
// advances a run's Stage; nodes write their own result slots and append
// failures.
type Stage string

const (
	StageInit       Stage = "INIT"
	StageContext    Stage = "CONTEXT"
	StagePlan       Stage = "PLAN"
	StageSearch     Stage = "SEARCH"
	StageSummarize  Stage = "SUMMARIZE"
	StageSynthesize Stage = "SYNTHESIZE"
	StageError      Stage = "ERROR"
	StageDone       Stage = "DONE"
)

// ResearchState is the single mutable record owned by one orchestrator run.
// It is never shared across runs; fan-out nodes hand workers disjoint index
// slots instead of locking it.
type ResearchState struct {
	RunID             string
	Topic             string
	Depth             Depth
	UserID            string
	IsFollowUp        bool
	AdditionalContext string

	Context   *ContextSummary
	Plan      *ResearchPlan
	Hits      []SearchHit
	Pages     []PageContent
	Summaries []SourceSummary
	Failures  []FailureRecord
	Brief     *FinalBrief

	Stage Stage
}

// Fail appends one failure record at the given stage.
func (s *ResearchState) Fail(stage Stage, kind FailureKind, detail string, recoverable bool) {
	s.Failures = append(s.Failures, FailureRecord{
		Stage:       stage,
		Kind:        kind,
		Detail:      detail,
		Recoverable: recoverable,
	})
}

// Fatal reports whether any recorded failure is non-recoverable.
func (s *ResearchState) Fatal() bool {
	for _, f := range s.Failures {
		if !f.Recoverable {
			return true
		}
	}
	return false
}

// Warnings renders the recoverable failures for inclusion in the brief.
func (s *ResearchState) Warnings() []string {
	var out []string
	for _, f := range s.Failures {
		if f.Recoverable {
			out = append(out, f.String())
		}
	}
	return out
}

// Next returns the stage that follows cur for the given state. The topology
// is fixed: INIT branches on follow-up, PLAN/SEARCH/SUMMARIZE route to ERROR
// on fatal failure, and both SYNTHESIZE and ERROR terminate at DONE.
func Next(cur Stage, s *ResearchState) Stage {
	switch cur {
	case StageInit:
		if s.IsFollowUp {
			return StageContext
		}
		return StagePlan
	case StageContext:
		return StagePlan
	case StagePlan:
		if s.Fatal() {
			return StageError
		}
		return StageSearch
	case StageSearch:
		if s.Fatal() {
			return StageError
		}
		return StageSummarize
	case StageSummarize:
		if s.Fatal() || len(s.Summaries) == 0 {
			return StageError
		}
		return StageSynthesize
	case StageSynthesize:
		return StageDone
	case StageError:
		return StageDone
	default:
		return StageDone
	}
}
