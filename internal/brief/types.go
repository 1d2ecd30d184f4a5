package brief

import (
	"context"
	"time"
)

// Depth controls how many sources a run is expected to consult.
type Depth string

const (
	DepthShallow  Depth = "shallow"
	DepthModerate Depth = "moderate"
	DepthDeep     Depth = "deep"
)

// SourceBudget returns the inclusive [min, max] source count for a depth.
func (d Depth) SourceBudget() (int, int) {
	switch d {
	case DepthShallow:
		return 3, 5
	case DepthDeep:
		return 8, 12
	default:
		return 5, 8
	}
}

// Valid reports whether d is one of the known depths.
func (d Depth) Valid() bool {
	switch d {
	case DepthShallow, DepthModerate, DepthDeep:
		return true
	}
	return false
}

// ModelTier selects which configured model a Generate call runs on.
// Planning and synthesis use the primary tier; condensation and
// per-source summarization use the cheaper secondary tier.
type ModelTier string

const (
	TierPrimary   ModelTier = "primary"
	TierSecondary ModelTier = "secondary"
)

// Generator produces a completion for a prompt on the given model tier.
type Generator interface {
	Generate(ctx context.Context, prompt string, tier ModelTier) (string, error)
}

// Searcher runs one web search query and returns up to k hits in provider
// rank order.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]SearchHit, error)
}

// Fetcher retrieves and extracts readable content for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (PageContent, error)
}

// HistoryStore loads a user's most recent briefs, newest first.
type HistoryStore interface {
	LoadHistory(ctx context.Context, userID string, limit int) ([]FinalBrief, error)
}

// SearchHit is one raw search result, tagged with the query that produced it.
type SearchHit struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	QueryOrigin string `json:"query_origin"`
}

// PageContent is fetched, extracted page text ready for summarization.
type PageContent struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ResearchPlan is the planner's output: the queries to run and how many
// sources the run should end up consulting.
type ResearchPlan struct {
	Queries         []string `json:"queries"`
	Rationale       string   `json:"rationale"`
	ExpectedSources int      `json:"expected_sources"`
	FocusAreas      []string `json:"focus_areas"`
}

// SourceSummary is the structured summary of one fetched source. Once
// produced it is never mutated.
type SourceSummary struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	RelevanceScore float64  `json:"relevance_score"`
	KeyPoints      []string `json:"key_points"`
	SourceType     string   `json:"source_type"`
	PublishedAt    string   `json:"publication_date,omitempty"`
	Author         string   `json:"author,omitempty"`
}

// ContextSummary condenses a user's prior briefs for follow-up topics.
type ContextSummary struct {
	PriorTopics        []string `json:"prior_topics"`
	CondensedContext   string   `json:"condensed_context"`
	RelevantHistoryIDs []string `json:"relevant_history_ids,omitempty"`
}

// FailureKind classifies a pipeline failure.
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureGeneration FailureKind = "generation"
	FailureSearch     FailureKind = "search"
	FailureFetch      FailureKind = "fetch"
	FailureTimeout    FailureKind = "timeout"
	FailurePlanning   FailureKind = "planning"
	FailureNoSources  FailureKind = "no_sources"
	FailureStorage    FailureKind = "storage"
)

// FailureRecord is one append-only entry in the run's failure log.
// Recoverable failures degrade the brief; non-recoverable ones route the
// run to the error handler.
type FailureRecord struct {
	Stage       Stage       `json:"stage"`
	Kind        FailureKind `json:"kind"`
	Detail      string      `json:"detail"`
	Recoverable bool        `json:"recoverable"`
}

func (f FailureRecord) String() string {
	return string(f.Stage) + "/" + string(f.Kind) + ": " + f.Detail
}

// FinalBrief is the deliverable of a run. Error-shaped briefs set
// FailureReason and carry whatever evidence survived.
type FinalBrief struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id,omitempty"`
	Topic            string          `json:"topic"`
	ExecutiveSummary string          `json:"executive_summary"`
	Synthesis        string          `json:"synthesis"`
	KeyInsights      []string        `json:"key_insights"`
	References       []SourceSummary `json:"references"`
	ContextUsed      string          `json:"context_used,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// RunResult is what the orchestrator hands back to its caller. Persistence
// of the brief is the caller's job.
type RunResult struct {
	Brief         FinalBrief      `json:"brief"`
	Failures      []FailureRecord `json:"failures,omitempty"`
	ExecutionTime time.Duration   `json:"execution_time"`
}

// Request describes one brief-generation run.
type Request struct {
	Topic             string `json:"topic"`
	Depth             Depth  `json:"depth"`
	UserID            string `json:"user_id"`
	IsFollowUp        bool   `json:"is_follow_up"`
	AdditionalContext string `json:"additional_context,omitempty"`
}
