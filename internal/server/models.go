package server

import (
	"time"

	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/store"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// GenerateBriefRequest is the payload for brief generation.
type GenerateBriefRequest struct {
	Topic             string `json:"topic"`
	Depth             string `json:"depth,omitempty"`
	IsFollowUp        bool   `json:"is_follow_up,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// BriefResponse wraps a generated or stored brief.
type BriefResponse struct {
	Brief       brief.FinalBrief      `json:"brief"`
	Failures    []brief.FailureRecord `json:"failures,omitempty"`
	ExecutionMS int64                 `json:"execution_ms"`
}

// HistoryItem is one entry in a user's brief history.
type HistoryItem struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Depth     string    `json:"depth"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse lists a user's briefs, newest first.
type HistoryResponse struct {
	Briefs []HistoryItem `json:"briefs"`
}

// StatsResponse reports a user's usage statistics.
type StatsResponse struct {
	store.UserStats
}

// ChatRequest is the payload for a conversational exchange.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant's reply plus how much stored context
// informed it.
type ChatResponse struct {
	Response              string    `json:"response"`
	Timestamp             time.Time `json:"timestamp"`
	PreviousBriefs        int       `json:"previous_briefs"`
	PreviousConversations int       `json:"previous_conversations"`
}

// CreateTopicRequest saves a recurring research topic.
type CreateTopicRequest struct {
	Topic    string `json:"topic"`
	Depth    string `json:"depth,omitempty"`
	CronSpec string `json:"cron_spec"`
}

// TopicResponse is a saved recurring topic.
type TopicResponse struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Depth     string     `json:"depth"`
	CronSpec  string     `json:"cron_spec"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}
