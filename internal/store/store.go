package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
)

// Store wraps the Postgres connection. Schema lives in migrations/.
type Store struct {
	DB *sql.DB
}

// New opens and pings the configured Postgres database.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id`, email, hash).Scan(&id)
	return id, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// BriefRecord is a persisted brief: the full document as JSON plus the
// columns history and stats queries filter on.
type BriefRecord struct {
	ID          string
	UserID      string
	Topic       string
	Depth       string
	Payload     []byte
	ExecutionMS int64
	CreatedAt   time.Time
}

func (s *Store) SaveBrief(ctx context.Context, rec BriefRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO briefs (id, user_id, topic, depth, payload, execution_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
`, rec.ID, rec.UserID, rec.Topic, rec.Depth, rec.Payload, rec.ExecutionMS)
	return err
}

func (s *Store) GetBrief(ctx context.Context, id string) (BriefRecord, bool, error) {
	var rec BriefRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, topic, depth, payload, execution_ms, created_at
FROM briefs
WHERE id=$1
`, id).Scan(&rec.ID, &rec.UserID, &rec.Topic, &rec.Depth, &rec.Payload, &rec.ExecutionMS, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return BriefRecord{}, false, nil
	}
	if err != nil {
		return BriefRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) ListBriefs(ctx context.Context, userID string, limit, offset int) ([]BriefRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, topic, depth, payload, execution_ms, created_at
FROM briefs
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BriefRecord
	for rows.Next() {
		var rec BriefRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Topic, &rec.Depth, &rec.Payload, &rec.ExecutionMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadHistory implements brief.HistoryStore: the user's most recent briefs,
// newest first, decoded from their stored payloads.
func (s *Store) LoadHistory(ctx context.Context, userID string, limit int) ([]brief.FinalBrief, error) {
	recs, err := s.ListBriefs(ctx, userID, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]brief.FinalBrief, 0, len(recs))
	for _, rec := range recs {
		var b brief.FinalBrief
		if err := json.Unmarshal(rec.Payload, &b); err != nil {
			return nil, fmt.Errorf("decode brief %s: %w", rec.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) DeleteUserData(ctx context.Context, userID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE user_id=$1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM briefs WHERE user_id=$1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE user_id=$1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE user_id=$1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// UserStats aggregates a user's brief history.
type UserStats struct {
	TotalBriefs    int64      `json:"total_briefs"`
	FirstBriefAt   *time.Time `json:"first_brief_at,omitempty"`
	LastBriefAt    *time.Time `json:"last_brief_at,omitempty"`
	AvgExecutionMS float64    `json:"avg_execution_ms"`
}

func (s *Store) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	var st UserStats
	err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*), MIN(created_at), MAX(created_at), COALESCE(AVG(execution_ms), 0)
FROM briefs
WHERE user_id=$1
`, userID).Scan(&st.TotalBriefs, &st.FirstBriefAt, &st.LastBriefAt, &st.AvgExecutionMS)
	return st, err
}

// RunRecord is the audit row for one pipeline run.
type RunRecord struct {
	RunID       string
	BriefID     string
	UserID      string
	Topic       string
	Depth       string
	Success     bool
	Failures    []byte
	ExecutionMS int64
}

func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO runs (run_id, brief_id, user_id, topic, depth, success, failures, execution_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
`, rec.RunID, rec.BriefID, rec.UserID, rec.Topic, rec.Depth, rec.Success, rec.Failures, rec.ExecutionMS)
	return err
}

// ConversationRecord is one chat exchange, kept so later chat turns can see
// what was already discussed.
type ConversationRecord struct {
	UserID    string
	UserInput string
	BotReply  string
	Kind      string
	CreatedAt time.Time
}

func (s *Store) SaveConversation(ctx context.Context, rec ConversationRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO conversations (user_id, user_input, bot_reply, kind, created_at)
VALUES ($1,$2,$3,$4,NOW())
`, rec.UserID, rec.UserInput, rec.BotReply, rec.Kind)
	return err
}

// ListConversations returns the user's most recent exchanges, newest first.
func (s *Store) ListConversations(ctx context.Context, userID string, limit int) ([]ConversationRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT user_id, user_input, bot_reply, kind, created_at
FROM conversations
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.UserID, &rec.UserInput, &rec.BotReply, &rec.Kind, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TopicRecord is a saved recurring research topic for the scheduler.
type TopicRecord struct {
	ID        string
	UserID    string
	Topic     string
	Depth     string
	CronSpec  string
	LastRunAt *time.Time
	CreatedAt time.Time
}

func (s *Store) CreateTopic(ctx context.Context, userID, topic, depth, cronSpec string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO topics (user_id, topic, depth, cron_spec, created_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id
`, userID, topic, depth, cronSpec).Scan(&id)
	return id, err
}

func (s *Store) ListTopics(ctx context.Context, userID string) ([]TopicRecord, error) {
	return s.listTopics(ctx, `WHERE user_id=$1`, userID)
}

func (s *Store) ListAllTopics(ctx context.Context) ([]TopicRecord, error) {
	return s.listTopics(ctx, ``)
}

func (s *Store) listTopics(ctx context.Context, where string, args ...any) ([]TopicRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, topic, depth, cron_spec, last_run_at, created_at
FROM topics
`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicRecord
	for rows.Next() {
		var rec TopicRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Topic, &rec.Depth, &rec.CronSpec, &rec.LastRunAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) TouchTopicRun(ctx context.Context, topicID string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE topics SET last_run_at=NOW() WHERE id=$1`, topicID)
	return err
}

func (s *Store) DeleteTopic(ctx context.Context, topicID, userID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM topics WHERE id=$1 AND user_id=$2`, topicID, userID)
	return err
}
