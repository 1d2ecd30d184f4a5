package server

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/memory"
	"github.com/briefly-ai/briefly/internal/store"
)

// Scheduler periodically re-runs saved topics on their cron schedule.
// A redis lock per topic keeps multiple server replicas from running
// the same topic at once.
type Scheduler struct {
	Store    *store.Store
	Rdb      *redis.Client
	Runner   Runner
	Index    *memory.Index // optional
	Interval time.Duration
	LockTTL  time.Duration

	logger *log.Logger
}

func NewScheduler(st *store.Store, rdb *redis.Client, runner Runner, idx *memory.Index) *Scheduler {
	return &Scheduler{
		Store:    st,
		Rdb:      rdb,
		Runner:   runner,
		Index:    idx,
		Interval: time.Minute,
		LockTTL:  10 * time.Minute,
		logger:   log.New(log.Writer(), "[SCHEDULER] ", log.LstdFlags),
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.logger.Printf("scheduler started, interval %s", s.Interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	topics, err := s.Store.ListAllTopics(ctx)
	if err != nil {
		s.logger.Printf("list topics: %v", err)
		return
	}
	now := time.Now()
	for _, t := range topics {
		if !isDue(t.CronSpec, t.LastRunAt, now) {
			continue
		}
		if !s.tryLock(ctx, t.ID) {
			continue
		}
		s.runTopic(ctx, t)
	}
}

// tryLock acquires a short-lived per-topic lock. With no redis configured the
// scheduler runs unlocked, which is fine for a single replica.
func (s *Scheduler) tryLock(ctx context.Context, topicID string) bool {
	if s.Rdb == nil {
		return true
	}
	ok, err := s.Rdb.SetNX(ctx, "sched:lock:"+topicID, "1", s.LockTTL).Result()
	if err != nil {
		s.logger.Printf("lock %s: %v", topicID, err)
		return false
	}
	return ok
}

func (s *Scheduler) runTopic(ctx context.Context, t store.TopicRecord) {
	s.logger.Printf("running topic %s (%q) for user %s", t.ID, t.Topic, t.UserID)

	res, err := s.Runner.Run(ctx, brief.Request{
		Topic:      t.Topic,
		Depth:      brief.Depth(t.Depth),
		UserID:     t.UserID,
		IsFollowUp: t.LastRunAt != nil,
	})
	if err != nil {
		s.logger.Printf("topic %s: %v", t.ID, err)
		return
	}

	payload, err := json.Marshal(res.Brief)
	if err != nil {
		s.logger.Printf("marshal brief %s: %v", res.Brief.ID, err)
		return
	}
	if err := s.Store.SaveBrief(ctx, store.BriefRecord{
		ID:          res.Brief.ID,
		UserID:      t.UserID,
		Topic:       res.Brief.Topic,
		Depth:       t.Depth,
		Payload:     payload,
		ExecutionMS: res.ExecutionTime.Milliseconds(),
	}); err != nil {
		s.logger.Printf("save brief %s: %v", res.Brief.ID, err)
		return
	}
	failures, _ := json.Marshal(res.Failures)
	if err := s.Store.RecordRun(ctx, store.RunRecord{
		RunID:       res.Brief.ID,
		BriefID:     res.Brief.ID,
		UserID:      t.UserID,
		Topic:       res.Brief.Topic,
		Depth:       t.Depth,
		Success:     res.Brief.FailureReason == "",
		Failures:    failures,
		ExecutionMS: res.ExecutionTime.Milliseconds(),
	}); err != nil {
		s.logger.Printf("record run %s: %v", res.Brief.ID, err)
	}
	if s.Index != nil {
		if err := s.Index.IndexBrief(res.Brief); err != nil {
			s.logger.Printf("index brief %s: %v", res.Brief.ID, err)
		}
	}
	if err := s.Store.TouchTopicRun(ctx, t.ID); err != nil {
		s.logger.Printf("touch topic %s: %v", t.ID, err)
	}
}

// isDue reports whether a topic's next scheduled run is at or before now.
// A topic that has never run is always due.
func isDue(spec string, lastRun *time.Time, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	switch spec {
	case "@daily":
		return now.Sub(*lastRun) >= 24*time.Hour
	case "@hourly":
		return now.Sub(*lastRun) >= time.Hour
	}
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return false
	}
	next := expr.Next(*lastRun)
	return !next.IsZero() && !next.After(now)
}
