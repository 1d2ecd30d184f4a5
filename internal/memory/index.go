package memory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"

	"github.com/briefly-ai/briefly/internal/brief"
)

// Index is a bleve full-text index over saved briefs. It ranks a user's
// history by relevance to a new topic so follow-up context is built from
// the briefs that actually matter, not just the newest ones.
type Index struct {
	idx bleve.Index
}

type briefDoc struct {
	UserID           string `json:"user_id"`
	Topic            string `json:"topic"`
	ExecutiveSummary string `json:"executive_summary"`
	KeyInsights      string `json:"key_insights"`
}

func indexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	userField := bleve.NewTextFieldMapping()
	userField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("user_id", userField)

	m.DefaultMapping = doc
	return m
}

// Open opens the index at path, creating it if absent.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("open index %s: %w", path, err)
		}
		idx, err = bleve.New(path, indexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index %s: %w", path, err)
		}
	}
	return &Index{idx: idx}, nil
}

// OpenMem creates an in-memory index, used in tests and the one-shot CLI.
func OpenMem() (*Index, error) {
	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Close() error { return i.idx.Close() }

// IndexBrief adds or replaces one brief document.
func (i *Index) IndexBrief(b brief.FinalBrief) error {
	return i.idx.Index(b.ID, briefDoc{
		UserID:           b.UserID,
		Topic:            b.Topic,
		ExecutiveSummary: b.ExecutiveSummary,
		KeyInsights:      strings.Join(b.KeyInsights, "\n"),
	})
}

// DeleteBrief removes one brief document.
func (i *Index) DeleteBrief(id string) error { return i.idx.Delete(id) }

// RelevantIDs returns the IDs of the user's briefs most relevant to topic,
// best first.
func (i *Index) RelevantIDs(topic, userID string, limit int) ([]string, error) {
	match := bleve.NewMatchQuery(topic)
	user := bleve.NewTermQuery(userID)
	user.SetField("user_id")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(match, user))
	req.Size = limit
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// HistoryFilter decorates a history store with relevance ordering for one
// topic: candidates from a wider recency window are reordered so the briefs
// the index ranks highest come first, recency breaking the remainder.
type HistoryFilter struct {
	Base  brief.HistoryStore
	Index *Index
	Topic string
}

func (f HistoryFilter) LoadHistory(ctx context.Context, userID string, limit int) ([]brief.FinalBrief, error) {
	window := limit * 4
	if window < limit {
		window = limit
	}
	candidates, err := f.Base.LoadHistory(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	if len(candidates) <= limit {
		return candidates, nil
	}

	ids, err := f.Index.RelevantIDs(f.Topic, userID, limit)
	if err != nil || len(ids) == 0 {
		return candidates[:limit], nil
	}

	byID := make(map[string]int, len(candidates))
	for i, c := range candidates {
		byID[c.ID] = i
	}
	picked := make(map[string]bool, limit)
	var out []brief.FinalBrief
	for _, id := range ids {
		if i, ok := byID[id]; ok && !picked[id] {
			out = append(out, candidates[i])
			picked[id] = true
			if len(out) == limit {
				return out, nil
			}
		}
	}
	for _, c := range candidates {
		if !picked[c.ID] {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
