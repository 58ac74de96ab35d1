package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/convene/pkg/index"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrCapacityExceeded = goerr.New("memory capacity exceeded")
)

// KeywordOnlyScore is assigned in hybrid mode to records found by keyword
// matching alone. It ranks vector hits first at equal nominal score.
const KeywordOnlyScore = 0.7

// Store holds append-only logs per category and a similarity index over every
// record. The log append and the index add are done under one lock.
type Store struct {
	mu       sync.RWMutex
	logs     map[model.Category][]*model.MemoryRecord
	byID     map[model.RecordID]*model.MemoryRecord
	order    []*model.MemoryRecord
	nextID   uint64
	index    *index.Index
	now      func() time.Time
	capacity int
	onStore  func(ctx context.Context, rec *model.MemoryRecord)
}

type Option func(*Store)

// WithIndex replaces the default similarity index
func WithIndex(idx *index.Index) Option {
	return func(s *Store) {
		s.index = idx
	}
}

// WithClock replaces time.Now as the record timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCapacity limits the total number of records. Store fails with
// ErrCapacityExceeded once the limit is reached; nothing is evicted. Zero means
// unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// WithStoreHook registers a callback invoked after every successful store
func WithStoreHook(hook func(ctx context.Context, rec *model.MemoryRecord)) Option {
	return func(s *Store) {
		s.onStore = hook
	}
}

// New creates an empty Store
func New(opts ...Option) *Store {
	s := &Store{
		logs:  make(map[model.Category][]*model.MemoryRecord),
		byID:  make(map[model.RecordID]*model.MemoryRecord),
		index: index.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store appends a record and indexes "topic content" for similarity search
func (s *Store) Store(ctx context.Context, category model.Category, content string, metadata model.Metadata) (model.RecordID, error) {
	if err := category.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.capacity > 0 && len(s.order) >= s.capacity {
		s.mu.Unlock()
		return "", goerr.Wrap(ErrCapacityExceeded, "failed to store record",
			goerr.V("capacity", s.capacity),
			goerr.V("category", category))
	}

	rec := &model.MemoryRecord{
		ID:        model.NewRecordID(s.nextID),
		Category:  category,
		Content:   content,
		Metadata:  metadata.Clone(),
		Timestamp: s.now(),
	}
	s.nextID++

	s.logs[category] = append(s.logs[category], rec)
	s.byID[rec.ID] = rec
	s.order = append(s.order, rec)
	s.index.Add(rec.ID, rec.Topic()+" "+content)
	s.mu.Unlock()

	logging.From(ctx).Debug("stored memory",
		"id", rec.ID,
		"category", category,
	)
	if s.onStore != nil {
		s.onStore(ctx, rec)
	}

	return rec.ID, nil
}

// Retrieve returns records of category (or CategoryAll), newest first, at most
// limit. Records with the same timestamp keep their insertion order.
func (s *Store) Retrieve(ctx context.Context, category model.Category, limit int) ([]*model.MemoryRecord, error) {
	if err := category.ValidateFilter(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*model.MemoryRecord{}, nil
	}

	s.mu.RLock()
	var matched []*model.MemoryRecord
	if category == model.CategoryAll {
		matched = append(matched, s.order...)
	} else {
		matched = append(matched, s.logs[category]...)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	logging.From(ctx).Debug("retrieved memories",
		"category", category,
		"count", len(matched),
	)
	return copyRecords(matched), nil
}

// Search ranks records against query. See SearchMode for the paths taken.
func (s *Store) Search(ctx context.Context, query string, mode model.SearchMode, limit int) ([]*model.ScoredRecord, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*model.ScoredRecord{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*model.ScoredRecord{}
	seen := make(map[model.RecordID]struct{})

	if mode == model.SearchModeVector || mode == model.SearchModeHybrid {
		for _, hit := range s.index.Search(query, limit) {
			rec, ok := s.byID[hit.ID]
			if !ok {
				continue
			}
			seen[hit.ID] = struct{}{}
			results = append(results, &model.ScoredRecord{MemoryRecord: copyRecord(rec), Score: hit.Score})
		}
	}

	if mode == model.SearchModeKeyword || mode == model.SearchModeHybrid {
		for _, hit := range s.keywordSearch(query, limit, seen) {
			if mode == model.SearchModeHybrid {
				hit.Score = KeywordOnlyScore
			}
			results = append(results, hit)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	logging.From(ctx).Debug("searched memories",
		"query", query,
		"mode", mode,
		"count", len(results),
	)
	return results, nil
}

// keywordSearch scores every record outside of skip. Caller must hold s.mu.
func (s *Store) keywordSearch(query string, limit int, skip map[model.RecordID]struct{}) []*model.ScoredRecord {
	q := strings.ToLower(query)
	queryWords := wordSet(q)
	if len(queryWords) == 0 {
		return nil
	}

	var hits []*model.ScoredRecord
	for _, rec := range s.order {
		if _, ok := skip[rec.ID]; ok {
			continue
		}
		score := matchScore(q, queryWords, rec)
		if score > 0 {
			hits = append(hits, &model.ScoredRecord{MemoryRecord: copyRecord(rec), Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func matchScore(query string, queryWords map[string]struct{}, rec *model.MemoryRecord) float64 {
	content := strings.ToLower(rec.Content)
	topic := strings.ToLower(rec.Topic())
	if strings.Contains(content, query) || strings.Contains(topic, query) {
		return 1.0
	}

	words := wordSet(content)
	for w := range wordSet(topic) {
		words[w] = struct{}{}
	}

	var overlap int
	for w := range queryWords {
		if _, ok := words[w]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryWords))
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}

// Stats returns record counts. It is meant for status output only.
func (s *Store) Stats() model.MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make(map[string]struct{})
	for _, rec := range s.logs[model.CategoryKnowledge] {
		topic := rec.Topic()
		if topic == "" {
			topic = "general"
		}
		topics[topic] = struct{}{}
	}
	agents := make(map[string]struct{})
	for _, rec := range s.logs[model.CategoryAgentState] {
		agent := rec.Metadata.String(model.MetaAgent)
		if agent == "" {
			agent = "unknown"
		}
		agents[agent] = struct{}{}
	}

	return model.MemoryStats{
		ConversationCount: len(s.logs[model.CategoryConversation]),
		KnowledgeCount:    len(s.logs[model.CategoryKnowledge]),
		KnowledgeTopics:   len(topics),
		AgentStateCount:   len(s.logs[model.CategoryAgentState]),
		AgentStates:       len(agents),
		IndexSize:         s.index.Len(),
	}
}

// Capabilities describes the memory agent
func (s *Store) Capabilities() model.Capabilities {
	return model.Capabilities{
		Name: model.AgentMemory,
		Role: "Memory Management",
		Capabilities: []string{
			"Store conversation history",
			"Store knowledge with provenance",
			"Store agent state information",
			"Vector similarity search",
			"Keyword search",
			"Hybrid search strategies",
			"Memory retrieval by type and criteria",
		},
	}
}

func copyRecord(rec *model.MemoryRecord) *model.MemoryRecord {
	cp := *rec
	cp.Metadata = rec.Metadata.Clone()
	return &cp
}

func copyRecords(recs []*model.MemoryRecord) []*model.MemoryRecord {
	out := make([]*model.MemoryRecord, len(recs))
	for i, rec := range recs {
		out[i] = copyRecord(rec)
	}
	return out
}
