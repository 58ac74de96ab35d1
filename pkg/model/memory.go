package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidCategory   = goerr.New("invalid memory category")
	ErrInvalidSearchMode = goerr.New("invalid search mode")
)

// RecordID identifies a MemoryRecord. IDs are issued in order and never reused.
type RecordID string

// NewRecordID formats the n-th record ID of a store
func NewRecordID(n uint64) RecordID {
	return RecordID(fmt.Sprintf("mem_%d", n))
}

type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryKnowledge    Category = "knowledge"
	CategoryAgentState   Category = "agent_state"

	// CategoryAll is only valid as a retrieve filter
	CategoryAll Category = "all"
)

// Categories lists every storable category in log order
var Categories = []Category{CategoryConversation, CategoryKnowledge, CategoryAgentState}

// Validate checks if the category can hold records
func (c Category) Validate() error {
	switch c {
	case CategoryConversation, CategoryKnowledge, CategoryAgentState:
		return nil
	default:
		return goerr.Wrap(ErrInvalidCategory, "unknown category", goerr.V("category", string(c)))
	}
}

// ValidateFilter accepts every storable category and CategoryAll
func (c Category) ValidateFilter() error {
	if c == CategoryAll {
		return nil
	}
	return c.Validate()
}

// Match reports whether a record of category r passes the filter c
func (c Category) Match(r Category) bool {
	return c == CategoryAll || c == r
}

// MemoryRecord is an immutable entry of a memory log
type MemoryRecord struct {
	ID        RecordID  `json:"id"`
	Category  Category  `json:"category"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Timestamp time.Time `json:"timestamp"`
}

// Topic returns metadata "topic" or empty string
func (r *MemoryRecord) Topic() string {
	return r.Metadata.String(MetaTopic)
}

// ScoredRecord is a search hit
type ScoredRecord struct {
	*MemoryRecord
	Score float64 `json:"score"`
}

type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"
	SearchModeKeyword SearchMode = "keyword"
	SearchModeHybrid  SearchMode = "hybrid"
)

// Validate checks if the search mode is valid
func (m SearchMode) Validate() error {
	switch m {
	case SearchModeVector, SearchModeKeyword, SearchModeHybrid:
		return nil
	default:
		return goerr.Wrap(ErrInvalidSearchMode, "unknown search mode", goerr.V("mode", string(m)))
	}
}

// MemoryStats is a snapshot of the store for status output
type MemoryStats struct {
	ConversationCount int `json:"conversation_count"`
	KnowledgeCount    int `json:"total_knowledge"`
	KnowledgeTopics   int `json:"knowledge_topics"`
	AgentStateCount   int `json:"agent_state_count"`
	AgentStates       int `json:"agent_states"`
	IndexSize         int `json:"vector_store_size"`
}

// Total returns the number of records across all categories
func (s MemoryStats) Total() int {
	return s.ConversationCount + s.KnowledgeCount + s.AgentStateCount
}
