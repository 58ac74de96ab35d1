package interfaces

import (
	"context"

	"github.com/m-mizutani/convene/pkg/model"
)

// ResearchProvider looks up facts about a topic. Finding nothing is an empty
// slice, not an error.
type ResearchProvider interface {
	Research(ctx context.Context, topic string) ([]model.ResearchRecord, error)
	Capabilities() model.Capabilities
}

// Reasoner turns research records into an analysis of the requested type
type Reasoner interface {
	Analyze(ctx context.Context, task string, records []model.ResearchRecord, analysisType model.AnalysisType) (model.Analysis, error)
	Capabilities() model.Capabilities
}

// MemoryStore is the memory collaborator used by the orchestrator
type MemoryStore interface {
	Store(ctx context.Context, category model.Category, content string, metadata model.Metadata) (model.RecordID, error)
	Retrieve(ctx context.Context, category model.Category, limit int) ([]*model.MemoryRecord, error)
	Search(ctx context.Context, query string, mode model.SearchMode, limit int) ([]*model.ScoredRecord, error)
	Stats() model.MemoryStats
	Capabilities() model.Capabilities
}
