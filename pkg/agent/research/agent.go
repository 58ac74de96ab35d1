package research

import (
	"context"
	"strings"

	"github.com/m-mizutani/convene/pkg/knowledge"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/utils/logging"
)

const (
	fallbackTopic      = "machine learning"
	fallbackLabel      = "machine learning (general)"
	fallbackSummary    = "General machine learning information as fallback."
	fallbackConfidence = 0.6
)

// Agent answers research requests from a knowledge base
type Agent struct {
	base *knowledge.Base
}

// New creates a research agent over base
func New(base *knowledge.Base) *Agent {
	return &Agent{base: base}
}

// Research returns every entry whose topic appears in query, or that contains
// one of the query words. When nothing matches and the base knows about
// machine learning, a single low-confidence general record is returned.
func (a *Agent) Research(ctx context.Context, query string) ([]model.ResearchRecord, error) {
	q := strings.ToLower(query)
	words := strings.Fields(q)

	var results []model.ResearchRecord
	for _, entry := range a.base.Entries() {
		if matches(entry.Topic, q, words) {
			results = append(results, entry.Record())
		}
	}

	if len(results) == 0 {
		if ml, ok := a.base.Get(fallbackTopic); ok {
			results = append(results, model.ResearchRecord{
				Topic:      fallbackLabel,
				Summary:    fallbackSummary,
				Details:    ml.Summary,
				Source:     ml.Source,
				Confidence: fallbackConfidence,
			})
		}
	}

	logging.From(ctx).Debug("research finished",
		"query", query,
		"results", len(results),
	)
	if results == nil {
		results = []model.ResearchRecord{}
	}
	return results, nil
}

func matches(topic, query string, words []string) bool {
	if strings.Contains(query, topic) {
		return true
	}
	for _, w := range words {
		if strings.Contains(topic, w) {
			return true
		}
	}
	return false
}

// Capabilities describes the research agent
func (a *Agent) Capabilities() model.Capabilities {
	return model.Capabilities{
		Name: model.AgentResearch,
		Role: "Information Retrieval",
		Capabilities: []string{
			"Search knowledge base",
			"Retrieve information on ML/AI topics",
			"Provide structured research results",
			"Return source provenance and confidence scores",
		},
		NoCapabilities: []string{
			"Cannot perform analysis or reasoning",
			"Cannot compare or synthesize information",
			"Cannot perform calculations",
		},
	}
}
