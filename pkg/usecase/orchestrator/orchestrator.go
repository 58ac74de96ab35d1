package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/convene/pkg/interfaces"
	"github.com/m-mizutani/convene/pkg/knowledge"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const memorySearchLimit = 5

// Orchestrator drives one query at a time through classification, planning,
// execution, synthesis and storage
type Orchestrator struct {
	research interfaces.ResearchProvider
	reasoner interfaces.Reasoner
	memory   interfaces.MemoryStore
	planner  planner
	sink     telemetry.Sink
	now      func() time.Time

	mu             sync.Mutex
	lastQuery      string
	lastComplexity model.Complexity
}

// Option is a functional option for Orchestrator
type Option func(*Orchestrator)

// WithSink sets the telemetry sink
func WithSink(sink telemetry.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithTopicKeywords replaces the table used to extract research topics
func WithTopicKeywords(topics []knowledge.TopicKeywords) Option {
	return func(o *Orchestrator) {
		o.planner.topics = topics
	}
}

// WithClock sets the clock used to stamp telemetry events
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator over the given collaborators
func New(
	research interfaces.ResearchProvider,
	reasoner interfaces.Reasoner,
	memory interfaces.MemoryStore,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		research: research,
		reasoner: reasoner,
		memory:   memory,
		planner:  planner{topics: knowledge.Default().TopicKeywords()},
		sink:     telemetry.Nop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Answer is the outcome of one processed query
type Answer struct {
	Query      string           `json:"query"`
	Complexity model.Complexity `json:"complexity"`
	Plan       *Plan            `json:"plan"`
	Results    []*Result        `json:"-"`
	Response   string           `json:"response"`
}

// Process answers query and returns the response text
func (o *Orchestrator) Process(ctx context.Context, query string) (string, error) {
	answer, err := o.Run(ctx, query)
	if err != nil {
		return "", err
	}
	return answer.Response, nil
}

// Run answers query and returns every intermediate product. Queries are
// serialized; a blank query is rejected with model.ErrEmptyQuery.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, goerr.Wrap(model.ErrEmptyQuery, "cannot process query", goerr.V("query", query))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = logging.With(ctx, logging.From(ctx).With("query", query))
	o.emit(ctx, telemetry.Event{Kind: telemetry.KindQuery, Summary: query})

	complexity := Classify(query)
	o.lastQuery = query
	o.lastComplexity = complexity
	o.emit(ctx, telemetry.Event{
		Kind:    telemetry.KindDecision,
		From:    model.AgentCoordinator,
		Summary: fmt.Sprintf("Query complexity: %s", complexity),
		Detail:  "Based on keywords and structure analysis",
	})

	memory := o.CheckMemory(ctx, query)

	plan := o.Plan(ctx, query, complexity, memory)
	results := o.Execute(ctx, plan)
	response := o.Synthesize(results, memory)

	if err := o.StoreInteraction(ctx, query, complexity, response, results); err != nil {
		logging.From(ctx).Warn("failed to store interaction", "error", err)
	}

	o.emit(ctx, telemetry.Event{Kind: telemetry.KindFinalResponse, Summary: response})

	return &Answer{
		Query:      query,
		Complexity: complexity,
		Plan:       plan,
		Results:    results,
		Response:   response,
	}, nil
}

// CheckMemory runs a hybrid search for prior knowledge. A failing store is
// treated as an empty memory.
func (o *Orchestrator) CheckMemory(ctx context.Context, query string) []*model.ScoredRecord {
	o.emit(ctx, telemetry.Event{
		Kind:    telemetry.KindCollaboratorInvoked,
		From:    model.AgentCoordinator,
		To:      model.AgentMemory,
		Summary: fmt.Sprintf("%s invokes %s", model.AgentCoordinator, model.AgentMemory),
		Detail:  "Search for relevant prior knowledge",
	})
	o.send(ctx, model.AgentMemory, model.MessageTypeRetrieve, map[string]any{
		"operation":   "search",
		"query":       query,
		"search_type": string(model.SearchModeHybrid),
		"limit":       memorySearchLimit,
	})

	hits, err := o.memory.Search(ctx, query, model.SearchModeHybrid, memorySearchLimit)
	if err != nil {
		logging.From(ctx).Warn("memory search failed", "error", err)
		return nil
	}

	if len(hits) > 0 {
		o.emit(ctx, telemetry.Event{
			Kind:    telemetry.KindDecision,
			From:    model.AgentCoordinator,
			Summary: fmt.Sprintf("Found %d relevant memories", len(hits)),
			Detail:  "Will incorporate prior knowledge into response",
		})
	}
	return hits
}

// Plan builds the execution plan for a classified query
func (o *Orchestrator) Plan(ctx context.Context, query string, complexity model.Complexity, memory []*model.ScoredRecord) *Plan {
	plan, decision := o.planner.plan(query, complexity, memory)

	if decision.SkipResearch {
		o.emit(ctx, telemetry.Event{
			Kind:    telemetry.KindDecision,
			From:    model.AgentCoordinator,
			Summary: "Skipping research - sufficient memory context",
			Detail:  fmt.Sprintf("Mean memory score %.2f over %d hits", decision.MeanScore, decision.Hits),
		})
	}
	o.emit(ctx, telemetry.Event{
		Kind:    telemetry.KindDecision,
		From:    model.AgentCoordinator,
		Summary: "Execution plan created: " + plan.Summary(),
		Detail:  fmt.Sprintf("Plan includes %d steps based on query requirements", len(plan.Steps)),
	})
	return plan
}

// StoreInteraction records the exchange as a conversation record and every
// research result as knowledge
func (o *Orchestrator) StoreInteraction(ctx context.Context, query string, complexity model.Complexity, response string, results []*Result) error {
	md := model.NewMetadata(
		model.MetaComplexity, string(complexity),
		model.MetaQuery, query,
		model.MetaAgent, string(model.AgentCoordinator),
	)
	if _, err := o.memory.Store(ctx, model.CategoryConversation, response, md); err != nil {
		return goerr.Wrap(err, "failed to store conversation")
	}

	for _, r := range results {
		for _, rec := range r.Research {
			md := model.NewMetadata(
				model.MetaTopic, rec.Topic,
				model.MetaSource, rec.Source,
				model.MetaConfidence, rec.Confidence,
				model.MetaAgent, string(model.AgentResearch),
			)
			if _, err := o.memory.Store(ctx, model.CategoryKnowledge, rec.Summary, md); err != nil {
				return goerr.Wrap(err, "failed to store knowledge", goerr.V("topic", rec.Topic))
			}
		}
	}

	stats := o.memory.Stats()
	o.emit(ctx, telemetry.Event{
		Kind:    telemetry.KindMemoryOperation,
		Summary: "STORE_INTERACTION",
		Detail: fmt.Sprintf("Stored interaction. Memory stats: conversations=%d knowledge=%d topics=%d index=%d",
			stats.ConversationCount, stats.KnowledgeCount, stats.KnowledgeTopics, stats.IndexSize),
	})
	return nil
}

// Status is a snapshot of the orchestrator and its collaborators
type Status struct {
	Coordinator    model.Agent          `json:"coordinator"`
	Agents         []model.Capabilities `json:"agents"`
	Memory         model.MemoryStats    `json:"memory_stats"`
	LastQuery      string               `json:"current_query,omitempty"`
	LastComplexity model.Complexity     `json:"complexity,omitempty"`
}

// Status returns memory statistics, collaborator capabilities and the last query
func (o *Orchestrator) Status(ctx context.Context) *Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return &Status{
		Coordinator: model.AgentCoordinator,
		Agents: []model.Capabilities{
			o.research.Capabilities(),
			o.reasoner.Capabilities(),
			o.memory.Capabilities(),
		},
		Memory:         o.memory.Stats(),
		LastQuery:      o.lastQuery,
		LastComplexity: o.lastComplexity,
	}
}

func (o *Orchestrator) emit(ctx context.Context, ev telemetry.Event) {
	if ev.Time.IsZero() {
		ev.Time = o.now()
	}
	o.sink.Emit(ctx, ev)
}

// send records the envelope of a call to a collaborator
func (o *Orchestrator) send(ctx context.Context, to model.Agent, msgType model.MessageType, payload map[string]any) {
	msg := model.NewMessage(model.AgentCoordinator, to, msgType, payload)
	o.emit(ctx, telemetry.Event{
		Kind:        telemetry.KindMessageSent,
		Time:        msg.Timestamp,
		From:        msg.Sender,
		To:          msg.Recipient,
		MessageType: msg.Type,
		Payload:     msg.Payload,
		Summary:     fmt.Sprintf("message %s", msg.ID),
	})
}
