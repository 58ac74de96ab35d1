package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/convene/pkg/interfaces"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/usecase/orchestrator"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ToolAsk          = "ask"
	ToolResearch     = "research"
	ToolMemorySearch = "memory_search"
	ToolMemoryStatus = "memory_status"

	defaultSearchLimit = 5
)

// Server exposes an orchestrator and its collaborators as MCP tools
type Server struct {
	mcp      *mcp.Server
	orch     *orchestrator.Orchestrator
	memory   interfaces.MemoryStore
	research interfaces.ResearchProvider
}

type askInput struct {
	Query string `json:"query" jsonschema:"Free-text question to answer"`
}

type askOutput struct {
	Response   string `json:"response" jsonschema:"Synthesized answer"`
	Complexity string `json:"complexity" jsonschema:"Query classification: simple, medium or complex"`
	Plan       string `json:"plan" jsonschema:"Agents invoked, in order"`
}

type researchInput struct {
	Topic string `json:"topic" jsonschema:"Topic to look up"`
}

type researchOutput struct {
	Results []model.ResearchRecord `json:"results" jsonschema:"Matching research records"`
}

type memorySearchInput struct {
	Query string `json:"query" jsonschema:"Search text"`
	Mode  string `json:"mode,omitempty" jsonschema:"vector, keyword or hybrid (default: hybrid)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type memoryHit struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp string         `json:"timestamp"`
	Score     float64        `json:"score"`
}

type memorySearchOutput struct {
	Query   string      `json:"query"`
	Results []memoryHit `json:"results"`
	Count   int         `json:"count"`
}

type memoryStatusInput struct{}

type memoryStatusOutput struct {
	Conversations   int    `json:"conversation_count"`
	Knowledge       int    `json:"total_knowledge"`
	KnowledgeTopics int    `json:"knowledge_topics"`
	AgentStates     int    `json:"agent_state_count"`
	IndexSize       int    `json:"vector_store_size"`
	LastQuery       string `json:"current_query"`
}

// NewServer creates an MCP server. research may be nil, in which case the
// research tool is not registered.
func NewServer(
	name, version string,
	orch *orchestrator.Orchestrator,
	memory interfaces.MemoryStore,
	research interfaces.ResearchProvider,
) *Server {
	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		orch:     orch,
		memory:   memory,
		research: research,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a question using research, analysis and conversation memory",
	}, s.ask)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolMemorySearch,
		Description: "Search conversation and knowledge memory",
	}, s.memorySearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolMemoryStatus,
		Description: "Report memory statistics",
	}, s.memoryStatus)

	if s.research != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        ToolResearch,
			Description: "Look up knowledge base records about a topic",
		}, s.lookup)
	}
}

func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
	answer, err := s.orch.Run(ctx, args.Query)
	if err != nil {
		return nil, askOutput{}, err
	}

	out := askOutput{
		Response:   answer.Response,
		Complexity: string(answer.Complexity),
		Plan:       answer.Plan.Summary(),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: answer.Response}},
	}, out, nil
}

func (s *Server) lookup(ctx context.Context, _ *mcp.CallToolRequest, args researchInput) (*mcp.CallToolResult, researchOutput, error) {
	records, err := s.research.Research(ctx, args.Topic)
	if err != nil {
		return nil, researchOutput{}, goerr.Wrap(err, "research failed", goerr.V("topic", args.Topic))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d records for %q", len(records), args.Topic)}},
	}, researchOutput{Results: records}, nil
}

func (s *Server) memorySearch(ctx context.Context, _ *mcp.CallToolRequest, args memorySearchInput) (*mcp.CallToolResult, memorySearchOutput, error) {
	mode := model.SearchMode(args.Mode)
	if mode == "" {
		mode = model.SearchModeHybrid
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := s.memory.Search(ctx, args.Query, mode, limit)
	if err != nil {
		return nil, memorySearchOutput{}, err
	}

	out := memorySearchOutput{
		Query:   args.Query,
		Results: make([]memoryHit, 0, len(hits)),
		Count:   len(hits),
	}
	for _, h := range hits {
		md := make(map[string]any, len(h.Metadata))
		for _, f := range h.Metadata {
			md[f.Key] = f.Value
		}
		out.Results = append(out.Results, memoryHit{
			ID:        string(h.ID),
			Category:  string(h.Category),
			Content:   h.Content,
			Metadata:  md,
			Timestamp: h.Timestamp.Format(time.RFC3339Nano),
			Score:     h.Score,
		})
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d memories", len(hits))}},
	}, out, nil
}

func (s *Server) memoryStatus(ctx context.Context, _ *mcp.CallToolRequest, _ memoryStatusInput) (*mcp.CallToolResult, memoryStatusOutput, error) {
	status := s.orch.Status(ctx)
	out := memoryStatusOutput{
		Conversations:   status.Memory.ConversationCount,
		Knowledge:       status.Memory.KnowledgeCount,
		KnowledgeTopics: status.Memory.KnowledgeTopics,
		AgentStates:     status.Memory.AgentStateCount,
		IndexSize:       status.Memory.IndexSize,
		LastQuery:       status.LastQuery,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d records in memory", status.Memory.Total())}},
	}, out, nil
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// RunStdio serves on stdin and stdout until ctx is done or the peer disconnects
func (s *Server) RunStdio(ctx context.Context) error {
	logging.From(ctx).Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

// Handler returns a streamable HTTP handler serving this server to every request
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}
