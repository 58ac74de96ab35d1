package main

import (
	"context"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type record struct {
	Topic      string  `json:"topic"`
	Summary    string  `json:"summary"`
	Details    string  `json:"details"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

type researchParams struct {
	Topic string `json:"topic" jsonschema:"Topic to look up"`
}

type researchResult struct {
	Results []record `json:"results"`
}

var catalog = []record{
	{
		Topic:      "graph neural networks",
		Summary:    "Graph neural networks operate on graph-structured data.",
		Details:    "Message passing aggregates features from neighboring nodes.",
		Source:     "stdio fixture",
		Confidence: 0.77,
	},
}

// research answers every record whose topic contains the requested topic
func research(ctx context.Context, req *mcp.CallToolRequest, params *researchParams) (*mcp.CallToolResult, researchResult, error) {
	out := researchResult{Results: []record{}}
	for _, r := range catalog {
		if strings.Contains(r.Topic, strings.ToLower(params.Topic)) {
			out.Results = append(out.Results, r)
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "ok"},
		},
	}, out, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "test-stdio-server",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "research",
		Description: "Look up records about a topic",
	}, research)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
