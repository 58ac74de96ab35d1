package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrToolFailed is returned when a remote tool reports an error result
var ErrToolFailed = goerr.New("MCP tool returned an error")

// ResearchProvider delegates research to a tool of a connected MCP server.
// The tool takes {"topic": string} and answers {"results": [record...]}.
type ResearchProvider struct {
	client *Client
	server string
	tool   string
}

// NewResearchProvider creates a provider calling tool on server. The server
// must already be connected to client.
func NewResearchProvider(client *Client, server, tool string) (*ResearchProvider, error) {
	tools, err := client.GetTools(server)
	if err != nil {
		return nil, err
	}
	if tool == "" {
		tool = ToolResearch
	}

	for _, t := range tools {
		if t.Name == tool {
			return &ResearchProvider{client: client, server: server, tool: tool}, nil
		}
	}
	return nil, goerr.New("research tool not offered by server",
		goerr.V("server", server),
		goerr.V("tool", tool))
}

func (p *ResearchProvider) Research(ctx context.Context, topic string) ([]model.ResearchRecord, error) {
	result, err := p.client.CallTool(ctx, p.server, p.tool, map[string]any{"topic": topic})
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, goerr.Wrap(ErrToolFailed, textOf(result),
			goerr.V("server", p.server),
			goerr.V("tool", p.tool))
	}

	out, err := decodeResearch(result)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode research result",
			goerr.V("server", p.server),
			goerr.V("tool", p.tool))
	}
	if out.Results == nil {
		out.Results = []model.ResearchRecord{}
	}
	return out.Results, nil
}

// decodeResearch reads structured content when present and falls back to a
// JSON text block
func decodeResearch(result *mcp.CallToolResult) (*researchOutput, error) {
	var raw []byte
	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal structured content")
		}
		raw = data
	} else {
		raw = []byte(textOf(result))
	}

	var out researchOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, goerr.Wrap(err, "invalid research payload", goerr.V("payload", string(raw)))
	}
	return &out, nil
}

func textOf(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func (p *ResearchProvider) Capabilities() model.Capabilities {
	return model.Capabilities{
		Name: model.AgentResearch,
		Role: "Information Retrieval via MCP server " + p.server,
		Capabilities: []string{
			"Delegate topic lookups to tool " + p.tool,
			"Return source provenance and confidence scores",
		},
		NoCapabilities: []string{
			"Cannot perform analysis or reasoning",
		},
	}
}
