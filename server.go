package govrag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/civicqa/govrag/ingest"
)

// NewServer exposes the pipeline as MCP tools: query, ingest and stats.
func NewServer(client *Client, pipeline *ingest.Pipeline, version string) *server.MCPServer {
	s := server.NewMCPServer("govrag", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("query",
		mcp.WithDescription("Answer a question from the crawled government-page knowledge base, with cited sources."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The natural-language question.")),
		mcp.WithNumber("top_k", mcp.Description("Candidate budget after the similarity cutoff.")),
		mcp.WithNumber("top_n", mcp.Description("Number of sources handed to generation.")),
		mcp.WithString("content_type", mcp.Description("Restrict sources to one content type: html, pdf, faq or form.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts := QueryOptions{
			TopK: req.GetInt("top_k", 0),
			TopN: req.GetInt("top_n", 0),
		}
		if ct := req.GetString("content_type", ""); ct != "" {
			opts.Filters = map[string]string{"content_type": ct}
		}
		return toolJSON(client.Answer(ctx, query, opts))
	})

	s.AddTool(mcp.NewTool("ingest",
		mcp.WithDescription("Crawl and index a list of page urls into the knowledge base."),
		mcp.WithString("urls", mcp.Required(), mcp.Description("Newline- or comma-separated page urls.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("urls")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		urls := splitURLs(raw)
		if len(urls) == 0 {
			return mcp.NewToolResultError("no urls supplied"), nil
		}
		report, err := pipeline.Run(ctx, urls)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		return toolJSON(report)
	})

	s.AddTool(mcp.NewTool("stats",
		mcp.WithDescription("Report the vector collection's name, point count and dimensionality."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := client.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		return toolJSON(info)
	})

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func splitURLs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ',' || r == ' ' || r == '\t'
	})
	urls := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			urls = append(urls, f)
		}
	}
	return urls
}
