// Package mcpapi exposes the problem store over the Model Context
// Protocol so an LLM-driven client can analyze documents and query
// stored problems as tools.
package mcpapi

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesentry/codesentry/internal/version"
	"github.com/codesentry/codesentry/pkg/engine"
	"github.com/codesentry/codesentry/pkg/store"
)

// mcpLog logs to stderr — stdout is reserved for the MCP JSON-RPC
// transport.
var mcpLog = log.New(os.Stderr, "[sentry-mcp] ", log.Ltime)

// Server wraps a ProblemStore and a rule set for MCP tool access.
type Server struct {
	store  *store.ProblemStore
	rules  []engine.Rule
	server *mcp.Server
}

// NewServer creates a Server over st using rules for the
// analyze_document tool.
func NewServer(st *store.ProblemStore, rules []engine.Rule) *Server {
	return &Server{store: st, rules: rules}
}

// Run registers every tool and serves the MCP protocol over stdio
// until the client disconnects.
func (s *Server) Run() error {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "sentry",
			Version: version.Short(),
		},
		nil,
	)
	s.server = srv

	s.registerTools()

	mcpLog.Printf("MCP server ready, listening on stdio")
	return srv.Run(context.Background(), &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + message}},
		IsError: true,
	}
}

// =============================================================================
// Tool input types
// =============================================================================

type AnalyzeDocumentInput struct {
	URI    string `json:"uri" jsonschema:"Document URI or path, used for appliesTo and ignore-list matching"`
	LangID string `json:"lang_id" jsonschema:"Language id, e.g. go, python, c"`
	Text   string `json:"text" jsonschema:"Full document text to analyze"`
	Store  bool   `json:"store,omitempty" jsonschema:"Persist the results for later search/list (default false)"`
}

type ProblemsSearchInput struct {
	Query string `json:"query" jsonschema:"Full-text query over stored problem messages and rule names"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 20)"`
}

type ProblemsListInput struct {
	URI string `json:"uri" jsonschema:"Document URI to list stored problems for"`
}

type ProblemsStatsInput struct{}

// =============================================================================
// Tool registration
// =============================================================================

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "analyze_document",
		Description: `Run the security rule engine against a single document's text and
return the problems found. Pass store=true to also persist the results so
problems_search and problems_list can find them later.`,
	}, s.handleAnalyzeDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "problems_search",
		Description: `Full-text search over previously stored problems by keyword, matching
against rule names and messages. Use when looking for a specific kind of
finding by name rather than by file.`,
	}, s.handleProblemsSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "problems_list",
		Description: `List every problem currently stored for a given document URI.`,
	}, s.handleProblemsList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "problems_stats",
		Description: `Return a total problem count with a breakdown by severity.`,
	}, s.handleProblemsStats)
}

// =============================================================================
// Tool handlers
// =============================================================================

func (s *Server) handleAnalyzeDocument(_ context.Context, _ *mcp.CallToolRequest, input AnalyzeDocumentInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: analyze_document uri=%s lang=%s", input.URI, input.LangID)

	problems := engine.Analyze(input.Text, input.LangID, input.URI, s.rules, engine.Settings{})

	if input.Store {
		if s.store == nil {
			return errorResult("problem store not available"), nil, nil
		}
		if err := s.store.ReplaceForFile(input.URI, problems); err != nil {
			return errorResult(fmt.Sprintf("storing results: %v", err)), nil, nil
		}
	}

	if len(problems) == 0 {
		return textResult("No problems found."), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d problems:\n\n", len(problems)))
	for _, p := range problems {
		sb.WriteString(formatProblemLine(input.URI, p))
	}
	return textResult(sb.String()), nil, nil
}

func (s *Server) handleProblemsSearch(_ context.Context, _ *mcp.CallToolRequest, input ProblemsSearchInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: problems_search query=%q", input.Query)

	if s.store == nil {
		return errorResult("problem store not available"), nil, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	records, err := s.store.Search(input.Query, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	if len(records) == 0 {
		return textResult("No problems found."), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d problems:\n\n", len(records)))
	for _, rec := range records {
		sb.WriteString(formatProblemLine(rec.URI, rec.Problem))
	}
	return textResult(sb.String()), nil, nil
}

func (s *Server) handleProblemsList(_ context.Context, _ *mcp.CallToolRequest, input ProblemsListInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: problems_list uri=%s", input.URI)

	if s.store == nil {
		return errorResult("problem store not available"), nil, nil
	}

	problems, err := s.store.ListForFile(input.URI)
	if err != nil {
		return errorResult(fmt.Sprintf("list failed: %v", err)), nil, nil
	}
	if len(problems) == 0 {
		return textResult("No problems found."), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d problems:\n\n", len(problems)))
	for _, p := range problems {
		sb.WriteString(formatProblemLine(input.URI, p))
	}
	return textResult(sb.String()), nil, nil
}

func (s *Server) handleProblemsStats(_ context.Context, _ *mcp.CallToolRequest, _ ProblemsStatsInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: problems_stats")

	if s.store == nil {
		return errorResult("problem store not available"), nil, nil
	}

	stats, err := s.store.Stats()
	if err != nil {
		return errorResult(fmt.Sprintf("stats failed: %v", err)), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total problems: %d\n", stats.Total))
	for sev, count := range stats.BySeverity {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", sev, count))
	}
	return textResult(sb.String()), nil, nil
}

func formatProblemLine(uri string, p engine.Problem) string {
	return fmt.Sprintf("- [%s] %s:%d:%d %s — %s\n",
		p.Severity.String(), uri, p.Range.Start.Line+1, p.Range.Start.Character+1, p.RuleID, p.Message)
}
