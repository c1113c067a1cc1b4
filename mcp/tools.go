package mcp

import (
	goMCP "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/askdb/askdb/databases"
	"github.com/askdb/askdb/handlers"
	"github.com/askdb/askdb/pipeline"
	"github.com/askdb/askdb/schema"
)

func RegisterTools(s *server.MCPServer, orchestrator *pipeline.Orchestrator, db databases.Database, provider *schema.Provider) {
	// Ask tool
	askTool := goMCP.NewTool("ask",
		goMCP.WithDescription("Answer a natural language question by generating and running a read-only SQL query"),
		goMCP.WithString("question",
			goMCP.Required(),
			goMCP.Description("The question to answer from the database"),
		),
		goMCP.WithString("customer_id",
			goMCP.Description("Optional customer identifier for prompt and credential overrides"),
		),
	)

	// Sample tool
	sampleTool := goMCP.NewTool("sample_table",
		goMCP.WithDescription("Get sample data from a specific table"),
		goMCP.WithString("table",
			goMCP.Required(),
			goMCP.Description("Name of the table to sample"),
		),
		goMCP.WithNumber("limit",
			goMCP.Description("Number of rows to return (default: 10)"),
		),
	)

	// Scan tool
	scanTool := goMCP.NewTool("scan_schema",
		goMCP.WithDescription("Discover database tables, columns, keys and relationships"),
		goMCP.WithString("tables",
			goMCP.Description("Optional list of specific table names to scan. If empty, scans all tables"),
		),
	)

	// Describe tool
	describeTool := goMCP.NewTool("describe_table",
		goMCP.WithDescription("Get the columns, keys and relationships of one table"),
		goMCP.WithString("table",
			goMCP.Required(),
			goMCP.Description("Name of the table to describe"),
		),
	)

	// Refresh tool
	refreshTool := goMCP.NewTool("refresh_schema",
		goMCP.WithDescription("Reload the cached schema snapshot used for SQL generation"),
	)

	s.AddTool(askTool, handlers.AskHandler(orchestrator))
	s.AddTool(sampleTool, handlers.SampleHandler(db))
	s.AddTool(scanTool, handlers.ScanHandler(db))
	s.AddTool(describeTool, handlers.DescribeHandler(db))
	s.AddTool(refreshTool, handlers.RefreshHandler(provider))
}
