package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/askdb/askdb/databases"
	"github.com/askdb/askdb/pipeline"
	"github.com/askdb/askdb/schema"
)

// AskHandler creates the handler for the ask tool. The pipeline result
// is always a well-formed envelope, so the handler only fails on
// marshaling.
func AskHandler(orchestrator *pipeline.Orchestrator) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing question parameter: %v", err)), nil
		}

		customerID := request.GetString("customer_id", "")

		result := orchestrator.Ask(ctx, question, customerID)

		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

// SampleHandler creates the handler for the sample_table tool.
func SampleHandler(db databases.Database) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := request.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing table parameter: %v", err)), nil
		}

		limit := request.GetInt("limit", 10)

		results, err := db.Sample(ctx, table, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Sample failed: %v", err)), nil
		}

		jsonData, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

// DescribeHandler creates the handler for the describe_table tool.
func DescribeHandler(db databases.Database) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := request.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing table parameter: %v", err)), nil
		}

		schema, err := db.DescribeTable(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Describe failed: %v", err)), nil
		}

		jsonData, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

// ScanHandler creates the handler for the scan_schema tool.
func ScanHandler(db databases.Database) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var tablesList []string

		if args, ok := request.Params.Arguments.(map[string]any); ok {
			if tablesParam, exists := args["tables"]; exists {
				if tablesArray, ok := tablesParam.([]interface{}); ok {
					for _, table := range tablesArray {
						if tableStr, ok := table.(string); ok {
							tablesList = append(tablesList, tableStr)
						}
					}
				}
			}
		}

		snapshot, err := db.Scan(ctx, tablesList)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Scan failed: %v", err)), nil
		}

		jsonData, err := json.MarshalIndent(snapshot.Tables, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

// RefreshHandler creates the handler for the refresh_schema tool. It
// reloads the pipeline's cached snapshot and samples from the live
// database.
func RefreshHandler(provider *schema.Provider) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := provider.Refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Refresh failed: %v", err)), nil
		}

		snapshot := provider.Current()
		return mcp.NewToolResultText(fmt.Sprintf("Schema refreshed: %d tables loaded", len(snapshot.Tables))), nil
	}
}
