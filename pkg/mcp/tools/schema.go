package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
)

// listTablesResponse is the payload for the list_tables tool.
type listTablesResponse struct {
	Tables []string `json:"tables"`
	Count  int      `json:"count"`
}

// registerListTablesTool adds the list_tables tool for schema discovery.
func registerListTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_tables",
		mcp.WithDescription(
			"List all user tables in the public schema of the connected database. "+
				"Use this first to discover what data is available for analysis. "+
				"Example: list_tables()",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := deps.Engine.ListTables(ctx)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}

		return newJSONResult(listTablesResponse{
			Tables: tables,
			Count:  len(tables),
		})
	})
}

// tableSchemaResponse is the payload for the get_table_schema tool.
type tableSchemaResponse struct {
	Table   string                      `json:"table"`
	Columns []analysis.ColumnDescriptor `json:"columns"`
}

// registerTableSchemaTool adds the get_table_schema tool.
func registerTableSchemaTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_table_schema",
		mcp.WithDescription(
			"Get the column definitions of a table: name, data type, nullability, and default value. "+
				"Columns are returned in their declared order. "+
				"Example: get_table_schema(table='orders')",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to describe (e.g., 'orders')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		table = trimString(table)
		if table == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table' cannot be empty"), nil
		}

		columns, err := deps.Engine.TableSchema(ctx, table)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to get table schema: %w", err)
		}

		return newJSONResult(tableSchemaResponse{
			Table:   table,
			Columns: columns,
		})
	})
}

// tableSampleResponse is the payload for the get_table_sample tool.
type tableSampleResponse struct {
	Table    string           `json:"table"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// registerTableSampleTool adds the get_table_sample tool.
func registerTableSampleTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_table_sample",
		mcp.WithDescription(
			"Fetch the first rows of a table to inspect its contents. "+
				"Use before running statistics to understand value shapes. "+
				"Example: get_table_sample(table='orders', limit=5)",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to sample"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Optional - Maximum rows to return (default 10)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		table = trimString(table)
		if table == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table' cannot be empty"), nil
		}

		limit := deps.SampleLimit
		if val, ok := getOptionalInt(req, "limit"); ok {
			limit = val
		}
		if limit <= 0 {
			return NewErrorResult("invalid_parameters", "parameter 'limit' must be a positive integer"), nil
		}

		rows, err := deps.Engine.TableSample(ctx, table, limit)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to sample table: %w", err)
		}

		deps.Logger.Debug("table sampled",
			zap.String("table", table),
			zap.Int("rows", len(rows)))

		return newJSONResult(tableSampleResponse{
			Table:    table,
			Rows:     rows,
			RowCount: len(rows),
		})
	})
}
