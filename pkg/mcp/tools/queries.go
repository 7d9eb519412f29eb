package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/logging"
	"github.com/datascope-io/datascope-engine/pkg/sqlcheck"
)

// runQueryResponse is the payload for the run_query tool.
type runQueryResponse struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Capped   bool             `json:"capped"`
}

// registerRunQueryTool adds the run_query tool for ad-hoc read queries.
func registerRunQueryTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"run_query",
		mcp.WithDescription(
			"Execute an ad-hoc SQL query against the database and return the rows. "+
				"Only a single statement is allowed. Use {{parameter_name}} placeholders "+
				"for values and supply them in 'params' - never inline user-provided "+
				"values into the SQL text. Results are capped; use aggregation when you "+
				"need totals over large tables. "+
				"Example: run_query(sql='SELECT * FROM orders WHERE region = {{region}}', params={'region': 'west'})",
		),
		mcp.WithString(
			"sql",
			mcp.Required(),
			mcp.Description("SQL query to execute, optionally with {{name}} placeholders"),
		),
		mcp.WithObject(
			"params",
			mcp.Description("Optional - Values for {{name}} placeholders, keyed by name"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlQuery, err := req.RequireString("sql")
		if err != nil {
			return nil, err
		}
		sqlQuery = trimString(sqlQuery)
		if sqlQuery == "" {
			return NewErrorResult("invalid_parameters", "parameter 'sql' cannot be empty"), nil
		}

		normalized, err := sqlcheck.Normalize(sqlQuery)
		if err != nil {
			return NewErrorResult("invalid_sql", err.Error()), nil
		}

		params, _ := getOptionalMap(req, "params")

		if flagged := sqlcheck.CheckAllParameters(params); len(flagged) > 0 {
			names := make([]string, 0, len(flagged))
			for _, f := range flagged {
				names = append(names, f.ParamName)
			}
			deps.Logger.Warn("rejected query parameters flagged for SQL injection",
				zap.Strings("params", names))
			return NewErrorResultWithDetails(
				"injection_detected",
				"one or more parameter values contain SQL injection patterns",
				map[string]any{"flagged_params": names},
			), nil
		}

		prepared, args, err := sqlcheck.Substitute(normalized, params)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		// Fetch one row past the cap so a result of exactly cap rows is
		// distinguishable from a truncated one.
		fetchLimit := 0
		if deps.QueryRowCap > 0 {
			fetchLimit = deps.QueryRowCap + 1
		}

		rows, err := deps.Engine.RunQuery(ctx, prepared, args, fetchLimit)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
		rows, capped := capRows(rows, deps.QueryRowCap)

		deps.Logger.Debug("ad-hoc query executed",
			zap.String("query", logging.SanitizeQuery(prepared)),
			zap.Int("rows", len(rows)),
			zap.Bool("capped", capped))

		return newJSONResult(runQueryResponse{
			Rows:     rows,
			RowCount: len(rows),
			Capped:   capped,
		})
	})
}
