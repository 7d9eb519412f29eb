package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
)

// summaryStatisticsResponse is the payload for the get_summary_statistics tool.
type summaryStatisticsResponse struct {
	Table      string                          `json:"table"`
	Statistics map[string]analysis.StatSummary `json:"statistics"`
}

// registerSummaryStatisticsTool adds the get_summary_statistics tool.
func registerSummaryStatisticsTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_summary_statistics",
		mcp.WithDescription(
			"Compute count, mean, median, min, max, standard deviation, and variance "+
				"for numeric columns of a table. NULL values are excluded. "+
				"Omit 'columns' to analyze every numeric column. "+
				"Example: get_summary_statistics(table='orders', columns=['total', 'quantity'])",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to analyze"),
		),
		mcp.WithArray(
			"columns",
			mcp.Description("Optional - Numeric columns to analyze (default: all numeric columns)"),
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

		columns, err := getOptionalStringSlice(req, "columns")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		stats, err := deps.Engine.SummaryStatistics(ctx, table, columns)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to compute summary statistics: %w", err)
		}

		return newJSONResult(summaryStatisticsResponse{
			Table:      table,
			Statistics: stats,
		})
	})
}

// correlationsResponse is the payload for the analyze_correlations tool.
type correlationsResponse struct {
	Table        string                        `json:"table"`
	Correlations map[string]map[string]float64 `json:"correlations"`
}

// registerCorrelationsTool adds the analyze_correlations tool.
func registerCorrelationsTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"analyze_correlations",
		mcp.WithDescription(
			"Compute pairwise Pearson correlation coefficients between numeric columns. "+
				"Rows with a NULL in any analyzed column are excluded. At least two numeric "+
				"columns are required. Pairs with zero variance are omitted from the matrix. "+
				"Example: analyze_correlations(table='orders', columns=['total', 'quantity'])",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to analyze"),
		),
		mcp.WithArray(
			"columns",
			mcp.Description("Optional - Numeric columns to correlate (default: all numeric columns)"),
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

		columns, err := getOptionalStringSlice(req, "columns")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		matrix, err := deps.Engine.Correlations(ctx, table, columns)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to analyze correlations: %w", err)
		}

		return newJSONResult(correlationsResponse{
			Table:        table,
			Correlations: matrix,
		})
	})
}

// groupByResponse is the payload for the group_by_analysis tool.
type groupByResponse struct {
	Table       string           `json:"table"`
	GroupColumn string           `json:"group_column"`
	Groups      []map[string]any `json:"groups"`
	GroupCount  int              `json:"group_count"`
}

// registerGroupByTool adds the group_by_analysis tool.
func registerGroupByTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"group_by_analysis",
		mcp.WithDescription(
			"Aggregate numeric columns per distinct value of a grouping column. "+
				"The 'aggregations' object maps column names to lists of functions: "+
				"count, sum, mean, median, min, max, std, var. Result columns are "+
				"named <column>_<function>. "+
				"Example: group_by_analysis(table='orders', group_column='region', aggregations={'total': ['sum', 'mean']})",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to analyze"),
		),
		mcp.WithString(
			"group_column",
			mcp.Required(),
			mcp.Description("Column whose distinct values define the groups"),
		),
		mcp.WithObject(
			"aggregations",
			mcp.Required(),
			mcp.Description("Mapping of column name to list of aggregate functions"),
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

		groupColumn, err := req.RequireString("group_column")
		if err != nil {
			return nil, err
		}
		groupColumn = trimString(groupColumn)
		if groupColumn == "" {
			return NewErrorResult("invalid_parameters", "parameter 'group_column' cannot be empty"), nil
		}

		rawAggs, ok := getOptionalMap(req, "aggregations")
		if !ok || len(rawAggs) == 0 {
			return NewErrorResult("invalid_parameters", "parameter 'aggregations' must be a non-empty object"), nil
		}

		spec, err := parseAggregationSpec(rawAggs)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		groups, err := deps.Engine.GroupBy(ctx, table, groupColumn, spec)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to run group-by analysis: %w", err)
		}

		deps.Logger.Debug("group-by analysis complete",
			zap.String("table", table),
			zap.String("group_column", groupColumn),
			zap.Int("groups", len(groups)))

		return newJSONResult(groupByResponse{
			Table:       table,
			GroupColumn: groupColumn,
			Groups:      groups,
			GroupCount:  len(groups),
		})
	})
}

// parseAggregationSpec converts the raw JSON object from the tool arguments
// into an aggregation spec. Values must be arrays of function-name strings.
func parseAggregationSpec(raw map[string]any) (analysis.AggregationSpec, error) {
	spec := make(analysis.AggregationSpec, len(raw))
	for column, value := range raw {
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("aggregations for column %q must be an array of function names", column)
		}
		fns := make([]string, 0, len(list))
		for _, item := range list {
			fn, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("aggregations for column %q must contain only strings", column)
			}
			fns = append(fns, fn)
		}
		spec[column] = fns
	}
	return spec, nil
}

// registerTimeSeriesTool adds the time_series_analysis tool.
func registerTimeSeriesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"time_series_analysis",
		mcp.WithDescription(
			"Bucket a numeric column over time and summarize each bucket "+
				"(count, mean, min, max, std), plus an overall trend between the "+
				"first and last bucket means. Supported intervals: day, week, month, "+
				"quarter, year. "+
				"Example: time_series_analysis(table='orders', date_column='created_at', value_column='total', interval='month')",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to analyze"),
		),
		mcp.WithString(
			"date_column",
			mcp.Required(),
			mcp.Description("Date or timestamp column that defines the buckets"),
		),
		mcp.WithString(
			"value_column",
			mcp.Required(),
			mcp.Description("Numeric column to summarize per bucket"),
		),
		mcp.WithString(
			"interval",
			mcp.Description("Optional - Bucket width: day, week, month, quarter, or year (default month)"),
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

		dateColumn, err := req.RequireString("date_column")
		if err != nil {
			return nil, err
		}
		dateColumn = trimString(dateColumn)
		if dateColumn == "" {
			return NewErrorResult("invalid_parameters", "parameter 'date_column' cannot be empty"), nil
		}

		valueColumn, err := req.RequireString("value_column")
		if err != nil {
			return nil, err
		}
		valueColumn = trimString(valueColumn)
		if valueColumn == "" {
			return NewErrorResult("invalid_parameters", "parameter 'value_column' cannot be empty"), nil
		}

		interval := trimString(getOptionalString(req, "interval"))
		if interval == "" {
			interval = string(analysis.IntervalMonth)
		}

		result, err := deps.Engine.TimeSeries(ctx, table, dateColumn, valueColumn, interval)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to run time-series analysis: %w", err)
		}

		return newJSONResult(result)
	})
}
