package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const basicSQLGuide = `Guidelines for basic SQL queries against PostgreSQL:

1. Inspect all data in a table:
   SELECT * FROM table_name LIMIT 10;

2. Filter rows:
   SELECT * FROM table_name WHERE condition;
   Example: SELECT * FROM sales WHERE amount > 1000;

3. Aggregate:
   SELECT column, COUNT(*), SUM(amount), AVG(price)
   FROM table_name
   GROUP BY column;

4. Join tables:
   SELECT a.*, b.column_name
   FROM table_a a
   JOIN table_b b ON a.id = b.id;

5. Sort:
   SELECT * FROM table_name ORDER BY column_name [ASC|DESC];

Execute these with the run_query tool. Use {{name}} placeholders plus the
'params' argument for any value that comes from user input.`

const dataAnalysisTasks = `Suggested workflow for common data analysis tasks:

1. Exploratory analysis
   - list_tables to discover available data
   - get_table_schema to understand the structure
   - get_table_sample to look at real rows
   - get_summary_statistics for a statistical overview

2. Correlation analysis
   - analyze_correlations to find relationships between numeric columns

3. Group analysis
   - group_by_analysis to aggregate by category

4. Time series analysis
   - time_series_analysis to bucket a metric over time and read the trend

5. Outlier detection
   - detect_anomalies to surface unusual values with their source rows

Each tool documents its parameters; combine them as needed.`

// RegisterAnalysisPrompts registers reusable guidance prompts on the server.
func RegisterAnalysisPrompts(s *server.MCPServer) {
	s.AddPrompt(
		mcp.NewPrompt(
			"basic_sql_guide",
			mcp.WithPromptDescription("How to write basic SQL queries for the run_query tool"),
		),
		staticPrompt("Basic SQL query guide", basicSQLGuide),
	)

	s.AddPrompt(
		mcp.NewPrompt(
			"data_analysis_tasks",
			mcp.WithPromptDescription("Suggested tool sequences for common analysis tasks"),
		),
		staticPrompt("Common data analysis tasks", dataAnalysisTasks),
	)
}

// staticPrompt builds a handler that always returns the same user message.
func staticPrompt(description, text string) server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}
