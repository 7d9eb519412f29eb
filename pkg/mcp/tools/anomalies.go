package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
)

// detectAnomaliesResponse is the payload for the detect_anomalies tool.
type detectAnomaliesResponse struct {
	Table        string             `json:"table"`
	Column       string             `json:"column"`
	Method       string             `json:"method"`
	Anomalies    []analysis.Anomaly `json:"anomalies"`
	AnomalyCount int                `json:"anomaly_count"`
}

// registerDetectAnomaliesTool adds the detect_anomalies tool.
func registerDetectAnomaliesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"detect_anomalies",
		mcp.WithDescription(
			"Find outlier values in a numeric column. Method 'zscore' flags values "+
				"more than the configured number of standard deviations from the mean; "+
				"'iqr' flags values outside 1.5x the interquartile range. Each anomaly "+
				"includes the full row it came from. The whole column is scanned, so "+
				"prefer filtered tables for very large datasets. "+
				"Example: detect_anomalies(table='orders', column='total', method='iqr')",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name to scan"),
		),
		mcp.WithString(
			"column",
			mcp.Required(),
			mcp.Description("Numeric column to check for outliers"),
		),
		mcp.WithString(
			"method",
			mcp.Description("Optional - Detection method: 'zscore' or 'iqr' (default zscore)"),
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

		column, err := req.RequireString("column")
		if err != nil {
			return nil, err
		}
		column = trimString(column)
		if column == "" {
			return NewErrorResult("invalid_parameters", "parameter 'column' cannot be empty"), nil
		}

		method := trimString(getOptionalString(req, "method"))
		if method == "" {
			method = string(analysis.MethodZScore)
		}

		anomalies, err := deps.Engine.DetectAnomalies(ctx, table, column, method)
		if err != nil {
			if errResult := resultFromAnalysisError(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to detect anomalies: %w", err)
		}

		deps.Logger.Debug("anomaly detection complete",
			zap.String("table", table),
			zap.String("column", column),
			zap.String("method", method),
			zap.Int("anomalies", len(anomalies)))

		return newJSONResult(detectAnomaliesResponse{
			Table:        table,
			Column:       column,
			Method:       method,
			Anomalies:    anomalies,
			AnomalyCount: len(anomalies),
		})
	})
}
