// Package tools provides MCP tool implementations for datascope-engine.
package tools

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
)

// Deps contains dependencies shared by the analysis tools.
type Deps struct {
	Engine *analysis.Engine
	Logger *zap.Logger

	// SampleLimit is the default row count for get_table_sample.
	SampleLimit int
	// QueryRowCap bounds the rows any run_query invocation can return.
	QueryRowCap int
}

// RegisterAnalysisTools registers every analysis MCP tool on the server.
func RegisterAnalysisTools(s *server.MCPServer, deps *Deps) {
	registerListTablesTool(s, deps)
	registerTableSchemaTool(s, deps)
	registerTableSampleTool(s, deps)
	registerRunQueryTool(s, deps)
	registerSummaryStatisticsTool(s, deps)
	registerCorrelationsTool(s, deps)
	registerGroupByTool(s, deps)
	registerTimeSeriesTool(s, deps)
	registerDetectAnomaliesTool(s, deps)
}
