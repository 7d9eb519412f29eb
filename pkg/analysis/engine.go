// Package analysis implements the analytical query core: schema
// introspection, dynamically assembled aggregate SQL, summary statistics,
// correlation, time-series trends, and outlier detection over a pooled
// PostgreSQL connection.
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/database"
)

// DefaultZScoreThreshold is the |z| cutoff when none is configured.
const DefaultZScoreThreshold = 3.0

// Engine executes analytical operations against one PostgreSQL database.
// Every operation borrows a connection from the pool for its full duration
// and releases it on all exit paths; operations are otherwise independent
// and safe to run concurrently.
type Engine struct {
	db         *database.DB
	logger     *zap.Logger
	zThreshold float64
}

// Options tunes engine behavior.
type Options struct {
	// ZScoreThreshold overrides the default |z| cutoff for anomaly
	// detection. Zero means DefaultZScoreThreshold.
	ZScoreThreshold float64
}

// New creates an analysis engine on top of an existing pool.
// If logger is nil, a no-op logger is used.
func New(db *database.DB, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := opts.ZScoreThreshold
	if threshold == 0 {
		threshold = DefaultZScoreThreshold
	}
	return &Engine{
		db:         db,
		logger:     logger,
		zThreshold: threshold,
	}
}

// ListTables returns all user tables in the public schema, alphabetically.
// An empty database yields an empty slice, not an error.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	return listTables(ctx, scope)
}

// TableSchema returns the column descriptors of a table in physical order.
func (e *Engine) TableSchema(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	exists, err := tableExists(ctx, scope, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, Validationf("table %q does not exist", table)
	}

	return tableSchema(ctx, scope, table)
}

// TableSample returns up to limit rows of a table.
func (e *Engine) TableSample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		return nil, Validationf("limit must be positive, got %d", limit)
	}

	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	exists, err := tableExists(ctx, scope, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, Validationf("table %q does not exist", table)
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT $1", quoteIdent(table))
	rows, err := scope.Query(ctx, query, limit)
	if err != nil {
		return nil, queryErrf("sample table", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

// RunQuery executes a prepared SELECT with positional arguments, capping the
// result at limit rows by wrapping the statement in a bounded subselect.
// Statement normalization and named-parameter substitution happen upstream
// in sqlcheck; this method only runs what it is given.
func (e *Engine) RunQuery(ctx context.Context, sql string, args []any, limit int) ([]map[string]any, error) {
	queryToRun := sql
	if limit > 0 {
		queryToRun = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sql, limit)
	}

	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	rows, err := scope.Query(ctx, queryToRun, args...)
	if err != nil {
		return nil, queryErrf("execute query", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

// NumericColumns returns the table's columns with numeric catalog types.
func (e *Engine) NumericColumns(ctx context.Context, table string) ([]string, error) {
	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	return numericColumns(ctx, scope, table)
}

// DateColumns returns the table's columns with temporal catalog types.
func (e *Engine) DateColumns(ctx context.Context, table string) ([]string, error) {
	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	return dateColumns(ctx, scope, table)
}
