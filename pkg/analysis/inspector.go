package analysis

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of a pgx connection the inspector and statistics
// queries need. Both *database.Scope and *pgxpool.Pool satisfy it, so an
// operation can run its validation query and its main query on the same
// borrowed connection.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ColumnDescriptor describes one column of a user table, in catalog order.
type ColumnDescriptor struct {
	ColumnName   string  `json:"column_name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	DefaultValue *string `json:"default_value"`
}

// Schema metadata is never cached: every call re-queries the catalog so the
// result reflects the live schema.

func listTables(ctx context.Context, q Querier) ([]string, error) {
	const query = `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, queryErrf("list tables", err)
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, queryErrf("scan table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErrf("iterate tables", err)
	}

	return tables, nil
}

func tableSchema(ctx context.Context, q Querier, table string) ([]ColumnDescriptor, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS is_nullable,
			column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`

	rows, err := q.Query(ctx, query, table)
	if err != nil {
		return nil, queryErrf("query table schema", err)
	}
	defer rows.Close()

	var columns []ColumnDescriptor
	for rows.Next() {
		var c ColumnDescriptor
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.DefaultValue); err != nil {
			return nil, queryErrf("scan column", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErrf("iterate columns", err)
	}

	return columns, nil
}

// numericTypes is the fixed set of catalog types treated as numeric.
var numericTypes = []string{
	"integer", "bigint", "smallint", "decimal", "numeric",
	"real", "double precision", "float",
}

// dateTypes is the fixed set of catalog types treated as temporal.
var dateTypes = []string{
	"date", "timestamp", "timestamp without time zone", "timestamp with time zone",
}

func columnsOfTypes(ctx context.Context, q Querier, table string, types []string) ([]string, error) {
	const query = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND data_type = ANY($2)
		ORDER BY ordinal_position`

	rows, err := q.Query(ctx, query, table, types)
	if err != nil {
		return nil, queryErrf("query columns by type", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, queryErrf("scan column name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErrf("iterate columns", err)
	}

	return names, nil
}

func numericColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	return columnsOfTypes(ctx, q, table, numericTypes)
}

func dateColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	return columnsOfTypes(ctx, q, table, dateTypes)
}

// tableExists checks the catalog for a user table with the given name.
func tableExists(ctx context.Context, q Querier, table string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`

	var exists bool
	if err := q.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, queryErrf("check table exists", err)
	}
	return exists, nil
}

// columnExists checks the catalog for a column on the given table.
func columnExists(ctx context.Context, q Querier, table, column string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)`

	var exists bool
	if err := q.QueryRow(ctx, query, table, column).Scan(&exists); err != nil {
		return false, queryErrf("check column exists", err)
	}
	return exists, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
