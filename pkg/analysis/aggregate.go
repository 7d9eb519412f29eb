package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// AggFunc is the closed vocabulary of aggregation functions. Unknown names
// are rejected at parse time, so SQL assembly only ever sees a valid member.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggMean
	AggMedian
	AggMin
	AggMax
	AggStd
	AggVar
)

var aggFuncNames = map[AggFunc]string{
	AggCount:  "count",
	AggSum:    "sum",
	AggMean:   "mean",
	AggMedian: "median",
	AggMin:    "min",
	AggMax:    "max",
	AggStd:    "std",
	AggVar:    "var",
}

func (f AggFunc) String() string { return aggFuncNames[f] }

// ParseAggFunc resolves a function name from the request vocabulary.
func ParseAggFunc(name string) (AggFunc, error) {
	for f, n := range aggFuncNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return 0, Validationf("unsupported aggregation function: %q", name)
}

// sqlExpr returns the SQL aggregate expression for an already-quoted column.
// The switch is exhaustive over the enum; there is no error path.
func (f AggFunc) sqlExpr(quotedCol string) string {
	switch f {
	case AggCount:
		return fmt.Sprintf("COUNT(%s)", quotedCol)
	case AggSum:
		return fmt.Sprintf("SUM(%s)", quotedCol)
	case AggMean:
		return fmt.Sprintf("AVG(%s)", quotedCol)
	case AggMedian:
		return fmt.Sprintf("PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s)", quotedCol)
	case AggMin:
		return fmt.Sprintf("MIN(%s)", quotedCol)
	case AggMax:
		return fmt.Sprintf("MAX(%s)", quotedCol)
	case AggStd:
		return fmt.Sprintf("STDDEV(%s)", quotedCol)
	case AggVar:
		return fmt.Sprintf("VAR_POP(%s)", quotedCol)
	}
	panic(fmt.Sprintf("unhandled aggregation function %d", int(f)))
}

// needsNumeric reports whether the function only makes sense on a numeric
// column. COUNT, MIN and MAX work on any comparable type.
func (f AggFunc) needsNumeric() bool {
	switch f {
	case AggCount, AggMin, AggMax:
		return false
	default:
		return true
	}
}

// Interval is the closed set of time-bucket granularities for DATE_TRUNC.
type Interval string

const (
	IntervalDay     Interval = "day"
	IntervalWeek    Interval = "week"
	IntervalMonth   Interval = "month"
	IntervalQuarter Interval = "quarter"
	IntervalYear    Interval = "year"
)

// ParseInterval resolves a bucket granularity name.
func ParseInterval(name string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(name))) {
	case IntervalDay:
		return IntervalDay, nil
	case IntervalWeek:
		return IntervalWeek, nil
	case IntervalMonth:
		return IntervalMonth, nil
	case IntervalQuarter:
		return IntervalQuarter, nil
	case IntervalYear:
		return IntervalYear, nil
	}
	return "", Validationf("unsupported time interval: %q", name)
}

// dateTrunc returns the DATE_TRUNC expression for an already-quoted column.
func (i Interval) dateTrunc(quotedCol string) string {
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", i, quotedCol)
}

// AggregationSpec maps column names to requested aggregation function names,
// as received from the caller. Validate resolves it against a table's live
// schema into a deterministic list of aggregate terms.
type AggregationSpec map[string][]string

// aggTerm is one resolved aggregate expression with its result alias.
type aggTerm struct {
	column string
	fn     AggFunc
}

func (t aggTerm) alias() string { return t.column + "_" + t.fn.String() }

// resolve validates the spec against the table's columns and returns terms
// in deterministic (column, function) order. Numeric-only functions require
// the column to be in the numeric set; COUNT/MIN/MAX only require existence.
func (spec AggregationSpec) resolve(allColumns, numeric []string) ([]aggTerm, error) {
	if len(spec) == 0 {
		return nil, Validationf("aggregation spec is empty")
	}

	columns := make([]string, 0, len(spec))
	for col := range spec {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var terms []aggTerm
	for _, col := range columns {
		if !contains(allColumns, col) {
			return nil, Validationf("column %q does not exist", col)
		}
		if len(spec[col]) == 0 {
			return nil, Validationf("no aggregation functions requested for column %q", col)
		}
		for _, name := range spec[col] {
			fn, err := ParseAggFunc(name)
			if err != nil {
				return nil, err
			}
			if fn.needsNumeric() && !contains(numeric, col) {
				return nil, Validationf("column %q is not numeric; %s requires a numeric column", col, fn)
			}
			terms = append(terms, aggTerm{column: col, fn: fn})
		}
	}
	return terms, nil
}

// quoteIdent quotes a validated identifier for interpolation into SQL.
// Identifiers reach this point only after a catalog check; quoting is the
// second line of defense.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildSummaryQuery assembles the single-column aggregate query behind
// summary statistics. NULLs are excluded so COUNT reflects the non-null set.
func buildSummaryQuery(table, column string) string {
	col := quoteIdent(column)
	return fmt.Sprintf(`
		SELECT
			COUNT(%s)::bigint AS count,
			AVG(%s)::float8 AS mean,
			(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s))::float8 AS median,
			MIN(%s)::float8 AS min,
			MAX(%s)::float8 AS max,
			STDDEV(%s)::float8 AS std,
			VAR_POP(%s)::float8 AS variance
		FROM %s
		WHERE %s IS NOT NULL`,
		col, col, col, col, col, col, col, quoteIdent(table), col)
}

// buildGroupByQuery assembles the grouped aggregation query from resolved
// terms. Result columns are aliased {column}_{function}.
func buildGroupByQuery(table, groupColumn string, terms []aggTerm) string {
	groupCol := quoteIdent(groupColumn)

	exprs := make([]string, 0, len(terms))
	for _, t := range terms {
		exprs = append(exprs, fmt.Sprintf("%s AS %s", t.fn.sqlExpr(quoteIdent(t.column)), quoteIdent(t.alias())))
	}

	return fmt.Sprintf(`
		SELECT %s, %s
		FROM %s
		GROUP BY %s
		ORDER BY %s`,
		groupCol, strings.Join(exprs, ", "), quoteIdent(table), groupCol, groupCol)
}

// buildTimeSeriesQuery assembles the bucketed aggregation query. Buckets are
// ordered ascending; rows where either column is NULL are excluded.
func buildTimeSeriesQuery(table, timeColumn, valueColumn string, interval Interval) string {
	timeCol := quoteIdent(timeColumn)
	valueCol := quoteIdent(valueColumn)

	return fmt.Sprintf(`
		SELECT
			%s AS time_bucket,
			COUNT(*)::bigint AS count,
			AVG(%s)::float8 AS mean,
			MIN(%s)::float8 AS min,
			MAX(%s)::float8 AS max,
			STDDEV(%s)::float8 AS std
		FROM %s
		WHERE %s IS NOT NULL AND %s IS NOT NULL
		GROUP BY time_bucket
		ORDER BY time_bucket`,
		interval.dateTrunc(timeCol), valueCol, valueCol, valueCol, valueCol,
		quoteIdent(table), timeCol, valueCol)
}

// buildCorrelationQuery selects the requested columns for rows where every
// column is non-null, so each column vector has equal length.
func buildCorrelationQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	conds := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col) + "::float8"
		conds[i] = quoteIdent(col) + " IS NOT NULL"
	}

	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(quoted, ", "), quoteIdent(table), strings.Join(conds, " AND "))
}

// buildColumnScanQuery selects full rows for the outlier scan. The whole
// filtered table is materialized in memory; acceptable for analytical use,
// documented as the scalability ceiling of anomaly detection.
func buildColumnScanQuery(table, column string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s IS NOT NULL",
		quoteIdent(table), quoteIdent(column))
}
