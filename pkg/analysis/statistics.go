package analysis

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"go.uber.org/zap"
)

// StatSummary is the per-column result of summary statistics. Numeric fields
// are nil when the column has no non-null values (SQL aggregates over an
// empty set are NULL).
type StatSummary struct {
	Count    int64    `json:"count"`
	Mean     *float64 `json:"mean"`
	Median   *float64 `json:"median"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Std      *float64 `json:"std"`
	Variance *float64 `json:"variance"`
}

// SummaryStatistics computes count/mean/median/min/max/std/variance for the
// requested numeric columns, or for all numeric columns when none are named.
// One aggregate query runs per column; the first failing column aborts the
// whole call.
func (e *Engine) SummaryStatistics(ctx context.Context, table string, columns []string) (map[string]StatSummary, error) {
	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	targets, err := resolveNumericTargets(ctx, scope, table, columns)
	if err != nil {
		return nil, err
	}

	result := make(map[string]StatSummary, len(targets))
	for _, column := range targets {
		var s StatSummary
		row := scope.QueryRow(ctx, buildSummaryQuery(table, column))
		if err := row.Scan(&s.Count, &s.Mean, &s.Median, &s.Min, &s.Max, &s.Std, &s.Variance); err != nil {
			return nil, queryErrf("summary statistics for "+column, err)
		}
		result[column] = s
	}

	return result, nil
}

// Correlations computes the pairwise Pearson correlation matrix over the
// requested numeric columns, using only rows where every column is non-null.
// Coefficients are rounded to 4 decimal digits. Pairs whose correlation is
// undefined (a zero-variance column) are omitted from the matrix.
func (e *Engine) Correlations(ctx context.Context, table string, columns []string) (map[string]map[string]float64, error) {
	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	targets, err := resolveNumericTargets(ctx, scope, table, columns)
	if err != nil {
		return nil, err
	}
	if len(targets) < 2 {
		return nil, Validationf("correlation analysis needs at least 2 numeric columns, got %d", len(targets))
	}

	rows, err := scope.Query(ctx, buildCorrelationQuery(table, targets))
	if err != nil {
		return nil, queryErrf("correlation query", err)
	}
	defer rows.Close()

	vectors := make([][]float64, len(targets))
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, queryErrf("read correlation row", err)
		}
		for i := range targets {
			v, ok := asFloat64(values[i])
			if !ok {
				return nil, queryErrf("correlation query", Validationf("column %q returned a non-numeric value", targets[i]))
			}
			vectors[i] = append(vectors[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, queryErrf("iterate correlation rows", err)
	}

	matrix := make(map[string]map[string]float64, len(targets))
	for i, ci := range targets {
		matrix[ci] = make(map[string]float64, len(targets))
		for j, cj := range targets {
			r := pearson(vectors[i], vectors[j])
			if math.IsNaN(r) {
				continue
			}
			matrix[ci][cj] = roundTo(r, 4)
		}
	}

	return matrix, nil
}

// GroupBy runs grouped aggregation: one row per distinct value of the group
// column, with one result column per (column, function) pair in the spec,
// aliased {column}_{function}.
func (e *Engine) GroupBy(ctx context.Context, table, groupColumn string, spec AggregationSpec) ([]map[string]any, error) {
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

	schema, err := tableSchema(ctx, scope, table)
	if err != nil {
		return nil, err
	}
	allColumns := make([]string, len(schema))
	for i, c := range schema {
		allColumns[i] = c.ColumnName
	}
	if !contains(allColumns, groupColumn) {
		return nil, Validationf("group column %q does not exist", groupColumn)
	}

	numeric, err := numericColumns(ctx, scope, table)
	if err != nil {
		return nil, err
	}

	terms, err := spec.resolve(allColumns, numeric)
	if err != nil {
		return nil, err
	}

	query := buildGroupByQuery(table, groupColumn, terms)
	e.logger.Debug("group-by analysis",
		zap.String("table", table),
		zap.String("group_column", groupColumn),
		zap.Int("terms", len(terms)))

	rows, err := scope.Query(ctx, query)
	if err != nil {
		return nil, queryErrf("group-by query", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

// TimeSeriesPoint is one aggregated time bucket. Std is nil for single-row
// buckets (sample STDDEV of one value is NULL).
type TimeSeriesPoint struct {
	TimeBucket time.Time `json:"time_bucket"`
	Count      int64     `json:"count"`
	Mean       *float64  `json:"mean"`
	Min        *float64  `json:"min"`
	Max        *float64  `json:"max"`
	Std        *float64  `json:"std"`
}

// TrendSummary compares the first and last bucket means. PercentChange is
// +Inf when the first mean is exactly zero and the change is nonzero; it
// serializes as the JSON string "Infinity" since JSON has no infinity
// literal.
type TrendSummary struct {
	OverallChange  float64 `json:"overall_change"`
	PercentChange  float64 `json:"percent_change"`
	TrendDirection string  `json:"trend_direction"`
}

// MarshalJSON emits infinities as strings; encoding/json rejects them as
// numbers.
func (t TrendSummary) MarshalJSON() ([]byte, error) {
	var pc any = t.PercentChange
	switch {
	case math.IsInf(t.PercentChange, 1):
		pc = "Infinity"
	case math.IsInf(t.PercentChange, -1):
		pc = "-Infinity"
	}
	return json.Marshal(struct {
		OverallChange  float64 `json:"overall_change"`
		PercentChange  any     `json:"percent_change"`
		TrendDirection string  `json:"trend_direction"`
	}{t.OverallChange, pc, t.TrendDirection})
}

// TimeSeriesResult is the full time-series analysis payload. Trends is nil
// when fewer than two buckets exist.
type TimeSeriesResult struct {
	TimeSeriesData []TimeSeriesPoint `json:"time_series_data"`
	Trends         *TrendSummary     `json:"trends"`
}

// TimeSeries buckets a numeric value column by a truncated time column and
// aggregates per bucket, ascending. The column-classification queries and
// the main query run on the same borrowed connection.
func (e *Engine) TimeSeries(ctx context.Context, table, timeColumn, valueColumn, interval string) (*TimeSeriesResult, error) {
	bucket, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	dates, err := dateColumns(ctx, scope, table)
	if err != nil {
		return nil, err
	}
	if !contains(dates, timeColumn) {
		return nil, Validationf("column %q is not a date/time column", timeColumn)
	}

	numeric, err := numericColumns(ctx, scope, table)
	if err != nil {
		return nil, err
	}
	if !contains(numeric, valueColumn) {
		return nil, Validationf("column %q is not a numeric column", valueColumn)
	}

	rows, err := scope.Query(ctx, buildTimeSeriesQuery(table, timeColumn, valueColumn, bucket))
	if err != nil {
		return nil, queryErrf("time-series query", err)
	}
	defer rows.Close()

	var points []TimeSeriesPoint
	for rows.Next() {
		var p TimeSeriesPoint
		if err := rows.Scan(&p.TimeBucket, &p.Count, &p.Mean, &p.Min, &p.Max, &p.Std); err != nil {
			return nil, queryErrf("scan time-series row", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErrf("iterate time-series rows", err)
	}

	result := &TimeSeriesResult{TimeSeriesData: points}
	if len(points) > 1 && points[0].Mean != nil && points[len(points)-1].Mean != nil {
		result.Trends = computeTrend(*points[0].Mean, *points[len(points)-1].Mean)
	}

	return result, nil
}

// computeTrend compares the first and last bucket means. Direction is
// "stable" only when the change is exactly zero.
func computeTrend(first, last float64) *TrendSummary {
	change := last - first

	var percent float64
	switch {
	case first != 0:
		percent = roundTo(change/first*100, 2)
	case change != 0:
		percent = math.Inf(1)
	}

	direction := "stable"
	if change > 0 {
		direction = "up"
	} else if change < 0 {
		direction = "down"
	}

	return &TrendSummary{
		OverallChange:  roundTo(change, 2),
		PercentChange:  percent,
		TrendDirection: direction,
	}
}

// resolveNumericTargets validates the table and expands/validates the column
// selection against the table's numeric columns.
func resolveNumericTargets(ctx context.Context, q Querier, table string, columns []string) ([]string, error) {
	exists, err := tableExists(ctx, q, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, Validationf("table %q does not exist", table)
	}

	numeric, err := numericColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		if len(numeric) == 0 {
			return nil, Validationf("table %q has no numeric columns", table)
		}
		return numeric, nil
	}

	for _, col := range columns {
		if !contains(numeric, col) {
			return nil, Validationf("column %q is not a numeric column of table %q", col, table)
		}
	}
	return columns, nil
}

// pearson computes the Pearson correlation coefficient of two equal-length
// vectors. Returns NaN when either vector has zero variance or fewer than
// two observations.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return math.NaN()
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}
