package analysis

import (
	"context"
	"math"
	"sort"
	"strings"
)

// DetectionMethod selects the outlier test applied to a column.
type DetectionMethod string

const (
	MethodZScore DetectionMethod = "zscore"
	MethodIQR    DetectionMethod = "iqr"
)

// ParseDetectionMethod resolves a method name.
func ParseDetectionMethod(name string) (DetectionMethod, error) {
	switch DetectionMethod(strings.ToLower(strings.TrimSpace(name))) {
	case MethodZScore:
		return MethodZScore, nil
	case MethodIQR:
		return MethodIQR, nil
	}
	return "", Validationf("unsupported anomaly detection method: %q", name)
}

// Bounds are the IQR outlier fences.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Anomaly is one flagged row. The diagnostic fields depend on the method:
// z-score fills ZScore and DistanceFromMean, IQR fills Bounds and
// DistanceFromBound.
type Anomaly struct {
	Row               map[string]any `json:"row"`
	Value             float64        `json:"value"`
	ZScore            *float64       `json:"z_score,omitempty"`
	DistanceFromMean  *float64       `json:"distance_from_mean,omitempty"`
	Bounds            *Bounds        `json:"bounds,omitempty"`
	DistanceFromBound *float64       `json:"distance_from_bound,omitempty"`
}

// DetectAnomalies scans the full non-null column into memory and applies the
// chosen statistical test. The scan materializes every row of the filtered
// table, which bounds the table sizes this can handle.
func (e *Engine) DetectAnomalies(ctx context.Context, table, column, method string) ([]Anomaly, error) {
	test, err := ParseDetectionMethod(method)
	if err != nil {
		return nil, err
	}

	scope, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, queryErrf("acquire connection", err)
	}
	defer scope.Close()

	numeric, err := numericColumns(ctx, scope, table)
	if err != nil {
		return nil, err
	}
	if !contains(numeric, column) {
		exists, err := columnExists(ctx, scope, table, column)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, Validationf("column %q does not exist on table %q", column, table)
		}
		return nil, Validationf("column %q is not a numeric column of table %q", column, table)
	}

	rows, err := scope.Query(ctx, buildColumnScanQuery(table, column))
	if err != nil {
		return nil, queryErrf("column scan", err)
	}
	defer rows.Close()

	data, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(data))
	for i, row := range data {
		v, ok := asFloat64(row[column])
		if !ok {
			return nil, queryErrf("column scan", Validationf("column %q returned a non-numeric value", column))
		}
		values[i] = v
	}

	switch test {
	case MethodZScore:
		return detectZScore(data, values, e.zThreshold), nil
	case MethodIQR:
		return detectIQR(data, values), nil
	}
	panic("unhandled detection method " + string(test))
}

// detectZScore flags values whose |z| exceeds the threshold, using the
// population standard deviation. A zero-variance column flags nothing: every
// z collapses to 0 rather than dividing by zero.
func detectZScore(data []map[string]any, values []float64, threshold float64) []Anomaly {
	mu := mean(values)
	sigma := populationStd(values, mu)

	anomalies := make([]Anomaly, 0)
	for i, v := range values {
		var z float64
		if sigma > 0 {
			z = (v - mu) / sigma
		}
		if math.Abs(z) > threshold {
			zRounded := roundTo(z, 2)
			dist := roundTo(v-mu, 2)
			anomalies = append(anomalies, Anomaly{
				Row:              data[i],
				Value:            v,
				ZScore:           &zRounded,
				DistanceFromMean: &dist,
			})
		}
	}
	return anomalies
}

// detectIQR flags values outside the 1.5*IQR fences around the quartiles.
func detectIQR(data []map[string]any, values []float64) []Anomaly {
	q1 := percentile(values, 25)
	q3 := percentile(values, 75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	bounds := &Bounds{Lower: roundTo(lower, 2), Upper: roundTo(upper, 2)}

	anomalies := make([]Anomaly, 0)
	for i, v := range values {
		if v < lower || v > upper {
			dist := roundTo(math.Min(math.Abs(v-lower), math.Abs(v-upper)), 2)
			anomalies = append(anomalies, Anomaly{
				Row:               data[i],
				Value:             v,
				Bounds:            bounds,
				DistanceFromBound: &dist,
			})
		}
	}
	return anomalies
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStd is the uncorrected (population) standard deviation.
func populationStd(values []float64, mu float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// percentile computes the p-th percentile with linear interpolation between
// the two nearest ranks, matching the conventional definition used by most
// statistics packages.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
