package analysis

import (
	"math"
	"testing"
)

func TestParseDetectionMethod(t *testing.T) {
	for _, valid := range []string{"zscore", "iqr", "ZSCORE", " iqr "} {
		if _, err := ParseDetectionMethod(valid); err != nil {
			t.Errorf("ParseDetectionMethod(%q) unexpected error: %v", valid, err)
		}
	}

	for _, invalid := range []string{"mad", "stddev", ""} {
		if _, err := ParseDetectionMethod(invalid); err == nil {
			t.Errorf("ParseDetectionMethod(%q) expected error", invalid)
		} else if !IsValidation(err) {
			t.Errorf("ParseDetectionMethod(%q) error is not a validation error: %v", invalid, err)
		}
	}
}

func TestMean(t *testing.T) {
	if got := mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("mean = %v, want 2.5", got)
	}
	if got := mean(nil); got != 0 {
		t.Errorf("mean of empty = %v, want 0", got)
	}
}

func TestPopulationStd(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mu := mean(values)
	if got := populationStd(values, mu); math.Abs(got-2) > 1e-9 {
		t.Errorf("populationStd = %v, want 2", got)
	}

	if got := populationStd([]float64{3, 3, 3}, 3); got != 0 {
		t.Errorf("populationStd of constant values = %v, want 0", got)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{name: "median of odd count", values: []float64{1, 2, 3, 4, 5}, p: 50, want: 3},
		{name: "median of even count", values: []float64{1, 2, 3, 4}, p: 50, want: 2.5},
		{name: "first quartile interpolates", values: []float64{1, 2, 3, 4}, p: 25, want: 1.75},
		{name: "third quartile interpolates", values: []float64{1, 2, 3, 4}, p: 75, want: 3.25},
		{name: "zeroth percentile is min", values: []float64{5, 1, 3}, p: 0, want: 1},
		{name: "hundredth percentile is max", values: []float64{5, 1, 3}, p: 100, want: 5},
		{name: "single value", values: []float64{42}, p: 75, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.values, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
			}
		})
	}
}

func TestDetectZScore(t *testing.T) {
	rowFor := func(v float64) map[string]any {
		return map[string]any{"reading": v}
	}

	t.Run("flags extreme value", func(t *testing.T) {
		values := []float64{1, 2, 3, 2.5, 1.5, 2, 1000}
		data := make([]map[string]any, len(values))
		for i, v := range values {
			data[i] = rowFor(v)
		}

		anomalies := detectZScore(data, values, 2)
		if len(anomalies) != 1 {
			t.Fatalf("detectZScore flagged %d values, want 1", len(anomalies))
		}
		a := anomalies[0]
		if a.Value != 1000 {
			t.Errorf("flagged value = %v, want 1000", a.Value)
		}
		if a.ZScore == nil || *a.ZScore <= 2 {
			t.Errorf("z-score = %v, want > 2", a.ZScore)
		}
		if a.Row["reading"] != float64(1000) {
			t.Errorf("anomaly row = %v, want the source row", a.Row)
		}
	})

	t.Run("nothing flagged in tight cluster", func(t *testing.T) {
		values := []float64{10, 11, 12, 11, 10}
		data := make([]map[string]any, len(values))
		for i, v := range values {
			data[i] = rowFor(v)
		}

		if anomalies := detectZScore(data, values, 3); len(anomalies) != 0 {
			t.Errorf("detectZScore flagged %d values, want 0", len(anomalies))
		}
	})

	t.Run("zero variance flags nothing", func(t *testing.T) {
		values := []float64{5, 5, 5, 5}
		data := make([]map[string]any, len(values))
		for i, v := range values {
			data[i] = rowFor(v)
		}

		if anomalies := detectZScore(data, values, 3); len(anomalies) != 0 {
			t.Errorf("detectZScore flagged %d values on constant column, want 0", len(anomalies))
		}
	})
}

func TestDetectIQR(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 100}
	data := make([]map[string]any, len(values))
	for i, v := range values {
		data[i] = map[string]any{"reading": v}
	}

	anomalies := detectIQR(data, values)
	if len(anomalies) != 1 {
		t.Fatalf("detectIQR flagged %d values, want 1", len(anomalies))
	}

	a := anomalies[0]
	if a.Value != 100 {
		t.Errorf("flagged value = %v, want 100", a.Value)
	}
	if a.Bounds == nil {
		t.Fatal("anomaly has no bounds")
	}
	if a.Bounds.Lower >= a.Bounds.Upper {
		t.Errorf("bounds inverted: %+v", a.Bounds)
	}
	if a.Value <= a.Bounds.Upper {
		t.Errorf("flagged value %v is inside upper bound %v", a.Value, a.Bounds.Upper)
	}
	if a.DistanceFromBound == nil || *a.DistanceFromBound <= 0 {
		t.Errorf("distance from bound = %v, want positive", a.DistanceFromBound)
	}

	t.Run("uniform data flags nothing", func(t *testing.T) {
		values := []float64{10, 12, 14, 16, 18, 20}
		data := make([]map[string]any, len(values))
		for i, v := range values {
			data[i] = map[string]any{"reading": v}
		}
		if anomalies := detectIQR(data, values); len(anomalies) != 0 {
			t.Errorf("detectIQR flagged %d values, want 0", len(anomalies))
		}
	})
}
