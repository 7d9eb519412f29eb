package analysis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
	"github.com/datascope-io/datascope-engine/pkg/testhelpers"
)

func newTestEngine(t *testing.T) *analysis.Engine {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	return analysis.New(testDB.DB, zap.NewNop(), analysis.Options{})
}

func TestEngineListTables(t *testing.T) {
	engine := newTestEngine(t)

	tables, err := engine.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error: %v", err)
	}

	want := map[string]bool{"sales": false, "daily_metrics": false, "sensor_readings": false}
	for _, table := range tables {
		if _, ok := want[table]; ok {
			want[table] = true
		}
	}
	for table, seen := range want {
		if !seen {
			t.Errorf("ListTables() missing fixture table %q (got %v)", table, tables)
		}
	}
}

func TestEngineTableSchema(t *testing.T) {
	engine := newTestEngine(t)

	columns, err := engine.TableSchema(context.Background(), "sales")
	if err != nil {
		t.Fatalf("TableSchema() error: %v", err)
	}

	if len(columns) != 5 {
		t.Fatalf("TableSchema() returned %d columns, want 5", len(columns))
	}
	if columns[0].ColumnName != "id" {
		t.Errorf("first column = %q, want id in declared order", columns[0].ColumnName)
	}

	byName := make(map[string]analysis.ColumnDescriptor)
	for _, c := range columns {
		byName[c.ColumnName] = c
	}
	if got := byName["category"].DataType; got != "text" {
		t.Errorf("category data type = %q, want text", got)
	}
	if byName["category"].IsNullable {
		t.Error("category should be NOT NULL")
	}
	if byName["id"].DefaultValue == nil {
		t.Error("serial id column should have a default")
	}
}

func TestEngineTableSchemaUnknownTable(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.TableSchema(context.Background(), "no_such_table")
	if !analysis.IsValidation(err) {
		t.Errorf("TableSchema(unknown) error = %v, want validation error", err)
	}
}

func TestEngineTableSample(t *testing.T) {
	engine := newTestEngine(t)

	rows, err := engine.TableSample(context.Background(), "sales", 3)
	if err != nil {
		t.Fatalf("TableSample() error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("TableSample() returned %d rows, want 3", len(rows))
	}
	if _, ok := rows[0]["category"]; !ok {
		t.Errorf("sample row missing category column: %v", rows[0])
	}
}

func TestEngineRunQuery(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("positional parameters and row cap", func(t *testing.T) {
		rows, err := engine.RunQuery(context.Background(),
			"SELECT category, amount FROM sales WHERE amount > $1", []any{50}, 100)
		if err != nil {
			t.Fatalf("RunQuery() error: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("RunQuery() returned %d rows, want 3", len(rows))
		}
		for _, row := range rows {
			if row["category"] != "gadgets" {
				t.Errorf("unexpected row %v, want only gadgets", row)
			}
		}
	})

	t.Run("row cap truncates", func(t *testing.T) {
		rows, err := engine.RunQuery(context.Background(), "SELECT * FROM sales", nil, 2)
		if err != nil {
			t.Fatalf("RunQuery() error: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("RunQuery() returned %d rows, want cap of 2", len(rows))
		}
	})

	t.Run("numeric columns decode as float64", func(t *testing.T) {
		rows, err := engine.RunQuery(context.Background(),
			"SELECT amount FROM sales ORDER BY amount LIMIT 1", nil, 10)
		if err != nil {
			t.Fatalf("RunQuery() error: %v", err)
		}
		if v, ok := rows[0]["amount"].(float64); !ok || v != 10 {
			t.Errorf("amount = %v (%T), want 10.0", rows[0]["amount"], rows[0]["amount"])
		}
	})
}

func TestEngineSummaryStatistics(t *testing.T) {
	engine := newTestEngine(t)

	stats, err := engine.SummaryStatistics(context.Background(), "sales", []string{"amount"})
	if err != nil {
		t.Fatalf("SummaryStatistics() error: %v", err)
	}

	s, ok := stats["amount"]
	if !ok {
		t.Fatalf("SummaryStatistics() missing amount: %v", stats)
	}
	if s.Count != 6 {
		t.Errorf("count = %d, want 6", s.Count)
	}
	if s.Mean == nil || *s.Mean != 110 {
		t.Errorf("mean = %v, want 110", s.Mean)
	}
	if s.Min == nil || *s.Min != 10 {
		t.Errorf("min = %v, want 10", s.Min)
	}
	if s.Max == nil || *s.Max != 300 {
		t.Errorf("max = %v, want 300", s.Max)
	}
	if s.Std == nil || s.Variance == nil {
		t.Errorf("std/variance should be non-nil, got %v/%v", s.Std, s.Variance)
	}
}

func TestEngineSummaryStatisticsDefaultsToAllNumeric(t *testing.T) {
	engine := newTestEngine(t)

	stats, err := engine.SummaryStatistics(context.Background(), "sales", nil)
	if err != nil {
		t.Fatalf("SummaryStatistics() error: %v", err)
	}

	for _, col := range []string{"id", "amount", "quantity"} {
		if _, ok := stats[col]; !ok {
			t.Errorf("SummaryStatistics() missing numeric column %q", col)
		}
	}
	if _, ok := stats["category"]; ok {
		t.Error("SummaryStatistics() should not include text column category")
	}
}

func TestEngineSummaryStatisticsRejectsTextColumn(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.SummaryStatistics(context.Background(), "sales", []string{"category"})
	if !analysis.IsValidation(err) {
		t.Errorf("SummaryStatistics(category) error = %v, want validation error", err)
	}
}

func TestEngineNullHandling(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("null values excluded from summary", func(t *testing.T) {
		stats, err := engine.SummaryStatistics(ctx, "inventory", []string{"stock"})
		if err != nil {
			t.Fatalf("SummaryStatistics() error: %v", err)
		}

		s := stats["stock"]
		if s.Count != 3 {
			t.Errorf("count = %d, want 3 non-null values", s.Count)
		}
		if s.Mean == nil || *s.Mean != 20 {
			t.Errorf("mean = %v, want 20", s.Mean)
		}
		if s.Min == nil || *s.Min != 10 {
			t.Errorf("min = %v, want 10", s.Min)
		}
		if s.Max == nil || *s.Max != 30 {
			t.Errorf("max = %v, want 30", s.Max)
		}
	})

	t.Run("all-null column yields count zero and nil statistics", func(t *testing.T) {
		stats, err := engine.SummaryStatistics(ctx, "inventory", []string{"forecast"})
		if err != nil {
			t.Fatalf("SummaryStatistics() error: %v", err)
		}

		s, ok := stats["forecast"]
		if !ok {
			t.Fatalf("SummaryStatistics() missing forecast: %v", stats)
		}
		if s.Count != 0 {
			t.Errorf("count = %d, want 0", s.Count)
		}
		if s.Mean != nil || s.Median != nil || s.Min != nil || s.Max != nil ||
			s.Std != nil || s.Variance != nil {
			t.Errorf("all statistics should be nil for an all-null column, got %+v", s)
		}
	})

	t.Run("null rows excluded from time-series buckets", func(t *testing.T) {
		result, err := engine.TimeSeries(ctx, "inventory", "restocked_on", "stock", "month")
		if err != nil {
			t.Fatalf("TimeSeries() error: %v", err)
		}

		// February's only row has a NULL stock, so January is the only bucket.
		if len(result.TimeSeriesData) != 1 {
			t.Fatalf("TimeSeries() returned %d buckets, want 1", len(result.TimeSeriesData))
		}
		bucket := result.TimeSeriesData[0]
		if bucket.TimeBucket.Month() != time.January {
			t.Errorf("bucket = %v, want January", bucket.TimeBucket)
		}
		if bucket.Count != 2 {
			t.Errorf("bucket count = %d, want 2", bucket.Count)
		}
		if bucket.Mean == nil || *bucket.Mean != 15 {
			t.Errorf("bucket mean = %v, want 15", bucket.Mean)
		}
		if result.Trends != nil {
			t.Errorf("single-bucket series should have no trends, got %+v", result.Trends)
		}
	})

	t.Run("null rows excluded from anomaly scan", func(t *testing.T) {
		// A NULL leaking through the scan would surface as a non-numeric
		// value error before any detector runs.
		anomalies, err := engine.DetectAnomalies(ctx, "inventory", "stock", "iqr")
		if err != nil {
			t.Fatalf("DetectAnomalies() error: %v", err)
		}
		if len(anomalies) != 0 {
			t.Errorf("DetectAnomalies() flagged %v, want none", anomalies)
		}
	})
}

func TestEngineCorrelations(t *testing.T) {
	engine := newTestEngine(t)

	matrix, err := engine.Correlations(context.Background(), "sales", []string{"amount", "quantity"})
	if err != nil {
		t.Fatalf("Correlations() error: %v", err)
	}

	if got := matrix["amount"]["amount"]; got != 1 {
		t.Errorf("self-correlation = %v, want 1", got)
	}
	if got := matrix["amount"]["quantity"]; got < 0.99 {
		t.Errorf("amount/quantity correlation = %v, want >= 0.99", got)
	}
	if matrix["amount"]["quantity"] != matrix["quantity"]["amount"] {
		t.Error("correlation matrix should be symmetric")
	}
}

func TestEngineCorrelationsNeedsTwoColumns(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Correlations(context.Background(), "sales", []string{"amount"})
	if !analysis.IsValidation(err) {
		t.Errorf("Correlations(one column) error = %v, want validation error", err)
	}
}

func TestEngineGroupBy(t *testing.T) {
	engine := newTestEngine(t)

	groups, err := engine.GroupBy(context.Background(), "sales", "category",
		analysis.AggregationSpec{"amount": {"sum", "mean"}})
	if err != nil {
		t.Fatalf("GroupBy() error: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("GroupBy() returned %d groups, want 2", len(groups))
	}

	// Ordered by group column: gadgets before widgets
	if groups[0]["category"] != "gadgets" {
		t.Errorf("first group = %v, want gadgets", groups[0]["category"])
	}
	if sum, ok := groups[0]["amount_sum"].(float64); !ok || sum != 600 {
		t.Errorf("gadgets amount_sum = %v, want 600", groups[0]["amount_sum"])
	}
	if mean, ok := groups[1]["amount_mean"].(float64); !ok || mean != 20 {
		t.Errorf("widgets amount_mean = %v, want 20", groups[1]["amount_mean"])
	}
}

func TestEngineGroupByValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.GroupBy(ctx, "no_such_table", "category",
		analysis.AggregationSpec{"amount": {"sum"}}); !analysis.IsValidation(err) {
		t.Errorf("GroupBy(unknown table) error = %v, want validation error", err)
	}

	if _, err := engine.GroupBy(ctx, "sales", "no_such_column",
		analysis.AggregationSpec{"amount": {"sum"}}); !analysis.IsValidation(err) {
		t.Errorf("GroupBy(unknown group column) error = %v, want validation error", err)
	}

	if _, err := engine.GroupBy(ctx, "sales", "category",
		analysis.AggregationSpec{"category": {"mean"}}); !analysis.IsValidation(err) {
		t.Errorf("GroupBy(mean of text column) error = %v, want validation error", err)
	}
}

func TestEngineTimeSeries(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.TimeSeries(context.Background(),
		"daily_metrics", "recorded_on", "value", "month")
	if err != nil {
		t.Fatalf("TimeSeries() error: %v", err)
	}

	if len(result.TimeSeriesData) != 3 {
		t.Fatalf("TimeSeries() returned %d buckets, want 3", len(result.TimeSeriesData))
	}

	first := result.TimeSeriesData[0]
	if first.TimeBucket.Month() != time.January {
		t.Errorf("first bucket = %v, want January", first.TimeBucket)
	}
	if first.Count != 2 {
		t.Errorf("first bucket count = %d, want 2", first.Count)
	}
	if first.Mean == nil || *first.Mean != 11 {
		t.Errorf("first bucket mean = %v, want 11", first.Mean)
	}

	if result.Trends == nil {
		t.Fatal("TimeSeries() trends missing")
	}
	if result.Trends.TrendDirection != "up" {
		t.Errorf("trend direction = %q, want up", result.Trends.TrendDirection)
	}
	if result.Trends.OverallChange != 31 {
		t.Errorf("overall change = %v, want 31", result.Trends.OverallChange)
	}
}

func TestEngineTimeSeriesValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.TimeSeries(ctx, "daily_metrics", "value", "value", "month"); !analysis.IsValidation(err) {
		t.Errorf("TimeSeries(numeric time column) error = %v, want validation error", err)
	}
	if _, err := engine.TimeSeries(ctx, "daily_metrics", "recorded_on", "recorded_on", "month"); !analysis.IsValidation(err) {
		t.Errorf("TimeSeries(date value column) error = %v, want validation error", err)
	}
	if _, err := engine.TimeSeries(ctx, "daily_metrics", "recorded_on", "value", "hourly"); !analysis.IsValidation(err) {
		t.Errorf("TimeSeries(bad interval) error = %v, want validation error", err)
	}
}

func TestEngineDetectAnomalies(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("iqr flags the outlier", func(t *testing.T) {
		anomalies, err := engine.DetectAnomalies(context.Background(),
			"sensor_readings", "reading", "iqr")
		if err != nil {
			t.Fatalf("DetectAnomalies() error: %v", err)
		}
		if len(anomalies) != 1 {
			t.Fatalf("DetectAnomalies() flagged %d rows, want 1", len(anomalies))
		}
		if anomalies[0].Value != 1000 {
			t.Errorf("flagged value = %v, want 1000", anomalies[0].Value)
		}
		if anomalies[0].Row["sensor"] != "a" {
			t.Errorf("anomaly row = %v, want full source row", anomalies[0].Row)
		}
	})

	t.Run("zscore respects configured threshold", func(t *testing.T) {
		testDB := testhelpers.GetTestDB(t)
		sensitive := analysis.New(testDB.DB, zap.NewNop(), analysis.Options{ZScoreThreshold: 2})

		anomalies, err := sensitive.DetectAnomalies(context.Background(),
			"sensor_readings", "reading", "zscore")
		if err != nil {
			t.Fatalf("DetectAnomalies() error: %v", err)
		}
		if len(anomalies) != 1 || anomalies[0].Value != 1000 {
			t.Errorf("DetectAnomalies() = %v, want the single 1000 reading", anomalies)
		}
	})

	t.Run("rejects non-numeric column", func(t *testing.T) {
		_, err := engine.DetectAnomalies(context.Background(),
			"sensor_readings", "sensor", "zscore")
		if !analysis.IsValidation(err) {
			t.Errorf("DetectAnomalies(text column) error = %v, want validation error", err)
		}
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := engine.DetectAnomalies(context.Background(),
			"sensor_readings", "reading", "mad")
		if !analysis.IsValidation(err) {
			t.Errorf("DetectAnomalies(bad method) error = %v, want validation error", err)
		}
	})
}

func TestEngineConcurrentAccess(t *testing.T) {
	engine := newTestEngine(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ListTables(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent ListTables() error: %v", err)
	}
}
