package pipeline_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/forecast"
	"github.com/KaramelBytes/datalens-cli/internal/insight"
	"github.com/KaramelBytes/datalens-cli/internal/pipeline"
)

func ordersTable() *dataset.Table {
	return dataset.FromRecords("orders", []string{"date", "region", "quantity", "unit_price"}, [][]string{
		{"2024-01-05", "West", "2", "$10.00"},
		{"2024-01-20", "East", "1", "$10.00"},
		{"2024-02-03", "West", "3", "$10.00"},
		{"2024-02-14", "East", "2", "$10.00"},
		{"2024-03-01", "West", "4", "$10.00"},
		{"2024-03-09", "East", "3", "$10.00"},
	})
}

func TestRunSalesTable(t *testing.T) {
	tbl := ordersTable()
	opt := pipeline.DefaultOptions()
	opt.ForecastPeriods = 2
	opt.Logger = zaptest.NewLogger(t)

	res, err := pipeline.Run(context.Background(), tbl, opt)
	require.NoError(t, err)

	_, err = uuid.Parse(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, res.Evidence.RunID)
	assert.Equal(t, "orders", res.Source)
	assert.Equal(t, 6, res.RowCount)
	assert.ElementsMatch(t, []string{"quantity", "unit_price"}, res.NumericColumns)

	require.Len(t, res.AddedColumns, 2)
	assert.Equal(t, "gross", res.AddedColumns[0].Name)
	assert.Equal(t, "revenue", res.AddedColumns[1].Name)
	assert.Equal(t, []string{"date", "region", "quantity", "unit_price", "gross", "revenue"}, res.Columns)
	_, ok := res.Profile.Column("revenue")
	assert.True(t, ok, "re-profiled after derivation")

	assert.Equal(t, evidence.IntentSales, res.Intent)
	// gross sorts ahead of revenue in the profile
	assert.Equal(t, "gross", res.PrimaryMetric.Column)

	types := make([]evidence.BlockType, 0, len(res.Blocks))
	for _, b := range res.Blocks {
		types = append(types, b.Type)
	}
	assert.Equal(t, []evidence.BlockType{evidence.KPIBlock, evidence.TrendBlock, evidence.TopNBlock, evidence.DriverBlock}, types)
	assert.Len(t, res.Evidence.KPIs, 1)
	require.Len(t, res.Evidence.Trends, 1)
	assert.Len(t, res.Evidence.Trends[0].Series, 3)
	assert.Len(t, res.Evidence.Breakdowns, 1)

	require.NotNil(t, res.Trend)
	assert.Equal(t, forecast.Upward, res.Trend.Direction)
	require.Len(t, res.Forecast, 2)
	assert.Equal(t, "2024-03-31", res.Forecast[0].Date)
	assert.InDelta(t, 90, res.Forecast[0].Value, 1e-9)
	assert.Equal(t, "2024-04-30", res.Forecast[1].Date)
	assert.InDelta(t, 110, res.Forecast[1].Value, 1e-9)
	assert.True(t, res.Forecast[1].IsForecast)
	require.Len(t, res.Rows, 6)
	n, ok := res.Rows[0].Value("revenue").Float()
	require.True(t, ok)
	assert.Equal(t, 20.0, n)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	tbl := ordersTable()
	_, err := pipeline.Run(context.Background(), tbl, pipeline.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "region", "quantity", "unit_price"}, tbl.Columns)
	assert.False(t, tbl.Rows[0].Has("revenue"))
	assert.Equal(t, dataset.Text("$10.00"), tbl.Rows[0].Value("unit_price"))
}

func TestRunCustomPlanAndNoForecast(t *testing.T) {
	opt := pipeline.DefaultOptions()
	opt.ForecastPeriods = 0
	opt.Plan = &insight.Plan{Blocks: []insight.BlockSpec{{Type: evidence.TopNBlock, Dimension: "region", Agg: insight.AggCount}}}

	res, err := pipeline.Run(context.Background(), ordersTable(), opt)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, evidence.TopNBlock, res.Blocks[0].Type)
	assert.Nil(t, res.Trend)
	assert.Empty(t, res.Forecast)
	assert.NotNil(t, res.Forecast)
}

func TestRunEmptyTable(t *testing.T) {
	res, err := pipeline.Run(context.Background(), &dataset.Table{Name: "empty"}, pipeline.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, evidence.IntentGeneric, res.Intent)
	assert.True(t, res.PrimaryMetric.IsRowCount())
	assert.Empty(t, res.Forecast)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.Run(ctx, ordersTable(), pipeline.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = pipeline.Run(context.Background(), nil, pipeline.DefaultOptions())
	assert.Error(t, err)
}

func TestRunLogsStages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	opt := pipeline.DefaultOptions()
	opt.Logger = zap.New(core)

	res, err := pipeline.Run(context.Background(), ordersTable(), opt)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("normalized numeric columns").Len())
	assert.Equal(t, 1, logs.FilterMessage("derived fields").Len())
	done := logs.FilterMessage("analysis complete").All()
	require.Len(t, done, 1)
	assert.Equal(t, res.RunID, done[0].ContextMap()["run_id"])
	assert.Equal(t, "sales", done[0].ContextMap()["intent"])
}

func TestSeriesPoints(t *testing.T) {
	sum := 12.5
	buckets := []evidence.SeriesPoint{
		{T: "2024-01-01", Sum: &sum, Count: 3},
		{T: "2024-02-01", Count: 4},
	}

	measured := pipeline.SeriesPoints(&evidence.TrendPayload{Measure: "gross", Agg: insight.AggSum, Series: buckets})
	assert.Equal(t, []forecast.Point{{Date: "2024-01-01", Value: 12.5}}, measured,
		"a bucket without a sum is dropped, not replaced by its count")

	counted := pipeline.SeriesPoints(&evidence.TrendPayload{Agg: insight.AggCount, Series: buckets})
	assert.Equal(t, []forecast.Point{{Date: "2024-01-01", Value: 3}, {Date: "2024-02-01", Value: 4}}, counted)

	countedMeasure := pipeline.SeriesPoints(&evidence.TrendPayload{Measure: "gross", Agg: insight.AggCount, Series: buckets})
	assert.Equal(t, counted, countedMeasure)

	assert.Empty(t, pipeline.SeriesPoints(nil))

	_, ok := pipeline.TrendSeries([]evidence.Block{{Type: evidence.TrendBlock, Status: evidence.StatusInsufficientData}})
	assert.False(t, ok)
}

func TestRunOverflowingMeasureStillMarshals(t *testing.T) {
	huge := "1" + strings.Repeat("0", 308)
	tbl := dataset.FromRecords("huge", []string{"date", "region", "total"}, [][]string{
		{"2024-01-05", "West", huge},
		{"2024-02-03", "East", "1"},
		{"2024-03-01", "West", huge},
		{"2024-04-02", "East", "1"},
	})
	res, err := pipeline.Run(context.Background(), tbl, pipeline.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, res.NumericColumns, "total")
	assert.Empty(t, res.Forecast)
	require.NotNil(t, res.Trend)
	assert.Equal(t, forecast.Neutral, res.Trend.Direction)

	_, err = json.Marshal(res)
	require.NoError(t, err)
}

func TestForecastColumn(t *testing.T) {
	res, err := pipeline.ForecastColumn(context.Background(), ordersTable(), pipeline.ForecastOptions{
		TimeColumn: "date",
		Measure:    "quantity",
		Grain:      insight.GrainMonth,
		Periods:    2,
		Infer:      pipeline.DefaultOptions().Infer,
	})
	require.NoError(t, err)
	require.Len(t, res.Points, 5)
	assert.False(t, res.Points[2].IsForecast)
	assert.InDelta(t, 7, res.Points[2].Value, 1e-9)
	assert.True(t, res.Points[3].IsForecast)
	assert.InDelta(t, 9, res.Points[3].Value, 1e-9)
	assert.InDelta(t, 11, res.Points[4].Value, 1e-9)
	require.NotNil(t, res.Regression)
	assert.InDelta(t, 2, res.Regression.Slope, 1e-9)
	assert.InDelta(t, 1, res.Regression.RSquared, 1e-9)
}

func TestForecastColumnSmoothingAndSeasonality(t *testing.T) {
	res, err := pipeline.ForecastColumn(context.Background(), ordersTable(), pipeline.ForecastOptions{
		TimeColumn:   "date",
		Measure:      "quantity",
		Periods:      1,
		SmoothWindow: 2,
		SeasonPeriod: 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Smoothed, 3)
	assert.InDelta(t, 3, res.Smoothed[0].Value, 1e-9)
	assert.InDelta(t, 4, res.Smoothed[1].Value, 1e-9)
	assert.InDelta(t, 6, res.Smoothed[2].Value, 1e-9)
	// three buckets cannot hold two full cycles of two
	assert.Nil(t, res.Season)

	res, err = pipeline.ForecastColumn(context.Background(), ordersTable(), pipeline.ForecastOptions{
		TimeColumn:   "date",
		Measure:      "quantity",
		SeasonPeriod: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Season, "a period of one is ignored")
	assert.Empty(t, res.Smoothed)
}

func TestForecastColumnCountsRows(t *testing.T) {
	res, err := pipeline.ForecastColumn(context.Background(), ordersTable(), pipeline.ForecastOptions{
		TimeColumn: "date",
		Grain:      "fortnight",
		Periods:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, insight.GrainMonth, res.Grain)
	require.Len(t, res.Points, 4)
	assert.InDelta(t, 2, res.Points[3].Value, 1e-9)
	assert.Equal(t, forecast.Neutral, res.Trend.Direction)
}

func TestForecastColumnUnknownColumns(t *testing.T) {
	_, err := pipeline.ForecastColumn(context.Background(), ordersTable(), pipeline.ForecastOptions{TimeColumn: "when"})
	assert.ErrorContains(t, err, `time column "when" not found`)
	_, err = pipeline.ForecastColumn(context.Background(), ordersTable(), pipeline.ForecastOptions{TimeColumn: "date", Measure: "qty"})
	assert.ErrorContains(t, err, `measure column "qty" not found`)
}

func TestResultMarkdown(t *testing.T) {
	opt := pipeline.DefaultOptions()
	opt.ForecastPeriods = 1
	res, err := pipeline.Run(context.Background(), ordersTable(), opt)
	require.NoError(t, err)

	md := res.Markdown()
	assert.Contains(t, md, "# Analysis: orders")
	assert.Contains(t, md, "Derived columns: gross, revenue")
	assert.Contains(t, md, "[EVIDENCE]")
	assert.Contains(t, md, "[FORECAST]\nTrend: upward (slope 20, r² 1)")
	assert.Contains(t, md, "- 2024-03-31: 90 (forecast, 95% band 90 to 90)")
}
