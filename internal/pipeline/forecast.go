package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/forecast"
	"github.com/KaramelBytes/datalens-cli/internal/insight"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// ForecastOptions selects the series to project.
type ForecastOptions struct {
	TimeColumn string
	// Measure is summed per bucket; empty counts rows instead.
	Measure string
	Grain   string
	Periods int
	// Infer defaults to numeric.DefaultInferOptions when zero.
	Infer numeric.InferOptions
	// SmoothWindow > 1 adds a trailing moving average of the historical series.
	SmoothWindow int
	// SeasonPeriod > 1 scores how strongly values repeat every SeasonPeriod buckets.
	SeasonPeriod int
	Logger       *zap.Logger
}

// Seasonality is the mean within-position variance for a cycle length. Lower is more seasonal.
type Seasonality struct {
	Period   int     `json:"period"`
	Variance float64 `json:"variance"`
}

// ForecastResult is a bucketed series, its fitted line and the projected points.
type ForecastResult struct {
	RunID      string               `json:"runId"`
	Source     string               `json:"source"`
	TimeColumn string               `json:"timeColumn"`
	Measure    string               `json:"measure,omitempty"`
	Grain      string               `json:"grain"`
	Regression *forecast.Regression `json:"regression,omitempty"`
	Trend      forecast.Trend       `json:"trend"`
	Points     []forecast.Point     `json:"points"`
	Smoothed   []forecast.Point     `json:"smoothed,omitempty"`
	Season     *Seasonality         `json:"seasonality,omitempty"`
}

// ForecastColumn buckets t by TimeColumn, aggregates Measure (or counts rows) and appends
// Periods forecast points to the historical series.
func ForecastColumn(ctx context.Context, t *dataset.Table, opt ForecastOptions) (*ForecastResult, error) {
	if t == nil {
		return nil, fmt.Errorf("forecast: nil table")
	}
	if !slices.Contains(t.Columns, opt.TimeColumn) {
		return nil, fmt.Errorf("time column %q not found (columns: %v)", opt.TimeColumn, t.Columns)
	}
	if opt.Measure != "" && !slices.Contains(t.Columns, opt.Measure) {
		return nil, fmt.Errorf("measure column %q not found (columns: %v)", opt.Measure, t.Columns)
	}
	grain := opt.Grain
	if !insight.ValidGrain(grain) {
		grain = insight.GrainMonth
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	norm := numeric.InferNumericColumnsAndConvert(t.Rows, t.Columns, opt.Infer)
	popt := profile.DefaultOptions()
	popt.NumericColumns = norm.NumericColumns
	prof := profile.Build(norm.Data, t.Columns, popt)

	agg := insight.AggCount
	if opt.Measure != "" {
		agg = insight.AggSum
	}
	plan := insight.Plan{
		Selections: insight.Selections{TimeColumn: opt.TimeColumn, Grain: grain, PrimaryMeasure: opt.Measure},
		Blocks: []insight.BlockSpec{{
			Type:       evidence.TrendBlock,
			TimeColumn: opt.TimeColumn,
			Grain:      grain,
			Measure:    opt.Measure,
			Agg:        agg,
		}},
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blocks := insight.Execute(norm.Data, prof, plan, insight.DefaultOptions())

	res := &ForecastResult{
		RunID:      uuid.NewString(),
		Source:     t.Name,
		TimeColumn: opt.TimeColumn,
		Measure:    opt.Measure,
		Grain:      grain,
		Points:     []forecast.Point{},
	}
	hist, ok := TrendSeries(blocks)
	if !ok {
		log.Warn("no dated rows to forecast", zap.String("time_column", opt.TimeColumn))
		res.Trend = forecast.AnalyzeTrend(nil)
		return res, nil
	}
	if reg, ok := forecast.CalculateLinearRegression(hist); ok {
		res.Regression = &reg
	}
	res.Trend = forecast.AnalyzeTrend(hist)
	res.Points = forecast.CombineHistoricalAndForecast(hist, forecast.GenerateForecast(hist, opt.Periods))
	if opt.SmoothWindow > 1 {
		res.Smoothed = forecast.MovingAverage(hist, opt.SmoothWindow)
	}
	if opt.SeasonPeriod > 1 {
		if v, ok := forecast.DetectSeasonality(hist, opt.SeasonPeriod); ok {
			res.Season = &Seasonality{Period: opt.SeasonPeriod, Variance: v}
		} else {
			log.Debug("series too short for seasonality",
				zap.Int("period", opt.SeasonPeriod),
				zap.Int("history", len(hist)))
		}
	}
	log.Debug("forecast column",
		zap.String("run_id", res.RunID),
		zap.Int("history", len(hist)),
		zap.Int("points", len(res.Points)))
	return res, nil
}
