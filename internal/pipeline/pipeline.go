// Package pipeline runs the full analysis over one loaded table.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/forecast"
	"github.com/KaramelBytes/datalens-cli/internal/insight"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// Options bundles the per-stage settings of one run.
type Options struct {
	// Infer defaults to numeric.DefaultInferOptions when zero.
	Infer   numeric.InferOptions
	Profile profile.Options
	Compute insight.Options
	// Grain buckets the trend series; invalid values fall back to month.
	Grain string
	// ForecastPeriods is the number of projected points; 0 disables forecasting.
	ForecastPeriods int
	// Plan overrides the default block plan when it has blocks.
	Plan   *insight.Plan
	Logger *zap.Logger
}

// DefaultOptions returns the stock thresholds, caps and a six-period forecast.
func DefaultOptions() Options {
	return Options{
		Infer:           numeric.DefaultInferOptions(),
		Profile:         profile.DefaultOptions(),
		Compute:         insight.DefaultOptions(),
		Grain:           insight.GrainMonth,
		ForecastPeriods: forecast.DefaultPeriods,
	}
}

// Result is everything one run produced.
type Result struct {
	RunID          string                 `json:"runId"`
	Source         string                 `json:"source"`
	RowCount       int                    `json:"rowCount"`
	Columns        []string               `json:"columns"`
	Warnings       []string               `json:"warnings,omitempty"`
	NumericColumns []string               `json:"numericColumns"`
	Inference      numeric.Inference      `json:"numericInference"`
	Profile        *profile.Profile       `json:"profile"`
	Intent         evidence.Intent        `json:"intent"`
	PrimaryMetric  evidence.Metric        `json:"primaryMetric"`
	AddedColumns   []evidence.AddedColumn `json:"addedColumns"`
	Plan           insight.Plan           `json:"plan"`
	Blocks         []evidence.Block       `json:"blocks"`
	Evidence       evidence.Evidence      `json:"evidence"`
	Trend          *forecast.Trend        `json:"trend,omitempty"`
	Forecast       []forecast.Point       `json:"forecast"`
	// Rows are the normalized rows including derived columns.
	Rows []*dataset.Row `json:"-"`
}

// Run normalizes, profiles, derives, classifies and executes the block plan over t, then
// assembles Evidence and forecasts the trend series. t is not modified.
func Run(ctx context.Context, t *dataset.Table, opt Options) (*Result, error) {
	if t == nil {
		return nil, fmt.Errorf("run pipeline: nil table")
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{
		RunID:    uuid.NewString(),
		Source:   t.Name,
		RowCount: len(t.Rows),
		Warnings: append([]string(nil), t.Warnings...),
		Forecast: []forecast.Point{},
	}
	log = log.With(zap.String("run_id", res.RunID), zap.String("source", t.Name))
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	norm := numeric.InferNumericColumnsAndConvert(t.Rows, t.Columns, opt.Infer)
	res.NumericColumns = norm.NumericColumns
	res.Inference = norm.Inference
	log.Debug("normalized numeric columns",
		zap.Int("rows", len(norm.Data)),
		zap.Strings("numeric_columns", norm.NumericColumns))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	popt := opt.Profile
	popt.NumericColumns = norm.NumericColumns
	popt.RowCount = len(t.Rows)
	prof := profile.Build(norm.Data, t.Columns, popt)
	log.Debug("profiled columns", zap.Int("columns", len(prof.Columns)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	derived := evidence.DeriveFields(norm.Data, prof)
	res.Rows = derived.Rows
	res.AddedColumns = derived.AddedColumns
	res.Columns = append([]string(nil), t.Columns...)
	if len(derived.AddedColumns) > 0 {
		numericCols := append([]string(nil), norm.NumericColumns...)
		for _, c := range derived.AddedColumns {
			res.Columns = append(res.Columns, c.Name)
			numericCols = append(numericCols, c.Name)
		}
		popt.NumericColumns = numericCols
		prof = profile.Build(derived.Rows, res.Columns, popt)
		log.Debug("derived fields", zap.Int("added", len(derived.AddedColumns)))
	}
	res.Profile = prof

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Intent = evidence.DetectDatasetIntent(prof)
	res.PrimaryMetric = evidence.SelectPrimaryMetric(prof, res.Intent, derived.Rows)
	log.Debug("classified dataset",
		zap.String("intent", string(res.Intent)),
		zap.Stringer("primary_metric", res.PrimaryMetric))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opt.Plan != nil && len(opt.Plan.Blocks) > 0 {
		res.Plan = *opt.Plan
	} else {
		res.Plan = insight.DefaultPlan(prof, res.PrimaryMetric, opt.Grain)
	}
	copt := opt.Compute
	if copt.RowCount <= 0 {
		copt.RowCount = len(t.Rows)
	}
	res.Blocks = insight.Execute(derived.Rows, prof, res.Plan, copt)
	log.Debug("executed plan", zap.Int("blocks", len(res.Blocks)))

	res.Evidence = evidence.AssembleEvidence(evidence.AssembleInput{
		Profile:       prof,
		Intent:        res.Intent,
		PrimaryMetric: res.PrimaryMetric,
		Blocks:        res.Blocks,
	})
	res.Evidence.RunID = res.RunID

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series, ok := TrendSeries(res.Blocks); ok && len(series) >= 2 {
		tr := forecast.AnalyzeTrend(series)
		res.Trend = &tr
		if opt.ForecastPeriods > 0 {
			res.Forecast = forecast.GenerateForecast(series, opt.ForecastPeriods)
		}
		log.Debug("forecast trend",
			zap.String("direction", tr.Direction),
			zap.Int("history", len(series)),
			zap.Int("points", len(res.Forecast)))
	}

	log.Info("analysis complete",
		zap.String("intent", string(res.Intent)),
		zap.Int("blocks", len(res.Blocks)),
		zap.Duration("elapsed", time.Since(started)))
	return res, nil
}

// TrendSeries returns the first OK trend block's series as forecast points.
func TrendSeries(blocks []evidence.Block) ([]forecast.Point, bool) {
	for _, b := range blocks {
		if b.Type != evidence.TrendBlock || b.Status != evidence.StatusOK {
			continue
		}
		pl, ok := b.Payload.(*evidence.TrendPayload)
		if !ok || pl == nil {
			continue
		}
		return SeriesPoints(pl), true
	}
	return nil, false
}

// SeriesPoints converts trend buckets into forecast input. A payload with a measure and a
// non-count aggregation yields bucket sums, and buckets without a sum are dropped; any other
// payload yields row counts. The two are never mixed within one series.
func SeriesPoints(pl *evidence.TrendPayload) []forecast.Point {
	if pl == nil {
		return []forecast.Point{}
	}
	summing := pl.Measure != "" && pl.Agg != insight.AggCount
	out := make([]forecast.Point, 0, len(pl.Series))
	for _, s := range pl.Series {
		v := float64(s.Count)
		if summing {
			if s.Sum == nil {
				continue
			}
			v = *s.Sum
		}
		out = append(out, forecast.Point{Date: s.T, Value: v})
	}
	return out
}
