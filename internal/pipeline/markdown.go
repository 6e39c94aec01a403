package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/forecast"
)

// Markdown renders the evidence summary followed by the forecast and loader notes.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Analysis: %s\n\n", r.Source))
	b.WriteString(fmt.Sprintf("Rows: %d, columns: %d\n", r.RowCount, len(r.Columns)))
	if len(r.NumericColumns) > 0 {
		b.WriteString(fmt.Sprintf("Numeric columns: %s\n", strings.Join(r.NumericColumns, ", ")))
	}
	if len(r.AddedColumns) > 0 {
		names := make([]string, len(r.AddedColumns))
		for i, c := range r.AddedColumns {
			names[i] = c.Name
		}
		b.WriteString(fmt.Sprintf("Derived columns: %s\n", strings.Join(names, ", ")))
	}
	b.WriteString("\n")
	b.WriteString(r.Evidence.Markdown())

	if r.Trend != nil {
		b.WriteString("\n[FORECAST]\n")
		b.WriteString(fmt.Sprintf("Trend: %s (slope %s, r² %s)\n", r.Trend.Direction,
			round(r.Trend.Slope), round(r.Trend.Confidence)))
		writePoints(&b, r.Forecast)
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

// Markdown renders the series with forecast points marked.
func (r *ForecastResult) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Forecast: %s\n\n", r.Source))
	what := "row count"
	if r.Measure != "" {
		what = r.Measure
	}
	b.WriteString(fmt.Sprintf("Series: %s by %s of %s\n", what, r.Grain, r.TimeColumn))
	b.WriteString(fmt.Sprintf("Trend: %s (slope %s, r² %s)\n", r.Trend.Direction, round(r.Trend.Slope), round(r.Trend.Confidence)))
	if len(r.Points) == 0 {
		b.WriteString("No dated rows to forecast.\n")
		return b.String()
	}
	if r.Season != nil {
		b.WriteString(fmt.Sprintf("Seasonality (period %d): variance %s\n", r.Season.Period, round(r.Season.Variance)))
	}
	b.WriteString("\n[SERIES]\n")
	writePoints(&b, r.Points)
	if len(r.Smoothed) > 0 {
		b.WriteString("\n[SMOOTHED]\n")
		writePoints(&b, r.Smoothed)
	}
	return b.String()
}

func writePoints(b *strings.Builder, pts []forecast.Point) {
	for _, p := range pts {
		date := p.Date
		if date == "" {
			date = "(undated)"
		}
		if !p.IsForecast {
			b.WriteString(fmt.Sprintf("- %s: %s\n", date, round(p.Value)))
			continue
		}
		line := fmt.Sprintf("- %s: %s (forecast", date, round(p.Value))
		if p.LowerBound != nil && p.UpperBound != nil {
			line += fmt.Sprintf(", 95%% band %s to %s", round(*p.LowerBound), round(*p.UpperBound))
		}
		b.WriteString(line + ")\n")
	}
}

func round(x float64) string {
	return dataset.FormatNumber(math.Round(x*1e4) / 1e4)
}
