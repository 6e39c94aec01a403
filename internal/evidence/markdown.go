package evidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

func fmtNum(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return dataset.FormatNumber(math.Round(*p*1e4) / 1e4)
}

func fmtPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// Markdown renders a compact summary suitable for prompts or terminal output.
func (e *Evidence) Markdown() string {
	var b strings.Builder
	b.WriteString("[EVIDENCE]\n")
	if e.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", e.RunID))
	}
	b.WriteString(fmt.Sprintf("Intent: %s\n", e.Intent))
	b.WriteString(fmt.Sprintf("Primary metric: %s\n", e.PrimaryMetric))

	if len(e.SchemaSummary) > 0 {
		b.WriteString("\n[SCHEMA]\n")
		for _, c := range e.SchemaSummary {
			b.WriteString(fmt.Sprintf("- %s: %s (%s)\n", safeVal(c.Name), c.InferredType, c.RoleCandidate))
		}
	}

	for _, k := range e.KPIs {
		b.WriteString(fmt.Sprintf("\n[KPI %s] %s\n", k.ID, k.Label))
		b.WriteString(fmt.Sprintf("Rows: %d\n", k.RowCount))
		if k.PrimaryMeasure != nil {
			b.WriteString(fmt.Sprintf("Primary measure: %s\n", *k.PrimaryMeasure))
		}
		if k.Latest != nil {
			b.WriteString(fmt.Sprintf("Latest %s: %s", k.Latest.Period, fmtNum(k.Latest.Value)))
			if k.Change != nil {
				b.WriteString(fmt.Sprintf(" (change %s, %s vs %s)", fmtNum(k.Change.Abs), fmtPct(k.Change.Pct), k.Change.PreviousPeriod))
			}
			b.WriteString("\n")
		}
		if k.PeriodTotal != nil {
			b.WriteString(fmt.Sprintf("Period total: %s\n", fmtNum(k.PeriodTotal)))
		}
		if tc := k.TopContributor; tc != nil {
			b.WriteString(fmt.Sprintf("Top %s: %s (%s of latest period)\n", tc.Dimension, safeVal(tc.Group), fmtPct(tc.Share)))
		}
		if t := k.TimeKPIs; t != nil {
			b.WriteString(fmt.Sprintf("%s %d vs %d: %s vs %s (%s)\n", t.Measure, t.LatestPeriod, t.PrevPeriod,
				fmtNum(t.LatestValue), fmtNum(t.PrevValue), fmtPct(t.Pct)))
		}
		for _, m := range k.MetricSummaries {
			s := m.Summary
			b.WriteString(fmt.Sprintf("- %s: n=%d, missing %d, min %s, p50 %s, mean %s, max %s\n",
				m.Name, s.Count, s.NullCount, fmtNum(s.Min), fmtNum(s.P50), fmtNum(s.Mean), fmtNum(s.Max)))
		}
	}

	for _, t := range e.Trends {
		b.WriteString(fmt.Sprintf("\n[TREND %s] %s\n", t.ID, t.Label))
		b.WriteString(fmt.Sprintf("Time: %s by %s", t.TimeColumn, t.Grain))
		if t.Measure != "" {
			b.WriteString(fmt.Sprintf(", measure %s", t.Measure))
		}
		b.WriteString("\n")
		anomalous := map[string]bool{}
		for _, a := range t.Anomalies {
			anomalous[a] = true
		}
		for _, s := range t.Series {
			line := fmt.Sprintf("- %s: count %d", s.T, s.Count)
			if s.Sum != nil {
				line += ", sum " + fmtNum(s.Sum)
			}
			if anomalous[s.T] {
				line += " (anomaly)"
			}
			b.WriteString(line + "\n")
		}
	}

	for _, bd := range e.Breakdowns {
		b.WriteString(fmt.Sprintf("\n[BREAKDOWN %s] %s\n", bd.ID, bd.Label))
		for _, r := range bd.Rows {
			b.WriteString(fmt.Sprintf("- %s: %s\n", safeVal(r.Key), fmtNum(r.Value)))
		}
	}

	for _, d := range e.Drivers {
		b.WriteString(fmt.Sprintf("\n[DRIVERS %s] %s (%s)\n", d.ID, d.Label, d.Measure))
		for _, g := range d.TopDrivers {
			b.WriteString(fmt.Sprintf("- %s=%s: share %s, lift %s, n=%d\n",
				g.Dimension, safeVal(g.Group), fmtPct(g.Share), fmtPct(g.Lift), g.Count))
		}
	}
	return b.String()
}
