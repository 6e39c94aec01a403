package evidence

import (
	"fmt"

	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// KPIChange is the latest-vs-previous delta as carried in Evidence.
type KPIChange struct {
	Abs            *float64 `json:"abs"`
	Pct            *float64 `json:"pct"`
	PreviousPeriod string   `json:"previousPeriod,omitempty"`
}

// ContributorShare is the top group of the latest period.
type ContributorShare struct {
	Dimension string   `json:"dimension"`
	Group     string   `json:"group"`
	Share     *float64 `json:"share"`
}

type KPI struct {
	ID              string            `json:"id"`
	Label           string            `json:"label"`
	RowCount        int               `json:"rowCount"`
	PrimaryMeasure  *string           `json:"primaryMeasure"`
	Latest          *PeriodValue      `json:"latest"`
	Change          *KPIChange        `json:"change"`
	TopContributor  *ContributorShare `json:"topContributor"`
	MetricSummaries []MetricSummary   `json:"metricSummaries"`
	TimeKPIs        *TimeKPIs         `json:"timeKpis"`
	PeriodTotal     *float64          `json:"periodTotal,omitempty"`
	RangeCompare    *RangeCompare     `json:"rangeCompare,omitempty"`
}

type Trend struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	TimeColumn string        `json:"timeColumn"`
	Grain      string        `json:"grain"`
	Measure    string        `json:"measure,omitempty"`
	Series     []SeriesPoint `json:"series"`
	Anomalies  []string      `json:"anomalies"`
}

type BreakdownValue struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value"`
}

type Breakdown struct {
	ID        string           `json:"id"`
	Label     string           `json:"label"`
	Dimension string           `json:"dimension"`
	Measure   string           `json:"measure,omitempty"`
	Agg       string           `json:"agg"`
	Rows      []BreakdownValue `json:"rows"`
}

type DriverEntry struct {
	Dimension string   `json:"dimension"`
	Group     string   `json:"group"`
	Total     *float64 `json:"total"`
	Share     *float64 `json:"share"`
	Lift      *float64 `json:"lift"`
	Count     int      `json:"count"`
}

type Drivers struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Measure    string        `json:"measure"`
	TopDrivers []DriverEntry `json:"topDrivers"`
}

type SchemaColumn struct {
	Name          string               `json:"name"`
	InferredType  profile.InferredType `json:"inferredType"`
	RoleCandidate profile.Role         `json:"roleCandidate"`
}

// Evidence is the UI-agnostic summary of one analysis run. Every entry carries an id and a
// label; numbers are finite or null.
type Evidence struct {
	RunID         string         `json:"runId,omitempty"`
	Intent        Intent         `json:"intent"`
	PrimaryMetric Metric         `json:"primaryMetric"`
	KPIs          []KPI          `json:"kpis"`
	Trends        []Trend        `json:"trends"`
	Breakdowns    []Breakdown    `json:"breakdowns"`
	Drivers       []Drivers      `json:"drivers"`
	SchemaSummary []SchemaColumn `json:"schemaSummary"`
}

type AssembleInput struct {
	Profile       *profile.Profile
	Intent        Intent
	PrimaryMetric Metric
	Blocks        []Block
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// AssembleEvidence projects blocks into Evidence, dropping engine-only fields. Blocks whose
// payload is missing or of the wrong shape are skipped.
func AssembleEvidence(in AssembleInput) Evidence {
	ev := Evidence{
		Intent:        in.Intent,
		PrimaryMetric: in.PrimaryMetric,
		KPIs:          []KPI{},
		Trends:        []Trend{},
		Breakdowns:    []Breakdown{},
		Drivers:       []Drivers{},
		SchemaSummary: []SchemaColumn{},
	}
	if ev.Intent == "" {
		ev.Intent = IntentGeneric
	}

	for _, b := range in.Blocks {
		switch pl := b.Payload.(type) {
		case *KPIPayload:
			if b.Type == KPIBlock && pl != nil {
				ev.KPIs = append(ev.KPIs, kpiEntry(b, pl, in.PrimaryMetric))
			}
		case *TrendPayload:
			if b.Type == TrendBlock && pl != nil && pl.Series != nil {
				ev.Trends = append(ev.Trends, trendEntry(b, pl))
			}
		case *BreakdownPayload:
			isBreakdown := b.Type == TopNBlock || b.Type == BreakdownBlock || b.Type == GeoLikeBlock
			if isBreakdown && pl != nil && pl.Rows != nil {
				ev.Breakdowns = append(ev.Breakdowns, breakdownEntry(b, pl, len(ev.Breakdowns)))
			}
		case *DriverPayload:
			if b.Type == DriverBlock && pl != nil && pl.TopDrivers != nil {
				ev.Drivers = append(ev.Drivers, driverEntry(b, pl))
			}
		}
	}

	if in.Profile != nil {
		for _, c := range in.Profile.Columns {
			ev.SchemaSummary = append(ev.SchemaSummary, SchemaColumn{
				Name:          c.Name,
				InferredType:  c.InferredType,
				RoleCandidate: c.RoleCandidate,
			})
		}
	}
	return ev
}

func kpiEntry(b Block, pl *KPIPayload, metric Metric) KPI {
	k := KPI{
		ID:              orDefault(b.ID, "kpi-01"),
		Label:           "Key metrics",
		RowCount:        pl.RowCount,
		MetricSummaries: make([]MetricSummary, 0, len(pl.MetricSummaries)),
		TimeKPIs:        sanitizeTimeKPIs(pl.TimeKPIs),
	}
	switch {
	case pl.PrimaryMeasure != "":
		name := pl.PrimaryMeasure
		k.PrimaryMeasure = &name
	case !metric.IsRowCount():
		name := metric.Column
		k.PrimaryMeasure = &name
	}
	for _, m := range pl.MetricSummaries {
		k.MetricSummaries = append(k.MetricSummaries, MetricSummary{Name: m.Name, Summary: sanitizeSummary(m.Summary)})
	}

	exec := pl.ExecutiveKPIs
	if exec == nil {
		return k
	}
	if exec.Latest != nil {
		k.Latest = &PeriodValue{Period: exec.Latest.Period, Value: finite(exec.Latest.Value)}
	}
	if exec.Change != nil {
		k.Change = &KPIChange{Abs: finite(exec.Change.Abs), Pct: finite(exec.Change.Pct)}
		if exec.Previous != nil {
			k.Change.PreviousPeriod = exec.Previous.Period
		}
	}
	if tc := exec.TopContributor; tc != nil {
		k.TopContributor = &ContributorShare{Dimension: tc.Dimension, Group: tc.Group, Share: finite(tc.Share)}
	}
	if rc := exec.RangeCompare; rc != nil {
		k.PeriodTotal = finite(rc.Current.Total)
		k.RangeCompare = &RangeCompare{
			Current:  RangeWindow{From: rc.Current.From, To: rc.Current.To, Total: finite(rc.Current.Total)},
			Previous: RangeWindow{From: rc.Previous.From, To: rc.Previous.To, Total: finite(rc.Previous.Total)},
			Change:   Change{Abs: finite(rc.Change.Abs), Pct: finite(rc.Change.Pct)},
		}
	}
	return k
}

func sanitizeSummary(s NumericSummary) NumericSummary {
	return NumericSummary{
		Count: s.Count, NullCount: s.NullCount,
		Min: finite(s.Min), Max: finite(s.Max), Mean: finite(s.Mean),
		P10: finite(s.P10), P25: finite(s.P25), P50: finite(s.P50), P75: finite(s.P75), P90: finite(s.P90),
	}
}

func sanitizeTimeKPIs(t *TimeKPIs) *TimeKPIs {
	if t == nil {
		return nil
	}
	c := *t
	c.LatestValue, c.PrevValue = finite(t.LatestValue), finite(t.PrevValue)
	c.Delta, c.Pct = finite(t.Delta), finite(t.Pct)
	return &c
}

func trendEntry(b Block, pl *TrendPayload) Trend {
	tr := Trend{
		ID:         orDefault(b.ID, "trend-01"),
		Label:      orDefault(b.Title, "Trend over time"),
		TimeColumn: pl.TimeColumn,
		Grain:      pl.Grain,
		Measure:    pl.Measure,
		Series:     make([]SeriesPoint, 0, len(pl.Series)),
		Anomalies:  []string{},
	}
	for _, s := range pl.Series {
		tr.Series = append(tr.Series, SeriesPoint{T: s.T, Sum: finite(s.Sum), Count: s.Count})
	}
	if pl.Anomalies != nil {
		tr.Anomalies = append(tr.Anomalies, pl.Anomalies...)
	}
	return tr
}

func breakdownEntry(b Block, pl *BreakdownPayload, existing int) Breakdown {
	label := b.Title
	if label == "" {
		label = "Breakdown"
		if pl.Dimension != "" {
			label = "By " + pl.Dimension
		}
	}
	bd := Breakdown{
		ID:        orDefault(b.ID, fmt.Sprintf("breakdown-%d", existing+1)),
		Label:     label,
		Dimension: pl.Dimension,
		Measure:   pl.Measure,
		Agg:       pl.Agg,
		Rows:      make([]BreakdownValue, 0, len(pl.Rows)),
	}
	for _, r := range pl.Rows {
		bd.Rows = append(bd.Rows, BreakdownValue{Key: r.Key, Value: r.Resolved()})
	}
	return bd
}

func driverEntry(b Block, pl *DriverPayload) Drivers {
	d := Drivers{
		ID:         orDefault(b.ID, "drivers-01"),
		Label:      orDefault(b.Title, "Top drivers"),
		Measure:    pl.Measure,
		TopDrivers: make([]DriverEntry, 0, len(pl.TopDrivers)),
	}
	for _, g := range pl.TopDrivers {
		d.TopDrivers = append(d.TopDrivers, DriverEntry{
			Dimension: g.Dimension,
			Group:     g.Group,
			Total:     finite(g.Total),
			Share:     finite(g.Share),
			Lift:      finite(g.Lift),
			Count:     g.Count,
		})
	}
	return d
}
