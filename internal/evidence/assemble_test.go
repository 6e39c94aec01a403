package evidence

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

func f(x float64) *float64 { return &x }

func TestAssembleEvidenceEmptyBlocks(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{
		{Name: "order_id", InferredType: profile.TypeString, RoleCandidate: profile.RoleID},
		{Name: "revenue", InferredType: profile.TypeNumber, RoleCandidate: profile.RoleMeasure},
	}}
	ev := AssembleEvidence(AssembleInput{Profile: p, Intent: IntentSales, PrimaryMetric: Metric{Column: "revenue"}})

	assert.Empty(t, ev.KPIs)
	assert.Empty(t, ev.Trends)
	assert.Empty(t, ev.Breakdowns)
	assert.Empty(t, ev.Drivers)
	assert.Equal(t, []SchemaColumn{
		{Name: "order_id", InferredType: profile.TypeString, RoleCandidate: profile.RoleID},
		{Name: "revenue", InferredType: profile.TypeNumber, RoleCandidate: profile.RoleMeasure},
	}, ev.SchemaSummary)

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"intent":"sales","primaryMetric":"revenue",
		"kpis":[],"trends":[],"breakdowns":[],"drivers":[],
		"schemaSummary":[
			{"name":"order_id","inferredType":"string","roleCandidate":"id"},
			{"name":"revenue","inferredType":"number","roleCandidate":"measure"}
		]}`, string(b))
}

func TestAssembleEvidenceDefaults(t *testing.T) {
	ev := AssembleEvidence(AssembleInput{Blocks: []Block{
		{Type: KPIBlock, Payload: &KPIPayload{RowCount: 3}},
		{Type: TrendBlock, Payload: &TrendPayload{TimeColumn: "date", Grain: "month", Series: []SeriesPoint{{T: "2024-01-01", Count: 3}}}},
		{Type: TopNBlock, Payload: &BreakdownPayload{Dimension: "region", Agg: "count", Rows: []BreakdownRow{{Key: "West", Count: f(2)}}}},
		{Type: BreakdownBlock, Payload: &BreakdownPayload{Agg: "count", Rows: []BreakdownRow{}}},
		{Type: DriverBlock, Payload: &DriverPayload{Measure: "revenue", TopDrivers: []DriverGroup{}}},
	}})

	assert.Equal(t, IntentGeneric, ev.Intent)
	assert.True(t, ev.PrimaryMetric.IsRowCount())
	require.Len(t, ev.KPIs, 1)
	assert.Equal(t, "kpi-01", ev.KPIs[0].ID)
	assert.Equal(t, "Key metrics", ev.KPIs[0].Label)
	assert.Nil(t, ev.KPIs[0].PrimaryMeasure)
	assert.Nil(t, ev.KPIs[0].Latest)

	require.Len(t, ev.Trends, 1)
	assert.Equal(t, "trend-01", ev.Trends[0].ID)
	assert.Equal(t, "Trend over time", ev.Trends[0].Label)
	assert.Equal(t, []string{}, ev.Trends[0].Anomalies)

	require.Len(t, ev.Breakdowns, 2)
	assert.Equal(t, "breakdown-1", ev.Breakdowns[0].ID)
	assert.Equal(t, "By region", ev.Breakdowns[0].Label)
	assert.Equal(t, "breakdown-2", ev.Breakdowns[1].ID)
	assert.Equal(t, "Breakdown", ev.Breakdowns[1].Label)

	require.Len(t, ev.Drivers, 1)
	assert.Equal(t, "drivers-01", ev.Drivers[0].ID)
	assert.Equal(t, "Top drivers", ev.Drivers[0].Label)
	for _, k := range ev.KPIs {
		assert.NotEmpty(t, k.ID)
		assert.NotEmpty(t, k.Label)
	}
}

func TestAssembleEvidenceSkipsMismatchedPayloads(t *testing.T) {
	ev := AssembleEvidence(AssembleInput{Blocks: []Block{
		{Type: KPIBlock, Payload: &TrendPayload{}},
		{Type: TrendBlock, Payload: &TrendPayload{TimeColumn: "d"}},
		{Type: TopNBlock},
		{Type: DriverBlock, Payload: &DriverPayload{Measure: "x"}},
		{Type: "Mystery", Payload: &KPIPayload{}},
	}})
	assert.Empty(t, ev.KPIs)
	assert.Empty(t, ev.Trends)
	assert.Empty(t, ev.Breakdowns)
	assert.Empty(t, ev.Drivers)
}

func TestAssembleEvidenceBreakdownValueFallback(t *testing.T) {
	ev := AssembleEvidence(AssembleInput{Blocks: []Block{{
		ID: "topn-01-region", Type: TopNBlock, Title: "Top N by region",
		Payload: &BreakdownPayload{Dimension: "region", Agg: "sum", Rows: []BreakdownRow{
			{Key: "a", Value: f(5), Sum: f(50), Count: f(1)},
			{Key: "b", Sum: f(40), Count: f(2)},
			{Key: "c", Count: f(3)},
			{Key: "d", Value: f(math.Inf(1))},
			{Key: "e"},
		}},
	}}})
	require.Len(t, ev.Breakdowns, 1)
	bd := ev.Breakdowns[0]
	assert.Equal(t, "topn-01-region", bd.ID)
	assert.Equal(t, "Top N by region", bd.Label)
	require.Len(t, bd.Rows, 5)
	assert.Equal(t, 5.0, *bd.Rows[0].Value)
	assert.Equal(t, 40.0, *bd.Rows[1].Value)
	assert.Equal(t, 3.0, *bd.Rows[2].Value)
	assert.Nil(t, bd.Rows[3].Value)
	assert.Nil(t, bd.Rows[4].Value)
}

func TestAssembleEvidenceKPIProjection(t *testing.T) {
	kpi := &KPIPayload{
		RowCount:       120,
		PrimaryMeasure: "revenue",
		MetricSummaries: []MetricSummary{{Name: "revenue", Summary: NumericSummary{
			Count: 120, Min: f(1), Max: f(math.NaN()), Mean: f(10),
		}}},
		ExecutiveKPIs: &ExecutiveKPIs{
			TimeColumn: "date", Grain: "month", Measure: "revenue",
			Latest:   &PeriodValue{Period: "2024-03-01", Value: f(300)},
			Previous: &PeriodValue{Period: "2024-02-01", Value: f(200)},
			Change:   &Change{Abs: f(100), Pct: f(0.5)},
			RangeCompare: &RangeCompare{
				Current:  RangeWindow{From: "2024-01-01", To: "2024-03-31", Total: f(700)},
				Previous: RangeWindow{From: "2023-10-02", To: "2024-01-01", Total: f(0)},
				Change:   Change{Abs: f(700)},
			},
			TopContributor: &Contributor{Dimension: "region", Group: "West", Value: f(150), Share: f(0.5)},
		},
		TimeKPIs: &TimeKPIs{Measure: "revenue", TimeColumn: "fiscal_year", LatestPeriod: 2024, PrevPeriod: 2023,
			LatestValue: f(10), PrevValue: f(0), Delta: f(10), Pct: f(math.Inf(1))},
	}
	ev := AssembleEvidence(AssembleInput{Intent: IntentSales, PrimaryMetric: Metric{Column: "gross"}, Blocks: []Block{
		{ID: "kpi-01", Type: KPIBlock, Title: "Key metrics", Payload: kpi},
	}})
	require.Len(t, ev.KPIs, 1)
	k := ev.KPIs[0]
	require.NotNil(t, k.PrimaryMeasure)
	assert.Equal(t, "revenue", *k.PrimaryMeasure)
	assert.Equal(t, 120, k.RowCount)
	require.NotNil(t, k.Latest)
	assert.Equal(t, "2024-03-01", k.Latest.Period)
	require.NotNil(t, k.Change)
	assert.Equal(t, "2024-02-01", k.Change.PreviousPeriod)
	assert.Equal(t, 0.5, *k.Change.Pct)
	assert.Equal(t, 700.0, *k.PeriodTotal)
	assert.Nil(t, k.RangeCompare.Change.Pct)
	assert.Equal(t, "West", k.TopContributor.Group)
	assert.Nil(t, k.MetricSummaries[0].Summary.Max)
	assert.Nil(t, k.TimeKPIs.Pct)

	// input payload is not mutated by sanitizing
	assert.True(t, math.IsInf(*kpi.TimeKPIs.Pct, 1))

	_, err := json.Marshal(ev)
	require.NoError(t, err)
}

func TestAssembleEvidencePrimaryMeasureFallsBackToMetric(t *testing.T) {
	ev := AssembleEvidence(AssembleInput{PrimaryMetric: Metric{Column: "amount"}, Blocks: []Block{
		{Type: KPIBlock, Payload: &KPIPayload{RowCount: 1}},
	}})
	require.NotNil(t, ev.KPIs[0].PrimaryMeasure)
	assert.Equal(t, "amount", *ev.KPIs[0].PrimaryMeasure)
}

func TestAssembleEvidenceDriversAndTrends(t *testing.T) {
	ev := AssembleEvidence(AssembleInput{Blocks: []Block{
		{ID: "trend-01-month", Type: TrendBlock, Title: "Trend by month", Payload: &TrendPayload{
			TimeColumn: "date", Grain: "month", Measure: "revenue", Agg: "sum",
			Series:    []SeriesPoint{{T: "2024-01-01", Sum: f(10), Count: 1}, {T: "2024-02-01", Sum: f(math.NaN()), Count: 2}},
			Anomalies: []string{"2024-02-01"},
		}},
		{ID: "drivers-01-revenue", Type: DriverBlock, Payload: &DriverPayload{Measure: "revenue", TopDrivers: []DriverGroup{
			{Dimension: "region", Group: "West", Total: f(60), Share: f(0.6), Avg: f(30), Lift: f(0.2), Count: 2, Score: f(0.13)},
		}}},
	}})
	tr := ev.Trends[0]
	assert.Equal(t, "Trend by month", tr.Label)
	assert.Equal(t, "revenue", tr.Measure)
	assert.Nil(t, tr.Series[1].Sum)
	assert.Equal(t, []string{"2024-02-01"}, tr.Anomalies)

	d := ev.Drivers[0]
	assert.Equal(t, "drivers-01-revenue", d.ID)
	assert.Equal(t, "Top drivers", d.Label)
	assert.Equal(t, []DriverEntry{{Dimension: "region", Group: "West", Total: f(60), Share: f(0.6), Lift: f(0.2), Count: 2}}, d.TopDrivers)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "score")
	assert.NotContains(t, string(b), "avg")
}

func TestDecodeBlocks(t *testing.T) {
	data := []byte(`[
		{"id":"kpi-01","type":"KPIBlock","status":"OK","confidence":0.85,"sampleSize":3,"payload":{"rowCount":3,"metricSummaries":[]}},
		{"id":"trend-01","type":"TrendBlock","payload":{"timeColumn":"date","grain":"month","series":"oops"}},
		{"id":"topn-01","type":"TopNBlock","payload":{"dimension":"region","agg":"count","rows":[{"key":"West","count":2}]}},
		42,
		"text",
		{"id":"x","type":"Unknown","payload":{"a":1}}
	]`)
	blocks, err := DecodeBlocks(data)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.IsType(t, &KPIPayload{}, blocks[0].Payload)
	assert.Nil(t, blocks[1].Payload)
	assert.IsType(t, &BreakdownPayload{}, blocks[2].Payload)
	assert.Nil(t, blocks[3].Payload)

	ev := AssembleEvidence(AssembleInput{Blocks: blocks})
	assert.Len(t, ev.KPIs, 1)
	assert.Empty(t, ev.Trends)
	require.Len(t, ev.Breakdowns, 1)
	assert.Equal(t, 2.0, *ev.Breakdowns[0].Rows[0].Value)

	_, err = DecodeBlocks([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestEvidenceMarkdown(t *testing.T) {
	ev := AssembleEvidence(AssembleInput{
		Intent:        IntentSales,
		PrimaryMetric: Metric{Column: "revenue"},
		Profile: &profile.Profile{Columns: []profile.ColumnProfile{
			{Name: "region", InferredType: profile.TypeString, RoleCandidate: profile.RoleDimension},
		}},
		Blocks: []Block{
			{ID: "kpi-01", Type: KPIBlock, Payload: &KPIPayload{RowCount: 4, PrimaryMeasure: "revenue"}},
			{ID: "trend-01-month", Type: TrendBlock, Title: "Trend by month", Payload: &TrendPayload{
				TimeColumn: "date", Grain: "month",
				Series:    []SeriesPoint{{T: "2024-01-01", Count: 1}, {T: "2024-02-01", Count: 9}},
				Anomalies: []string{"2024-02-01"},
			}},
			{ID: "topn-01-region", Type: TopNBlock, Title: "Top N by region", Payload: &BreakdownPayload{
				Dimension: "region", Agg: "count", Rows: []BreakdownRow{{Key: "West|East", Count: f(3)}},
			}},
		},
	})
	ev.RunID = "run-1"
	md := ev.Markdown()
	assert.Contains(t, md, "[EVIDENCE]")
	assert.Contains(t, md, "Run: run-1")
	assert.Contains(t, md, "Intent: sales")
	assert.Contains(t, md, "Primary metric: revenue")
	assert.Contains(t, md, "- region: string (dimension)")
	assert.Contains(t, md, "[KPI kpi-01] Key metrics")
	assert.Contains(t, md, "Rows: 4")
	assert.Contains(t, md, "- 2024-02-01: count 9 (anomaly)")
	assert.Contains(t, md, "- West/East: 3")

	empty := AssembleEvidence(AssembleInput{})
	assert.Contains(t, empty.Markdown(), "Primary metric: (row count)")
}
