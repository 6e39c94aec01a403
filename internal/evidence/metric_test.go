package evidence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

func measure(name string, nullPct float64) profile.ColumnProfile {
	return profile.ColumnProfile{Name: name, InferredType: profile.TypeNumber, RoleCandidate: profile.RoleMeasure, NullPct: nullPct}
}

func TestSelectPrimaryMetricSalesPrefersDerivedEvenIfSparse(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{measure("amount", 0), measure("Revenue", 0.9)}}
	assert.Equal(t, Metric{Column: "Revenue"}, SelectPrimaryMetric(p, IntentSales, nil))
}

func TestSelectPrimaryMetricPreferenceRespectsNulls(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{measure("total_amount", 0.8), measure("cost", 0.1)}}
	// "amount" hits total_amount first but it is sparse, so the next preference wins.
	assert.Equal(t, Metric{Column: "cost"}, SelectPrimaryMetric(p, IntentFinancial, nil))
}

func TestSelectPrimaryMetricOpportunity(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{measure("award_value", 0), measure("bid_count", 0)}}
	assert.Equal(t, Metric{Column: "bid_count"}, SelectPrimaryMetric(p, IntentOpportunity, nil))

	p = &profile.Profile{Columns: []profile.ColumnProfile{measure("award_value", 0)}}
	m := SelectPrimaryMetric(p, IntentOpportunity, nil)
	assert.True(t, m.IsRowCount())
}

func TestSelectPrimaryMetricExcludesTimeIDGeo(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{
		{Name: "year", InferredType: profile.TypeNumber, RoleCandidate: profile.RoleTime},
		{Name: "zip", InferredType: profile.TypeNumber, RoleCandidate: profile.RoleGeo},
		{Name: "row_id", InferredType: profile.TypeNumber, RoleCandidate: profile.RoleID},
	}}
	assert.Equal(t, RowCountMetric, SelectPrimaryMetric(p, IntentGeneric, nil))
	assert.Equal(t, RowCountMetric, SelectPrimaryMetric(nil, IntentGeneric, nil))
}

func TestSelectPrimaryMetricFallbackOrdering(t *testing.T) {
	numberDim := profile.ColumnProfile{Name: "aaa", InferredType: profile.TypeNumber, RoleCandidate: profile.RoleDimension}
	p := &profile.Profile{Columns: []profile.ColumnProfile{numberDim, measure("b", 0.2), measure("c", 0.1)}}
	// measure role first, then lower null rate
	assert.Equal(t, Metric{Column: "c"}, SelectPrimaryMetric(p, IntentGeneric, nil))
}

func TestSelectPrimaryMetricVarianceTieBreak(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{measure("alpha", 0), measure("beta", 0)}}
	rows := []*dataset.Row{
		dataset.RowOf("alpha", 1, "beta", 10),
		dataset.RowOf("alpha", 2, "beta", 50),
		dataset.RowOf("alpha", 3, "beta", 90),
	}
	assert.Equal(t, Metric{Column: "beta"}, SelectPrimaryMetric(p, IntentGeneric, rows))
	// without rows the name decides
	assert.Equal(t, Metric{Column: "alpha"}, SelectPrimaryMetric(p, IntentGeneric, nil))
}

func TestSelectPrimaryMetricHighNullPoolFallback(t *testing.T) {
	p := &profile.Profile{Columns: []profile.ColumnProfile{measure("x", 0.9), measure("y", 0.7)}}
	assert.Equal(t, Metric{Column: "y"}, SelectPrimaryMetric(p, IntentGeneric, nil))
}

func TestComputeVariance(t *testing.T) {
	rows := []*dataset.Row{
		dataset.RowOf("v", 2), dataset.RowOf("v", "$4"), dataset.RowOf("v", "4 units"),
		dataset.RowOf("v", nil), dataset.RowOf("v", "n/a"), dataset.RowOf("v", 5),
		dataset.RowOf("v", 5), dataset.RowOf("v", 7), dataset.RowOf("v", 9),
	}
	// values 2,4,4,5,5,7,9: mean 5.142857, sample variance 5.142857
	assert.InDelta(t, 36.0/7.0, ComputeVariance(rows, "v"), 1e-9)
	assert.Equal(t, 0.0, ComputeVariance(rows[:1], "v"))
}

func TestMetricJSON(t *testing.T) {
	b, err := json.Marshal(RowCountMetric)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
	b, err = json.Marshal(Metric{Column: "revenue"})
	require.NoError(t, err)
	assert.Equal(t, `"revenue"`, string(b))

	var m Metric
	require.NoError(t, json.Unmarshal([]byte(`"gross"`), &m))
	assert.Equal(t, "gross", m.Column)
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.True(t, m.IsRowCount())
}
