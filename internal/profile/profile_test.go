package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

func fixtureRows() []*dataset.Row {
	long := "This is a longer description that should be treated as text content."
	return []*dataset.Row{
		dataset.RowOf("id", "a1", "amount", 10, "postedDate", "2026-01-01", "state", "CA", "description", "Short note"),
		dataset.RowOf("id", "a2", "amount", 20, "postedDate", "2026-01-02", "state", "NY", "description", long),
		dataset.RowOf("id", "a2", "amount", 20, "postedDate", "2026-01-02", "state", "NY", "description", long),
	}
}

func TestBuildAssignsRoles(t *testing.T) {
	cols := []string{"id", "amount", "postedDate", "state", "description"}
	opt := DefaultOptions()
	opt.NumericColumns = []string{"amount"}
	p := Build(fixtureRows(), cols, opt)

	assert.Equal(t, 3, p.DatasetStats.RowCount)
	assert.Equal(t, 3, p.DatasetStats.ProfiledRowCount)
	assert.Equal(t, 5, p.DatasetStats.ColumnCount)

	byName := map[string]ColumnProfile{}
	names := []string{}
	for _, c := range p.Columns {
		byName[c.Name] = c
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"amount", "description", "id", "postedDate", "state"}, names)

	assert.Equal(t, RoleTime, byName["postedDate"].RoleCandidate)
	assert.Equal(t, TypeDate, byName["postedDate"].InferredType)
	assert.Equal(t, RoleGeo, byName["state"].RoleCandidate)
	assert.Equal(t, TypeNumber, byName["amount"].InferredType)
	assert.Equal(t, RoleMeasure, byName["amount"].RoleCandidate)
	assert.Equal(t, RoleID, byName["id"].RoleCandidate)
	assert.Equal(t, RoleDimension, byName["description"].RoleCandidate)

	assert.True(t, p.Flags.HasTime)
	assert.True(t, p.Flags.HasGeo)
	assert.True(t, p.Flags.HasNumeric)
	assert.True(t, p.Flags.HasText)
	assert.InDelta(t, 1.0/3.0, p.Quality.DuplicatesPct, 1e-9)
}

func TestBuildNullPctAndMissingness(t *testing.T) {
	rows := []*dataset.Row{
		dataset.RowOf("a", "x", "b", ""),
		dataset.RowOf("a", "", "b", ""),
		dataset.RowOf("a", "y", "b", nil),
		dataset.RowOf("a", "z", "b", "q"),
	}
	p := Build(rows, []string{"b", "a", " "}, DefaultOptions())
	require.Len(t, p.Columns, 2)
	a, _ := p.Column("a")
	b, _ := p.Column("b")
	assert.InDelta(t, 0.25, a.NullPct, 1e-9)
	assert.InDelta(t, 0.75, b.NullPct, 1e-9)
	assert.Equal(t, []string{"b"}, p.Quality.MissingnessSummary.ColumnsOver50PctMissing)
	assert.Empty(t, p.Quality.MissingnessSummary.ColumnsOver90PctMissing)
	assert.InDelta(t, 4.0/8.0, p.Quality.MissingnessSummary.OverallMissingPct, 1e-9)
}

func TestBuildConstantNumberIsNotMeasure(t *testing.T) {
	rows := []*dataset.Row{dataset.RowOf("score", 5), dataset.RowOf("score", 5), dataset.RowOf("score", 5)}
	p := Build(rows, []string{"score"}, DefaultOptions())
	assert.Equal(t, TypeNumber, p.Columns[0].InferredType)
	assert.Equal(t, RoleDimension, p.Columns[0].RoleCandidate)
}

func TestBuildYearColumnIsTime(t *testing.T) {
	rows := []*dataset.Row{
		dataset.RowOf("fiscal_year", 2021, "spend", 1),
		dataset.RowOf("fiscal_year", 2022, "spend", 2),
		dataset.RowOf("fiscal_year", 2023, "spend", 3),
	}
	p := Build(rows, []string{"fiscal_year", "spend"}, DefaultOptions())
	fy, _ := p.Column("fiscal_year")
	assert.Equal(t, RoleTime, fy.RoleCandidate)
	spend, _ := p.Column("spend")
	assert.Equal(t, RoleMeasure, spend.RoleCandidate)
}

func TestBuildReportsGeoOutOfRange(t *testing.T) {
	rows := []*dataset.Row{dataset.RowOf("latitude", 10), dataset.RowOf("latitude", 120)}
	p := Build(rows, []string{"latitude"}, DefaultOptions())
	require.Len(t, p.Quality.ParseIssues, 1)
	assert.Equal(t, "geo_out_of_range", p.Quality.ParseIssues[0].Type)
	assert.Equal(t, 1, p.Quality.ParseIssues[0].Count)
}

func TestParseProfileJSON(t *testing.T) {
	doc := []byte(`{"columns":[
		{"name":"revenue","inferredType":"number","roleCandidate":"measure","nullPct":0.1},
		{"name":"region","inferredType":"string","roleCandidate":"dimension"}
	]}`)
	p, err := ParseProfileJSON(doc)
	require.NoError(t, err)
	require.Len(t, p.Columns, 2)
	assert.Equal(t, 0.1, p.Columns[0].NullPct)
	assert.Equal(t, 1.0, p.Columns[1].NullPct)
	assert.Equal(t, 2, p.DatasetStats.ColumnCount)
}

func TestValidateProfileJSONRejectsBadRole(t *testing.T) {
	doc := []byte(`{"columns":[{"name":"x","inferredType":"number","roleCandidate":"metric","nullPct":2}]}`)
	err := ValidateProfileJSON(doc)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.GreaterOrEqual(t, len(verr.Problems), 2)
}
