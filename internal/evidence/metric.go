package evidence

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// Metric is the headline measure: either a named column or a row count.
type Metric struct {
	Column string
}

// RowCountMetric means "count the rows"; no numeric column represents the dataset.
var RowCountMetric = Metric{}

// IsRowCount reports whether the metric is the row-count sentinel.
func (m Metric) IsRowCount() bool { return m.Column == "" }

func (m Metric) String() string {
	if m.IsRowCount() {
		return "(row count)"
	}
	return m.Column
}

// MarshalJSON encodes the row-count sentinel as null and a column as its name.
func (m Metric) MarshalJSON() ([]byte, error) {
	if m.IsRowCount() {
		return []byte("null"), nil
	}
	return json.Marshal(m.Column)
}

func (m *Metric) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	m.Column = ""
	if s != nil {
		m.Column = *s
	}
	return nil
}

// VarianceSampleCap bounds how many values ComputeVariance reads per column.
const VarianceSampleCap = 5000

var countLikeRe = regexp.MustCompile(`(?i)opportunity_id|notice_id|solicitation|count`)

var intentPreferences = map[Intent][]string{
	IntentSales:      {"revenue", "gross", "amount", "sales", "quantity", "unit_price"},
	IntentFinancial:  {"amount", "total", "cost", "expense", "balance", "payment"},
	IntentOperations: {"duration", "count", "sla"},
}

// ComputeVariance is the Welford sample variance of up to VarianceSampleCap readable values.
// Unreadable cells are skipped. Fewer than two values give 0.
func ComputeVariance(rows []*dataset.Row, col string) float64 {
	n := 0
	mean, m2 := 0.0, 0.0
	for _, r := range rows {
		if x, ok := numeric.LeadingFloat(r.Value(col)); ok {
			n++
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
		}
		if n >= VarianceSampleCap {
			break
		}
	}
	if n > 1 {
		return m2 / float64(n-1)
	}
	return 0
}

func lowNull(c profile.ColumnProfile) bool { return c.NullPct <= 0.5 }

// SelectPrimaryMetric picks the column that best represents the dataset for the given intent.
// Opportunity datasets without a count-like column, and profiles with no candidate measures,
// resolve to RowCountMetric.
func SelectPrimaryMetric(p *profile.Profile, intent Intent, rows []*dataset.Row) Metric {
	var measures []profile.ColumnProfile
	if p != nil {
		for _, c := range p.Columns {
			if !c.IsNumeric() {
				continue
			}
			switch c.RoleCandidate {
			case profile.RoleTime, profile.RoleID, profile.RoleGeo:
				continue
			}
			measures = append(measures, c)
		}
	}

	if intent == IntentOpportunity {
		for _, c := range measures {
			if countLikeRe.MatchString(c.Name) {
				return Metric{Column: c.Name}
			}
		}
		return RowCountMetric
	}

	if intent == IntentSales {
		for _, c := range measures {
			n := strings.ToLower(c.Name)
			if n == RevenueColumn || n == GrossColumn {
				return Metric{Column: c.Name}
			}
		}
	}
	if prefs, ok := intentPreferences[intent]; ok {
		if name, ok := byPreference(measures, prefs); ok {
			return Metric{Column: name}
		}
	}

	var pool []profile.ColumnProfile
	for _, c := range measures {
		if lowNull(c) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = measures
	}
	switch len(pool) {
	case 0:
		return RowCountMetric
	case 1:
		return Metric{Column: pool[0].Name}
	}

	variance := map[string]float64{}
	if len(rows) > 0 {
		for _, c := range pool {
			variance[c.Name] = ComputeVariance(rows, c.Name)
		}
	}
	col := dataset.NewCollator()
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		am, bm := a.RoleCandidate == profile.RoleMeasure, b.RoleCandidate == profile.RoleMeasure
		if am != bm {
			return am
		}
		if a.NullPct != b.NullPct {
			return a.NullPct < b.NullPct
		}
		if len(rows) > 0 && variance[a.Name] != variance[b.Name] {
			return variance[a.Name] > variance[b.Name]
		}
		return col.CompareString(a.Name, b.Name) < 0
	})
	return Metric{Column: pool[0].Name}
}

// byPreference walks prefs in order; for each, the first measure whose name equals or contains
// it is taken only if its null rate is low, otherwise the next preference is tried.
func byPreference(measures []profile.ColumnProfile, prefs []string) (string, bool) {
	for _, pref := range prefs {
		for _, c := range measures {
			n := strings.ToLower(c.Name)
			if n == pref || strings.Contains(n, pref) {
				if lowNull(c) {
					return c.Name, true
				}
				break
			}
		}
	}
	return "", false
}
