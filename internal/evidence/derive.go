package evidence

import (
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// Derived column names.
const (
	GrossColumn   = "gross"
	RevenueColumn = "revenue"
)

var (
	QuantityCandidates = []string{"quantity", "qty", "qty_ordered", "units", "order_quantity", "quantity_ordered", "units_sold", "num_units", "items"}
	PriceCandidates    = []string{"unit_price", "price", "unit_price_amount", "unit_cost", "selling_price", "list_price", "amount", "total", "amt", "sales"}
	DiscountCandidates = []string{"discount", "discount_amount"}
	// priceKeyProbe is the narrower set tried against the first row when no price column resolved.
	priceKeyProbe = []string{"unit_price", "price", "unit_price_amount", "unit_cost", "selling_price", "list_price", "amount", "total", "amt"}
)

// AddedColumn records a column added by DeriveFields.
type AddedColumn struct {
	Name         string               `json:"name"`
	InferredType profile.InferredType `json:"inferredType"`
}

// DeriveResult holds the same rows passed in plus what was added to them.
type DeriveResult struct {
	Rows         []*dataset.Row
	AddedColumns []AddedColumn
}

func normKey(s string) string {
	return NormalizeName(strings.TrimSpace(s))
}

// FindColumn returns the first name that equals or contains a candidate, trying candidates in order.
func FindColumn(names []string, candidates ...string) (string, bool) {
	for _, want := range candidates {
		w := normKey(want)
		for _, n := range names {
			if strings.TrimSpace(n) == "" {
				continue
			}
			ln := normKey(n)
			if ln == w || strings.Contains(ln, w) {
				return n, true
			}
		}
	}
	return "", false
}

func anyNumeric(rows []*dataset.Row, col string) bool {
	for _, r := range rows {
		if _, ok := numeric.SafeNumber(r.Value(col)); ok {
			return true
		}
	}
	return false
}

// DeriveFields adds gross and revenue columns when quantity and price columns resolve, or
// revenue alone from price. Rows are mutated in place and returned; existing keys are never
// removed. Clone first when the caller needs the originals.
func DeriveFields(rows []*dataset.Row, p *profile.Profile) DeriveResult {
	res := DeriveResult{Rows: rows, AddedColumns: []AddedColumn{}}

	names := dataset.KeyUnion(rows)
	if len(names) == 0 && p != nil {
		for _, c := range p.Columns {
			names = append(names, c.Name)
		}
	}

	qCol, hasQCol := FindColumn(names, QuantityCandidates...)
	pCol, hasPCol := FindColumn(names, PriceCandidates...)
	dCol, hasDCol := FindColumn(names, DiscountCandidates...)

	if !hasPCol && len(rows) > 0 && rows[0] != nil {
		probe := rows
		if len(probe) > 100 {
			probe = probe[:100]
		}
	keys:
		for _, k := range rows[0].Keys() {
			if k == "" {
				continue
			}
			nk := normKey(k)
			for _, pk := range priceKeyProbe {
				if nk == pk || strings.Contains(nk, pk) {
					if anyNumeric(probe, k) {
						pCol, hasPCol = k, true
						break keys
					}
					break
				}
			}
		}
	}

	// A resolved name with no numbers may differ from the row key only by case or spacing.
	if hasPCol && len(rows) > 0 && !anyNumeric(rows, pCol) {
		pCol = actualKey(rows[0], pCol)
	}
	if hasDCol && len(rows) > 0 && !anyNumeric(rows, dCol) {
		dCol = actualKey(rows[0], dCol)
	}

	hasQ := hasQCol && anyNumeric(rows, qCol)
	hasP := hasPCol && anyNumeric(rows, pCol)

	discounted := func(r *dataset.Row, base float64) float64 {
		if !hasDCol {
			return base
		}
		if d, ok := numeric.SafeNumber(r.Value(dCol)); ok {
			return base - d
		}
		return base
	}

	switch {
	case hasQ && hasP:
		for _, r := range rows {
			if r == nil {
				continue
			}
			q, okq := numeric.SafeNumber(r.Value(qCol))
			pr, okp := numeric.SafeNumber(r.Value(pCol))
			if !okq || !okp {
				continue
			}
			gross := q * pr
			r.Set(GrossColumn, dataset.Number(gross))
			r.Set(RevenueColumn, dataset.Number(discounted(r, gross)))
		}
		res.AddedColumns = append(res.AddedColumns,
			AddedColumn{Name: GrossColumn, InferredType: profile.TypeNumber},
			AddedColumn{Name: RevenueColumn, InferredType: profile.TypeNumber})
	case hasP:
		for _, r := range rows {
			if r == nil {
				continue
			}
			pr, ok := numeric.SafeNumber(r.Value(pCol))
			if !ok {
				continue
			}
			r.Set(RevenueColumn, dataset.Number(discounted(r, pr)))
		}
		res.AddedColumns = append(res.AddedColumns, AddedColumn{Name: RevenueColumn, InferredType: profile.TypeNumber})
	}
	return res
}

func actualKey(first *dataset.Row, col string) string {
	want := normKey(col)
	for _, k := range first.Keys() {
		if normKey(k) == want {
			return k
		}
	}
	return col
}
