package insight

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

var (
	dateNameRe        = regexp.MustCompile(`(?i)date|time|posted|due|created|updated|deadline|response`)
	geoNameRe         = regexp.MustCompile(`(?i)state|city|country|lat|latitude|lon|lng|longitude|zip|postal`)
	contributorNameRe = regexp.MustCompile(`(?i)category|region|product`)
)

// columnSets groups profile columns by how the executor may use them.
type columnSets struct {
	all     []profile.ColumnProfile
	numeric []string
	date    []string
	geo     []string
}

func uniqueAppend(dst []string, seen map[string]bool, names ...string) []string {
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			dst = append(dst, n)
		}
	}
	return dst
}

func detectColumns(p *profile.Profile) columnSets {
	var cs columnSets
	if p == nil {
		return cs
	}
	cs.all = p.Columns

	var measures, numbers, timeRole, dateLike, geoRole, geoLike []string
	skip := map[string]bool{}
	for _, c := range p.Columns {
		switch c.RoleCandidate {
		case profile.RoleMeasure:
			measures = append(measures, c.Name)
		case profile.RoleTime:
			timeRole = append(timeRole, c.Name)
			skip[c.Name] = true
		case profile.RoleGeo:
			geoRole = append(geoRole, c.Name)
			skip[c.Name] = true
		}
		if c.InferredType == profile.TypeNumber {
			numbers = append(numbers, c.Name)
		}
		if c.InferredType == profile.TypeDate || dateNameRe.MatchString(c.Name) {
			dateLike = append(dateLike, c.Name)
		}
		if geoNameRe.MatchString(c.Name) {
			geoLike = append(geoLike, c.Name)
		}
	}

	seen := map[string]bool{}
	for _, n := range uniqueAppend(nil, seen, append(measures, numbers...)...) {
		if !skip[n] {
			cs.numeric = append(cs.numeric, n)
		}
	}
	cs.date = uniqueAppend(nil, map[string]bool{}, append(timeRole, dateLike...)...)
	cs.geo = uniqueAppend(nil, map[string]bool{}, append(geoRole, geoLike...)...)
	return cs
}

// stringColumns lists string-typed columns whose names match re, in profile order.
func (cs columnSets) stringColumns(re *regexp.Regexp) []string {
	var out []string
	for _, c := range cs.all {
		if c.InferredType == profile.TypeString && re.MatchString(c.Name) {
			out = append(out, c.Name)
		}
	}
	return out
}

// groupKey labels a cell for grouping: blank cells are "(missing)", whitespace-only text is "(blank)".
func groupKey(v dataset.Value) string {
	if v.IsBlank() {
		return "(missing)"
	}
	if k := strings.TrimSpace(v.String()); k != "" {
		return k
	}
	return "(blank)"
}

type keyed struct {
	key   string
	value float64
}

// stableTopN orders by value descending, then key, and keeps at most limit items.
func stableTopN(items []keyed, limit int, col *collate.Collator) []keyed {
	out := append([]keyed(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return col.CompareString(out[i].key, out[j].key) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// measureSampleCap bounds how many values pickTopMeasures reads per column.
const measureSampleCap = 5000

// pickTopMeasures ranks numeric columns: any spread dominates, then range, median and fill rate.
func pickTopMeasures(rows []*dataset.Row, cols []string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}
	var all []scored
	for _, c := range cols {
		var nums []float64
		nonNull := 0
		for _, r := range rows {
			n, ok := numeric.SafeNumber(r.Value(c))
			if !ok {
				continue
			}
			nonNull++
			nums = append(nums, n)
			if len(nums) >= measureSampleCap {
				break
			}
		}
		if nonNull < 2 {
			continue
		}
		sort.Float64s(nums)
		rng := nums[len(nums)-1] - nums[0]
		nonTrivial := 0.0
		if math.Abs(rng) > 0 {
			nonTrivial = 1
		}
		fill := float64(nonNull) / math.Max(1, float64(len(rows)))
		all = append(all, scored{c, nonTrivial*1000 + math.Abs(rng) + math.Abs(quantile(nums, 0.5))*0.01 + fill*10})
	}
	col := dataset.NewCollator()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return col.CompareString(all[i].name, all[j].name) < 0
	})
	out := make([]string, 0, limit)
	for i := 0; i < len(all) && i < limit; i++ {
		out = append(out, all[i].name)
	}
	return out
}

func numericSummary(rows []*dataset.Row, col string) evidence.NumericSummary {
	var nums []float64
	s := evidence.NumericSummary{}
	for _, r := range rows {
		n, ok := numeric.SafeNumber(r.Value(col))
		if !ok {
			s.NullCount++
			continue
		}
		nums = append(nums, n)
	}
	sort.Float64s(nums)
	s.Count = len(nums)
	if s.Count == 0 {
		return s
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	s.Min = evidence.Num(nums[0])
	s.Max = evidence.Num(nums[len(nums)-1])
	s.Mean = evidence.Num(sum / float64(s.Count))
	s.P10 = evidence.Num(quantile(nums, 0.1))
	s.P25 = evidence.Num(quantile(nums, 0.25))
	s.P50 = evidence.Num(quantile(nums, 0.5))
	s.P75 = evidence.Num(quantile(nums, 0.75))
	s.P90 = evidence.Num(quantile(nums, 0.9))
	return s
}
