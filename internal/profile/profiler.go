package profile

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
)

// Options controls profiling.
type Options struct {
	// MaxProfileRows caps the rows inspected; values <= 0 mean 5000.
	MaxProfileRows int
	// SampleValuesLimit caps distinct sample values per column; values <= 0 mean 8.
	SampleValuesLimit int
	// NumericColumns are columns the normalizer converted to numbers.
	NumericColumns []string
	// RowCount overrides the reported row count when the rows are a sample.
	RowCount int
}

// DefaultOptions returns the stock profiling caps.
func DefaultOptions() Options {
	return Options{MaxProfileRows: 5000, SampleValuesLimit: 8}
}

var (
	dateNameRe = regexp.MustCompile(`(?i)(date|time|posted|due|created|updated|deadline|response)`)
	idNameRe   = regexp.MustCompile(`(?i)(id|uuid|key|notice|solicitation)`)
	geoNameRe  = regexp.MustCompile(`(?i)(state|city|country|lat|latitude|lon|lng|longitude|zip|postal|address)`)
	yearNameRe = regexp.MustCompile(`(?i)(year|yr|fy|fiscal)`)
	latNameRe  = regexp.MustCompile(`(?i)(lat|latitude)`)
	lonNameRe  = regexp.MustCompile(`(?i)(lon|lng|longitude)`)
)

// Build profiles the declared columns over the first MaxProfileRows rows. Columns are
// reported in locale order of their names; blank names are dropped.
func Build(rows []*dataset.Row, columns []string, opt Options) *Profile {
	maxRows := opt.MaxProfileRows
	if maxRows <= 0 {
		maxRows = 5000
	}
	sampleLimit := opt.SampleValuesLimit
	if sampleLimit <= 0 {
		sampleLimit = 8
	}
	profiled := rows
	if len(profiled) > maxRows {
		profiled = profiled[:maxRows]
	}
	nrows := len(profiled)
	rowCount := len(rows)
	if opt.RowCount > 0 {
		rowCount = opt.RowCount
	}

	names := make([]string, 0, len(columns))
	seen := map[string]bool{}
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		names = append(names, c)
	}
	dataset.SortNames(names)

	numericSet := make(map[string]bool, len(opt.NumericColumns))
	for _, c := range opt.NumericColumns {
		numericSet[c] = true
	}

	p := &Profile{
		DatasetStats: DatasetStats{RowCount: rowCount, ColumnCount: len(names), ProfiledRowCount: nrows},
		Columns:      make([]ColumnProfile, 0, len(names)),
	}
	var issues []ParseIssue
	over50 := []string{}
	over90 := []string{}
	missingCells := 0

	for _, name := range names {
		nonNull := make([]dataset.Value, 0, nrows)
		for _, r := range profiled {
			if v := r.Value(name); !v.IsBlank() {
				nonNull = append(nonNull, v)
			}
		}
		nullCount := nrows - len(nonNull)
		missingCells += nullCount
		nullPct := 0.0
		if nrows > 0 {
			nullPct = float64(nullCount) / float64(nrows)
		}

		distinct := distinctCount(nonNull)
		avgLen := avgStringLength(nonNull)
		typ := inferType(name, nonNull, numericSet)

		dateNamed := dateNameRe.MatchString(name)
		probe := 250
		if typ == TypeDate || dateNamed {
			probe = 500
		}
		parseable, failed := 0, 0
		for i, v := range nonNull {
			if i >= probe {
				break
			}
			if _, ok := dataset.ParseTime(v); ok {
				parseable++
			} else {
				failed++
			}
		}
		if failed > 0 && typ == TypeDate {
			issues = append(issues, ParseIssue{Column: name, Type: "date_parse_failed", Count: failed})
		}
		dateRate := 0.0
		if len(nonNull) > 0 {
			denomCap := 250
			if typ == TypeDate {
				denomCap = 500
			}
			dateRate = float64(parseable) / float64(minInt(len(nonNull), denomCap))
		}
		isTime := dateNamed || dateRate >= 0.7 || (typ == TypeDate && dateRate >= 0.5)

		cardinality := 0.0
		if nrows > 0 {
			cardinality = float64(distinct) / float64(nrows)
		}
		if typ == TypeNumber && yearNameRe.MatchString(name) {
			if ok, monotonic := mostlyYears(nonNull); ok && (cardinality >= 0.6 || monotonic) {
				isTime = true
			}
		}

		isGeo := geoNameRe.MatchString(name)
		if iss, ok := geoOutOfRange(name, nonNull); ok {
			issues = append(issues, iss)
		}

		highCard := cardinality >= 0.9
		if nrows <= 50 {
			highCard = cardinality >= 0.6
		}
		isID := idNameRe.MatchString(name) && highCard

		isMeasure := false
		if typ == TypeNumber {
			var nums []float64
			bad := 0
			for i, v := range nonNull {
				if i >= 2000 {
					break
				}
				if f, ok := numeric.SafeNumber(v); ok {
					nums = append(nums, f)
				} else {
					bad++
				}
			}
			if bad > 0 {
				issues = append(issues, ParseIssue{Column: name, Type: "number_parse_failed", Count: bad})
			}
			d, rng := spread(nums)
			isMeasure = d >= 2 && math.Abs(rng) > 0
		}
		if isTime {
			isMeasure = false
		}

		isText := typ == TypeString && (avgLen > 30 ||
			(!isTime && !isGeo && !isID && !isMeasure && cardinality > 0.5 && avgLen > 15))

		role := RoleDimension
		switch {
		case isTime:
			role = RoleTime
		case isGeo:
			role = RoleGeo
		case isID:
			role = RoleID
		case isMeasure:
			role = RoleMeasure
		}

		switch {
		case role == RoleTime:
			p.Flags.HasTime = true
		case role == RoleGeo:
			p.Flags.HasGeo = true
		case role == RoleDimension && isText:
			p.Flags.HasText = true
		case role == RoleDimension:
			p.Flags.HasCategorical = true
		}
		if typ == TypeNumber {
			p.Flags.HasNumeric = true
		}
		if nullPct >= 0.5 {
			over50 = append(over50, name)
		}
		if nullPct >= 0.9 {
			over90 = append(over90, name)
		}

		p.Columns = append(p.Columns, ColumnProfile{
			Name:          name,
			InferredType:  typ,
			RoleCandidate: role,
			NullPct:       clamp01(nullPct),
			DistinctCount: distinct,
			SampleValues:  firstUnique(nonNull, sampleLimit),
		})
	}

	dataset.SortNames(over50)
	dataset.SortNames(over90)
	total := maxInt(1, nrows) * maxInt(1, len(names))
	p.Quality = Quality{
		DuplicatesPct: clamp01(duplicateFraction(profiled)),
		MissingnessSummary: Missingness{
			OverallMissingPct:       clamp01(float64(missingCells) / float64(total)),
			ColumnsOver50PctMissing: over50,
			ColumnsOver90PctMissing: over90,
		},
		ParseIssues: sortIssues(issues),
	}
	return p
}

// inferType: converted or all-number columns are numbers; mostly date-shaped columns are dates.
func inferType(name string, nonNull []dataset.Value, numericSet map[string]bool) InferredType {
	if numericSet[name] {
		return TypeNumber
	}
	if len(nonNull) == 0 {
		return TypeString
	}
	allNum := true
	for _, v := range nonNull {
		if !v.IsNumber() {
			allNum = false
			break
		}
	}
	if allNum {
		return TypeNumber
	}
	n, ok := 0, 0
	for _, v := range nonNull {
		if n >= 250 {
			break
		}
		n++
		if _, parsed := dataset.ParseTime(v); parsed {
			ok++
		}
	}
	if float64(ok)/float64(n) >= 0.7 {
		return TypeDate
	}
	return TypeString
}

func distinctCount(vals []dataset.Value) int {
	set := map[string]struct{}{}
	for _, v := range vals {
		if k := v.String(); k != "" {
			set[k] = struct{}{}
		}
		if len(set) > 50000 {
			break
		}
	}
	return len(set)
}

func avgStringLength(vals []dataset.Value) float64 {
	if len(vals) == 0 {
		return 0
	}
	total := 0
	for _, v := range vals {
		total += utf8.RuneCountInString(v.String())
	}
	return float64(total) / float64(len(vals))
}

func firstUnique(vals []dataset.Value, limit int) []dataset.Value {
	var out []dataset.Value
	seen := map[string]bool{}
	for _, v := range vals {
		k := v.String()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// mostlyYears: at least 80% of up to 500 readable numbers are integer years, with at least three.
func mostlyYears(vals []dataset.Value) (ok bool, monotonic bool) {
	checked, inRange := 0, 0
	monotonic = true
	prev := math.Inf(-1)
	for _, v := range vals {
		f, good := numeric.SafeNumber(v)
		if !good {
			continue
		}
		checked++
		if f == math.Trunc(f) && f >= 1900 && f <= 2100 {
			inRange++
			if f < prev {
				monotonic = false
			}
			prev = f
		}
		if checked >= 500 {
			break
		}
	}
	ratio := 0.0
	if checked > 0 {
		ratio = float64(inRange) / float64(checked)
	}
	return ratio >= 0.8 && inRange >= 3, monotonic
}

func geoOutOfRange(name string, vals []dataset.Value) (ParseIssue, bool) {
	isLat := latNameRe.MatchString(name)
	isLon := lonNameRe.MatchString(name)
	if !isLat && !isLon {
		return ParseIssue{}, false
	}
	bad, seen := 0, 0
	for _, v := range vals {
		f, ok := numeric.SafeNumber(v)
		if !ok {
			continue
		}
		seen++
		if isLat && (f < -90 || f > 90) {
			bad++
		}
		if isLon && (f < -180 || f > 180) {
			bad++
		}
		if seen >= 200 {
			break
		}
	}
	if bad == 0 {
		return ParseIssue{}, false
	}
	hint := "Longitude should be between -180 and 180"
	if isLat {
		hint = "Latitude should be between -90 and 90"
	}
	return ParseIssue{Column: name, Type: "geo_out_of_range", Count: bad, Hint: hint}, true
}

// spread returns distinct count (capped just above 50) and range.
func spread(nums []float64) (int, float64) {
	if len(nums) == 0 {
		return 0, 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	seen := map[float64]struct{}{}
	for _, n := range nums {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
		seen[n] = struct{}{}
		if len(seen) > 50 {
			break
		}
	}
	return len(seen), hi - lo
}

// RowKey renders a row as sorted key=value pairs for duplicate detection.
func RowKey(r *dataset.Row) string {
	keys := r.Keys()
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.Value(k).String()
	}
	return strings.Join(parts, "|")
}

func duplicateFraction(rows []*dataset.Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(rows))
	dup := 0
	for _, r := range rows {
		k := RowKey(r)
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return float64(dup) / float64(len(rows))
}

func sortIssues(issues []ParseIssue) []ParseIssue {
	out := make([]ParseIssue, 0, len(issues))
	for _, is := range issues {
		if is.Count > 0 {
			out = append(out, is)
		}
	}
	col := dataset.NewCollator()
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Column+out[i].Type, out[j].Column+out[j].Type) < 0
	})
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
