package insight

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// DefaultMaxComputeRows caps the rows any block computes over.
const DefaultMaxComputeRows = 20000

type Options struct {
	// MaxComputeRows limits the rows blocks compute over; 0 means DefaultMaxComputeRows.
	MaxComputeRows int
	// RowCount is the dataset size reported by the KPI block; 0 means len(rows).
	RowCount int
}

func DefaultOptions() Options {
	return Options{MaxComputeRows: DefaultMaxComputeRows}
}

type executor struct {
	all        []*dataset.Row
	rows       []*dataset.Row
	cols       columnSets
	sel        Selections
	rowCount   int
	maxCompute int
}

// Execute runs every block of plan over rows. An empty plan runs DefaultPlan with a row-count
// metric. Blocks that cannot be computed come back NOT_APPLICABLE or INSUFFICIENT_DATA
// rather than being dropped, so ids stay positional.
func Execute(rows []*dataset.Row, p *profile.Profile, plan Plan, opt Options) []evidence.Block {
	if len(plan.Blocks) == 0 {
		plan = DefaultPlan(p, evidence.RowCountMetric, plan.Selections.Grain)
	}
	maxCompute := opt.MaxComputeRows
	if maxCompute <= 0 {
		maxCompute = DefaultMaxComputeRows
	}
	ex := &executor{all: rows, rows: rows, cols: detectColumns(p), sel: plan.Selections, maxCompute: maxCompute}
	if len(ex.rows) > maxCompute {
		ex.rows = ex.rows[:maxCompute]
	}
	ex.rowCount = len(rows)
	if opt.RowCount > 0 {
		ex.rowCount = opt.RowCount
	}

	out := make([]evidence.Block, 0, len(plan.Blocks))
	for i, spec := range plan.Blocks {
		var b evidence.Block
		switch spec.Type {
		case evidence.KPIBlock:
			b = ex.kpi(i, spec)
		case evidence.TrendBlock:
			b = ex.trend(i, spec)
		case evidence.TopNBlock, evidence.BreakdownBlock:
			b = ex.topN(i, spec)
		case evidence.GeoLikeBlock:
			b = ex.geoLike(i, spec)
		case evidence.DriverBlock:
			b = ex.drivers(i, spec)
		default:
			continue
		}
		out = append(out, b)
	}
	return out
}

// BlockID formats "<prefix>-NN" with idx+1 zero-padded, plus "-extra" when given.
func BlockID(prefix string, idx int, extra string) string {
	id := fmt.Sprintf("%s-%02d", prefix, idx+1)
	if extra != "" {
		id += "-" + extra
	}
	return id
}

func (ex *executor) assumptions(extra ...string) []string {
	base := fmt.Sprintf("Computed from first %d rows (maxComputeRows=%d).", len(ex.rows), ex.maxCompute)
	return append([]string{base}, extra...)
}

func (ex *executor) topMeasure() string {
	if m := pickTopMeasures(ex.rows, ex.cols.numeric, 1); len(m) > 0 {
		return m[0]
	}
	return ""
}

func orStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func notApplicable(id string, t evidence.BlockType, title, reason, narrative string, assumptions []string, sample int) evidence.Block {
	return evidence.Block{
		ID: id, Type: t, Title: title,
		Status:      evidence.StatusNotApplicable,
		Assumptions: assumptions,
		SampleSize:  sample,
		Narrative:   narrative,
		Reason:      reason,
	}
}

func (ex *executor) kpi(i int, spec BlockSpec) evidence.Block {
	primary := ex.sel.PrimaryMeasure
	if primary == "" {
		primary = ex.topMeasure()
	}
	timeCol := orStr(ex.sel.TimeColumn, firstOf(ex.cols.date))
	grain := orStr(ex.sel.Grain, GrainDay)
	var contributors []string
	for _, d := range ex.sel.TopDims {
		if contributorNameRe.MatchString(d) {
			contributors = append(contributors, d)
		}
	}

	pl := &evidence.KPIPayload{RowCount: ex.rowCount, PrimaryMeasure: primary, MetricSummaries: []evidence.MetricSummary{}}
	for _, m := range pickTopMeasures(ex.rows, ex.cols.numeric, 5) {
		pl.MetricSummaries = append(pl.MetricSummaries, evidence.MetricSummary{Name: m, Summary: numericSummary(ex.rows, m)})
	}
	if timeCol != "" && primary != "" {
		pl.ExecutiveKPIs = executiveKPIs(ex.rows, timeCol, grain, primary, contributors)
		pl.TimeKPIs = yearOverYear(ex.rows, timeCol, primary)
	}

	status, conf := evidence.StatusOK, 0.85
	if len(ex.all) == 0 {
		status, conf = evidence.StatusInsufficientData, 0.1
	}
	assumptions := ex.assumptions("Top metrics selected by variance + fill rate.")
	var narrative []string
	if e := pl.ExecutiveKPIs; e != nil {
		assumptions = append(assumptions, "Executive KPIs computed per chosen time grain.")
		narrative = append(narrative, fmt.Sprintf("Latest %s (%s) in %s: %s (Δ %s, %s vs %s).",
			e.Measure, e.Grain, e.Latest.Period, formatShort(e.Latest.Value),
			formatShort(e.Change.Abs), formatPct(e.Change.Pct), e.Previous.Period))
		if tc := e.TopContributor; tc != nil {
			narrative = append(narrative, fmt.Sprintf("Top %s: %s (%s of latest period).", tc.Dimension, tc.Group, formatPct(tc.Share)))
		}
	}
	if pl.TimeKPIs != nil {
		assumptions = append(assumptions, "YoY computed on year-like time column.")
	}
	text := "Key metrics computed from the available data."
	if len(narrative) > 0 {
		text = strings.Join(narrative, " ")
	}
	return evidence.Block{
		ID:          BlockID("kpi", i, ""),
		Type:        evidence.KPIBlock,
		Title:       orStr(spec.Title, "Key metrics"),
		Status:      status,
		Confidence:  conf,
		Assumptions: assumptions,
		SampleSize:  len(ex.rows),
		Narrative:   text,
		Payload:     pl,
	}
}

func firstOf(names []string) string {
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

func (ex *executor) trend(i int, spec BlockSpec) evidence.Block {
	timeCol := orStr(spec.TimeColumn, firstOf(ex.cols.date))
	if timeCol == "" {
		return notApplicable(BlockID("trend", i, ""), evidence.TrendBlock, orStr(spec.Title, "Trend over time"),
			"No time column available.", "No time column was detected, so a trend cannot be computed.",
			ex.assumptions("No time column detected."), len(ex.rows))
	}
	grain := orStr(spec.Grain, orStr(ex.sel.Grain, GrainDay))
	measure := orStr(spec.Measure, ex.topMeasure())
	agg := spec.Agg
	if agg == "" {
		agg = AggCount
		if measure != "" {
			agg = AggSum
		}
	}
	summing := agg == AggSum && measure != ""

	buckets := map[string]*evidence.SeriesPoint{}
	parsed := 0
	for _, r := range ex.rows {
		t, ok := dataset.ParseTimeOrYear(r.Value(timeCol))
		if !ok {
			continue
		}
		parsed++
		k := StartOfGrain(t, grain)
		cur := buckets[k]
		if cur == nil {
			cur = &evidence.SeriesPoint{T: k}
			if summing {
				cur.Sum = new(float64)
			}
			buckets[k] = cur
		}
		cur.Count++
		if summing {
			if n, ok := numeric.SafeNumber(r.Value(measure)); ok {
				*cur.Sum += n
			}
		}
	}
	series := make([]evidence.SeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		// a sum that overflowed is reported as missing
		if b.Sum != nil {
			b.Sum = evidence.Num(*b.Sum)
		}
		series = append(series, *b)
	}
	sort.Slice(series, func(a, b int) bool { return series[a].T < series[b].T })

	status, conf := evidence.StatusOK, clamp01(0.7+math.Min(0.25, float64(parsed)/math.Max(1, float64(len(ex.rows)))*0.3))
	if len(series) == 0 {
		status, conf = evidence.StatusInsufficientData, 0.1
	}
	narrative := "Trend computed over the observed time range."
	if len(series) > 0 {
		pick := func(s evidence.SeriesPoint) float64 {
			switch {
			case agg == AggCount:
				return float64(s.Count)
			case s.Sum != nil:
				return *s.Sum
			}
			return 0
		}
		first, last := pick(series[0]), pick(series[len(series)-1])
		d := last - first
		dir := "up"
		if d < 0 {
			dir = "down"
		}
		prefix := ""
		if measure != "" {
			prefix = measure + " "
		}
		narrative = fmt.Sprintf("%strend is %s %s (%s) from first to last %s bucket.",
			prefix, dir, formatShort(evidence.Num(math.Abs(d))), formatPct(ratio(d, first)), grain)
	}
	measureNote := "Measure: none (count)"
	if measure != "" {
		measureNote = fmt.Sprintf("Measure: %s (%s)", measure, agg)
	}
	return evidence.Block{
		ID:          BlockID("trend", i, grain),
		Type:        evidence.TrendBlock,
		Title:       orStr(spec.Title, "Trend by "+grain),
		Status:      status,
		Confidence:  conf,
		Assumptions: ex.assumptions("Time column: "+timeCol, "Grain: "+grain, measureNote),
		SampleSize:  len(ex.rows),
		Narrative:   narrative,
		Payload: &evidence.TrendPayload{
			TimeColumn: timeCol,
			Grain:      grain,
			Measure:    measure,
			Agg:        agg,
			Series:     series,
			Anomalies:  detectAnomalies(series),
		},
	}
}

type group struct {
	key     string
	count   int
	sum     float64
	nonNull int
}

// accumulate groups rows by dimension in first-seen order.
func accumulate(rows []*dataset.Row, dim, measure string) []*group {
	idx := map[string]*group{}
	var out []*group
	for _, r := range rows {
		k := groupKey(r.Value(dim))
		g := idx[k]
		if g == nil {
			g = &group{key: k}
			idx[k] = g
			out = append(out, g)
		}
		g.count++
		if measure == "" {
			continue
		}
		if n, ok := numeric.SafeNumber(r.Value(measure)); ok {
			g.sum += n
			g.nonNull++
		}
	}
	return out
}

func (ex *executor) topN(i int, spec BlockSpec) evidence.Block {
	isBreakdown := spec.Type == evidence.BreakdownBlock
	prefix, defTitle := "topn", "Top categories"
	if isBreakdown {
		prefix, defTitle = "breakdown", "Breakdown"
	}
	if spec.Dimension == "" {
		return notApplicable(BlockID(prefix, i, ""), spec.Type, orStr(spec.Title, defTitle),
			"No dimension specified.", "No dimension column was specified for this breakdown.",
			ex.assumptions("No dimension specified."), len(ex.rows))
	}
	agg := spec.Agg
	if agg == "" {
		agg = AggCount
		if spec.Measure != "" {
			agg = AggSum
		}
	}
	limit := spec.Limit
	if limit == 0 {
		limit = 10
	}
	maxCats := spec.MaxCategories
	if maxCats == 0 {
		maxCats = 8
	}

	groups := accumulate(ex.rows, spec.Dimension, spec.Measure)
	if isBreakdown && len(groups) > maxCats {
		fb := ex.topN(i, BlockSpec{Type: evidence.TopNBlock, Dimension: spec.Dimension, Measure: spec.Measure, Agg: agg, Limit: 10})
		fb.ID = BlockID("topn", i, "breakdown-fallback")
		fb.Title = orStr(spec.Title, "Top categories (fallback)")
		fb.Assumptions = append(fb.Assumptions, fmt.Sprintf("Breakdown fallback: categoryCount=%d > %d", len(groups), maxCats))
		return fb
	}

	scored := make([]keyed, 0, len(groups))
	for _, g := range groups {
		var v float64
		switch agg {
		case AggCount:
			v = float64(g.count)
		case AggSum:
			v = g.sum
		default:
			if g.nonNull > 0 {
				v = g.sum / float64(g.nonNull)
			}
		}
		scored = append(scored, keyed{g.key, v})
	}
	top := stableTopN(scored, max(1, min(50, limit)), dataset.NewCollator())
	inTop := make(map[string]bool, len(top))
	rows := make([]evidence.BreakdownRow, 0, len(top)+1)
	for _, t := range top {
		inTop[t.key] = true
		rows = append(rows, evidence.BreakdownRow{Key: t.key, Value: evidence.Num(t.value)})
	}
	if !spec.ExcludeOther {
		other := 0.0
		for _, s := range scored {
			if !inTop[s.key] {
				other += s.value
			}
		}
		if other > 0 {
			rows = append(rows, evidence.BreakdownRow{Key: "Other", Value: evidence.Num(other)})
		}
	}

	status, conf := evidence.StatusOK, 0.75
	if len(ex.all) == 0 {
		status, conf = evidence.StatusInsufficientData, 0.1
	}
	title := "Breakdown"
	if !isBreakdown {
		title = fmt.Sprintf("Top %d by %s", min(10, limit), spec.Dimension)
	}
	measureNote := fmt.Sprintf("Measure: none (%s)", agg)
	if spec.Measure != "" {
		measureNote = fmt.Sprintf("Measure: %s (%s)", spec.Measure, agg)
	}
	rowsNote := fmt.Sprintf("Rows: top=%d", min(10, limit))
	if !spec.ExcludeOther {
		rowsNote += " + Other"
	}
	return evidence.Block{
		ID:          BlockID(prefix, i, ""),
		Type:        spec.Type,
		Title:       orStr(spec.Title, title),
		Status:      status,
		Confidence:  conf,
		Assumptions: ex.assumptions("Dimension: "+spec.Dimension, measureNote, rowsNote),
		SampleSize:  len(ex.rows),
		Payload: &evidence.BreakdownPayload{
			Dimension:     spec.Dimension,
			Measure:       spec.Measure,
			Agg:           agg,
			Rows:          rows,
			CategoryCount: len(groups),
		},
	}
}

func (ex *executor) geoLike(i int, spec BlockSpec) evidence.Block {
	if spec.Dimension == "" {
		return notApplicable(BlockID("geolike", i, ""), evidence.GeoLikeBlock, orStr(spec.Title, "Geo-like breakdown"),
			"No dimension specified.", "No region-like dimension was selected for this dataset.",
			ex.assumptions("No dimension specified."), len(ex.rows))
	}
	measure := orStr(spec.Measure, ex.topMeasure())
	agg := spec.Agg
	if agg == "" {
		agg = AggCount
		if measure != "" {
			agg = AggSum
		}
	}
	limit := spec.Limit
	if limit == 0 {
		limit = 10
	}
	limit = max(1, min(25, limit))

	sumMeasure := ""
	if agg == AggSum {
		sumMeasure = measure
	}
	groups := accumulate(ex.rows, spec.Dimension, sumMeasure)
	scored := make([]keyed, 0, len(groups))
	for _, g := range groups {
		v := g.sum
		if agg == AggCount {
			v = float64(g.count)
		}
		scored = append(scored, keyed{g.key, v})
	}
	top := stableTopN(scored, limit, dataset.NewCollator())
	rows := make([]evidence.BreakdownRow, 0, len(top))
	for _, t := range top {
		rows = append(rows, evidence.BreakdownRow{Key: t.key, Value: evidence.Num(t.value)})
	}

	status, conf := evidence.StatusOK, 0.7
	narrative := fmt.Sprintf("Not enough data to rank %s.", spec.Dimension)
	if len(top) == 0 {
		status, conf = evidence.StatusInsufficientData, 0.1
	} else {
		suffix := ""
		if measure != "" {
			suffix = " " + measure
		}
		narrative = fmt.Sprintf("Top %s: %s (%s%s).", spec.Dimension, top[0].key, formatShort(evidence.Num(top[0].value)), suffix)
	}
	measureNote := fmt.Sprintf("Measure: none (%s)", agg)
	if measure != "" {
		measureNote = fmt.Sprintf("Measure: %s (%s)", measure, agg)
	}
	return evidence.Block{
		ID:          BlockID("geolike", i, spec.Dimension),
		Type:        evidence.GeoLikeBlock,
		Title:       orStr(spec.Title, "By "+spec.Dimension),
		Status:      status,
		Confidence:  conf,
		Assumptions: ex.assumptions("Dimension: "+spec.Dimension, measureNote),
		SampleSize:  len(ex.rows),
		Narrative:   narrative,
		Payload:     &evidence.BreakdownPayload{Dimension: spec.Dimension, Measure: measure, Agg: agg, Rows: rows},
	}
}

func (ex *executor) drivers(i int, spec BlockSpec) evidence.Block {
	measure := orStr(spec.Measure, ex.topMeasure())
	if measure == "" {
		return notApplicable(BlockID("drivers", i, ""), evidence.DriverBlock, orStr(spec.Title, "Drivers"),
			"No numeric measure available.", "No numeric measure was available to compute drivers.",
			ex.assumptions("No numeric measure available."), len(ex.rows))
	}
	dims := spec.Dimensions
	if len(dims) == 0 {
		dims = ex.cols.stringColumns(contributorNameRe)
		if len(dims) > 3 {
			dims = dims[:3]
		}
	}
	limit := spec.Limit
	if limit == 0 {
		limit = 12
	}
	limit = max(5, min(30, limit))

	var overallTotal float64
	overallCount := 0
	for _, r := range ex.rows {
		if n, ok := numeric.SafeNumber(r.Value(measure)); ok {
			overallTotal += n
			overallCount++
		}
	}
	overallAvg := 0.0
	if overallCount > 0 {
		overallAvg = overallTotal / float64(overallCount)
	}

	type scoredGroup struct {
		evidence.DriverGroup
		score float64
	}
	var all []scoredGroup
	for _, dim := range dims {
		groups := accumulateNonNull(ex.rows, dim, measure)
		totalAll := 0.0
		for _, g := range groups {
			totalAll += g.sum
		}
		for _, g := range groups {
			share, avg, lift := 0.0, 0.0, 0.0
			if totalAll != 0 {
				share = g.sum / totalAll
			}
			if g.nonNull > 0 {
				avg = g.sum / float64(g.nonNull)
			}
			if overallAvg != 0 {
				lift = avg/overallAvg - 1
			}
			score := share * math.Min(5, math.Abs(lift)) * math.Log1p(float64(g.nonNull))
			all = append(all, scoredGroup{
				DriverGroup: evidence.DriverGroup{
					Dimension: dim, Group: g.key,
					Total: evidence.Num(g.sum), Share: evidence.Num(share), Avg: evidence.Num(avg),
					Lift: evidence.Num(lift), Count: g.nonNull, Score: evidence.Num(score),
				},
				score: score,
			})
		}
	}
	col := dataset.NewCollator()
	sort.SliceStable(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score > all[b].score
		}
		if c := col.CompareString(all[a].Dimension, all[b].Dimension); c != 0 {
			return c < 0
		}
		return col.CompareString(all[a].Group, all[b].Group) < 0
	})
	if len(all) > limit {
		all = all[:limit]
	}
	top := make([]evidence.DriverGroup, 0, len(all))
	for _, s := range all {
		top = append(top, s.DriverGroup)
	}

	status := evidence.StatusOK
	conf := clamp01(0.55 + math.Min(0.35, float64(overallCount)/math.Max(1, float64(len(ex.rows)))*0.4))
	narrative := "No drivers could be computed from the available data."
	if len(top) == 0 {
		status, conf = evidence.StatusInsufficientData, 0.1
	} else {
		narrative = fmt.Sprintf("Top driver: %s (%s) with %s share and lift %s vs overall average.",
			top[0].Group, top[0].Dimension, formatPct(top[0].Share), formatPct(top[0].Lift))
	}
	return evidence.Block{
		ID:          BlockID("drivers", i, measure),
		Type:        evidence.DriverBlock,
		Title:       orStr(spec.Title, "Top drivers"),
		Status:      status,
		Confidence:  conf,
		Assumptions: ex.assumptions("Measure="+measure, "Score=share * |lift| * log(count+1). Lift vs overall average."),
		SampleSize:  len(ex.rows),
		Narrative:   narrative,
		Payload: &evidence.DriverPayload{
			Measure:    measure,
			Overall:    &evidence.Overall{Total: evidence.Num(overallTotal), Avg: evidence.Num(overallAvg), Count: overallCount},
			TopDrivers: top,
		},
	}
}

// accumulateNonNull is accumulate restricted to rows where measure reads as a number.
func accumulateNonNull(rows []*dataset.Row, dim, measure string) []*group {
	idx := map[string]*group{}
	var out []*group
	for _, r := range rows {
		n, ok := numeric.SafeNumber(r.Value(measure))
		if !ok {
			continue
		}
		k := groupKey(r.Value(dim))
		g := idx[k]
		if g == nil {
			g = &group{key: k}
			idx[k] = g
			out = append(out, g)
		}
		g.count++
		g.sum += n
		g.nonNull++
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
