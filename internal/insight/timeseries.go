package insight

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
)

// Grains accepted for time bucketing.
const (
	GrainDay   = "day"
	GrainWeek  = "week"
	GrainMonth = "month"
)

// ValidGrain reports whether g is day, week or month.
func ValidGrain(g string) bool {
	return g == GrainDay || g == GrainWeek || g == GrainMonth
}

// stampCap bounds how many dated points feed the executive KPIs.
const stampCap = 20000

// StartOfGrain returns the bucket label for t: the day itself, the Monday of its week, or the
// first of its month, as YYYY-MM-DD.
func StartOfGrain(t time.Time, grain string) string {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch grain {
	case GrainDay:
		return dataset.ISODate(day)
	case GrainMonth:
		return dataset.ISODate(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
	}
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return dataset.ISODate(day.AddDate(0, 0, -(wd - 1)))
}

// detectAnomalies flags buckets whose first difference sits more than two standard
// deviations from the mean difference.
func detectAnomalies(series []evidence.SeriesPoint) []string {
	out := []string{}
	if len(series) < 4 {
		return out
	}
	vals := make([]float64, len(series))
	for i, s := range series {
		vals[i] = float64(s.Count)
		if s.Sum != nil {
			vals[i] = *s.Sum
		}
	}
	diffs := make([]float64, 0, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		diffs = append(diffs, vals[i]-vals[i-1])
	}
	mean := 0.0
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))
	variance := 0.0
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	std := math.Sqrt(variance / float64(len(diffs)))
	if std == 0 {
		std = 1e-9
	}
	for i, d := range diffs {
		if math.Abs(d-mean) > 2*std {
			out = append(out, series[i+1].T)
		}
	}
	return out
}

type stamped struct {
	t      time.Time
	period string
	row    *dataset.Row
	value  float64
}

func executiveKPIs(rows []*dataset.Row, timeCol, grain, measure string, contributorDims []string) *evidence.ExecutiveKPIs {
	if timeCol == "" || measure == "" {
		return nil
	}
	var pts []stamped
	for _, r := range rows {
		t, ok := dataset.ParseTimeOrYear(r.Value(timeCol))
		if !ok {
			continue
		}
		n, ok := numeric.SafeNumber(r.Value(measure))
		if !ok {
			continue
		}
		pts = append(pts, stamped{t: t, period: StartOfGrain(t, grain), row: r, value: n})
		if len(pts) >= stampCap {
			break
		}
	}
	if len(pts) < 3 {
		return nil
	}

	byPeriod := map[string]float64{}
	for _, p := range pts {
		byPeriod[p.period] += p.value
	}
	periods := make([]string, 0, len(byPeriod))
	for k := range byPeriod {
		periods = append(periods, k)
	}
	// labels share the YYYY-MM-DD shape, so byte order is chronological
	sort.Strings(periods)
	if len(periods) < 2 {
		return nil
	}
	latestP, prevP := periods[len(periods)-1], periods[len(periods)-2]
	latest, prev := byPeriod[latestP], byPeriod[prevP]

	ex := &evidence.ExecutiveKPIs{
		TimeColumn: timeCol,
		Grain:      grain,
		Measure:    measure,
		Latest:     &evidence.PeriodValue{Period: latestP, Value: evidence.Num(latest)},
		Previous:   &evidence.PeriodValue{Period: prevP, Value: evidence.Num(prev)},
		Change:     &evidence.Change{Abs: evidence.Num(latest - prev), Pct: ratio(latest-prev, prev)},
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })
	minT, maxT := pts[0].t, pts[len(pts)-1].t
	span := maxT.Sub(minT)
	if span < time.Millisecond {
		span = time.Millisecond
	}
	prevStart := minT.Add(-span)
	var cur, before float64
	for _, p := range pts {
		if !p.t.Before(minT) && !p.t.After(maxT) {
			cur += p.value
		}
		if !p.t.Before(prevStart) && p.t.Before(minT) {
			before += p.value
		}
	}
	ex.RangeCompare = &evidence.RangeCompare{
		Current:  evidence.RangeWindow{From: dataset.ISODate(minT), To: dataset.ISODate(maxT), Total: evidence.Num(cur)},
		Previous: evidence.RangeWindow{From: dataset.ISODate(prevStart), To: dataset.ISODate(minT), Total: evidence.Num(before)},
		Change:   evidence.Change{Abs: evidence.Num(cur - before), Pct: ratio(cur-before, before)},
	}

	var dim string
	for _, d := range contributorDims {
		if d != "" {
			dim = d
			break
		}
	}
	if dim == "" {
		return ex
	}
	groups := map[string]float64{}
	var order []string
	for _, p := range pts {
		if p.period != latestP {
			continue
		}
		k := groupKey(p.row.Value(dim))
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] += p.value
	}
	items := make([]keyed, 0, len(order))
	total := 0.0
	for _, k := range order {
		items = append(items, keyed{k, groups[k]})
		total += groups[k]
	}
	top := stableTopN(items, 1, dataset.NewCollator())
	if len(top) == 0 {
		return ex
	}
	share := 0.0
	if total != 0 {
		share = top[0].value / total
	}
	ex.TopContributor = &evidence.Contributor{
		Dimension: dim,
		Group:     top[0].key,
		Value:     evidence.Num(top[0].value),
		Share:     evidence.Num(share),
	}
	return ex
}

// ratio is num/den, or nil when den is zero.
func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return evidence.Num(num / den)
}

var yearNameRe = regexp.MustCompile(`(?i)year|yr|fy|fiscal`)

const yearProbeCap = 300

func integerYear(n float64) bool {
	return n == math.Trunc(n) && n >= 1900 && n <= 2100
}

func isYearColumn(rows []*dataset.Row, col string) bool {
	if !yearNameRe.MatchString(col) {
		return false
	}
	checked, ok := 0, 0
	for _, r := range rows {
		n, good := numeric.SafeNumber(r.Value(col))
		if !good {
			continue
		}
		checked++
		if integerYear(n) {
			ok++
		}
		if checked >= yearProbeCap {
			break
		}
	}
	return checked >= 3 && float64(ok)/float64(checked) >= 0.8
}

// yearOverYear compares the latest year's measure total with the year before it, or with the
// closest earlier year present.
func yearOverYear(rows []*dataset.Row, timeCol, measure string) *evidence.TimeKPIs {
	if timeCol == "" || measure == "" || !isYearColumn(rows, timeCol) {
		return nil
	}
	byYear := map[int]float64{}
	for _, r := range rows {
		y, ok := numeric.SafeNumber(r.Value(timeCol))
		if !ok || !integerYear(y) {
			continue
		}
		m, ok := numeric.SafeNumber(r.Value(measure))
		if !ok {
			continue
		}
		byYear[int(y)] += m
	}
	if len(byYear) < 2 {
		return nil
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	latestY := years[len(years)-1]
	prevY := years[len(years)-2]
	if _, ok := byYear[latestY-1]; ok {
		prevY = latestY - 1
	}
	latest, prev := byYear[latestY], byYear[prevY]
	return &evidence.TimeKPIs{
		Measure:      measure,
		TimeColumn:   timeCol,
		LatestPeriod: latestY,
		PrevPeriod:   prevY,
		LatestValue:  evidence.Num(latest),
		PrevValue:    evidence.Num(prev),
		Delta:        evidence.Num(latest - prev),
		Pct:          ratio(latest-prev, prev),
	}
}
