// Package forecast fits a least-squares line over an indexed series and projects it forward.
package forecast

import (
	"math"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// DefaultPeriods is the number of future points produced when the caller has no preference.
const DefaultPeriods = 6

// z95 is the two-sided 95% normal quantile.
const z95 = 1.96

// Point is a historical or forecast observation. Bounds are set on forecast points only.
type Point struct {
	Date       string   `json:"date"`
	Value      float64  `json:"value"`
	UpperBound *float64 `json:"upperBound,omitempty"`
	LowerBound *float64 `json:"lowerBound,omitempty"`
	IsForecast bool     `json:"isForecast"`
}

type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"rSquared"`
}

// Predict evaluates the fitted line at index x.
func (r Regression) Predict(x float64) float64 { return r.Slope*x + r.Intercept }

// CalculateLinearRegression fits value against the point index 0..n-1.
// It reports false for fewer than two points, and when the fit overflows to a non-finite
// slope, intercept or r².
func CalculateLinearRegression(points []Point) (Regression, bool) {
	n := float64(len(points))
	if len(points) < 2 {
		return Regression{}, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return Regression{}, false
	}
	slope := (n*sumXY - sumX*sumY) / den
	reg := Regression{Slope: slope, Intercept: (sumY - slope*sumX) / n}

	yMean := sumY / n
	var ssRes, ssTot float64
	for i, p := range points {
		ssRes += math.Pow(p.Value-reg.Predict(float64(i)), 2)
		ssTot += math.Pow(p.Value-yMean, 2)
	}
	switch {
	case ssTot > 0:
		reg.RSquared = 1 - ssRes/ssTot
	case ssRes == 0:
		// flat series, exactly fitted
		reg.RSquared = 1
	}
	if !isFinite(reg.Slope) || !isFinite(reg.Intercept) || !isFinite(reg.RSquared) {
		return Regression{}, false
	}
	return reg, true
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return dataset.ParseTime(dataset.Text(s))
}

// averageDayGap is the mean day delta between consecutive parseable dates, or 1.
func averageDayGap(points []Point) float64 {
	var total float64
	n := 0
	for i := 1; i < len(points); i++ {
		a, okA := parseDate(points[i-1].Date)
		b, okB := parseDate(points[i].Date)
		if !okA || !okB {
			continue
		}
		total += b.Sub(a).Hours() / 24
		n++
	}
	if n == 0 {
		return 1
	}
	return total / float64(n)
}

// GenerateForecast projects periods future points from the fitted line. Values and both bounds
// are clamped at zero, so LowerBound <= Value <= UpperBound always holds. Fewer than two
// historical points, or a band that overflows, yield an empty slice.
func GenerateForecast(historical []Point, periods int) []Point {
	out := []Point{}
	reg, ok := CalculateLinearRegression(historical)
	if !ok || periods <= 0 {
		return out
	}

	n := float64(len(historical))
	xMean := (n - 1) / 2
	var sxx, sse float64
	for i, p := range historical {
		x := float64(i)
		sxx += (x - xMean) * (x - xMean)
		sse += math.Pow(p.Value-reg.Predict(x), 2)
	}
	stdErr := math.Sqrt(sse / n)
	if !isFinite(stdErr) {
		return out
	}

	gap := averageDayGap(historical)
	last, hasLast := parseDate(historical[len(historical)-1].Date)

	for i := 1; i <= periods; i++ {
		x0 := n - 1 + float64(i)
		predicted := reg.Predict(x0)
		half := z95 * stdErr * math.Sqrt(1+1/n+(x0-xMean)*(x0-xMean)/sxx)
		if !isFinite(predicted) || !isFinite(predicted+half) || !isFinite(predicted-half) {
			return []Point{}
		}

		date := ""
		if hasLast {
			date = dataset.ISODate(last.AddDate(0, 0, int(gap*float64(i))))
		}
		upper := math.Max(0, predicted+half)
		lower := math.Max(0, predicted-half)
		out = append(out, Point{
			Date:       date,
			Value:      math.Max(0, predicted),
			UpperBound: &upper,
			LowerBound: &lower,
			IsForecast: true,
		})
	}
	return out
}

// CombineHistoricalAndForecast returns historical points, flagged as such, followed by fc.
func CombineHistoricalAndForecast(historical, fc []Point) []Point {
	out := make([]Point, 0, len(historical)+len(fc))
	for _, p := range historical {
		p.IsForecast = false
		p.UpperBound, p.LowerBound = nil, nil
		out = append(out, p)
	}
	return append(out, fc...)
}
