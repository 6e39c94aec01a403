package forecast

import "math"

// Direction of a fitted trend.
const (
	Upward   = "upward"
	Downward = "downward"
	Neutral  = "neutral"
)

// Trend describes the sign and magnitude of a fitted slope. Confidence is the fit's r².
type Trend struct {
	Direction  string  `json:"direction"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
	Slope      float64 `json:"slope"`
}

// AnalyzeTrend classifies the series slope. Fewer than two points is neutral with zero strength.
func AnalyzeTrend(points []Point) Trend {
	reg, ok := CalculateLinearRegression(points)
	if !ok {
		return Trend{Direction: Neutral}
	}
	t := Trend{
		Direction:  Neutral,
		Strength:   math.Min(math.Abs(reg.Slope)*100, math.MaxFloat64),
		Confidence: reg.RSquared,
		Slope:      reg.Slope,
	}
	switch {
	case reg.Slope > 0:
		t.Direction = Upward
	case reg.Slope < 0:
		t.Direction = Downward
	}
	return t
}

// MovingAverage replaces each value with the mean of the trailing window ending at it.
// The first points average over however many values exist so far.
func MovingAverage(points []Point, window int) []Point {
	if window < 1 {
		window = 1
	}
	out := make([]Point, 0, len(points))
	for i := range points {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		k := float64(i + 1 - start)
		sum := 0.0
		for _, p := range points[start : i+1] {
			sum += p.Value
		}
		mean := sum / k
		if !isFinite(mean) {
			// the plain sum overflowed; scale each term first
			mean = 0
			for _, p := range points[start : i+1] {
				mean += p.Value / k
			}
		}
		p := points[i]
		p.Value = mean
		out = append(out, p)
	}
	return out
}

// DetectSeasonality averages, over each position within a cycle of length period, the
// population variance of the values at that position. Low values suggest a repeating
// pattern. It reports false when the series is shorter than two full cycles or the variance
// overflows.
func DetectSeasonality(points []Point, period int) (float64, bool) {
	if period < 1 || len(points) < period*2 {
		return 0, false
	}
	var total float64
	n := 0
	for i := 0; i < period; i++ {
		var vals []float64
		for j := i; j < len(points); j += period {
			vals = append(vals, points[j].Value)
		}
		if len(vals) > 1 {
			total += variance(vals)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	v := total / float64(n)
	if !isFinite(v) {
		return 0, false
	}
	return v, true
}

func variance(vals []float64) float64 {
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	s := 0.0
	for _, v := range vals {
		s += (v - mean) * (v - mean)
	}
	return s / float64(len(vals))
}
