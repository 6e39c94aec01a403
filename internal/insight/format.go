package insight

import (
	"fmt"
	"math"
	"strconv"
)

// formatShort renders a number for narratives: K/M/B with two decimals, else rounded to cents.
func formatShort(p *float64) string {
	if p == nil {
		return "n/a"
	}
	n := *p
	abs := math.Abs(n)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", n/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", n/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", n/1e3)
	}
	return strconv.FormatFloat(math.Round(n*100)/100, 'f', -1, 64)
}

func formatPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return strconv.FormatFloat(math.Round(*p*1000)/10, 'f', -1, 64) + "%"
}
