package numeric

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

var leadingFloatRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// SafeNumber is the lenient reader used after conversion: finite numbers pass through and
// text is read once dollar signs, commas and whitespace are removed. Blank cells and text
// that cleans down to nothing are not numbers.
func SafeNumber(v dataset.Value) (float64, bool) {
	switch v.Kind() {
	case dataset.KindNumber:
		return v.FiniteFloat()
	case dataset.KindText:
		s, _ := v.Str()
		s = cleanDollarCommaSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// LeadingFloat reads the longest numeric prefix of a cell after removing dollar signs, commas
// and whitespace, so "12kg" reads as 12.
func LeadingFloat(v dataset.Value) (float64, bool) {
	switch v.Kind() {
	case dataset.KindNumber:
		return v.FiniteFloat()
	case dataset.KindText:
		s, _ := v.Str()
		m := leadingFloatRe.FindString(cleanDollarCommaSpace(s))
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func cleanDollarCommaSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
