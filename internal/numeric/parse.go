package numeric

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Parse failure reasons.
const (
	ReasonNull            = "null"
	ReasonEmpty           = "empty"
	ReasonNullLike        = "null_like"
	ReasonNotNumeric      = "not_numeric"
	ReasonNonFinite       = "non_finite"
	ReasonNonFiniteNumber = "non_finite_number"
)

// NullLike is the fixed set of lower-cased strings that mean "no data".
var NullLike = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"null": {},
	"none": {},
	"nan":  {},
	"-":    {},
	"—":    {},
	"--":   {},
}

var (
	plainNumberRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
	parensRe      = regexp.MustCompile(`^\((.*)\)$`)
)

// ParseResult is the verdict on a single cell. Value and Normalized are set only when OK.
type ParseResult struct {
	OK         bool    `json:"ok"`
	Value      float64 `json:"value,omitempty"`
	Normalized string  `json:"normalized,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// IsNullLike reports whether a cell means "no data". Numbers never do.
func IsNullLike(v dataset.Value) bool {
	switch v.Kind() {
	case dataset.KindNull:
		return true
	case dataset.KindText:
		s, _ := v.Str()
		return IsNullLikeString(s)
	default:
		return false
	}
}

// IsNullLikeString applies the null-like test to raw text.
func IsNullLikeString(s string) bool {
	_, ok := NullLike[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// TryParseNumber parses currency, thousands separators and parenthesized negatives.
// Only plain digits with an optional fractional part survive cleanup; exponents and
// European grouping are rejected.
func TryParseNumber(v dataset.Value, allowParensNegative bool) ParseResult {
	switch v.Kind() {
	case dataset.KindNull:
		return ParseResult{Reason: ReasonNull}
	case dataset.KindNumber:
		f, ok := v.FiniteFloat()
		if !ok {
			return ParseResult{Reason: ReasonNonFiniteNumber}
		}
		return ParseResult{OK: true, Value: f, Normalized: dataset.FormatNumber(f)}
	}
	raw, _ := v.Str()
	return ParseString(raw, allowParensNegative)
}

// ParseString is TryParseNumber for raw text.
func ParseString(raw string, allowParensNegative bool) ParseResult {
	s := stripOuterQuotes(raw)
	if s == "" {
		return ParseResult{Reason: ReasonEmpty}
	}
	if IsNullLikeString(s) {
		return ParseResult{Reason: ReasonNullLike}
	}

	negative := false
	if allowParensNegative {
		if m := parensRe.FindStringSubmatch(s); m != nil {
			negative = true
			s = strings.TrimSpace(m[1])
		}
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ',' || isCurrency(r) {
			return -1
		}
		return r
	}, s)

	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	if !plainNumberRe.MatchString(s) {
		return ParseResult{Reason: ReasonNotNumeric}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return ParseResult{Reason: ReasonNonFinite}
	}
	norm := s
	if negative {
		f = -f
		norm = "-" + s
	}
	return ParseResult{OK: true, Value: f, Normalized: norm}
}

func stripOuterQuotes(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 2 {
		first, last := t[0], t[len(t)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return strings.TrimSpace(t[1 : len(t)-1])
		}
	}
	return t
}

func isCurrency(r rune) bool {
	switch r {
	case '$', '€', '£', '¥', '₦', '₹', '₩', '₫', '฿', '₽', '₺', '₴', '₱':
		return true
	}
	return false
}
