package dataset

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	yearOnlyRe  = regexp.MustCompile(`^\d{4}$`)
	dateShapeRe = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`),
		regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}`),
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}`),
		regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2,4}`),
	}
	dateLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-1-2T15:04:05", "2006-1-2T15:04", "2006-1-2 15:04:05", "2006-1-2 15:04", "2006-1-2",
		"2006/1/2 15:04:05", "2006/1/2 15:04", "2006/1/2",
		"1/2/2006 15:04:05", "1/2/2006 15:04", "1/2/2006", "1/2/06",
		"1-2-2006", "1-2-06",
	}
)

// LooksLikeDate reports whether s has one of the accepted date shapes. Bare four-digit years do not.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || yearOnlyRe.MatchString(s) {
		return false
	}
	for _, re := range dateShapeRe {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ParseTime reads a date-shaped string or an epoch number (seconds or milliseconds). All results are UTC.
func ParseTime(v Value) (time.Time, bool) {
	switch v.Kind() {
	case KindNumber:
		f, ok := v.FiniteFloat()
		if !ok {
			return time.Time{}, false
		}
		return fromEpoch(f)
	case KindText:
		s, _ := v.Str()
		return parseDateString(s)
	}
	return time.Time{}, false
}

// ParseTimeOrYear is ParseTime that also accepts integer years 1900..2100 (as numbers or
// four-digit strings) and maps them to January 1st.
func ParseTimeOrYear(v Value) (time.Time, bool) {
	switch v.Kind() {
	case KindNumber:
		if f, ok := v.FiniteFloat(); ok && isYear(f) {
			return time.Date(int(f), time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	case KindText:
		s, _ := v.Str()
		s = strings.TrimSpace(s)
		if yearOnlyRe.MatchString(s) {
			if y, err := strconv.Atoi(s); err == nil && isYear(float64(y)) {
				return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return ParseTime(v)
}

func isYear(f float64) bool {
	return f == math.Trunc(f) && f >= 1900 && f <= 2100
}

func fromEpoch(f float64) (time.Time, bool) {
	switch {
	case f > 1e10:
		return time.UnixMilli(int64(f)).UTC(), true
	case f > 1e9 && f < 1e10:
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if !LooksLikeDate(s) {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ISODate formats t as YYYY-MM-DD in UTC.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
