package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single cell: null, a float64 number, or text.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Null returns the null cell.
func Null() Value { return Value{} }

// Number wraps a float64. Non-finite numbers are kept as-is; consumers decide.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text wraps a string without trimming.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Empty is the '' marker used for missing cells after conversion.
func Empty() Value { return Text("") }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsText() bool   { return v.kind == KindText }

// IsBlank reports null or the empty string.
func (v Value) IsBlank() bool {
	return v.kind == KindNull || (v.kind == KindText && v.text == "")
}

// Float returns the number held by a KindNumber value.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// FiniteFloat returns the number only when it is finite.
func (v Value) FiniteFloat() (float64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, false
	}
	return v.num, true
}

// Str returns the raw text of a KindText value.
func (v Value) Str() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// String renders the cell the way it would appear in a CSV file. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal compares kind and payload. NaN numbers are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}

// FormatNumber prints a float in its shortest round-trip form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MarshalJSON encodes null, number or string. Non-finite numbers encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return []byte(FormatNumber(v.num)), nil
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, numbers, strings and booleans (stored as text).
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Null()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode text cell: %w", err)
		}
		*v = Text(s)
	case 't', 'f':
		*v = Text(string(b))
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("decode number cell %q: %w", string(b), err)
		}
		*v = Number(f)
	}
	return nil
}
