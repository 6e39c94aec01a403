package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is an insertion-ordered mapping from column name to cell.
// Rows are independent; nothing ties one row to another.
type Row struct {
	keys []string
	vals map[string]Value
}

// NewRow returns an empty row with room for n columns.
func NewRow(n int) *Row {
	return &Row{keys: make([]string, 0, n), vals: make(map[string]Value, n)}
}

// RowOf builds a row from alternating key/value pairs, keeping argument order.
func RowOf(pairs ...any) *Row {
	r := NewRow(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		r.Set(k, ValueOf(pairs[i+1]))
	}
	return r
}

// ValueOf converts common Go scalars into a Value.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return Text(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case bool:
		if t {
			return Text("true")
		}
		return Text("false")
	default:
		return Text(fmt.Sprint(t))
	}
}

// Set assigns a cell, appending the key if it is new. Existing keys keep their position.
func (r *Row) Set(key string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

// Get returns the cell for key. Missing keys read as null with ok=false.
func (r *Row) Get(key string) (Value, bool) {
	if r == nil || r.vals == nil {
		return Null(), false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Value returns the cell for key, null when absent.
func (r *Row) Value(key string) Value {
	v, _ := r.Get(key)
	return v
}

// Has reports whether the key is present.
func (r *Row) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns the column names in insertion order. The slice is a copy.
func (r *Row) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len is the number of columns in the row.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns a deep copy.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	c := NewRow(len(r.keys))
	for _, k := range r.keys {
		c.Set(k, r.vals[k])
	}
	return c
}

// MarshalJSON writes the row as an object with keys in insertion order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving key order as it appears in the input.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode row: expected object")
	}
	*r = Row{vals: map[string]Value{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode row key: %w", err)
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode row value for %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			// nested objects/arrays are kept as their JSON text
			v = Text(string(raw))
		}
		r.Set(key, v)
	}
	return nil
}

// CloneRows deep-copies a row slice.
func CloneRows(rows []*Row) []*Row {
	out := make([]*Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// KeyUnion returns every key seen across rows, in first-seen order.
func KeyUnion(rows []*Row) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range rows {
		if r == nil {
			continue
		}
		for _, k := range r.keys {
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
