package dataset

// Table is a loaded dataset: the declared header plus rows keyed by it.
type Table struct {
	Name    string
	Columns []string
	Rows    []*Row
	// Warnings collects non-fatal loader notes (truncation, ragged rows).
	Warnings []string
}

// FromRecords builds a table from a header and raw string records. Short records are padded
// with empty cells; extra fields beyond the header are dropped.
func FromRecords(name string, header []string, records [][]string) *Table {
	t := &Table{Name: name, Columns: append([]string(nil), header...)}
	for _, rec := range records {
		r := NewRow(len(header))
		for i, col := range header {
			if i < len(rec) {
				r.Set(col, Text(rec[i]))
			} else {
				r.Set(col, Empty())
			}
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	return &Table{
		Name:     t.Name,
		Columns:  append([]string(nil), t.Columns...),
		Rows:     CloneRows(t.Rows),
		Warnings: append([]string(nil), t.Warnings...),
	}
}
