package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

type csvLoader struct{}

func (csvLoader) CanLoad(path string) bool {
	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvLoader) Load(path string, opt Options) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close()
		src = zr
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	return ReadCSV(src, tableName(path), delim, opt.MaxRows)
}

// ReadCSV reads delimited text with a header row into a table. maxRows <= 0 reads everything.
func ReadCSV(src io.Reader, name string, delim rune, maxRows int) (*dataset.Table, error) {
	r := csv.NewReader(src)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &dataset.Table{Name: name}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, warnings := normalizeHeader(header)
	var records [][]string
	ragged := 0
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if maxRows > 0 && len(records) >= maxRows {
			warnings = append(warnings, fmt.Sprintf("read only the first %d rows due to MaxRows", maxRows))
			break
		}
		if len(rec) != len(cols) {
			ragged++
		}
		records = append(records, append([]string(nil), rec...))
	}
	if ragged > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows did not match the header width", ragged))
	}
	t := dataset.FromRecords(name, cols, records)
	t.Warnings = warnings
	return t, nil
}

func sniffDelimiter(path string) rune {
	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}

// tableName is the file's base name without data and compression extensions.
func tableName(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range []string{".gz", ".csv", ".tsv", ".xlsx"} {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			lower = lower[:len(lower)-len(ext)]
		}
	}
	return base
}
