package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xlsx")
}

// Load reads the selected sheet. If SheetName is empty and SheetIndex <= 0 the first sheet is
// used. SheetIndex is 1-based (Sheet1 == 1).
func (xlsxLoader) Load(path string, opt Options) (*dataset.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := selectSheet(f.GetSheetList(), opt.SheetName, opt.SheetIndex, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	name := tableName(path)
	if sheet != "" {
		name += ":" + sheet
	}
	// the first non-empty row is the header
	start := -1
	for i, r := range rows {
		if hasContent(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return &dataset.Table{Name: name}, nil
	}
	cols, warnings := normalizeHeader(rows[start])
	var records [][]string
	for _, r := range rows[start+1:] {
		if !hasContent(r) {
			continue
		}
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			warnings = append(warnings, fmt.Sprintf("read only the first %d rows due to MaxRows", opt.MaxRows))
			break
		}
		records = append(records, r)
	}
	t := dataset.FromRecords(name, cols, records)
	t.Warnings = warnings
	return t, nil
}

func selectSheet(sheets []string, name string, index int, file string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook '%s' has no sheets", file)
	}
	if name != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, name) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			name, file, strings.Join(sheets, ", "))
	}
	if index <= 0 {
		index = 1
	}
	if index > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range for workbook '%s' (%d sheets)", index, file, len(sheets))
	}
	return sheets[index-1], nil
}

func hasContent(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}
