// Package loader reads tabular files into dataset tables.
package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Loader defines a tabular file reader.
type Loader interface {
	CanLoad(path string) bool
	Load(path string, opt Options) (*dataset.Table, error)
}

// Options control how a file is read.
type Options struct {
	// Delimiter overrides delimiter sniffing for CSV/TSV input. Zero means sniff.
	Delimiter rune
	// SheetName selects an XLSX sheet by name (case-insensitive).
	SheetName string
	// SheetIndex selects an XLSX sheet by 1-based position when SheetName is empty.
	SheetIndex int
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a file extension no loader handles.
var ErrUnsupported = errors.New("unsupported data format")

// LoadFile selects a loader based on the file name and reads the table.
func LoadFile(path string, opt Options) (*dataset.Table, error) {
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Supported reports whether some registered loader accepts path.
func Supported(path string) bool {
	for _, l := range registry {
		if l.CanLoad(path) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// normalizeHeader trims names, fills blanks and suffixes duplicates so every column has a
// distinct key.
func normalizeHeader(header []string) (cols []string, warnings []string) {
	seen := make(map[string]int, len(header))
	cols = make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
			warnings = append(warnings, fmt.Sprintf("blank header at position %d renamed to %s", i+1, name))
		}
		if n, dup := seen[name]; dup {
			renamed := fmt.Sprintf("%s_%d", name, n+1)
			warnings = append(warnings, fmt.Sprintf("duplicate column %q renamed to %s", name, renamed))
			seen[name] = n + 1
			name = renamed
		}
		seen[name]++
		cols[i] = name
	}
	return cols, warnings
}
