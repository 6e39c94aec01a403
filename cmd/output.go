package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// Output formats accepted by --format.
const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

type markdowner interface {
	Markdown() string
}

func normalizeFormat(f string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "json":
		return formatJSON, nil
	case "yaml", "yml":
		return formatYAML, nil
	case "markdown", "md", "":
		return formatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported --format: %s (use json|yaml|markdown)", f)
}

// formatFromPath picks a format from the output file extension, falling back to def.
func formatFromPath(path, def string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	case ".md":
		return formatMarkdown
	}
	return def
}

func extFor(format string) string {
	switch format {
	case formatJSON:
		return ".json"
	case formatYAML:
		return ".yaml"
	}
	return ".md"
}

func render(v markdowner, format string) ([]byte, error) {
	switch format {
	case formatJSON:
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case formatYAML:
		return utils.JSONToYAML(v)
	}
	return []byte(v.Markdown()), nil
}

// emit writes rendered output to path, or to w when path is empty.
func emit(w io.Writer, v markdowner, format, path string) error {
	b, err := render(v, format)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := w.Write(b)
		return err
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(w, "✓ Wrote %s to %s\n", format, path)
	return nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}
