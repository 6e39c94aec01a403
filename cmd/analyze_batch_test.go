package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeBatch_CollisionSafeNames(t *testing.T) {
	home := isolatedHome(t)

	// Two CSV files with the same basename in different directories
	p1 := writeTestFile(t, filepath.Join(home, "d1", "metrics.csv"), ordersCSV)
	writeTestFile(t, filepath.Join(home, "d2", "metrics.csv"), ordersCSV)
	writeTestFile(t, filepath.Join(home, "d3", "metrics.txt"), "ignored")
	outDir := filepath.Join(home, "out")

	out := runCmd(t, "analyze-batch", filepath.Join(home, "d*", "metrics.*"), "--output-dir", outDir)
	if !strings.Contains(out, "[1/2] Processing metrics.csv...") || !strings.Contains(out, "[2/2] Processing metrics.csv...") {
		t.Fatalf("missing progress lines:\n%s", out)
	}
	if !strings.Contains(out, "Skipping unsupported file metrics.txt") {
		t.Fatalf("expected unsupported file to be skipped:\n%s", out)
	}

	b1 := filepath.Join(outDir, "metrics.json")
	b2 := filepath.Join(outDir, "metrics__2.json")
	for _, p := range []string{b1, b2} {
		body, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("missing result %s: %v", p, err)
		}
		var res struct {
			Source string `json:"source"`
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			t.Fatalf("decode %s: %v", p, err)
		}
		if res.Source != "metrics" || res.Intent != "sales" {
			t.Fatalf("unexpected result in %s: %+v", p, res)
		}
	}

	// Re-running with --quiet writes a third result and prints nothing
	quiet := runCmd(t, "analyze-batch", p1, "--output-dir", outDir, "--quiet", "-f", "markdown")
	if quiet != "" {
		t.Fatalf("expected no output with --quiet, got %q", quiet)
	}
	if _, err := os.Stat(filepath.Join(outDir, "metrics.md")); err != nil {
		t.Fatalf("missing markdown result: %v", err)
	}
}

func TestAnalyzeBatch_KeepGoing(t *testing.T) {
	home := isolatedHome(t)
	good := writeTestFile(t, filepath.Join(home, "in", "a.csv"), ordersCSV)
	bad := writeTestFile(t, filepath.Join(home, "in", "b.xlsx"), "not a workbook")
	outDir := filepath.Join(home, "out")

	if _, err := execCmd("analyze-batch", good, bad, "--output-dir", outDir); err == nil {
		t.Fatalf("expected failure on the broken workbook")
	}

	out, err := execCmd("analyze-batch", good, bad, "--output-dir", outDir, "--keep-going")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Fatalf("expected summary error, got %v", err)
	}
	if !strings.Contains(out, "✗ b.xlsx:") {
		t.Fatalf("expected per-file failure line:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "a.json")); err != nil {
		t.Fatalf("good file not written: %v", err)
	}
}

func TestAnalyzeBatch_NoMatches(t *testing.T) {
	home := isolatedHome(t)
	if _, err := execCmd("analyze-batch", filepath.Join(home, "nothing-*.csv")); err == nil {
		t.Fatalf("expected no input files error")
	}
}

func TestBatchBaseName(t *testing.T) {
	cases := map[string]string{
		"sales.csv":    "sales",
		"sales.csv.gz": "sales",
		"Book.XLSX":    "Book",
	}
	for in, want := range cases {
		if got := batchBaseName(in, ""); got != want {
			t.Fatalf("batchBaseName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := batchBaseName("book.xlsx", "Q1 Sales"); got != "book__sheet-q1-sales" {
		t.Fatalf("unexpected sheet name: %q", got)
	}
}
