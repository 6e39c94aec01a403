package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/datalens-cli/internal/loader"
	"github.com/KaramelBytes/datalens-cli/internal/pipeline"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

var (
	abOutputDir  string
	abFormat     string
	abDelimiter  string
	abSheetName  string
	abSheetIndex int
	abMaxRows    int
	abThreshold  float64
	abPeriods    int
	abGrain      string
	abQuiet      bool
	abKeepGoing  bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files and write one result per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		seen := map[string]struct{}{}
		for _, arg := range args {
			matches, _ := filepath.Glob(arg)
			if len(matches) == 0 {
				// treat as literal path if exists
				if _, err := os.Stat(arg); err == nil {
					matches = []string{arg}
				}
			}
			for _, m := range matches {
				if _, ok := seen[m]; ok {
					continue
				}
				if !loader.Supported(m) {
					if !abQuiet {
						fmt.Fprintf(cmd.OutOrStdout(), "⚠ Skipping unsupported file %s\n", filepath.Base(m))
					}
					continue
				}
				seen[m] = struct{}{}
				files = append(files, m)
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		sort.Strings(files)

		lopt, err := loaderOptions(abDelimiter, abSheetName, abSheetIndex, abMaxRows)
		if err != nil {
			return err
		}
		opt, err := pipelineOptions(cmd, abThreshold, abPeriods, abGrain)
		if err != nil {
			return err
		}
		format, err := normalizeFormat(abFormat)
		if err != nil {
			return err
		}
		outDir := abOutputDir
		if outDir == "" {
			outDir = effectiveConfig().OutputDir
		}
		if outDir != "" {
			if err := utils.EnsureDir(outDir); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		total, failed := len(files), 0
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := analyzeOne(cmd, path, lopt, opt)
			if err != nil {
				if !abKeepGoing {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				failed++
				logger.Error("analysis failed", zap.String("file", path), zap.Error(err))
				fmt.Fprintf(out, "✗ %s: %v\n", filepath.Base(path), err)
				continue
			}

			if outDir == "" {
				if !abQuiet {
					b, err := render(res, format)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(b))
				}
				continue
			}
			outFile := utils.UniquePath(outDir, batchBaseName(path, abSheetName), extFor(format))
			if filepath.Base(outFile) != batchBaseName(path, abSheetName)+extFor(format) && !abQuiet {
				fmt.Fprintf(out, "⚠ Detected existing result, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
			}
			b, err := render(res, format)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(outFile, b); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			if !abQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", outFile)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

func analyzeOne(cmd *cobra.Command, path string, lopt loader.Options, opt pipeline.Options) (*pipeline.Result, error) {
	table, err := loader.LoadFile(path, lopt)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(cmd.Context(), table, opt)
}

// batchBaseName is the file name without extensions, plus a sheet suffix when one was chosen.
func batchBaseName(path, sheet string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".csv", ".tsv", ".xlsx"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
		}
	}
	if sheet != "" {
		base += "__sheet-" + utils.SlugName(sheet, "sheet")
	}
	return base
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutputDir, "output-dir", "", "directory for per-file results (default: config output_dir, else stdout)")
	analyzeBatchCmd.Flags().StringVarP(&abFormat, "format", "f", formatJSON, "output format: json|yaml|markdown")
	analyzeBatchCmd.Flags().StringVar(&abDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
	analyzeBatchCmd.Flags().StringVar(&abSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	analyzeBatchCmd.Flags().IntVar(&abSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	analyzeBatchCmd.Flags().IntVar(&abMaxRows, "max-rows", 0, "maximum rows to load per file (0 = unlimited)")
	analyzeBatchCmd.Flags().Float64Var(&abThreshold, "threshold", 0, "numeric parse ratio needed to convert a column (overrides config)")
	analyzeBatchCmd.Flags().IntVar(&abPeriods, "periods", 0, "forecast periods (overrides config; 0 disables)")
	analyzeBatchCmd.Flags().StringVar(&abGrain, "grain", "", "trend grain: day|week|month (overrides config)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	analyzeBatchCmd.Flags().BoolVar(&abKeepGoing, "keep-going", false, "continue past files that fail and report them at the end")
}
