package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
	"github.com/KaramelBytes/datalens-cli/internal/insight"
	"github.com/KaramelBytes/datalens-cli/internal/loader"
	"github.com/KaramelBytes/datalens-cli/internal/numeric"
	"github.com/KaramelBytes/datalens-cli/internal/pipeline"
)

var (
	anaOutputPath string
	anaFormat     string
	anaDelimiter  string
	anaSheetName  string
	anaSheetIndex int
	anaMaxRows    int
	anaThreshold  float64
	anaPeriods    int
	anaGrain      string
	anaPlanPath   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX file and print evidence plus a forecast",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		lopt, err := loaderOptions(anaDelimiter, anaSheetName, anaSheetIndex, anaMaxRows)
		if err != nil {
			return err
		}
		opt, err := pipelineOptions(cmd, anaThreshold, anaPeriods, anaGrain)
		if err != nil {
			return err
		}
		if anaPlanPath != "" {
			plan, err := readPlan(anaPlanPath)
			if err != nil {
				return err
			}
			opt.Plan = plan
		}
		format, err := normalizeFormat(anaFormat)
		if err != nil {
			return err
		}
		if anaOutputPath != "" && !cmd.Flags().Changed("format") {
			format = formatFromPath(anaOutputPath, format)
		}

		table, err := loader.LoadFile(path, lopt)
		if err != nil {
			return err
		}
		logger.Debug("loaded table",
			zap.String("file", filepath.Base(path)),
			zap.Int("rows", len(table.Rows)),
			zap.Int("columns", len(table.Columns)))
		for _, w := range table.Warnings {
			logger.Warn(w, zap.String("file", filepath.Base(path)))
		}
		res, err := pipeline.Run(cmd.Context(), table, opt)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), res, format, anaOutputPath)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the result (format follows the extension)")
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", formatMarkdown, "output format: json|yaml|markdown")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab' (sniffed from the extension if omitted)")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	analyzeCmd.Flags().IntVar(&anaSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to load (0 = unlimited)")
	analyzeCmd.Flags().Float64Var(&anaThreshold, "threshold", 0, "numeric parse ratio needed to convert a column (overrides config)")
	analyzeCmd.Flags().IntVar(&anaPeriods, "periods", 0, "forecast periods (overrides config; 0 disables)")
	analyzeCmd.Flags().StringVar(&anaGrain, "grain", "", "trend grain: day|week|month (overrides config)")
	analyzeCmd.Flags().StringVar(&anaPlanPath, "plan", "", "JSON or YAML block plan to run instead of the default plan")
}

func effectiveConfig() *cfgpkg.Global {
	if cfg == nil {
		return cfgpkg.Default()
	}
	return cfg
}

func loaderOptions(delimiter, sheetName string, sheetIndex, maxRows int) (loader.Options, error) {
	delim, err := parseDelimiter(delimiter)
	if err != nil {
		return loader.Options{}, err
	}
	if maxRows < 0 {
		return loader.Options{}, fmt.Errorf("--max-rows must not be negative")
	}
	return loader.Options{Delimiter: delim, SheetName: sheetName, SheetIndex: sheetIndex, MaxRows: maxRows}, nil
}

func inferOptions(c *cfgpkg.Global) numeric.InferOptions {
	return numeric.InferOptions{
		Threshold:           c.NumericThreshold,
		EvaluationRowLimit:  c.EvaluationRowLimit,
		MinNonNullValues:    c.MinNonNullValues,
		AllowParensNegative: c.AllowParensNegative,
	}
}

// pipelineOptions maps config onto pipeline options, then applies changed flags.
func pipelineOptions(cmd *cobra.Command, threshold float64, periods int, grain string) (pipeline.Options, error) {
	c := effectiveConfig()
	opt := pipeline.DefaultOptions()
	opt.Infer = inferOptions(c)
	opt.Profile.MaxProfileRows = c.MaxProfileRows
	opt.Compute.MaxComputeRows = c.MaxComputeRows
	opt.Grain = c.TrendGrain
	opt.ForecastPeriods = c.ForecastPeriods
	opt.Logger = logger

	f := cmd.Flags()
	if f.Changed("threshold") {
		if threshold <= 0 || threshold > 1 {
			return opt, fmt.Errorf("--threshold must be in (0, 1], got %v", threshold)
		}
		opt.Infer.Threshold = threshold
	}
	if f.Changed("periods") {
		if periods < 0 {
			return opt, fmt.Errorf("--periods must not be negative")
		}
		opt.ForecastPeriods = periods
	}
	if f.Changed("grain") {
		g := strings.ToLower(grain)
		if !insight.ValidGrain(g) {
			return opt, fmt.Errorf("unsupported --grain: %s (use day|week|month)", grain)
		}
		opt.Grain = g
	}
	return opt, nil
}

func readPlan(path string) (*insight.Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan insight.Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &plan)
	default:
		err = json.Unmarshal(b, &plan)
	}
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan.Blocks) == 0 {
		return nil, fmt.Errorf("plan %s has no blocks", filepath.Base(path))
	}
	return &plan, nil
}
