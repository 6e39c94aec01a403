package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/insight"
	"github.com/KaramelBytes/datalens-cli/internal/loader"
	"github.com/KaramelBytes/datalens-cli/internal/pipeline"
)

var (
	fcTime       string
	fcMeasure    string
	fcPeriods    int
	fcGrain      string
	fcFormat     string
	fcOutput     string
	fcDelimiter  string
	fcSheetName  string
	fcSheetIndex int
	fcSmooth     int
	fcSeason     int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <file>",
	Short: "Bucket a time column and project the series forward with a linear fit",
	Long: `Aggregates --measure (or counts rows) per --grain bucket of --time, fits a least-squares line
over the bucket index and appends --periods forecast points with a 95% prediction band.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(fcTime) == "" {
			return fmt.Errorf("--time is required")
		}
		c := effectiveConfig()
		periods := c.ForecastPeriods
		if cmd.Flags().Changed("periods") {
			if fcPeriods < 0 {
				return fmt.Errorf("--periods must not be negative")
			}
			periods = fcPeriods
		}
		grain := c.TrendGrain
		if cmd.Flags().Changed("grain") {
			grain = strings.ToLower(fcGrain)
			if !insight.ValidGrain(grain) {
				return fmt.Errorf("unsupported --grain: %s (use day|week|month)", fcGrain)
			}
		}
		format, err := normalizeFormat(fcFormat)
		if err != nil {
			return err
		}
		if fcOutput != "" && !cmd.Flags().Changed("format") {
			format = formatFromPath(fcOutput, format)
		}
		lopt, err := loaderOptions(fcDelimiter, fcSheetName, fcSheetIndex, 0)
		if err != nil {
			return err
		}
		table, err := loader.LoadFile(args[0], lopt)
		if err != nil {
			return err
		}
		res, err := pipeline.ForecastColumn(cmd.Context(), table, pipeline.ForecastOptions{
			TimeColumn:   fcTime,
			Measure:      fcMeasure,
			Grain:        grain,
			Periods:      periods,
			Infer:        inferOptions(c),
			SmoothWindow: fcSmooth,
			SeasonPeriod: fcSeason,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), res, format, fcOutput)
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.Flags().StringVar(&fcTime, "time", "", "time column to bucket (required)")
	forecastCmd.Flags().StringVar(&fcMeasure, "measure", "", "numeric column to sum per bucket (default: row count)")
	forecastCmd.Flags().IntVar(&fcPeriods, "periods", 0, "number of future points (overrides config)")
	forecastCmd.Flags().StringVar(&fcGrain, "grain", "", "bucket grain: day|week|month (overrides config)")
	forecastCmd.Flags().StringVarP(&fcFormat, "format", "f", formatMarkdown, "output format: json|yaml|markdown")
	forecastCmd.Flags().StringVarP(&fcOutput, "output", "o", "", "optional path to write the result")
	forecastCmd.Flags().StringVar(&fcDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
	forecastCmd.Flags().StringVar(&fcSheetName, "sheet-name", "", "XLSX: sheet name")
	forecastCmd.Flags().IntVar(&fcSmooth, "smooth", 0, "trailing moving-average window over the history (0 = off)")
	forecastCmd.Flags().IntVar(&fcSeason, "season", 0, "cycle length in buckets to score seasonality (0 = off)")
	forecastCmd.Flags().IntVar(&fcSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
