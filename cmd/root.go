package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
	"github.com/KaramelBytes/datalens-cli/internal/logging"
)

var (
	// Global flags
	cfgFile string
	envFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
	// Logger writes diagnostics to stderr; results go to stdout.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "datalens",
	Short: "DataLens CLI: deterministic analysis of tabular data",
	Long: `DataLens profiles CSV/TSV/XLSX files, classifies what the dataset is about, picks a primary metric,
derives revenue fields, computes KPI/trend/breakdown/driver blocks and forecasts the trend series.
Every result is deterministic for the same input.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datalens/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with DATALENS_* overrides (ignored if missing)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	if err := cfgpkg.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so read-only commands still work
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Default()
	}
	cfg = c

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	l, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
		l = zap.NewNop()
	}
	logger = l
}
