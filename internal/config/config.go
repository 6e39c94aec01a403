package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Numeric normalization
	NumericThreshold    float64 `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`
	EvaluationRowLimit  int     `mapstructure:"evaluation_row_limit" yaml:"evaluation_row_limit"`
	MinNonNullValues    int     `mapstructure:"min_non_null_values" yaml:"min_non_null_values"`
	AllowParensNegative bool    `mapstructure:"allow_parens_negative" yaml:"allow_parens_negative"`

	// Profiling and block execution caps
	MaxProfileRows int `mapstructure:"max_profile_rows" yaml:"max_profile_rows"`
	MaxComputeRows int `mapstructure:"max_compute_rows" yaml:"max_compute_rows"`

	TrendGrain      string `mapstructure:"trend_grain" yaml:"trend_grain"`
	ForecastPeriods int    `mapstructure:"forecast_periods" yaml:"forecast_periods"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"numeric_threshold",
	"evaluation_row_limit",
	"min_non_null_values",
	"allow_parens_negative",
	"max_profile_rows",
	"max_compute_rows",
	"trend_grain",
	"forecast_periods",
	"log_level",
	"log_format",
	"output_dir",
}

// DefaultPath returns ~/.datalens/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datalens", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datalens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("numeric_threshold", 0.7)
	v.SetDefault("evaluation_row_limit", 5000)
	v.SetDefault("min_non_null_values", 2)
	v.SetDefault("allow_parens_negative", true)
	v.SetDefault("max_profile_rows", 5000)
	v.SetDefault("max_compute_rows", 20000)
	v.SetDefault("trend_grain", "month")
	v.SetDefault("forecast_periods", 6)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("output_dir", "")
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	// defaults always decode
	_ = v.Unmarshal(&c)
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATALENS")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(p))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file falls back to defaults
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDotEnv exports the KEY=VALUE pairs in path (".env" when empty) into the process
// environment so DATALENS_* overrides can live next to the data. Variables that are already
// set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Global) Validate() error {
	if c.NumericThreshold <= 0 || c.NumericThreshold > 1 {
		return fmt.Errorf("numeric_threshold must be in (0, 1], got %v", c.NumericThreshold)
	}
	if c.EvaluationRowLimit < 0 || c.MaxProfileRows < 0 || c.MaxComputeRows < 0 {
		return errors.New("row limits must not be negative")
	}
	if c.MinNonNullValues < 0 {
		return fmt.Errorf("min_non_null_values must not be negative, got %d", c.MinNonNullValues)
	}
	switch c.TrendGrain {
	case "day", "week", "month":
	default:
		return fmt.Errorf("invalid trend_grain: %s (use day, week or month)", c.TrendGrain)
	}
	if c.ForecastPeriods < 0 {
		return fmt.Errorf("forecast_periods must not be negative, got %d", c.ForecastPeriods)
	}
	return nil
}

// Set parses val for key and assigns it. The config is left unchanged when the result does
// not validate.
func (c *Global) Set(key, val string) error {
	prev := *c
	if err := c.assign(key, val); err != nil {
		*c = prev
		return err
	}
	if err := c.Validate(); err != nil {
		*c = prev
		return err
	}
	return nil
}

func (c *Global) assign(key, val string) error {
	switch key {
	case "numeric_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		c.NumericThreshold = f
	case "evaluation_row_limit", "min_non_null_values", "max_profile_rows", "max_compute_rows", "forecast_periods":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "evaluation_row_limit":
			c.EvaluationRowLimit = i
		case "min_non_null_values":
			c.MinNonNullValues = i
		case "max_profile_rows":
			c.MaxProfileRows = i
		case "max_compute_rows":
			c.MaxComputeRows = i
		default:
			c.ForecastPeriods = i
		}
	case "allow_parens_negative":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		c.AllowParensNegative = b
	case "trend_grain":
		c.TrendGrain = strings.ToLower(val)
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "output_dir":
		c.OutputDir = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get renders the current value of key for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "numeric_threshold":
		return strconv.FormatFloat(c.NumericThreshold, 'f', -1, 64), nil
	case "evaluation_row_limit":
		return strconv.Itoa(c.EvaluationRowLimit), nil
	case "min_non_null_values":
		return strconv.Itoa(c.MinNonNullValues), nil
	case "allow_parens_negative":
		return strconv.FormatBool(c.AllowParensNegative), nil
	case "max_profile_rows":
		return strconv.Itoa(c.MaxProfileRows), nil
	case "max_compute_rows":
		return strconv.Itoa(c.MaxComputeRows), nil
	case "trend_grain":
		return c.TrendGrain, nil
	case "forecast_periods":
		return strconv.Itoa(c.ForecastPeriods), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "output_dir":
		return c.OutputDir, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}
