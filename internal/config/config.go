// Package config loads and validates the extractor configuration from a
// YAML file, with environment variable expansion and viper-backed defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/enerlytics/energis-extractor/internal/models"
)

// ErrValidation wraps every configuration error caught before any network
// activity.
var ErrValidation = errors.New("invalid configuration")

// Addressing selects how chunks address the remote data.
const (
	AddressingRange  = "range"
	AddressingPeriod = "period"
)

// Config holds all configuration for an extraction run.
type Config struct {
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	SyncOptions    SyncOptionsConfig    `mapstructure:"sync_options"`
	Output         OutputConfig         `mapstructure:"output"`
	State          StateConfig          `mapstructure:"state"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Debug          bool                 `mapstructure:"debug"`
}

type AuthenticationConfig struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

type SyncOptionsConfig struct {
	Dataset     string `mapstructure:"dataset"`
	Nodes       []int  `mapstructure:"nodes"`
	DateFrom    string `mapstructure:"date_from"`
	DateTo      string `mapstructure:"date_to"`
	Granularity string `mapstructure:"granularity"`
	Addressing  string `mapstructure:"addressing"`
	Event       string `mapstructure:"event"`
	Phase       string `mapstructure:"phase"`
	Incremental bool   `mapstructure:"incremental"`

	// MaxConcurrent caps parallel chunk fetches; 0 uses the built-in cap.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// RequestsPerSecond throttles data requests when positive.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type OutputConfig struct {
	Format   string         `mapstructure:"format"`
	Dir      string         `mapstructure:"dir"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type StateConfig struct {
	File string `mapstructure:"file"`
}

type SchedulerConfig struct {
	Cron string `mapstructure:"cron"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads the configuration file, expands environment variables in it,
// applies defaults and unmarshals the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Round-trip through the YAML parser first so syntax errors surface
	// with a useful message before env expansion rewrites the text.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}
	data, err = yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	// Expand environment variables before parsing so secrets can stay out
	// of the file.
	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("authentication.api_base_url", "https://webenergis.eu/test/1.wsc/soap")

	v.SetDefault("sync_options.dataset", string(models.DatasetExport))
	v.SetDefault("sync_options.date_from", "2020-01-01")
	v.SetDefault("sync_options.granularity", string(models.Day))
	v.SetDefault("sync_options.addressing", AddressingRange)

	v.SetDefault("output.format", "csv")
	v.SetDefault("output.dir", "out/tables")
	v.SetDefault("output.postgres.table", "energis_data")

	v.SetDefault("state.file", "state.json")
}

// Validate checks the configuration before any network activity.
func (c *Config) Validate() error {
	if c.Authentication.Username == "" {
		return fmt.Errorf("%w: authentication.username cannot be empty", ErrValidation)
	}
	if c.Authentication.Password == "" {
		return fmt.Errorf("%w: authentication.password cannot be empty", ErrValidation)
	}
	if len(c.SyncOptions.Nodes) == 0 {
		return fmt.Errorf("%w: sync_options.nodes cannot be empty", ErrValidation)
	}
	if !models.Dataset(c.SyncOptions.Dataset).Valid() {
		return fmt.Errorf("%w: unknown dataset %q", ErrValidation, c.SyncOptions.Dataset)
	}
	if !models.Granularity(c.SyncOptions.Granularity).Valid() {
		return fmt.Errorf("%w: unknown granularity %q", ErrValidation, c.SyncOptions.Granularity)
	}
	switch c.SyncOptions.Addressing {
	case AddressingRange:
	case AddressingPeriod:
		if models.Dataset(c.SyncOptions.Dataset) != models.DatasetExport {
			return fmt.Errorf("%w: period addressing is only supported for the export dataset", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown addressing %q", ErrValidation, c.SyncOptions.Addressing)
	}
	if _, err := time.Parse("2006-01-02", c.SyncOptions.DateFrom); err != nil {
		return fmt.Errorf("%w: sync_options.date_from: %v", ErrValidation, err)
	}
	if c.SyncOptions.DateTo != "" {
		if _, err := time.Parse("2006-01-02", c.SyncOptions.DateTo); err != nil {
			return fmt.Errorf("%w: sync_options.date_to: %v", ErrValidation, err)
		}
	}
	if c.SyncOptions.MaxConcurrent < 0 {
		return fmt.Errorf("%w: sync_options.max_concurrent cannot be negative", ErrValidation)
	}
	if c.SyncOptions.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: sync_options.requests_per_second cannot be negative", ErrValidation)
	}
	switch c.Output.Format {
	case "csv":
	case "postgres":
		if c.Output.Postgres.DSN == "" {
			return fmt.Errorf("%w: output.postgres.dsn is required for postgres output", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrValidation, c.Output.Format)
	}
	return nil
}

// Dataset returns the validated dataset.
func (c *Config) Dataset() models.Dataset {
	return models.Dataset(c.SyncOptions.Dataset)
}

// Granularity returns the validated granularity.
func (c *Config) Granularity() models.Granularity {
	return models.Granularity(c.SyncOptions.Granularity)
}

// ResolvedDateTo returns date_to, defaulting to today when unset.
func (c *Config) ResolvedDateTo() string {
	if c.SyncOptions.DateTo != "" {
		return c.SyncOptions.DateTo
	}
	return time.Now().Format("2006-01-02")
}
