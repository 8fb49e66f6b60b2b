package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete study configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration for the results API
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/surveykit.log"`
}

// PathsConfig contains input and output file locations
type PathsConfig struct {
	ResponsesFile  string `yaml:"responses_file" envconfig:"RESPONSES_FILE" default:"data/survey_responses.csv"`
	DictionaryFile string `yaml:"dictionary_file" envconfig:"DICTIONARY_FILE" default:"data/data_dictionary.csv"`
	PlanFile       string `yaml:"plan_file" envconfig:"PLAN_FILE" default:"data/analysis_plan.yaml"`
	OutputDir      string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output/reports"`
}

// AnalysisConfig contains the statistical knobs for the pipeline.
// These are fixed per run; components receive them at construction time.
type AnalysisConfig struct {
	// MinSampleSize is the complete-case floor below which an edge or
	// segment fit is reported as insufficient data.
	MinSampleSize int `yaml:"min_sample_size" envconfig:"MIN_SAMPLE_SIZE" default:"30" validate:"gte=2"`

	// MinAlpha is the conventional acceptability threshold for
	// Cronbach's alpha. Advisory only.
	MinAlpha float64 `yaml:"min_alpha" envconfig:"MIN_ALPHA" default:"0.7" validate:"gte=0,lte=1"`

	// CompositeMinPresent is the default minimum number of non-missing
	// items required before a composite score is defined.
	CompositeMinPresent int `yaml:"composite_min_present" envconfig:"COMPOSITE_MIN_PRESENT" default:"1" validate:"gte=0"`

	// SegmentField names the grouping column for stratified refits.
	SegmentField string `yaml:"segment_field" envconfig:"SEGMENT_FIELD" default:"segment"`

	// MaxConcurrentRefits bounds parallel segment refits.
	MaxConcurrentRefits int `yaml:"max_concurrent_refits" envconfig:"MAX_CONCURRENT_REFITS" default:"4" validate:"gte=1"`

	// FactorCount is the number of factors extracted from benefit items.
	FactorCount int `yaml:"factor_count" envconfig:"FACTOR_COUNT" default:"4" validate:"gte=1"`
}

// Load loads configuration from environment variables and an optional
// YAML study file. Environment variables take precedence.
func Load() (*Config, error) {
	return LoadFromFile(configFilePath())
}

// LoadFromFile loads configuration, reading the YAML file at path if it
// exists, then applying environment overrides via envconfig.
func LoadFromFile(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		fileCfg, err := loadYAML(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		cfg = *fileCfg
	}

	// Environment variables override file values; envconfig also fills
	// defaults for anything still zero.
	if err := envconfig.Process("SURVEYKIT", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its declared constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFilePath() string {
	if path := os.Getenv("SURVEYKIT_CONFIG"); path != "" {
		return path
	}
	return "surveykit.yaml"
}
