// Package config provides configuration loading for attrmatch.
// Supports YAML files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/lookup"
)

// Config holds all configuration for attrmatch.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Lookup     LookupConfig     `yaml:"lookup"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// ArtifactsConfig selects where dictionary builds are published.
type ArtifactsConfig struct {
	Driver string      `yaml:"driver"` // memory, bolt or redis
	Path   string      `yaml:"path"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis settings. URL takes precedence over Addr.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DictionaryConfig tunes dictionary builds.
type DictionaryConfig struct {
	CommonWordPercentile     float64 `yaml:"common_word_percentile"`
	PerfectMatchBonus        float64 `yaml:"perfect_match_bonus"`
	NgramBonus               float64 `yaml:"ngram_bonus"`
	IncrementalIndex         bool    `yaml:"incremental_index"`
	StoplistPath             string  `yaml:"stoplist_path"`
	LexiconPath              string  `yaml:"lexicon_path"`
	StopwordSuggestDFPercent float64 `yaml:"stopword_suggest_df_percent"`
}

// LookupConfig tunes the dictionary matcher.
type LookupConfig struct {
	MinScoreRatio float64       `yaml:"min_score_ratio"`
	FuzzySuffix   int           `yaml:"fuzzy_suffix"`
	FuzzyWeight   float64       `yaml:"fuzzy_weight"`
	Endpoint      string        `yaml:"endpoint"` // remote lookup service, optional
	Timeout       time.Duration `yaml:"timeout"`
}

// ExtractionConfig tunes extraction runs.
type ExtractionConfig struct {
	BatchSize          int    `yaml:"batch_size"`
	RatingCode         string `yaml:"rating_code"`
	DebugProductFilter string `yaml:"debug_product_filter"`
	Workers            int    `yaml:"workers"`
	ChunkSize          int    `yaml:"chunk_size"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Load reads configuration from a YAML file (optional), applies environment
// overrides and validates the result. Relative stoplist and lexicon paths
// are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Dictionary.StoplistPath != "" {
			cfg.Dictionary.StoplistPath = ResolveRelativePath(path, cfg.Dictionary.StoplistPath)
		}
		if cfg.Dictionary.LexiconPath != "" {
			cfg.Dictionary.LexiconPath = ResolveRelativePath(path, cfg.Dictionary.LexiconPath)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for local runs.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "attrmatch.db",
		},
		Artifacts: ArtifactsConfig{
			Driver: "bolt",
			Path:   "artifacts.db",
		},
		Dictionary: DictionaryConfig{
			CommonWordPercentile:     dictionary.DefaultCommonWordPercentile,
			PerfectMatchBonus:        dictionary.DefaultPerfectMatchBonus,
			NgramBonus:               dictionary.DefaultNgramBonus,
			StopwordSuggestDFPercent: 50,
		},
		Lookup: LookupConfig{
			MinScoreRatio: lookup.DefaultMinScoreRatio,
			FuzzySuffix:   lookup.DefaultFuzzySuffix,
			FuzzyWeight:   lookup.DefaultFuzzyWeight,
			Timeout:       15 * time.Second,
		},
		Extraction: ExtractionConfig{
			BatchSize:  10000,
			RatingCode: "rating",
			Workers:    1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the pipelines cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), internalerr.ErrInvalidConfig)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return invalid("invalid database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return invalid("database dsn is required")
	}

	switch c.Artifacts.Driver {
	case "memory":
	case "bolt":
		if c.Artifacts.Path == "" {
			return invalid("artifacts path is required for bolt")
		}
	case "redis":
		if c.Artifacts.Redis.URL == "" && c.Artifacts.Redis.Addr == "" {
			return invalid("redis url or addr is required")
		}
	default:
		return invalid("invalid artifacts driver: %s", c.Artifacts.Driver)
	}

	d := c.Dictionary
	if d.CommonWordPercentile < 0 || d.CommonWordPercentile > 100 {
		return invalid("common_word_percentile must be between 0 and 100")
	}
	if d.PerfectMatchBonus <= 0 {
		return invalid("perfect_match_bonus must be positive")
	}
	if d.NgramBonus < 0 {
		return invalid("ngram_bonus must not be negative")
	}
	if d.StopwordSuggestDFPercent <= 0 || d.StopwordSuggestDFPercent > 100 {
		return invalid("stopword_suggest_df_percent must be in (0, 100]")
	}

	l := c.Lookup
	if l.MinScoreRatio <= 0 || l.MinScoreRatio > 1 {
		return invalid("min_score_ratio must be in (0, 1]")
	}
	if l.FuzzySuffix < 0 {
		return invalid("fuzzy_suffix must not be negative")
	}
	if l.FuzzyWeight <= 0 || l.FuzzyWeight > 1 {
		return invalid("fuzzy_weight must be in (0, 1]")
	}

	e := c.Extraction
	if e.BatchSize < 1 {
		return invalid("batch_size must be positive")
	}
	if e.RatingCode == "" {
		return invalid("rating_code is required")
	}
	if e.Workers < 1 {
		return invalid("workers must be at least 1")
	}
	if e.ChunkSize < 0 {
		return invalid("chunk_size must not be negative")
	}

	return nil
}

// DictionaryOptions returns build options for the configured scoring.
func (c *Config) DictionaryOptions(logger zerolog.Logger) dictionary.Options {
	return dictionary.Options{
		CommonWordPercentile: c.Dictionary.CommonWordPercentile,
		PerfectMatchBonus:    c.Dictionary.PerfectMatchBonus,
		NgramBonus:           c.Dictionary.NgramBonus,
		Logger:               logger,
	}
}

// LookupOptions returns matcher options for the configured scoring.
func (c *Config) LookupOptions(logger zerolog.Logger) lookup.Options {
	return lookup.Options{
		Rule:              lookup.RatioRule{MinRatio: c.Lookup.MinScoreRatio},
		FuzzySuffix:       c.Lookup.FuzzySuffix,
		FuzzyWeight:       c.Lookup.FuzzyWeight,
		PerfectMatchBonus: c.Dictionary.PerfectMatchBonus,
		NgramBonus:        c.Dictionary.NgramBonus,
		Logger:            logger,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTRMATCH_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}

	if v := os.Getenv("ATTRMATCH_DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.DSN = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.DSN = v
		} else {
			cfg.Database.DSN = v
		}
	}

	if v := os.Getenv("ATTRMATCH_ARTIFACTS_PATH"); v != "" {
		cfg.Artifacts.Path = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Artifacts.Driver = "redis"
		cfg.Artifacts.Redis.URL = v
	}

	if v := os.Getenv("ATTRMATCH_LOOKUP_ENDPOINT"); v != "" {
		cfg.Lookup.Endpoint = v
	}

	if v := os.Getenv("ATTRMATCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extraction.BatchSize = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// ResolveRelativePath resolves targetPath against the directory of configPath.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
