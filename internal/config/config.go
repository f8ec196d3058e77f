// Package config loads the engine configuration from a YAML file and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/lectern-app/lectern/internal/fsrs"
)

// Config is the full application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	SRS     SRSConfig     `yaml:"srs"`
	Decks   DeckConfig    `yaml:"decks"`
}

type StorageConfig struct {
	Path string `yaml:"path" env:"LECTERN_STORAGE_PATH" env-default:"lectern.db"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" env:"LECTERN_LOG_LEVEL" env-default:"info"`
	Encoding string `yaml:"encoding" env:"LECTERN_LOG_ENCODING" env-default:"console"`
}

// SRSConfig tunes the scheduler. Steps are comma-separated Go
// durations, e.g. "1m,10m".
type SRSConfig struct {
	DesiredRetention float64 `yaml:"desired_retention" env:"LECTERN_SRS_RETENTION" env-default:"0.9"`
	MaxIntervalDays  int     `yaml:"max_interval_days" env:"LECTERN_SRS_MAX_INTERVAL_DAYS" env-default:"365"`
	EnableFuzz       bool    `yaml:"enable_fuzz" env:"LECTERN_SRS_ENABLE_FUZZ" env-default:"true"`
	LearningSteps    string  `yaml:"learning_steps" env:"LECTERN_SRS_LEARNING_STEPS" env-default:"1m,10m"`
	RelearningSteps  string  `yaml:"relearning_steps" env:"LECTERN_SRS_RELEARNING_STEPS" env-default:"10m"`
	Timezone         string  `yaml:"timezone" env:"LECTERN_SRS_TIMEZONE" env-default:"Local"`
}

// DeckConfig supplies the caps used when create_deck omits them.
type DeckConfig struct {
	DefaultDailyNew    int `yaml:"default_daily_new" env:"LECTERN_DECK_DAILY_NEW" env-default:"20"`
	DefaultDailyReview int `yaml:"default_daily_review" env:"LECTERN_DECK_DAILY_REVIEW" env-default:"200"`
}

// Load reads the config file at path, or at $CONFIG_PATH when path is
// empty. A missing file is not an error; defaults and environment
// overrides still apply.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and parseability of every field that feeds the
// scheduler or the day boundary.
func (c Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.SRS.DesiredRetention <= 0 || c.SRS.DesiredRetention >= 1 {
		return fmt.Errorf("srs.desired_retention must be in (0, 1), got %v", c.SRS.DesiredRetention)
	}
	if c.SRS.MaxIntervalDays < 1 {
		return fmt.Errorf("srs.max_interval_days must be at least 1, got %d", c.SRS.MaxIntervalDays)
	}
	if _, err := parseSteps(c.SRS.LearningSteps); err != nil {
		return fmt.Errorf("srs.learning_steps: %w", err)
	}
	if _, err := parseSteps(c.SRS.RelearningSteps); err != nil {
		return fmt.Errorf("srs.relearning_steps: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Decks.DefaultDailyNew < 0 || c.Decks.DefaultDailyReview < 0 {
		return fmt.Errorf("decks daily defaults must not be negative")
	}
	return nil
}

// SchedulerParameters builds fsrs.Parameters from the SRS section.
// Call Validate first; parse errors here mean an unvalidated config.
func (c Config) SchedulerParameters() (fsrs.Parameters, error) {
	learning, err := parseSteps(c.SRS.LearningSteps)
	if err != nil {
		return fsrs.Parameters{}, fmt.Errorf("srs.learning_steps: %w", err)
	}
	relearning, err := parseSteps(c.SRS.RelearningSteps)
	if err != nil {
		return fsrs.Parameters{}, fmt.Errorf("srs.relearning_steps: %w", err)
	}

	p := fsrs.DefaultParameters()
	p.DesiredRetention = c.SRS.DesiredRetention
	p.MaxIntervalDays = c.SRS.MaxIntervalDays
	p.EnableFuzz = c.SRS.EnableFuzz
	p.LearningSteps = learning
	p.RelearningSteps = relearning
	return p, p.Validate()
}

// Location resolves the configured timezone. "Local" and "" mean the
// machine's local zone.
func (c Config) Location() (*time.Location, error) {
	name := c.SRS.Timezone
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("srs.timezone: unknown timezone %q", name)
	}
	return loc, nil
}

func parseSteps(raw string) ([]time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("at least one step is required")
	}
	parts := strings.Split(raw, ",")
	steps := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid step %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("step %q must be positive", part)
		}
		steps = append(steps, d)
	}
	return steps, nil
}
