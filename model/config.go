package model

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration. The three fields the spec
// requires to be environment-driven (ServerHost, ServerPort, DatabaseURL)
// are always read from the environment; everything else is a tuning knob
// that may optionally be overridden by a TOML file (see LoadConfig).
type Config struct {
	Mode        string // "development" or "production"
	ServerHost  string
	ServerPort  int
	DatabaseURL string

	// Tuning knobs, overridable via the optional TOML overlay.
	LogDir               string
	ResultSink           string // "db" (default) or "csv"
	BatchSize            int    // B: invoice-id batch size for the two-phase fetch
	FanOutConcurrency    int    // K: concurrent batches fanned out per fetch
	SlowQueryThresholdMS int
	S3ArchiveBucket      string
	S3ArchiveRegion      string
	RedisURL             string
}

// tuningOverlay is the shape of the optional config file. Only tuning
// knobs may be overridden this way; SERVER_HOST/SERVER_PORT/DATABASE_URL
// stay environment-only per the external interface contract.
type tuningOverlay struct {
	LogDir               *string `toml:"logdir"`
	ResultSink           *string `toml:"result_sink"`
	BatchSize            *int    `toml:"batch_size"`
	FanOutConcurrency    *int    `toml:"fanout_concurrency"`
	SlowQueryThresholdMS *int    `toml:"slow_query_threshold_ms"`
	S3ArchiveBucket      *string `toml:"s3_archive_bucket"`
	S3ArchiveRegion      *string `toml:"s3_archive_region"`
	RedisURL             *string `toml:"redis_url"`
}

func (o tuningOverlay) applyTo(cfg *Config) {
	if o.LogDir != nil {
		cfg.LogDir = *o.LogDir
	}
	if o.ResultSink != nil {
		cfg.ResultSink = *o.ResultSink
	}
	if o.BatchSize != nil {
		cfg.BatchSize = *o.BatchSize
	}
	if o.FanOutConcurrency != nil {
		cfg.FanOutConcurrency = *o.FanOutConcurrency
	}
	if o.SlowQueryThresholdMS != nil {
		cfg.SlowQueryThresholdMS = *o.SlowQueryThresholdMS
	}
	if o.S3ArchiveBucket != nil {
		cfg.S3ArchiveBucket = *o.S3ArchiveBucket
	}
	if o.S3ArchiveRegion != nil {
		cfg.S3ArchiveRegion = *o.S3ArchiveRegion
	}
	if o.RedisURL != nil {
		cfg.RedisURL = *o.RedisURL
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// LoadConfig reads the mandatory settings from the environment and layers
// an optional TOML tuning file on top (CONFIG_FILE, default "config.toml").
// A missing overlay file is not an error; the defaults below are tuned for
// a single-process development run.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Mode:                 getEnv("APP_MODE", "development"),
		ServerHost:           getEnv("SERVER_HOST", "127.0.0.1"),
		ServerPort:           getEnvInt("SERVER_PORT", 8080),
		DatabaseURL:          getEnv("DATABASE_URL", "postgres://localhost/tax_redflush"),
		LogDir:               getEnv("MATCH_LOGDIR", "logs"),
		ResultSink:           getEnv("RESULT_SINK", "db"),
		BatchSize:            500,
		FanOutConcurrency:    10,
		SlowQueryThresholdMS: getEnvInt("DB_SLOW_QUERY_THRESHOLD_MS", 5000),
		S3ArchiveBucket:      os.Getenv("S3_ARCHIVE_BUCKET"),
		S3ArchiveRegion:      os.Getenv("S3_ARCHIVE_REGION"),
		RedisURL:             os.Getenv("REDIS_URL"),
	}

	path := getEnv("CONFIG_FILE", "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var overlay tuningOverlay
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlay.applyTo(cfg)
	return cfg, nil
}
