package model

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM database connection and holds the runtime configuration.
type Store struct {
	db     *gorm.DB
	Config *Config
}

// NewStore wraps an already-open GORM connection. Used by InitDatabase's
// build-tag variants and by tests that open an in-memory database
// directly rather than going through Config.DatabaseURL.
func NewStore(db *gorm.DB, cfg *Config) *Store {
	return &Store{db: db, Config: cfg}
}

// AutoMigrateForTesting creates the five relations on an already-open
// connection. Production deployments use the golang-migrate SQL files
// under migrations/; tests that don't want a file-driver dependency call
// this instead.
func AutoMigrateForTesting(db *gorm.DB) error {
	return db.AutoMigrate(&Bill{}, &BillItem{}, &Invoice{}, &InvoiceItem{}, &MatchResult{})
}

// gormLoggerFor builds a GORM logger honouring the configured slow-query
// threshold (spec: "a slow-query threshold of 5s SHOULD be enabled").
func gormLoggerFor(cfg *Config) *gorm.Config {
	level := logger.Warn
	if cfg.Mode == "development" {
		level = logger.Info
	}
	threshold := time.Duration(cfg.SlowQueryThresholdMS) * time.Millisecond
	if threshold <= 0 {
		threshold = 5 * time.Second
	}
	l := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             threshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
	return &gorm.Config{Logger: l}
}
