//go:build sqlite

package model

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// InitDatabase opens the pure-Go SQLite connection used for tests and
// small single-process deployments.
func InitDatabase(cfg *Config) (*Store, error) {
	dsn := strings.TrimPrefix(cfg.DatabaseURL, "sqlite://")
	fmt.Println("Use server sqlite and database", dsn)

	db, err := gorm.Open(sqlite.Open(dsn), gormLoggerFor(cfg))
	if err != nil {
		return nil, err
	}
	return &Store{db: db, Config: cfg}, nil
}
