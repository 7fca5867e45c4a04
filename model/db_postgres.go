//go:build postgres

package model

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDatabase opens the production PostgreSQL connection pool.
func InitDatabase(cfg *Config) (*Store, error) {
	fmt.Println("Use server postgresql, dsn from DATABASE_URL")

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormLoggerFor(cfg))
	if err != nil {
		return nil, err
	}
	return &Store{db: db, Config: cfg}, nil
}
