//go:build sqlite

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qinqiang2000/redflush-matcher/model"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // pure-Go, modernc.org/sqlite-backed
)

func migrationsDir() string { return "migrations/sqlite3" }

func migrateDSN(cfg *model.Config) string {
	dbPath := strings.TrimPrefix(cfg.DatabaseURL, "sqlite://")
	if !strings.HasPrefix(dbPath, "/") {
		dbPath = "./" + dbPath
	}
	return fmt.Sprintf("sqlite://%s?_foreign_keys=on&_journal_mode=WAL", filepath.ToSlash(dbPath))
}
