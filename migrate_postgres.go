//go:build postgres

package main

import (
	"github.com/qinqiang2000/redflush-matcher/model"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

func migrationsDir() string { return "migrations/postgres" }

func migrateDSN(cfg *model.Config) string { return cfg.DatabaseURL }
