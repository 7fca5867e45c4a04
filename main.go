package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/qinqiang2000/redflush-matcher/controller"
	"github.com/qinqiang2000/redflush-matcher/model"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // pure-Go, modernc.org/sqlite-backed
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// runMigrations applies all pending migrations. In development it runs
// automatically; in production only when explicitly requested.
func runMigrations(cfg *model.Config) {
	src := "file://" + filepath.ToSlash(migrationsDir())
	dsn := migrateDSN(cfg)

	m, err := migrate.New(src, dsn)
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	for {
		v, dirty, verr := m.Version()
		if verr == migrate.ErrNilVersion {
			v = 0
			dirty = false
		} else if verr != nil {
			log.Fatalf("read migration version failed: %v", verr)
		}
		log.Printf("applying next migration (current version=%d, dirty=%v)", v, dirty)

		err := m.Steps(1)
		if err == migrate.ErrNoChange {
			log.Println("migrations applied")
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			log.Println("no further migrations - done")
			return
		}
		if err != nil {
			log.Fatalf("migration step starting from version %d failed: %v", v, err)
		}
	}
}

func main() {
	var migrateOnly bool
	flag.BoolVar(&migrateOnly, "migrate", false, "run database migrations and exit")
	flag.Parse()

	cfg, err := model.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Mode == "development" && !migrateOnly {
		runMigrations(cfg)
	} else if migrateOnly {
		runMigrations(cfg)
		return
	}

	s, err := model.InitDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := controller.NewController(s); err != nil {
		log.Fatal(err)
	}
}
