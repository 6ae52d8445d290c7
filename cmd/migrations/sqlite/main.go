package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/mattn/go-sqlite3"
)

type config struct {
	DBPath        string `long:"db-path" env:"MIGRATIONS_DB_PATH" default:"utxoindex.db" description:"Path to the sqlite database file"`
	MigrationsDir string `long:"migrations-dir" env:"MIGRATIONS_DIR" default:"migrations/sqlite" description:"Path to sqlite migration files"`
	Down          bool   `long:"down" description:"Roll back one migration instead of applying all pending ones"`
}

func main() {
	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	if err := runMigrations(cfg); err != nil {
		log.Fatalf("migration run failed: %v", err)
	}
}

func runMigrations(cfg config) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("migrator close: source=%v database=%v", srcErr, dbErr)
		}
	}()

	if cfg.Down {
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("roll back one migration: %w", err)
		}
		log.Println("rolled back one migration")
		return nil
	}

	switch err := m.Up(); {
	case err == nil:
		log.Println("migrations applied")
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("schema already up to date")
	default:
		return err
	}
	return nil
}

func newMigrator(cfg config) (*migrate.Migrate, error) {
	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("stat migrations dir %s: %w", dir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	return migrate.New(
		fmt.Sprintf("file://%s", filepath.ToSlash(dir)),
		fmt.Sprintf("sqlite3://%s", filepath.ToSlash(cfg.DBPath)),
	)
}
