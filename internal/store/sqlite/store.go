// Package sqlite implements the entity store on SQLite. Each unit of
// work maps to one SQL transaction, upserts use INSERT ... ON CONFLICT
// so replays are no-ops, and a single-writer connection serializes
// commits the way SQLite expects.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/store"
)

// Metrics records store query observations.
type Metrics interface {
	Observe(op string, err error, started time.Time)
}

// Store is the SQLite-backed entity store.
type Store struct {
	db      *sql.DB
	metrics Metrics
	logger  *zap.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx so committed reads and
// in-unit reads share query code.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open opens the database at path, applies connection pragmas and returns
// the store. The schema must already be migrated.
func Open(path string, metrics Metrics, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if metrics == nil {
		return nil, errors.New("store metrics is required")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// between the coordinator's units and facade reads under WAL.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &Store{
		db:      db,
		metrics: metrics,
		logger:  logger.Named("sqlite"),
	}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens a unit of work backed by one SQL transaction.
func (s *Store) Begin(ctx context.Context) (store.Unit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &unit{tx: tx, metrics: s.metrics}, nil
}

func (s *Store) observe(op string, err *error, started time.Time) {
	s.metrics.Observe(op, *err, started)
}

// unit is one atomic unit of work over a *sql.Tx.
type unit struct {
	tx      *sql.Tx
	metrics Metrics
}

func (u *unit) Commit() error {
	started := time.Now()
	err := u.tx.Commit()
	u.metrics.Observe("commit", err, started)
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (u *unit) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
