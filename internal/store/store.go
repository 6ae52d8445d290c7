// Package store defines the transactional entity-store contract the
// indexing core writes through. The core performs all mutations inside a
// Unit supplied by the synchronization coordinator and never commits on
// its own; upserts are idempotent so that replaying a committed block is
// a no-op rather than an error.
package store

import (
	"context"
	"errors"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

// ErrNotFound reports a missing entity on the committed read side.
var ErrNotFound = errors.New("store: not found")

// Store provides transactional units of work plus a committed read side.
type Store interface {
	Reader
	// Begin opens a unit of work with an exclusive transactional handle.
	Begin(ctx context.Context) (Unit, error)
}

// Reader exposes committed state. It never observes partially applied
// blocks: mutations become visible only when their unit commits.
type Reader interface {
	GetCursor(ctx context.Context) (model.SyncCursor, bool, error)
	GetBlockByHeight(ctx context.Context, height uint64) (model.Block, bool, error)
	GetBlockByHash(ctx context.Context, hash string) (model.Block, bool, error)
	GetTransaction(ctx context.Context, txid string) (model.Transaction, bool, error)
	GetOutput(ctx context.Context, txid string, index uint32) (model.Output, bool, error)
	GetAddress(ctx context.Context, address string) (model.Address, bool, error)
	GetAddressUTXOs(ctx context.Context, address string) ([]model.Output, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Unit is one atomic unit of work. Either all mutations become visible on
// Commit or none do. Re-applying an identical upsert for an existing
// primary key is a no-op; this is the replay-safety contract the core
// depends on. Reads within the unit observe the unit's own writes.
type Unit interface {
	UpsertBlock(ctx context.Context, b model.Block) error
	UpsertTransaction(ctx context.Context, tx model.Transaction) error
	// LinkTransaction attaches an unlinked transaction to a block without
	// touching its other columns.
	LinkTransaction(ctx context.Context, txid, blockHash string, height uint64) error
	UpsertInput(ctx context.Context, in model.Input) error
	UpsertOutput(ctx context.Context, out model.Output) error
	// MarkOutputSpent tombstones an output as consumed by spentBy at the
	// given height. The row is retained for rollback until pruned.
	MarkOutputSpent(ctx context.Context, txid string, index uint32, spentBy model.Outpoint, height uint64) error
	// UnspendOutput reverses MarkOutputSpent during reorg rollback.
	UnspendOutput(ctx context.Context, txid string, index uint32) error

	GetBlockByHeight(ctx context.Context, height uint64) (model.Block, bool, error)
	GetTransaction(ctx context.Context, txid string) (model.Transaction, bool, error)
	GetOutput(ctx context.Context, txid string, index uint32) (model.Output, bool, error)
	GetAddress(ctx context.Context, address string) (model.Address, bool, error)
	UpsertAddress(ctx context.Context, a model.Address) error

	// OutputsCreatedAtHeight and OutputsSpentAtHeight drive reorg rollback.
	OutputsCreatedAtHeight(ctx context.Context, height uint64) ([]model.Output, error)
	OutputsSpentAtHeight(ctx context.Context, height uint64) ([]model.Output, error)
	DeleteOutput(ctx context.Context, txid string, index uint32) error
	DeleteTransactionsAtHeight(ctx context.Context, height uint64) error
	DeleteBlock(ctx context.Context, hash string) error

	// PruneSpentOutputs physically removes outputs spent at or below the
	// given height, i.e. outside the reorg-protection window.
	PruneSpentOutputs(ctx context.Context, belowHeight uint64) (int64, error)

	SetCursor(ctx context.Context, c model.SyncCursor) error

	Commit() error
	Rollback() error
}
