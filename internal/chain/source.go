// Package chain defines the contract the indexing core requires from a
// chain-node adapter. Implementations live elsewhere (internal/bitcoin);
// the core never inspects node-specific payloads.
package chain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports that a requested block or transaction genuinely does
// not exist at the node. It is non-retryable; every other adapter error is
// treated as transient and retried.
var ErrNotFound = errors.New("chain: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFoundError wraps ErrNotFound with the entity that was requested.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Source supplies blocks, transactions and chain-tip notifications.
type Source interface {
	// GetTip returns the node's current best block.
	GetTip(ctx context.Context) (Tip, error)
	// GetBlockByHeight returns the block at the given height on the node's
	// active chain, with fully resolved transactions.
	GetBlockByHeight(ctx context.Context, height uint64) (*Block, error)
	// GetBlockByHash returns the block with the given hash, which may be
	// on a side chain during a reorg.
	GetBlockByHash(ctx context.Context, hash string) (*Block, error)
	// GetTransaction returns a single transaction with resolved outputs.
	GetTransaction(ctx context.Context, txid string) (*Tx, error)
	// SubscribeBlocks returns a channel of new-block header notifications.
	// The sequence is lazy, infinite and restartable; reconnects are the
	// adapter's responsibility. The channel closes when ctx is done.
	SubscribeBlocks(ctx context.Context) (<-chan BlockHeader, error)
}
