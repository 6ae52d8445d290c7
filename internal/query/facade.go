// Package query exposes read-only access to committed index state. It
// never blocks on synchronization: reads go straight to the entity
// store's committed side.
package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/chain"
	"github.com/chainfold/utxoindex-backend/internal/model"
	"github.com/chainfold/utxoindex-backend/internal/store"
)

// ErrNotFound reports a missing entity to transport layers.
var ErrNotFound = errors.New("query: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Facade answers entity lookups from committed state. An unknown address
// is not an error: it reports a zero balance, since every address has a
// well-defined (empty) history.
type Facade struct {
	reader store.Reader
	source chain.Source
	logger *zap.Logger
}

// NewFacade builds a query facade. source is used only to compute sync
// lag for stats; it may be nil in read-only deployments.
func NewFacade(reader store.Reader, source chain.Source, logger *zap.Logger) (*Facade, error) {
	if reader == nil {
		return nil, errors.New("store reader is required")
	}
	return &Facade{
		reader: reader,
		source: source,
		logger: logger.Named("query"),
	}, nil
}

// GetAddress returns balance state for an address. Unknown addresses
// yield a zero-valued record rather than an error.
func (f *Facade) GetAddress(ctx context.Context, address string) (model.Address, error) {
	a, ok, err := f.reader.GetAddress(ctx, address)
	if err != nil {
		return model.Address{}, fmt.Errorf("get address %s: %w", address, err)
	}
	if !ok {
		return model.Address{Address: address}, nil
	}
	return a, nil
}

// GetAddressUTXOs returns the unspent outputs owned by an address,
// ordered by creation height. Unknown addresses yield an empty set.
func (f *Facade) GetAddressUTXOs(ctx context.Context, address string) ([]model.Output, error) {
	outs, err := f.reader.GetAddressUTXOs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get address utxos %s: %w", address, err)
	}
	return outs, nil
}

// GetTransaction returns an indexed transaction by id.
func (f *Facade) GetTransaction(ctx context.Context, txid string) (model.Transaction, error) {
	t, ok, err := f.reader.GetTransaction(ctx, txid)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("get transaction %s: %w", txid, err)
	}
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txid, ErrNotFound)
	}
	return t, nil
}

// GetBlock returns an indexed block by height or hash. A string of
// decimal digits is treated as a height, anything else as a hash.
func (f *Facade) GetBlock(ctx context.Context, heightOrHash string) (model.Block, error) {
	var (
		b   model.Block
		ok  bool
		err error
	)
	if height, parseErr := strconv.ParseUint(heightOrHash, 10, 64); parseErr == nil {
		b, ok, err = f.reader.GetBlockByHeight(ctx, height)
	} else {
		b, ok, err = f.reader.GetBlockByHash(ctx, heightOrHash)
	}
	if err != nil {
		return model.Block{}, fmt.Errorf("get block %s: %w", heightOrHash, err)
	}
	if !ok {
		return model.Block{}, fmt.Errorf("block %s: %w", heightOrHash, ErrNotFound)
	}
	return b, nil
}

// GetStats returns aggregate index counters. Tip height and sync lag are
// best effort: a node outage degrades them to zero instead of failing
// the whole request.
func (f *Facade) GetStats(ctx context.Context) (model.Stats, error) {
	st, err := f.reader.Stats(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("stats: %w", err)
	}
	if f.source != nil {
		tip, err := f.source.GetTip(ctx)
		if err != nil {
			f.logger.Warn("tip unavailable for stats", zap.Error(err))
		} else {
			st.TipHeight = tip.Height
			if tip.Height > st.CursorHeight {
				st.SyncLag = tip.Height - st.CursorHeight
			}
		}
	}
	return st, nil
}
