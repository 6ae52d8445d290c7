package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

// Stats aggregates committed index counters. TipHeight and SyncLag are
// filled in by the query facade from the chain source.
func (s *Store) Stats(ctx context.Context) (st model.Stats, err error) {
	defer s.observe("stats", &err, time.Now())

	const query = `
SELECT
    (SELECT COUNT(*) FROM blocks),
    (SELECT COUNT(*) FROM transactions),
    (SELECT COUNT(*) FROM addresses),
    (SELECT COUNT(*) FROM outputs WHERE spent = 0),
    (SELECT COALESCE(MAX(height), 0) FROM sync_cursor)`

	var blocks, txs, addrs, utxos, cursor int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&blocks, &txs, &addrs, &utxos, &cursor); err != nil {
		return model.Stats{}, fmt.Errorf("scan stats: %w", err)
	}
	return model.Stats{
		Blocks:       uint64(blocks),
		Transactions: uint64(txs),
		Addresses:    uint64(addrs),
		UTXOs:        uint64(utxos),
		CursorHeight: uint64(cursor),
	}, nil
}
