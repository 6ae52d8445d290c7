package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

func (s *Store) GetBlockByHeight(ctx context.Context, height uint64) (b model.Block, ok bool, err error) {
	defer s.observe("get_block_by_height", &err, time.Now())
	return getBlockByHeight(ctx, s.db, height)
}

func (s *Store) GetBlockByHash(ctx context.Context, hash string) (b model.Block, ok bool, err error) {
	defer s.observe("get_block_by_hash", &err, time.Now())

	const query = `
SELECT height, hash, prev_hash, timestamp, bits, difficulty, tx_count
FROM blocks
WHERE hash = ?`

	return scanBlock(s.db.QueryRowContext(ctx, query, hash))
}

func (u *unit) UpsertBlock(ctx context.Context, b model.Block) error {
	const query = `
INSERT INTO blocks (height, hash, prev_hash, timestamp, bits, difficulty, tx_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (height) DO UPDATE SET
    hash = excluded.hash,
    prev_hash = excluded.prev_hash,
    timestamp = excluded.timestamp,
    bits = excluded.bits,
    difficulty = excluded.difficulty,
    tx_count = excluded.tx_count`

	_, err := u.tx.ExecContext(ctx, query,
		int64(b.Height), b.Hash, b.PrevHash, b.Timestamp.Unix(),
		int64(b.Bits), b.Difficulty, int64(b.TxCount))
	if err != nil {
		return fmt.Errorf("upsert block %d: %w", b.Height, err)
	}
	return nil
}

func (u *unit) GetBlockByHeight(ctx context.Context, height uint64) (model.Block, bool, error) {
	return getBlockByHeight(ctx, u.tx, height)
}

func (u *unit) DeleteBlock(ctx context.Context, hash string) error {
	const query = `DELETE FROM blocks WHERE hash = ?`

	if _, err := u.tx.ExecContext(ctx, query, hash); err != nil {
		return fmt.Errorf("delete block %s: %w", hash, err)
	}
	return nil
}

func getBlockByHeight(ctx context.Context, q querier, height uint64) (model.Block, bool, error) {
	const query = `
SELECT height, hash, prev_hash, timestamp, bits, difficulty, tx_count
FROM blocks
WHERE height = ?`

	return scanBlock(q.QueryRowContext(ctx, query, int64(height)))
}

func scanBlock(row *sql.Row) (model.Block, bool, error) {
	var (
		b         model.Block
		height    int64
		timestamp int64
		bits      int64
		txCount   int64
	)
	err := row.Scan(&height, &b.Hash, &b.PrevHash, &timestamp, &bits, &b.Difficulty, &txCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Block{}, false, nil
	}
	if err != nil {
		return model.Block{}, false, fmt.Errorf("scan block: %w", err)
	}
	b.Height = uint64(height)
	b.Timestamp = time.Unix(timestamp, 0).UTC()
	b.Bits = uint32(bits)
	b.TxCount = uint32(txCount)
	return b, true, nil
}
