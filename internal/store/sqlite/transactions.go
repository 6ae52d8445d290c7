package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

func (s *Store) GetTransaction(ctx context.Context, txid string) (t model.Transaction, ok bool, err error) {
	defer s.observe("get_transaction", &err, time.Now())
	return getTransaction(ctx, s.db, txid)
}

func (u *unit) UpsertTransaction(ctx context.Context, t model.Transaction) error {
	const query = `
INSERT INTO transactions (txid, block_hash, block_height, timestamp, fee, is_coinbase, input_count, output_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (txid) DO UPDATE SET
    block_hash = excluded.block_hash,
    block_height = excluded.block_height,
    timestamp = excluded.timestamp,
    fee = excluded.fee,
    is_coinbase = excluded.is_coinbase,
    input_count = excluded.input_count,
    output_count = excluded.output_count`

	_, err := u.tx.ExecContext(ctx, query,
		t.TxID, t.BlockHash, int64(t.BlockHeight), t.Timestamp.Unix(),
		int64(t.Fee), boolToInt(t.IsCoinbase), int64(t.InputCount), int64(t.OutputCount))
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.TxID, err)
	}
	return nil
}

func (u *unit) LinkTransaction(ctx context.Context, txid, blockHash string, height uint64) error {
	const query = `
UPDATE transactions
SET block_hash = ?, block_height = ?
WHERE txid = ?`

	if _, err := u.tx.ExecContext(ctx, query, blockHash, int64(height), txid); err != nil {
		return fmt.Errorf("link transaction %s: %w", txid, err)
	}
	return nil
}

func (u *unit) GetTransaction(ctx context.Context, txid string) (model.Transaction, bool, error) {
	return getTransaction(ctx, u.tx, txid)
}

func (u *unit) UpsertInput(ctx context.Context, in model.Input) error {
	const query = `
INSERT INTO inputs (txid, idx, prev_txid, prev_idx, is_coinbase, block_height)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (txid, idx) DO NOTHING`

	_, err := u.tx.ExecContext(ctx, query,
		in.TxID, int64(in.Index), in.PrevTxID, int64(in.PrevIndex),
		boolToInt(in.IsCoinbase), int64(in.BlockHeight))
	if err != nil {
		return fmt.Errorf("upsert input %s:%d: %w", in.TxID, in.Index, err)
	}
	return nil
}

func (u *unit) DeleteTransactionsAtHeight(ctx context.Context, height uint64) error {
	const deleteInputs = `DELETE FROM inputs WHERE block_height = ?`
	const deleteTxs = `DELETE FROM transactions WHERE block_height = ?`

	if _, err := u.tx.ExecContext(ctx, deleteInputs, int64(height)); err != nil {
		return fmt.Errorf("delete inputs at height %d: %w", height, err)
	}
	if _, err := u.tx.ExecContext(ctx, deleteTxs, int64(height)); err != nil {
		return fmt.Errorf("delete transactions at height %d: %w", height, err)
	}
	return nil
}

func getTransaction(ctx context.Context, q querier, txid string) (model.Transaction, bool, error) {
	const query = `
SELECT txid, block_hash, block_height, timestamp, fee, is_coinbase, input_count, output_count
FROM transactions
WHERE txid = ?`

	var (
		t          model.Transaction
		height     int64
		timestamp  int64
		fee        int64
		isCoinbase int64
		inCount    int64
		outCount   int64
	)
	err := q.QueryRowContext(ctx, query, txid).Scan(
		&t.TxID, &t.BlockHash, &height, &timestamp, &fee, &isCoinbase, &inCount, &outCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, false, nil
	}
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("scan transaction: %w", err)
	}
	t.BlockHeight = uint64(height)
	t.Timestamp = time.Unix(timestamp, 0).UTC()
	t.Fee = uint64(fee)
	t.IsCoinbase = isCoinbase != 0
	t.InputCount = uint32(inCount)
	t.OutputCount = uint32(outCount)
	return t, true, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
