package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

const outputColumns = `txid, idx, value, address, block_height, spent, spent_by_txid, spent_by_idx, spent_at_height`

func (s *Store) GetOutput(ctx context.Context, txid string, index uint32) (o model.Output, ok bool, err error) {
	defer s.observe("get_output", &err, time.Now())
	return getOutput(ctx, s.db, txid, index)
}

func (u *unit) UpsertOutput(ctx context.Context, out model.Output) error {
	const query = `
INSERT INTO outputs (txid, idx, value, address, block_height)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (txid, idx) DO NOTHING`

	_, err := u.tx.ExecContext(ctx, query,
		out.TxID, int64(out.Index), int64(out.Value), out.Address, int64(out.BlockHeight))
	if err != nil {
		return fmt.Errorf("upsert output %s:%d: %w", out.TxID, out.Index, err)
	}
	return nil
}

func (u *unit) MarkOutputSpent(ctx context.Context, txid string, index uint32, spentBy model.Outpoint, height uint64) error {
	const query = `
UPDATE outputs
SET spent = 1, spent_by_txid = ?, spent_by_idx = ?, spent_at_height = ?
WHERE txid = ? AND idx = ? AND spent = 0`

	res, err := u.tx.ExecContext(ctx, query,
		spentBy.TxID, int64(spentBy.Index), int64(height), txid, int64(index))
	if err != nil {
		return fmt.Errorf("mark output %s:%d spent: %w", txid, index, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark output %s:%d spent rows affected: %w", txid, index, err)
	}
	if affected == 0 {
		return fmt.Errorf("mark output %s:%d spent: no unspent row", txid, index)
	}
	return nil
}

func (u *unit) UnspendOutput(ctx context.Context, txid string, index uint32) error {
	const query = `
UPDATE outputs
SET spent = 0, spent_by_txid = '', spent_by_idx = 0, spent_at_height = 0
WHERE txid = ? AND idx = ?`

	if _, err := u.tx.ExecContext(ctx, query, txid, int64(index)); err != nil {
		return fmt.Errorf("unspend output %s:%d: %w", txid, index, err)
	}
	return nil
}

func (u *unit) GetOutput(ctx context.Context, txid string, index uint32) (model.Output, bool, error) {
	return getOutput(ctx, u.tx, txid, index)
}

func (u *unit) OutputsCreatedAtHeight(ctx context.Context, height uint64) ([]model.Output, error) {
	const query = `
SELECT ` + outputColumns + `
FROM outputs
WHERE block_height = ?
ORDER BY txid, idx`

	return queryOutputs(ctx, u.tx, query, int64(height))
}

func (u *unit) OutputsSpentAtHeight(ctx context.Context, height uint64) ([]model.Output, error) {
	const query = `
SELECT ` + outputColumns + `
FROM outputs
WHERE spent = 1 AND spent_at_height = ?
ORDER BY txid, idx`

	return queryOutputs(ctx, u.tx, query, int64(height))
}

func (u *unit) DeleteOutput(ctx context.Context, txid string, index uint32) error {
	const query = `DELETE FROM outputs WHERE txid = ? AND idx = ?`

	if _, err := u.tx.ExecContext(ctx, query, txid, int64(index)); err != nil {
		return fmt.Errorf("delete output %s:%d: %w", txid, index, err)
	}
	return nil
}

func (u *unit) PruneSpentOutputs(ctx context.Context, belowHeight uint64) (int64, error) {
	const query = `
DELETE FROM outputs
WHERE spent = 1 AND spent_at_height <= ?`

	res, err := u.tx.ExecContext(ctx, query, int64(belowHeight))
	if err != nil {
		return 0, fmt.Errorf("prune spent outputs below %d: %w", belowHeight, err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune spent outputs rows affected: %w", err)
	}
	return pruned, nil
}

func (s *Store) GetAddressUTXOs(ctx context.Context, address string) (outs []model.Output, err error) {
	defer s.observe("get_address_utxos", &err, time.Now())

	const query = `
SELECT ` + outputColumns + `
FROM outputs
WHERE address = ? AND spent = 0
ORDER BY block_height, txid, idx`

	return queryOutputs(ctx, s.db, query, address)
}

func getOutput(ctx context.Context, q querier, txid string, index uint32) (model.Output, bool, error) {
	const query = `
SELECT ` + outputColumns + `
FROM outputs
WHERE txid = ? AND idx = ?`

	o, err := scanOutput(q.QueryRowContext(ctx, query, txid, int64(index)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Output{}, false, nil
	}
	if err != nil {
		return model.Output{}, false, err
	}
	return o, true, nil
}

func queryOutputs(ctx context.Context, q querier, query string, args ...any) ([]model.Output, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var outs []model.Output
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		outs = append(outs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return outs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutput(row rowScanner) (model.Output, error) {
	var (
		o             model.Output
		index         int64
		value         int64
		height        int64
		spent         int64
		spentByIdx    int64
		spentAtHeight int64
	)
	err := row.Scan(&o.TxID, &index, &value, &o.Address, &height,
		&spent, &o.SpentByTxID, &spentByIdx, &spentAtHeight)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Output{}, err
		}
		return model.Output{}, fmt.Errorf("scan output: %w", err)
	}
	o.Index = uint32(index)
	o.Value = uint64(value)
	o.BlockHeight = uint64(height)
	o.Spent = spent != 0
	o.SpentByIndex = uint32(spentByIdx)
	o.SpentAtHeight = uint64(spentAtHeight)
	return o, nil
}
