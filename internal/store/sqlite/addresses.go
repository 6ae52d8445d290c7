package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

func (s *Store) GetAddress(ctx context.Context, address string) (a model.Address, ok bool, err error) {
	defer s.observe("get_address", &err, time.Now())
	return getAddress(ctx, s.db, address)
}

func (u *unit) GetAddress(ctx context.Context, address string) (model.Address, bool, error) {
	return getAddress(ctx, u.tx, address)
}

func (u *unit) UpsertAddress(ctx context.Context, a model.Address) error {
	const query = `
INSERT INTO addresses (address, balance, total_received, total_sent, utxo_count, first_seen_height, last_activity_height)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (address) DO UPDATE SET
    balance = excluded.balance,
    total_received = excluded.total_received,
    total_sent = excluded.total_sent,
    utxo_count = excluded.utxo_count,
    last_activity_height = excluded.last_activity_height`

	_, err := u.tx.ExecContext(ctx, query,
		a.Address, int64(a.Balance), int64(a.TotalReceived), int64(a.TotalSent),
		int64(a.UTXOCount), int64(a.FirstSeenHeight), int64(a.LastActivityHeight))
	if err != nil {
		return fmt.Errorf("upsert address %s: %w", a.Address, err)
	}
	return nil
}

func getAddress(ctx context.Context, q querier, address string) (model.Address, bool, error) {
	const query = `
SELECT address, balance, total_received, total_sent, utxo_count, first_seen_height, last_activity_height
FROM addresses
WHERE address = ?`

	var (
		a         model.Address
		balance   int64
		received  int64
		sent      int64
		utxos     int64
		firstSeen int64
		lastSeen  int64
	)
	err := q.QueryRowContext(ctx, query, address).Scan(
		&a.Address, &balance, &received, &sent, &utxos, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Address{}, false, nil
	}
	if err != nil {
		return model.Address{}, false, fmt.Errorf("scan address: %w", err)
	}
	a.Balance = uint64(balance)
	a.TotalReceived = uint64(received)
	a.TotalSent = uint64(sent)
	a.UTXOCount = uint64(utxos)
	a.FirstSeenHeight = uint64(firstSeen)
	a.LastActivityHeight = uint64(lastSeen)
	return a, true, nil
}
