package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/model"
)

func (s *Store) GetCursor(ctx context.Context) (c model.SyncCursor, ok bool, err error) {
	defer s.observe("get_cursor", &err, time.Now())
	return getCursor(ctx, s.db)
}

func (u *unit) SetCursor(ctx context.Context, c model.SyncCursor) error {
	const query = `
INSERT INTO sync_cursor (id, height, hash, state, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    height = excluded.height,
    hash = excluded.hash,
    state = excluded.state,
    updated_at = excluded.updated_at`

	_, err := u.tx.ExecContext(ctx, query,
		int64(c.Height), c.Hash, c.State, c.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("set sync cursor: %w", err)
	}
	return nil
}

func getCursor(ctx context.Context, q querier) (model.SyncCursor, bool, error) {
	const query = `
SELECT height, hash, state, updated_at
FROM sync_cursor
WHERE id = 1`

	var (
		c         model.SyncCursor
		height    int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, query).Scan(&height, &c.Hash, &c.State, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncCursor{}, false, nil
	}
	if err != nil {
		return model.SyncCursor{}, false, fmt.Errorf("scan sync cursor: %w", err)
	}
	c.Height = uint64(height)
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return c, true, nil
}
