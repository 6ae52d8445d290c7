package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/chain"
	"github.com/chainfold/utxoindex-backend/internal/model"
	"go.uber.org/zap"
)

// recoverReorg handles a chain reorganization detected through a parent
// linkage mismatch: it finds the common ancestor, rolls back every
// abandoned block in one atomic unit and then processes the replacement
// branch through the regular per-block path.
func (c *Coordinator) recoverReorg(ctx context.Context, n chain.BlockHeader) error {
	resumeTo := c.State()
	if resumeTo == StateRecoveringReorg || resumeTo == StateFaulted {
		resumeTo = StateLive
	}
	c.setState(StateRecoveringReorg)

	ev, removed, added, err := c.resolveReorg(ctx, n)
	if err != nil {
		return err
	}

	c.logger.Warn("chain reorganization detected",
		zap.Uint64("ancestor_height", ev.AncestorHeight),
		zap.String("ancestor_hash", ev.AncestorHash),
		zap.Int("removed", len(ev.Removed)),
		zap.Int("added", len(ev.Added)))

	if err := c.rollback(ctx, ev, removed); err != nil {
		return err
	}
	c.metrics.ObserveReorg(len(ev.Removed), len(ev.Added))

	for _, b := range added {
		if err := c.commitBlock(ctx, b); err != nil {
			// A mismatch here means the chain moved again mid-recovery;
			// it surfaces as transient and the caller retries from the
			// new cursor.
			return err
		}
	}

	c.logger.Info("chain reorganization resolved",
		zap.Int("depth", ev.Depth()),
		zap.Uint64("new_height", ev.AncestorHeight+uint64(len(ev.Added))))
	c.setState(resumeTo)
	return nil
}

// resolveReorg walks the replacement branch backwards from the notified
// header until it meets a locally stored block. The walk is bounded by
// the reorg-protection window; a deeper divergence is not recoverable
// because spent outputs outside the window may already be pruned.
func (c *Coordinator) resolveReorg(ctx context.Context, n chain.BlockHeader) (model.ReorgEvent, []model.Block, []*chain.Block, error) {
	var ev model.ReorgEvent

	cursor, found, err := c.store.GetCursor(ctx)
	if err != nil {
		return ev, nil, nil, fmt.Errorf("get cursor: %w", err)
	}
	if !found {
		return ev, nil, nil, integrityErrorf("reorg signaled at height %d with no committed blocks", n.Height)
	}

	// Added blocks are collected highest first while walking back and
	// reversed before processing.
	var branch []*chain.Block
	hash := n.Hash
	for {
		if uint64(len(branch)) > c.cfg.ReorgProtectionBlocks {
			return ev, nil, nil, integrityErrorf(
				"reorg deeper than protection window of %d blocks (cursor %d, notified %d)",
				c.cfg.ReorgProtectionBlocks, cursor.Height, n.Height)
		}
		b, err := c.source.GetBlockByHash(ctx, hash)
		if err != nil {
			return ev, nil, nil, fmt.Errorf("fetch branch block %s: %w", hash, err)
		}
		branch = append(branch, b)

		h := b.Header.Height
		if h == 0 {
			return ev, nil, nil, integrityErrorf("reorg walk reached genesis without a common ancestor")
		}
		local, ok, err := c.store.GetBlockByHeight(ctx, h-1)
		if err != nil {
			return ev, nil, nil, fmt.Errorf("get local block %d: %w", h-1, err)
		}
		if ok && local.Hash == b.Header.PrevHash {
			ev.AncestorHeight = local.Height
			ev.AncestorHash = local.Hash
			break
		}
		hash = b.Header.PrevHash
	}

	if cursor.Height > ev.AncestorHeight &&
		cursor.Height-ev.AncestorHeight > c.cfg.ReorgProtectionBlocks {
		return ev, nil, nil, integrityErrorf(
			"reorg rollback of %d blocks exceeds protection window of %d",
			cursor.Height-ev.AncestorHeight, c.cfg.ReorgProtectionBlocks)
	}

	// Abandoned local blocks, highest first, so debits reverse before the
	// credits that funded them.
	var removed []model.Block
	for h := cursor.Height; h > ev.AncestorHeight; h-- {
		local, ok, err := c.store.GetBlockByHeight(ctx, h)
		if err != nil {
			return ev, nil, nil, fmt.Errorf("get local block %d: %w", h, err)
		}
		if !ok {
			return ev, nil, nil, integrityErrorf("committed block at height %d missing during rollback", h)
		}
		removed = append(removed, local)
		ev.Removed = append(ev.Removed, local.Hash)
	}

	// Reverse the branch into ascending order for processing.
	added := make([]*chain.Block, 0, len(branch))
	for i := len(branch) - 1; i >= 0; i-- {
		added = append(added, branch[i])
		ev.Added = append(ev.Added, branch[i].Header.Hash)
	}
	return ev, removed, added, nil
}

// rollback reverses every abandoned block inside one atomic unit and
// moves the cursor to the common ancestor. Either the entire branch is
// unwound or none of it is; a crash mid-rollback resumes from the
// pre-reorg cursor and re-enters recovery cleanly.
func (c *Coordinator) rollback(ctx context.Context, ev model.ReorgEvent, removed []model.Block) error {
	unit, err := c.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rollback unit: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := unit.Rollback(); rbErr != nil {
				c.logger.Warn("rollback unit abort failed", zap.Error(rbErr))
			}
		}
	}()

	ledger := NewLedger(unit)
	for _, b := range removed {
		// Spends reverse first: consumed outputs come back as unspent and
		// the spending addresses regain their balance.
		spent, err := unit.OutputsSpentAtHeight(ctx, b.Height)
		if err != nil {
			return fmt.Errorf("outputs spent at %d: %w", b.Height, err)
		}
		for _, o := range spent {
			if err := unit.UnspendOutput(ctx, o.TxID, o.Index); err != nil {
				return fmt.Errorf("unspend output %s:%d: %w", o.TxID, o.Index, err)
			}
			if err := ledger.RevertDebit(ctx, o.Address, o.Value, b.Height, o.Outpoint()); err != nil {
				return err
			}
		}

		created, err := unit.OutputsCreatedAtHeight(ctx, b.Height)
		if err != nil {
			return fmt.Errorf("outputs created at %d: %w", b.Height, err)
		}
		for _, o := range created {
			if err := ledger.RevertCredit(ctx, o.Address, o.Value, b.Height, o.Outpoint()); err != nil {
				return err
			}
			if err := unit.DeleteOutput(ctx, o.TxID, o.Index); err != nil {
				return fmt.Errorf("delete output %s:%d: %w", o.TxID, o.Index, err)
			}
		}

		if err := unit.DeleteTransactionsAtHeight(ctx, b.Height); err != nil {
			return fmt.Errorf("delete transactions at %d: %w", b.Height, err)
		}
		if err := unit.DeleteBlock(ctx, b.Hash); err != nil {
			return fmt.Errorf("delete block %s: %w", b.Hash, err)
		}
	}

	if err := ledger.Flush(ctx); err != nil {
		return fmt.Errorf("flush rollback ledger: %w", err)
	}
	cursor := model.SyncCursor{
		Height:    ev.AncestorHeight,
		Hash:      ev.AncestorHash,
		State:     string(StateRecoveringReorg),
		UpdatedAt: time.Now().UTC(),
	}
	if err := unit.SetCursor(ctx, cursor); err != nil {
		return fmt.Errorf("set cursor to ancestor %d: %w", ev.AncestorHeight, err)
	}
	if err := unit.Commit(); err != nil {
		return fmt.Errorf("commit rollback: %w", err)
	}
	committed = true
	return nil
}
