package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainfold/utxoindex-backend/internal/chain"
	"github.com/chainfold/utxoindex-backend/internal/clock"
	"github.com/chainfold/utxoindex-backend/internal/model"
	"github.com/chainfold/utxoindex-backend/internal/store"
	"github.com/chainfold/utxoindex-backend/pkg/workerpool"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks_test.go -package=indexer github.com/chainfold/utxoindex-backend/internal/chain Source

// State identifies the coordinator's position in its lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateBatchSyncing    State = "batch_syncing"
	StateLive            State = "live"
	StateRecoveringReorg State = "recovering_reorg"
	// StateFaulted is terminal; it requires operator intervention.
	StateFaulted State = "faulted"
)

// errParentMismatch signals that a block's previous hash does not match
// the locally stored parent, i.e. the chain reorganized under us.
var errParentMismatch = errors.New("parent hash mismatch")

// Metrics records coordinator observations.
type Metrics interface {
	ObserveBlock(err error, height uint64, started time.Time)
	ObserveReorg(removed, added int)
	SetState(state string)
	SetSyncLag(lag uint64)
}

// Config carries the tunables the coordinator requires from its
// environment.
type Config struct {
	// ReorgProtectionBlocks bounds the common-ancestor search and the
	// retention window for spent outputs. Reorgs deeper than this are not
	// auto-recoverable by design.
	ReorgProtectionBlocks uint64
	// FetchWorkers bounds concurrent block prefetch from the adapter.
	FetchWorkers int
	// PrefetchChunk is how many blocks are prefetched ahead of the serial
	// commit point during batch sync.
	PrefetchChunk int
	// RetryPause is how long the coordinator pauses after a transient
	// failure before retrying the whole block.
	RetryPause time.Duration
	// PruneInterval is the number of committed live blocks between
	// retention pruning passes.
	PruneInterval uint64
}

func (c Config) withDefaults() Config {
	if c.ReorgProtectionBlocks == 0 {
		c.ReorgProtectionBlocks = defaultReorgProtectionBlocks
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = defaultFetchWorkers
	}
	if c.PrefetchChunk <= 0 {
		c.PrefetchChunk = defaultPrefetchChunk
	}
	if c.RetryPause <= 0 {
		c.RetryPause = defaultRetryPause
	}
	if c.PruneInterval == 0 {
		c.PruneInterval = defaultPruneInterval
	}
	return c
}

// Coordinator drives synchronization: batch catch-up, live processing,
// reorg recovery and retention pruning. It is the only writer of the sync
// cursor, and at most one synchronization path is active at any time;
// mutual exclusion comes from the state machine, not from locking shared
// memory, since all shared state lives in the entity store.
type Coordinator struct {
	source    chain.Source
	store     store.Store
	processor *Processor
	metrics   Metrics
	logger    *zap.Logger
	cfg       Config
	sleep     func(context.Context, time.Duration) error

	mu         sync.RWMutex
	state      State
	sincePrune uint64
}

// NewCoordinator builds a coordinator with the given collaborators.
func NewCoordinator(
	source chain.Source,
	st store.Store,
	metrics Metrics,
	cfg Config,
	logger *zap.Logger,
) (*Coordinator, error) {
	if source == nil {
		return nil, errors.New("chain source is required")
	}
	if st == nil {
		return nil, errors.New("entity store is required")
	}
	if metrics == nil {
		return nil, errors.New("coordinator metrics is required")
	}
	return &Coordinator{
		source:    source,
		store:     st,
		processor: NewProcessor(logger),
		metrics:   metrics,
		logger:    logger.Named("coordinator"),
		cfg:       cfg.withDefaults(),
		sleep:     clock.SleepWithContext,
		state:     StateIdle,
	}, nil
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Info("state transition", zap.String("from", string(prev)), zap.String("to", string(s)))
	}
	c.metrics.SetState(string(s))
}

// Run catches up to the chain tip and then follows new-block
// notifications until ctx is canceled or an integrity error faults the
// coordinator. Transient errors pause and retry; they never fault.
func (c *Coordinator) Run(ctx context.Context) error {
	c.setState(StateBatchSyncing)
	for {
		err := c.batchSync(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			c.setState(StateIdle)
			return ctx.Err()
		}
		if fatal := c.classify(err); fatal != nil {
			return fatal
		}
		c.logger.Warn("batch sync failed, backing off",
			zap.Error(err), zap.Duration("pause", c.cfg.RetryPause))
		if sleepErr := c.sleep(ctx, c.cfg.RetryPause); sleepErr != nil {
			c.setState(StateIdle)
			return sleepErr
		}
	}

	c.setState(StateLive)
	return c.live(ctx)
}

// classify turns integrity and not-found errors into a terminal fault;
// it returns nil for transient errors.
func (c *Coordinator) classify(err error) error {
	if IsIntegrity(err) {
		return c.fault(err)
	}
	if chain.IsNotFound(err) {
		return c.fault(fmt.Errorf("chain node is missing required history (pruned node?): %w", err))
	}
	return nil
}

func (c *Coordinator) fault(err error) error {
	c.setState(StateFaulted)
	c.logger.Error("coordinator faulted, operator intervention required", zap.Error(err))
	return fmt.Errorf("coordinator faulted: %w", err)
}

// batchSync processes heights (cursor+1 … tip), one store transaction per
// block: each block's mutations and the cursor advance commit atomically,
// so a restart resumes from the last committed cursor with no
// re-validation. Block data is prefetched concurrently in bounded chunks;
// commits are strictly sequential by height.
func (c *Coordinator) batchSync(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cursor, found, err := c.store.GetCursor(ctx)
		if err != nil {
			return fmt.Errorf("get cursor: %w", err)
		}
		tip, err := c.source.GetTip(ctx)
		if err != nil {
			return fmt.Errorf("get chain tip: %w", err)
		}

		var next uint64
		if found {
			if cursor.Height >= tip.Height {
				c.metrics.SetSyncLag(0)
				c.logger.Info("caught up with chain tip",
					zap.Uint64("height", cursor.Height), zap.String("hash", cursor.Hash))
				return nil
			}
			next = cursor.Height + 1
		}
		c.metrics.SetSyncLag(tip.Height - next + 1)

		c.logger.Info("batch syncing",
			zap.Uint64("from", next), zap.Uint64("to", tip.Height))

		for next <= tip.Height {
			end := next + uint64(c.cfg.PrefetchChunk) - 1
			if end > tip.Height {
				end = tip.Height
			}
			blocks, err := c.prefetch(ctx, next, end)
			if err != nil {
				return err
			}
			for _, b := range blocks {
				if err := c.commitBlock(ctx, b); err != nil {
					if errors.Is(err, errParentMismatch) {
						return c.recoverReorg(ctx, b.BlockHeaderOnly())
					}
					return err
				}
			}
			next = end + 1
			c.metrics.SetSyncLag(tip.Height - end)
		}
		// The tip may have advanced while we synced; loop until level.
	}
}

// prefetch fetches blocks [from, to] from the adapter with bounded
// concurrency and returns them in height order.
func (c *Coordinator) prefetch(ctx context.Context, from, to uint64) ([]*chain.Block, error) {
	heights := make([]uint64, 0, to-from+1)
	for h := from; h <= to; h++ {
		heights = append(heights, h)
	}
	results := make([]*chain.Block, len(heights))
	err := workerpool.Process(ctx, c.cfg.FetchWorkers, heights, func(ctx context.Context, h uint64) error {
		b, err := c.source.GetBlockByHeight(ctx, h)
		if err != nil {
			return fmt.Errorf("fetch block height %d: %w", h, err)
		}
		results[h-from] = b
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// commitBlock applies one block inside one atomic unit: parent-linkage
// check, Process, cursor advance, commit. A failure anywhere rolls the
// whole unit back; no partial block is ever visible.
func (c *Coordinator) commitBlock(ctx context.Context, b *chain.Block) error {
	started := time.Now()
	err := c.commitBlockOnce(ctx, b)
	c.metrics.ObserveBlock(err, b.Header.Height, started)
	if err != nil {
		return err
	}
	return c.maybePrune(ctx, b.Header.Height)
}

func (c *Coordinator) commitBlockOnce(ctx context.Context, b *chain.Block) error {
	hdr := b.Header
	if hdr.Height > 0 {
		parent, ok, err := c.store.GetBlockByHeight(ctx, hdr.Height-1)
		if err != nil {
			return fmt.Errorf("get parent of block %d: %w", hdr.Height, err)
		}
		if ok && parent.Hash != hdr.PrevHash {
			return fmt.Errorf("block %d prev %s, local parent %s: %w",
				hdr.Height, hdr.PrevHash, parent.Hash, errParentMismatch)
		}
	}

	unit, err := c.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit for block %d: %w", hdr.Height, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := unit.Rollback(); rbErr != nil {
				c.logger.Warn("rollback failed", zap.Uint64("height", hdr.Height), zap.Error(rbErr))
			}
		}
	}()

	processed, err := c.processor.Process(ctx, unit, b)
	if err != nil {
		return err
	}
	cursor := model.SyncCursor{
		Height:    hdr.Height,
		Hash:      hdr.Hash,
		State:     string(c.State()),
		UpdatedAt: time.Now().UTC(),
	}
	if err := unit.SetCursor(ctx, cursor); err != nil {
		return fmt.Errorf("set cursor at %d: %w", hdr.Height, err)
	}
	if err := unit.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", hdr.Height, err)
	}
	committed = true

	c.logger.Debug("committed block",
		zap.Uint64("height", processed.Height),
		zap.String("hash", processed.Hash),
		zap.Int("txs", processed.TxCount),
		zap.Uint64("fees", processed.TotalFees),
		zap.Int("outputs_created", processed.OutputsCreated),
		zap.Int("outputs_spent", processed.OutputsSpent))
	return nil
}

// live consumes new-block notifications. Matching parents process through
// the normal per-block path; mismatches enter reorg recovery; gaps catch
// up through batch sync.
func (c *Coordinator) live(ctx context.Context) error {
	for {
		notifications, err := c.source.SubscribeBlocks(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateIdle)
				return ctx.Err()
			}
			c.logger.Warn("subscribe failed, backing off", zap.Error(err))
			if sleepErr := c.sleep(ctx, c.cfg.RetryPause); sleepErr != nil {
				c.setState(StateIdle)
				return sleepErr
			}
			continue
		}

	consume:
		for {
			select {
			case <-ctx.Done():
				c.setState(StateIdle)
				return ctx.Err()
			case n, ok := <-notifications:
				if !ok {
					// Subscription dropped; the adapter reconnects on
					// resubscribe.
					break consume
				}
				if err := c.handleNotification(ctx, n); err != nil {
					if ctx.Err() != nil {
						c.setState(StateIdle)
						return ctx.Err()
					}
					if fatal := c.classify(err); fatal != nil {
						return fatal
					}
					c.logger.Warn("processing notification failed, backing off",
						zap.Uint64("height", n.Height), zap.Error(err),
						zap.Duration("pause", c.cfg.RetryPause))
					if sleepErr := c.sleep(ctx, c.cfg.RetryPause); sleepErr != nil {
						c.setState(StateIdle)
						return sleepErr
					}
				}
			}
		}
	}
}

func (c *Coordinator) handleNotification(ctx context.Context, n chain.BlockHeader) error {
	cursor, found, err := c.store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}
	if found && n.Height <= cursor.Height {
		local, ok, err := c.store.GetBlockByHeight(ctx, n.Height)
		if err != nil {
			return fmt.Errorf("get local block %d: %w", n.Height, err)
		}
		if ok && local.Hash == n.Hash {
			// Duplicate notification for an already committed block.
			c.logger.Debug("ignoring notification for committed block",
				zap.Uint64("height", n.Height), zap.String("hash", n.Hash))
			return nil
		}
		// A different hash at a committed height is a competing branch
		// replacing our tip, not a stale announcement.
		return c.recoverReorg(ctx, n)
	}
	if found && n.Height > cursor.Height+1 {
		return c.batchSync(ctx)
	}
	if found && n.PrevHash != cursor.Hash {
		return c.recoverReorg(ctx, n)
	}

	b, err := c.source.GetBlockByHash(ctx, n.Hash)
	if err != nil {
		return fmt.Errorf("fetch notified block %s: %w", n.Hash, err)
	}
	if err := c.commitBlock(ctx, b); err != nil {
		if errors.Is(err, errParentMismatch) {
			return c.recoverReorg(ctx, n)
		}
		return err
	}
	c.metrics.SetSyncLag(0)
	return nil
}

// maybePrune physically removes spent outputs that fell out of the
// reorg-protection window. Retention is what makes rollback possible, so
// pruning never touches the most recent ReorgProtectionBlocks heights.
func (c *Coordinator) maybePrune(ctx context.Context, height uint64) error {
	if c.State() != StateLive {
		return nil
	}
	c.sincePrune++
	if c.sincePrune < c.cfg.PruneInterval {
		return nil
	}
	c.sincePrune = 0
	if height <= c.cfg.ReorgProtectionBlocks {
		return nil
	}
	cutoff := height - c.cfg.ReorgProtectionBlocks

	unit, err := c.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin prune unit: %w", err)
	}
	pruned, err := unit.PruneSpentOutputs(ctx, cutoff)
	if err != nil {
		if rbErr := unit.Rollback(); rbErr != nil {
			c.logger.Warn("prune rollback failed", zap.Error(rbErr))
		}
		return fmt.Errorf("prune spent outputs below %d: %w", cutoff, err)
	}
	if err := unit.Commit(); err != nil {
		return fmt.Errorf("commit prune: %w", err)
	}
	if pruned > 0 {
		c.logger.Info("pruned spent outputs",
			zap.Int64("count", pruned), zap.Uint64("below_height", cutoff))
	}
	return nil
}
