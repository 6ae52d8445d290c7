package bitcoin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/chain"
	"github.com/chainfold/utxoindex-backend/pkg/safe"
)

// nodeClient is the subset of RPCClient the source depends on.
type nodeClient interface {
	GetBlockCount() (int64, error)
	GetBestBlockHash() (*chainhash.Hash, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockVerboseTx(blockHash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error)
	GetBlockHeaderVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
	GetRawTransactionVerbose(txid *chainhash.Hash) (*btcjson.TxRawResult, error)
}

// SourceConfig tunes the adapter's retry and polling behavior.
type SourceConfig struct {
	Network string
	// PollInterval is how often the subscription polls the node tip when
	// no external block signal arrives.
	PollInterval time.Duration
	// RetryAttempts bounds per-call retries of transient node failures.
	RetryAttempts uint
	RetryDelay    time.Duration
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.Network == "" {
		c.Network = "mainnet"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	return c
}

// Source implements the chain source contract over a Bitcoin Core
// compatible node. Transient node failures are retried with backoff
// inside the adapter; genuinely missing entities surface as not-found.
type Source struct {
	rpc     nodeClient
	decoder *scriptDecoder
	logger  *zap.Logger
	cfg     SourceConfig
	// signals carries external new-block hints (zmq); it may be nil, in
	// which case the subscription is purely poll driven.
	signals <-chan struct{}
}

// NewSource builds a chain source for the given node client. signals may
// be nil.
func NewSource(rpc nodeClient, signals <-chan struct{}, cfg SourceConfig, logger *zap.Logger) (*Source, error) {
	if rpc == nil {
		return nil, errors.New("node client is required")
	}
	cfg = cfg.withDefaults()
	decoder, err := newScriptDecoder(cfg.Network)
	if err != nil {
		return nil, err
	}
	return &Source{
		rpc:     rpc,
		decoder: decoder,
		logger:  logger.Named("bitcoin"),
		cfg:     cfg,
		signals: signals,
	}, nil
}

// GetTip returns the node's current best block.
func (s *Source) GetTip(ctx context.Context) (chain.Tip, error) {
	var tip chain.Tip
	err := s.call(ctx, "get tip", func() error {
		count, err := s.rpc.GetBlockCount()
		if err != nil {
			return err
		}
		height, err := safe.Uint64(count)
		if err != nil {
			return fmt.Errorf("block count overflow: %w", err)
		}
		hash, err := s.rpc.GetBestBlockHash()
		if err != nil {
			return err
		}
		tip = chain.Tip{Height: height, Hash: hash.String()}
		return nil
	})
	return tip, err
}

// GetBlockByHeight returns the active-chain block at height with fully
// resolved transactions.
func (s *Source) GetBlockByHeight(ctx context.Context, height uint64) (*chain.Block, error) {
	if height > math.MaxInt64 {
		return nil, fmt.Errorf("block height %d exceeds rpc limit", height)
	}
	var block *chain.Block
	err := s.call(ctx, fmt.Sprintf("get block %d", height), func() error {
		hash, err := s.rpc.GetBlockHash(int64(height))
		if err != nil {
			return mapNodeError(err, "block", fmt.Sprintf("height %d", height))
		}
		src, err := s.rpc.GetBlockVerboseTx(hash)
		if err != nil {
			return mapNodeError(err, "block", hash.String())
		}
		block, err = s.buildBlock(src)
		return err
	})
	return block, err
}

// GetBlockByHash returns the block with the given hash, which may sit on
// a side chain during a reorg.
func (s *Source) GetBlockByHash(ctx context.Context, hash string) (*chain.Block, error) {
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, fmt.Errorf("parse block hash %s: %w", hash, err)
	}
	var block *chain.Block
	err = s.call(ctx, fmt.Sprintf("get block %s", hash), func() error {
		src, err := s.rpc.GetBlockVerboseTx(h)
		if err != nil {
			return mapNodeError(err, "block", hash)
		}
		block, err = s.buildBlock(src)
		return err
	})
	return block, err
}

// GetTransaction returns a single decoded transaction.
func (s *Source) GetTransaction(ctx context.Context, txid string) (*chain.Tx, error) {
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("parse txid %s: %w", txid, err)
	}
	var tx *chain.Tx
	err = s.call(ctx, fmt.Sprintf("get transaction %s", txid), func() error {
		raw, err := s.rpc.GetRawTransactionVerbose(h)
		if err != nil {
			return mapNodeError(err, "transaction", txid)
		}
		tx, err = s.convertTx(raw)
		return err
	})
	return tx, err
}

// SubscribeBlocks emits a header whenever the node's best hash changes.
// The node is polled at PollInterval; an external block signal forces an
// immediate check. The channel closes when ctx is done.
func (s *Source) SubscribeBlocks(ctx context.Context) (<-chan chain.BlockHeader, error) {
	out := make(chan chain.BlockHeader)
	go s.pollLoop(ctx, out)
	return out, nil
}

func (s *Source) pollLoop(ctx context.Context, out chan<- chain.BlockHeader) {
	defer close(out)

	var lastHash string
	for {
		header, changed, err := s.checkTip(ctx, lastHash)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("tip poll failed", zap.Error(err))
		} else if changed {
			lastHash = header.Hash
			select {
			case out <- header:
			case <-ctx.Done():
				return
			}
			// The tip may have advanced more than once; re-check
			// immediately until stable.
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.signalOrNil():
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *Source) signalOrNil() <-chan struct{} {
	return s.signals
}

func (s *Source) checkTip(ctx context.Context, lastHash string) (chain.BlockHeader, bool, error) {
	var header chain.BlockHeader
	err := s.call(ctx, "check tip", func() error {
		hash, err := s.rpc.GetBestBlockHash()
		if err != nil {
			return err
		}
		if hash.String() == lastHash {
			return nil
		}
		hdr, err := s.rpc.GetBlockHeaderVerbose(hash)
		if err != nil {
			return mapNodeError(err, "block header", hash.String())
		}
		height, err := safe.Uint64(hdr.Height)
		if err != nil {
			return fmt.Errorf("header height overflow: %w", err)
		}
		header = chain.BlockHeader{
			Height:   height,
			Hash:     hdr.Hash,
			PrevHash: hdr.PreviousHash,
		}
		return nil
	})
	if err != nil {
		return chain.BlockHeader{}, false, err
	}
	return header, header.Hash != "" && header.Hash != lastHash, nil
}

// call runs fn with bounded backoff retries. Not-found and context
// errors are not retried.
func (s *Source) call(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn()
		},
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if chain.IsNotFound(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			s.logger.Debug("retrying node call", zap.String("op", op), zap.Error(err))
			return true
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// mapNodeError translates node RPC errors for missing entities into the
// adapter-neutral not-found sentinel.
func mapNodeError(err error, kind, id string) error {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		// btcjson.ErrRPCNoTxInfo has the same code (-5) as ErrRPCBlockNotFound,
		// so it is covered by this case as well.
		case btcjson.ErrRPCBlockNotFound, btcjson.ErrRPCInvalidParameter, btcjson.ErrRPCOutOfRange:
			return fmt.Errorf("%s: %w", err, chain.NotFoundError(kind, id))
		}
	}
	return err
}
