package bitcoin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/chain"
)

// fakeNode implements nodeClient with overridable call sites.
type fakeNode struct {
	getBlockCount     func() (int64, error)
	getBestBlockHash  func() (*chainhash.Hash, error)
	getBlockHash      func(int64) (*chainhash.Hash, error)
	getBlockVerboseTx func(*chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error)
	getBlockHeader    func(*chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
	getRawTransaction func(*chainhash.Hash) (*btcjson.TxRawResult, error)
}

var errNoStub = errors.New("no stub configured")

func (f *fakeNode) GetBlockCount() (int64, error) {
	if f.getBlockCount == nil {
		return 0, errNoStub
	}
	return f.getBlockCount()
}

func (f *fakeNode) GetBestBlockHash() (*chainhash.Hash, error) {
	if f.getBestBlockHash == nil {
		return nil, errNoStub
	}
	return f.getBestBlockHash()
}

func (f *fakeNode) GetBlockHash(height int64) (*chainhash.Hash, error) {
	if f.getBlockHash == nil {
		return nil, errNoStub
	}
	return f.getBlockHash(height)
}

func (f *fakeNode) GetBlockVerboseTx(hash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error) {
	if f.getBlockVerboseTx == nil {
		return nil, errNoStub
	}
	return f.getBlockVerboseTx(hash)
}

func (f *fakeNode) GetBlockHeaderVerbose(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
	if f.getBlockHeader == nil {
		return nil, errNoStub
	}
	return f.getBlockHeader(hash)
}

func (f *fakeNode) GetRawTransactionVerbose(txid *chainhash.Hash) (*btcjson.TxRawResult, error) {
	if f.getRawTransaction == nil {
		return nil, errNoStub
	}
	return f.getRawTransaction(txid)
}

func mustHash(t *testing.T, suffix string) *chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(strings.Repeat("0", 64-len(suffix)) + suffix)
	if err != nil {
		t.Fatalf("parse hash: %v", err)
	}
	return h
}

func TestGetTip(t *testing.T) {
	hash := mustHash(t, "ab")
	s := newTestSource(t, &fakeNode{
		getBlockCount:    func() (int64, error) { return 812345, nil },
		getBestBlockHash: func() (*chainhash.Hash, error) { return hash, nil },
	})

	tip, err := s.GetTip(context.Background())
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if tip.Height != 812345 || tip.Hash != hash.String() {
		t.Fatalf("tip = %+v", tip)
	}
}

func TestGetBlockByHeightMapsMissingToNotFound(t *testing.T) {
	s := newTestSource(t, &fakeNode{
		getBlockHash: func(int64) (*chainhash.Hash, error) {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCBlockNotFound, "block not found")
		},
	})

	_, err := s.GetBlockByHeight(context.Background(), 99)
	if err == nil {
		t.Fatal("expected error")
	}
	if !chain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestGetBlockByHeightBuildsBlock(t *testing.T) {
	hash := mustHash(t, "07")
	s := newTestSource(t, &fakeNode{
		getBlockHash: func(h int64) (*chainhash.Hash, error) {
			if h != 7 {
				t.Fatalf("requested height %d, want 7", h)
			}
			return hash, nil
		},
		getBlockVerboseTx: func(h *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error) {
			return &btcjson.GetBlockVerboseTxResult{
				Hash:   h.String(),
				Height: 7,
				Bits:   "1d00ffff",
				Tx: []btcjson.TxRawResult{{
					Txid: "cb",
					Vin:  []btcjson.Vin{{Coinbase: "00"}},
					Vout: []btcjson.Vout{{Value: 50, ScriptPubKey: btcjson.ScriptPubKeyResult{Address: "miner"}}},
				}},
			}, nil
		},
	})

	block, err := s.GetBlockByHeight(context.Background(), 7)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if block.Header.Height != 7 || block.Header.Hash != hash.String() {
		t.Fatalf("header = %+v", block.Header)
	}
	if len(block.Txs) != 1 || !block.Txs[0].IsCoinbase {
		t.Fatalf("txs = %+v", block.Txs)
	}
}

func TestCallRetriesTransientErrors(t *testing.T) {
	calls := 0
	rpc := &fakeNode{
		getBlockCount: func() (int64, error) {
			calls++
			return 0, errors.New("connection refused")
		},
		getBestBlockHash: func() (*chainhash.Hash, error) { return mustHash(t, "01"), nil },
	}
	s, err := NewSource(rpc, nil, SourceConfig{
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	if _, err := s.GetTip(context.Background()); err == nil {
		t.Fatal("expected exhausted retries to fail")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestCallDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	s := newTestSource(t, &fakeNode{
		getRawTransaction: func(*chainhash.Hash) (*btcjson.TxRawResult, error) {
			calls++
			return nil, btcjson.NewRPCError(btcjson.ErrRPCNoTxInfo, "no such tx")
		},
	})
	s.cfg.RetryAttempts = 5
	s.cfg.RetryDelay = time.Millisecond

	_, err := s.GetTransaction(context.Background(), strings.Repeat("0", 64))
	if !chain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSubscribeBlocksEmitsOnTipChange(t *testing.T) {
	hash := mustHash(t, "05")
	rpc := &fakeNode{
		getBestBlockHash: func() (*chainhash.Hash, error) { return hash, nil },
		getBlockHeader: func(h *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
			return &btcjson.GetBlockHeaderVerboseResult{
				Hash:         h.String(),
				Height:       5,
				PreviousHash: "prev",
			}, nil
		},
	}
	s, err := NewSource(rpc, nil, SourceConfig{
		PollInterval:  5 * time.Millisecond,
		RetryAttempts: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	headers, err := s.SubscribeBlocks(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case hdr := <-headers:
		if hdr.Height != 5 || hdr.Hash != hash.String() || hdr.PrevHash != "prev" {
			t.Fatalf("header = %+v", hdr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no header emitted")
	}

	// The same tip is not re-emitted; the channel closes on cancel.
	cancel()
	for {
		if _, ok := <-headers; !ok {
			return
		}
	}
}
