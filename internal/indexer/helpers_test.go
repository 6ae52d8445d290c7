package indexer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/chain"
	"github.com/chainfold/utxoindex-backend/internal/model"
)

func testBlock(height uint64, hash, prev string, txs ...chain.Tx) *chain.Block {
	return &chain.Block{
		Header: model.Block{
			Height:    height,
			Hash:      hash,
			PrevHash:  prev,
			Timestamp: time.Unix(1700000000+int64(height)*600, 0).UTC(),
			Bits:      0x1d00ffff,
			TxCount:   uint32(len(txs)),
		},
		Txs: txs,
	}
}

func coinbaseTx(txid, addr string, value uint64) chain.Tx {
	return chain.Tx{
		TxID:       txid,
		IsCoinbase: true,
		Inputs:     []chain.TxInput{{Coinbase: true}},
		Outputs:    []chain.TxOutput{{Value: value, Address: addr}},
	}
}

func spendTx(txid string, inputs []chain.TxInput, outputs ...chain.TxOutput) chain.Tx {
	return chain.Tx{
		TxID:    txid,
		Inputs:  inputs,
		Outputs: outputs,
	}
}

func spend(prevTxID string, prevIndex uint32) chain.TxInput {
	return chain.TxInput{PrevTxID: prevTxID, PrevIndex: prevIndex}
}

func payTo(addr string, value uint64) chain.TxOutput {
	return chain.TxOutput{Value: value, Address: addr}
}

// processBlock applies the block through a fresh unit and commits it.
func processBlock(t *testing.T, st *memStore, blk *chain.Block) *ProcessedBlock {
	t.Helper()
	res, err := tryProcessBlock(st, blk)
	if err != nil {
		t.Fatalf("process block %d: %v", blk.Header.Height, err)
	}
	return res
}

func tryProcessBlock(st *memStore, blk *chain.Block) (*ProcessedBlock, error) {
	ctx := context.Background()
	unit, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	p := NewProcessor(zap.NewNop())
	res, err := p.Process(ctx, unit, blk)
	if err != nil {
		_ = unit.Rollback()
		return nil, err
	}
	if err := unit.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func mustAddress(t *testing.T, st *memStore, addr string) model.Address {
	t.Helper()
	a, ok, err := st.GetAddress(context.Background(), addr)
	if err != nil {
		t.Fatalf("get address %s: %v", addr, err)
	}
	if !ok {
		t.Fatalf("address %s not found", addr)
	}
	return a
}
