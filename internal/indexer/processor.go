package indexer

import (
	"context"
	"fmt"

	"github.com/chainfold/utxoindex-backend/internal/chain"
	"github.com/chainfold/utxoindex-backend/internal/model"
	"github.com/chainfold/utxoindex-backend/internal/store"
	"github.com/chainfold/utxoindex-backend/pkg/safe"
	"go.uber.org/zap"
)

// ProcessedBlock summarizes the mutations one block produced.
type ProcessedBlock struct {
	Height         uint64
	Hash           string
	TxCount        int
	TotalFees      uint64
	OutputsCreated int
	OutputsSpent   int
}

// Processor converts one block and its transactions into entity mutations
// applied through a unit of work supplied by the coordinator. It never
// commits; atomicity is the coordinator's responsibility.
type Processor struct {
	logger *zap.Logger
}

// NewProcessor builds a block processor.
func NewProcessor(logger *zap.Logger) *Processor {
	return &Processor{logger: logger.Named("processor")}
}

// Process applies the block to the unit. Replaying an already committed
// block is a no-op: existing transactions are skipped (relinked if they
// were unlinked) and existing outputs are not recreated, so entity counts
// and balances are unchanged.
//
// The genesis coinbase arrives from the adapter as a synthetic transaction
// descriptor and flows through the same path as any coinbase.
func (p *Processor) Process(ctx context.Context, unit store.Unit, blk *chain.Block) (*ProcessedBlock, error) {
	hdr := blk.Header
	if err := unit.UpsertBlock(ctx, hdr); err != nil {
		return nil, fmt.Errorf("upsert block %d: %w", hdr.Height, err)
	}

	ledger := NewLedger(unit)
	res := &ProcessedBlock{
		Height:  hdr.Height,
		Hash:    hdr.Hash,
		TxCount: len(blk.Txs),
	}

	for _, tx := range blk.Txs {
		fee, err := p.processTx(ctx, unit, ledger, hdr, tx, res)
		if err != nil {
			return nil, err
		}
		res.TotalFees += fee
	}

	if err := ledger.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush ledger for block %d: %w", hdr.Height, err)
	}
	return res, nil
}

func (p *Processor) processTx(
	ctx context.Context,
	unit store.Unit,
	ledger *Ledger,
	hdr model.Block,
	tx chain.Tx,
	res *ProcessedBlock,
) (uint64, error) {
	existing, ok, err := unit.GetTransaction(ctx, tx.TxID)
	if err != nil {
		return 0, fmt.Errorf("get transaction %s: %w", tx.TxID, err)
	}
	if ok {
		// Replay: effects are already applied. Preserve block order by
		// linking if the row was stored without a block. The stored fee
		// keeps the block summary accurate.
		if existing.BlockHash == "" {
			if err := unit.LinkTransaction(ctx, tx.TxID, hdr.Hash, hdr.Height); err != nil {
				return 0, fmt.Errorf("link transaction %s: %w", tx.TxID, err)
			}
		}
		return existing.Fee, nil
	}

	var totalIn, totalOut uint64

	// Inputs before outputs: value is destroyed before it is created.
	for idx, in := range tx.Inputs {
		index, err := safe.Uint32(idx)
		if err != nil {
			return 0, fmt.Errorf("tx %s input index overflow: %w", tx.TxID, err)
		}
		row := model.Input{
			TxID:        tx.TxID,
			Index:       index,
			PrevTxID:    in.PrevTxID,
			PrevIndex:   in.PrevIndex,
			IsCoinbase:  in.Coinbase,
			BlockHeight: hdr.Height,
		}
		if err := unit.UpsertInput(ctx, row); err != nil {
			return 0, fmt.Errorf("upsert input %s:%d: %w", tx.TxID, index, err)
		}
		if in.Coinbase {
			continue
		}

		out, found, err := unit.GetOutput(ctx, in.PrevTxID, in.PrevIndex)
		if err != nil {
			return 0, fmt.Errorf("get output %s:%d: %w", in.PrevTxID, in.PrevIndex, err)
		}
		if !found {
			// An unresolved input means our view of prior state is wrong;
			// skipping it silently would corrupt the balance invariant.
			return 0, integrityErrorf("tx %s input %d references missing output %s:%d",
				tx.TxID, index, in.PrevTxID, in.PrevIndex)
		}
		if out.Spent {
			if out.SpentByTxID == tx.TxID && out.SpentByIndex == index {
				totalIn += out.Value
				continue
			}
			return 0, integrityErrorf("tx %s input %d double-spends output %s:%d (spent by %s:%d)",
				tx.TxID, index, in.PrevTxID, in.PrevIndex, out.SpentByTxID, out.SpentByIndex)
		}

		spender := model.Outpoint{TxID: tx.TxID, Index: index}
		if err := unit.MarkOutputSpent(ctx, out.TxID, out.Index, spender, hdr.Height); err != nil {
			return 0, fmt.Errorf("mark output %s:%d spent: %w", out.TxID, out.Index, err)
		}
		if err := ledger.Debit(ctx, out.Address, out.Value, hdr.Height, out.Outpoint()); err != nil {
			return 0, err
		}
		totalIn += out.Value
		res.OutputsSpent++
	}

	for idx, o := range tx.Outputs {
		index, err := safe.Uint32(idx)
		if err != nil {
			return 0, fmt.Errorf("tx %s output index overflow: %w", tx.TxID, err)
		}
		totalOut += o.Value

		_, found, err := unit.GetOutput(ctx, tx.TxID, index)
		if err != nil {
			return 0, fmt.Errorf("get output %s:%d: %w", tx.TxID, index, err)
		}
		if found {
			continue
		}
		row := model.Output{
			TxID:        tx.TxID,
			Index:       index,
			Value:       o.Value,
			Address:     o.Address,
			BlockHeight: hdr.Height,
		}
		if err := unit.UpsertOutput(ctx, row); err != nil {
			return 0, fmt.Errorf("upsert output %s:%d: %w", tx.TxID, index, err)
		}
		if err := ledger.Credit(ctx, o.Address, o.Value, hdr.Height, model.Outpoint{TxID: tx.TxID, Index: index}); err != nil {
			return 0, err
		}
		res.OutputsCreated++
	}

	// Coinbase creates the subsidy; it has no fee by definition.
	var fee uint64
	if !tx.IsCoinbase {
		if totalIn < totalOut {
			return 0, integrityErrorf("tx %s outputs total %d exceeds inputs total %d",
				tx.TxID, totalOut, totalIn)
		}
		fee = totalIn - totalOut
	}

	inCount, err := safe.Uint32(len(tx.Inputs))
	if err != nil {
		return 0, fmt.Errorf("tx %s input count overflow: %w", tx.TxID, err)
	}
	outCount, err := safe.Uint32(len(tx.Outputs))
	if err != nil {
		return 0, fmt.Errorf("tx %s output count overflow: %w", tx.TxID, err)
	}

	row := model.Transaction{
		TxID:        tx.TxID,
		BlockHash:   hdr.Hash,
		BlockHeight: hdr.Height,
		Timestamp:   hdr.Timestamp,
		Fee:         fee,
		IsCoinbase:  tx.IsCoinbase,
		InputCount:  inCount,
		OutputCount: outCount,
	}
	if err := unit.UpsertTransaction(ctx, row); err != nil {
		return 0, fmt.Errorf("upsert transaction %s: %w", tx.TxID, err)
	}
	return fee, nil
}
