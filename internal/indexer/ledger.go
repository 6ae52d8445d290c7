package indexer

import (
	"context"
	"fmt"

	"github.com/chainfold/utxoindex-backend/internal/model"
	"github.com/chainfold/utxoindex-backend/internal/store"
)

type ledgerOp string

const (
	opCredit       ledgerOp = "credit"
	opDebit        ledgerOp = "debit"
	opRevertCredit ledgerOp = "revert_credit"
	opRevertDebit  ledgerOp = "revert_debit"
)

type appliedKey struct {
	op    ledgerOp
	point model.Outpoint
}

// Ledger maintains per-address running balances as block mutations are
// applied. One Ledger serves exactly one unit of work: address rows are
// cached for the unit's lifetime and written back on Flush, and each
// operation is idempotent with respect to the outpoint that triggered it,
// so a retried processing step never double-counts.
//
// Callers must apply all of a transaction's debits before its credits;
// value is destroyed before it is created, which keeps balances
// non-negative even when one address appears on both sides.
type Ledger struct {
	unit    store.Unit
	addrs   map[string]*model.Address
	applied map[appliedKey]struct{}
}

// NewLedger creates a ledger bound to the given unit of work.
func NewLedger(unit store.Unit) *Ledger {
	return &Ledger{
		unit:    unit,
		addrs:   make(map[string]*model.Address),
		applied: make(map[appliedKey]struct{}),
	}
}

// Credit adds value to the address owning the created output. Empty
// addresses (undecodable scripts) are excluded from accounting.
func (l *Ledger) Credit(ctx context.Context, address string, value uint64, height uint64, created model.Outpoint) error {
	if address == "" {
		return nil
	}
	key := appliedKey{op: opCredit, point: created}
	if _, ok := l.applied[key]; ok {
		return nil
	}
	a, err := l.address(ctx, address, height)
	if err != nil {
		return err
	}
	a.Balance += value
	a.TotalReceived += value
	a.UTXOCount++
	l.applied[key] = struct{}{}
	return nil
}

// Debit removes value from the address whose output was consumed. A debit
// exceeding the tracked balance signals a spend of an already-spent or
// nonexistent output and is a fatal integrity error.
func (l *Ledger) Debit(ctx context.Context, address string, value uint64, height uint64, consumed model.Outpoint) error {
	if address == "" {
		return nil
	}
	key := appliedKey{op: opDebit, point: consumed}
	if _, ok := l.applied[key]; ok {
		return nil
	}
	a, err := l.address(ctx, address, height)
	if err != nil {
		return err
	}
	if a.Balance < value {
		return integrityErrorf("debit of %d exceeds balance %d for address %s (output %s:%d)",
			value, a.Balance, address, consumed.TxID, consumed.Index)
	}
	a.Balance -= value
	a.TotalSent += value
	a.UTXOCount--
	l.applied[key] = struct{}{}
	return nil
}

// RevertCredit undoes a previously applied credit during reorg rollback,
// restoring TotalReceived so the received/sent/balance identity holds.
func (l *Ledger) RevertCredit(ctx context.Context, address string, value uint64, height uint64, created model.Outpoint) error {
	if address == "" {
		return nil
	}
	key := appliedKey{op: opRevertCredit, point: created}
	if _, ok := l.applied[key]; ok {
		return nil
	}
	a, err := l.address(ctx, address, height)
	if err != nil {
		return err
	}
	if a.Balance < value || a.TotalReceived < value || a.UTXOCount == 0 {
		return integrityErrorf("revert credit of %d underflows address %s (balance %d, received %d)",
			value, address, a.Balance, a.TotalReceived)
	}
	a.Balance -= value
	a.TotalReceived -= value
	a.UTXOCount--
	l.applied[key] = struct{}{}
	return nil
}

// RevertDebit undoes a previously applied debit during reorg rollback.
func (l *Ledger) RevertDebit(ctx context.Context, address string, value uint64, height uint64, consumed model.Outpoint) error {
	if address == "" {
		return nil
	}
	key := appliedKey{op: opRevertDebit, point: consumed}
	if _, ok := l.applied[key]; ok {
		return nil
	}
	a, err := l.address(ctx, address, height)
	if err != nil {
		return err
	}
	if a.TotalSent < value {
		return integrityErrorf("revert debit of %d underflows sent total %d for address %s",
			value, a.TotalSent, address)
	}
	a.Balance += value
	a.TotalSent -= value
	a.UTXOCount++
	l.applied[key] = struct{}{}
	return nil
}

// Flush writes all touched address rows through the unit. The unit's
// commit makes them durable together with the block that produced them.
func (l *Ledger) Flush(ctx context.Context) error {
	for _, a := range l.addrs {
		if err := l.unit.UpsertAddress(ctx, *a); err != nil {
			return fmt.Errorf("upsert address %s: %w", a.Address, err)
		}
	}
	return nil
}

func (l *Ledger) address(ctx context.Context, address string, height uint64) (*model.Address, error) {
	if a, ok := l.addrs[address]; ok {
		if height > a.LastActivityHeight {
			a.LastActivityHeight = height
		}
		return a, nil
	}
	stored, ok, err := l.unit.GetAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get address %s: %w", address, err)
	}
	if !ok {
		stored = model.Address{
			Address:            address,
			FirstSeenHeight:    height,
			LastActivityHeight: height,
		}
	}
	if height > stored.LastActivityHeight {
		stored.LastActivityHeight = height
	}
	a := &stored
	l.addrs[address] = a
	return a, nil
}
