// Package indexer implements the UTXO indexing engine: the block
// processor, the balance ledger and the synchronization coordinator.
package indexer

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks a data-integrity violation: an unresolved input, a
// negative fee, an over-debit or an unrecoverable reorg. Integrity errors
// are fatal: the coordinator aborts the current unit, transitions to
// Faulted and stops indexing, because continuing would corrupt the
// UTXO/balance invariants.
var ErrIntegrity = errors.New("data integrity violation")

// IsIntegrity reports whether err wraps ErrIntegrity.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

func integrityErrorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrIntegrity)
}
