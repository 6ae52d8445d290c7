package model

// Address aggregates per-address balance state derived from the UTXO set.
// Invariants maintained by the ledger:
//
//	Balance == sum of Value over unspent outputs owned by the address
//	TotalReceived - TotalSent == Balance
type Address struct {
	Address            string
	Balance            uint64
	TotalReceived      uint64
	TotalSent          uint64
	UTXOCount          uint64
	FirstSeenHeight    uint64
	LastActivityHeight uint64
}
