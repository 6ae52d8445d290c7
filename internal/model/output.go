package model

// Output is a transaction output tracked by the UTXO set. Value is in
// integer minor units (satoshis). Address may be empty for outputs whose
// script could not be resolved to an address; such outputs are indexed
// but excluded from address accounting.
//
// An output is created exactly once and transitions spent:false→true
// exactly once. Spent outputs are tombstoned, not deleted, until they
// fall out of the reorg-protection window.
type Output struct {
	TxID          string
	Index         uint32
	Value         uint64
	Address       string
	BlockHeight   uint64
	Spent         bool
	SpentByTxID   string
	SpentByIndex  uint32
	SpentAtHeight uint64
}

// Outpoint returns the identifying (txid, index) pair.
func (o Output) Outpoint() Outpoint {
	return Outpoint{TxID: o.TxID, Index: o.Index}
}
