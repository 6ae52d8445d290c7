package model

import "time"

// Transaction represents an indexed transaction with derived fee metadata.
type Transaction struct {
	TxID        string
	BlockHash   string
	BlockHeight uint64
	Timestamp   time.Time
	Fee         uint64
	IsCoinbase  bool
	InputCount  uint32
	OutputCount uint32
}

// Input references a previous output consumed by a transaction, or a
// coinbase marker when IsCoinbase is set.
type Input struct {
	TxID        string
	Index       uint32
	PrevTxID    string
	PrevIndex   uint32
	IsCoinbase  bool
	BlockHeight uint64
}

// Outpoint identifies an output by the transaction that created it.
type Outpoint struct {
	TxID  string
	Index uint32
}
