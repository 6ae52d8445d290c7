// Package model defines domain entities for the UTXO indexing engine.
package model

import "time"

// Block represents an indexed blockchain block on the active chain.
type Block struct {
	Height     uint64
	Hash       string
	PrevHash   string
	Timestamp  time.Time
	Bits       uint32
	Difficulty float64
	TxCount    uint32
}
