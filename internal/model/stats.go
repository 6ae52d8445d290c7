package model

// Stats summarizes committed index state for the query facade.
type Stats struct {
	Blocks       uint64
	Transactions uint64
	Addresses    uint64
	UTXOs        uint64
	CursorHeight uint64
	TipHeight    uint64
	// SyncLag is TipHeight - CursorHeight, zero when fully caught up.
	SyncLag uint64
}
