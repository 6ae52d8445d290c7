package model

import "time"

// SyncCursor marks the last block whose effects are fully committed.
// It is owned exclusively by the synchronization coordinator and updated
// in the same storage transaction as the block it refers to.
type SyncCursor struct {
	Height    uint64
	Hash      string
	State     string
	UpdatedAt time.Time
}

// ReorgEvent describes a resolved chain reorganization. It is transient:
// logged and counted, never persisted.
type ReorgEvent struct {
	AncestorHash   string
	AncestorHeight uint64
	// Removed lists abandoned block hashes, highest first.
	Removed []string
	// Added lists replacement block hashes, lowest first.
	Added []string
}

// Depth returns the number of blocks rolled back by the event.
func (e ReorgEvent) Depth() int {
	return len(e.Removed)
}
