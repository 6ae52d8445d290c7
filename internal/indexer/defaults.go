package indexer

import "time"

const (
	defaultReorgProtectionBlocks uint64 = 100
	defaultFetchWorkers                 = 8
	defaultPrefetchChunk                = 64
	defaultRetryPause                   = 5 * time.Second
	defaultPruneInterval         uint64 = 1000
)
