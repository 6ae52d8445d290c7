package bitcoin

import (
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"go.uber.org/ratelimit"
)

// RPCMetrics records metrics for node RPC calls.
type RPCMetrics interface {
	Observe(operation string, err error, started time.Time)
}

// RPCClient wraps btc rpcclient with metrics instrumentation and a client
// side rate limit so batch sync cannot starve the node.
type RPCClient struct {
	client     *rpcclient.Client
	limiter    ratelimit.Limiter
	rpcMetrics RPCMetrics
}

// NewRPCClient constructs an instrumented RPC client. A non-positive
// requestsPerSecond disables rate limiting.
func NewRPCClient(client *rpcclient.Client, requestsPerSecond int, rpcMetrics RPCMetrics) *RPCClient {
	limiter := ratelimit.NewUnlimited()
	if requestsPerSecond > 0 {
		limiter = ratelimit.New(requestsPerSecond)
	}
	return &RPCClient{
		client:     client,
		limiter:    limiter,
		rpcMetrics: rpcMetrics,
	}
}

// GetBlockCount returns the latest block height known to the node.
func (r *RPCClient) GetBlockCount() (count int64, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_count", err, started)
	}()
	r.limiter.Take()
	return r.client.GetBlockCount()
}

// GetBestBlockHash returns the hash of the node's best block.
func (r *RPCClient) GetBestBlockHash() (hash *chainhash.Hash, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_best_block_hash", err, started)
	}()
	r.limiter.Take()
	return r.client.GetBestBlockHash()
}

// GetBlockHash returns the block hash for a height on the active chain.
func (r *RPCClient) GetBlockHash(blockHeight int64) (hash *chainhash.Hash, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_hash", err, started)
	}()
	r.limiter.Take()
	return r.client.GetBlockHash(blockHeight)
}

// GetBlockVerboseTx returns a verbose block with full transactions.
func (r *RPCClient) GetBlockVerboseTx(blockHash *chainhash.Hash) (res *btcjson.GetBlockVerboseTxResult, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_verbose_tx", err, started)
	}()
	r.limiter.Take()
	return r.client.GetBlockVerboseTx(blockHash)
}

// GetBlockHeaderVerbose returns a decoded block header.
func (r *RPCClient) GetBlockHeaderVerbose(blockHash *chainhash.Hash) (res *btcjson.GetBlockHeaderVerboseResult, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_header_verbose", err, started)
	}()
	r.limiter.Take()
	return r.client.GetBlockHeaderVerbose(blockHash)
}

// GetRawTransactionVerbose returns a decoded transaction.
func (r *RPCClient) GetRawTransactionVerbose(txid *chainhash.Hash) (res *btcjson.TxRawResult, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_raw_transaction_verbose", err, started)
	}()
	r.limiter.Take()
	return r.client.GetRawTransactionVerbose(txid)
}
