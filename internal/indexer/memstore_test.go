package indexer

import (
	"context"
	"sync"

	"github.com/chainfold/utxoindex-backend/internal/model"
	"github.com/chainfold/utxoindex-backend/internal/store"
)

// memStore is an in-memory entity store with real transaction semantics:
// a unit works on a deep copy of committed state and Commit swaps the
// copy in atomically. Rollback discards the copy.
type memStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	blocks  map[uint64]model.Block
	txs     map[string]model.Transaction
	inputs  map[model.Outpoint]model.Input
	outputs map[model.Outpoint]model.Output
	addrs   map[string]model.Address
	cursor  *model.SyncCursor
}

func newMemData() *memData {
	return &memData{
		blocks:  make(map[uint64]model.Block),
		txs:     make(map[string]model.Transaction),
		inputs:  make(map[model.Outpoint]model.Input),
		outputs: make(map[model.Outpoint]model.Output),
		addrs:   make(map[string]model.Address),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.blocks {
		c.blocks[k] = v
	}
	for k, v := range d.txs {
		c.txs[k] = v
	}
	for k, v := range d.inputs {
		c.inputs[k] = v
	}
	for k, v := range d.outputs {
		c.outputs[k] = v
	}
	for k, v := range d.addrs {
		c.addrs[k] = v
	}
	if d.cursor != nil {
		cur := *d.cursor
		c.cursor = &cur
	}
	return c
}

func newMemStore() *memStore {
	return &memStore{data: newMemData()}
}

var _ store.Store = (*memStore)(nil)

func (s *memStore) Begin(context.Context) (store.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memUnit{store: s, data: s.data.clone()}, nil
}

func (s *memStore) GetCursor(context.Context) (model.SyncCursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.cursor == nil {
		return model.SyncCursor{}, false, nil
	}
	return *s.data.cursor, true, nil
}

func (s *memStore) GetBlockByHeight(_ context.Context, height uint64) (model.Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.blocks[height]
	return b, ok, nil
}

func (s *memStore) GetBlockByHash(_ context.Context, hash string) (model.Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.data.blocks {
		if b.Hash == hash {
			return b, true, nil
		}
	}
	return model.Block{}, false, nil
}

func (s *memStore) GetTransaction(_ context.Context, txid string) (model.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.txs[txid]
	return t, ok, nil
}

func (s *memStore) GetOutput(_ context.Context, txid string, index uint32) (model.Output, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data.outputs[model.Outpoint{TxID: txid, Index: index}]
	return o, ok, nil
}

func (s *memStore) GetAddress(_ context.Context, address string) (model.Address, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data.addrs[address]
	return a, ok, nil
}

func (s *memStore) GetAddressUTXOs(_ context.Context, address string) ([]model.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outs []model.Output
	for _, o := range s.data.outputs {
		if o.Address == address && !o.Spent {
			outs = append(outs, o)
		}
	}
	return outs, nil
}

func (s *memStore) Stats(context.Context) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.Stats{
		Blocks:       uint64(len(s.data.blocks)),
		Transactions: uint64(len(s.data.txs)),
		Addresses:    uint64(len(s.data.addrs)),
	}
	for _, o := range s.data.outputs {
		if !o.Spent {
			st.UTXOs++
		}
	}
	if s.data.cursor != nil {
		st.CursorHeight = s.data.cursor.Height
	}
	return st, nil
}

type memUnit struct {
	store *memStore
	data  *memData
	done  bool
}

func (u *memUnit) UpsertBlock(_ context.Context, b model.Block) error {
	u.data.blocks[b.Height] = b
	return nil
}

func (u *memUnit) UpsertTransaction(_ context.Context, t model.Transaction) error {
	u.data.txs[t.TxID] = t
	return nil
}

func (u *memUnit) LinkTransaction(_ context.Context, txid, blockHash string, height uint64) error {
	t, ok := u.data.txs[txid]
	if !ok {
		return store.ErrNotFound
	}
	t.BlockHash = blockHash
	t.BlockHeight = height
	u.data.txs[txid] = t
	return nil
}

func (u *memUnit) UpsertInput(_ context.Context, in model.Input) error {
	u.data.inputs[model.Outpoint{TxID: in.TxID, Index: in.Index}] = in
	return nil
}

func (u *memUnit) UpsertOutput(_ context.Context, out model.Output) error {
	key := out.Outpoint()
	if _, ok := u.data.outputs[key]; ok {
		return nil
	}
	u.data.outputs[key] = out
	return nil
}

func (u *memUnit) MarkOutputSpent(_ context.Context, txid string, index uint32, spentBy model.Outpoint, height uint64) error {
	key := model.Outpoint{TxID: txid, Index: index}
	o, ok := u.data.outputs[key]
	if !ok || o.Spent {
		return store.ErrNotFound
	}
	o.Spent = true
	o.SpentByTxID = spentBy.TxID
	o.SpentByIndex = spentBy.Index
	o.SpentAtHeight = height
	u.data.outputs[key] = o
	return nil
}

func (u *memUnit) UnspendOutput(_ context.Context, txid string, index uint32) error {
	key := model.Outpoint{TxID: txid, Index: index}
	o, ok := u.data.outputs[key]
	if !ok {
		return store.ErrNotFound
	}
	o.Spent = false
	o.SpentByTxID = ""
	o.SpentByIndex = 0
	o.SpentAtHeight = 0
	u.data.outputs[key] = o
	return nil
}

func (u *memUnit) GetBlockByHeight(_ context.Context, height uint64) (model.Block, bool, error) {
	b, ok := u.data.blocks[height]
	return b, ok, nil
}

func (u *memUnit) GetTransaction(_ context.Context, txid string) (model.Transaction, bool, error) {
	t, ok := u.data.txs[txid]
	return t, ok, nil
}

func (u *memUnit) GetOutput(_ context.Context, txid string, index uint32) (model.Output, bool, error) {
	o, ok := u.data.outputs[model.Outpoint{TxID: txid, Index: index}]
	return o, ok, nil
}

func (u *memUnit) GetAddress(_ context.Context, address string) (model.Address, bool, error) {
	a, ok := u.data.addrs[address]
	return a, ok, nil
}

func (u *memUnit) UpsertAddress(_ context.Context, a model.Address) error {
	u.data.addrs[a.Address] = a
	return nil
}

func (u *memUnit) OutputsCreatedAtHeight(_ context.Context, height uint64) ([]model.Output, error) {
	var outs []model.Output
	for _, o := range u.data.outputs {
		if o.BlockHeight == height {
			outs = append(outs, o)
		}
	}
	return outs, nil
}

func (u *memUnit) OutputsSpentAtHeight(_ context.Context, height uint64) ([]model.Output, error) {
	var outs []model.Output
	for _, o := range u.data.outputs {
		if o.Spent && o.SpentAtHeight == height {
			outs = append(outs, o)
		}
	}
	return outs, nil
}

func (u *memUnit) DeleteOutput(_ context.Context, txid string, index uint32) error {
	delete(u.data.outputs, model.Outpoint{TxID: txid, Index: index})
	return nil
}

func (u *memUnit) DeleteTransactionsAtHeight(_ context.Context, height uint64) error {
	for id, t := range u.data.txs {
		if t.BlockHeight == height {
			delete(u.data.txs, id)
		}
	}
	for key, in := range u.data.inputs {
		if in.BlockHeight == height {
			delete(u.data.inputs, key)
		}
	}
	return nil
}

func (u *memUnit) DeleteBlock(_ context.Context, hash string) error {
	for h, b := range u.data.blocks {
		if b.Hash == hash {
			delete(u.data.blocks, h)
		}
	}
	return nil
}

func (u *memUnit) PruneSpentOutputs(_ context.Context, belowHeight uint64) (int64, error) {
	var pruned int64
	for key, o := range u.data.outputs {
		if o.Spent && o.SpentAtHeight <= belowHeight {
			delete(u.data.outputs, key)
			pruned++
		}
	}
	return pruned, nil
}

func (u *memUnit) SetCursor(_ context.Context, c model.SyncCursor) error {
	u.data.cursor = &c
	return nil
}

func (u *memUnit) Commit() error {
	if u.done {
		return store.ErrNotFound
	}
	u.done = true
	u.store.mu.Lock()
	u.store.data = u.data
	u.store.mu.Unlock()
	return nil
}

func (u *memUnit) Rollback() error {
	u.done = true
	return nil
}
