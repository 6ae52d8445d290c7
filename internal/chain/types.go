package chain

import "github.com/chainfold/utxoindex-backend/internal/model"

// Tip identifies the node's best block.
type Tip struct {
	Height uint64
	Hash   string
}

// BlockHeader is the minimal header carried by new-block notifications.
type BlockHeader struct {
	Height   uint64
	Hash     string
	PrevHash string
}

// Block bundles a block entity with its fully resolved transactions,
// in block order.
type Block struct {
	Header model.Block
	Txs    []Tx
}

// BlockHeaderOnly returns the notification header for the block.
func (b *Block) BlockHeaderOnly() BlockHeader {
	return BlockHeader{
		Height:   b.Header.Height,
		Hash:     b.Header.Hash,
		PrevHash: b.Header.PrevHash,
	}
}

// Tx is a transaction as delivered by the adapter: inputs reference
// previous outputs by outpoint only (values are resolved against the
// entity store by the processor), outputs carry integer minor-unit
// values and pre-resolved addresses.
type Tx struct {
	TxID       string
	IsCoinbase bool
	Inputs     []TxInput
	Outputs    []TxOutput
}

// TxInput references the output consumed by an input. Coinbase inputs
// carry no reference.
type TxInput struct {
	PrevTxID  string
	PrevIndex uint32
	Coinbase  bool
}

// TxOutput is a created output with its resolved address, if any.
// Address is empty when the script does not decode to an address.
type TxOutput struct {
	Value   uint64
	Address string
}
