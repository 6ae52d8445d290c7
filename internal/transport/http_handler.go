package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/model"
	"github.com/chainfold/utxoindex-backend/internal/query"
)

// btcDecimals shifts satoshi amounts into BTC strings.
const btcDecimals = -8

type addressReply struct {
	Address            string `json:"address"`
	Balance            uint64 `json:"balance"`
	BalanceBTC         string `json:"balance_btc"`
	TotalReceived      uint64 `json:"total_received"`
	TotalSent          uint64 `json:"total_sent"`
	UTXOCount          uint64 `json:"utxo_count"`
	FirstSeenHeight    uint64 `json:"first_seen_height"`
	LastActivityHeight uint64 `json:"last_activity_height"`
}

type utxoReply struct {
	TxID        string `json:"txid"`
	Index       uint32 `json:"index"`
	Value       uint64 `json:"value"`
	ValueBTC    string `json:"value_btc"`
	BlockHeight uint64 `json:"block_height"`
}

type utxosReply struct {
	Address string      `json:"address"`
	Balance uint64      `json:"balance"`
	UTXOs   []utxoReply `json:"utxos"`
}

type transactionReply struct {
	TxID        string    `json:"txid"`
	BlockHash   string    `json:"block_hash"`
	BlockHeight uint64    `json:"block_height"`
	Timestamp   time.Time `json:"timestamp"`
	Fee         uint64    `json:"fee"`
	FeeBTC      string    `json:"fee_btc"`
	IsCoinbase  bool      `json:"is_coinbase"`
	InputCount  uint32    `json:"input_count"`
	OutputCount uint32    `json:"output_count"`
}

type blockReply struct {
	Height     uint64    `json:"height"`
	Hash       string    `json:"hash"`
	PrevHash   string    `json:"prev_hash"`
	Timestamp  time.Time `json:"timestamp"`
	Bits       uint32    `json:"bits"`
	Difficulty float64   `json:"difficulty"`
	TxCount    uint32    `json:"tx_count"`
}

type statsReply struct {
	Blocks       uint64 `json:"blocks"`
	Transactions uint64 `json:"transactions"`
	Addresses    uint64 `json:"addresses"`
	UTXOs        uint64 `json:"utxos"`
	CursorHeight uint64 `json:"cursor_height"`
	TipHeight    uint64 `json:"tip_height"`
	SyncLag      uint64 `json:"sync_lag"`
}

func btcString(sats uint64) string {
	return decimal.NewFromUint64(sats).Shift(btcDecimals).String()
}

func (s *Server) healthHandle() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) addressHandle() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		a, err := s.facade.GetAddress(ctx.Request.Context(), ctx.Param("address"))
		if err != nil {
			s.replyError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, addressReply{
			Address:            a.Address,
			Balance:            a.Balance,
			BalanceBTC:         btcString(a.Balance),
			TotalReceived:      a.TotalReceived,
			TotalSent:          a.TotalSent,
			UTXOCount:          a.UTXOCount,
			FirstSeenHeight:    a.FirstSeenHeight,
			LastActivityHeight: a.LastActivityHeight,
		})
	}
}

func (s *Server) addressUTXOsHandle() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		address := ctx.Param("address")
		outs, err := s.facade.GetAddressUTXOs(ctx.Request.Context(), address)
		if err != nil {
			s.replyError(ctx, err)
			return
		}
		reply := utxosReply{
			Address: address,
			UTXOs:   make([]utxoReply, 0, len(outs)),
		}
		for _, o := range outs {
			reply.Balance += o.Value
			reply.UTXOs = append(reply.UTXOs, utxoReply{
				TxID:        o.TxID,
				Index:       o.Index,
				Value:       o.Value,
				ValueBTC:    btcString(o.Value),
				BlockHeight: o.BlockHeight,
			})
		}
		ctx.JSON(http.StatusOK, reply)
	}
}

func (s *Server) transactionHandle() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		t, err := s.facade.GetTransaction(ctx.Request.Context(), ctx.Param("txid"))
		if err != nil {
			s.replyError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, transactionReply{
			TxID:        t.TxID,
			BlockHash:   t.BlockHash,
			BlockHeight: t.BlockHeight,
			Timestamp:   t.Timestamp,
			Fee:         t.Fee,
			FeeBTC:      btcString(t.Fee),
			IsCoinbase:  t.IsCoinbase,
			InputCount:  t.InputCount,
			OutputCount: t.OutputCount,
		})
	}
}

func (s *Server) blockHandle() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		b, err := s.facade.GetBlock(ctx.Request.Context(), ctx.Param("id"))
		if err != nil {
			s.replyError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, newBlockReply(b))
	}
}

func newBlockReply(b model.Block) blockReply {
	return blockReply{
		Height:     b.Height,
		Hash:       b.Hash,
		PrevHash:   b.PrevHash,
		Timestamp:  b.Timestamp,
		Bits:       b.Bits,
		Difficulty: b.Difficulty,
		TxCount:    b.TxCount,
	}
}

func (s *Server) statsHandle() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		st, err := s.facade.GetStats(ctx.Request.Context())
		if err != nil {
			s.replyError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, statsReply{
			Blocks:       st.Blocks,
			Transactions: st.Transactions,
			Addresses:    st.Addresses,
			UTXOs:        st.UTXOs,
			CursorHeight: st.CursorHeight,
			TipHeight:    st.TipHeight,
			SyncLag:      st.SyncLag,
		})
	}
}

func (s *Server) replyError(ctx *gin.Context, err error) {
	if query.IsNotFound(err) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
