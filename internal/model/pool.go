package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PoolState is derived from the persisted pool fields.
type PoolState uint8

const (
	Uninitialized PoolState = iota
	Live
	PendingRefund
	Paused
)

func (s PoolState) String() string {
	switch s {
	case Live:
		return "live"
	case PendingRefund:
		return "pending_refund"
	case Paused:
		return "paused"
	default:
		return "uninitialized"
	}
}

// Pool is the persisted state of one liquidity pool.
type Pool struct {
	Address       common.Address `json:"address"`
	Market        string         `json:"market"`
	CurveKind     CurveKind      `json:"curve_kind"`
	BaseAsset     Asset          `json:"base_asset"`
	QuoteAsset    Asset          `json:"quote_asset"`
	BaseDecimals  uint8          `json:"base_decimals"`
	QuoteDecimals uint8          `json:"quote_decimals"`
	BaseLotSize   uint64         `json:"base_lot_size"`
	QuoteLotSize  uint64         `json:"quote_lot_size"`

	BaseVault  common.Address `json:"base_vault"`
	QuoteVault common.Address `json:"quote_vault"`
	OpenOrders common.Address `json:"open_orders"`
	LPMint     Asset          `json:"lp_mint"`

	BaseAmount            uint64 `json:"base_amount"`
	QuoteAmount           uint64 `json:"quote_amount"`
	LPSupply              uint64 `json:"lp_supply"`
	RefundBaseAmount      uint64 `json:"refund_base_amount"`
	RefundQuoteAmount     uint64 `json:"refund_quote_amount"`
	CumulativeBaseVolume  uint64 `json:"cumulative_base_volume"`
	CumulativeQuoteVolume uint64 `json:"cumulative_quote_volume"`

	ClientOrderID      uint64        `json:"client_order_id"`
	PlacedAsks         []PlacedOrder `json:"placed_asks"`
	PlacedBids         []PlacedOrder `json:"placed_bids"`
	MarketMakingActive bool          `json:"market_making_active"`

	Sequence  uint64    `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State reports where the pool is in its lifecycle.
func (p Pool) State() PoolState {
	switch {
	case p.LPSupply == 0:
		return Uninitialized
	case !p.MarketMakingActive:
		return Paused
	case p.RefundBaseAmount > 0 || p.RefundQuoteAmount > 0:
		return PendingRefund
	default:
		return Live
	}
}

// Clone returns a deep copy so transitions never mutate a loaded snapshot.
func (p Pool) Clone() Pool {
	out := p
	out.PlacedAsks = append([]PlacedOrder(nil), p.PlacedAsks...)
	out.PlacedBids = append([]PlacedOrder(nil), p.PlacedBids...)
	return out
}
