package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies a fungible asset on the ledger.
type Asset string

// Side is the side of an order.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Ask {
		return "ask"
	}
	return "bid"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bid", "buy":
		*s = Bid
	case "ask", "sell":
		*s = Ask
	default:
		return fmt.Errorf("unknown side: %q", text)
	}
	return nil
}

// OrderType controls how an order interacts with the book.
type OrderType uint8

const (
	Limit OrderType = iota
	PostOnly
	IOC
)

func (t OrderType) String() string {
	switch t {
	case PostOnly:
		return "post_only"
	case IOC:
		return "ioc"
	default:
		return "limit"
	}
}

// Market describes the external CLOB market a pool quotes on.
type Market struct {
	ID            string `json:"id"`
	BaseAsset     Asset  `json:"base_asset"`
	QuoteAsset    Asset  `json:"quote_asset"`
	BaseDecimals  uint8  `json:"base_decimals"`
	QuoteDecimals uint8  `json:"quote_decimals"`
	BaseLotSize   uint64 `json:"base_lot_size"`
	QuoteLotSize  uint64 `json:"quote_lot_size"`
}

// Level is one synthesized ladder order. Price is quote lots per base lot.
type Level struct {
	Price    uint64 `json:"price"`
	BaseLots uint64 `json:"base_lots"`
	MaxQuote uint64 `json:"max_quote"`
}

// Ladder is the set of orders computed for one refresh cycle.
type Ladder struct {
	Asks []Level `json:"asks"`
	Bids []Level `json:"bids"`
}

// Levels returns the number of orders on both sides.
func (l Ladder) Levels() int {
	return len(l.Asks) + len(l.Bids)
}

// OrderRequest is submitted to the order book.
type OrderRequest struct {
	Side          Side
	Price         uint64
	BaseLots      uint64
	MaxQuote      uint64
	Type          OrderType
	ClientOrderID uint64
}

// OrderRef identifies a resting order on the book.
type OrderRef struct {
	OrderID       uint64 `json:"order_id"`
	ClientOrderID uint64 `json:"client_order_id"`
	Side          Side   `json:"side"`
}

// PlacedOrder records what the pool committed to the book.
type PlacedOrder struct {
	OrderID       uint64 `json:"order_id"`
	ClientOrderID uint64 `json:"client_order_id"`
	Price         uint64 `json:"price"`
	BaseLots      uint64 `json:"base_lots"`
	MaxQuote      uint64 `json:"max_quote"`
}

// RestingOrder is an order still on the book for an open-orders account.
type RestingOrder struct {
	OrderRef
	Price    uint64 `json:"price"`
	BaseLots uint64 `json:"base_lots"`
}

// OpenOrders is the venue-side balance sheet of one open-orders account.
type OpenOrders struct {
	Address    common.Address `json:"address"`
	BaseFree   uint64         `json:"base_free"`
	BaseTotal  uint64         `json:"base_total"`
	QuoteFree  uint64         `json:"quote_free"`
	QuoteTotal uint64         `json:"quote_total"`
	Orders     []RestingOrder `json:"orders"`
}

// BookLevel is an aggregated price level of the external book.
type BookLevel struct {
	Price    uint64 `json:"price"`
	BaseLots uint64 `json:"base_lots"`
}

// BookSnapshot lists bids best-first (descending) and asks best-first (ascending).
type BookSnapshot struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// BestBid returns the highest bid price or 0.
func (b BookSnapshot) BestBid() uint64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price or 0.
func (b BookSnapshot) BestAsk() uint64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}
