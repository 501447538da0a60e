package model

import (
	"encoding/json"
	"time"
)

// EventKind names a committed pool transition.
type EventKind string

const (
	EventCreate   EventKind = "create"
	EventDeposit  EventKind = "deposit"
	EventWithdraw EventKind = "withdraw"
	EventRefresh  EventKind = "refresh"
	EventSync     EventKind = "sync"
	EventRestart  EventKind = "restart"
)

// FillSummary is what reconciliation found since the previous transition.
type FillSummary struct {
	BaseSold      uint64 `json:"base_sold"`
	QuoteReceived uint64 `json:"quote_received"`
	BaseReceived  uint64 `json:"base_received"`
	QuoteSpent    uint64 `json:"quote_spent"`
	RefundBase    uint64 `json:"refund_base"`
	RefundQuote   uint64 `json:"refund_quote"`
}

// Empty reports whether no fill was observed.
func (f FillSummary) Empty() bool {
	return f.BaseSold == 0 && f.BaseReceived == 0
}

// PoolEvent is the journal record written after each committed transition.
type PoolEvent struct {
	Pool          string      `json:"pool"`
	Market        string      `json:"market"`
	CurveKind     CurveKind   `json:"curve_kind"`
	Kind          EventKind   `json:"kind"`
	Sequence      uint64      `json:"sequence"`
	Timestamp     uint64      `json:"timestamp"`
	BaseDecimals  uint8       `json:"base_decimals"`
	QuoteDecimals uint8       `json:"quote_decimals"`
	StartBase     uint64      `json:"start_base"`
	StartQuote    uint64      `json:"start_quote"`
	StartLP       uint64      `json:"start_lp"`
	EndBase       uint64      `json:"end_base"`
	EndQuote      uint64      `json:"end_quote"`
	EndLP         uint64      `json:"end_lp"`
	Fills         FillSummary `json:"fills"`
	CrankerBase   uint64      `json:"cranker_base"`
	CrankerQuote  uint64      `json:"cranker_quote"`
	OrdersPlaced  int         `json:"orders_placed"`
	Paused        bool        `json:"paused"`
}

// Time returns the event timestamp as UTC time.
func (e PoolEvent) Time() time.Time {
	return time.Unix(int64(e.Timestamp), 0).UTC()
}

// MarshalJSON ensures PoolEvent is encoded with stable field names.
func (e PoolEvent) MarshalJSON() ([]byte, error) {
	type Alias PoolEvent
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes a PoolEvent from JSON.
func (e *PoolEvent) UnmarshalJSON(data []byte) error {
	type Alias PoolEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = PoolEvent(a)
	return nil
}
