package aggregate

import (
	"github.com/holiman/uint256"

	"openamm/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress   string
	Market        string
	CurveKind     model.CurveKind
	BaseDecimals  uint8
	QuoteDecimals uint8
	WindowStart   uint64
	WindowEnd     uint64
	EventCount    uint64
	FillCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	BaseVolume    *uint256.Int
	QuoteVolume   *uint256.Int
	CrankerBase   *uint256.Int
	CrankerQuote  *uint256.Int
	LastSequence  uint64
	EndBase       uint64
	EndQuote      uint64
	EndLP         uint64
}

func NewAccumulator(ev model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress:   ev.Pool,
		Market:        ev.Market,
		CurveKind:     ev.CurveKind,
		BaseDecimals:  ev.BaseDecimals,
		QuoteDecimals: ev.QuoteDecimals,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		BaseVolume:    new(uint256.Int),
		QuoteVolume:   new(uint256.Int),
		CrankerBase:   new(uint256.Int),
		CrankerQuote:  new(uint256.Int),
	}
}

func (a *Accumulator) AddEvent(ev model.PoolEvent) {
	a.EventCount++
	switch ev.Kind {
	case model.EventDeposit:
		a.DepositCount++
	case model.EventWithdraw:
		a.WithdrawCount++
	}

	if !ev.Fills.Empty() {
		a.FillCount++
		addU64(a.BaseVolume, ev.Fills.BaseSold, ev.Fills.BaseReceived)
		addU64(a.QuoteVolume, ev.Fills.QuoteReceived, ev.Fills.QuoteSpent)
	}
	addU64(a.CrankerBase, ev.CrankerBase)
	addU64(a.CrankerQuote, ev.CrankerQuote)

	// Journals may interleave; the closing reserves come from the latest sequence.
	if ev.Sequence >= a.LastSequence {
		a.LastSequence = ev.Sequence
		a.EndBase = ev.EndBase
		a.EndQuote = ev.EndQuote
		a.EndLP = ev.EndLP
	}
}

func addU64(target *uint256.Int, values ...uint64) {
	for _, v := range values {
		target.Add(target, uint256.NewInt(v))
	}
}
