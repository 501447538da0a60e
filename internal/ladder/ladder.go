package ladder

import (
	"errors"
	"fmt"

	"openamm/internal/curve"
	"openamm/internal/model"
	"openamm/internal/safemath"
)

// StepDenominator scales the step tables: a step of 125 sizes a level at
// 1.25% of the reserve.
const StepDenominator = 10_000

var (
	// DefaultAskSteps sizes the ask levels from the top of book outwards.
	DefaultAskSteps = []uint64{8, 15, 30, 50, 125, 300, 500, 750, 1000, 1250}
	// DefaultBidSteps sizes the bid levels.
	DefaultBidSteps = []uint64{8, 15, 30, 50, 125, 300, 500, 750, 1000}
)

// ErrOvercommitted is returned when a ladder would commit more than the reserves.
var ErrOvercommitted = errors.New("ladder commits more than reserves")

// Params controls ladder synthesis for one market.
type Params struct {
	BaseLotSize  uint64
	QuoteLotSize uint64
	FeeBps       uint64
	MinBaseLots  uint64
	// BestBid and BestAsk are the best external prices; 0 means none.
	BestBid  uint64
	BestAsk  uint64
	AskSteps []uint64
	BidSteps []uint64
}

func (p Params) validate() error {
	if p.BaseLotSize == 0 || p.QuoteLotSize == 0 {
		return fmt.Errorf("lot sizes must be positive")
	}
	if p.FeeBps >= StepDenominator {
		return fmt.Errorf("fee %d bps out of range", p.FeeBps)
	}
	return nil
}

// Build converts the curve at reserves r into post-only ladder levels.
// Asks are returned in ascending price and bids in descending price.
func Build(c curve.Curve, r curve.Reserves, p Params) (model.Ladder, error) {
	if err := p.validate(); err != nil {
		return model.Ladder{}, err
	}
	if p.MinBaseLots == 0 {
		p.MinBaseLots = 1
	}
	if p.AskSteps == nil {
		p.AskSteps = DefaultAskSteps
	}
	if p.BidSteps == nil {
		p.BidSteps = DefaultBidSteps
	}
	if r.Base == 0 || r.Quote == 0 {
		return model.Ladder{}, curve.ErrEmptyReserves
	}

	asks, err := buildAsks(c, r, p)
	if err != nil {
		return model.Ladder{}, fmt.Errorf("build asks: %w", err)
	}
	bids, err := buildBids(c, r, p)
	if err != nil {
		return model.Ladder{}, fmt.Errorf("build bids: %w", err)
	}

	out := model.Ladder{Asks: asks, Bids: bids}
	base, quote, err := Committed(out, p.BaseLotSize)
	if err != nil {
		return model.Ladder{}, err
	}
	if base > r.Base || quote > r.Quote {
		return model.Ladder{}, fmt.Errorf("%w: base %d/%d quote %d/%d", ErrOvercommitted, base, r.Base, quote, r.Quote)
	}
	return out, nil
}

func buildAsks(c curve.Curve, r curve.Reserves, p Params) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(p.AskSteps))
	last := r
	for _, step := range p.AskSteps {
		size, err := safemath.MulDiv(r.Base, step, StepDenominator)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}
		quoteIn, err := c.QuoteInForBaseOut(last, size)
		if err != nil {
			if errors.Is(err, curve.ErrInsufficientReserve) {
				break
			}
			return nil, err
		}
		last = curve.Reserves{Base: last.Base - size, Quote: last.Quote + quoteIn}

		// price = ceil(quoteIn * baseLot * (1 + fee) / (size * quoteLot))
		price, err := safemath.DivUp(
			safemath.Product(quoteIn, p.BaseLotSize, StepDenominator+p.FeeBps),
			safemath.Product(size, p.QuoteLotSize, StepDenominator),
		)
		if err != nil {
			return nil, err
		}
		if p.BestBid > 0 && price <= p.BestBid {
			price = p.BestBid + 1
		}

		lots := size / p.BaseLotSize
		if lots < p.MinBaseLots || price == 0 {
			continue
		}
		maxQuote, err := lockedQuote(lots, price, p.QuoteLotSize)
		if err != nil {
			return nil, err
		}
		levels = appendLevel(levels, model.Level{Price: price, BaseLots: lots, MaxQuote: maxQuote})
	}
	return levels, nil
}

func buildBids(c curve.Curve, r curve.Reserves, p Params) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(p.BidSteps))
	last := r
	for _, step := range p.BidSteps {
		size, err := safemath.MulDiv(r.Quote, step, StepDenominator)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}
		baseIn, err := c.BaseInForQuoteOut(last, size)
		if err != nil {
			if errors.Is(err, curve.ErrInsufficientReserve) {
				break
			}
			return nil, err
		}
		last = curve.Reserves{Base: last.Base + baseIn, Quote: last.Quote - size}
		if baseIn == 0 {
			continue
		}

		// price = floor(size * baseLot * (1 - fee) / (baseIn * quoteLot))
		num := safemath.Product(size, p.BaseLotSize, StepDenominator-p.FeeBps)
		den := safemath.Product(baseIn, p.QuoteLotSize, StepDenominator)
		price, err := safemath.ToUint64(num.Div(num, den))
		if err != nil {
			return nil, err
		}
		if p.BestAsk > 0 && price >= p.BestAsk {
			price = p.BestAsk - 1
		}

		lots := baseIn / p.BaseLotSize
		if lots < p.MinBaseLots || price == 0 {
			continue
		}
		maxQuote, err := lockedQuote(lots, price, p.QuoteLotSize)
		if err != nil {
			return nil, err
		}
		levels = appendLevel(levels, model.Level{Price: price, BaseLots: lots, MaxQuote: maxQuote})
	}
	return levels, nil
}

// appendLevel merges a level into the previous one when both land on the same tick.
func appendLevel(levels []model.Level, lvl model.Level) []model.Level {
	if n := len(levels); n > 0 && levels[n-1].Price == lvl.Price {
		levels[n-1].BaseLots += lvl.BaseLots
		levels[n-1].MaxQuote += lvl.MaxQuote
		return levels
	}
	return append(levels, lvl)
}

func lockedQuote(lots, price, quoteLot uint64) (uint64, error) {
	notional, err := safemath.Mul(lots, price)
	if err != nil {
		return 0, err
	}
	return safemath.Mul(notional, quoteLot)
}

// Committed returns the base locked by asks and the quote locked by bids.
func Committed(l model.Ladder, baseLotSize uint64) (uint64, uint64, error) {
	var base, quote uint64
	for _, lvl := range l.Asks {
		amount, err := safemath.Mul(lvl.BaseLots, baseLotSize)
		if err != nil {
			return 0, 0, err
		}
		if base, err = safemath.Add(base, amount); err != nil {
			return 0, 0, err
		}
	}
	for _, lvl := range l.Bids {
		var err error
		if quote, err = safemath.Add(quote, lvl.MaxQuote); err != nil {
			return 0, 0, err
		}
	}
	return base, quote, nil
}
