package curve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"openamm/internal/model"
	"openamm/internal/safemath"
)

const (
	// ConstantProductFeeBps is the fee baked into constant product ladder prices.
	ConstantProductFeeBps = 20
	// StableFeeBps is the fee baked into stable ladder prices.
	StableFeeBps = 4
	// StableAmp is the amplification coefficient of the stable curve.
	StableAmp = 5
	// FeeDenominator is the basis point denominator.
	FeeDenominator = 10_000
)

var (
	// ErrEmptyReserves is returned when a reserve is zero.
	ErrEmptyReserves = errors.New("empty reserves")
	// ErrInsufficientReserve is returned when a trade would drain a reserve.
	ErrInsufficientReserve = errors.New("trade exceeds reserve")
	// ErrNoConvergence is returned when the stable iteration does not settle.
	ErrNoConvergence = errors.New("curve iteration did not converge")
)

// Reserves is the pool balance a curve prices against.
type Reserves struct {
	Base  uint64
	Quote uint64
}

// Curve prices trades against the pool reserves. Amounts charged to the
// counterparty are rounded up.
type Curve interface {
	Kind() model.CurveKind
	// QuoteInForBaseOut returns the quote the pool must receive to give up baseOut.
	QuoteInForBaseOut(r Reserves, baseOut uint64) (uint64, error)
	// BaseInForQuoteOut returns the base the pool must receive to give up quoteOut.
	BaseInForQuoteOut(r Reserves, quoteOut uint64) (uint64, error)
}

// New returns the curve for kind. Decimals are only used by the stable curve.
func New(kind model.CurveKind, baseDecimals, quoteDecimals uint8) (Curve, error) {
	switch kind {
	case model.ConstantProduct:
		return constantProduct{}, nil
	case model.Stable:
		return newStableSwap(StableAmp, baseDecimals, quoteDecimals)
	default:
		return nil, fmt.Errorf("unknown curve kind %d", uint8(kind))
	}
}

// FeeBps returns the ladder fee for kind.
func FeeBps(kind model.CurveKind) uint64 {
	if kind == model.Stable {
		return StableFeeBps
	}
	return ConstantProductFeeBps
}

type constantProduct struct{}

func (constantProduct) Kind() model.CurveKind { return model.ConstantProduct }

func (c constantProduct) QuoteInForBaseOut(r Reserves, baseOut uint64) (uint64, error) {
	return c.amountIn(r.Base, r.Quote, baseOut)
}

func (c constantProduct) BaseInForQuoteOut(r Reserves, quoteOut uint64) (uint64, error) {
	return c.amountIn(r.Quote, r.Base, quoteOut)
}

// amountIn solves x*y = k for the input needed to remove out from x.
func (constantProduct) amountIn(x, y, out uint64) (uint64, error) {
	if x == 0 || y == 0 {
		return 0, ErrEmptyReserves
	}
	if out >= x {
		return 0, ErrInsufficientReserve
	}
	k := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	end, err := safemath.DivUp(k, uint256.NewInt(x-out))
	if err != nil {
		return 0, err
	}
	return end - y, nil
}

// SizeAtPrice returns the largest amount the pool trades on side at an average
// price, in quote per base, at least as good for a taker as priceNum/priceDen.
// For asks the size is base sold; for bids it is quote spent.
func SizeAtPrice(c Curve, r Reserves, side model.Side, priceNum, priceDen uint64) (uint64, error) {
	if priceDen == 0 {
		return 0, safemath.ErrDivisionByZero
	}
	if r.Base == 0 || r.Quote == 0 {
		return 0, ErrEmptyReserves
	}

	acceptable := func(size uint64) (bool, error) {
		switch side {
		case model.Ask:
			quoteIn, err := c.QuoteInForBaseOut(r, size)
			if err != nil {
				return false, err
			}
			// quoteIn/size <= num/den
			lhs := new(uint256.Int).Mul(uint256.NewInt(quoteIn), uint256.NewInt(priceDen))
			rhs := new(uint256.Int).Mul(uint256.NewInt(size), uint256.NewInt(priceNum))
			return !lhs.Gt(rhs), nil
		default:
			baseIn, err := c.BaseInForQuoteOut(r, size)
			if err != nil {
				return false, err
			}
			// size/baseIn >= num/den
			lhs := new(uint256.Int).Mul(uint256.NewInt(size), uint256.NewInt(priceDen))
			rhs := new(uint256.Int).Mul(uint256.NewInt(baseIn), uint256.NewInt(priceNum))
			return !lhs.Lt(rhs), nil
		}
	}

	hi := r.Quote - 1
	if side == model.Ask {
		hi = r.Base - 1
	}
	var lo uint64
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ok, err := acceptable(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
