package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"openamm/internal/model"
	"openamm/internal/safemath"
)

const (
	stableCoins     = 2
	stableMaxIter   = 255
	maxDecimalsSkew = 12
)

// stableSwap is the two-asset invariant 4A(x+y) + D = 4AD + D^3/(4xy),
// solved with integer Newton iteration on decimal-normalized reserves.
type stableSwap struct {
	ann        *uint256.Int
	baseScale  uint64
	quoteScale uint64
}

func newStableSwap(amp uint64, baseDecimals, quoteDecimals uint8) (*stableSwap, error) {
	if amp == 0 {
		return nil, fmt.Errorf("amplification must be positive")
	}
	hi := baseDecimals
	if quoteDecimals > hi {
		hi = quoteDecimals
	}
	lo := baseDecimals
	if quoteDecimals < lo {
		lo = quoteDecimals
	}
	if hi-lo > maxDecimalsSkew {
		return nil, fmt.Errorf("decimals skew %d exceeds %d", hi-lo, maxDecimalsSkew)
	}
	baseScale, err := safemath.Pow10(hi - baseDecimals)
	if err != nil {
		return nil, err
	}
	quoteScale, err := safemath.Pow10(hi - quoteDecimals)
	if err != nil {
		return nil, err
	}
	return &stableSwap{
		ann:        uint256.NewInt(amp * stableCoins * stableCoins),
		baseScale:  baseScale,
		quoteScale: quoteScale,
	}, nil
}

func (s *stableSwap) Kind() model.CurveKind { return model.Stable }

func (s *stableSwap) QuoteInForBaseOut(r Reserves, baseOut uint64) (uint64, error) {
	return s.amountIn(r.Base, s.baseScale, r.Quote, s.quoteScale, baseOut)
}

func (s *stableSwap) BaseInForQuoteOut(r Reserves, quoteOut uint64) (uint64, error) {
	return s.amountIn(r.Quote, s.quoteScale, r.Base, s.baseScale, quoteOut)
}

func (s *stableSwap) amountIn(xRaw, xScale, yRaw, yScale, out uint64) (uint64, error) {
	if xRaw == 0 || yRaw == 0 {
		return 0, ErrEmptyReserves
	}
	if out >= xRaw {
		return 0, ErrInsufficientReserve
	}
	if out == 0 {
		return 0, nil
	}

	x := safemath.Product(xRaw, xScale)
	y := safemath.Product(yRaw, yScale)
	d, err := s.invariant(x, y)
	if err != nil {
		return 0, err
	}

	xNext := new(uint256.Int).Sub(x, safemath.Product(out, xScale))
	yNext, err := s.solveY(xNext, d)
	if err != nil {
		return 0, err
	}
	// Charge at least one unit even when rounding leaves y unchanged.
	dy := new(uint256.Int)
	if yNext.Gt(y) {
		dy.Sub(yNext, y)
	}
	dy.AddUint64(dy, 1)
	return safemath.DivUp(dy, uint256.NewInt(yScale))
}

// invariant computes D for normalized reserves x and y.
func (s *stableSwap) invariant(x, y *uint256.Int) (*uint256.Int, error) {
	n := uint256.NewInt(stableCoins)
	sum := new(uint256.Int).Add(x, y)
	if sum.IsZero() {
		return new(uint256.Int), nil
	}
	// Dividing by the smaller reserve first keeps the floor rounding from
	// oscillating on imbalanced pools.
	small, large := x, y
	if small.Gt(large) {
		small, large = large, small
	}

	d := sum.Clone()
	annMinusOne := new(uint256.Int).SubUint64(s.ann, 1)
	annSum := new(uint256.Int).Mul(s.ann, sum)
	for i := 0; i < stableMaxIter; i++ {
		dp := d.Clone()
		dp.Mul(dp, d)
		dp.Div(dp, new(uint256.Int).Mul(small, n))
		dp.Mul(dp, d)
		dp.Div(dp, new(uint256.Int).Mul(large, n))

		prev := d.Clone()
		num := new(uint256.Int).Mul(dp, n)
		num.Add(num, annSum)
		num.Mul(num, d)
		den := new(uint256.Int).Mul(annMinusOne, d)
		den.Add(den, new(uint256.Int).Mul(dp, uint256.NewInt(stableCoins+1)))
		d.Div(num, den)

		if withinOne(d, prev) {
			return d, nil
		}
	}
	return nil, ErrNoConvergence
}

// solveY returns the other reserve that keeps D given one reserve at x.
func (s *stableSwap) solveY(x, d *uint256.Int) (*uint256.Int, error) {
	n := uint256.NewInt(stableCoins)
	c := new(uint256.Int).Mul(d, d)
	c.Div(c, new(uint256.Int).Mul(x, n))
	c.Mul(c, d)
	c.Div(c, new(uint256.Int).Mul(s.ann, n))
	b := new(uint256.Int).Div(d, s.ann)
	b.Add(b, x)

	y := d.Clone()
	for i := 0; i < stableMaxIter; i++ {
		prev := y.Clone()
		num := new(uint256.Int).Mul(y, y)
		num.Add(num, c)
		den := new(uint256.Int).Mul(y, n)
		den.Add(den, b)
		if !den.Gt(d) {
			return nil, ErrNoConvergence
		}
		den.Sub(den, d)
		y.Div(num, den)

		if withinOne(y, prev) {
			return y, nil
		}
	}
	return nil, ErrNoConvergence
}

func withinOne(a, b *uint256.Int) bool {
	diff := new(uint256.Int)
	if a.Gt(b) {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return !diff.Gt(uint256.NewInt(1))
}
