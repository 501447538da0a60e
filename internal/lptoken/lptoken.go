package lptoken

import (
	"errors"
	"fmt"

	"openamm/internal/safemath"
)

// MinimumLiquidity is the LP amount permanently withheld from the first mint.
const MinimumLiquidity = 1

var (
	// ErrZeroAmount is returned when an input amount is zero.
	ErrZeroAmount = errors.New("zero amount")
	// ErrSlippage is returned when the pool ratio cannot satisfy the caller's bounds.
	ErrSlippage = errors.New("deposit ratio outside bounds")
	// ErrExceedsSupply is returned when redeeming more LP than exists.
	ErrExceedsSupply = errors.New("lp amount exceeds supply")
)

// InitialShares returns the LP minted for the first deposit into an empty pool.
func InitialShares(base, quote uint64) (uint64, error) {
	if base == 0 || quote == 0 {
		return 0, ErrZeroAmount
	}
	root := safemath.SqrtProduct(base, quote)
	if root <= MinimumLiquidity {
		return 0, fmt.Errorf("initial liquidity %d too small", root)
	}
	return root - MinimumLiquidity, nil
}

// SharesForDeposit returns the LP minted for adding (db, dq) to reserves (rb, rq).
// The smaller of the two proportional claims wins.
func SharesForDeposit(db, dq, rb, rq, supply uint64) (uint64, error) {
	if db == 0 || dq == 0 {
		return 0, ErrZeroAmount
	}
	if supply == 0 || rb == 0 || rq == 0 {
		return InitialShares(db, dq)
	}
	byBase, err := safemath.MulDiv(supply, db, rb)
	if err != nil {
		return 0, err
	}
	byQuote, err := safemath.MulDiv(supply, dq, rq)
	if err != nil {
		return 0, err
	}
	if byQuote < byBase {
		return byQuote, nil
	}
	return byBase, nil
}

// DepositAmounts picks the amounts actually taken from a depositor offering at
// most (maxBase, maxQuote) so the pool ratio rb:rq is preserved. The
// counterpart amount is rounded up in the pool's favor.
func DepositAmounts(maxBase, maxQuote, minBase, minQuote, rb, rq uint64) (uint64, uint64, error) {
	if maxBase == 0 || maxQuote == 0 {
		return 0, 0, ErrZeroAmount
	}
	if rb == 0 || rq == 0 {
		return maxBase, maxQuote, nil
	}
	if sameRatio(maxBase, maxQuote, rb, rq) {
		return maxBase, maxQuote, nil
	}

	optimalQuote, err := safemath.MulDivUp(maxBase, rq, rb)
	if err != nil {
		return 0, 0, err
	}
	if optimalQuote <= maxQuote {
		if optimalQuote < minQuote {
			return 0, 0, fmt.Errorf("%w: quote %d below minimum %d", ErrSlippage, optimalQuote, minQuote)
		}
		return maxBase, optimalQuote, nil
	}

	optimalBase, err := safemath.MulDivUp(maxQuote, rb, rq)
	if err != nil {
		return 0, 0, err
	}
	if optimalBase > maxBase {
		return 0, 0, fmt.Errorf("%w: base %d above maximum %d", ErrSlippage, optimalBase, maxBase)
	}
	if optimalBase < minBase {
		return 0, 0, fmt.Errorf("%w: base %d below minimum %d", ErrSlippage, optimalBase, minBase)
	}
	return optimalBase, maxQuote, nil
}

// AmountsForWithdraw returns the reserves redeemed by burning lp, rounded down.
func AmountsForWithdraw(lp, rb, rq, supply uint64) (uint64, uint64, error) {
	if lp == 0 {
		return 0, 0, ErrZeroAmount
	}
	if lp > supply {
		return 0, 0, fmt.Errorf("%w: %d > %d", ErrExceedsSupply, lp, supply)
	}
	baseOut, err := safemath.MulDiv(lp, rb, supply)
	if err != nil {
		return 0, 0, err
	}
	quoteOut, err := safemath.MulDiv(lp, rq, supply)
	if err != nil {
		return 0, 0, err
	}
	return baseOut, quoteOut, nil
}

// sameRatio reports whether a:b equals c:d exactly.
func sameRatio(a, b, c, d uint64) bool {
	left := safemath.Product(a, d)
	right := safemath.Product(b, c)
	return left.Eq(right)
}
