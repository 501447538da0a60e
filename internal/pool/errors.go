package pool

import "errors"

var (
	ErrInvalidCurveParameters    = errors.New("invalid curve parameters")
	ErrMarketAlreadyHasPool      = errors.New("market already has a pool for this curve")
	ErrSlippageExceeded          = errors.New("slippage exceeded")
	ErrInsufficientPoolLiquidity = errors.New("insufficient pool liquidity")
	ErrStaleReserveSnapshot      = errors.New("stale reserve snapshot")
	ErrExternalAdapterFailure    = errors.New("external adapter failure")

	ErrPoolNotFound       = errors.New("pool not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMarketMakingPaused = errors.New("market making paused")
	ErrMarketMakingActive = errors.New("market making active")
	ErrOpenOrdersLocked   = errors.New("open orders still hold funds")
)
