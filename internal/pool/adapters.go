package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"openamm/internal/model"
)

// Ledger holds asset balances, including the pool vaults and LP shares.
type Ledger interface {
	Transfer(ctx context.Context, asset model.Asset, from, to common.Address, amount uint64) error
	Balance(ctx context.Context, asset model.Asset, owner common.Address) (uint64, error)
	Mint(ctx context.Context, asset model.Asset, to common.Address, amount uint64) error
	Burn(ctx context.Context, asset model.Asset, from common.Address, amount uint64) error
}

// OrderBook is the external CLOB market the pool quotes on.
type OrderBook interface {
	Market(ctx context.Context) (model.Market, error)
	InitOpenOrders(ctx context.Context, openOrders common.Address) error
	PlaceOrder(ctx context.Context, openOrders, payer common.Address, req model.OrderRequest) (model.OrderRef, error)
	CancelOrder(ctx context.Context, openOrders common.Address, ref model.OrderRef) error
	SettleFunds(ctx context.Context, openOrders, baseDest, quoteDest common.Address) (uint64, uint64, error)
	LoadBook(ctx context.Context) (model.BookSnapshot, error)
	LoadOpenOrders(ctx context.Context, openOrders common.Address) (model.OpenOrders, error)
}

func adapterErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalAdapterFailure, op, err)
}

// escrow moves funds from a user into a pool vault.
func (e *Engine) escrow(ctx context.Context, asset model.Asset, from, vault common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := e.ledger.Transfer(ctx, asset, from, vault, amount); err != nil {
		return adapterErr("escrow "+string(asset), err)
	}
	return nil
}

// release pays funds out of a pool vault.
func (e *Engine) release(ctx context.Context, asset model.Asset, vault, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := e.ledger.Transfer(ctx, asset, vault, to, amount); err != nil {
		return adapterErr("release "+string(asset), err)
	}
	return nil
}
