package clob

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"openamm/internal/model"
)

// InitOpenOrders registers an open-orders account. Re-initializing is a no-op.
func (b *Book) InitOpenOrders(ctx context.Context, oo common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[oo]; ok {
		return nil
	}
	b.accounts[oo] = &account{owner: oo, orders: make(map[uint64]*order)}
	b.logger.Debug("open orders initialized", zap.String("account", oo.Hex()))
	return nil
}

// LoadOpenOrders returns the balances and resting orders of an account.
func (b *Book) LoadOpenOrders(ctx context.Context, oo common.Address) (model.OpenOrders, error) {
	if err := ctx.Err(); err != nil {
		return model.OpenOrders{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	acct, ok := b.accounts[oo]
	if !ok {
		return model.OpenOrders{}, fmt.Errorf("load %s: %w", oo.Hex(), ErrUnknownAccount)
	}
	out := model.OpenOrders{
		Address:    oo,
		BaseFree:   acct.baseFree,
		BaseTotal:  acct.baseFree + acct.baseLocked,
		QuoteFree:  acct.quoteFree,
		QuoteTotal: acct.quoteFree + acct.quoteLocked,
		Orders:     make([]model.RestingOrder, 0, len(acct.orders)),
	}
	for _, o := range acct.orders {
		out.Orders = append(out.Orders, model.RestingOrder{
			OrderRef: model.OrderRef{OrderID: o.id, ClientOrderID: o.clientID, Side: o.side},
			Price:    o.price,
			BaseLots: o.lots,
		})
	}
	sort.Slice(out.Orders, func(i, j int) bool {
		return out.Orders[i].OrderID < out.Orders[j].OrderID
	})
	return out, nil
}

// CancelOrder pulls a resting order and frees its locked funds.
func (b *Book) CancelOrder(ctx context.Context, oo common.Address, ref model.OrderRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[oo]
	if !ok {
		return fmt.Errorf("cancel on %s: %w", oo.Hex(), ErrUnknownAccount)
	}
	o, ok := acct.orders[ref.OrderID]
	if !ok {
		return fmt.Errorf("cancel order %d: %w", ref.OrderID, ErrOrderNotFound)
	}
	b.remove(o)
	b.release(acct, o)
	b.logger.Debug("order cancelled",
		zap.String("account", oo.Hex()),
		zap.Uint64("order_id", o.id),
		zap.Uint64("client_order_id", o.clientID),
	)
	return nil
}

// SettleFunds pays every free balance of the account out to the destinations.
func (b *Book) SettleFunds(ctx context.Context, oo, baseDest, quoteDest common.Address) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[oo]
	if !ok {
		return 0, 0, fmt.Errorf("settle %s: %w", oo.Hex(), ErrUnknownAccount)
	}
	baseOut, quoteOut := acct.baseFree, acct.quoteFree
	if baseOut > 0 {
		if err := b.ledger.Transfer(ctx, b.market.BaseAsset, b.baseVault, baseDest, baseOut); err != nil {
			return 0, 0, fmt.Errorf("settle base: %w", err)
		}
		acct.baseFree = 0
	}
	if quoteOut > 0 {
		if err := b.ledger.Transfer(ctx, b.market.QuoteAsset, b.quoteVault, quoteDest, quoteOut); err != nil {
			return baseOut, 0, fmt.Errorf("settle quote: %w", err)
		}
		acct.quoteFree = 0
	}
	return baseOut, quoteOut, nil
}

// release returns whatever an order still locks to the free balance.
func (b *Book) release(acct *account, o *order) {
	if o.side == model.Ask {
		acct.baseLocked -= o.locked
		acct.baseFree += o.locked
	} else {
		acct.quoteLocked -= o.locked
		acct.quoteFree += o.locked
	}
	o.locked = 0
	delete(acct.orders, o.id)
}
