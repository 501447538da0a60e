package clob

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"openamm/internal/model"
	"openamm/internal/safemath"
)

const feeDenominator = 10_000

// Execution summarizes a taker order sent through Take.
type Execution struct {
	OrderID      uint64
	FilledLots   uint64
	BaseSettled  uint64
	QuoteSettled uint64
}

// PlaceOrder locks funds from the account's free balance, topping up from
// payer, and submits the order. Limit remainders rest, IOC remainders are
// cancelled and post-only orders are rejected if they would cross.
func (b *Book) PlaceOrder(ctx context.Context, oo, payer common.Address, req model.OrderRequest) (model.OrderRef, error) {
	ref, _, err := b.placeOrder(ctx, oo, payer, req)
	return ref, err
}

// Take sends an IOC order for taker and settles the proceeds back to it.
func (b *Book) Take(ctx context.Context, taker common.Address, side model.Side, price, lots uint64) (Execution, error) {
	if err := b.InitOpenOrders(ctx, taker); err != nil {
		return Execution{}, err
	}
	ref, filled, err := b.placeOrder(ctx, taker, taker, model.OrderRequest{
		Side:     side,
		Price:    price,
		BaseLots: lots,
		Type:     model.IOC,
	})
	if err != nil {
		return Execution{}, err
	}
	base, quote, err := b.SettleFunds(ctx, taker, taker, taker)
	if err != nil {
		return Execution{}, err
	}
	return Execution{OrderID: ref.OrderID, FilledLots: filled, BaseSettled: base, QuoteSettled: quote}, nil
}

func (b *Book) placeOrder(ctx context.Context, oo, payer common.Address, req model.OrderRequest) (model.OrderRef, uint64, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderRef{}, 0, err
	}
	if req.BaseLots == 0 || req.Price == 0 {
		return model.OrderRef{}, 0, fmt.Errorf("%w: price %d lots %d", ErrInvalidOrder, req.Price, req.BaseLots)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[oo]
	if !ok {
		return model.OrderRef{}, 0, fmt.Errorf("place on %s: %w", oo.Hex(), ErrUnknownAccount)
	}
	if req.Type == model.PostOnly && b.crosses(req.Side, req.Price) {
		return model.OrderRef{}, 0, fmt.Errorf("%s at %d: %w", req.Side, req.Price, ErrWouldCross)
	}

	lock, err := b.lockAmount(req)
	if err != nil {
		return model.OrderRef{}, 0, err
	}
	if err := b.fund(ctx, acct, payer, req.Side, lock); err != nil {
		return model.OrderRef{}, 0, err
	}

	o := &order{
		id:       b.nextID,
		clientID: req.ClientOrderID,
		owner:    oo,
		side:     req.Side,
		price:    req.Price,
		lots:     req.BaseLots,
		locked:   lock,
		seq:      b.nextSeq,
	}
	b.nextID++
	b.nextSeq++
	acct.orders[o.id] = o

	var filled uint64
	if req.Type != model.PostOnly {
		filled = b.match(acct, o)
	}

	ref := model.OrderRef{OrderID: o.id, ClientOrderID: o.clientID, Side: o.side}
	if o.lots == 0 || req.Type == model.IOC {
		b.release(acct, o)
	} else {
		b.trimLock(acct, o)
		b.insert(o)
	}

	b.logger.Debug("order placed",
		zap.String("account", oo.Hex()),
		zap.Stringer("side", req.Side),
		zap.Stringer("type", req.Type),
		zap.Uint64("price", req.Price),
		zap.Uint64("lots", req.BaseLots),
		zap.Uint64("filled", filled),
	)
	return ref, filled, nil
}

func (b *Book) crosses(side model.Side, price uint64) bool {
	if side == model.Ask {
		best := b.bestBid()
		return best != 0 && best >= price
	}
	best := b.bestAsk()
	return best != 0 && best <= price
}

func (b *Book) lockAmount(req model.OrderRequest) (uint64, error) {
	if req.Side == model.Ask {
		base, err := safemath.Mul(req.BaseLots, b.market.BaseLotSize)
		if err != nil {
			return 0, fmt.Errorf("%w: ask size: %w", ErrInvalidOrder, err)
		}
		return base, nil
	}
	quote, err := safemath.ToUint64(safemath.Product(req.BaseLots, req.Price, b.market.QuoteLotSize))
	if err != nil {
		return 0, fmt.Errorf("%w: bid notional: %w", ErrInvalidOrder, err)
	}
	if req.MaxQuote != 0 && quote > req.MaxQuote {
		return 0, fmt.Errorf("%w: bid needs %d quote, max %d", ErrInvalidOrder, quote, req.MaxQuote)
	}
	return quote, nil
}

// fund moves amount into the locked balance, spending free funds first.
func (b *Book) fund(ctx context.Context, acct *account, payer common.Address, side model.Side, amount uint64) error {
	free, asset, vault := &acct.baseFree, b.market.BaseAsset, b.baseVault
	locked := &acct.baseLocked
	if side == model.Bid {
		free, asset, vault = &acct.quoteFree, b.market.QuoteAsset, b.quoteVault
		locked = &acct.quoteLocked
	}
	fromFree := min(*free, amount)
	if topUp := amount - fromFree; topUp > 0 {
		if err := b.ledger.Transfer(ctx, asset, payer, vault, topUp); err != nil {
			return fmt.Errorf("fund %s order: %w", side, err)
		}
	}
	*free -= fromFree
	*locked += amount
	return nil
}

// match crosses o against the opposite side at maker prices.
func (b *Book) match(taker *account, o *order) uint64 {
	var filled uint64
	for o.lots > 0 {
		var maker *order
		if o.side == model.Bid {
			if len(b.asks) == 0 || b.asks[0].price > o.price {
				break
			}
			maker = b.asks[0]
		} else {
			if len(b.bids) == 0 || b.bids[0].price < o.price {
				break
			}
			maker = b.bids[0]
		}

		lots := min(o.lots, maker.lots)
		b.fill(taker, o, maker, lots)
		filled += lots

		if maker.lots == 0 {
			b.remove(maker)
			b.release(b.accounts[maker.owner], maker)
		}
	}
	return filled
}

func (b *Book) fill(taker *account, o, maker *order, lots uint64) {
	base := lots * b.market.BaseLotSize
	quote := lots * maker.price * b.market.QuoteLotSize
	makerAcct := b.accounts[maker.owner]

	if maker.side == model.Ask {
		maker.locked -= base
		makerAcct.baseLocked -= base
		makerAcct.quoteFree += quote

		o.locked -= quote
		taker.quoteLocked -= quote
		fee := b.takerFeeOn(base)
		taker.baseFree += base - fee
		b.feesBase += fee
	} else {
		maker.locked -= quote
		makerAcct.quoteLocked -= quote
		makerAcct.baseFree += base

		o.locked -= base
		taker.baseLocked -= base
		fee := b.takerFeeOn(quote)
		taker.quoteFree += quote - fee
		b.feesQuote += fee
	}
	maker.lots -= lots
	o.lots -= lots

	b.logger.Debug("fill",
		zap.Uint64("maker_order", maker.id),
		zap.Uint64("taker_order", o.id),
		zap.Uint64("price", maker.price),
		zap.Uint64("lots", lots),
	)
}

// trimLock frees quote a bid no longer needs after filling below its limit.
func (b *Book) trimLock(acct *account, o *order) {
	if o.side != model.Bid {
		return
	}
	need := o.lots * o.price * b.market.QuoteLotSize
	if o.locked > need {
		excess := o.locked - need
		o.locked = need
		acct.quoteLocked -= excess
		acct.quoteFree += excess
	}
}

func (b *Book) takerFeeOn(amount uint64) uint64 {
	fee, _ := safemath.MulDiv(amount, b.takerFee, feeDenominator)
	return fee
}
