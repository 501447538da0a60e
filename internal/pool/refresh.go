package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"openamm/internal/curve"
	"openamm/internal/ladder"
	"openamm/internal/model"
	"openamm/internal/safemath"
)

// RefreshResult reports one refresh cycle.
type RefreshResult struct {
	Ladder       model.Ladder
	Fills        model.FillSummary
	CrankerBase  uint64
	CrankerQuote uint64
	Paused       bool
	Pool         model.Pool
}

type reconciliation struct {
	fills model.FillSummary
	open  model.OpenOrders
}

// Refresh folds fills into the reserves, replaces the whole ladder and pays
// the accumulated refunds to cranker.
func (e *Engine) Refresh(ctx context.Context, addr, cranker common.Address) (res RefreshResult, err error) {
	defer func() { e.cfg.Metrics.Transition("refresh", err) }()

	prev, err := e.Pool(ctx, addr)
	if err != nil {
		return RefreshResult{}, err
	}
	if !prev.MarketMakingActive {
		return RefreshResult{}, ErrMarketMakingPaused
	}

	p := prev.Clone()
	rec, err := e.reconcile(ctx, &p, true)
	if err != nil {
		return RefreshResult{}, err
	}
	if err := e.cancelAndSettle(ctx, &p, rec.open); err != nil {
		return RefreshResult{}, e.fail(ctx, prev, &p, model.EventRefresh, err)
	}

	ev := e.newEvent(prev, p, model.EventRefresh)
	ev.Fills = rec.fills
	if !p.MarketMakingActive {
		if err := e.commit(ctx, prev, &p, ev); err != nil {
			return RefreshResult{}, err
		}
		e.logger.Warn("market making paused",
			zap.String("pool", addr.Hex()),
			zap.Uint64("base", p.BaseAmount),
			zap.Uint64("quote", p.QuoteAmount),
		)
		return RefreshResult{Fills: rec.fills, Paused: true, Pool: p}, nil
	}

	placed, err := e.placeLadder(ctx, &p)
	if err != nil {
		return RefreshResult{}, e.fail(ctx, prev, &p, model.EventRefresh, err)
	}

	crankerBase, crankerQuote := p.RefundBaseAmount, p.RefundQuoteAmount
	if err := e.release(ctx, p.BaseAsset, p.BaseVault, cranker, crankerBase); err != nil {
		return RefreshResult{}, e.fail(ctx, prev, &p, model.EventRefresh, err)
	}
	p.RefundBaseAmount = 0
	if err := e.release(ctx, p.QuoteAsset, p.QuoteVault, cranker, crankerQuote); err != nil {
		return RefreshResult{}, e.fail(ctx, prev, &p, model.EventRefresh, err)
	}
	p.RefundQuoteAmount = 0

	ev.OrdersPlaced = placed.Levels()
	ev.CrankerBase = crankerBase
	ev.CrankerQuote = crankerQuote
	if err := e.commit(ctx, prev, &p, ev); err != nil {
		return RefreshResult{}, err
	}

	e.logger.Info("pool refreshed",
		zap.String("pool", addr.Hex()),
		zap.String("cranker", cranker.Hex()),
		zap.Uint64("base", p.BaseAmount),
		zap.Uint64("quote", p.QuoteAmount),
		zap.Uint64("base_sold", rec.fills.BaseSold),
		zap.Uint64("base_received", rec.fills.BaseReceived),
		zap.Uint64("cranker_base", crankerBase),
		zap.Uint64("cranker_quote", crankerQuote),
		zap.Int("asks", len(placed.Asks)),
		zap.Int("bids", len(placed.Bids)),
	)
	return RefreshResult{
		Ladder:       placed,
		Fills:        rec.fills,
		CrankerBase:  crankerBase,
		CrankerQuote: crankerQuote,
		Pool:         p,
	}, nil
}

// SyncFills folds fills into the reserves without touching resting orders.
// Nothing is committed when no fill happened.
func (e *Engine) SyncFills(ctx context.Context, addr common.Address) (fills model.FillSummary, err error) {
	defer func() { e.cfg.Metrics.Transition("sync", err) }()

	prev, err := e.Pool(ctx, addr)
	if err != nil {
		return model.FillSummary{}, err
	}
	p := prev.Clone()
	rec, err := e.reconcile(ctx, &p, false)
	if err != nil {
		return model.FillSummary{}, err
	}
	if rec.fills.Empty() {
		return rec.fills, nil
	}

	ev := e.newEvent(prev, p, model.EventSync)
	ev.Fills = rec.fills
	if err := e.commit(ctx, prev, &p, ev); err != nil {
		return model.FillSummary{}, err
	}
	e.logger.Debug("fills synced",
		zap.String("pool", addr.Hex()),
		zap.Uint64("base_sold", rec.fills.BaseSold),
		zap.Uint64("base_received", rec.fills.BaseReceived),
	)
	return rec.fills, nil
}

// reconcile compares the placed ladder with what still rests on the book and
// books the difference as fills. It only reads external state.
func (e *Engine) reconcile(ctx context.Context, p *model.Pool, detectPause bool) (reconciliation, error) {
	oo, err := e.book.LoadOpenOrders(ctx, p.OpenOrders)
	if err != nil {
		return reconciliation{}, adapterErr("load open orders", err)
	}
	resting := make(map[uint64]model.RestingOrder, len(oo.Orders))
	for _, o := range oo.Orders {
		resting[o.ClientOrderID] = o
	}

	if detectPause && (deepestMissing(p.PlacedAsks, resting) || deepestMissing(p.PlacedBids, resting)) {
		p.MarketMakingActive = false
	}

	var fills model.FillSummary
	if p.PlacedAsks, err = e.applyFills(p, model.Ask, p.PlacedAsks, resting, &fills); err != nil {
		return reconciliation{}, err
	}
	if p.PlacedBids, err = e.applyFills(p, model.Bid, p.PlacedBids, resting, &fills); err != nil {
		return reconciliation{}, err
	}
	if err := e.checkHoldings(ctx, *p, oo); err != nil {
		return reconciliation{}, err
	}
	return reconciliation{fills: fills, open: oo}, nil
}

// deepestMissing reports whether the last placed order of a side is gone.
func deepestMissing(placed []model.PlacedOrder, resting map[uint64]model.RestingOrder) bool {
	if len(placed) == 0 {
		return false
	}
	_, ok := resting[placed[len(placed)-1].ClientOrderID]
	return !ok
}

func (e *Engine) applyFills(p *model.Pool, side model.Side, placed []model.PlacedOrder, resting map[uint64]model.RestingOrder, fills *model.FillSummary) ([]model.PlacedOrder, error) {
	out := make([]model.PlacedOrder, 0, len(placed))
	for _, po := range placed {
		var remaining uint64
		if r, ok := resting[po.ClientOrderID]; ok {
			if r.Side != side || r.BaseLots > po.BaseLots {
				return nil, fmt.Errorf("%w: order %d rests with %d lots, placed %d",
					ErrStaleReserveSnapshot, po.ClientOrderID, r.BaseLots, po.BaseLots)
			}
			remaining = r.BaseLots
		}
		if filled := po.BaseLots - remaining; filled > 0 {
			var err error
			if side == model.Ask {
				err = e.applyAskFill(p, po.Price, filled, fills)
			} else {
				err = e.applyBidFill(p, po.Price, filled, fills)
			}
			if err != nil {
				return nil, fmt.Errorf("apply fill of order %d: %w", po.ClientOrderID, err)
			}
		}
		po.BaseLots = remaining
		out = append(out, po)
	}
	return out, nil
}

// applyAskFill books base sold for quote; the refund share of the quote is
// held back from the reserves.
func (e *Engine) applyAskFill(p *model.Pool, price, lots uint64, fills *model.FillSummary) error {
	base, err := safemath.Mul(lots, p.BaseLotSize)
	if err != nil {
		return err
	}
	quote, err := safemath.ToUint64(safemath.Product(lots, price, p.QuoteLotSize))
	if err != nil {
		return err
	}
	refund, err := safemath.MulDiv(quote, e.cfg.RefundBps, refundDenominator)
	if err != nil {
		return err
	}
	if base > p.BaseAmount {
		return fmt.Errorf("%w: ask fill of %d exceeds base reserve %d", ErrStaleReserveSnapshot, base, p.BaseAmount)
	}
	next, err := safemath.Add(p.QuoteAmount, quote-refund)
	if err != nil {
		return err
	}
	volume, err := safemath.Add(p.CumulativeQuoteVolume, quote)
	if err != nil {
		return err
	}
	p.BaseAmount -= base
	p.QuoteAmount = next
	p.RefundQuoteAmount += refund
	p.CumulativeQuoteVolume = volume

	fills.BaseSold += base
	fills.QuoteReceived += quote
	fills.RefundQuote += refund
	return nil
}

func (e *Engine) applyBidFill(p *model.Pool, price, lots uint64, fills *model.FillSummary) error {
	base, err := safemath.Mul(lots, p.BaseLotSize)
	if err != nil {
		return err
	}
	quote, err := safemath.ToUint64(safemath.Product(lots, price, p.QuoteLotSize))
	if err != nil {
		return err
	}
	refund, err := safemath.MulDiv(base, e.cfg.RefundBps, refundDenominator)
	if err != nil {
		return err
	}
	if quote > p.QuoteAmount {
		return fmt.Errorf("%w: bid fill of %d exceeds quote reserve %d", ErrStaleReserveSnapshot, quote, p.QuoteAmount)
	}
	next, err := safemath.Add(p.BaseAmount, base-refund)
	if err != nil {
		return err
	}
	volume, err := safemath.Add(p.CumulativeBaseVolume, base)
	if err != nil {
		return err
	}
	p.QuoteAmount -= quote
	p.BaseAmount = next
	p.RefundBaseAmount += refund
	p.CumulativeBaseVolume = volume

	fills.BaseReceived += base
	fills.QuoteSpent += quote
	fills.RefundBase += refund
	return nil
}

// checkHoldings verifies the vaults plus the open-orders account still cover
// the reconciled reserves and pending refunds.
func (e *Engine) checkHoldings(ctx context.Context, p model.Pool, oo model.OpenOrders) error {
	baseVault, quoteVault, err := e.vaultBalances(ctx, p)
	if err != nil {
		return err
	}
	if err := covers("base", baseVault, oo.BaseTotal, p.BaseAmount, p.RefundBaseAmount); err != nil {
		return err
	}
	return covers("quote", quoteVault, oo.QuoteTotal, p.QuoteAmount, p.RefundQuoteAmount)
}

func covers(asset string, vault, openOrders, reserve, refund uint64) error {
	have, err := safemath.Add(vault, openOrders)
	if err != nil {
		return fmt.Errorf("%w: %s holdings overflow", ErrStaleReserveSnapshot, asset)
	}
	need, err := safemath.Add(reserve, refund)
	if err != nil {
		return fmt.Errorf("%w: %s reserves overflow", ErrStaleReserveSnapshot, asset)
	}
	if have < need {
		return fmt.Errorf("%w: %s holdings %d below reserves %d", ErrStaleReserveSnapshot, asset, have, need)
	}
	return nil
}

// cancelAndSettle pulls every resting order of the pool and sweeps the freed
// funds back into the vaults.
func (e *Engine) cancelAndSettle(ctx context.Context, p *model.Pool, oo model.OpenOrders) error {
	for _, o := range oo.Orders {
		if err := e.book.CancelOrder(ctx, p.OpenOrders, o.OrderRef); err != nil {
			return adapterErr(fmt.Sprintf("cancel order %d", o.OrderID), err)
		}
		// A later failure commits p, so only orders still resting stay recorded.
		p.PlacedAsks = dropPlaced(p.PlacedAsks, o.ClientOrderID)
		p.PlacedBids = dropPlaced(p.PlacedBids, o.ClientOrderID)
	}
	p.PlacedAsks = nil
	p.PlacedBids = nil

	if _, _, err := e.book.SettleFunds(ctx, p.OpenOrders, p.BaseVault, p.QuoteVault); err != nil {
		return adapterErr("settle funds", err)
	}
	return nil
}

func dropPlaced(placed []model.PlacedOrder, clientID uint64) []model.PlacedOrder {
	for i, po := range placed {
		if po.ClientOrderID == clientID {
			return append(placed[:i:i], placed[i+1:]...)
		}
	}
	return placed
}

// placeLadder builds the ladder for the current reserves and posts it.
// Each accepted order is recorded before the next is sent.
func (e *Engine) placeLadder(ctx context.Context, p *model.Pool) (model.Ladder, error) {
	if !p.MarketMakingActive || p.BaseAmount == 0 || p.QuoteAmount == 0 {
		return model.Ladder{}, nil
	}
	book, err := e.book.LoadBook(ctx)
	if err != nil {
		return model.Ladder{}, adapterErr("load book", err)
	}
	c, err := curve.New(p.CurveKind, p.BaseDecimals, p.QuoteDecimals)
	if err != nil {
		return model.Ladder{}, fmt.Errorf("%w: %w", ErrInvalidCurveParameters, err)
	}
	l, err := ladder.Build(c, curve.Reserves{Base: p.BaseAmount, Quote: p.QuoteAmount}, e.ladderParams(*p, book))
	if err != nil {
		return model.Ladder{}, fmt.Errorf("build ladder: %w", err)
	}

	for _, lvl := range l.Asks {
		po, err := e.post(ctx, p, model.Ask, p.BaseVault, lvl)
		if err != nil {
			return model.Ladder{}, err
		}
		p.PlacedAsks = append(p.PlacedAsks, po)
	}
	for _, lvl := range l.Bids {
		po, err := e.post(ctx, p, model.Bid, p.QuoteVault, lvl)
		if err != nil {
			return model.Ladder{}, err
		}
		p.PlacedBids = append(p.PlacedBids, po)
	}
	return l, nil
}

func (e *Engine) post(ctx context.Context, p *model.Pool, side model.Side, payer common.Address, lvl model.Level) (model.PlacedOrder, error) {
	cid := p.ClientOrderID
	ref, err := e.book.PlaceOrder(ctx, p.OpenOrders, payer, model.OrderRequest{
		Side:          side,
		Price:         lvl.Price,
		BaseLots:      lvl.BaseLots,
		MaxQuote:      lvl.MaxQuote,
		Type:          model.PostOnly,
		ClientOrderID: cid,
	})
	if err != nil {
		return model.PlacedOrder{}, adapterErr(fmt.Sprintf("place %s at %d", side, lvl.Price), err)
	}
	p.ClientOrderID++
	return model.PlacedOrder{
		OrderID:       ref.OrderID,
		ClientOrderID: cid,
		Price:         lvl.Price,
		BaseLots:      lvl.BaseLots,
		MaxQuote:      lvl.MaxQuote,
	}, nil
}
