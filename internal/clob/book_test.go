package clob

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"openamm/internal/ledger"
	"openamm/internal/model"
)

var (
	maker  = common.HexToAddress("0x1001")
	maker2 = common.HexToAddress("0x1002")
	taker  = common.HexToAddress("0x2001")
)

func testMarket() model.Market {
	return model.Market{
		ID:            "SOL-USDC",
		BaseAsset:     "SOL",
		QuoteAsset:    "USDC",
		BaseDecimals:  9,
		QuoteDecimals: 6,
		BaseLotSize:   1000,
		QuoteLotSize:  1,
	}
}

func newTestBook(t *testing.T, feeBps uint64) (*Book, *ledger.Memory) {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewMemory(nil)
	for _, who := range []common.Address{maker, maker2, taker} {
		require.NoError(t, led.Mint(ctx, "SOL", who, 10_000_000))
		require.NoError(t, led.Mint(ctx, "USDC", who, 10_000_000))
	}
	b, err := New(testMarket(), led, Options{TakerFeeBps: feeBps})
	require.NoError(t, err)
	return b, led
}

func postOnly(side model.Side, price, lots, cid uint64) model.OrderRequest {
	return model.OrderRequest{Side: side, Price: price, BaseLots: lots, Type: model.PostOnly, ClientOrderID: cid}
}

func TestPostOnlyRestsAndRejectsCrossing(t *testing.T) {
	ctx := context.Background()
	b, led := newTestBook(t, 0)
	require.NoError(t, b.InitOpenOrders(ctx, maker))

	_, err := b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 1003, 10, 1))
	require.NoError(t, err)
	_, err = b.PlaceOrder(ctx, maker, maker, postOnly(model.Bid, 997, 10, 2))
	require.NoError(t, err)

	snap, err := b.LoadBook(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.BookLevel{{Price: 997, BaseLots: 10}}, snap.Bids)
	require.Equal(t, []model.BookLevel{{Price: 1003, BaseLots: 10}}, snap.Asks)

	_, err = b.PlaceOrder(ctx, maker, maker, postOnly(model.Bid, 1003, 1, 3))
	require.ErrorIs(t, err, ErrWouldCross)
	_, err = b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 997, 1, 4))
	require.ErrorIs(t, err, ErrWouldCross)

	base, err := led.Balance(ctx, "SOL", maker)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000-10_000), base)
	quote, err := led.Balance(ctx, "USDC", maker)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000-9_970), quote)
}

func TestTakeBuysAtMakerPriceAndChargesFee(t *testing.T) {
	ctx := context.Background()
	b, led := newTestBook(t, 10)
	require.NoError(t, b.InitOpenOrders(ctx, maker))
	askRef, err := b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 1003, 10, 7))
	require.NoError(t, err)
	_, err = b.PlaceOrder(ctx, maker, maker, postOnly(model.Bid, 997, 10, 8))
	require.NoError(t, err)

	exec, err := b.Take(ctx, taker, model.Bid, 1010, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), exec.FilledLots)
	require.Equal(t, uint64(3_996), exec.BaseSettled)
	// Unused limit headroom comes back.
	require.Equal(t, uint64(28), exec.QuoteSettled)

	quote, err := led.Balance(ctx, "USDC", taker)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000-4_012), quote)

	feeBase, feeQuote := b.Fees()
	require.Equal(t, uint64(4), feeBase)
	require.Zero(t, feeQuote)

	oo, err := b.LoadOpenOrders(ctx, maker)
	require.NoError(t, err)
	require.Equal(t, uint64(4_012), oo.QuoteFree)
	require.Equal(t, uint64(6_000), oo.BaseTotal)
	require.Equal(t, uint64(4_012+9_970), oo.QuoteTotal)
	require.Len(t, oo.Orders, 2)
	require.Equal(t, askRef.OrderID, oo.Orders[0].OrderID)
	require.Equal(t, uint64(7), oo.Orders[0].ClientOrderID)
	require.Equal(t, uint64(6), oo.Orders[0].BaseLots)

	require.NoError(t, b.CancelOrder(ctx, maker, askRef))
	gotBase, gotQuote, err := b.SettleFunds(ctx, maker, maker, maker)
	require.NoError(t, err)
	require.Equal(t, uint64(6_000), gotBase)
	require.Equal(t, uint64(4_012), gotQuote)

	base, err := led.Balance(ctx, "SOL", maker)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000-4_000), base)

	require.ErrorIs(t, b.CancelOrder(ctx, maker, askRef), ErrOrderNotFound)
}

func TestIOCRemainderIsCancelled(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t, 10)
	require.NoError(t, b.InitOpenOrders(ctx, maker))
	_, err := b.PlaceOrder(ctx, maker, maker, postOnly(model.Bid, 997, 10, 1))
	require.NoError(t, err)

	exec, err := b.Take(ctx, taker, model.Ask, 990, 20)
	require.NoError(t, err)
	require.Equal(t, uint64(10), exec.FilledLots)
	require.Equal(t, uint64(9_970-9), exec.QuoteSettled)
	require.Equal(t, uint64(10_000), exec.BaseSettled)

	snap, err := b.LoadBook(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Bids)
	require.Empty(t, snap.Asks)

	oo, err := b.LoadOpenOrders(ctx, maker)
	require.NoError(t, err)
	require.Empty(t, oo.Orders)
	require.Equal(t, uint64(10_000), oo.BaseFree)
}

func TestPriceTimePriority(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t, 0)
	require.NoError(t, b.InitOpenOrders(ctx, maker))
	require.NoError(t, b.InitOpenOrders(ctx, maker2))

	_, err := b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 1005, 5, 1))
	require.NoError(t, err)
	_, err = b.PlaceOrder(ctx, maker2, maker2, postOnly(model.Ask, 1005, 5, 1))
	require.NoError(t, err)
	_, err = b.PlaceOrder(ctx, maker2, maker2, postOnly(model.Ask, 1004, 2, 2))
	require.NoError(t, err)

	exec, err := b.Take(ctx, taker, model.Bid, 1005, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), exec.FilledLots)

	first, err := b.LoadOpenOrders(ctx, maker)
	require.NoError(t, err)
	require.Equal(t, uint64(3), first.Orders[0].BaseLots)
	require.Equal(t, uint64(2*1005), first.QuoteFree)

	second, err := b.LoadOpenOrders(ctx, maker2)
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	require.Equal(t, uint64(5), second.Orders[0].BaseLots)
	require.Equal(t, uint64(2*1004), second.QuoteFree)
}

func TestLimitRemainderRests(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t, 0)
	require.NoError(t, b.InitOpenOrders(ctx, maker))
	require.NoError(t, b.InitOpenOrders(ctx, taker))
	_, err := b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 1000, 3, 1))
	require.NoError(t, err)

	_, err = b.PlaceOrder(ctx, taker, taker, model.OrderRequest{Side: model.Bid, Price: 1002, BaseLots: 5, Type: model.Limit})
	require.NoError(t, err)

	snap, err := b.LoadBook(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Asks)
	require.Equal(t, []model.BookLevel{{Price: 1002, BaseLots: 2}}, snap.Bids)

	oo, err := b.LoadOpenOrders(ctx, taker)
	require.NoError(t, err)
	require.Equal(t, uint64(3_000), oo.BaseFree)
	require.Equal(t, uint64(6), oo.QuoteFree)
	require.Equal(t, uint64(6+2*1002), oo.QuoteTotal)
}

func TestRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t, 0)

	_, err := b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 1000, 1, 1))
	require.ErrorIs(t, err, ErrUnknownAccount)

	require.NoError(t, b.InitOpenOrders(ctx, maker))
	_, err = b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 0, 1, 1))
	require.ErrorIs(t, err, ErrInvalidOrder)

	req := postOnly(model.Bid, 1000, 2, 1)
	req.MaxQuote = 1999
	_, err = b.PlaceOrder(ctx, maker, maker, req)
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = b.PlaceOrder(ctx, maker, maker, postOnly(model.Ask, 1000, 1_000_000, 1))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = New(model.Market{ID: "x", BaseAsset: "A", QuoteAsset: "A", BaseLotSize: 1, QuoteLotSize: 1}, nil, Options{})
	require.Error(t, err)
}
