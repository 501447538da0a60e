package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"openamm/internal/clob"
	"openamm/internal/ledger"
	"openamm/internal/model"
	"openamm/internal/storage"
)

const (
	seed     = 1_000_000_000
	funding  = 10_000_000_000
	baseLot  = 1000
	quoteLot = 1
)

var (
	payer     = common.HexToAddress("0xa11ce")
	depositor = common.HexToAddress("0xb0b")
	taker     = common.HexToAddress("0x7a4e")
	cranker   = common.HexToAddress("0xc4a4e")
	thief     = common.HexToAddress("0xbad")
)

type memJournal struct {
	events []model.PoolEvent
}

func (j *memJournal) PutEventBatch(_ context.Context, events []model.PoolEvent) error {
	j.events = append(j.events, events...)
	return nil
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	ledger  *ledger.Memory
	book    *clob.Book
	files   *storage.FileStore
	journal *memJournal
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewMemory(nil)
	for _, who := range []common.Address{payer, depositor, taker} {
		require.NoError(t, led.Mint(ctx, "SOL", who, funding))
		require.NoError(t, led.Mint(ctx, "USDC", who, funding))
	}
	book, err := clob.New(model.Market{
		ID:            "SOL-USDC",
		BaseAsset:     "SOL",
		QuoteAsset:    "USDC",
		BaseDecimals:  9,
		QuoteDecimals: 9,
		BaseLotSize:   baseLot,
		QuoteLotSize:  quoteLot,
	}, led, clob.Options{TakerFeeBps: 10})
	require.NoError(t, err)

	h := &harness{
		t:       t,
		ctx:     ctx,
		ledger:  led,
		book:    book,
		files:   storage.NewFileStore(t.TempDir()),
		journal: &memJournal{},
	}
	h.engine = h.newEngine(h.files, book)
	return h
}

func (h *harness) newEngine(store storage.PoolStore, book OrderBook) *Engine {
	return h.engineOver(store, h.ledger, book)
}

func (h *harness) engineOver(store storage.PoolStore, led Ledger, book OrderBook) *Engine {
	return NewEngine(Config{
		Journal: h.journal,
		Now:     func() time.Time { return time.Unix(1_700_000_000, 0) },
	}, store, led, book, nil)
}

func (h *harness) create(kind model.CurveKind) model.Pool {
	h.t.Helper()
	p, err := h.engine.CreatePool(h.ctx, CreateRequest{Kind: kind, BaseAmount: seed, QuoteAmount: seed, Payer: payer})
	require.NoError(h.t, err)
	return p
}

func (h *harness) stored(addr common.Address) model.Pool {
	h.t.Helper()
	p, err := h.engine.Pool(h.ctx, addr)
	require.NoError(h.t, err)
	return p
}

func (h *harness) balance(asset model.Asset, owner common.Address) uint64 {
	h.t.Helper()
	v, err := h.ledger.Balance(h.ctx, asset, owner)
	require.NoError(h.t, err)
	return v
}

// requireHoldingsMatch checks vaults plus open orders equal reserves plus refunds.
func (h *harness) requireHoldingsMatch(p model.Pool) {
	h.t.Helper()
	oo, err := h.book.LoadOpenOrders(h.ctx, p.OpenOrders)
	require.NoError(h.t, err)
	require.Equal(h.t, p.BaseAmount+p.RefundBaseAmount, h.balance(p.BaseAsset, p.BaseVault)+oo.BaseTotal)
	require.Equal(h.t, p.QuoteAmount+p.RefundQuoteAmount, h.balance(p.QuoteAsset, p.QuoteVault)+oo.QuoteTotal)
}

func TestCreatePoolPlacesLadder(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	require.Equal(t, Address("SOL-USDC", model.ConstantProduct), p.Address)
	require.Equal(t, uint64(999_999_999), p.LPSupply)
	require.Equal(t, uint64(999_999_999), h.balance(p.LPMint, payer))
	require.Equal(t, model.Live, p.State())
	require.Equal(t, uint64(1), p.Sequence)

	require.Len(t, p.PlacedAsks, 10)
	require.Len(t, p.PlacedBids, 9)
	require.Equal(t, uint64(1), p.PlacedAsks[0].ClientOrderID)
	require.Equal(t, uint64(1003), p.PlacedAsks[0].Price)
	require.Equal(t, uint64(800), p.PlacedAsks[0].BaseLots)
	require.Equal(t, uint64(11), p.PlacedBids[0].ClientOrderID)
	require.Equal(t, uint64(997), p.PlacedBids[0].Price)
	require.Equal(t, uint64(20), p.ClientOrderID)

	snap, err := h.book.LoadBook(h.ctx)
	require.NoError(t, err)
	require.Equal(t, model.BookLevel{Price: 1003, BaseLots: 800}, snap.Asks[0])
	require.Equal(t, model.BookLevel{Price: 997, BaseLots: 800}, snap.Bids[0])
	h.requireHoldingsMatch(p)

	require.Equal(t, p, h.stored(p.Address))
	require.Len(t, h.journal.events, 1)
	require.Equal(t, model.EventCreate, h.journal.events[0].Kind)
	require.Equal(t, 19, h.journal.events[0].OrdersPlaced)
	require.Equal(t, uint64(seed), h.journal.events[0].EndBase)
}

func TestCreatePoolRejectsDuplicatesAndBadSeeds(t *testing.T) {
	h := newHarness(t)
	h.create(model.ConstantProduct)

	_, err := h.engine.CreatePool(h.ctx, CreateRequest{Kind: model.ConstantProduct, BaseAmount: seed, QuoteAmount: seed, Payer: payer})
	require.ErrorIs(t, err, ErrMarketAlreadyHasPool)

	_, err = h.engine.CreatePool(h.ctx, CreateRequest{Kind: model.Stable, BaseAmount: 0, QuoteAmount: seed, Payer: payer})
	require.ErrorIs(t, err, ErrInvalidCurveParameters)

	_, err = h.engine.CreatePool(h.ctx, CreateRequest{Kind: model.Stable, BaseAmount: 1, QuoteAmount: 1, Payer: payer})
	require.ErrorIs(t, err, ErrInvalidCurveParameters)

	stable, err := h.engine.CreatePool(h.ctx, CreateRequest{Kind: model.Stable, BaseAmount: seed, QuoteAmount: seed, Payer: payer})
	require.NoError(t, err)
	require.NotEqual(t, Address("SOL-USDC", model.ConstantProduct), stable.Address)
}

func TestFailedSeedCanBeReseededByDeposit(t *testing.T) {
	h := newHarness(t)
	broke := common.HexToAddress("0x0b0e")

	_, err := h.engine.CreatePool(h.ctx, CreateRequest{Kind: model.ConstantProduct, BaseAmount: seed, QuoteAmount: seed, Payer: broke})
	require.ErrorIs(t, err, ErrExternalAdapterFailure)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	addr := Address("SOL-USDC", model.ConstantProduct)
	require.Equal(t, model.Uninitialized, h.stored(addr).State())

	res, err := h.engine.Deposit(h.ctx, addr, DepositRequest{Depositor: depositor, MaxBase: seed, MaxQuote: seed})
	require.NoError(t, err)
	require.Equal(t, uint64(999_999_999), res.LPMinted)
	require.Equal(t, model.Live, res.Pool.State())
	require.Len(t, res.Pool.PlacedAsks, 10)
}

func TestRefreshWithoutFillsIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	first, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	second, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)

	require.Equal(t, first.Ladder, second.Ladder)
	require.Equal(t, model.Level{Price: 1003, BaseLots: 800, MaxQuote: 802_400}, first.Ladder.Asks[0])
	require.True(t, first.Fills.Empty())
	require.Zero(t, second.CrankerBase)
	require.Zero(t, second.CrankerQuote)
	require.Equal(t, uint64(seed), second.Pool.BaseAmount)
	require.Equal(t, uint64(seed), second.Pool.QuoteAmount)
	require.Equal(t, uint64(3), second.Pool.Sequence)
	require.Equal(t, uint64(1+3*19), second.Pool.ClientOrderID)
	h.requireHoldingsMatch(second.Pool)
}

func TestRefreshBooksFillsAndPaysCranker(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	exec, err := h.book.Take(h.ctx, taker, model.Bid, 1003, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), exec.FilledLots)
	require.Equal(t, uint64(9_990), exec.BaseSettled)

	res, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.Equal(t, model.FillSummary{BaseSold: 10_000, QuoteReceived: 10_030, RefundQuote: 1}, res.Fills)
	require.Zero(t, res.CrankerBase)
	require.Equal(t, uint64(1), res.CrankerQuote)
	require.Equal(t, uint64(1), h.balance("USDC", cranker))

	got := h.stored(p.Address)
	require.Equal(t, uint64(999_990_000), got.BaseAmount)
	require.Equal(t, uint64(1_000_010_029), got.QuoteAmount)
	require.Equal(t, uint64(10_030), got.CumulativeQuoteVolume)
	require.Zero(t, got.RefundQuoteAmount)
	require.Equal(t, model.Live, got.State())
	h.requireHoldingsMatch(got)

	last := h.journal.events[len(h.journal.events)-1]
	require.Equal(t, model.EventRefresh, last.Kind)
	require.Equal(t, uint64(1), last.CrankerQuote)
	require.Equal(t, uint64(seed), last.StartBase)
	require.Equal(t, uint64(999_990_000), last.EndBase)
}

func TestSyncFillsEntersPendingRefund(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	_, err := h.book.Take(h.ctx, taker, model.Ask, 997, 10)
	require.NoError(t, err)

	fills, err := h.engine.SyncFills(h.ctx, p.Address)
	require.NoError(t, err)
	require.Equal(t, model.FillSummary{BaseReceived: 10_000, QuoteSpent: 9_970, RefundBase: 1}, fills)

	synced := h.stored(p.Address)
	require.Equal(t, model.PendingRefund, synced.State())
	require.Equal(t, uint64(790), synced.PlacedBids[0].BaseLots)
	require.Equal(t, uint64(seed+9_999), synced.BaseAmount)
	require.Equal(t, uint64(seed-9_970), synced.QuoteAmount)
	h.requireHoldingsMatch(synced)

	again, err := h.engine.SyncFills(h.ctx, p.Address)
	require.NoError(t, err)
	require.True(t, again.Empty())
	require.Equal(t, synced.Sequence, h.stored(p.Address).Sequence)

	res, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.True(t, res.Fills.Empty())
	require.Equal(t, uint64(1), res.CrankerBase)
	require.Equal(t, uint64(seed+9_999), res.Pool.BaseAmount)
	require.Equal(t, uint64(10_000), res.Pool.CumulativeBaseVolume)
	require.Equal(t, model.Live, res.Pool.State())
}

func TestDepositThenWithdrawIsExact(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	dep, err := h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: seed, MaxQuote: seed})
	require.NoError(t, err)
	require.Equal(t, uint64(999_999_999), dep.LPMinted)
	require.Equal(t, uint64(1_999_999_998), dep.Pool.LPSupply)
	require.Equal(t, uint64(2*seed), dep.Pool.BaseAmount)
	h.requireHoldingsMatch(dep.Pool)

	wd, err := h.engine.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: depositor, LPAmount: 999_999_999})
	require.NoError(t, err)
	require.Equal(t, uint64(seed), wd.BaseOut)
	require.Equal(t, uint64(seed), wd.QuoteOut)
	require.Equal(t, uint64(999_999_999), wd.Pool.LPSupply)
	require.Equal(t, uint64(funding), h.balance("SOL", depositor))
	require.Equal(t, uint64(funding), h.balance("USDC", depositor))
	require.Zero(t, h.balance(p.LPMint, depositor))
	h.requireHoldingsMatch(wd.Pool)
}

func TestDepositRoundTripLosesAtMostOneUnit(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	dep, err := h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: 1_000_000, MaxQuote: 1_000_000})
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), dep.BaseIn)
	require.Equal(t, uint64(999_999), dep.LPMinted)

	wd, err := h.engine.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: depositor, LPAmount: dep.LPMinted})
	require.NoError(t, err)
	require.Equal(t, uint64(999_999), wd.BaseOut)
	require.Equal(t, uint64(999_999), wd.QuoteOut)
}

func TestDepositAndWithdrawValidation(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	_, err := h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: 1_000_000, MaxQuote: 1_000_000, MinLPOut: 1_000_000})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: 1_000_000, MaxQuote: 500_000, MinBase: 600_000})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxQuote: 1})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: payer, LPAmount: 2 * seed})
	require.ErrorIs(t, err, ErrInsufficientPoolLiquidity)

	_, err = h.engine.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: depositor, LPAmount: 10})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: payer, LPAmount: 1_000, MinBase: 1_001})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = h.engine.Deposit(h.ctx, common.HexToAddress("0x1234"), DepositRequest{Depositor: depositor, MaxBase: 1, MaxQuote: 1})
	require.ErrorIs(t, err, ErrPoolNotFound)

	// Rejected requests never commit.
	require.Equal(t, p.Sequence, h.stored(p.Address).Sequence)
	require.Equal(t, p.PlacedAsks, h.stored(p.Address).PlacedAsks)
}

func TestUnfundedDepositLeavesPoolUntouched(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)
	broke := common.HexToAddress("0x0b0e")

	_, err := h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: broke, MaxBase: 1_000_000, MaxQuote: 1_000_000})
	require.ErrorIs(t, err, ErrExternalAdapterFailure)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	require.Equal(t, p, h.stored(p.Address))
	require.Len(t, h.journal.events, 1)
	oo, err := h.book.LoadOpenOrders(h.ctx, p.OpenOrders)
	require.NoError(t, err)
	require.Len(t, oo.Orders, 19)
	snap, err := h.book.LoadBook(h.ctx)
	require.NoError(t, err)
	require.Len(t, snap.Asks, 10)
	require.Len(t, snap.Bids, 9)
}

type failingLedger struct {
	*ledger.Memory
	failFrom common.Address
	failMint bool
	failBurn bool
}

func (l failingLedger) Transfer(ctx context.Context, asset model.Asset, from, to common.Address, amount uint64) error {
	if from == l.failFrom {
		return errors.New("ledger timeout")
	}
	return l.Memory.Transfer(ctx, asset, from, to, amount)
}

func (l failingLedger) Mint(ctx context.Context, asset model.Asset, to common.Address, amount uint64) error {
	if l.failMint {
		return errors.New("mint authority unavailable")
	}
	return l.Memory.Mint(ctx, asset, to, amount)
}

func (l failingLedger) Burn(ctx context.Context, asset model.Asset, from common.Address, amount uint64) error {
	if l.failBurn {
		return errors.New("burn rejected")
	}
	return l.Memory.Burn(ctx, asset, from, amount)
}

// requireRestored checks an aborted transition left the reserves, the LP
// supply and a full ladder in place.
func (h *harness) requireRestored(p model.Pool) model.Pool {
	h.t.Helper()
	got := h.stored(p.Address)
	require.Equal(h.t, p.Sequence+1, got.Sequence)
	require.Equal(h.t, p.BaseAmount, got.BaseAmount)
	require.Equal(h.t, p.QuoteAmount, got.QuoteAmount)
	require.Equal(h.t, p.LPSupply, got.LPSupply)
	require.Len(h.t, got.PlacedAsks, 10)
	require.Len(h.t, got.PlacedBids, 9)
	h.requireHoldingsMatch(got)
	return got
}

func TestFailedMintReturnsDeposit(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	faulty := h.engineOver(h.files, failingLedger{Memory: h.ledger, failMint: true}, h.book)
	_, err := faulty.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: seed, MaxQuote: seed})
	require.ErrorIs(t, err, ErrExternalAdapterFailure)

	h.requireRestored(p)
	require.Equal(t, uint64(funding), h.balance("SOL", depositor))
	require.Equal(t, uint64(funding), h.balance("USDC", depositor))
	require.Zero(t, h.balance(p.LPMint, depositor))
}

func TestFailedQuotePayoutKeepsLP(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	faulty := h.engineOver(h.files, failingLedger{Memory: h.ledger, failFrom: p.QuoteVault}, h.book)
	_, err := faulty.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: payer, LPAmount: 100_000_000})
	require.ErrorIs(t, err, ErrExternalAdapterFailure)

	h.requireRestored(p)
	require.Equal(t, uint64(999_999_999), h.balance(p.LPMint, payer))
	require.Equal(t, uint64(funding-seed), h.balance("SOL", payer))
	require.Equal(t, uint64(funding-seed), h.balance("USDC", payer))

	res, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.True(t, res.Fills.Empty())
}

func TestFailedBurnReclaimsPayout(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	faulty := h.engineOver(h.files, failingLedger{Memory: h.ledger, failBurn: true}, h.book)
	_, err := faulty.Withdraw(h.ctx, p.Address, WithdrawRequest{Owner: payer, LPAmount: 100_000_000})
	require.ErrorIs(t, err, ErrExternalAdapterFailure)

	h.requireRestored(p)
	require.Equal(t, uint64(999_999_999), h.balance(p.LPMint, payer))
	require.Equal(t, uint64(funding-seed), h.balance("SOL", payer))
	require.Equal(t, uint64(funding-seed), h.balance("USDC", payer))
}

func TestFillVolumeNeverDecreases(t *testing.T) {
	for _, kind := range []model.CurveKind{model.ConstantProduct, model.Stable} {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t)
			p := h.create(kind)
			require.NotEmpty(t, p.PlacedAsks)
			require.NotEmpty(t, p.PlacedBids)

			last := p
			for round := 0; round < 6; round++ {
				snap, err := h.book.LoadBook(h.ctx)
				require.NoError(t, err)
				require.NotEmpty(t, snap.Asks)
				require.NotEmpty(t, snap.Bids)

				var exec clob.Execution
				if round%2 == 0 {
					exec, err = h.book.Take(h.ctx, taker, model.Bid, snap.Asks[0].Price, 20)
				} else {
					exec, err = h.book.Take(h.ctx, taker, model.Ask, snap.Bids[0].Price, 20)
				}
				require.NoError(t, err)
				require.Positive(t, exec.FilledLots)

				if round%3 == 2 {
					_, err = h.engine.SyncFills(h.ctx, p.Address)
				} else {
					_, err = h.engine.Refresh(h.ctx, p.Address, cranker)
				}
				require.NoError(t, err)

				got := h.stored(p.Address)
				require.True(t, got.MarketMakingActive)
				require.GreaterOrEqual(t, got.CumulativeBaseVolume, last.CumulativeBaseVolume)
				require.GreaterOrEqual(t, got.CumulativeQuoteVolume, last.CumulativeQuoteVolume)
				require.LessOrEqual(t, got.CumulativeBaseVolume, uint64(seed))
				require.LessOrEqual(t, got.CumulativeQuoteVolume, uint64(seed))
				h.requireHoldingsMatch(got)
				last = got
			}
			require.Positive(t, last.CumulativeBaseVolume)
			require.Positive(t, last.CumulativeQuoteVolume)

			again, err := h.engine.Refresh(h.ctx, p.Address, cranker)
			require.NoError(t, err)
			require.True(t, again.Fills.Empty())
			require.Equal(t, last.CumulativeBaseVolume, again.Pool.CumulativeBaseVolume)
			require.Equal(t, last.CumulativeQuoteVolume, again.Pool.CumulativeQuoteVolume)
		})
	}
}

func TestSweptSidePausesAndRestartRecovers(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	exec, err := h.book.Take(h.ctx, taker, model.Bid, 2324, 402_800)
	require.NoError(t, err)
	require.Equal(t, uint64(402_800), exec.FilledLots)

	res, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.True(t, res.Paused)
	require.Equal(t, uint64(402_800_000), res.Fills.BaseSold)
	require.Equal(t, uint64(676_108_900), res.Fills.QuoteReceived)
	require.Equal(t, uint64(67_609), res.Fills.RefundQuote)
	require.Zero(t, res.CrankerQuote)

	paused := h.stored(p.Address)
	require.Equal(t, model.Paused, paused.State())
	require.Equal(t, uint64(597_200_000), paused.BaseAmount)
	require.Equal(t, uint64(1_676_041_291), paused.QuoteAmount)
	require.Equal(t, uint64(67_609), paused.RefundQuoteAmount)
	require.Empty(t, paused.PlacedAsks)
	require.Empty(t, paused.PlacedBids)
	h.requireHoldingsMatch(paused)

	snap, err := h.book.LoadBook(h.ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Asks)
	require.Empty(t, snap.Bids)

	_, err = h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: 1_000, MaxQuote: 1_000})
	require.ErrorIs(t, err, ErrMarketMakingPaused)
	_, err = h.engine.Refresh(h.ctx, p.Address, cranker)
	require.ErrorIs(t, err, ErrMarketMakingPaused)

	restarted, err := h.engine.RestartMarketMaking(h.ctx, p.Address, false)
	require.NoError(t, err)
	require.Equal(t, model.PendingRefund, restarted.State())
	require.Equal(t, uint64(597_200_000), restarted.BaseAmount)
	require.Equal(t, uint64(1_676_041_291), restarted.QuoteAmount)
	require.NotEmpty(t, restarted.PlacedAsks)
	require.NotEmpty(t, restarted.PlacedBids)
	h.requireHoldingsMatch(restarted)

	_, err = h.engine.RestartMarketMaking(h.ctx, p.Address, false)
	require.ErrorIs(t, err, ErrMarketMakingActive)

	paid, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.Equal(t, uint64(67_609), paid.CrankerQuote)
	require.Equal(t, model.Live, paid.Pool.State())
	require.Equal(t, uint64(676_108_900), paid.Pool.CumulativeQuoteVolume)
}

func TestTamperedVaultIsStale(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	require.NoError(t, h.ledger.Transfer(h.ctx, "SOL", p.BaseVault, thief, 500_000_000))

	_, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.ErrorIs(t, err, ErrStaleReserveSnapshot)
	_, err = h.engine.Deposit(h.ctx, p.Address, DepositRequest{Depositor: depositor, MaxBase: 1_000, MaxQuote: 1_000})
	require.ErrorIs(t, err, ErrStaleReserveSnapshot)

	require.Equal(t, p, h.stored(p.Address))
	oo, err := h.book.LoadOpenOrders(h.ctx, p.OpenOrders)
	require.NoError(t, err)
	require.Len(t, oo.Orders, 19)
}

type racingStore struct {
	*storage.FileStore
	armed bool
}

// SavePool lets a competing writer commit first once armed.
func (s *racingStore) SavePool(ctx context.Context, p model.Pool, prevSeq uint64) error {
	if s.armed {
		s.armed = false
		other := p.Clone()
		if err := s.FileStore.SavePool(ctx, other, prevSeq); err != nil {
			return err
		}
	}
	return s.FileStore.SavePool(ctx, p, prevSeq)
}

func TestSequenceConflictIsStale(t *testing.T) {
	h := newHarness(t)
	store := &racingStore{FileStore: h.files}
	h.engine = h.newEngine(store, h.book)
	p := h.create(model.ConstantProduct)

	store.armed = true
	_, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.ErrorIs(t, err, ErrStaleReserveSnapshot)
	require.ErrorIs(t, err, storage.ErrSequenceConflict)
}

type flakyBook struct {
	*clob.Book
}

func (b flakyBook) LoadBook(context.Context) (model.BookSnapshot, error) {
	return model.BookSnapshot{}, errors.New("rpc unavailable")
}

func TestAdapterFailureCommitsSettledState(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	flaky := h.newEngine(h.files, flakyBook{Book: h.book})
	_, err := flaky.Refresh(h.ctx, p.Address, cranker)
	require.ErrorIs(t, err, ErrExternalAdapterFailure)

	got := h.stored(p.Address)
	require.Equal(t, p.Sequence+1, got.Sequence)
	require.Empty(t, got.PlacedAsks)
	require.True(t, got.MarketMakingActive)
	require.Equal(t, uint64(seed), h.balance("SOL", p.BaseVault))
	h.requireHoldingsMatch(got)

	res, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.True(t, res.Fills.Empty())
	require.Len(t, res.Pool.PlacedAsks, 10)
}

type cancelFailBook struct {
	*clob.Book
	allow int
}

func (b *cancelFailBook) CancelOrder(ctx context.Context, oo common.Address, ref model.OrderRef) error {
	if b.allow == 0 {
		return errors.New("cancel rejected")
	}
	b.allow--
	return b.Book.CancelOrder(ctx, oo, ref)
}

func TestPartialCancelForgetsCancelledOrders(t *testing.T) {
	h := newHarness(t)
	p := h.create(model.ConstantProduct)

	flaky := h.newEngine(h.files, &cancelFailBook{Book: h.book, allow: 1})
	_, err := flaky.Refresh(h.ctx, p.Address, cranker)
	require.ErrorIs(t, err, ErrExternalAdapterFailure)

	got := h.stored(p.Address)
	require.Equal(t, p.Sequence+1, got.Sequence)
	require.Len(t, got.PlacedAsks, 9)
	require.Len(t, got.PlacedBids, 9)
	require.Equal(t, uint64(2), got.PlacedAsks[0].ClientOrderID)
	h.requireHoldingsMatch(got)

	// The cancelled order must not be booked as a fill.
	res, err := h.engine.Refresh(h.ctx, p.Address, cranker)
	require.NoError(t, err)
	require.True(t, res.Fills.Empty())
	require.False(t, res.Paused)
	require.Equal(t, uint64(seed), res.Pool.BaseAmount)
	require.Equal(t, uint64(seed), res.Pool.QuoteAmount)
	require.Len(t, res.Pool.PlacedAsks, 10)
	h.requireHoldingsMatch(res.Pool)
}
