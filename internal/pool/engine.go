package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"openamm/internal/curve"
	"openamm/internal/ladder"
	"openamm/internal/lptoken"
	"openamm/internal/metrics"
	"openamm/internal/model"
	"openamm/internal/storage"
)

const (
	// DefaultRefundBps is the share of filled volume set aside for the cranker.
	DefaultRefundBps  = 1
	refundDenominator = 10_000
)

// Config tunes the engine.
type Config struct {
	RefundBps   uint64
	MinBaseLots uint64
	AskSteps    []uint64
	BidSteps    []uint64
	Journal     storage.Journal
	Metrics     *metrics.Recorder
	Now         func() time.Time
}

// Engine runs pool transitions against a single external market. It holds no
// locks: concurrent transitions on one pool are ordered by the store sequence.
type Engine struct {
	cfg    Config
	store  storage.PoolStore
	ledger Ledger
	book   OrderBook
	logger *zap.Logger
}

func NewEngine(cfg Config, store storage.PoolStore, ledger Ledger, book OrderBook, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefundBps == 0 {
		cfg.RefundBps = DefaultRefundBps
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg, store: store, ledger: ledger, book: book, logger: logger}
}

// CreateRequest seeds a new pool.
type CreateRequest struct {
	Kind        model.CurveKind
	BaseAmount  uint64
	QuoteAmount uint64
	Payer       common.Address
}

// DepositRequest adds liquidity. Max amounts are trimmed to the pool ratio.
type DepositRequest struct {
	Depositor common.Address
	MaxBase   uint64
	MaxQuote  uint64
	MinBase   uint64
	MinQuote  uint64
	MinLPOut  uint64
}

type DepositResult struct {
	BaseIn   uint64
	QuoteIn  uint64
	LPMinted uint64
	Pool     model.Pool
}

// WithdrawRequest burns LP shares for a pro-rata share of reserves.
type WithdrawRequest struct {
	Owner    common.Address
	LPAmount uint64
	MinBase  uint64
	MinQuote uint64
}

type WithdrawResult struct {
	BaseOut  uint64
	QuoteOut uint64
	Pool     model.Pool
}

// Pool returns the stored pool at addr.
func (e *Engine) Pool(ctx context.Context, addr common.Address) (model.Pool, error) {
	p, ok, err := e.store.GetPool(ctx, addr)
	if err != nil {
		return model.Pool{}, fmt.Errorf("load pool: %w", err)
	}
	if !ok {
		return model.Pool{}, fmt.Errorf("%w: %s", ErrPoolNotFound, addr.Hex())
	}
	return p, nil
}

// CreatePool registers the pool for (market, kind), escrows the seed
// liquidity and places the first ladder.
func (e *Engine) CreatePool(ctx context.Context, req CreateRequest) (p model.Pool, err error) {
	defer func() { e.cfg.Metrics.Transition("create", err) }()

	if req.BaseAmount == 0 || req.QuoteAmount == 0 {
		return model.Pool{}, fmt.Errorf("%w: seed amounts must be positive", ErrInvalidCurveParameters)
	}
	lp, err := lptoken.InitialShares(req.BaseAmount, req.QuoteAmount)
	if err != nil {
		return model.Pool{}, fmt.Errorf("%w: %w", ErrInvalidCurveParameters, err)
	}
	market, err := e.book.Market(ctx)
	if err != nil {
		return model.Pool{}, adapterErr("load market", err)
	}
	if _, err := curve.New(req.Kind, market.BaseDecimals, market.QuoteDecimals); err != nil {
		return model.Pool{}, fmt.Errorf("%w: %w", ErrInvalidCurveParameters, err)
	}

	addr := Address(market.ID, req.Kind)
	if _, ok, err := e.store.GetPool(ctx, addr); err != nil {
		return model.Pool{}, fmt.Errorf("load pool: %w", err)
	} else if ok {
		return model.Pool{}, fmt.Errorf("%w: %s %s", ErrMarketAlreadyHasPool, market.ID, req.Kind)
	}

	now := e.cfg.Now().UTC()
	accts := DeriveAccounts(addr)
	prev := model.Pool{
		Address:            addr,
		Market:             market.ID,
		CurveKind:          req.Kind,
		BaseAsset:          market.BaseAsset,
		QuoteAsset:         market.QuoteAsset,
		BaseDecimals:       market.BaseDecimals,
		QuoteDecimals:      market.QuoteDecimals,
		BaseLotSize:        market.BaseLotSize,
		QuoteLotSize:       market.QuoteLotSize,
		BaseVault:          accts.BaseVault,
		QuoteVault:         accts.QuoteVault,
		OpenOrders:         accts.OpenOrders,
		LPMint:             accts.LPMint,
		ClientOrderID:      1,
		MarketMakingActive: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	// The empty record claims the (market, kind) slot before funds move. If
	// seeding fails the pool stays uninitialized and a deposit re-seeds it.
	if err := e.store.CreatePool(ctx, prev); err != nil {
		if errors.Is(err, storage.ErrPoolExists) {
			return model.Pool{}, fmt.Errorf("%w: %s %s", ErrMarketAlreadyHasPool, market.ID, req.Kind)
		}
		return model.Pool{}, fmt.Errorf("create pool: %w", err)
	}

	p = prev.Clone()
	if err := e.book.InitOpenOrders(ctx, p.OpenOrders); err != nil {
		return model.Pool{}, adapterErr("init open orders", err)
	}
	if err := e.escrowPair(ctx, &p, req.Payer, req.BaseAmount, req.QuoteAmount); err != nil {
		return model.Pool{}, err
	}
	if err := e.ledger.Mint(ctx, p.LPMint, req.Payer, lp); err != nil {
		err = adapterErr("mint lp", err)
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventCreate, err)
	}
	p.LPSupply = lp

	placed, err := e.placeLadder(ctx, &p)
	if err != nil {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventCreate, err)
	}
	ev := e.newEvent(prev, p, model.EventCreate)
	ev.OrdersPlaced = placed.Levels()
	if err := e.commit(ctx, prev, &p, ev); err != nil {
		return model.Pool{}, err
	}

	e.logger.Info("pool created",
		zap.String("pool", addr.Hex()),
		zap.String("market", market.ID),
		zap.Stringer("curve", req.Kind),
		zap.Uint64("base", p.BaseAmount),
		zap.Uint64("quote", p.QuoteAmount),
		zap.Uint64("lp", lp),
		zap.Int("orders", placed.Levels()),
	)
	return p, nil
}

// Deposit adds liquidity in the pool ratio and mints LP to the depositor.
func (e *Engine) Deposit(ctx context.Context, addr common.Address, req DepositRequest) (res DepositResult, err error) {
	defer func() { e.cfg.Metrics.Transition("deposit", err) }()

	if req.MaxBase == 0 || req.MaxQuote == 0 {
		return DepositResult{}, fmt.Errorf("%w: deposit amounts must be positive", ErrInvalidAmount)
	}
	prev, err := e.Pool(ctx, addr)
	if err != nil {
		return DepositResult{}, err
	}
	if !prev.MarketMakingActive {
		return DepositResult{}, ErrMarketMakingPaused
	}
	if prev.LPSupply == 0 {
		// A seed that failed midway may have left no open-orders account.
		if err := e.book.InitOpenOrders(ctx, prev.OpenOrders); err != nil {
			return DepositResult{}, adapterErr("init open orders", err)
		}
	}

	p := prev.Clone()
	rec, err := e.reconcile(ctx, &p, true)
	if err != nil {
		return DepositResult{}, err
	}
	if !p.MarketMakingActive {
		return DepositResult{}, e.pauseDuring(ctx, prev, &p, rec, model.EventDeposit)
	}

	var db, dq, lp uint64
	if p.LPSupply == 0 {
		db, dq = req.MaxBase, req.MaxQuote
		lp, err = lptoken.InitialShares(db, dq)
	} else {
		db, dq, err = lptoken.DepositAmounts(req.MaxBase, req.MaxQuote, req.MinBase, req.MinQuote, p.BaseAmount, p.QuoteAmount)
		if err == nil {
			lp, err = lptoken.SharesForDeposit(db, dq, p.BaseAmount, p.QuoteAmount, p.LPSupply)
		}
	}
	if err != nil {
		return DepositResult{}, mapShareErr(err)
	}
	if lp == 0 {
		return DepositResult{}, fmt.Errorf("%w: deposit mints no lp", ErrInvalidAmount)
	}
	if lp < req.MinLPOut {
		return DepositResult{}, fmt.Errorf("%w: lp %d below minimum %d", ErrSlippageExceeded, lp, req.MinLPOut)
	}

	// Nothing external has changed until the escrow lands.
	if err := e.escrowPair(ctx, &p, req.Depositor, db, dq); err != nil {
		return DepositResult{}, err
	}
	if err := e.cancelAndSettle(ctx, &p, rec.open); err != nil {
		e.returnEscrow(ctx, &p, req.Depositor, db, dq)
		return DepositResult{}, e.fail(ctx, prev, &p, model.EventDeposit, err)
	}
	if err := e.ledger.Mint(ctx, p.LPMint, req.Depositor, lp); err != nil {
		e.returnEscrow(ctx, &p, req.Depositor, db, dq)
		e.replace(ctx, &p)
		return DepositResult{}, e.fail(ctx, prev, &p, model.EventDeposit, adapterErr("mint lp", err))
	}
	p.LPSupply += lp

	placed, err := e.placeLadder(ctx, &p)
	if err != nil {
		return DepositResult{}, e.fail(ctx, prev, &p, model.EventDeposit, err)
	}
	ev := e.newEvent(prev, p, model.EventDeposit)
	ev.Fills = rec.fills
	ev.OrdersPlaced = placed.Levels()
	if err := e.commit(ctx, prev, &p, ev); err != nil {
		return DepositResult{}, err
	}

	e.logger.Info("deposit",
		zap.String("pool", addr.Hex()),
		zap.String("depositor", req.Depositor.Hex()),
		zap.Uint64("base", db),
		zap.Uint64("quote", dq),
		zap.Uint64("lp", lp),
	)
	return DepositResult{BaseIn: db, QuoteIn: dq, LPMinted: lp, Pool: p}, nil
}

// Withdraw burns LP and pays out the floor of the pro-rata reserves.
func (e *Engine) Withdraw(ctx context.Context, addr common.Address, req WithdrawRequest) (res WithdrawResult, err error) {
	defer func() { e.cfg.Metrics.Transition("withdraw", err) }()

	if req.LPAmount == 0 {
		return WithdrawResult{}, fmt.Errorf("%w: lp amount must be positive", ErrInvalidAmount)
	}
	prev, err := e.Pool(ctx, addr)
	if err != nil {
		return WithdrawResult{}, err
	}
	if !prev.MarketMakingActive {
		return WithdrawResult{}, ErrMarketMakingPaused
	}
	if req.LPAmount > prev.LPSupply {
		return WithdrawResult{}, fmt.Errorf("%w: lp %d exceeds supply %d", ErrInsufficientPoolLiquidity, req.LPAmount, prev.LPSupply)
	}
	held, err := e.ledger.Balance(ctx, prev.LPMint, req.Owner)
	if err != nil {
		return WithdrawResult{}, adapterErr("load lp balance", err)
	}
	if held < req.LPAmount {
		return WithdrawResult{}, fmt.Errorf("%w: owner holds %d lp, wants %d", ErrInvalidAmount, held, req.LPAmount)
	}

	p := prev.Clone()
	rec, err := e.reconcile(ctx, &p, true)
	if err != nil {
		return WithdrawResult{}, err
	}
	if !p.MarketMakingActive {
		return WithdrawResult{}, e.pauseDuring(ctx, prev, &p, rec, model.EventWithdraw)
	}

	baseOut, quoteOut, err := lptoken.AmountsForWithdraw(req.LPAmount, p.BaseAmount, p.QuoteAmount, p.LPSupply)
	if err != nil {
		if errors.Is(err, lptoken.ErrExceedsSupply) {
			return WithdrawResult{}, fmt.Errorf("%w: %w", ErrInsufficientPoolLiquidity, err)
		}
		return WithdrawResult{}, mapShareErr(err)
	}
	if baseOut > p.BaseAmount || quoteOut > p.QuoteAmount {
		return WithdrawResult{}, fmt.Errorf("%w: payout exceeds reserves", ErrInsufficientPoolLiquidity)
	}
	if baseOut < req.MinBase || quoteOut < req.MinQuote {
		return WithdrawResult{}, fmt.Errorf("%w: payout (%d, %d) below minimum (%d, %d)",
			ErrSlippageExceeded, baseOut, quoteOut, req.MinBase, req.MinQuote)
	}

	if err := e.cancelAndSettle(ctx, &p, rec.open); err != nil {
		return WithdrawResult{}, e.fail(ctx, prev, &p, model.EventWithdraw, err)
	}
	// LP is burned only once both legs are paid.
	if err := e.releasePair(ctx, &p, req.Owner, baseOut, quoteOut); err != nil {
		e.replace(ctx, &p)
		return WithdrawResult{}, e.fail(ctx, prev, &p, model.EventWithdraw, err)
	}
	if err := e.ledger.Burn(ctx, p.LPMint, req.Owner, req.LPAmount); err != nil {
		e.reclaimPair(ctx, &p, req.Owner, baseOut, quoteOut)
		e.replace(ctx, &p)
		return WithdrawResult{}, e.fail(ctx, prev, &p, model.EventWithdraw, adapterErr("burn lp", err))
	}
	p.LPSupply -= req.LPAmount

	placed, err := e.placeLadder(ctx, &p)
	if err != nil {
		return WithdrawResult{}, e.fail(ctx, prev, &p, model.EventWithdraw, err)
	}
	ev := e.newEvent(prev, p, model.EventWithdraw)
	ev.Fills = rec.fills
	ev.OrdersPlaced = placed.Levels()
	if err := e.commit(ctx, prev, &p, ev); err != nil {
		return WithdrawResult{}, err
	}

	e.logger.Info("withdraw",
		zap.String("pool", addr.Hex()),
		zap.String("owner", req.Owner.Hex()),
		zap.Uint64("lp", req.LPAmount),
		zap.Uint64("base", baseOut),
		zap.Uint64("quote", quoteOut),
	)
	return WithdrawResult{BaseOut: baseOut, QuoteOut: quoteOut, Pool: p}, nil
}

// RestartMarketMaking resumes a paused pool. Reserves are resynced from the
// vault balances net of pending refunds.
func (e *Engine) RestartMarketMaking(ctx context.Context, addr common.Address, force bool) (p model.Pool, err error) {
	defer func() { e.cfg.Metrics.Transition("restart", err) }()

	prev, err := e.Pool(ctx, addr)
	if err != nil {
		return model.Pool{}, err
	}
	if prev.MarketMakingActive && !force {
		return model.Pool{}, ErrMarketMakingActive
	}

	p = prev.Clone()
	rec, err := e.reconcile(ctx, &p, false)
	if err != nil {
		return model.Pool{}, err
	}
	if err := e.cancelAndSettle(ctx, &p, rec.open); err != nil {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventRestart, err)
	}

	oo, err := e.book.LoadOpenOrders(ctx, p.OpenOrders)
	if err != nil {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventRestart, adapterErr("load open orders", err))
	}
	if oo.BaseTotal > 0 || oo.QuoteTotal > 0 || len(oo.Orders) > 0 {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventRestart,
			fmt.Errorf("%w: base %d quote %d orders %d", ErrOpenOrdersLocked, oo.BaseTotal, oo.QuoteTotal, len(oo.Orders)))
	}

	baseVault, quoteVault, err := e.vaultBalances(ctx, p)
	if err != nil {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventRestart, err)
	}
	if baseVault < p.RefundBaseAmount || quoteVault < p.RefundQuoteAmount {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventRestart,
			fmt.Errorf("%w: vaults do not cover pending refunds", ErrStaleReserveSnapshot))
	}
	p.BaseAmount = baseVault - p.RefundBaseAmount
	p.QuoteAmount = quoteVault - p.RefundQuoteAmount
	p.MarketMakingActive = true

	placed, err := e.placeLadder(ctx, &p)
	if err != nil {
		return model.Pool{}, e.fail(ctx, prev, &p, model.EventRestart, err)
	}
	ev := e.newEvent(prev, p, model.EventRestart)
	ev.Fills = rec.fills
	ev.OrdersPlaced = placed.Levels()
	if err := e.commit(ctx, prev, &p, ev); err != nil {
		return model.Pool{}, err
	}

	e.logger.Info("market making restarted",
		zap.String("pool", addr.Hex()),
		zap.Uint64("base", p.BaseAmount),
		zap.Uint64("quote", p.QuoteAmount),
		zap.Bool("forced", force),
	)
	return p, nil
}

// escrowPair pulls both seed amounts into the vaults. A failed quote leg
// returns the base leg to the payer.
func (e *Engine) escrowPair(ctx context.Context, p *model.Pool, payer common.Address, base, quote uint64) error {
	if err := e.escrow(ctx, p.BaseAsset, payer, p.BaseVault, base); err != nil {
		return err
	}
	if err := e.escrow(ctx, p.QuoteAsset, payer, p.QuoteVault, quote); err != nil {
		if rerr := e.release(ctx, p.BaseAsset, p.BaseVault, payer, base); rerr != nil {
			e.logger.Error("return base escrow", zap.String("pool", p.Address.Hex()), zap.Error(rerr))
		}
		return err
	}
	p.BaseAmount += base
	p.QuoteAmount += quote
	return nil
}

// returnEscrow hands a deposit back after a later step failed. A leg that
// cannot be returned stays in the reserves.
func (e *Engine) returnEscrow(ctx context.Context, p *model.Pool, payer common.Address, base, quote uint64) {
	if err := e.release(ctx, p.BaseAsset, p.BaseVault, payer, base); err != nil {
		e.logger.Error("return base escrow", zap.String("pool", p.Address.Hex()), zap.Error(err))
	} else {
		p.BaseAmount -= base
	}
	if err := e.release(ctx, p.QuoteAsset, p.QuoteVault, payer, quote); err != nil {
		e.logger.Error("return quote escrow", zap.String("pool", p.Address.Hex()), zap.Error(err))
	} else {
		p.QuoteAmount -= quote
	}
}

// releasePair pays both withdrawal legs. A failed quote leg takes the base
// leg back from the owner.
func (e *Engine) releasePair(ctx context.Context, p *model.Pool, owner common.Address, base, quote uint64) error {
	if err := e.release(ctx, p.BaseAsset, p.BaseVault, owner, base); err != nil {
		return err
	}
	if err := e.release(ctx, p.QuoteAsset, p.QuoteVault, owner, quote); err != nil {
		if rerr := e.escrow(ctx, p.BaseAsset, owner, p.BaseVault, base); rerr != nil {
			e.logger.Error("reclaim base payout", zap.String("pool", p.Address.Hex()), zap.Error(rerr))
			p.BaseAmount -= base
		}
		return err
	}
	p.BaseAmount -= base
	p.QuoteAmount -= quote
	return nil
}

// reclaimPair undoes releasePair when the burn fails. A leg that cannot be
// reclaimed is left out of the reserves.
func (e *Engine) reclaimPair(ctx context.Context, p *model.Pool, owner common.Address, base, quote uint64) {
	if err := e.escrow(ctx, p.BaseAsset, owner, p.BaseVault, base); err != nil {
		e.logger.Error("reclaim base payout", zap.String("pool", p.Address.Hex()), zap.Error(err))
	} else {
		p.BaseAmount += base
	}
	if err := e.escrow(ctx, p.QuoteAsset, owner, p.QuoteVault, quote); err != nil {
		e.logger.Error("reclaim quote payout", zap.String("pool", p.Address.Hex()), zap.Error(err))
	} else {
		p.QuoteAmount += quote
	}
}

// replace re-posts the ladder pulled by an aborted transition.
func (e *Engine) replace(ctx context.Context, p *model.Pool) {
	if _, err := e.placeLadder(ctx, p); err != nil {
		e.logger.Warn("replace ladder", zap.String("pool", p.Address.Hex()), zap.Error(err))
	}
}

func (e *Engine) vaultBalances(ctx context.Context, p model.Pool) (uint64, uint64, error) {
	base, err := e.ledger.Balance(ctx, p.BaseAsset, p.BaseVault)
	if err != nil {
		return 0, 0, adapterErr("load base vault", err)
	}
	quote, err := e.ledger.Balance(ctx, p.QuoteAsset, p.QuoteVault)
	if err != nil {
		return 0, 0, adapterErr("load quote vault", err)
	}
	return base, quote, nil
}

func mapShareErr(err error) error {
	if errors.Is(err, lptoken.ErrSlippage) {
		return fmt.Errorf("%w: %w", ErrSlippageExceeded, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
}

func (e *Engine) newEvent(prev, p model.Pool, kind model.EventKind) model.PoolEvent {
	return model.PoolEvent{
		Pool:          p.Address.Hex(),
		Market:        p.Market,
		CurveKind:     p.CurveKind,
		Kind:          kind,
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
		StartBase:     prev.BaseAmount,
		StartQuote:    prev.QuoteAmount,
		StartLP:       prev.LPSupply,
		Paused:        !p.MarketMakingActive,
	}
}

// commit stores p over prev and journals the event.
func (e *Engine) commit(ctx context.Context, prev model.Pool, p *model.Pool, ev model.PoolEvent) error {
	now := e.cfg.Now().UTC()
	p.Sequence = prev.Sequence + 1
	p.UpdatedAt = now
	if err := e.store.SavePool(ctx, *p, prev.Sequence); err != nil {
		if errors.Is(err, storage.ErrSequenceConflict) {
			return fmt.Errorf("%w: %w", ErrStaleReserveSnapshot, err)
		}
		return fmt.Errorf("save pool: %w", err)
	}

	ev.Sequence = p.Sequence
	ev.Timestamp = uint64(now.Unix())
	ev.EndBase = p.BaseAmount
	ev.EndQuote = p.QuoteAmount
	ev.EndLP = p.LPSupply
	ev.Paused = !p.MarketMakingActive
	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.PutEventBatch(ctx, []model.PoolEvent{ev}); err != nil {
			e.logger.Warn("journal event", zap.String("pool", p.Address.Hex()), zap.Uint64("sequence", p.Sequence), zap.Error(err))
		}
	}
	e.cfg.Metrics.ObservePool(*p)
	e.cfg.Metrics.ObserveFills(*p, ev.Fills)
	if ev.CrankerBase > 0 || ev.CrankerQuote > 0 {
		e.cfg.Metrics.ObserveCrankerPayment(*p, ev.CrankerBase, ev.CrankerQuote)
	}
	return nil
}

// fail commits the external effects that already happened and returns cause.
func (e *Engine) fail(ctx context.Context, prev model.Pool, p *model.Pool, kind model.EventKind, cause error) error {
	ev := e.newEvent(prev, *p, kind)
	if err := e.commit(ctx, prev, p, ev); err != nil {
		e.logger.Error("commit after failure",
			zap.String("pool", p.Address.Hex()),
			zap.String("op", string(kind)),
			zap.Error(err),
		)
		return errors.Join(cause, err)
	}
	e.logger.Warn("transition aborted",
		zap.String("pool", p.Address.Hex()),
		zap.String("op", string(kind)),
		zap.Error(cause),
	)
	return cause
}

// pauseDuring commits a pool whose ladder side vanished and reports the pause.
func (e *Engine) pauseDuring(ctx context.Context, prev model.Pool, p *model.Pool, rec reconciliation, kind model.EventKind) error {
	if err := e.cancelAndSettle(ctx, p, rec.open); err != nil {
		return e.fail(ctx, prev, p, kind, err)
	}
	ev := e.newEvent(prev, *p, kind)
	ev.Fills = rec.fills
	if err := e.commit(ctx, prev, p, ev); err != nil {
		return err
	}
	e.logger.Warn("market making paused", zap.String("pool", p.Address.Hex()), zap.String("op", string(kind)))
	return ErrMarketMakingPaused
}

func (e *Engine) ladderParams(p model.Pool, book model.BookSnapshot) ladder.Params {
	return ladder.Params{
		BaseLotSize:  p.BaseLotSize,
		QuoteLotSize: p.QuoteLotSize,
		FeeBps:       curve.FeeBps(p.CurveKind),
		MinBaseLots:  e.cfg.MinBaseLots,
		BestBid:      book.BestBid(),
		BestAsk:      book.BestAsk(),
		AskSteps:     e.cfg.AskSteps,
		BidSteps:     e.cfg.BidSteps,
	}
}
