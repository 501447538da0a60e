package clob

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"openamm/internal/model"
)

var (
	// ErrWouldCross is returned when a post-only order would take liquidity.
	ErrWouldCross = errors.New("post-only order would cross")
	// ErrUnknownAccount is returned for an open-orders account that was never initialized.
	ErrUnknownAccount = errors.New("unknown open-orders account")
	// ErrOrderNotFound is returned when cancelling an order that is not resting.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrder is returned for malformed order requests.
	ErrInvalidOrder = errors.New("invalid order")
)

// Ledger moves custody between the venue vaults and its users.
type Ledger interface {
	Transfer(ctx context.Context, asset model.Asset, from, to common.Address, amount uint64) error
}

type order struct {
	id       uint64
	clientID uint64
	owner    common.Address
	side     model.Side
	price    uint64
	lots     uint64
	// locked is base for asks and quote for bids.
	locked uint64
	seq    uint64
}

type account struct {
	owner       common.Address
	baseFree    uint64
	baseLocked  uint64
	quoteFree   uint64
	quoteLocked uint64
	orders      map[uint64]*order
}

// Book is an in-memory price-time priority CLOB for a single market.
type Book struct {
	market     model.Market
	takerFee   uint64
	baseVault  common.Address
	quoteVault common.Address
	ledger     Ledger
	logger     *zap.Logger

	mu        sync.RWMutex
	bids      []*order
	asks      []*order
	accounts  map[common.Address]*account
	nextID    uint64
	nextSeq   uint64
	feesBase  uint64
	feesQuote uint64
}

// Options tunes the simulated venue.
type Options struct {
	TakerFeeBps uint64
	Logger      *zap.Logger
}

// New creates a venue for market backed by ledger custody.
func New(market model.Market, ledger Ledger, opts Options) (*Book, error) {
	if market.BaseLotSize == 0 || market.QuoteLotSize == 0 {
		return nil, fmt.Errorf("market %s: lot sizes must be positive", market.ID)
	}
	if market.BaseAsset == "" || market.QuoteAsset == "" || market.BaseAsset == market.QuoteAsset {
		return nil, fmt.Errorf("market %s: invalid asset pair", market.ID)
	}
	if opts.TakerFeeBps >= feeDenominator {
		return nil, fmt.Errorf("taker fee %d bps out of range", opts.TakerFeeBps)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		market:     market,
		takerFee:   opts.TakerFeeBps,
		baseVault:  VaultAddress(market.ID, market.BaseAsset),
		quoteVault: VaultAddress(market.ID, market.QuoteAsset),
		ledger:     ledger,
		logger:     logger.With(zap.String("market", market.ID)),
		accounts:   make(map[common.Address]*account),
		nextID:     1,
	}, nil
}

// VaultAddress derives the venue custody account of asset for a market.
func VaultAddress(marketID string, asset model.Asset) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("openamm-clob-vault"), []byte(marketID), []byte(asset)))
}

// Market returns the market description.
func (b *Book) Market(ctx context.Context) (model.Market, error) {
	if err := ctx.Err(); err != nil {
		return model.Market{}, err
	}
	return b.market, nil
}

// Fees returns the taker fees the venue has retained.
func (b *Book) Fees() (base, quote uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.feesBase, b.feesQuote
}

// LoadBook aggregates resting orders into price levels, best first.
func (b *Book) LoadBook(ctx context.Context) (model.BookSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.BookSnapshot{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return model.BookSnapshot{
		Bids: aggregateLevels(b.bids),
		Asks: aggregateLevels(b.asks),
	}, nil
}

func aggregateLevels(orders []*order) []model.BookLevel {
	levels := make([]model.BookLevel, 0, len(orders))
	for _, o := range orders {
		if n := len(levels); n > 0 && levels[n-1].Price == o.price {
			levels[n-1].BaseLots += o.lots
			continue
		}
		levels = append(levels, model.BookLevel{Price: o.price, BaseLots: o.lots})
	}
	return levels
}

// insert keeps bids descending and asks ascending by price, then by arrival.
func (b *Book) insert(o *order) {
	if o.side == model.Bid {
		i := sort.Search(len(b.bids), func(i int) bool {
			return b.bids[i].price < o.price
		})
		b.bids = append(b.bids, nil)
		copy(b.bids[i+1:], b.bids[i:])
		b.bids[i] = o
		return
	}
	i := sort.Search(len(b.asks), func(i int) bool {
		return b.asks[i].price > o.price
	})
	b.asks = append(b.asks, nil)
	copy(b.asks[i+1:], b.asks[i:])
	b.asks[i] = o
}

func (b *Book) remove(o *order) {
	side := &b.asks
	if o.side == model.Bid {
		side = &b.bids
	}
	for i, cur := range *side {
		if cur == o {
			*side = append((*side)[:i], (*side)[i+1:]...)
			return
		}
	}
}

func (b *Book) bestBid() uint64 {
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].price
}

func (b *Book) bestAsk() uint64 {
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].price
}
