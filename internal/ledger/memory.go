package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"openamm/internal/model"
)

// ErrInsufficientBalance is returned when an account cannot cover a debit.
var ErrInsufficientBalance = errors.New("insufficient balance")

type balanceKey struct {
	asset model.Asset
	owner common.Address
}

// Memory is an in-process ledger of asset balances and mint supplies.
type Memory struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	supply   map[model.Asset]uint64
	logger   *zap.Logger
}

func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		balances: make(map[balanceKey]uint64),
		supply:   make(map[model.Asset]uint64),
		logger:   logger,
	}
}

// Transfer moves amount of asset between two accounts.
func (m *Memory) Transfer(ctx context.Context, asset model.Asset, from, to common.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src := balanceKey{asset: asset, owner: from}
	dst := balanceKey{asset: asset, owner: to}
	if m.balances[src] < amount {
		return fmt.Errorf("transfer %d %s from %s: %w", amount, asset, from.Hex(), ErrInsufficientBalance)
	}
	if m.balances[dst]+amount < m.balances[dst] {
		return fmt.Errorf("transfer %d %s to %s: balance overflow", amount, asset, to.Hex())
	}
	m.balances[src] -= amount
	m.balances[dst] += amount

	m.logger.Debug("transfer",
		zap.String("asset", string(asset)),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("amount", amount),
	)
	return nil
}

// Balance returns the balance of owner in asset.
func (m *Memory) Balance(ctx context.Context, asset model.Asset, owner common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[balanceKey{asset: asset, owner: owner}], nil
}

// Mint creates amount of asset in the to account.
func (m *Memory) Mint(ctx context.Context, asset model.Asset, to common.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.supply[asset]+amount < m.supply[asset] {
		return fmt.Errorf("mint %d %s: supply overflow", amount, asset)
	}
	m.supply[asset] += amount
	m.balances[balanceKey{asset: asset, owner: to}] += amount
	return nil
}

// Burn destroys amount of asset held by from.
func (m *Memory) Burn(ctx context.Context, asset model.Asset, from common.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{asset: asset, owner: from}
	if m.balances[key] < amount {
		return fmt.Errorf("burn %d %s from %s: %w", amount, asset, from.Hex(), ErrInsufficientBalance)
	}
	m.balances[key] -= amount
	m.supply[asset] -= amount
	return nil
}

// Supply returns the minted supply of asset.
func (m *Memory) Supply(ctx context.Context, asset model.Asset) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply[asset], nil
}
