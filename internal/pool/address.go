package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"openamm/internal/model"
)

const poolSeed = "openamm-pool"

// Address derives the pool identity for a market and curve kind.
func Address(marketID string, kind model.CurveKind) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(poolSeed), []byte(marketID), []byte{byte(kind)}))
}

func deriveAccount(pool common.Address, seed string) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pool.Bytes(), []byte(seed)))
}

// Accounts are the ledger and venue accounts owned by a pool.
type Accounts struct {
	BaseVault  common.Address
	QuoteVault common.Address
	OpenOrders common.Address
	LPMint     model.Asset
}

// DeriveAccounts returns the accounts owned by the pool at addr.
func DeriveAccounts(addr common.Address) Accounts {
	return Accounts{
		BaseVault:  deriveAccount(addr, "base-vault"),
		QuoteVault: deriveAccount(addr, "quote-vault"),
		OpenOrders: deriveAccount(addr, "open-orders"),
		LPMint:     model.Asset("lp:" + deriveAccount(addr, "lp-mint").Hex()),
	}
}
