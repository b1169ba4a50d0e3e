package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Seeds for the accounts every market owns.
const (
	SeedMarket    = "market"
	SeedSideAMint = "team_a_mint"
	SeedSideBMint = "team_b_mint"
	SeedVault     = "vault"
	SeedPoolVault = "pool_vault"
)

// DeriveAddress returns the deterministic identity for seed under gameID:
// the low 20 bytes of keccak256(seed || 0x00 || gameID).
func DeriveAddress(seed, gameID string) string {
	h := ethcrypto.Keccak256([]byte(seed), []byte{0}, []byte(gameID))
	return common.BytesToAddress(h).Hex()
}

// MarketAccounts are the derived identities of one market.
type MarketAccounts struct {
	Market    string
	Tokens    [2]string
	Vault     string
	PoolVault string
}

// DeriveMarketAccounts derives every account a market needs.
func DeriveMarketAccounts(gameID string) MarketAccounts {
	return MarketAccounts{
		Market:    DeriveAddress(SeedMarket, gameID),
		Tokens:    [2]string{DeriveAddress(SeedSideAMint, gameID), DeriveAddress(SeedSideBMint, gameID)},
		Vault:     DeriveAddress(SeedVault, gameID),
		PoolVault: DeriveAddress(SeedPoolVault, gameID),
	}
}

// NormalizeAddress returns the checksummed form of a hex address, or "" when
// addr is not one.
func NormalizeAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return ""
	}
	return common.HexToAddress(addr).Hex()
}
