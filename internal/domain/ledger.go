package domain

import "context"

// Ledger moves fungible balances keyed by (asset, owner). Every call is
// all-or-nothing; callers run several calls inside one Store transaction to
// make a compound operation atomic.
type Ledger interface {
	Transfer(ctx context.Context, asset, from, to string, amount uint64) error
	// Mint fails with ErrUnauthorized unless authority is the asset's
	// registered mint authority.
	Mint(ctx context.Context, asset, to string, amount uint64, authority string) error
	// Burn fails with ErrUnauthorized unless owner is the holder being debited.
	Burn(ctx context.Context, asset, from string, amount uint64, owner string) error
	BalanceOf(ctx context.Context, asset, owner string) (uint64, error)
}

// AssetRegistry provisions ledger assets.
type AssetRegistry interface {
	CreateAsset(ctx context.Context, asset, mintAuthority string) error
}

// Asset is a registered ledger asset.
type Asset struct {
	ID            string
	MintAuthority string
	TotalSupply   uint64
}
