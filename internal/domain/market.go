package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketState is the lifecycle state of a market.
type MarketState string

const (
	MarketStateCreated  MarketState = "created"
	MarketStateActive   MarketState = "active"
	MarketStateHalted   MarketState = "halted"
	MarketStateResolved MarketState = "resolved"
)

// MarketKind selects the pricing mechanism attached to a market.
type MarketKind string

const (
	MarketKindPool  MarketKind = "pool"  // constant-product pool over the two outcome tokens
	MarketKindCurve MarketKind = "curve" // bonding-curve issuance against the value asset
)

// CurveShape selects the bonding-curve price function.
type CurveShape string

const (
	CurveShapePower  CurveShape = "power"
	CurveShapeLinear CurveShape = "linear"
)

// Length limits for market metadata.
const (
	MaxGameIDLen   = 50
	MaxSideNameLen = 20
)

// PoolState holds the reserves of a constant-product pool.
type PoolState struct {
	ReserveA uint64
	ReserveB uint64
	// K is reserveA*reserveB at initialization. It is informational only and
	// drifts as swaps round in the pool's favour.
	K decimal.Decimal
}

// Reserve returns the reserve held for side.
func (p PoolState) Reserve(s Side) uint64 {
	if s == SideA {
		return p.ReserveA
	}
	return p.ReserveB
}

// CurveParams are fixed for the lifetime of a bonding-curve market.
type CurveParams struct {
	Shape CurveShape
	K     uint64 // power: price at one whole token, scaled by 1e9
	N     uint32 // power: exponent in hundredths
	Base  uint64 // linear: price at zero supply, scaled by 1e9
	Slope uint64 // linear: price increase per whole token, scaled by 1e9
}

// Market is one sporting event with two outcome sides.
type Market struct {
	ID         string
	Address    string // market identity; mint authority of both outcome tokens
	SideNames  [2]string
	Authority  string
	TokenIDs   [2]string
	ValueAsset string
	Vault      string // holds the value asset backing curve markets
	PoolVault  string // holds the outcome-token reserves of pool markets
	Kind       MarketKind
	State      MarketState
	Winner     *Side
	Pool       PoolState
	Curve      CurveParams
	Supply     [2]uint64
	PoolValue  uint64
	KickoffAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TradingHalted reports whether the market no longer accepts trades.
func (m Market) TradingHalted() bool {
	return m.State == MarketStateHalted || m.State == MarketStateResolved
}

// TokenID returns the outcome-token asset id for side.
func (m Market) TokenID(s Side) string { return m.TokenIDs[s.Index()] }

// MarketFilter narrows market listings.
type MarketFilter struct {
	State         MarketState
	Kind          MarketKind
	KickoffBefore *time.Time
	ListOpts
}
