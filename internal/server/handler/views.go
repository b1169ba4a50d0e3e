package handler

import (
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/amm"
	"github.com/alanyoungcy/sportsxchange/internal/curve"
	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// Amounts are sent twice: base units as decimal strings for exact
// arithmetic, and whole-token display values for people.

type curveView struct {
	Shape string `json:"shape"`
	K     uint64 `json:"k,string,omitempty"`
	N     uint32 `json:"n,omitempty"`
	Base  uint64 `json:"base,string,omitempty"`
	Slope uint64 `json:"slope,string,omitempty"`
}

type sideView struct {
	Name     string `json:"name"`
	TokenID  string `json:"token_id"`
	Reserve  uint64 `json:"reserve,string"`
	Supply   uint64 `json:"supply,string"`
	Display  string `json:"supply_display"`
	Price    string `json:"price,omitempty"`
	IsWinner bool   `json:"is_winner,omitempty"`
}

type marketView struct {
	ID               string     `json:"id"`
	Address          string     `json:"address"`
	Authority        string     `json:"authority"`
	Kind             string     `json:"kind"`
	State            string     `json:"state"`
	Winner           string     `json:"winner,omitempty"`
	ValueAsset       string     `json:"value_asset"`
	Vault            string     `json:"vault"`
	PoolVault        string     `json:"pool_vault"`
	A                sideView   `json:"side_a"`
	B                sideView   `json:"side_b"`
	PoolK            string     `json:"pool_k,omitempty"`
	Curve            *curveView `json:"curve,omitempty"`
	PoolValue        uint64     `json:"pool_value,string"`
	PoolValueDisplay string     `json:"pool_value_display"`
	KickoffAt        *time.Time `json:"kickoff_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newMarketView(m domain.Market) marketView {
	v := marketView{
		ID:               m.ID,
		Address:          m.Address,
		Authority:        m.Authority,
		Kind:             string(m.Kind),
		State:            string(m.State),
		ValueAsset:       m.ValueAsset,
		Vault:            m.Vault,
		PoolVault:        m.PoolVault,
		PoolValue:        m.PoolValue,
		PoolValueDisplay: displayUnits(m.PoolValue),
		KickoffAt:        m.KickoffAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.Winner != nil {
		v.Winner = m.Winner.String()
	}

	var pricer curve.Pricer
	switch m.Kind {
	case domain.MarketKindPool:
		if !m.Pool.K.IsZero() {
			v.PoolK = m.Pool.K.String()
		}
	case domain.MarketKindCurve:
		v.Curve = &curveView{
			Shape: string(m.Curve.Shape),
			K:     m.Curve.K,
			N:     m.Curve.N,
			Base:  m.Curve.Base,
			Slope: m.Curve.Slope,
		}
		pricer, _ = curve.New(m.Curve)
	}

	for _, s := range domain.Sides {
		sv := sideView{
			Name:     m.SideNames[s.Index()],
			TokenID:  m.TokenID(s),
			Reserve:  m.Pool.Reserve(s),
			Supply:   m.Supply[s.Index()],
			Display:  displayUnits(m.Supply[s.Index()]),
			IsWinner: m.Winner != nil && *m.Winner == s,
		}
		switch {
		case m.Kind == domain.MarketKindPool && m.State != domain.MarketStateCreated:
			sv.Price = amm.SpotPrice(m.Pool, s).String()
		case pricer != nil:
			if p, err := pricer.PriceAt(m.Supply[s.Index()]); err == nil {
				sv.Price = curve.DisplayPrice(p).String()
			}
		}
		if s == domain.SideA {
			v.A = sv
		} else {
			v.B = sv
		}
	}
	return v
}

// displayUnits renders base units as whole tokens.
func displayUnits(amount uint64) string {
	return decimal.NewFromUint64(amount).Shift(-fixedpoint.TokenDecimals).String()
}
