// Package lifecycle holds the market state machine:
//
//	created -> active -> halted -> resolved
//
// Every transition takes a market value, validates it, and returns the
// updated copy with the event describing the change. Halting and resolving
// cannot be undone, and a market must be halted before it can be resolved.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// Open sets the initial state of a newly created market. Pool markets wait
// in created until their first liquidity; curve markets trade immediately.
func Open(m domain.Market, now time.Time) (domain.Market, []domain.LifecycleEvent) {
	m.State = domain.MarketStateCreated
	m.Winner = nil
	m.CreatedAt, m.UpdatedAt = now, now
	events := []domain.LifecycleEvent{event(m, domain.LifecycleCreated, m.Authority, now)}
	if m.Kind == domain.MarketKindCurve {
		m.State = domain.MarketStateActive
		events = append(events, event(m, domain.LifecycleActivated, m.Authority, now))
	}
	return m, events
}

// Activate moves a created market to active. It happens exactly once.
func Activate(m domain.Market, caller string, now time.Time) (domain.Market, domain.LifecycleEvent, error) {
	if err := requireAuthority(m, caller); err != nil {
		return m, domain.LifecycleEvent{}, err
	}
	if m.State != domain.MarketStateCreated {
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: activate %s in state %s: %w", m.ID, m.State, domain.ErrAlreadyInitialized)
	}
	m.State = domain.MarketStateActive
	m.UpdatedAt = now
	return m, event(m, domain.LifecycleActivated, caller, now), nil
}

// Halt closes trading. Only the authority may halt, and only an active market.
func Halt(m domain.Market, caller string, now time.Time) (domain.Market, domain.LifecycleEvent, error) {
	if err := requireAuthority(m, caller); err != nil {
		return m, domain.LifecycleEvent{}, err
	}
	switch m.State {
	case domain.MarketStateActive:
	case domain.MarketStateHalted:
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: halt %s: %w", m.ID, domain.ErrAlreadyHalted)
	case domain.MarketStateResolved:
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: halt %s: %w", m.ID, domain.ErrAlreadyResolved)
	default:
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: halt %s in state %s: %w", m.ID, m.State, domain.ErrMarketNotActive)
	}
	m.State = domain.MarketStateHalted
	m.UpdatedAt = now
	return m, event(m, domain.LifecycleHalted, caller, now), nil
}

// Resolve records the winner of a halted market.
func Resolve(m domain.Market, caller string, winner domain.Side, now time.Time) (domain.Market, domain.LifecycleEvent, error) {
	if err := requireAuthority(m, caller); err != nil {
		return m, domain.LifecycleEvent{}, err
	}
	if !winner.Valid() {
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: resolve %s: %w", m.ID, domain.ErrInvalidSide)
	}
	switch m.State {
	case domain.MarketStateHalted:
	case domain.MarketStateResolved:
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: resolve %s: %w", m.ID, domain.ErrAlreadyResolved)
	default:
		return m, domain.LifecycleEvent{}, fmt.Errorf("lifecycle: resolve %s in state %s: %w", m.ID, m.State, domain.ErrTradingNotHalted)
	}
	w := winner
	m.State = domain.MarketStateResolved
	m.Winner = &w
	m.UpdatedAt = now
	return m, event(m, domain.LifecycleResolved, caller, now), nil
}

// CheckTradable fails unless the market is active.
func CheckTradable(m domain.Market) error {
	switch m.State {
	case domain.MarketStateActive:
		return nil
	case domain.MarketStateHalted, domain.MarketStateResolved:
		return fmt.Errorf("lifecycle: market %s: %w", m.ID, domain.ErrTradingHalted)
	default:
		return fmt.Errorf("lifecycle: market %s in state %s: %w", m.ID, m.State, domain.ErrMarketNotActive)
	}
}

// WinningSide returns the resolved winner.
func WinningSide(m domain.Market) (domain.Side, error) {
	if m.State != domain.MarketStateResolved {
		return 0, fmt.Errorf("lifecycle: market %s: %w", m.ID, domain.ErrMarketNotResolved)
	}
	if m.Winner == nil {
		return 0, fmt.Errorf("lifecycle: market %s: %w", m.ID, domain.ErrNoWinner)
	}
	return *m.Winner, nil
}

func requireAuthority(m domain.Market, caller string) error {
	if caller == "" || caller != m.Authority {
		return fmt.Errorf("lifecycle: %s is not the authority of %s: %w", caller, m.ID, domain.ErrUnauthorized)
	}
	return nil
}

func event(m domain.Market, kind domain.LifecycleKind, actor string, now time.Time) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		MarketID:  m.ID,
		Kind:      kind,
		Actor:     actor,
		Winner:    m.Winner,
		CreatedAt: now,
	}
}
