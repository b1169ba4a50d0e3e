package domain

import "errors"

// Arithmetic and pricing errors.
var (
	ErrOverflow              = errors.New("arithmetic overflow")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrInvalidSide           = errors.New("invalid side")
	ErrInsufficientSupply    = errors.New("insufficient supply")
	ErrInsufficientPoolValue = errors.New("insufficient pool value")
	ErrNoWinningTokens       = errors.New("no winning tokens")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidCurve          = errors.New("invalid curve parameters")
)

// Lifecycle state violations.
var (
	ErrTradingHalted      = errors.New("trading halted")
	ErrTradingNotHalted   = errors.New("trading not halted")
	ErrAlreadyHalted      = errors.New("market already halted")
	ErrAlreadyResolved    = errors.New("market already resolved")
	ErrMarketNotResolved  = errors.New("market not resolved")
	ErrNoWinner           = errors.New("market has no winner")
	ErrMarketNotActive    = errors.New("market not active")
	ErrAlreadyInitialized = errors.New("market already initialized")
	ErrWrongMarketKind    = errors.New("operation not supported by market kind")
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidMarket       = errors.New("invalid market parameters")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSigningFailed       = errors.New("signing failed")
	ErrLockHeld            = errors.New("lock already held")
)

var stateViolations = []error{
	ErrTradingHalted,
	ErrTradingNotHalted,
	ErrAlreadyHalted,
	ErrAlreadyResolved,
	ErrMarketNotResolved,
	ErrNoWinner,
	ErrMarketNotActive,
	ErrAlreadyInitialized,
	ErrWrongMarketKind,
}

// IsStateViolation reports whether err means the operation is illegal for
// the market's current lifecycle state.
func IsStateViolation(err error) bool {
	for _, target := range stateViolations {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
