package domain

import (
	"fmt"
	"strings"
)

// Side identifies one of the two outcomes of a binary market.
type Side uint8

const (
	SideA Side = iota // home team
	SideB             // away team
)

// Sides lists both sides in index order.
var Sides = [2]Side{SideA, SideB}

// ParseSide accepts the canonical names plus the home/away and team_a/team_b
// aliases used by schedules and clients.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "home", "team_a", "0":
		return SideA, nil
	case "b", "away", "team_b", "1":
		return SideB, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool { return s == SideA || s == SideB }

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Index returns the array index for per-side fields.
func (s Side) Index() int { return int(s) }

func (s Side) String() string {
	switch s {
	case SideA:
		return "a"
	case SideB:
		return "b"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
