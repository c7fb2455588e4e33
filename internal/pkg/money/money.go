package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundingMode is the payroll rounding policy applied at currency precision.
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "half_up"
	RoundHalfEven RoundingMode = "half_even"
	RoundDown     RoundingMode = "down"
)

func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case RoundHalfUp, RoundHalfEven, RoundDown:
		return RoundingMode(s), nil
	}
	return "", fmt.Errorf("unknown rounding mode %q", s)
}

// Policy rounds monetary amounts to a fixed number of decimal places.
type Policy struct {
	Places int32
	Mode   RoundingMode
}

// DefaultPolicy is two decimal places, half-up.
var DefaultPolicy = Policy{Places: 2, Mode: RoundHalfUp}

func (p Policy) Round(d decimal.Decimal) decimal.Decimal {
	switch p.Mode {
	case RoundHalfEven:
		return d.RoundBank(p.Places)
	case RoundDown:
		return d.RoundDown(p.Places)
	default:
		// half-up: ties round away from zero
		return d.Round(p.Places)
	}
}

// MulRound multiplies and rounds in one step so no intermediate is ever rounded.
func (p Policy) MulRound(a, b decimal.Decimal) decimal.Decimal {
	return p.Round(a.Mul(b))
}
