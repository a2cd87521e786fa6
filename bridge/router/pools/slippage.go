package pools

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// DefaultTolerance is used when the host sends no slippage, in percent.
var DefaultTolerance = decimal.RequireFromString("0.5")

// Percentage is a slippage tolerance held as a fraction (0.005 is 0.5%).
type Percentage struct {
	fraction decimal.Decimal
}

// FromTolerance converts a tolerance in percent (0.5 means 0.5%) into a
// Percentage. It must lie in [0, 100).
func FromTolerance(tolerance decimal.Decimal) (Percentage, error) {
	if tolerance.IsNegative() || tolerance.GreaterThanOrEqual(hundred) {
		return Percentage{}, fmt.Errorf("slippage tolerance %s%% out of range [0, 100)", tolerance.String())
	}
	return Percentage{fraction: tolerance.Div(hundred)}, nil
}

// NoSlippage is used for price discovery where no minimum is enforced.
func NoSlippage() Percentage { return Percentage{fraction: decimal.Zero} }

func (p Percentage) Fraction() decimal.Decimal { return p.fraction }

func (p Percentage) String() string { return p.fraction.Mul(hundred).String() + "%" }

// CalculateMinOutput applies the tolerance to an expected output given in
// raw base units and rounds down, so the minimum never exceeds what the
// tolerance allows.
// minOutput = floor(expected * (1 - fraction))
func CalculateMinOutput(expected decimal.Decimal, slippage Percentage) decimal.Decimal {
	return expected.Mul(one.Sub(slippage.fraction)).Floor()
}
