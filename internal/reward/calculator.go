// internal/reward/calculator.go
package reward

import (
	"math"

	"cardwise/internal/domain"
)

// Computation is the raw outcome of applying one rule to one amount. Value is
// unrounded; callers round per Kind at the presentation boundary (cashback to
// cents, miles and points to whole units). Eligible distinguishes "no rule
// applied" from "rule applied, reward happens to be small".
type Computation struct {
	Value    float64
	Eligible bool
	Kind     domain.ProgramKind
}

// Compute applies min-spend gating, the rate formula and cap clamping.
// amount must be positive; a nil rule means the card is ineligible.
func Compute(rule *domain.RewardRule, kind domain.ProgramKind, amount float64) Computation {
	if rule == nil || amount <= 0 {
		return Computation{Kind: kind}
	}
	if rule.MinSpend != nil && amount < *rule.MinSpend {
		// Below min spend the rule does not apply at all.
		return Computation{Kind: kind}
	}

	var value float64
	switch rule.RateUnit {
	case domain.RatePercentage:
		value = amount * rule.RateValue
	case domain.RatePerAmount:
		value = amount / rule.RateValue
	default:
		return Computation{Kind: kind}
	}

	if rule.CapValue != nil {
		value = math.Min(value, *rule.CapValue)
	}

	return Computation{Value: value, Eligible: true, Kind: kind}
}

// RoundForDisplay applies the per-kind rounding convention: cashback is money
// (two decimals, half-up), miles and points are whole units.
func RoundForDisplay(value float64, kind domain.ProgramKind) float64 {
	if kind == domain.ProgramCashback {
		return math.Floor(value*100+0.5) / 100
	}
	return math.Floor(value + 0.5)
}
