// internal/reward/matcher.go
package reward

import (
	"log/slog"

	"cardwise/internal/domain"
)

// Match selects the single rule governing (card, category). Category-specific
// rules beat the card's general rule, so a card never contributes more than one
// rule to a calculation. Returns nil when nothing applies.
func Match(rules []domain.RewardRule, categoryID int64) *domain.RewardRule {
	var general *domain.RewardRule
	for i := range rules {
		r := &rules[i]
		if r.Status != domain.RuleActive {
			continue
		}
		if !validRule(r) {
			slog.Warn("skipping invalid reward rule", "rule_id", r.ID, "card_id", r.CardID, "rate_value", r.RateValue)
			continue
		}
		if r.CategoryID == nil {
			if general == nil {
				general = r
			}
			continue
		}
		if *r.CategoryID == categoryID {
			return r
		}
	}
	return general
}

// validRule rejects rules whose numbers cannot produce a meaningful reward.
// A PER_AMOUNT rate is a divisor, so non-positive values would divide by zero.
func validRule(r *domain.RewardRule) bool {
	if r.RateValue <= 0 {
		return false
	}
	if r.MinSpend != nil && *r.MinSpend < 0 {
		return false
	}
	if r.CapValue != nil && *r.CapValue < 0 {
		return false
	}
	return true
}
