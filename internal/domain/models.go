// internal/domain/models.go
package domain

// ProgramKind — what a card's rewards are denominated in.
type ProgramKind string

const (
	ProgramCashback ProgramKind = "CASHBACK"
	ProgramMileage  ProgramKind = "MILEAGE"
	ProgramPoints   ProgramKind = "POINTS"
)

// RateUnit determines the reward formula.
// PERCENTAGE: reward = amount * rate_value.
// PER_AMOUNT: reward = amount / rate_value (rate_value is currency spent per unit earned).
type RateUnit string

const (
	RatePercentage RateUnit = "PERCENTAGE"
	RatePerAmount  RateUnit = "PER_AMOUNT"
)

// RuleStatus — only ACTIVE rules participate in matching.
type RuleStatus string

const (
	RuleActive   RuleStatus = "ACTIVE"
	RuleInactive RuleStatus = "INACTIVE"
)

type Card struct {
	ID          int64       `json:"id"`
	BankName    string      `json:"bank_name"`
	Name        string      `json:"name"`
	ProgramKind ProgramKind `json:"program_kind"`
}

// RewardRule is one conditional reward term of a card. CategoryID nil means the
// general (base) rate that applies to any category.
type RewardRule struct {
	ID         int64      `json:"id"`
	CardID     int64      `json:"card_id"`
	CategoryID *int64     `json:"category_id,omitempty"`
	RateValue  float64    `json:"rate_value"`
	RateUnit   RateUnit   `json:"rate_unit"`
	MinSpend   *float64   `json:"min_spend,omitempty"`
	CapValue   *float64   `json:"cap_value,omitempty"`
	CapPeriod  *string    `json:"cap_period,omitempty"`
	Status     RuleStatus `json:"status"`
}

type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// Catalogue is an immutable snapshot of active cards and rules, loaded once per
// batch calculation. The card-id → rules index is built once and reused for
// every expense in the batch.
type Catalogue struct {
	Cards []Card
	Rules []RewardRule

	rulesByCard map[int64][]RewardRule
}

// Index builds the card-id → rules lookup. It is a no-op once built: loaders
// index the snapshot before sharing it, and concurrent batches must only ever
// read it.
func (c *Catalogue) Index() {
	if c.rulesByCard != nil {
		return
	}
	byCard := make(map[int64][]RewardRule, len(c.Cards))
	for _, r := range c.Rules {
		byCard[r.CardID] = append(byCard[r.CardID], r)
	}
	c.rulesByCard = byCard
}

// RulesFor returns the rules of one card.
func (c *Catalogue) RulesFor(cardID int64) []RewardRule {
	if c.rulesByCard == nil {
		c.Index()
	}
	return c.rulesByCard[cardID]
}

// Expense is client-authored and transient, never persisted by the engine.
type Expense struct {
	ID            string  `json:"id"`
	CategoryID    int64   `json:"category_id"`
	Amount        float64 `json:"amount"`
	MerchantLabel string  `json:"merchant_label,omitempty"`
}

// CardReward is one ranked (card, reward) pair.
type CardReward struct {
	Card   Card    `json:"card"`
	Reward float64 `json:"reward"`
}

// CalculationResult is the outcome for a single expense. BestCard is nil when no
// rule anywhere in the catalogue applies, or when the expense failed input
// validation (Error set, the rest of the batch still succeeds).
type CalculationResult struct {
	ExpenseID     string       `json:"expense_id"`
	BestCard      *CardReward  `json:"best_card,omitempty"`
	Reward        float64      `json:"reward"`
	Alternatives  []CardReward `json:"alternatives,omitempty"`
	OutsideWallet bool         `json:"outside_wallet,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// BatchResult is ordered like the input expense list.
type BatchResult struct {
	ID          string              `json:"id"`
	Results     []CalculationResult `json:"results"`
	TotalSpend  float64             `json:"total_spend"`
	TotalReward float64             `json:"total_reward"`
}
