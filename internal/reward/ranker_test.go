package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardwise/internal/domain"
)

const diningCat = int64(1)

// testCatalogue: card 1 (A) 4% dining, card 2 (B) 3.5% dining,
// card 4 (D) 5% dining, card 7 has no dining or general rule at all.
func testCatalogue() *domain.Catalogue {
	dining := diningCat
	travel := int64(2)
	cat := &domain.Catalogue{
		Cards: []domain.Card{
			{ID: 1, BankName: "Alpha Bank", Name: "Card A", ProgramKind: domain.ProgramCashback},
			{ID: 2, BankName: "Beta Bank", Name: "Card B", ProgramKind: domain.ProgramCashback},
			{ID: 4, BankName: "Delta Bank", Name: "Card D", ProgramKind: domain.ProgramCashback},
			{ID: 7, BankName: "Gamma Bank", Name: "Travel Only", ProgramKind: domain.ProgramMileage},
		},
		Rules: []domain.RewardRule{
			{ID: 100, CardID: 1, CategoryID: &dining, RateValue: 0.04, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
			{ID: 101, CardID: 2, CategoryID: &dining, RateValue: 0.035, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
			{ID: 102, CardID: 4, CategoryID: &dining, RateValue: 0.05, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
			{ID: 103, CardID: 7, CategoryID: &travel, RateValue: 8, RateUnit: domain.RatePerAmount, Status: domain.RuleActive},
		},
	}
	cat.Index()
	return cat
}

func cardIDs(entries []domain.CardReward) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.Card.ID
	}
	return ids
}

func TestRank_OrdersByRewardDescending(t *testing.T) {
	r := Rank(testCatalogue(), diningCat, 1000, nil, Options{})
	assert.Equal(t, []int64{4, 1, 2}, cardIDs(r.Entries))
	assert.InDelta(t, 50.0, r.Entries[0].Reward, 1e-9)
	assert.False(t, r.OutsideWallet)
}

func TestRank_ExcludesCardsWithoutApplicableRule(t *testing.T) {
	r := Rank(testCatalogue(), diningCat, 1000, nil, Options{})
	assert.NotContains(t, cardIDs(r.Entries), int64(7), "travel-only card has no dining rule, must not appear with zero")
}

func TestRank_TieBreakByCardID(t *testing.T) {
	dining := diningCat
	cat := &domain.Catalogue{
		Cards: []domain.Card{
			{ID: 9, Name: "Nine", ProgramKind: domain.ProgramCashback},
			{ID: 3, Name: "Three", ProgramKind: domain.ProgramCashback},
		},
		Rules: []domain.RewardRule{
			{ID: 1, CardID: 9, CategoryID: &dining, RateValue: 0.02, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
			{ID: 2, CardID: 3, CategoryID: &dining, RateValue: 0.02, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
		},
	}
	r := Rank(cat, diningCat, 500, nil, Options{})
	assert.Equal(t, []int64{3, 9}, cardIDs(r.Entries))
}

func TestRank_WalletFilter(t *testing.T) {
	// Spec scenario 4: catalogue has A(40), B(35), D(50); wallet {A, B} hides D.
	wallet := map[int64]bool{1: true, 2: true}
	r := Rank(testCatalogue(), diningCat, 1000, wallet, Options{})

	assert.Equal(t, []int64{1, 2}, cardIDs(r.Entries))
	require.NotNil(t, r.Best())
	assert.InDelta(t, 40.0, r.Best().Reward, 1e-9)
	assert.False(t, r.OutsideWallet)
}

func TestRank_WalletFallbackWithFlag(t *testing.T) {
	// Wallet holds only the travel card, which has no dining rule.
	wallet := map[int64]bool{7: true}
	r := Rank(testCatalogue(), diningCat, 1000, wallet, Options{})

	require.NotNil(t, r.Best())
	assert.Equal(t, int64(4), r.Best().Card.ID)
	assert.True(t, r.OutsideWallet)
}

func TestRank_WalletFallbackDisabled(t *testing.T) {
	wallet := map[int64]bool{7: true}
	r := Rank(testCatalogue(), diningCat, 1000, wallet, Options{NoWalletFallback: true})

	assert.Nil(t, r.Best())
	assert.Empty(t, r.Entries)
}

func TestRank_TopNLimit(t *testing.T) {
	r := Rank(testCatalogue(), diningCat, 1000, nil, Options{TopN: 2})
	assert.Len(t, r.Entries, 2)
	assert.Equal(t, []int64{4, 1}, cardIDs(r.Entries))
}
