// internal/reward/ranker.go
package reward

import (
	"sort"

	"cardwise/internal/domain"
)

const DefaultTopN = 5

// Options tune ranking behaviour. The zero value gives the defaults: top 5
// alternatives, and falling back to the full catalogue (with a flag) when the
// wallet filter eliminates every eligible card.
type Options struct {
	TopN             int
	NoWalletFallback bool
}

func (o Options) topN() int {
	if o.TopN <= 0 {
		return DefaultTopN
	}
	return o.TopN
}

// Ranking is the ordered outcome for one expense. Entries is limited to top-N.
// OutsideWallet is set when the wallet filter matched nothing and the best card
// was taken from the full catalogue instead.
type Ranking struct {
	Entries       []domain.CardReward
	OutsideWallet bool
}

// Best returns the top entry, or nil when no card is eligible.
func (r Ranking) Best() *domain.CardReward {
	if len(r.Entries) == 0 {
		return nil
	}
	return &r.Entries[0]
}

// Rank computes rewards for every card in the catalogue and orders them by
// reward descending, card id ascending on ties. Cards with no applicable rule
// are excluded entirely rather than listed with zero.
func Rank(cat *domain.Catalogue, categoryID int64, amount float64, wallet map[int64]bool, opts Options) Ranking {
	all := make([]domain.CardReward, 0, len(cat.Cards))
	for _, card := range cat.Cards {
		rule := Match(cat.RulesFor(card.ID), categoryID)
		comp := Compute(rule, card.ProgramKind, amount)
		if !comp.Eligible {
			continue
		}
		all = append(all, domain.CardReward{Card: card, Reward: comp.Value})
	}
	sortByReward(all)

	if len(wallet) == 0 {
		return Ranking{Entries: top(all, opts.topN())}
	}

	inWallet := make([]domain.CardReward, 0, len(all))
	for _, cr := range all {
		if wallet[cr.Card.ID] {
			inWallet = append(inWallet, cr)
		}
	}
	if len(inWallet) > 0 {
		return Ranking{Entries: top(inWallet, opts.topN())}
	}
	if opts.NoWalletFallback || len(all) == 0 {
		return Ranking{}
	}
	// Nothing in the wallet qualifies, so report the catalogue-wide best and
	// flag that it sits outside the user's selected cards.
	return Ranking{Entries: top(all, opts.topN()), OutsideWallet: true}
}

func sortByReward(entries []domain.CardReward) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Reward != entries[j].Reward {
			return entries[i].Reward > entries[j].Reward
		}
		return entries[i].Card.ID < entries[j].Card.ID
	})
}

func top(entries []domain.CardReward, n int) []domain.CardReward {
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
