// internal/reward/batch.go
package reward

import (
	"errors"
	"fmt"

	"cardwise/internal/domain"
)

// CalculateBatch fans a list of expenses across one catalogue snapshot.
// The catalogue is indexed exactly once; each expense is matched, computed and
// ranked against the in-memory structures without re-fetching anything.
// Results keep input order. Invalid expenses get an error marker and a zero
// reward but never fail the batch.
func CalculateBatch(cat *domain.Catalogue, expenses []domain.Expense, wallet map[int64]bool, opts Options) domain.BatchResult {
	// Builds the index only if the caller passed a raw catalogue; snapshots
	// from a loader arrive pre-indexed and are shared read-only.
	cat.Index()

	out := domain.BatchResult{
		Results: make([]domain.CalculationResult, 0, len(expenses)),
	}
	for _, exp := range expenses {
		res := domain.CalculationResult{ExpenseID: exp.ID}
		if err := validateExpense(exp); err != nil {
			res.Error = err.Error()
			out.Results = append(out.Results, res)
			continue
		}

		ranking := Rank(cat, exp.CategoryID, exp.Amount, wallet, opts)
		if best := ranking.Best(); best != nil {
			res.BestCard = best
			res.Reward = best.Reward
			if len(ranking.Entries) > 1 {
				res.Alternatives = ranking.Entries[1:]
			}
			res.OutsideWallet = ranking.OutsideWallet
		}

		out.TotalSpend += exp.Amount
		out.TotalReward += res.Reward
		out.Results = append(out.Results, res)
	}
	return out
}

func validateExpense(exp domain.Expense) error {
	if exp.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", exp.Amount)
	}
	if exp.CategoryID <= 0 {
		return errors.New("category is required")
	}
	return nil
}
