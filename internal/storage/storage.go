// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"cardwise/internal/domain"
)

// ErrCatalogueUnavailable is fatal to a whole batch calculation: without a
// catalogue nothing can be computed and no partial results are produced. It is
// distinct from per-expense input errors, which are recorded on the individual
// result.
var ErrCatalogueUnavailable = errors.New("catalogue unavailable")

// CatalogueStorage loads the active card catalogue. Implementations must
// pre-filter to ACTIVE cards and rules; the engine never re-checks status of
// cards, only of rules.
type CatalogueStorage interface {
	LoadCatalogue(ctx context.Context) (*domain.Catalogue, error)
}

type CategoryStorage interface {
	LoadCategories(ctx context.Context) ([]domain.Category, error)
}

// WalletStorage persists which cards a user actually holds.
type WalletStorage interface {
	GetWallet(ctx context.Context, userID int64) ([]int64, error)
	SaveWallet(ctx context.Context, userID int64, cardIDs []int64) error
}

// IngestStorage replaces the catalogue from a freshly fetched rate sheet.
type IngestStorage interface {
	ReplaceCatalogue(ctx context.Context, cards []domain.Card, rules []domain.RewardRule) error
}
