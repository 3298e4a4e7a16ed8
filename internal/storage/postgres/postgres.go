// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardwise/internal/domain"
	"cardwise/internal/storage"
)

type Storage struct {
	db *pgxpool.Pool
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

// === CatalogueStorage ===

// LoadCatalogue reads all active cards and their active rules in two queries.
// Callers hold the snapshot for the duration of one batch; nothing here is
// fetched per expense.
func (s *Storage) LoadCatalogue(ctx context.Context) (*domain.Catalogue, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, bank_name, name, program_kind
		FROM cards
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query cards: %v", storage.ErrCatalogueUnavailable, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.BankName, &c.Name, &c.ProgramKind); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cards rows: %w", err)
	}

	ruleRows, err := s.db.Query(ctx, `
		SELECT r.id, r.card_id, r.category_id, r.rate_value, r.rate_unit,
		       r.min_spend, r.cap_value, r.cap_period, r.status
		FROM reward_rules r
		JOIN cards c ON c.id = r.card_id
		WHERE r.status = 'ACTIVE' AND c.active
		ORDER BY r.card_id, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query reward rules: %v", storage.ErrCatalogueUnavailable, err)
	}
	defer ruleRows.Close()

	var rules []domain.RewardRule
	for ruleRows.Next() {
		var r domain.RewardRule
		if err := ruleRows.Scan(&r.ID, &r.CardID, &r.CategoryID, &r.RateValue, &r.RateUnit,
			&r.MinSpend, &r.CapValue, &r.CapPeriod, &r.Status); err != nil {
			return nil, fmt.Errorf("scan reward rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, fmt.Errorf("reward rules rows: %w", err)
	}

	cat := &domain.Catalogue{Cards: cards, Rules: rules}
	cat.Index()
	slog.Debug("catalogue loaded", "cards", len(cards), "rules", len(rules))
	return cat, nil
}

// === CategoryStorage ===

func (s *Storage) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, icon, sort_order
		FROM categories
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Storage) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	var cat domain.Category
	err := s.db.QueryRow(ctx, `
		SELECT id, name, icon, sort_order FROM categories WHERE name ILIKE $1
	`, name).Scan(&cat.ID, &cat.Name, &cat.Icon, &cat.SortOrder)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &cat, nil
}

// === WalletStorage ===

func (s *Storage) GetWallet(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT card_id FROM user_cards WHERE user_id = $1 ORDER BY card_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallet: %w", err)
	}
	defer rows.Close()

	var cardIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wallet card: %w", err)
		}
		cardIDs = append(cardIDs, id)
	}
	return cardIDs, rows.Err()
}

func (s *Storage) SaveWallet(ctx context.Context, userID int64, cardIDs []int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM user_cards WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("clear wallet: %w", err)
	}
	for _, cardID := range cardIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_cards (user_id, card_id) VALUES ($1, $2)
			ON CONFLICT (user_id, card_id) DO NOTHING
		`, userID, cardID)
		if err != nil {
			return fmt.Errorf("add card %d to wallet: %w", cardID, err)
		}
	}
	return tx.Commit(ctx)
}

// === IngestStorage ===

// ReplaceCatalogue upserts cards by (bank_name, name) and replaces each card's
// rule set in one transaction. Cards missing from the sheet are deactivated
// rather than deleted so wallet references stay intact.
func (s *Storage) ReplaceCatalogue(ctx context.Context, cards []domain.Card, rules []domain.RewardRule) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "UPDATE cards SET active = FALSE"); err != nil {
		return fmt.Errorf("deactivate cards: %w", err)
	}

	// Sheet card ids are positional; remap them to the real ids after upsert.
	idMap := make(map[int64]int64, len(cards))
	for _, c := range cards {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO cards (bank_name, name, program_kind, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (bank_name, name)
			DO UPDATE SET program_kind = EXCLUDED.program_kind, active = TRUE
			RETURNING id
		`, c.BankName, c.Name, c.ProgramKind).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert card %q: %w", c.Name, err)
		}
		idMap[c.ID] = id

		if _, err := tx.Exec(ctx, "DELETE FROM reward_rules WHERE card_id = $1", id); err != nil {
			return fmt.Errorf("clear rules for card %q: %w", c.Name, err)
		}
	}

	for _, r := range rules {
		cardID, ok := idMap[r.CardID]
		if !ok {
			return fmt.Errorf("rule references unknown card id %d", r.CardID)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO reward_rules (card_id, category_id, rate_value, rate_unit, min_spend, cap_value, cap_period, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, cardID, r.CategoryID, r.RateValue, r.RateUnit, r.MinSpend, r.CapValue, r.CapPeriod, domain.RuleActive)
		if err != nil {
			return fmt.Errorf("insert rule for card %d: %w", cardID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	slog.Info("catalogue replaced", "cards", len(cards), "rules", len(rules))
	return nil
}
