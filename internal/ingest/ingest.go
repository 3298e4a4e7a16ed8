// internal/ingest/ingest.go
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"cardwise/internal/domain"
	"cardwise/internal/storage"
)

// RateSheet is the published source format: one entry per card with its rules
// nested. Rule card references are resolved by position during conversion.
type RateSheet struct {
	Cards []SheetCard `json:"cards"`
}

type SheetCard struct {
	BankName    string      `json:"bank_name"`
	Name        string      `json:"name"`
	ProgramKind string      `json:"program_kind"`
	Rules       []SheetRule `json:"rules"`
}

type SheetRule struct {
	CategoryID *int64   `json:"category_id"`
	RateValue  float64  `json:"rate_value"`
	RateUnit   string   `json:"rate_unit"`
	MinSpend   *float64 `json:"min_spend"`
	CapValue   *float64 `json:"cap_value"`
	CapPeriod  *string  `json:"cap_period"`
}

type Ingester struct {
	client *http.Client
	store  storage.IngestStorage
}

func NewIngester(store storage.IngestStorage) *Ingester {
	return &Ingester{
		client: &http.Client{Timeout: 30 * time.Second},
		store:  store,
	}
}

// Run fetches the rate sheet and replaces the stored catalogue. Transient
// fetch failures are retried with exponential backoff; a malformed sheet is
// not retryable.
func (i *Ingester) Run(ctx context.Context, sheetURL string) error {
	if sheetURL == "" {
		return fmt.Errorf("rate sheet URL is not configured")
	}

	var sheet RateSheet
	backoff := retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := i.fetch(ctx, sheetURL)
		if err != nil {
			slog.Warn("rate sheet fetch failed, will retry", "error", err)
			return err
		}
		sheet = s
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetch rate sheet: %w", err)
	}

	cards, rules, err := Convert(sheet)
	if err != nil {
		return fmt.Errorf("convert rate sheet: %w", err)
	}

	if err := i.store.ReplaceCatalogue(ctx, cards, rules); err != nil {
		return fmt.Errorf("replace catalogue: %w", err)
	}
	slog.Info("ingest completed", "cards", len(cards), "rules", len(rules))
	return nil
}

func (i *Ingester) fetch(ctx context.Context, url string) (RateSheet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RateSheet{}, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return RateSheet{}, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return RateSheet{}, retry.RetryableError(fmt.Errorf("rate sheet returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return RateSheet{}, fmt.Errorf("rate sheet returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RateSheet{}, retry.RetryableError(err)
	}

	var sheet RateSheet
	if err := json.Unmarshal(body, &sheet); err != nil {
		return RateSheet{}, fmt.Errorf("decode rate sheet: %w", err)
	}
	return sheet, nil
}

// Convert maps the sheet into domain cards and rules, assigning positional
// card ids that ReplaceCatalogue remaps to stored ids. Cards with bad data are
// rejected; suspicious rules are dropped with a warning so one bad row does
// not block a whole refresh.
func Convert(sheet RateSheet) ([]domain.Card, []domain.RewardRule, error) {
	if len(sheet.Cards) == 0 {
		return nil, nil, fmt.Errorf("rate sheet has no cards")
	}

	var cards []domain.Card
	var rules []domain.RewardRule
	for idx, sc := range sheet.Cards {
		if sc.BankName == "" || sc.Name == "" {
			return nil, nil, fmt.Errorf("card %d is missing bank or name", idx)
		}
		kind := domain.ProgramKind(sc.ProgramKind)
		switch kind {
		case domain.ProgramCashback, domain.ProgramMileage, domain.ProgramPoints:
		default:
			return nil, nil, fmt.Errorf("card %q has unknown program kind %q", sc.Name, sc.ProgramKind)
		}

		cardID := int64(idx + 1)
		cards = append(cards, domain.Card{
			ID:          cardID,
			BankName:    sc.BankName,
			Name:        sc.Name,
			ProgramKind: kind,
		})

		for _, sr := range sc.Rules {
			unit := domain.RateUnit(sr.RateUnit)
			if unit != domain.RatePercentage && unit != domain.RatePerAmount {
				slog.Warn("dropping rule with unknown rate unit", "card", sc.Name, "rate_unit", sr.RateUnit)
				continue
			}
			if sr.RateValue <= 0 {
				slog.Warn("dropping rule with non-positive rate", "card", sc.Name, "rate_value", sr.RateValue)
				continue
			}
			rules = append(rules, domain.RewardRule{
				CardID:     cardID,
				CategoryID: sr.CategoryID,
				RateValue:  sr.RateValue,
				RateUnit:   unit,
				MinSpend:   sr.MinSpend,
				CapValue:   sr.CapValue,
				CapPeriod:  sr.CapPeriod,
				Status:     domain.RuleActive,
			})
		}
	}
	return cards, rules, nil
}
