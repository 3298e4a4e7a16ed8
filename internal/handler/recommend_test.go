package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardwise/internal/domain"
	"cardwise/internal/reward"
)

type stubStorage struct {
	catalogue    *domain.Catalogue
	catalogueErr error
	categories   []domain.Category
	wallet       []int64
	savedWallet  []int64
}

func (s *stubStorage) LoadCatalogue(ctx context.Context) (*domain.Catalogue, error) {
	return s.catalogue, s.catalogueErr
}

func (s *stubStorage) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories, nil
}

func (s *stubStorage) GetWallet(ctx context.Context, userID int64) ([]int64, error) {
	return s.wallet, nil
}

func (s *stubStorage) SaveWallet(ctx context.Context, userID int64, cardIDs []int64) error {
	s.savedWallet = cardIDs
	return nil
}

func newTestRouter(store *stubStorage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Auth is exercised separately; tests inject the user directly.
	router.Use(func(c *gin.Context) {
		c.Set("user_id", int64(42))
		c.Next()
	})

	h := NewRecommendHandler(store, reward.Options{})
	router.POST("/api/v1/calculate", h.Calculate)
	router.GET("/api/v1/recommend", h.Recommend)
	router.GET("/api/v1/categories", h.Categories)
	router.GET("/api/v1/wallet", h.GetWallet)
	router.PUT("/api/v1/wallet", h.SaveWallet)
	return router
}

func diningCatalogue() *domain.Catalogue {
	dining := int64(1)
	return &domain.Catalogue{
		Cards: []domain.Card{
			{ID: 1, BankName: "Alpha Bank", Name: "Card A", ProgramKind: domain.ProgramCashback},
			{ID: 2, BankName: "Beta Bank", Name: "Card B", ProgramKind: domain.ProgramCashback},
		},
		Rules: []domain.RewardRule{
			{ID: 1, CardID: 1, CategoryID: &dining, RateValue: 0.04, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
			{ID: 2, CardID: 2, CategoryID: &dining, RateValue: 0.02, RateUnit: domain.RatePercentage, Status: domain.RuleActive},
		},
	}
}

func TestCalculate_HappyPath(t *testing.T) {
	store := &stubStorage{catalogue: diningCatalogue()}
	router := newTestRouter(store)

	body, _ := json.Marshal(CalculateRequest{
		Expenses: []ExpenseDTO{{ID: "e1", CategoryID: 1, Amount: 1000}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].BestCard)
	assert.Equal(t, int64(1), resp.Results[0].BestCard.Card.ID)
	assert.Equal(t, 40.0, resp.Results[0].Reward)
	assert.Equal(t, 1000.0, resp.TotalSpend)
	assert.Equal(t, 40.0, resp.TotalReward)
}

func TestCalculate_InvalidJSON(t *testing.T) {
	router := newTestRouter(&stubStorage{catalogue: diningCatalogue()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", bytes.NewReader([]byte(`{"expenses": [{"amount": "lots"}]}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculate_EmptyExpenseList(t *testing.T) {
	router := newTestRouter(&stubStorage{catalogue: diningCatalogue()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", bytes.NewReader([]byte(`{"expenses": []}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculate_CatalogueUnavailable(t *testing.T) {
	store := &stubStorage{catalogueErr: errors.New("db down")}
	router := newTestRouter(store)

	body, _ := json.Marshal(CalculateRequest{
		Expenses: []ExpenseDTO{{ID: "e1", CategoryID: 1, Amount: 1000}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCalculate_PerExpenseErrorsIsolated(t *testing.T) {
	store := &stubStorage{catalogue: diningCatalogue()}
	router := newTestRouter(store)

	body, _ := json.Marshal(CalculateRequest{
		Expenses: []ExpenseDTO{
			{ID: "bad", CategoryID: 1, Amount: -5},
			{ID: "ok", CategoryID: 1, Amount: 500},
		},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.NotEmpty(t, resp.Results[0].Error)
	assert.Empty(t, resp.Results[1].Error)
	assert.Equal(t, 20.0, resp.Results[1].Reward)
}

func TestCalculate_UsesStoredWallet(t *testing.T) {
	store := &stubStorage{catalogue: diningCatalogue(), wallet: []int64{2}}
	router := newTestRouter(store)

	body, _ := json.Marshal(CalculateRequest{
		Expenses: []ExpenseDTO{{ID: "e1", CategoryID: 1, Amount: 1000}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Results[0].BestCard)
	assert.Equal(t, int64(2), resp.Results[0].BestCard.Card.ID, "stored wallet restricts ranking")
}

func TestRecommend_RanksForSingleExpense(t *testing.T) {
	router := newTestRouter(&stubStorage{catalogue: diningCatalogue()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommend?category_id=1&amount=1000", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp RankingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Cards, 2)
	assert.Equal(t, int64(1), resp.Cards[0].Card.ID)
	assert.Equal(t, "cash", resp.Cards[0].RewardUnit)
}

func TestRecommend_RejectsBadAmount(t *testing.T) {
	router := newTestRouter(&stubStorage{catalogue: diningCatalogue()})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommend?category_id=1&amount=abc", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveWallet(t *testing.T) {
	store := &stubStorage{}
	router := newTestRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/wallet", bytes.NewReader([]byte(`{"card_ids": [1, 2]}`)))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1, 2}, store.savedWallet)
}
