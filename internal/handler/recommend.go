// internal/handler/recommend.go
package handler

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"cardwise/internal/domain"
	"cardwise/internal/reward"
	"cardwise/internal/storage"
	val "cardwise/internal/validator"
)

type CombinedStorage interface {
	storage.CatalogueStorage
	storage.CategoryStorage
	storage.WalletStorage
}

type RecommendHandler struct {
	store CombinedStorage
	opts  reward.Options
}

func NewRecommendHandler(store CombinedStorage, opts reward.Options) *RecommendHandler {
	return &RecommendHandler{store: store, opts: opts}
}

// Calculate godoc
// @Summary Calculate best cards for a list of expenses
// @Description Runs the whole expense list against one catalogue snapshot and returns the best card per expense plus totals
// @Tags reward
// @Accept json
// @Produce json
// @Param request body CalculateRequest true "Expense list"
// @Success 200 {object} BatchResponse
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/calculate [post]
func (h *RecommendHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	wallet, err := h.resolveWallet(c, userID, req.WalletCardIDs)
	if err != nil {
		slog.Error("resolve wallet failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	// One snapshot for the whole batch. If this fails nothing is calculated.
	cat, err := h.store.LoadCatalogue(c.Request.Context())
	if err != nil {
		slog.Error("catalogue load failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalogue unavailable, try again later"})
		return
	}

	expenses := make([]domain.Expense, len(req.Expenses))
	for i, e := range req.Expenses {
		expenses[i] = domain.Expense{
			ID:            e.ID,
			CategoryID:    e.CategoryID,
			Amount:        e.Amount,
			MerchantLabel: e.MerchantLabel,
		}
	}

	result := reward.CalculateBatch(cat, expenses, toWalletSet(wallet), h.opts)
	result.ID = uuid.NewString()

	slog.Info("batch calculated", "batch_id", result.ID, "user_id", userID,
		"expenses", len(expenses), "total_spend", result.TotalSpend)
	c.JSON(http.StatusOK, toBatchResponse(result))
}

// Recommend godoc
// @Summary Rank cards for a single expense
// @Param category_id query int true "Category id"
// @Param amount query number true "Spend amount"
// @Param use_wallet query bool false "Restrict to the caller's saved wallet"
// @Success 200 {object} RankingResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/recommend [get]
func (h *RecommendHandler) Recommend(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Query("category_id"), 10, 64)
	if err != nil || categoryID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category_id query param required"})
		return
	}
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive number"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var wallet []int64
	if c.Query("use_wallet") == "true" {
		wallet, err = h.store.GetWallet(c.Request.Context(), userID)
		if err != nil {
			slog.Error("get wallet failed", "error", err, "user_id", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
	}

	cat, err := h.store.LoadCatalogue(c.Request.Context())
	if err != nil {
		slog.Error("catalogue load failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalogue unavailable, try again later"})
		return
	}

	ranking := reward.Rank(cat, categoryID, amount, toWalletSet(wallet), h.opts)
	c.JSON(http.StatusOK, toRankingResponse(ranking))
}

// Categories godoc
// @Summary List spend categories
// @Success 200 {array} domain.Category
// @Router /api/v1/categories [get]
func (h *RecommendHandler) Categories(c *gin.Context) {
	categories, err := h.store.LoadCategories(c.Request.Context())
	if err != nil {
		slog.Error("load categories failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	c.JSON(http.StatusOK, categories)
}

// GetWallet godoc
// @Summary Get the caller's card selection
// @Success 200 {object} WalletResponse
// @Router /api/v1/wallet [get]
func (h *RecommendHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	cardIDs, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		slog.Error("get wallet failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if cardIDs == nil {
		cardIDs = []int64{}
	}
	c.JSON(http.StatusOK, WalletResponse{CardIDs: cardIDs})
}

// SaveWallet godoc
// @Summary Replace the caller's card selection
// @Param request body WalletRequest true "Card ids the user holds"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/v1/wallet [put]
func (h *RecommendHandler) SaveWallet(c *gin.Context) {
	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.store.SaveWallet(c.Request.Context(), userID, req.CardIDs); err != nil {
		slog.Error("save wallet failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save wallet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *RecommendHandler) resolveWallet(c *gin.Context, userID int64, explicit []int64) ([]int64, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	return h.store.GetWallet(c.Request.Context(), userID)
}

func currentUserID(c *gin.Context) (int64, bool) {
	userIDVal, ok := c.Get("user_id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_id missing"})
		return 0, false
	}
	userID, ok := userIDVal.(int64)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return userID, true
}

func toWalletSet(cardIDs []int64) map[int64]bool {
	if len(cardIDs) == 0 {
		return nil
	}
	set := make(map[int64]bool, len(cardIDs))
	for _, id := range cardIDs {
		set[id] = true
	}
	return set
}

// === DTO ===

type ExpenseDTO struct {
	ID            string  `json:"id" validate:"required,notblank"`
	CategoryID    int64   `json:"category_id"`
	Amount        float64 `json:"amount"`
	MerchantLabel string  `json:"merchant_label"`
}

type CalculateRequest struct {
	Expenses      []ExpenseDTO `json:"expenses" validate:"required,min=1,dive"`
	WalletCardIDs []int64      `json:"wallet_card_ids"`
}

type WalletRequest struct {
	CardIDs []int64 `json:"card_ids" validate:"omitempty,dive,gt=0"`
}

type WalletResponse struct {
	CardIDs []int64 `json:"card_ids"`
}

type CardRewardDTO struct {
	Card       domain.Card `json:"card"`
	Reward     float64     `json:"reward"`
	RewardUnit string      `json:"reward_unit"`
}

type ResultDTO struct {
	ExpenseID     string          `json:"expense_id"`
	BestCard      *CardRewardDTO  `json:"best_card,omitempty"`
	Reward        float64         `json:"reward"`
	Alternatives  []CardRewardDTO `json:"alternatives,omitempty"`
	OutsideWallet bool            `json:"outside_wallet,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type BatchResponse struct {
	ID          string      `json:"id"`
	Results     []ResultDTO `json:"results"`
	TotalSpend  float64     `json:"total_spend"`
	TotalReward float64     `json:"total_reward"`
}

type RankingResponse struct {
	Cards         []CardRewardDTO `json:"cards"`
	OutsideWallet bool            `json:"outside_wallet,omitempty"`
}

// Rounding is a display concern: the engine returns raw values plus the
// program kind, the DTO layer rounds cashback to cents and miles/points to
// whole units.
func toCardRewardDTO(cr domain.CardReward) CardRewardDTO {
	return CardRewardDTO{
		Card:       cr.Card,
		Reward:     reward.RoundForDisplay(cr.Reward, cr.Card.ProgramKind),
		RewardUnit: rewardUnitLabel(cr.Card.ProgramKind),
	}
}

func rewardUnitLabel(kind domain.ProgramKind) string {
	switch kind {
	case domain.ProgramMileage:
		return "miles"
	case domain.ProgramPoints:
		return "points"
	default:
		return "cash"
	}
}

func toBatchResponse(b domain.BatchResult) BatchResponse {
	out := BatchResponse{
		ID:          b.ID,
		Results:     make([]ResultDTO, len(b.Results)),
		TotalSpend:  round2(b.TotalSpend),
		TotalReward: round2(b.TotalReward),
	}
	for i, res := range b.Results {
		dto := ResultDTO{
			ExpenseID:     res.ExpenseID,
			OutsideWallet: res.OutsideWallet,
			Error:         res.Error,
		}
		if res.BestCard != nil {
			best := toCardRewardDTO(*res.BestCard)
			dto.BestCard = &best
			dto.Reward = best.Reward
		}
		for _, alt := range res.Alternatives {
			dto.Alternatives = append(dto.Alternatives, toCardRewardDTO(alt))
		}
		out.Results[i] = dto
	}
	return out
}

func toRankingResponse(r reward.Ranking) RankingResponse {
	out := RankingResponse{
		Cards:         make([]CardRewardDTO, len(r.Entries)),
		OutsideWallet: r.OutsideWallet,
	}
	for i, e := range r.Entries {
		out.Cards[i] = toCardRewardDTO(e)
	}
	return out
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func validateStruct(v any) error {
	if err := val.Validate.Struct(v); err != nil {
		var errs []string
		for _, e := range err.(validator.ValidationErrors) {
			errs = append(errs, fieldErrorToString(e))
		}
		return fmt.Errorf("invalid input: %s", strings.Join(errs, "; "))
	}
	return nil
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "min":
		if e.Param() == "1" {
			return fmt.Sprintf("%s must not be empty", e.Field())
		}
		return fmt.Sprintf("%s is too short", e.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
