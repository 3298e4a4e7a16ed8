// cmd/api/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardwise/internal/auth"
	"cardwise/internal/config"
	"cardwise/internal/domain"
	"cardwise/internal/handler"
	"cardwise/internal/middleware"
	"cardwise/internal/reward"
	"cardwise/internal/storage"
	"cardwise/internal/storage/postgres"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.MustLoad()

	pool, err := pgxpool.New(context.Background(), cfg.DBConn)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	store := postgres.NewStorage(pool)

	// Catalogue reads go through an explicit TTL cache; each batch still sees
	// one consistent snapshot.
	catalogue := storage.NewCachedCatalogue(store, cfg.CatalogueTTL)

	tokenService := auth.NewTokenService(cfg)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/v1/login", func(c *gin.Context) {
		var req struct {
			UserID int64 `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}
		token, err := tokenService.GenerateToken(req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	recommendHandler := handler.NewRecommendHandler(combinedStore{catalogue, store},
		reward.Options{NoWalletFallback: cfg.NoWalletFallback})

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		v1.POST("/calculate", recommendHandler.Calculate)
		v1.GET("/recommend", recommendHandler.Recommend)
		v1.GET("/categories", recommendHandler.Categories)
		v1.GET("/wallet", recommendHandler.GetWallet)
		v1.PUT("/wallet", recommendHandler.SaveWallet)
	}

	slog.Info("🚀 server started", "port", cfg.ServerPort)
	if err := router.Run(cfg.ServerPort); err != nil {
		slog.Error("server stopped with error", "error", err)
	}
}

// combinedStore routes catalogue reads through the TTL cache and everything
// else straight to Postgres.
type combinedStore struct {
	cache *storage.CachedCatalogue
	*postgres.Storage
}

func (s combinedStore) LoadCatalogue(ctx context.Context) (*domain.Catalogue, error) {
	return s.cache.LoadCatalogue(ctx)
}
