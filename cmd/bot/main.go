// cmd/bot/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"cardwise/internal/config"
	"cardwise/internal/domain"
	"cardwise/internal/reward"
	"cardwise/internal/storage"
	"cardwise/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	cfg := config.MustLoad()
	pool, err := pgxpool.New(context.Background(), cfg.DBConn)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewStorage(pool)
	catalogue := storage.NewCachedCatalogue(store, cfg.CatalogueTTL)

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		slog.Error("failed to init telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("bot started", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		chatID := update.Message.Chat.ID
		userID := update.Message.From.ID
		text := strings.TrimSpace(update.Message.Text)
		slog.Info("📥 message received", "user_id", userID, "text", text)

		var msgText string
		var errHandle error

		switch {
		case text == "/start" || text == "/help":
			msgText = "💳 *Card advisor*\n\n" +
				"Commands:\n" +
				"`/best dining 1000` — best card for a spend\n" +
				"`/cards` — all cards in the catalogue\n" +
				"`/wallet` — cards you hold\n" +
				"`/wallet 1 3 5` — set the cards you hold\n" +
				"`/categories` — known spend categories"

		case text == "/cards":
			msgText, errHandle = handleCards(catalogue)

		case text == "/categories":
			msgText, errHandle = handleCategories(store)

		case text == "/wallet":
			msgText, errHandle = handleShowWallet(store, catalogue, userID)

		case strings.HasPrefix(text, "/wallet "):
			msgText, errHandle = handleSetWallet(store, userID, strings.TrimSpace(text[8:]))

		case strings.HasPrefix(text, "/best "):
			msgText, errHandle = handleBest(store, catalogue, userID, strings.TrimSpace(text[6:]))

		default:
			msgText = "Unknown command. Try /help"
		}

		if errHandle != nil {
			slog.Error("command failed", "error", errHandle, "user_id", userID, "text", text)
			msgText = "❌ Error: " + errHandle.Error()
		}

		msg := tgbotapi.NewMessage(chatID, msgText)
		msg.ParseMode = "Markdown"
		_, _ = bot.Send(msg)
	}
}

func handleBest(store *postgres.Storage, catalogue *storage.CachedCatalogue, userID int64, input string) (string, error) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return "❌ Use: /best category amount, e.g. `/best dining 1000`", nil
	}

	amountStr := fields[len(fields)-1]
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil || amount <= 0 {
		return fmt.Sprintf("❌ Invalid amount: %q", amountStr), nil
	}

	catName := strings.Join(fields[:len(fields)-1], " ")
	category, err := store.FindCategoryByName(context.Background(), catName)
	if err != nil {
		return "", err
	}
	if category == nil {
		return fmt.Sprintf("📭 Unknown category *%s*, see /categories", catName), nil
	}

	wallet, err := store.GetWallet(context.Background(), userID)
	if err != nil {
		return "", err
	}
	walletSet := make(map[int64]bool, len(wallet))
	for _, id := range wallet {
		walletSet[id] = true
	}

	cat, err := catalogue.LoadCatalogue(context.Background())
	if err != nil {
		return "", err
	}

	ranking := reward.Rank(cat, category.ID, amount, walletSet, reward.Options{})
	if ranking.Best() == nil {
		return fmt.Sprintf("📭 No card offers rewards for *%s*", category.Name), nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("🏆 *Best cards for %s, %.2f*", category.Name, amount))
	if ranking.OutsideWallet {
		lines = append(lines, "_(none of your cards qualify, showing the full catalogue)_")
	}
	for i, entry := range ranking.Entries {
		lines = append(lines, fmt.Sprintf("%d. %s %s — %s", i+1,
			entry.Card.BankName, entry.Card.Name, formatReward(entry)))
	}
	return strings.Join(lines, "\n"), nil
}

func handleCards(catalogue *storage.CachedCatalogue) (string, error) {
	cat, err := catalogue.LoadCatalogue(context.Background())
	if err != nil {
		return "", err
	}
	if len(cat.Cards) == 0 {
		return "📭 Catalogue is empty", nil
	}

	var lines []string
	lines = append(lines, "💳 *Catalogue*")
	for _, card := range cat.Cards {
		lines = append(lines, fmt.Sprintf("%d. %s %s (%s)", card.ID, card.BankName, card.Name, card.ProgramKind))
	}
	return strings.Join(lines, "\n"), nil
}

func handleCategories(store *postgres.Storage) (string, error) {
	categories, err := store.LoadCategories(context.Background())
	if err != nil {
		return "", err
	}
	if len(categories) == 0 {
		return "📭 No categories yet", nil
	}

	var lines []string
	lines = append(lines, "🗂 *Categories*")
	for _, c := range categories {
		lines = append(lines, fmt.Sprintf("- %s %s", c.Icon, c.Name))
	}
	return strings.Join(lines, "\n"), nil
}

func handleShowWallet(store *postgres.Storage, catalogue *storage.CachedCatalogue, userID int64) (string, error) {
	wallet, err := store.GetWallet(context.Background(), userID)
	if err != nil {
		return "", err
	}
	if len(wallet) == 0 {
		return "📭 Your wallet is empty. Set it with `/wallet 1 3 5` (ids from /cards)", nil
	}

	cat, err := catalogue.LoadCatalogue(context.Background())
	if err != nil {
		return "", err
	}
	names := make(map[int64]string, len(cat.Cards))
	for _, card := range cat.Cards {
		names[card.ID] = card.BankName + " " + card.Name
	}

	var lines []string
	lines = append(lines, "👛 *Your cards*")
	for _, id := range wallet {
		name := names[id]
		if name == "" {
			name = fmt.Sprintf("card %d (no longer in catalogue)", id)
		}
		lines = append(lines, "- "+name)
	}
	return strings.Join(lines, "\n"), nil
}

func handleSetWallet(store *postgres.Storage, userID int64, input string) (string, error) {
	var cardIDs []int64
	for _, part := range strings.Fields(input) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Sprintf("❌ Invalid card id: %q", part), nil
		}
		cardIDs = append(cardIDs, id)
	}
	if len(cardIDs) == 0 {
		return "❌ Use: /wallet 1 3 5", nil
	}

	if err := store.SaveWallet(context.Background(), userID, cardIDs); err != nil {
		return "", err
	}
	return "✅ Wallet saved", nil
}

func formatReward(entry domain.CardReward) string {
	value := reward.RoundForDisplay(entry.Reward, entry.Card.ProgramKind)
	switch entry.Card.ProgramKind {
	case domain.ProgramMileage:
		return fmt.Sprintf("%.0f miles", value)
	case domain.ProgramPoints:
		return fmt.Sprintf("%.0f points", value)
	default:
		return fmt.Sprintf("%.2f cashback", value)
	}
}
