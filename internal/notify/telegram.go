// Package notify sends a short run summary to a Telegram chat.
package notify

import (
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fortuna/footballdb/internal/loader"
)

// sender is the part of *tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier reports finished loads. It only overrides OnRunComplete.
type TelegramNotifier struct {
	loader.NopReporter

	bot    sender
	chatID int64
	logger *log.Logger
}

// NewTelegramNotifier connects to the bot API and checks the token.
func NewTelegramNotifier(token string, chatID int64, logger *log.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false

	return newNotifier(bot, chatID, logger), nil
}

func newNotifier(bot sender, chatID int64, logger *log.Logger) *TelegramNotifier {
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}
}

func (n *TelegramNotifier) OnRunComplete(report *loader.Report) {
	msg := tgbotapi.NewMessage(n.chatID, Summary(report))
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Printf("⚠️  Failed to send telegram summary: %v", err)
	}
}

// Summary renders a report as a few plain-text lines.
func Summary(report *loader.Report) string {
	var b strings.Builder

	status := "✓"
	if len(report.Failures) > 0 || report.XGError != "" {
		status = "⚠️"
	}
	fmt.Fprintf(&b, "%s footballdb load: %d rows in %d tables\n", status, report.TotalRows, len(report.Tables))
	fmt.Fprintf(&b, "store: %s\n", report.StorePath)

	if report.XGError != "" {
		fmt.Fprintf(&b, "xG unavailable: %s\n", report.XGError)
	} else {
		fmt.Fprintf(&b, "xG matches: %d\n", report.XGRows)
	}

	for _, f := range report.Failures {
		fmt.Fprintf(&b, "failed %s: %s\n", f.File, f.Reason)
	}

	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "took %s", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}

	return strings.TrimRight(b.String(), "\n")
}
