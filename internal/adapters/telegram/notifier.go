package telegram

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autopilot/internal/adapters/config"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// RunSummary describes a completed agent run for operator notification
type RunSummary struct {
	InvestmentID string
	UserID       string
	StrategyName string
	Executed     int
	Failed       int
	Skipped      int
	TotalUSD     float64
}

// Notifier pushes run completion summaries to an operator chat. Optional;
// a nil Notifier disables notifications.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logger.Logger
}

// NewNotifier creates a Telegram notifier. Returns nil without error when
// no bot token is configured.
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "init telegram bot")
	}

	return &Notifier{
		bot:    bot,
		chatID: cfg.ChatID,
		log:    logger.Get().With("component", "telegram_notifier"),
	}, nil
}

// NotifyRunCompleted sends a summary of a finished agent run. Best effort;
// failures are logged and never propagated.
func (n *Notifier) NotifyRunCompleted(summary RunSummary) {
	if n == nil {
		return
	}

	var b strings.Builder
	b.WriteString("✅ <b>Agent run completed</b>\n")
	fmt.Fprintf(&b, "Strategy: %s\n", summary.StrategyName)
	fmt.Fprintf(&b, "Amount: $%s\n", humanize.CommafWithDigits(summary.TotalUSD, 2))
	fmt.Fprintf(&b, "Actions: %d executed, %d skipped, %d failed\n", summary.Executed, summary.Skipped, summary.Failed)
	fmt.Fprintf(&b, "Investment: <code>%s</code>", summary.InvestmentID)

	n.send(b.String())
}

// NotifyRunFailed reports an agent run that never produced results
func (n *Notifier) NotifyRunFailed(investmentID, reason string) {
	if n == nil {
		return
	}

	msg := fmt.Sprintf("🚨 <b>Agent run failed</b>\nInvestment: <code>%s</code>\nReason: %s", investmentID, reason)
	n.send(msg)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warnw("Failed to send telegram notification", "error", err)
	}
}
