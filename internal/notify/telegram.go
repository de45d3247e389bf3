// Package notify delivers best-effort operator notifications over Telegram.
package notify

import (
	"context"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"
)

// Notifier is the outbound notification channel. Failures are logged and
// swallowed; nothing in the engine depends on delivery.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type TelegramNotifier struct {
	bot    *telego.Bot
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) {
	if n == nil || n.bot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   text,
	})
	if err != nil && n.logger != nil {
		n.logger.Warn("telegram notify failed", zap.Error(err))
	}
}

// Nop is used when Telegram is disabled in config.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}
