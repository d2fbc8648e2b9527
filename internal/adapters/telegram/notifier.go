package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// Sender — часть BotAPI, нужная для отправки.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет HTML-отчёты в один чат.
type Notifier struct {
	bot    Sender
	chatID int64
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт отправителя отчётов.
func NewNotifier(bot Sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// NewBotNotifier подключается к Bot API по токену.
func NewBotNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot api: %w", err)
	}
	return NewNotifier(bot, chatID), nil
}

// Notify отправляет текст частями по лимиту Telegram.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	target := strconv.FormatInt(n.chatID, 10)
	for _, part := range SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", target, start, err)
		if err != nil {
			return fmt.Errorf("telegram: send: %w", err)
		}
	}
	return nil
}
