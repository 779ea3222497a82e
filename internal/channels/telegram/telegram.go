// Package telegram delivers reminder notifications to a Telegram chat.
// Sends go through a circuit breaker so a broken bot token or an API
// outage cannot stall the dispatch loop with repeated slow failures.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/notify"
)

// Channel sends notifications to one Telegram chat
type Channel struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
}

// New creates a Telegram channel for the given bot token and chat
func New(token string, chatID int64, logger *zap.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("telegram circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Channel{bot: bot, chatID: chatID, breaker: breaker, logger: logger}, nil
}

func (c *Channel) Name() string { return "telegram" }

// Send delivers one notification through the breaker
func (c *Channel) Send(_ context.Context, n notify.Notification) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		msg := tgbotapi.NewMessage(c.chatID, fmt.Sprintf("%s\n%s", n.Payload.Title, n.Payload.Body))
		_, sendErr := c.bot.Send(msg)
		return struct{}{}, sendErr
	})
	return err
}
