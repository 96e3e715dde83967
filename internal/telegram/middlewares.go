package telegram

import (
	"context"
	"errors"
	"log/slog"

	tb "gopkg.in/telebot.v3"
)

// PurgeOnForbiddenMiddleware drops the subscription of a chat whose reply failed because the bot
// was blocked or the user account is gone.
type PurgeOnForbiddenMiddleware struct {
	subscriptions Subscriptions

	log *slog.Logger
}

func NewPurgeOnForbiddenMiddleware(subscriptions Subscriptions, log *slog.Logger) *PurgeOnForbiddenMiddleware {
	return &PurgeOnForbiddenMiddleware{
		subscriptions: subscriptions,
		log:           log.With("component", "middleware").With("middleware", "purge"),
	}
}

func (m *PurgeOnForbiddenMiddleware) Handle(next tb.HandlerFunc) tb.HandlerFunc {
	return func(c tb.Context) error {
		rootErr := next(c)
		if !errors.Is(rootErr, tb.ErrBlockedByUser) && !errors.Is(rootErr, tb.ErrUserIsDeactivated) {
			return rootErr
		}

		m.log.Warn("Bot is blocked. Purging subscription")
		chatID, ok := chatIDOf(c)
		if !ok {
			m.log.Warn("ChatID is not present in telegram context")
			return rootErr
		}

		ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()

		if _, err := m.subscriptions.Unsubscribe(ctx, chatID); err != nil {
			m.log.Error("Purge failed", "chatID", chatID, "error", err)
		}
		return rootErr
	}
}
