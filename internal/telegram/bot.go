package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tb "gopkg.in/telebot.v3"
)

type Bot struct {
	bot *tb.Bot

	handler     *Handler
	middlewares []tb.MiddlewareFunc

	log *slog.Logger
}

func NewBot(token string, handler *Handler, log *slog.Logger, middlewares ...tb.MiddlewareFunc) (*Bot, error) {
	bot, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 5 * time.Second}, //nolint:mnd // it's ok
		OnError: func(err error, _ tb.Context) {
			log.Error("telegram handler failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{
		bot: bot,

		handler:     handler,
		middlewares: middlewares,

		log: log.With("component", "bot"),
	}, nil
}

// Start registers command handlers and blocks polling updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.bot.Use(b.middlewares...)

	b.bot.Handle("/start", b.handler.Start)
	b.bot.Handle("/subscribe", b.handler.Start)
	b.bot.Handle("/stop", b.handler.Unsubscribe)
	b.bot.Handle("/unsubscribe", b.handler.Unsubscribe)
	b.bot.Handle("/now", b.handler.Now)
	b.bot.Handle("/status", b.handler.Status)
	b.bot.Handle("/help", b.handler.Help)

	go func() {
		<-ctx.Done()
		b.log.Info("Stopping bot")
		b.bot.Stop()
	}()

	b.log.Info("Starting bot")
	b.bot.Start()

	return nil
}
