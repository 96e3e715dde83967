package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Roma7-7-7/telegram"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -package mocks -destination mocks/telegram.go . TelegramClient

const (
	DefaultDeliveryConcurrency = 10
	MaxDeliveryConcurrency     = 50
	DefaultSendTimeout         = 10 * time.Second
)

type (
	TelegramClient interface {
		SendMessage(context.Context, string, string) error
	}

	ReportProvider interface {
		Report(ctx context.Context) Report
	}

	// DeliveryOutcome summarizes one broadcast. Failed holds every chat whose delivery failed,
	// Purged the subset that was removed because it blocked the bot.
	DeliveryOutcome struct {
		ID          string    `json:"id"`
		StartedAt   time.Time `json:"started_at"`
		Subscribers int       `json:"subscribers"`
		Delivered   int       `json:"delivered"`
		Failed      []int64   `json:"failed"`
		Purged      []int64   `json:"purged"`
	}

	BroadcastOptions struct {
		Concurrency  int
		SendTimeout  time.Duration
		PurgeBlocked bool
	}

	Broadcaster struct {
		reports     ReportProvider
		subscribers SubscribersStore
		telegram    TelegramClient
		clock       Clock

		opts  BroadcastOptions
		newID func() string
		log   *slog.Logger
		mx    *sync.Mutex
	}
)

func (o DeliveryOutcome) NoOp() bool {
	return o.Subscribers == 0
}

func NewBroadcaster(
	reports ReportProvider,
	subscribers SubscribersStore,
	telegram TelegramClient,
	clock Clock,
	opts BroadcastOptions,
	log *slog.Logger,
) *Broadcaster {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultDeliveryConcurrency
	}
	opts.Concurrency = min(opts.Concurrency, MaxDeliveryConcurrency)
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}

	return &Broadcaster{
		reports:     reports,
		subscribers: subscribers,
		telegram:    telegram,
		clock:       clock,

		opts:  opts,
		newID: uuid.NewString,
		log:   log.With("component", "service").With("service", "broadcaster"),
		mx:    &sync.Mutex{},
	}
}

// BroadcastNow composes one report and delivers it to every current subscriber. Delivery
// failures are recorded in the outcome and never abort the fan-out. The only error returned
// is a failure to read the subscriber list.
func (b *Broadcaster) BroadcastNow(ctx context.Context) (DeliveryOutcome, error) {
	b.mx.Lock()
	defer b.mx.Unlock()

	outcome := DeliveryOutcome{
		ID:        b.newID(),
		StartedAt: b.clock.Now(),
		Failed:    []int64{},
		Purged:    []int64{},
	}
	log := b.log.With("broadcastID", outcome.ID)
	log.InfoContext(ctx, "starting broadcast")

	report := b.reports.Report(ctx)
	if report.HasErrors() {
		log.WarnContext(ctx, "report composed with unavailable quotes", "annotation", report.Annotation)
	}

	subs, err := b.subscribers.ListSubscribers(ctx)
	if err != nil {
		return outcome, fmt.Errorf("list subscribers: %w", err)
	}
	outcome.Subscribers = len(subs)
	if len(subs) == 0 {
		log.InfoContext(ctx, "no subscribers, nothing to deliver")
		return outcome, nil
	}

	text := report.Text()
	var (
		mx      sync.Mutex
		blocked []int64
	)
	g := &errgroup.Group{}
	g.SetLimit(b.opts.Concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			err := b.send(ctx, sub.ChatID, text)

			mx.Lock()
			defer mx.Unlock()
			switch {
			case err == nil:
				outcome.Delivered++
			case errors.Is(err, telegram.ErrForbidden):
				outcome.Failed = append(outcome.Failed, sub.ChatID)
				blocked = append(blocked, sub.ChatID)
			default:
				outcome.Failed = append(outcome.Failed, sub.ChatID)
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(outcome.Failed)
	if b.opts.PurgeBlocked {
		slices.Sort(blocked)
		outcome.Purged = b.purge(ctx, blocked, log)
	}

	log.InfoContext(ctx, "broadcast finished",
		"subscribers", outcome.Subscribers,
		"delivered", outcome.Delivered,
		"failed", len(outcome.Failed),
		"purged", len(outcome.Purged))
	return outcome, nil
}

func (b *Broadcaster) send(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.SendTimeout)
	defer cancel()

	err := b.telegram.SendMessage(ctx, strconv.FormatInt(chatID, 10), text)
	if err != nil {
		b.log.WarnContext(ctx, "failed to deliver report", "chatID", chatID, "error", err)
	}
	return err
}

func (b *Broadcaster) purge(ctx context.Context, chatIDs []int64, log *slog.Logger) []int64 {
	purged := make([]int64, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		log.InfoContext(ctx, "bot is blocked by user. purging subscription", "chatID", chatID)
		if _, err := b.subscribers.RemoveSubscriber(ctx, chatID); err != nil {
			log.ErrorContext(ctx, "failed to purge subscription", "chatID", chatID, "error", err)
			continue
		}
		purged = append(purged, chatID)
	}
	return purged
}
