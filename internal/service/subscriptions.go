package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Roma7-7-7/price-notifier/internal/dal"
)

//go:generate mockgen -package mocks -destination mocks/subscribers.go . SubscribersStore

type SubscribersStore interface {
	AddSubscriber(ctx context.Context, chatID int64) (bool, error)
	RemoveSubscriber(ctx context.Context, chatID int64) (bool, error)
	ExistsSubscriber(ctx context.Context, chatID int64) (bool, error)
	ListSubscribers(ctx context.Context) ([]dal.Subscriber, error)
}

type Subscriptions struct {
	store SubscribersStore

	log *slog.Logger
}

func NewSubscriptions(store SubscribersStore, log *slog.Logger) *Subscriptions {
	return &Subscriptions{
		store: store,
		log:   log.With("component", "service").With("service", "subscriptions"),
	}
}

// Subscribe is idempotent. The returned flag reports whether the chat was not subscribed before.
func (s *Subscriptions) Subscribe(ctx context.Context, chatID int64) (bool, error) {
	added, err := s.store.AddSubscriber(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	if added {
		s.log.InfoContext(ctx, "new subscriber", "chatID", chatID)
	}
	return added, nil
}

// Unsubscribe is idempotent. The returned flag reports whether the chat was subscribed before.
func (s *Subscriptions) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	removed, err := s.store.RemoveSubscriber(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("remove subscriber: %w", err)
	}
	if removed {
		s.log.InfoContext(ctx, "subscriber left", "chatID", chatID)
	}
	return removed, nil
}

func (s *Subscriptions) IsSubscribed(ctx context.Context, chatID int64) (bool, error) {
	exists, err := s.store.ExistsSubscriber(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("check if subscriber exists: %w", err)
	}
	return exists, nil
}

func (s *Subscriptions) List(ctx context.Context) ([]dal.Subscriber, error) {
	subs, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subs, nil
}
