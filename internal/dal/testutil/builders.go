package testutil

import (
	"time"

	"github.com/Roma7-7-7/price-notifier/internal/dal"
)

// SubscriberBuilder provides fluent API for building test subscribers
type SubscriberBuilder struct {
	sub dal.Subscriber
}

func NewSubscriber(chatID int64) *SubscriberBuilder {
	return &SubscriberBuilder{
		sub: dal.Subscriber{
			ChatID:    chatID,
			CreatedAt: time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func (b *SubscriberBuilder) WithCreatedAt(t time.Time) *SubscriberBuilder {
	b.sub.CreatedAt = t
	return b
}

func (b *SubscriberBuilder) Build() dal.Subscriber {
	return b.sub
}

// NewSubscribers builds one subscriber per chat ID with default values.
func NewSubscribers(chatIDs ...int64) []dal.Subscriber {
	res := make([]dal.Subscriber, 0, len(chatIDs))
	for _, id := range chatIDs {
		res = append(res, NewSubscriber(id).Build())
	}
	return res
}
