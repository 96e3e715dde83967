package dal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "price-notifier"

// Redis keeps chat IDs in a set and their creation timestamps in a companion hash.
// Both keys are always changed inside one MULTI block.
type Redis struct {
	client  *redis.Client
	members string
	created string
	now     func() time.Time
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{
		client:  client,
		members: prefix + ":subscribers",
		created: prefix + ":subscribers:created_at",
		now:     time.Now,
	}
}

func (s *Redis) AddSubscriber(ctx context.Context, chatID int64) (bool, error) {
	member := strconv.FormatInt(chatID, 10)

	var added *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, s.members, member)
		pipe.HSetNX(ctx, s.created, member, s.now().UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: add subscriber: %w", ErrUnavailable, err)
	}

	return added.Val() > 0, nil
}

func (s *Redis) RemoveSubscriber(ctx context.Context, chatID int64) (bool, error) {
	member := strconv.FormatInt(chatID, 10)

	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.members, member)
		pipe.HDel(ctx, s.created, member)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: remove subscriber: %w", ErrUnavailable, err)
	}

	return removed.Val() > 0, nil
}

func (s *Redis) ExistsSubscriber(ctx context.Context, chatID int64) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.members, strconv.FormatInt(chatID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: check subscriber: %w", ErrUnavailable, err)
	}
	return ok, nil
}

func (s *Redis) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	members, err := s.client.SMembers(ctx, s.members).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list subscribers: %w", ErrUnavailable, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	created, err := s.client.HMGet(ctx, s.created, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list subscribers created_at: %w", ErrUnavailable, err)
	}

	res := make([]Subscriber, 0, len(members))
	for i, m := range members {
		chatID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse chat id %q: %w", ErrUnavailable, m, err)
		}
		sub := Subscriber{ChatID: chatID}
		// removed between SMEMBERS and HMGET, or written by an older version
		if raw, ok := created[i].(string); ok {
			if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
				sub.CreatedAt = ts
			}
		}
		res = append(res, sub)
	}

	return res, nil
}

func (s *Redis) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
