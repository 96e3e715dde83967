package dal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subscriberStore interface {
	AddSubscriber(ctx context.Context, chatID int64) (bool, error)
	RemoveSubscriber(ctx context.Context, chatID int64) (bool, error)
	ExistsSubscriber(ctx context.Context, chatID int64) (bool, error)
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
	Ping(ctx context.Context) error
	Close() error
}

type storeFactory struct {
	name string
	// open returns a fresh store and a function that makes the backend unreachable
	open func(t *testing.T) (subscriberStore, func())
}

func backends() []storeFactory {
	return []storeFactory{
		{
			name: "bolt",
			open: func(t *testing.T) (subscriberStore, func()) {
				s, err := OpenBolt(filepath.Join(t.TempDir(), "bolt.db"), slog.New(slog.DiscardHandler))
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s, func() { _ = s.Close() }
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) (subscriberStore, func()) {
				s, err := OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "subscribers.sqlite"))
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s, func() { _ = s.Close() }
			},
		},
		{
			name: "redis",
			open: func(t *testing.T) (subscriberStore, func()) {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
				t.Cleanup(func() { _ = client.Close() })
				return NewRedis(client, "test"), mr.Close
			},
		},
		{
			name: "memory",
			open: func(t *testing.T) (subscriberStore, func()) {
				return NewMemory(), nil
			},
		},
	}
}

func TestSubscriberStores_AddRemoveList(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := t.Context()
			store, _ := b.open(t)

			added, err := store.AddSubscriber(ctx, 100)
			require.NoError(t, err)
			assert.True(t, added)

			subs, err := store.ListSubscribers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int64{100}, chatIDs(subs))
			assert.False(t, subs[0].CreatedAt.IsZero())

			removed, err := store.RemoveSubscriber(ctx, 100)
			require.NoError(t, err)
			assert.True(t, removed)

			subs, err = store.ListSubscribers(ctx)
			require.NoError(t, err)
			assert.Empty(t, subs)
		})
	}
}

func TestSubscriberStores_Idempotence(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := t.Context()
			store, _ := b.open(t)

			first, err := store.AddSubscriber(ctx, 5)
			require.NoError(t, err)
			second, err := store.AddSubscriber(ctx, 5)
			require.NoError(t, err)
			assert.True(t, first)
			assert.False(t, second)

			subs, err := store.ListSubscribers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int64{5}, chatIDs(subs))

			removed, err := store.RemoveSubscriber(ctx, 6)
			require.NoError(t, err)
			assert.False(t, removed)

			ok, err := store.ExistsSubscriber(ctx, 5)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestSubscriberStores_Concurrent(t *testing.T) {
	const (
		workers   = 8
		perWorker = 25
		shared    = int64(999_999)
	)

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := t.Context()
			store, _ := b.open(t)

			var wg sync.WaitGroup
			errs := make(chan error, workers*perWorker*4)
			for w := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range perWorker {
						id := int64(w*1000 + i)
						if _, err := store.AddSubscriber(ctx, id); err != nil {
							errs <- err
						}
						if i%2 == 0 {
							if _, err := store.RemoveSubscriber(ctx, id); err != nil {
								errs <- err
							}
						}
					}
					if _, err := store.AddSubscriber(ctx, shared); err != nil {
						errs <- err
					}
				}()
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range perWorker {
						if _, err := store.ListSubscribers(ctx); err != nil {
							errs <- err
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			var want []int64
			for w := range workers {
				for i := range perWorker {
					if i%2 == 1 {
						want = append(want, int64(w*1000+i))
					}
				}
			}
			want = append(want, shared)
			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

			subs, err := store.ListSubscribers(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, chatIDs(subs))
		})
	}
}

func TestSubscriberStores_Unavailable(t *testing.T) {
	for _, b := range backends() {
		if b.name == "memory" {
			continue
		}
		t.Run(b.name, func(t *testing.T) {
			ctx := t.Context()
			store, breakIt := b.open(t)
			breakIt()

			_, err := store.AddSubscriber(ctx, 1)
			assert.ErrorIs(t, err, ErrUnavailable, "add")
			_, err = store.RemoveSubscriber(ctx, 1)
			assert.ErrorIs(t, err, ErrUnavailable, "remove")
			_, err = store.ExistsSubscriber(ctx, 1)
			assert.ErrorIs(t, err, ErrUnavailable, "exists")
			_, err = store.ListSubscribers(ctx)
			assert.ErrorIs(t, err, ErrUnavailable, "list")
			assert.ErrorIs(t, store.Ping(ctx), ErrUnavailable, "ping")
		})
	}
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedis(client, "bot")

	_, err := store.AddSubscriber(t.Context(), 42)
	require.NoError(t, err)

	ok, err := mr.SIsMember("bot:subscribers", "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, mr.HGet("bot:subscribers:created_at", "42"))

	_, err = store.RemoveSubscriber(t.Context(), 42)
	require.NoError(t, err)
	assert.Empty(t, mr.HGet("bot:subscribers:created_at", "42"), fmt.Sprintf("keys left: %v", mr.Keys()))
}

func chatIDs(subs []Subscriber) []int64 {
	res := make([]int64, 0, len(subs))
	for _, s := range subs {
		res = append(res, s.ChatID)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
