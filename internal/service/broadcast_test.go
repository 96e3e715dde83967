package service_test

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Roma7-7-7/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Roma7-7-7/price-notifier/internal/dal"
	"github.com/Roma7-7-7/price-notifier/internal/dal/testutil"
	"github.com/Roma7-7-7/price-notifier/internal/models"
	"github.com/Roma7-7-7/price-notifier/internal/service"
	"github.com/Roma7-7-7/price-notifier/internal/service/mocks"
	"github.com/Roma7-7-7/price-notifier/pkg/clock"
)

type staticReport struct {
	report service.Report
	calls  atomic.Int32
}

func (r *staticReport) Report(context.Context) service.Report {
	r.calls.Add(1)
	return r.report
}

func healthyReport() *staticReport {
	return &staticReport{report: service.ComposeReport([]models.Quote{
		usdQuote("580000"),
		goldQuote("38500000"),
		btcQuote("67234.5"),
	}, reportAt)}
}

func TestBroadcaster_BroadcastNow(t *testing.T) {
	reportText := healthyReport().report.Text()

	type fields struct {
		subscribers func(*gomock.Controller) service.SubscribersStore
		telegram    func(*gomock.Controller) service.TelegramClient
		opts        service.BroadcastOptions
	}
	tests := []struct {
		name    string
		fields  fields
		want    service.DeliveryOutcome
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "all_delivered",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(testutil.NewSubscribers(1, 2, 3), nil)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					res := mocks.NewMockTelegramClient(ctrl)
					for _, id := range []string{"1", "2", "3"} {
						res.EXPECT().SendMessage(gomock.Any(), id, reportText).Return(nil)
					}
					return res
				},
			},
			want: service.DeliveryOutcome{
				Subscribers: 3,
				Delivered:   3,
				Failed:      []int64{},
				Purged:      []int64{},
			},
			wantErr: assert.NoError,
		},
		{
			name: "second_subscriber_fails",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(testutil.NewSubscribers(1, 2, 3), nil)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					res := mocks.NewMockTelegramClient(ctrl)
					res.EXPECT().SendMessage(gomock.Any(), "1", reportText).Return(nil)
					res.EXPECT().SendMessage(gomock.Any(), "2", reportText).Return(assert.AnError)
					res.EXPECT().SendMessage(gomock.Any(), "3", reportText).Return(nil)
					return res
				},
			},
			want: service.DeliveryOutcome{
				Subscribers: 3,
				Delivered:   2,
				Failed:      []int64{2},
				Purged:      []int64{},
			},
			wantErr: assert.NoError,
		},
		{
			name: "no_subscribers",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(nil, nil)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					// any call fails the test
					return mocks.NewMockTelegramClient(ctrl)
				},
			},
			want: service.DeliveryOutcome{
				Failed: []int64{},
				Purged: []int64{},
			},
			wantErr: assert.NoError,
		},
		{
			name: "store_unavailable",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(nil, errDiskGone)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					return mocks.NewMockTelegramClient(ctrl)
				},
			},
			want: service.DeliveryOutcome{
				Failed: []int64{},
				Purged: []int64{},
			},
			wantErr: testutil.Unavailable("list subscribers: "),
		},
		{
			name: "blocked_user_purged",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(testutil.NewSubscribers(1, 2, 3), nil)
					res.EXPECT().RemoveSubscriber(gomock.Any(), int64(3)).Return(true, nil)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					res := mocks.NewMockTelegramClient(ctrl)
					res.EXPECT().SendMessage(gomock.Any(), "1", reportText).Return(assert.AnError)
					res.EXPECT().SendMessage(gomock.Any(), "2", reportText).Return(nil)
					res.EXPECT().SendMessage(gomock.Any(), "3", reportText).Return(fmt.Errorf("send message: %w", telegram.ErrForbidden))
					return res
				},
				opts: service.BroadcastOptions{PurgeBlocked: true},
			},
			want: service.DeliveryOutcome{
				Subscribers: 3,
				Delivered:   1,
				Failed:      []int64{1, 3},
				Purged:      []int64{3},
			},
			wantErr: assert.NoError,
		},
		{
			name: "blocked_user_kept_when_purge_disabled",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(testutil.NewSubscribers(3), nil)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					res := mocks.NewMockTelegramClient(ctrl)
					res.EXPECT().SendMessage(gomock.Any(), "3", reportText).Return(telegram.ErrForbidden)
					return res
				},
			},
			want: service.DeliveryOutcome{
				Subscribers: 1,
				Failed:      []int64{3},
				Purged:      []int64{},
			},
			wantErr: assert.NoError,
		},
		{
			name: "purge_fails",
			fields: fields{
				subscribers: func(ctrl *gomock.Controller) service.SubscribersStore {
					res := mocks.NewMockSubscribersStore(ctrl)
					res.EXPECT().ListSubscribers(gomock.Any()).Return(testutil.NewSubscribers(3), nil)
					res.EXPECT().RemoveSubscriber(gomock.Any(), int64(3)).Return(false, errDiskGone)
					return res
				},
				telegram: func(ctrl *gomock.Controller) service.TelegramClient {
					res := mocks.NewMockTelegramClient(ctrl)
					res.EXPECT().SendMessage(gomock.Any(), "3", reportText).Return(telegram.ErrForbidden)
					return res
				},
				opts: service.BroadcastOptions{PurgeBlocked: true},
			},
			want: service.DeliveryOutcome{
				Subscribers: 1,
				Failed:      []int64{3},
				Purged:      []int64{},
			},
			wantErr: assert.NoError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			reports := healthyReport()

			b := service.NewBroadcaster(
				reports,
				tt.fields.subscribers(ctrl),
				tt.fields.telegram(ctrl),
				clock.NewMock(reportAt),
				tt.fields.opts,
				slog.New(slog.DiscardHandler),
			)

			got, err := b.BroadcastNow(t.Context())
			if !tt.wantErr(t, err) {
				return
			}

			assert.NotEmpty(t, got.ID)
			assert.Equal(t, reportAt, got.StartedAt)
			got.ID, got.StartedAt = "", time.Time{}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int32(1), reports.calls.Load(), "report must be composed exactly once")
		})
	}
}

func TestBroadcaster_NoOpOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSubscribersStore(ctrl)
	store.EXPECT().ListSubscribers(gomock.Any()).Return([]dal.Subscriber{}, nil)

	b := service.NewBroadcaster(healthyReport(), store, mocks.NewMockTelegramClient(ctrl), clock.NewMock(reportAt), service.BroadcastOptions{}, slog.New(slog.DiscardHandler))

	got, err := b.BroadcastNow(t.Context())
	require.NoError(t, err)
	assert.True(t, got.NoOp())
}

// recordingClient counts concurrent sends and fails for configured chats.
type recordingClient struct {
	delay    time.Duration
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32

	mx   sync.Mutex
	sent []string
}

func (c *recordingClient) SendMessage(ctx context.Context, chatID, _ string) error {
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if cur <= peak || c.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mx.Lock()
	c.sent = append(c.sent, chatID)
	c.mx.Unlock()
	if c.fail[chatID] {
		return assert.AnError
	}
	return nil
}

func TestBroadcaster_BoundedFanOut(t *testing.T) {
	const subscribers = 40
	ids := make([]int64, 0, subscribers)
	for i := range subscribers {
		ids = append(ids, int64(i+1))
	}

	store := dal.NewMemory()
	for _, id := range ids {
		_, err := store.AddSubscriber(t.Context(), id)
		require.NoError(t, err)
	}
	client := &recordingClient{delay: 10 * time.Millisecond, fail: map[string]bool{"7": true}}

	b := service.NewBroadcaster(healthyReport(), store, client, clock.NewMock(reportAt),
		service.BroadcastOptions{Concurrency: 4}, slog.New(slog.DiscardHandler))

	got, err := b.BroadcastNow(t.Context())
	require.NoError(t, err)

	assert.Equal(t, subscribers, got.Subscribers)
	assert.Equal(t, subscribers-1, got.Delivered)
	assert.Equal(t, []int64{7}, got.Failed)
	assert.Len(t, client.sent, subscribers)
	assert.LessOrEqual(t, client.peak.Load(), int32(4))
	assert.Greater(t, client.peak.Load(), int32(1), "deliveries should overlap")
}

func TestBroadcaster_SlowRecipientDoesNotBlockOthers(t *testing.T) {
	store := dal.NewMemory()
	for _, id := range []int64{1, 2, 3} {
		_, err := store.AddSubscriber(t.Context(), id)
		require.NoError(t, err)
	}

	ctrl := gomock.NewController(t)
	client := mocks.NewMockTelegramClient(ctrl)
	client.EXPECT().SendMessage(gomock.Any(), "2", gomock.Any()).DoAndReturn(func(ctx context.Context, _, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	client.EXPECT().SendMessage(gomock.Any(), gomock.Any(), testutil.TextContains("67,234.50 USD")).Return(nil).Times(2)

	b := service.NewBroadcaster(healthyReport(), store, client, clock.NewMock(reportAt),
		service.BroadcastOptions{Concurrency: 3, SendTimeout: 50 * time.Millisecond}, slog.New(slog.DiscardHandler))

	got, err := b.BroadcastNow(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Delivered)
	assert.Equal(t, []int64{2}, got.Failed)
}

func TestBroadcaster_Serialized(t *testing.T) {
	store := dal.NewMemory()
	for i := range 5 {
		_, err := store.AddSubscriber(t.Context(), int64(i))
		require.NoError(t, err)
	}
	client := &recordingClient{delay: 5 * time.Millisecond}

	b := service.NewBroadcaster(healthyReport(), store, client, clock.NewMock(reportAt),
		service.BroadcastOptions{Concurrency: 5}, slog.New(slog.DiscardHandler))

	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			_, err := b.BroadcastNow(context.Background())
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Len(t, client.sent, 15)
	assert.LessOrEqual(t, client.peak.Load(), int32(5), "broadcasts must not interleave")
}

func TestDeliveryOutcome_ChatIDsAreStable(t *testing.T) {
	store := dal.NewMemory()
	fail := map[string]bool{}
	for i := range 10 {
		_, err := store.AddSubscriber(t.Context(), int64(i))
		require.NoError(t, err)
		if i%3 == 0 {
			fail[strconv.Itoa(i)] = true
		}
	}
	client := &recordingClient{fail: fail}

	b := service.NewBroadcaster(healthyReport(), store, client, clock.NewMock(reportAt),
		service.BroadcastOptions{Concurrency: 10}, slog.New(slog.DiscardHandler))

	got, err := b.BroadcastNow(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3, 6, 9}, got.Failed)
}
