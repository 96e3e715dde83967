package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Roma7-7-7/price-notifier/internal/models"
	"github.com/Roma7-7-7/price-notifier/internal/providers"
	"github.com/Roma7-7-7/price-notifier/internal/service"
	"github.com/Roma7-7-7/price-notifier/internal/service/mocks"
	"github.com/Roma7-7-7/price-notifier/pkg/clock"
)

func TestPrices_Quotes(t *testing.T) {
	ctrl := gomock.NewController(t)

	domestic := mocks.NewMockPriceSource(ctrl)
	domestic.EXPECT().Name().Return(providers.NavasanName).AnyTimes()
	domestic.EXPECT().Fetch(gomock.Any()).DoAndReturn(func(ctx context.Context) []models.Quote {
		// slower source must still come first
		time.Sleep(20 * time.Millisecond)
		return []models.Quote{usdQuote("580000"), goldQuote("38500000")}
	}).Times(1)

	crypto := mocks.NewMockPriceSource(ctrl)
	crypto.EXPECT().Name().Return(providers.BinanceName).AnyTimes()
	crypto.EXPECT().Fetch(gomock.Any()).Return([]models.Quote{btcQuote("67234.5")}).Times(1)

	prices := service.NewPrices([]service.PriceSource{domestic, crypto}, clock.NewMock(reportAt), time.Second, slog.New(slog.DiscardHandler))

	quotes := prices.Quotes(t.Context())

	require.Len(t, quotes, 3)
	assert.Equal(t, models.QuantityUSD, quotes[0].Quantity)
	assert.Equal(t, models.QuantityGold18, quotes[1].Quantity)
	assert.Equal(t, models.QuantityBTC, quotes[2].Quantity)
}

func TestPrices_FetchIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mocks.NewMockPriceSource(ctrl)
	src.EXPECT().Name().Return("slow").AnyTimes()
	src.EXPECT().Fetch(gomock.Any()).DoAndReturn(func(ctx context.Context) []models.Quote {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok, "fetch must run with a deadline")
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		<-ctx.Done()
		return []models.Quote{models.Unavailable(models.QuantityBTC, "slow", models.UnitUSD, &providers.FetchError{Kind: providers.KindTimeout, Cause: ctx.Err()})}
	})

	prices := service.NewPrices([]service.PriceSource{src}, clock.NewMock(reportAt), 50*time.Millisecond, slog.New(slog.DiscardHandler))

	start := time.Now()
	quotes := prices.Quotes(t.Context())

	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, quotes, 1)
	assert.False(t, quotes[0].Available())
}

func TestPrices_Report(t *testing.T) {
	ctrl := gomock.NewController(t)

	domestic := mocks.NewMockPriceSource(ctrl)
	domestic.EXPECT().Name().Return(providers.NavasanName).AnyTimes()
	domestic.EXPECT().Fetch(gomock.Any()).Return(domesticTimeout())

	crypto := mocks.NewMockPriceSource(ctrl)
	crypto.EXPECT().Name().Return(providers.BinanceName).AnyTimes()
	crypto.EXPECT().Fetch(gomock.Any()).Return([]models.Quote{btcQuote("67000")})

	prices := service.NewPrices([]service.PriceSource{domestic, crypto}, clock.NewMock(reportAt), time.Second, slog.New(slog.DiscardHandler))

	report := prices.Report(t.Context())

	assert.Equal(t, reportAt, report.GeneratedAt)
	assert.Len(t, report.Lines, 3)
	assert.Equal(t, "navasan: request timed out", report.Annotation)
}
