package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Roma7-7-7/price-notifier/internal/models"
	"github.com/Roma7-7-7/price-notifier/internal/providers"
)

//go:generate mockgen -package mocks -destination mocks/prices.go . PriceSource

type PriceSource interface {
	Name() string
	Fetch(ctx context.Context) []models.Quote
}

// Prices fetches every configured source exactly once per call, in parallel, and keeps the
// configured order of the resulting quotes.
type Prices struct {
	sources []PriceSource
	clock   Clock
	timeout time.Duration

	log *slog.Logger
}

func NewPrices(sources []PriceSource, clock Clock, timeout time.Duration, log *slog.Logger) *Prices {
	return &Prices{
		sources: sources,
		clock:   clock,
		timeout: timeout,
		log:     log.With("component", "service").With("service", "prices"),
	}
}

func (p *Prices) Quotes(ctx context.Context) []models.Quote {
	results := make([][]models.Quote, len(p.sources))

	g := &errgroup.Group{}
	for i, src := range p.sources {
		g.Go(func() error {
			results[i] = p.fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var res []models.Quote
	for _, r := range results {
		res = append(res, r...)
	}
	return res
}

// Report fetches fresh quotes and composes them at the current time.
func (p *Prices) Report(ctx context.Context) Report {
	quotes := p.Quotes(ctx)
	return ComposeReport(quotes, p.clock.Now())
}

func (p *Prices) fetch(ctx context.Context, src PriceSource) []models.Quote {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	quotes := src.Fetch(ctx)
	log := p.log.With("source", src.Name())

	for _, q := range quotes {
		if q.Available() {
			continue
		}
		attrs := []any{"quantity", q.Quantity, "error", q.Err.Error()}
		var fe *providers.FetchError
		if errors.As(q.Err, &fe) {
			attrs = append(attrs, "kind", fe.Kind)
		}
		log.WarnContext(ctx, "quote unavailable", attrs...)
	}
	log.DebugContext(ctx, "fetched quotes", "count", len(quotes), "duration", time.Since(start))

	return quotes
}
