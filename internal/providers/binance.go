package providers

import (
	"context"
	"encoding/json"
	"time"

	"resty.dev/v3"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

const (
	BinanceName          = "binance"
	DefaultBinanceURL    = "https://api.binance.com/api/v3/ticker/price"
	DefaultBinanceSymbol = "BTCUSDT"
)

type binanceTicker struct {
	Symbol string          `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

// Binance reads the spot price of a trading pair, BTCUSDT by default.
type Binance struct {
	client *resty.Client
	url    string
	symbol string
}

func NewBinance(url, symbol string, timeout time.Duration) *Binance {
	if url == "" {
		url = DefaultBinanceURL
	}
	if symbol == "" {
		symbol = DefaultBinanceSymbol
	}
	return &Binance{
		client: newClient(timeout, "application/json"),
		url:    url,
		symbol: symbol,
	}
}

func (b *Binance) Name() string {
	return BinanceName
}

func (b *Binance) Fetch(ctx context.Context) []models.Quote {
	return []models.Quote{b.fetch(ctx)}
}

func (b *Binance) fetch(ctx context.Context) models.Quote {
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", b.symbol).
		Get(b.url)
	if fe := classify(resp, err); fe != nil {
		return models.Unavailable(models.QuantityBTC, BinanceName, models.UnitUSD, fe)
	}

	var ticker binanceTicker
	if err = json.Unmarshal([]byte(resp.String()), &ticker); err != nil {
		return models.Unavailable(models.QuantityBTC, BinanceName, models.UnitUSD, malformed(err))
	}
	if len(ticker.Price) == 0 {
		return models.Unavailable(models.QuantityBTC, BinanceName, models.UnitUSD, missing([]string{"price"}))
	}

	v, err := ParseNumber(ticker.Price)
	if err != nil {
		return models.Unavailable(models.QuantityBTC, BinanceName, models.UnitUSD, malformed(err))
	}
	return models.NewQuote(models.QuantityBTC, BinanceName, models.UnitUSD, v, 2)
}
