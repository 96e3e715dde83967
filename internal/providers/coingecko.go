package providers

import (
	"context"
	"encoding/json"
	"time"

	"resty.dev/v3"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

const (
	CoinGeckoName        = "coingecko"
	DefaultCoinGeckoURL  = "https://api.coingecko.com/api/v3/simple/price"
	DefaultCoinGeckoCoin = "bitcoin"
)

// CoinGecko is the alternative crypto feed: /simple/price?ids=bitcoin&vs_currencies=usd.
type CoinGecko struct {
	client *resty.Client
	url    string
	coin   string
}

func NewCoinGecko(url, coin string, timeout time.Duration) *CoinGecko {
	if url == "" {
		url = DefaultCoinGeckoURL
	}
	if coin == "" {
		coin = DefaultCoinGeckoCoin
	}
	return &CoinGecko{
		client: newClient(timeout, "application/json"),
		url:    url,
		coin:   coin,
	}
}

func (c *CoinGecko) Name() string {
	return CoinGeckoName
}

func (c *CoinGecko) Fetch(ctx context.Context) []models.Quote {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           c.coin,
			"vs_currencies": "usd",
		}).
		Get(c.url)
	if fe := classify(resp, err); fe != nil {
		return []models.Quote{models.Unavailable(models.QuantityBTC, CoinGeckoName, models.UnitUSD, fe)}
	}

	var payload map[string]map[string]json.RawMessage
	if err = json.Unmarshal([]byte(resp.String()), &payload); err != nil {
		return []models.Quote{models.Unavailable(models.QuantityBTC, CoinGeckoName, models.UnitUSD, malformed(err))}
	}
	prices, ok := payload[c.coin]
	if !ok {
		return []models.Quote{models.Unavailable(models.QuantityBTC, CoinGeckoName, models.UnitUSD, missing([]string{c.coin}))}
	}

	v, _, err := PickValue(prices, []string{"usd"})
	if err != nil {
		return []models.Quote{models.Unavailable(models.QuantityBTC, CoinGeckoName, models.UnitUSD, err)}
	}
	return []models.Quote{models.NewQuote(models.QuantityBTC, CoinGeckoName, models.UnitUSD, v, 2)}
}
