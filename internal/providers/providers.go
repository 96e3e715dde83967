package providers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

const userAgent = "price-notifier-bot/1.0"

// Source is one upstream feed. Fetch never fails as a whole: every returned quote carries
// either a value or the reason it is unavailable.
type Source interface {
	Name() string
	Fetch(ctx context.Context) []models.Quote
}

var domesticQuantities = []models.Quantity{models.QuantityUSD, models.QuantityGold18}

func newClient(timeout time.Duration, accept string) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", accept).
		SetHeader("User-Agent", userAgent)
}

// precisionOf keeps whole numbers whole and renders everything else with two fraction digits.
func precisionOf(v decimal.Decimal) int32 {
	if v.IsInteger() {
		return 0
	}
	return 2
}

func unavailableAll(source, unit string, quantities []models.Quantity, err error) []models.Quote {
	res := make([]models.Quote, 0, len(quantities))
	for _, q := range quantities {
		res = append(res, models.Unavailable(q, source, unit, err))
	}
	return res
}
