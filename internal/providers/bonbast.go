package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

const (
	BonbastName       = "bonbast"
	DefaultBonbastURL = "https://www.bonbast.com/"
)

// Bonbast scrapes the domestic rates page. Each quantity is located by the first
// CSS selector in its list that matches a numeric element.
type Bonbast struct {
	client    *resty.Client
	url       string
	selectors KeyTable
}

func NewBonbast(url string, selectors KeyTable, timeout time.Duration) *Bonbast {
	if url == "" {
		url = DefaultBonbastURL
	}
	return &Bonbast{
		client:    newClient(timeout, "text/html"),
		url:       url,
		selectors: DefaultBonbastSelectors().Merge(selectors),
	}
}

func (b *Bonbast) Name() string {
	return BonbastName
}

func (b *Bonbast) Fetch(ctx context.Context) []models.Quote {
	resp, err := b.client.R().
		SetContext(ctx).
		Get(b.url)
	if fe := classify(resp, err); fe != nil {
		return unavailableAll(BonbastName, models.UnitToman, domesticQuantities, fe)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return unavailableAll(BonbastName, models.UnitToman, domesticQuantities, malformed(err))
	}

	res := make([]models.Quote, 0, len(domesticQuantities))
	for _, q := range domesticQuantities {
		v, pickErr := pickSelection(doc.Selection, b.selectors[q])
		if pickErr != nil {
			res = append(res, models.Unavailable(q, BonbastName, models.UnitToman, pickErr))
			continue
		}
		res = append(res, models.NewQuote(q, BonbastName, models.UnitToman, v, precisionOf(v)))
	}
	return res
}

func pickSelection(root *goquery.Selection, selectors []string) (decimal.Decimal, error) {
	var parseErr error
	for _, sel := range selectors {
		node := root.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		v, err := ParseText(node.Text())
		if err != nil {
			parseErr = errors.Join(parseErr, fmt.Errorf("selector %s: %w", sel, err))
			continue
		}
		return v, nil
	}

	if parseErr != nil {
		return decimal.Zero, malformed(parseErr)
	}
	return decimal.Zero, missing(selectors)
}
