package providers

import (
	"context"
	"encoding/json"
	"time"

	"resty.dev/v3"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

const (
	NavasanName       = "navasan"
	DefaultNavasanURL = "https://api.navasan.tech/latest/"
)

// Navasan reads the domestic currency and gold feed. The payload is a flat object keyed by
// symbol whose values are either bare numbers or objects with a "value" field.
type Navasan struct {
	client *resty.Client
	url    string
	apiKey string
	keys   KeyTable
}

func NewNavasan(url, apiKey string, keys KeyTable, timeout time.Duration) *Navasan {
	if url == "" {
		url = DefaultNavasanURL
	}
	return &Navasan{
		client: newClient(timeout, "application/json"),
		url:    url,
		apiKey: apiKey,
		keys:   DefaultNavasanKeys().Merge(keys),
	}
}

func (n *Navasan) Name() string {
	return NavasanName
}

func (n *Navasan) Fetch(ctx context.Context) []models.Quote {
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParam("api_key", n.apiKey).
		Get(n.url)
	if fe := classify(resp, err); fe != nil {
		return unavailableAll(NavasanName, models.UnitToman, domesticQuantities, fe)
	}

	var payload map[string]json.RawMessage
	if err = json.Unmarshal([]byte(resp.String()), &payload); err != nil {
		return unavailableAll(NavasanName, models.UnitToman, domesticQuantities, malformed(err))
	}

	res := make([]models.Quote, 0, len(domesticQuantities))
	for _, q := range domesticQuantities {
		v, _, pickErr := PickValue(payload, n.keys[q])
		if pickErr != nil {
			res = append(res, models.Unavailable(q, NavasanName, models.UnitToman, pickErr))
			continue
		}
		res = append(res, models.NewQuote(q, NavasanName, models.UnitToman, v, precisionOf(v)))
	}
	return res
}
