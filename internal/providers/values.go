package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

// KeyTable maps a logical quantity to the upstream keys (or selectors) that may carry it,
// in priority order. The first candidate present in the payload wins.
type KeyTable map[models.Quantity][]string

// DefaultNavasanKeys is used when no feed keys file is configured.
func DefaultNavasanKeys() KeyTable {
	return KeyTable{
		models.QuantityUSD:    {"usd", "price_dollar_rl", "dollar", "usd_sell"},
		models.QuantityGold18: {"geram18", "gold_18", "gerami18", "18ayar"},
	}
}

// DefaultBonbastSelectors is used when no feed keys file is configured.
func DefaultBonbastSelectors() KeyTable {
	return KeyTable{
		models.QuantityUSD:    {"#usd1", "#usd1_top", "[data-currency='usd'] .sell"},
		models.QuantityGold18: {"#gol18", "#gol18_top", "[data-item='gol18'] .price"},
	}
}

// Merge returns a copy of t where every quantity present in override replaces the one in t.
func (t KeyTable) Merge(override KeyTable) KeyTable {
	res := make(KeyTable, len(t))
	for q, keys := range t {
		res[q] = append([]string(nil), keys...)
	}
	for q, keys := range override {
		if len(keys) == 0 {
			continue
		}
		res[q] = append([]string(nil), keys...)
	}
	return res
}

// PickValue resolves the first candidate key present in data. A key that is present but
// not numeric is skipped so that the next candidate still gets a chance.
func PickValue(data map[string]json.RawMessage, candidates []string) (decimal.Decimal, string, error) {
	var parseErr error
	for _, key := range candidates {
		raw, ok := data[key]
		if !ok {
			continue
		}
		v, err := ParseNumber(raw)
		if err != nil {
			parseErr = errors.Join(parseErr, fmt.Errorf("key %s: %w", key, err))
			continue
		}
		return v, key, nil
	}

	if parseErr != nil {
		return decimal.Zero, "", malformed(parseErr)
	}
	return decimal.Zero, "", missing(candidates)
}

// ParseNumber accepts a JSON number, a numeric string with thousands separators,
// or an object carrying either of those under "value".
func ParseNumber(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, errors.New("empty value")
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return decimal.Zero, fmt.Errorf("unmarshal object: %w", err)
		}
		nested, ok := obj["value"]
		if !ok {
			return decimal.Zero, errors.New("object has no value field")
		}
		nested = bytes.TrimSpace(nested)
		if len(nested) > 0 && nested[0] == '{' {
			return decimal.Zero, errors.New("nested value is an object")
		}
		return ParseNumber(nested)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("unmarshal string: %w", err)
		}
		return ParseText(s)
	default:
		return ParseText(string(raw))
	}
}

var digitsReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	",", "", "٬", "", " ", "", " ", "", "٫", ".",
)

// ParseText parses human formatted numbers such as "51,200", " 67234.50 " or "۵۸۰٬۰۰۰".
func ParseText(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(digitsReplacer.Replace(s))
	if s == "" {
		return decimal.Zero, errors.New("empty value")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number %q: %w", s, err)
	}
	return v, nil
}
