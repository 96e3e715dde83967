package models

import (
	"github.com/shopspring/decimal"
)

type Quantity string

const (
	QuantityUSD    Quantity = "usd"
	QuantityGold18 Quantity = "gold18"
	QuantityBTC    Quantity = "btc"
)

const (
	UnitToman = "تومان"
	UnitUSD   = "USD"
)

// Quote is one fetched price. A quote with a non-nil Err is unavailable and its Value must be ignored.
type Quote struct {
	Quantity Quantity
	Source   string
	Unit     string
	Value    decimal.Decimal
	// Precision is the number of fraction digits the value is rendered with.
	Precision int32
	Err       error
}

func (q Quote) Available() bool {
	return q.Err == nil
}

func NewQuote(quantity Quantity, source, unit string, value decimal.Decimal, precision int32) Quote {
	return Quote{
		Quantity:  quantity,
		Source:    source,
		Unit:      unit,
		Value:     value,
		Precision: precision,
	}
}

func Unavailable(quantity Quantity, source, unit string, err error) Quote {
	return Quote{
		Quantity: quantity,
		Source:   source,
		Unit:     unit,
		Err:      err,
	}
}
