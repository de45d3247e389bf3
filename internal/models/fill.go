package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is one executed market order, immutable once appended to the ledger.
type Fill struct {
	Timestamp   time.Time       `json:"timestamp"`
	Symbol      string          `json:"instrument"`
	Side        string          `json:"side"` // BUY or SELL
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	QuoteAmount decimal.Decimal `json:"quoteAmount"`
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)
