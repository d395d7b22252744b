package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is the latest known quote for one symbol.
// Snapshots are values; a new update replaces the previous one instead of mutating it.
type MarketSnapshot struct {
	Symbol     string          `json:"symbol"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	Last       decimal.Decimal `json:"last"`
	Volume     int64           `json:"volume"`
	CapturedAt time.Time       `json:"captured_at"`
}
