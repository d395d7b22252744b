package model

import "github.com/shopspring/decimal"

type SignalKind string

const (
	SignalBreakoutUp   SignalKind = "BREAKOUT_UP"
	SignalBreakoutDown SignalKind = "BREAKOUT_DOWN"
	SignalVolumeSpike  SignalKind = "VOLUME_SPIKE"
)

// ScanSignal is emitted by the breakout scanner for one symbol in one cycle.
type ScanSignal struct {
	Symbol    string          `json:"symbol"`
	Kind      SignalKind      `json:"kind"`
	Reason    string          `json:"reason"`
	Price     decimal.Decimal `json:"price"`
	Volume    int64           `json:"volume"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// ShortOpportunity is emitted by the short scanner for a symbol without an open short.
type ShortOpportunity struct {
	Symbol     string          `json:"symbol"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	DropPct    decimal.Decimal `json:"drop_pct"`
	Reason     string          `json:"reason"`
}
