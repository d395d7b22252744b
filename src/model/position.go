package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Opposite returns the other side.
func (s PositionSide) Opposite() PositionSide {
	if s == PositionSideLong {
		return PositionSideShort
	}
	return PositionSideLong
}

// EntryOrderSide is the order side that opens or adds to a position on this side.
func (s PositionSide) EntryOrderSide() OrderSide {
	if s == PositionSideShort {
		return OrderSideSellShort
	}
	return OrderSideBuy
}

// ExitOrderSide is the order side that closes a position on this side.
func (s PositionSide) ExitOrderSide() OrderSide {
	if s == PositionSideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

type PositionState string

const (
	PositionStateOpening PositionState = "opening"
	PositionStateOpen    PositionState = "open"
	PositionStateClosed  PositionState = "closed"
)

// Position is the engine's in-memory record of exposure for one symbol.
// Threshold prices are nil when the corresponding percentage is disabled.
type Position struct {
	Symbol            string           `json:"symbol"`
	Side              PositionSide     `json:"side"`
	State             PositionState    `json:"state"`
	Quantity          int64            `json:"quantity"`
	EntryPrice        decimal.Decimal  `json:"entry_price"`
	CurrentPrice      decimal.Decimal  `json:"current_price"`
	UnrealizedPnL     decimal.Decimal  `json:"unrealized_pnl"`
	StopLossPrice     *decimal.Decimal `json:"stop_loss_price,omitempty"`
	TakeProfitPrice   *decimal.Decimal `json:"take_profit_price,omitempty"`
	TrailingStopPrice *decimal.Decimal `json:"trailing_stop_price,omitempty"`
	OpenedAt          time.Time        `json:"opened_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so callers never share threshold pointers with the owner.
func (p Position) Clone() Position {
	out := p
	out.StopLossPrice = clonePrice(p.StopLossPrice)
	out.TakeProfitPrice = clonePrice(p.TakeProfitPrice)
	out.TrailingStopPrice = clonePrice(p.TrailingStopPrice)
	return out
}

func clonePrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
