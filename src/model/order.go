package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy       OrderSide = "BUY"
	OrderSideSell      OrderSide = "SELL"
	OrderSideSellShort OrderSide = "SELL_SHORT"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

type TimeInForce string

const (
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are accepted.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// Working reports whether the order is still live at the venue.
func (s OrderStatus) Working() bool {
	return s == OrderStatusSubmitted || s == OrderStatusPartiallyFilled
}

// OrderRequest is what the coordinator hands to the order gateway.
// Price is nil for market orders.
type OrderRequest struct {
	Symbol      string           `json:"symbol"`
	Side        OrderSide        `json:"side"`
	Type        OrderType        `json:"type"`
	Quantity    int64            `json:"quantity"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	TimeInForce TimeInForce      `json:"time_in_force"`
}

// Order represents an order accepted by the order gateway.
type Order struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Side           OrderSide        `json:"side"`
	Type           OrderType        `json:"type"`
	Quantity       int64            `json:"quantity"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	TimeInForce    TimeInForce      `json:"time_in_force"`
	Status         OrderStatus      `json:"status"`
	FilledQuantity int64            `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal  `json:"avg_fill_price"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ExecutionReport is a fill or cancel notification for a previously submitted order.
type ExecutionReport struct {
	OrderID        string          `json:"order_id"`
	Status         OrderStatus     `json:"status"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
}
