// model/order_execution_log.go
package model

import "time"

// Order execution events written to the audit trail.
const (
	OrderEventSubmitted = "submitted"
	OrderEventCancelled = "cancelled"
	OrderEventFilled    = "filled"
	OrderEventPartFill  = "part_filled"
)

// OrderExecutionLog stores one row per interaction with the order gateway.
// It is an audit trail only; the live order table stays in memory.
type OrderExecutionLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Gateway-assigned identifier
	OrderID string `gorm:"size:255;index" json:"order_id"`

	// Snapshot of the order at the moment of this log entry
	Symbol      string   `gorm:"size:32;index" json:"symbol"`
	Side        string   `gorm:"size:20" json:"side"`
	OrderType   string   `gorm:"size:20" json:"order_type"`
	TimeInForce string   `gorm:"size:8" json:"time_in_force"`
	Quantity    int64    `json:"quantity"`
	Price       *float64 `json:"price,omitempty"`

	FilledQuantity int64   `json:"filled_quantity"`
	AvgFillPrice   float64 `json:"avg_fill_price"`

	Event     string    `gorm:"size:20;not null" json:"event"`  // see OrderEvent* constants
	Status    string    `gorm:"size:30;not null" json:"status"` // model.OrderStatus
	Reason    string    `gorm:"size:255" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName allows you to control the exact table name for execution logs.
func (OrderExecutionLog) TableName() string {
	return "order_execution_logs"
}

// NewOrderExecutionLog snapshots an order for the audit trail.
func NewOrderExecutionLog(order Order, event string, reason string) *OrderExecutionLog {
	entry := &OrderExecutionLog{
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Side:           string(order.Side),
		OrderType:      string(order.Type),
		TimeInForce:    string(order.TimeInForce),
		Quantity:       order.Quantity,
		FilledQuantity: order.FilledQuantity,
		AvgFillPrice:   order.AvgFillPrice.InexactFloat64(),
		Event:          event,
		Status:         string(order.Status),
		Reason:         reason,
	}
	if order.Price != nil {
		p := order.Price.InexactFloat64()
		entry.Price = &p
	}
	return entry
}
