package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"riskexecutor/src/model"
	"riskexecutor/src/risk"
)

// OrderGateway is the order-submission collaborator (the FIX bridge or a paper venue).
type OrderGateway interface {
	Submit(ctx context.Context, req model.OrderRequest) (string, error)
	Cancel(ctx context.Context, orderID, symbol string) error
}

// LocateChecker confirms shares are available to borrow before a short sale.
type LocateChecker interface {
	CheckLocate(ctx context.Context, symbol string, quantity int64) (bool, error)
}

// AlwaysLocate approves every locate request.
type AlwaysLocate struct{}

func (AlwaysLocate) CheckLocate(context.Context, string, int64) (bool, error) { return true, nil }

// OrderRecorder appends order events to an audit trail.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, order model.Order, event, reason string) error
}

type noopRecorder struct{}

func (noopRecorder) RecordOrder(context.Context, model.Order, string, string) error { return nil }

// PositionBook is the part of the risk manager the coordinator drives.
type PositionBook interface {
	ValidateOrder(symbol string, side model.OrderSide, quantity int64, price decimal.Decimal) risk.Decision
	AddPosition(symbol string, side model.PositionSide, quantity int64, entryPrice decimal.Decimal) (*model.Position, error)
	UpdatePositionPrice(symbol string, price decimal.Decimal) bool
	CheckStopLoss(symbol string) bool
	CheckTakeProfit(symbol string) bool
	RemovePosition(symbol string) (model.Position, bool)
	Position(symbol string) (model.Position, bool)
}
