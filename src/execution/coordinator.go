package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
	"riskexecutor/src/risk"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrOrderTooLarge     = errors.New("order size exceeds maximum")
	ErrSubmissionFailed  = errors.New("order submission failed")
	ErrCancelFailed      = errors.New("order cancel failed")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrNoPosition        = errors.New("no open position")
	ErrLocateCheckFailed = errors.New("locate check failed")
	ErrPositionUpdate    = errors.New("position update failed")
)

// Close reasons passed to the audit trail.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonSignal     = "signal"
	ReasonOperator   = "operator"
)

// Execution is the result of a composite validate-submit-update operation.
// Order is nil when the request was rejected before submission.
type Execution struct {
	Decision risk.Decision   `json:"decision"`
	Order    *model.Order    `json:"order,omitempty"`
	Position *model.Position `json:"position,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// Coordinator gates orders through the risk manager and keeps the local order table.
// All submissions for one symbol are serialized.
type Coordinator struct {
	cfg      Config
	gateway  OrderGateway
	book     PositionBook
	locate   LocateChecker
	recorder OrderRecorder
	logger   *logrus.Entry
	now      func() time.Time
	tif      model.TimeInForce

	symbols *symbolLocks

	mu     sync.RWMutex
	orders map[string]*model.Order
}

func NewCoordinator(
	cfg Config,
	gateway OrderGateway,
	book PositionBook,
	locate LocateChecker,
	recorder OrderRecorder,
	logger *logrus.Entry,
) *Coordinator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if locate == nil {
		locate = AlwaysLocate{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	tif := model.TimeInForce(cfg.DefaultTimeInForce)
	switch tif {
	case model.TimeInForceDay, model.TimeInForceIOC, model.TimeInForceFOK:
	default:
		tif = model.TimeInForceDay
	}

	return &Coordinator{
		cfg:      cfg,
		gateway:  gateway,
		book:     book,
		locate:   locate,
		recorder: recorder,
		logger:   logger.WithField("component", "ExecutionCoordinator"),
		now:      time.Now,
		tif:      tif,
		symbols:  newSymbolLocks(),
		orders:   make(map[string]*model.Order),
	}
}

// Submit sends a raw order request. It performs the size check but no risk validation.
func (c *Coordinator) Submit(ctx context.Context, req model.OrderRequest) (model.Order, error) {
	unlock := c.symbols.lock(req.Symbol)
	defer unlock()
	return c.submit(ctx, req, "")
}

func (c *Coordinator) PlaceMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity int64) (model.Order, error) {
	return c.Submit(ctx, model.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     model.OrderTypeMarket,
		Quantity: quantity,
	})
}

func (c *Coordinator) PlaceLimitOrder(ctx context.Context, symbol string, side model.OrderSide, quantity int64, price decimal.Decimal, tif model.TimeInForce) (model.Order, error) {
	return c.Submit(ctx, model.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Type:        model.OrderTypeLimit,
		Quantity:    quantity,
		Price:       &price,
		TimeInForce: tif,
	})
}

func (c *Coordinator) PlaceStopOrder(ctx context.Context, symbol string, side model.OrderSide, quantity int64, stopPrice decimal.Decimal) (model.Order, error) {
	return c.Submit(ctx, model.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     model.OrderTypeStop,
		Quantity: quantity,
		Price:    &stopPrice,
	})
}

// OpenPosition validates, submits a market entry and records the fill at price.
// A risk rejection is returned in Execution.Decision with a nil error.
func (c *Coordinator) OpenPosition(ctx context.Context, symbol string, side model.PositionSide, quantity int64, price decimal.Decimal) (Execution, error) {
	unlock := c.symbols.lock(symbol)
	defer unlock()

	return c.enter(ctx, symbol, side, quantity, price, ReasonSignal)
}

// OpenIfFlat opens a position only when the symbol has none. The check and the entry
// run under the same symbol lock. When a position already exists the request is
// rejected and Execution.Position holds the existing position.
func (c *Coordinator) OpenIfFlat(ctx context.Context, symbol string, side model.PositionSide, quantity int64, price decimal.Decimal) (Execution, error) {
	unlock := c.symbols.lock(symbol)
	defer unlock()

	if pos, ok := c.book.Position(symbol); ok {
		return Execution{
			Decision: risk.Decision{Allowed: false, Reason: fmt.Sprintf("%s position already open", pos.Side)},
			Position: &pos,
			Reason:   ReasonSignal,
		}, nil
	}
	return c.enter(ctx, symbol, side, quantity, price, ReasonSignal)
}

// ExecuteShort opens or adds to a short after the exposure and locate checks.
// A symbol holding a long is refused; the long must be closed first.
func (c *Coordinator) ExecuteShort(ctx context.Context, opp model.ShortOpportunity, quantity int64) (Execution, error) {
	unlock := c.symbols.lock(opp.Symbol)
	defer unlock()

	log := c.logger.WithFields(logrus.Fields{"symbol": opp.Symbol, "quantity": quantity, "drop_pct": opp.DropPct.StringFixed(2)})

	if pos, ok := c.book.Position(opp.Symbol); ok && pos.Side != model.PositionSideShort {
		decision := risk.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s position open on %s, close it before shorting", pos.Side, opp.Symbol),
		}
		log.Info("short skipped, opposite position open")
		return Execution{Decision: decision, Position: &pos}, nil
	}

	current := c.ShortExposure(opp.Symbol)
	if current+quantity > c.cfg.MaxShortPosition {
		decision := risk.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("short position limit exceeded: current %d + requested %d > max %d", current, quantity, c.cfg.MaxShortPosition),
		}
		log.WithField("reason", decision.Reason).Warn("short rejected")
		return Execution{Decision: decision}, nil
	}

	if c.cfg.LocateRequired {
		ok, err := c.locate.CheckLocate(ctx, opp.Symbol, quantity)
		if err != nil {
			log.WithError(err).Error("locate check failed")
			return Execution{}, fmt.Errorf("%w: %s: %w", ErrLocateCheckFailed, opp.Symbol, err)
		}
		if !ok {
			decision := risk.Decision{Allowed: false, Reason: "locate not available"}
			log.Warn("locate not available")
			return Execution{Decision: decision}, nil
		}
	}

	exec, err := c.enter(ctx, opp.Symbol, model.PositionSideShort, quantity, opp.EntryPrice, opp.Reason)
	if err != nil || exec.Order == nil {
		return exec, err
	}

	log.WithField("order_id", exec.Order.ID).Info("short position opened")
	return exec, nil
}

// ClosePosition submits a market exit for the whole position and removes it.
// Exits reduce risk and are not subject to ValidateOrder.
func (c *Coordinator) ClosePosition(ctx context.Context, symbol, reason string) (Execution, error) {
	unlock := c.symbols.lock(symbol)
	defer unlock()

	return c.exit(ctx, symbol, reason)
}

// CloseIfSide closes the symbol's position only when it is on side. It returns nil
// when there is nothing matching to close.
func (c *Coordinator) CloseIfSide(ctx context.Context, symbol string, side model.PositionSide, reason string) (*Execution, error) {
	unlock := c.symbols.lock(symbol)
	defer unlock()

	if pos, ok := c.book.Position(symbol); !ok || pos.Side != side {
		return nil, nil
	}

	exec, err := c.exit(ctx, symbol, reason)
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// MonitorPosition marks the position to price and closes it when the stop-loss or,
// failing that, the take-profit threshold is hit. It returns nil when nothing was closed.
func (c *Coordinator) MonitorPosition(ctx context.Context, symbol string, price decimal.Decimal) (*Execution, error) {
	unlock := c.symbols.lock(symbol)
	defer unlock()

	if !c.book.UpdatePositionPrice(symbol, price) {
		return nil, nil
	}

	var reason string
	switch {
	case c.book.CheckStopLoss(symbol):
		reason = ReasonStopLoss
		c.logger.WithFields(logrus.Fields{"symbol": symbol, "price": price.String()}).Warn("stop loss triggered")
	case c.book.CheckTakeProfit(symbol):
		reason = ReasonTakeProfit
		c.logger.WithFields(logrus.Fields{"symbol": symbol, "price": price.String()}).Info("take profit triggered")
	default:
		return nil, nil
	}

	exec, err := c.exit(ctx, symbol, reason)
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// Cancel asks the gateway to cancel an order. Failures are reported, not retried.
func (c *Coordinator) Cancel(ctx context.Context, orderID, symbol string) error {
	unlock := c.symbols.lock(symbol)
	defer unlock()

	log := c.logger.WithFields(logrus.Fields{"order_id": orderID, "symbol": symbol})

	if err := c.gateway.Cancel(ctx, orderID, symbol); err != nil {
		log.WithError(err).Error("order cancel failed")
		return fmt.Errorf("%w: %s: %w", ErrCancelFailed, orderID, err)
	}

	c.mu.Lock()
	order, ok := c.orders[orderID]
	var snapshot model.Order
	if ok {
		order.Status = model.OrderStatusCancelled
		order.UpdatedAt = c.now()
		snapshot = *order
	}
	c.mu.Unlock()

	if ok {
		c.record(ctx, snapshot, model.OrderEventCancelled, "")
	}
	log.Info("order cancelled")
	return nil
}

// ApplyExecutionReport applies an external fill or cancel. Reports for orders already in a
// terminal state, or repeating an already-applied fill, are ignored.
func (c *Coordinator) ApplyExecutionReport(ctx context.Context, report model.ExecutionReport) error {
	switch report.Status {
	case model.OrderStatusPartiallyFilled, model.OrderStatusFilled, model.OrderStatusCancelled:
	default:
		return fmt.Errorf("%w: unsupported report status %q", ErrInvalidOrder, report.Status)
	}

	c.mu.Lock()
	order, ok := c.orders[report.OrderID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownOrder, report.OrderID)
	}
	if order.Status.Terminal() ||
		(report.Status != model.OrderStatusCancelled && report.FilledQuantity < order.FilledQuantity) ||
		(report.Status == order.Status && report.FilledQuantity == order.FilledQuantity) {
		c.mu.Unlock()
		return nil
	}

	order.Status = report.Status
	if report.FilledQuantity > order.FilledQuantity {
		order.FilledQuantity = report.FilledQuantity
		order.AvgFillPrice = report.AvgFillPrice
	}
	order.UpdatedAt = c.now()
	snapshot := *order
	c.mu.Unlock()

	event := model.OrderEventPartFill
	switch report.Status {
	case model.OrderStatusFilled:
		event = model.OrderEventFilled
	case model.OrderStatusCancelled:
		event = model.OrderEventCancelled
	}
	c.record(ctx, snapshot, event, "")

	c.logger.WithFields(logrus.Fields{
		"order_id": snapshot.ID,
		"status":   snapshot.Status,
		"filled":   snapshot.FilledQuantity,
	}).Info("execution report applied")
	return nil
}

func (c *Coordinator) Order(orderID string) (model.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	o, ok := c.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	return *o, true
}

// Orders returns every known order, oldest first.
func (c *Coordinator) Orders() []model.Order {
	return c.collect(func(model.Order) bool { return true })
}

// OpenOrders returns orders still working at the venue.
func (c *Coordinator) OpenOrders() []model.Order {
	return c.collect(func(o model.Order) bool { return o.Status.Working() })
}

// ShortExposure is the open short quantity for symbol as held by the position book.
func (c *Coordinator) ShortExposure(symbol string) int64 {
	pos, ok := c.book.Position(symbol)
	if !ok || pos.Side != model.PositionSideShort {
		return 0
	}
	return pos.Quantity
}

// enter and exit must be called with the symbol lock held.
func (c *Coordinator) enter(ctx context.Context, symbol string, side model.PositionSide, quantity int64, price decimal.Decimal, reason string) (Execution, error) {
	decision := c.book.ValidateOrder(symbol, side.EntryOrderSide(), quantity, price)
	exec := Execution{Decision: decision, Reason: reason}
	if !decision.Allowed {
		return exec, nil
	}

	order, err := c.submit(ctx, model.OrderRequest{
		Symbol:   symbol,
		Side:     side.EntryOrderSide(),
		Type:     model.OrderTypeMarket,
		Quantity: quantity,
	}, reason)
	if err != nil {
		return exec, err
	}
	exec.Order = &order

	pos, err := c.book.AddPosition(symbol, side, quantity, price)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"symbol": symbol, "order_id": order.ID}).Error("position update failed after submission")
		return exec, fmt.Errorf("%w: %w", ErrPositionUpdate, err)
	}
	exec.Position = pos

	c.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
		"price":    price.String(),
		"order_id": order.ID,
		"reason":   reason,
	}).Info("position entry executed")
	return exec, nil
}

func (c *Coordinator) exit(ctx context.Context, symbol, reason string) (Execution, error) {
	pos, ok := c.book.Position(symbol)
	if !ok {
		return Execution{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	exec := Execution{Decision: risk.Decision{Allowed: true}, Reason: reason}

	order, err := c.submit(ctx, model.OrderRequest{
		Symbol:   symbol,
		Side:     pos.Side.ExitOrderSide(),
		Type:     model.OrderTypeMarket,
		Quantity: pos.Quantity,
	}, reason)
	if err != nil {
		return exec, err
	}
	exec.Order = &order

	closed, _ := c.book.RemovePosition(symbol)
	exec.Position = &closed

	c.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"side":     pos.Side,
		"quantity": pos.Quantity,
		"pnl":      closed.UnrealizedPnL.StringFixed(2),
		"order_id": order.ID,
		"reason":   reason,
	}).Info("position closed")
	return exec, nil
}

func (c *Coordinator) submit(ctx context.Context, req model.OrderRequest, reason string) (model.Order, error) {
	if req.Symbol == "" || req.Quantity <= 0 {
		return model.Order{}, fmt.Errorf("%w: symbol %q quantity %d", ErrInvalidOrder, req.Symbol, req.Quantity)
	}
	if req.Quantity > c.cfg.MaxOrderSize {
		return model.Order{}, fmt.Errorf("%w: %d > %d", ErrOrderTooLarge, req.Quantity, c.cfg.MaxOrderSize)
	}
	if req.Type != model.OrderTypeMarket && (req.Price == nil || !req.Price.IsPositive()) {
		return model.Order{}, fmt.Errorf("%w: %s order requires a positive price", ErrInvalidOrder, req.Type)
	}
	if req.Type == model.OrderTypeMarket {
		req.Price = nil
	}
	if req.TimeInForce == "" {
		req.TimeInForce = c.tif
	}

	log := c.logger.WithFields(logrus.Fields{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.Type,
		"quantity": req.Quantity,
	})

	orderID, err := c.gateway.Submit(ctx, req)
	if err == nil && orderID == "" {
		err = errors.New("gateway returned an empty order id")
	}
	if err != nil {
		log.WithError(err).Error("order submission failed")
		return model.Order{}, fmt.Errorf("%w: %s %s: %w", ErrSubmissionFailed, req.Side, req.Symbol, err)
	}

	now := c.now()
	order := model.Order{
		ID:          orderID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Price:       req.Price,
		TimeInForce: req.TimeInForce,
		Status:      model.OrderStatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	c.mu.Lock()
	stored := order
	c.orders[orderID] = &stored
	c.mu.Unlock()

	c.record(ctx, order, model.OrderEventSubmitted, reason)
	log.WithField("order_id", orderID).Info("order submitted")
	return order, nil
}

func (c *Coordinator) record(ctx context.Context, order model.Order, event, reason string) {
	if err := c.recorder.RecordOrder(ctx, order, event, reason); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"event":    event,
		}).Warn("failed to record order event")
	}
}

func (c *Coordinator) collect(keep func(model.Order) bool) []model.Order {
	c.mu.RLock()
	out := make([]model.Order, 0, len(c.orders))
	for _, o := range c.orders {
		if keep(*o) {
			out = append(out, *o)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}
