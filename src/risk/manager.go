package risk

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
	"riskexecutor/src/tp_sl"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must be positive")
)

// Decision is the outcome of ValidateOrder. Reason is empty when Allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func reject(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// State is a point-in-time view of the process-wide risk accumulators.
type State struct {
	DailyPnL           decimal.Decimal `json:"daily_pnl"`
	UnrealizedPnL      decimal.Decimal `json:"unrealized_pnl"`
	DailyLimitReached  bool            `json:"daily_loss_limit_reached"`
	OpenPositions      int             `json:"open_positions"`
	MaxOpenPositions   int             `json:"max_open_positions"`
	MaxDailyLossUSD    decimal.Decimal `json:"max_daily_loss_usd"`
	MaxPositionSizeUSD decimal.Decimal `json:"max_position_size_usd"`
	LastResetAt        time.Time       `json:"last_reset_at"`
}

// Manager owns the position table, the daily realized P&L and the loss circuit breaker.
// The lock guards only in-memory state and is never held while calling out.
type Manager struct {
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time

	pct             tp_sl.Percentages
	maxPositionSize decimal.Decimal
	maxDailyLoss    decimal.Decimal

	mu           sync.Mutex
	positions    map[string]*model.Position
	dailyPnL     decimal.Decimal
	limitReached bool
	lastResetAt  time.Time
}

func NewManager(cfg Config, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Manager{
		cfg:    cfg,
		logger: logger.WithField("component", "RiskManager"),
		now:    time.Now,
		pct: tp_sl.Percentages{
			StopLossPct:     decimal.NewFromFloat(cfg.StopLossPct),
			TakeProfitPct:   decimal.NewFromFloat(cfg.TakeProfitPct),
			TrailingStopPct: decimal.NewFromFloat(cfg.TrailingStopPct),
		},
		maxPositionSize: decimal.NewFromFloat(cfg.MaxPositionSizeUSD),
		maxDailyLoss:    decimal.NewFromFloat(cfg.MaxDailyLossUSD),
		positions:       make(map[string]*model.Position),
		lastResetAt:     time.Now(),
	}
}

// ValidateOrder must be called before every risk-increasing submission.
func (m *Manager) ValidateOrder(symbol string, side model.OrderSide, quantity int64, price decimal.Decimal) Decision {
	if quantity <= 0 {
		return reject("invalid quantity %d", quantity)
	}
	if !price.IsPositive() {
		return reject("invalid price %s", price.String())
	}

	notional := price.Mul(decimal.NewFromInt(quantity))

	m.mu.Lock()
	open := len(m.positions)
	tripped := m.limitReached
	m.mu.Unlock()

	var decision Decision
	switch {
	case notional.GreaterThan(m.maxPositionSize):
		decision = reject("position size $%s exceeds limit $%s", notional.StringFixed(2), m.maxPositionSize.StringFixed(2))
	case open >= m.cfg.MaxOpenPositions:
		decision = reject("max open positions reached (%d)", m.cfg.MaxOpenPositions)
	case tripped:
		decision = reject("daily loss limit reached")
	case m.cfg.RegularHoursOnly && !IsRegularSession(m.now()):
		decision = reject("outside regular trading hours (%s)", DetectSession(m.now()))
	default:
		decision = allow()
	}

	if !decision.Allowed {
		m.logger.WithFields(logrus.Fields{
			"symbol":   symbol,
			"side":     side,
			"quantity": quantity,
			"price":    price.String(),
			"reason":   decision.Reason,
		}).Warn("order rejected by risk check")
	}
	return decision
}

// AddPosition applies a fill to the position table. It returns the resulting position,
// or nil when the fill fully offset an existing position.
func (m *Manager) AddPosition(symbol string, side model.PositionSide, quantity int64, entryPrice decimal.Decimal) (*model.Position, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("add position %s: %w", symbol, ErrInvalidQuantity)
	}
	if !entryPrice.IsPositive() {
		return nil, fmt.Errorf("add position %s: %w", symbol, ErrInvalidPrice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	log := m.logger.WithFields(logrus.Fields{"symbol": symbol, "side": side, "quantity": quantity, "price": entryPrice.String()})

	existing, ok := m.positions[symbol]
	switch {
	case !ok:
		p := m.newPosition(symbol, side, quantity, entryPrice, now)
		m.positions[symbol] = p
		log.Info("position opened")
		return clonePtr(p), nil

	case existing.Side == side:
		total := existing.Quantity + quantity
		cost := existing.EntryPrice.Mul(decimal.NewFromInt(existing.Quantity)).
			Add(entryPrice.Mul(decimal.NewFromInt(quantity)))
		existing.EntryPrice = cost.Div(decimal.NewFromInt(total))
		existing.Quantity = total
		m.applyThresholds(existing)
		existing.UnrealizedPnL = unrealized(existing.Side, existing.EntryPrice, existing.CurrentPrice, existing.Quantity)
		existing.UpdatedAt = now
		log.WithField("avg_entry", existing.EntryPrice.String()).Info("position increased")
		return clonePtr(existing), nil

	case quantity < existing.Quantity:
		// Reduce in place; thresholds and entry are kept.
		m.realize(unrealized(existing.Side, existing.EntryPrice, entryPrice, quantity))
		existing.Quantity -= quantity
		existing.UnrealizedPnL = unrealized(existing.Side, existing.EntryPrice, existing.CurrentPrice, existing.Quantity)
		existing.UpdatedAt = now
		log.WithField("remaining", existing.Quantity).Info("position reduced")
		return clonePtr(existing), nil

	default:
		m.realize(unrealized(existing.Side, existing.EntryPrice, entryPrice, existing.Quantity))
		remainder := quantity - existing.Quantity
		delete(m.positions, symbol)
		if remainder == 0 {
			log.Info("position closed by offsetting fill")
			return nil, nil
		}
		p := m.newPosition(symbol, side, remainder, entryPrice, now)
		m.positions[symbol] = p
		log.WithField("remaining", remainder).Info("position flipped")
		return clonePtr(p), nil
	}
}

// UpdatePositionPrice marks a position to price and ratchets its trailing stop.
// It returns false when there is no position for symbol.
func (m *Manager) UpdatePositionPrice(symbol string, price decimal.Decimal) bool {
	if !price.IsPositive() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return false
	}

	p.CurrentPrice = price
	p.UnrealizedPnL = unrealized(p.Side, p.EntryPrice, price, p.Quantity)
	p.UpdatedAt = m.now()
	if p.State == model.PositionStateOpening {
		p.State = model.PositionStateOpen
	}

	if p.TrailingStopPrice != nil {
		next, moved := tp_sl.ComputeNextStopLossDirectional(p.Side, *p.TrailingStopPrice, price, m.pct.TrailingStopPct)
		if moved {
			p.TrailingStopPrice = &next
			if p.StopLossPrice == nil || tp_sl.Tighter(p.Side, next, *p.StopLossPrice) {
				stop := next
				p.StopLossPrice = &stop
			}
			m.logger.WithFields(logrus.Fields{
				"symbol":    symbol,
				"side":      p.Side,
				"trailing":  next.String(),
				"stop_loss": p.StopLossPrice.String(),
			}).Debug("trailing stop ratcheted")
		}
	}

	m.evaluateBreaker()
	return true
}

func (m *Manager) CheckStopLoss(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return false
	}
	return tp_sl.StopLossHit(p.Side, p.CurrentPrice, p.StopLossPrice)
}

func (m *Manager) CheckTakeProfit(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return false
	}
	return tp_sl.TakeProfitHit(p.Side, p.CurrentPrice, p.TakeProfitPrice)
}

// RemovePosition realizes the position's last unrealized P&L and deletes it.
func (m *Manager) RemovePosition(symbol string) (model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return model.Position{}, false
	}

	delete(m.positions, symbol)
	m.realize(p.UnrealizedPnL)

	closed := p.Clone()
	closed.State = model.PositionStateClosed
	closed.UpdatedAt = m.now()

	m.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"side":      p.Side,
		"pnl":       p.UnrealizedPnL.StringFixed(2),
		"daily_pnl": m.dailyPnL.StringFixed(2),
	}).Info("position removed")
	return closed, true
}

func (m *Manager) Position(symbol string) (model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return p.Clone(), true
}

// Positions returns copies of all open positions ordered by symbol.
func (m *Manager) Positions() []model.Position {
	m.mu.Lock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p.Clone())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (m *Manager) HasPosition(symbol string, side model.PositionSide) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	return ok && p.Side == side
}

func (m *Manager) OpenPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

func (m *Manager) DailyPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

func (m *Manager) DailyLossLimitReached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limitReached
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, p := range m.positions {
		total = total.Add(p.UnrealizedPnL)
	}

	return State{
		DailyPnL:           m.dailyPnL,
		UnrealizedPnL:      total,
		DailyLimitReached:  m.limitReached,
		OpenPositions:      len(m.positions),
		MaxOpenPositions:   m.cfg.MaxOpenPositions,
		MaxDailyLossUSD:    m.maxDailyLoss,
		MaxPositionSizeUSD: m.maxPositionSize,
		LastResetAt:        m.lastResetAt,
	}
}

// ResetDay starts a new trading day: realized P&L is zeroed and the breaker cleared.
// Open positions are carried over.
func (m *Manager) ResetDay() {
	m.mu.Lock()
	prev := m.dailyPnL
	wasTripped := m.limitReached
	m.dailyPnL = decimal.Zero
	m.limitReached = false
	m.lastResetAt = m.now()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"previous_pnl":     prev.StringFixed(2),
		"breaker_was_open": wasTripped,
	}).Info("daily risk state reset")
}

func (m *Manager) newPosition(symbol string, side model.PositionSide, quantity int64, entry decimal.Decimal, now time.Time) *model.Position {
	p := &model.Position{
		Symbol:        symbol,
		Side:          side,
		State:         model.PositionStateOpening,
		Quantity:      quantity,
		EntryPrice:    entry,
		CurrentPrice:  entry,
		UnrealizedPnL: decimal.Zero,
		OpenedAt:      now,
		UpdatedAt:     now,
	}
	m.applyThresholds(p)
	return p
}

func (m *Manager) applyThresholds(p *model.Position) {
	th := tp_sl.Derive(p.Side, p.EntryPrice, m.pct)
	p.StopLossPrice = th.StopLoss
	p.TakeProfitPrice = th.TakeProfit
	p.TrailingStopPrice = th.TrailingStop
}

// realize must be called with mu held.
func (m *Manager) realize(pnl decimal.Decimal) {
	m.dailyPnL = m.dailyPnL.Add(pnl)
	m.evaluateBreaker()
}

// evaluateBreaker must be called with mu held. The breaker is sticky until ResetDay.
func (m *Manager) evaluateBreaker() {
	if m.limitReached || !m.maxDailyLoss.IsPositive() {
		return
	}
	if m.dailyPnL.LessThanOrEqual(m.maxDailyLoss.Neg()) {
		m.limitReached = true
		m.logger.WithFields(logrus.Fields{
			"daily_pnl": m.dailyPnL.StringFixed(2),
			"limit":     m.maxDailyLoss.StringFixed(2),
		}).Error("daily loss limit reached, blocking new orders")
	}
}

func unrealized(side model.PositionSide, entry, current decimal.Decimal, quantity int64) decimal.Decimal {
	diff := current.Sub(entry)
	if side == model.PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromInt(quantity))
}

func clonePtr(p *model.Position) *model.Position {
	c := p.Clone()
	return &c
}
