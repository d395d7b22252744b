package scanner

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
)

var hundred = decimal.NewFromInt(100)

// SnapshotSource is the read side of the market data cache.
type SnapshotSource interface {
	Symbols() []string
	Get(symbol string) (model.MarketSnapshot, bool)
}

// SignalHandler accepts a signal emitted by the breakout scanner.
type SignalHandler interface {
	HandleSignal(signal model.ScanSignal)
}

// SignalHandlerFunc adapts a plain function to SignalHandler.
type SignalHandlerFunc func(signal model.ScanSignal)

func (f SignalHandlerFunc) HandleSignal(signal model.ScanSignal) { f(signal) }

// BreakoutScanner compares each symbol against the snapshot seen on the previous cycle
// and emits breakout or volume-spike signals.
type BreakoutScanner struct {
	cfg    Config
	source SnapshotSource
	logger *logrus.Entry

	breakoutPct decimal.Decimal
	volumeSpike decimal.Decimal
	minPrice    decimal.Decimal
	maxPrice    decimal.Decimal

	mu       sync.Mutex
	previous map[string]model.MarketSnapshot
	handlers []SignalHandler
}

func NewBreakoutScanner(cfg Config, source SnapshotSource, logger *logrus.Entry) *BreakoutScanner {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &BreakoutScanner{
		cfg:         cfg,
		source:      source,
		logger:      logger.WithField("component", "BreakoutScanner"),
		breakoutPct: decimal.NewFromFloat(cfg.BreakoutThresholdPct),
		volumeSpike: decimal.NewFromFloat(cfg.VolumeSpikeThreshold),
		minPrice:    decimal.NewFromFloat(cfg.MinPrice),
		maxPrice:    decimal.NewFromFloat(cfg.MaxPrice),
		previous:    make(map[string]model.MarketSnapshot),
	}
}

// Register appends a handler; handlers receive every signal in registration order.
func (s *BreakoutScanner) Register(h SignalHandler) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Scan evaluates every cached symbol once. All emitted signals have been delivered to the
// registered handlers by the time Scan returns.
func (s *BreakoutScanner) Scan() []model.ScanSignal {
	var signals []model.ScanSignal

	s.mu.Lock()
	for _, symbol := range s.source.Symbols() {
		current, ok := s.source.Get(symbol)
		if !ok || !s.isValid(current) {
			continue
		}

		prior, seen := s.previous[symbol]
		s.previous[symbol] = current
		if !seen || prior.Last.IsZero() {
			continue
		}

		if signal, ok := s.analyze(prior, current); ok {
			signals = append(signals, signal)
		}
	}
	handlers := s.handlers
	s.mu.Unlock()

	for _, signal := range signals {
		s.logger.WithFields(logrus.Fields{
			"symbol": signal.Symbol,
			"kind":   signal.Kind,
			"reason": signal.Reason,
		}).Info("scanner signal")

		for _, h := range handlers {
			h.HandleSignal(signal)
		}
	}

	return signals
}

func (s *BreakoutScanner) isValid(snapshot model.MarketSnapshot) bool {
	if snapshot.Last.LessThan(s.minPrice) || snapshot.Last.GreaterThan(s.maxPrice) {
		return false
	}
	return snapshot.Volume >= s.cfg.MinVolume
}

func (s *BreakoutScanner) analyze(prior, current model.MarketSnapshot) (model.ScanSignal, bool) {
	changePct := current.Last.Sub(prior.Last).Div(prior.Last).Mul(hundred)

	volumeRatio := decimal.NewFromInt(1)
	if prior.Volume > 0 {
		volumeRatio = decimal.NewFromInt(current.Volume).Div(decimal.NewFromInt(prior.Volume))
	}

	signal := model.ScanSignal{
		Symbol:    current.Symbol,
		Price:     current.Last,
		Volume:    current.Volume,
		ChangePct: changePct,
	}

	if changePct.Abs().GreaterThanOrEqual(s.breakoutPct) {
		signal.Kind = model.SignalBreakoutDown
		if changePct.IsPositive() {
			signal.Kind = model.SignalBreakoutUp
		}
		signal.Reason = fmt.Sprintf("Price breakout: %s%%", changePct.StringFixed(2))
		return signal, true
	}

	if volumeRatio.GreaterThanOrEqual(s.volumeSpike) {
		signal.Kind = model.SignalVolumeSpike
		signal.Reason = fmt.Sprintf("Volume spike: %sx", volumeRatio.StringFixed(2))
		return signal, true
	}

	return model.ScanSignal{}, false
}
