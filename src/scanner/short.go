package scanner

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
)

// PositionLookup answers whether a symbol already has an open position on a side.
type PositionLookup interface {
	HasPosition(symbol string, side model.PositionSide) bool
}

// ShortScanner remembers the last price per symbol and reports drops past the entry threshold.
type ShortScanner struct {
	cfg       ShortConfig
	source    SnapshotSource
	positions PositionLookup
	logger    *logrus.Entry
	threshold decimal.Decimal

	mu       sync.Mutex
	previous map[string]decimal.Decimal
}

func NewShortScanner(cfg ShortConfig, source SnapshotSource, positions PositionLookup, logger *logrus.Entry) *ShortScanner {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &ShortScanner{
		cfg:       cfg,
		source:    source,
		positions: positions,
		logger:    logger.WithField("component", "ShortScanner"),
		threshold: decimal.NewFromFloat(cfg.ShortEntryThresholdPct),
		previous:  make(map[string]decimal.Decimal),
	}
}

// Scan returns the short candidates for this cycle. Symbols that already carry an open
// short are skipped without touching their remembered price.
func (s *ShortScanner) Scan() []model.ShortOpportunity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opportunities []model.ShortOpportunity
	for _, symbol := range s.source.Symbols() {
		if s.positions != nil && s.positions.HasPosition(symbol, model.PositionSideShort) {
			continue
		}

		snapshot, ok := s.source.Get(symbol)
		if !ok {
			continue
		}
		current := snapshot.Last

		previous, seen := s.previous[symbol]
		s.previous[symbol] = current
		if !seen || previous.IsZero() {
			continue
		}

		dropPct := current.Sub(previous).Div(previous).Mul(hundred)
		if dropPct.LessThanOrEqual(s.threshold) {
			opportunities = append(opportunities, model.ShortOpportunity{
				Symbol:     symbol,
				EntryPrice: current,
				DropPct:    dropPct,
				Reason:     fmt.Sprintf("Price drop: %s%%", dropPct.StringFixed(2)),
			})
		}
	}

	if len(opportunities) > 0 {
		s.logger.WithField("count", len(opportunities)).Debug("short opportunities detected")
	}

	return opportunities
}
