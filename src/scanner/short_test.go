package scanner

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskexecutor/src/marketdata"
	"riskexecutor/src/model"
)

type stubPositions map[string]model.PositionSide

func (s stubPositions) HasPosition(symbol string, side model.PositionSide) bool {
	got, ok := s[symbol]
	return ok && got == side
}

func newTestShortScanner(t *testing.T, positions stubPositions) (*ShortScanner, *marketdata.Cache) {
	t.Helper()
	logger, _ := logrustest.NewNullLogger()
	cache := marketdata.NewCache()
	cfg := ShortConfig{Enabled: true, ScanInterval: 5 * time.Second, ShortEntryThresholdPct: -1.0}
	return NewShortScanner(cfg, cache, positions, logrus.NewEntry(logger)), cache
}

func TestShortScannerEmitsOnDrop(t *testing.T) {
	positions := stubPositions{}
	s, cache := newTestShortScanner(t, positions)

	cache.Update(quote("AAPL", "50.0", 1000))
	require.Empty(t, s.Scan())

	cache.Update(quote("AAPL", "49.0", 1000))
	opportunities := s.Scan()

	require.Len(t, opportunities, 1)
	assert.Equal(t, "AAPL", opportunities[0].Symbol)
	assert.True(t, opportunities[0].DropPct.Equal(d("-2")))
	assert.True(t, opportunities[0].EntryPrice.Equal(d("49")))
	assert.Equal(t, "Price drop: -2.00%", opportunities[0].Reason)

	// With a short now open the symbol is skipped.
	positions["AAPL"] = model.PositionSideShort
	cache.Update(quote("AAPL", "45.0", 1000))
	assert.Empty(t, s.Scan())
}

func TestShortScannerLongPositionDoesNotBlock(t *testing.T) {
	s, cache := newTestShortScanner(t, stubPositions{"MSFT": model.PositionSideLong})

	cache.Update(quote("MSFT", "100", 1000))
	s.Scan()
	cache.Update(quote("MSFT", "98", 1000))

	assert.Len(t, s.Scan(), 1)
}

func TestShortScannerBoundaryIsInclusive(t *testing.T) {
	s, cache := newTestShortScanner(t, stubPositions{})

	cache.Update(quote("IBM", "100", 1000))
	s.Scan()
	cache.Update(quote("IBM", "99", 1000))

	assert.Len(t, s.Scan(), 1)
}

func TestShortScannerPreviousPriceUpdatedWithoutSignal(t *testing.T) {
	s, cache := newTestShortScanner(t, stubPositions{})

	cache.Update(quote("TSLA", "100", 1000))
	s.Scan()
	cache.Update(quote("TSLA", "99.5", 1000))
	require.Empty(t, s.Scan())

	// 99.5 -> 98.6 is about -0.9%, below the threshold magnitude.
	cache.Update(quote("TSLA", "98.6", 1000))
	assert.Empty(t, s.Scan())
}

func TestShortScannerSkippedSymbolKeepsOldPrice(t *testing.T) {
	positions := stubPositions{}
	s, cache := newTestShortScanner(t, positions)

	cache.Update(quote("AMD", "100", 1000))
	s.Scan()

	positions["AMD"] = model.PositionSideShort
	cache.Update(quote("AMD", "120", 1000))
	s.Scan()

	delete(positions, "AMD")
	cache.Update(quote("AMD", "98", 1000))
	opportunities := s.Scan()

	require.Len(t, opportunities, 1)
	assert.True(t, opportunities[0].DropPct.Equal(d("-2")))
}
