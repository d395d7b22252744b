package marketdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskexecutor/src/model"
)

func snap(symbol string, last string, volume int64) model.MarketSnapshot {
	return model.MarketSnapshot{
		Symbol:     symbol,
		Last:       decimal.RequireFromString(last),
		Volume:     volume,
		CapturedAt: time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC),
	}
}

func TestCacheGetAbsent(t *testing.T) {
	c := NewCache()

	_, ok := c.Get("AAPL")
	assert.False(t, ok)
	assert.Empty(t, c.Symbols())
}

func TestCacheUpdateOverwrites(t *testing.T) {
	c := NewCache()
	c.Update(snap("AAPL", "100", 1000))
	c.Update(snap("AAPL", "101.5", 2000))

	got, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.True(t, got.Last.Equal(decimal.RequireFromString("101.5")))
	assert.Equal(t, int64(2000), got.Volume)
	assert.Equal(t, []string{"AAPL"}, c.Symbols())
}

func TestCacheObserversInRegistrationOrder(t *testing.T) {
	c := NewCache()
	var calls []string

	c.Register(ObserverFunc(func(s model.MarketSnapshot) { calls = append(calls, "first:"+s.Symbol) }))
	c.Register(ObserverFunc(func(s model.MarketSnapshot) { calls = append(calls, "second:"+s.Symbol) }))
	c.Register(nil)

	c.Update(snap("MSFT", "300", 10))

	assert.Equal(t, []string{"first:MSFT", "second:MSFT"}, calls)
}

func TestCacheObserverCanReadCache(t *testing.T) {
	c := NewCache()
	var seen model.MarketSnapshot
	c.Register(ObserverFunc(func(s model.MarketSnapshot) {
		seen, _ = c.Get(s.Symbol)
	}))

	c.Update(snap("GOOGL", "140", 10))

	assert.Equal(t, "GOOGL", seen.Symbol)
}

func TestCacheSymbolsIsSnapshot(t *testing.T) {
	c := NewCache()
	c.Update(snap("MSFT", "300", 10))
	c.Update(snap("AAPL", "100", 10))

	symbols := c.Symbols()
	c.Update(snap("TSLA", "200", 10))

	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, c.Symbols())
}
