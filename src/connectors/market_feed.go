package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
)

// SnapshotSink receives every decoded quote. The market data cache satisfies it.
type SnapshotSink interface {
	Update(snapshot model.MarketSnapshot)
}

type subscribeMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// quoteFrame is one message from the quote stream. Prices may be sent as strings or numbers.
type quoteFrame struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Last      decimal.Decimal `json:"last"`
	Volume    int64           `json:"volume"`
	Timestamp int64           `json:"ts"` // unix millis
}

// MarketFeed streams quotes over a websocket into a SnapshotSink and reconnects with
// exponential backoff until its context ends.
type MarketFeed struct {
	url          string
	symbols      []string
	sink         SnapshotSink
	logger       *logrus.Entry
	dialer       *websocket.Dialer
	readTimeout  time.Duration
	reconnectMin time.Duration
	reconnectMax time.Duration
	now          func() time.Time

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewMarketFeed(cfg Config, sink SnapshotSink, logger *logrus.Entry) *MarketFeed {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	reconnectMin := cfg.FeedReconnectMin
	if reconnectMin <= 0 {
		reconnectMin = time.Second
	}

	return &MarketFeed{
		url:          cfg.FeedURL,
		symbols:      cfg.Symbols,
		sink:         sink,
		logger:       logger.WithField("component", "MarketFeed"),
		readTimeout:  cfg.FeedReadTimeout,
		reconnectMin: reconnectMin,
		reconnectMax: cfg.FeedReconnectMax,
		now:          time.Now,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  15 * time.Second,
			EnableCompression: true,
			Proxy:             http.ProxyFromEnvironment,
		},
	}
}

// Connect dials and subscribes once. A failure here is a startup failure.
func (f *MarketFeed) Connect(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}

	if len(f.symbols) > 0 {
		if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: f.symbols}); err != nil {
			conn.Close()
			return fmt.Errorf("ws subscribe failed: %w", err)
		}
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	if ctx.Err() != nil {
		f.Close()
		return ctx.Err()
	}

	f.logger.WithFields(logrus.Fields{"url": f.url, "symbols": len(f.symbols)}).Info("market feed connected")
	return nil
}

// Run reads quotes until ctx is done, reconnecting after read failures.
// It closes the connection before returning.
func (f *MarketFeed) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	defer stop()
	defer f.Close()

	backoff := f.reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn := f.current()
		if conn == nil {
			if err := f.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.WithError(err).WithField("retry_in", backoff.String()).Warn("market feed reconnect failed")
				if !sleepCtx(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff, f.reconnectMin, f.reconnectMax)
				continue
			}
			backoff = f.reconnectMin
			conn = f.current()
			if conn == nil {
				continue
			}
		}

		err := f.readLoop(conn)
		f.drop(conn)
		if ctx.Err() != nil {
			return
		}
		f.logger.WithError(err).Warn("market feed disconnected, reconnecting")
	}
}

func (f *MarketFeed) Close() error {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (f *MarketFeed) current() *websocket.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *MarketFeed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	if f.conn == conn {
		f.conn = nil
	}
	f.mu.Unlock()
	_ = conn.Close()
}

func (f *MarketFeed) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(1024 * 1024)
	if f.readTimeout > 0 {
		_ = conn.SetReadDeadline(f.now().Add(f.readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(f.now().Add(f.readTimeout))
		})
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if f.readTimeout > 0 {
			_ = conn.SetReadDeadline(f.now().Add(f.readTimeout))
		}

		snapshot, ok, err := decodeQuote(msg, f.now())
		if err != nil {
			f.logger.WithError(err).WithField("raw", string(msg)).Debug("ws json unmarshal error")
			continue
		}
		if !ok {
			continue
		}
		f.sink.Update(snapshot)
	}
}

// decodeQuote returns ok=false for non-quote frames such as heartbeats and acks.
func decodeQuote(raw []byte, now time.Time) (model.MarketSnapshot, bool, error) {
	var frame quoteFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return model.MarketSnapshot{}, false, err
	}
	if !strings.EqualFold(frame.Type, "quote") {
		return model.MarketSnapshot{}, false, nil
	}
	if frame.Symbol == "" {
		return model.MarketSnapshot{}, false, errors.New("quote without symbol")
	}

	captured := now
	if frame.Timestamp > 0 {
		captured = time.UnixMilli(frame.Timestamp).UTC()
	}

	return model.MarketSnapshot{
		Symbol:     strings.ToUpper(frame.Symbol),
		Bid:        frame.Bid,
		Ask:        frame.Ask,
		Last:       frame.Last,
		Volume:     frame.Volume,
		CapturedAt: captured,
	}, true, nil
}

func nextBackoff(cur, lo, hi time.Duration) time.Duration {
	if cur < lo {
		cur = lo
	}
	next := cur * 2
	if hi > 0 && next > hi {
		return hi
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
