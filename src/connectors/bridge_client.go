// REST CLIENT FOR THE FIX ORDER BRIDGE
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 250 * time.Millisecond
	defaultRetryMaxBackoff = 2 * time.Second
)

var ErrLogonTimeout = errors.New("bridge session not logged on")

// FIX tag values used in NewOrderSingle.
var (
	fixSide = map[model.OrderSide]string{
		model.OrderSideBuy:       "1",
		model.OrderSideSell:      "2",
		model.OrderSideSellShort: "5",
	}
	fixOrdType = map[model.OrderType]string{
		model.OrderTypeMarket: "1",
		model.OrderTypeLimit:  "2",
		model.OrderTypeStop:   "3",
	}
	fixTimeInForce = map[model.TimeInForce]string{
		model.TimeInForceDay: "0",
		model.TimeInForceIOC: "3",
		model.TimeInForceFOK: "4",
	}
)

// -----------------------------
// API RESPONSE WRAPPER
// -----------------------------
type BridgeResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type newOrderSingle struct {
	ClOrdID     string           `json:"clOrdId"`
	Account     string           `json:"account,omitempty"`
	Symbol      string           `json:"symbol"`
	Side        string           `json:"side"`
	OrdType     string           `json:"ordType"`
	OrderQty    int64            `json:"orderQty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	StopPx      *decimal.Decimal `json:"stopPx,omitempty"`
	TimeInForce string           `json:"timeInForce"`
}

type orderAck struct {
	ClOrdID string `json:"clOrdId"`
	OrderID string `json:"orderId"`
}

type cancelRequest struct {
	OrigClOrdID string `json:"origClOrdId"`
	ClOrdID     string `json:"clOrdId"`
	Symbol      string `json:"symbol"`
}

type LocateResult struct {
	Symbol    string `json:"symbol"`
	Available bool   `json:"available"`
	Shares    int64  `json:"shares"`
}

type SessionStatus struct {
	LoggedOn     bool   `json:"loggedOn"`
	SenderCompID string `json:"senderCompId"`
	TargetCompID string `json:"targetCompId"`
}

// -----------------------------
// CLIENT
// -----------------------------
type BridgeClient struct {
	baseURL   string
	account   string
	logonWait time.Duration
	logonPoll time.Duration
	http      *resty.Client
	logger    *logrus.Entry
	newID     func() string
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewBridgeClient(cfg Config, logger *logrus.Entry) *BridgeClient {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BridgeURL).
		SetTimeout(cfg.BridgeTimeout).
		SetRetryCount(defaultRetryAttempts-1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp).
		SetHeader("Content-Type", "application/json")

	return &BridgeClient{
		baseURL:   cfg.BridgeURL,
		account:   cfg.BridgeAccount,
		logonWait: cfg.LogonTimeout,
		logonPoll: cfg.LogonPoll,
		http:      httpClient,
		logger:    logger.WithField("component", "BridgeClient"),
		newID:     uuid.NewString,
	}
}

func (c *BridgeClient) doRequest(ctx context.Context, method, path string, query map[string]string, body any) (*BridgeResponse, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req = req.SetQueryParams(query)
	}
	if body != nil {
		req = req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}

	raw := resp.Body()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var apiResp BridgeResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Code != 0 {
		return nil, &BridgeError{Code: apiResp.Code, Msg: apiResp.Msg}
	}

	return &apiResp, nil
}

// -----------------------------
// ORDER ENTRY
// -----------------------------

// Submit sends a NewOrderSingle and returns its ClOrdID. The ClOrdID is fixed before the
// first attempt so retries are deduplicated by the bridge.
func (c *BridgeClient) Submit(ctx context.Context, req model.OrderRequest) (string, error) {
	side, ok := fixSide[req.Side]
	if !ok {
		return "", fmt.Errorf("unsupported side %q", req.Side)
	}
	ordType, ok := fixOrdType[req.Type]
	if !ok {
		return "", fmt.Errorf("unsupported order type %q", req.Type)
	}
	tif, ok := fixTimeInForce[req.TimeInForce]
	if !ok {
		tif = fixTimeInForce[model.TimeInForceDay]
	}

	body := newOrderSingle{
		ClOrdID:     c.newID(),
		Account:     c.account,
		Symbol:      req.Symbol,
		Side:        side,
		OrdType:     ordType,
		OrderQty:    req.Quantity,
		TimeInForce: tif,
	}
	switch req.Type {
	case model.OrderTypeLimit:
		body.Price = req.Price
	case model.OrderTypeStop:
		body.StopPx = req.Price
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/orders", nil, body)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":  req.Symbol,
			"side":    req.Side,
			"clOrdId": body.ClOrdID,
		}).Error("bridge order rejected")
		return "", err
	}

	var ack orderAck
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &ack); err != nil {
			return "", fmt.Errorf("decode order ack: %w", err)
		}
	}
	if ack.ClOrdID == "" {
		ack.ClOrdID = body.ClOrdID
	}

	c.logger.WithFields(logrus.Fields{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"quantity": req.Quantity,
		"clOrdId":  ack.ClOrdID,
		"orderId":  ack.OrderID,
	}).Info("order sent")
	return ack.ClOrdID, nil
}

// Cancel sends an OrderCancelRequest for a previously submitted ClOrdID.
func (c *BridgeClient) Cancel(ctx context.Context, orderID, symbol string) error {
	body := cancelRequest{
		OrigClOrdID: orderID,
		ClOrdID:     c.newID(),
		Symbol:      symbol,
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/orders/cancel", nil, body); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{"orderId": orderID, "symbol": symbol}).Info("cancel order sent")
	return nil
}

// CheckLocate asks the bridge whether quantity shares of symbol can be borrowed.
func (c *BridgeClient) CheckLocate(ctx context.Context, symbol string, quantity int64) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/locates", map[string]string{
		"symbol": symbol,
		"qty":    fmt.Sprintf("%d", quantity),
	}, nil)
	if err != nil {
		var bridgeErr *BridgeError
		if errors.As(err, &bridgeErr) && bridgeErr.Code == CodeLocateUnavailable {
			return false, nil
		}
		return false, err
	}

	var parsed LocateResult
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return false, fmt.Errorf("decode locate: %w", err)
	}
	return parsed.Available && parsed.Shares >= quantity, nil
}

// -----------------------------
// SESSION
// -----------------------------
func (c *BridgeClient) Session(ctx context.Context) (SessionStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/session", nil, nil)
	if err != nil {
		return SessionStatus{}, err
	}

	var parsed SessionStatus
	return parsed, json.Unmarshal(resp.Data, &parsed)
}

// WaitForLogon polls the session until it reports logged on, ctx ends or the logon
// timeout passes.
func (c *BridgeClient) WaitForLogon(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.logonWait)
	defer cancel()

	poll := c.logonPoll
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		status, err := c.Session(ctx)
		switch {
		case err == nil && status.LoggedOn:
			c.logger.WithFields(logrus.Fields{
				"sender": status.SenderCompID,
				"target": status.TargetCompID,
			}).Info("fix connection established")
			return nil
		case err != nil:
			c.logger.WithError(err).Debug("session status unavailable")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s: %w", ErrLogonTimeout, c.logonWait, ctx.Err())
		case <-ticker.C:
		}
	}
}
