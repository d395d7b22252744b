package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskexecutor/src/connectors"
	"riskexecutor/src/execution"
	"riskexecutor/src/model"
	"riskexecutor/src/risk"
	"riskexecutor/src/security"
)

type noEvents struct{}

func (noEvents) FindByOrderID(context.Context, string) ([]model.OrderExecutionLog, error) {
	return []model.OrderExecutionLog{{OrderID: "x", Event: model.OrderEventSubmitted}}, nil
}

func newServices(t *testing.T, withAudit bool) Services {
	t.Helper()
	book := risk.NewManager(risk.Config{MaxPositionSizeUSD: 50000, MaxDailyLossUSD: 5000, MaxOpenPositions: 10}, nil)
	paper := connectors.NewPaperGateway(nil)
	coordinator := execution.NewCoordinator(execution.Config{MaxOrderSize: 1000}, paper, book, paper, nil, nil)

	hash, err := security.HashToken("operator-secret")
	require.NoError(t, err)

	s := Services{Book: book, Orders: coordinator, OperatorTokenHash: hash}
	if withAudit {
		s.Events = noEvents{}
	}
	return s
}

func do(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterPublicRoutes(t *testing.T) {
	h := NewRouter(newServices(t, false))

	for _, path := range []string{"/healthcheck", "/positions", "/risk", "/orders"} {
		rr := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/orders/abc/events", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/exceptions", "").Code)
}

func TestRouterMountsAuditRoutesWithDatabase(t *testing.T) {
	h := NewRouter(newServices(t, true))
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/orders/x/events", "").Code)
}

func TestRouterOperatorRoutesNeedToken(t *testing.T) {
	s := newServices(t, false)
	h := NewRouter(s)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/risk/reset", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/risk/reset", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/risk/reset", "operator-secret").Code)

	order, err := s.Orders.(*execution.Coordinator).PlaceLimitOrder(context.Background(), "AAPL", model.OrderSideBuy, 10, decimal.NewFromInt(100), model.TimeInForceDay)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/orders/"+order.ID+"/cancel", "").Code)
	rr := do(h, http.MethodPost, "/orders/"+order.ID+"/cancel", "operator-secret")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(model.OrderStatusCancelled))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := NewRouter(newServices(t, false))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, ln, time.Second, router) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthcheck")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
