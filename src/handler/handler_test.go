package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskexecutor/src/execution"
	"riskexecutor/src/model"
	"riskexecutor/src/risk"
)

type mockBook struct {
	positions []model.Position
	state     risk.State
	resets    int
}

func (m *mockBook) Positions() []model.Position { return m.positions }
func (m *mockBook) State() risk.State           { return m.state }
func (m *mockBook) ResetDay() {
	m.resets++
	m.state.DailyPnL = decimal.Zero
	m.state.DailyLimitReached = false
}

type mockOrders struct {
	orders    map[string]model.Order
	cancelErr error
	cancelled []string
	reports   []model.ExecutionReport
	reportErr error
}

func (m *mockOrders) Orders() []model.Order {
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}

func (m *mockOrders) OpenOrders() []model.Order {
	var out []model.Order
	for _, o := range m.orders {
		if o.Status.Working() {
			out = append(out, o)
		}
	}
	return out
}

func (m *mockOrders) Order(id string) (model.Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

func (m *mockOrders) Cancel(_ context.Context, id, symbol string) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, symbol+"/"+id)
	o := m.orders[id]
	o.Status = model.OrderStatusCancelled
	m.orders[id] = o
	return nil
}

func (m *mockOrders) ApplyExecutionReport(_ context.Context, report model.ExecutionReport) error {
	if m.reportErr != nil {
		return m.reportErr
	}
	if _, ok := m.orders[report.OrderID]; !ok {
		return fmt.Errorf("%w: %s", execution.ErrUnknownOrder, report.OrderID)
	}
	m.reports = append(m.reports, report)
	return nil
}

type mockEvents struct {
	events []model.OrderExecutionLog
	err    error
	asked  string
}

func (m *mockEvents) FindByOrderID(_ context.Context, id string) ([]model.OrderExecutionLog, error) {
	m.asked = id
	return m.events, m.err
}

type mockExceptions struct {
	rows  []model.Exception
	err   error
	limit int
}

func (m *mockExceptions) FindLatest(_ context.Context, limit int) ([]model.Exception, error) {
	m.limit = limit
	return m.rows, m.err
}

func serve(t *testing.T, method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealthcheckHandler(t *testing.T) {
	rr := serve(t, http.MethodGet, "/healthcheck", "/healthcheck", "", HealthcheckHandler())
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestPositionsHandler(t *testing.T) {
	book := &mockBook{positions: []model.Position{
		{Symbol: "AAPL", Side: model.PositionSideLong, Quantity: 100, EntryPrice: decimal.RequireFromString("103")},
	}}
	rr := serve(t, http.MethodGet, "/positions", "/positions", "", PositionsHandler(book))
	require.Equal(t, http.StatusOK, rr.Code)

	var got []model.Position
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, got[0].EntryPrice.Equal(decimal.RequireFromString("103")))
}

func TestPositionsHandlerEmptyIsArray(t *testing.T) {
	rr := serve(t, http.MethodGet, "/positions", "/positions", "", PositionsHandler(&mockBook{}))
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestOrdersHandlerStatusFilter(t *testing.T) {
	orders := &mockOrders{orders: map[string]model.Order{
		"a": {ID: "a", Symbol: "AAPL", Status: model.OrderStatusSubmitted},
		"b": {ID: "b", Symbol: "MSFT", Status: model.OrderStatusFilled},
	}}

	rr := serve(t, http.MethodGet, "/orders", "/orders?status=open", "", OrdersHandler(orders))
	require.Equal(t, http.StatusOK, rr.Code)
	var got []model.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	rr = serve(t, http.MethodGet, "/orders", "/orders", "", OrdersHandler(orders))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rr = serve(t, http.MethodGet, "/orders", "/orders?status=weird", "", OrdersHandler(orders))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRiskStateAndReset(t *testing.T) {
	book := &mockBook{state: risk.State{DailyPnL: decimal.NewFromInt(-6000), DailyLimitReached: true}}

	rr := serve(t, http.MethodGet, "/risk", "/risk", "", RiskStateHandler(book))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"daily_loss_limit_reached":true`)

	rr = serve(t, http.MethodPost, "/risk/reset", "/risk/reset", "", ResetRiskHandler(book))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, book.resets)
	assert.Contains(t, rr.Body.String(), `"daily_loss_limit_reached":false`)
}

func TestCancelOrderHandler(t *testing.T) {
	orders := &mockOrders{orders: map[string]model.Order{
		"ord-1": {ID: "ord-1", Symbol: "AAPL", Status: model.OrderStatusSubmitted},
		"ord-2": {ID: "ord-2", Symbol: "AAPL", Status: model.OrderStatusFilled},
	}}
	h := CancelOrderHandler(orders)

	rr := serve(t, http.MethodPost, "/orders/{id}/cancel", "/orders/ord-1/cancel", "", h)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"AAPL/ord-1"}, orders.cancelled)
	assert.Contains(t, rr.Body.String(), string(model.OrderStatusCancelled))

	rr = serve(t, http.MethodPost, "/orders/{id}/cancel", "/orders/ord-2/cancel", "", h)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = serve(t, http.MethodPost, "/orders/{id}/cancel", "/orders/missing/cancel", "", h)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelOrderHandlerGatewayFailure(t *testing.T) {
	orders := &mockOrders{
		orders:    map[string]model.Order{"ord-1": {ID: "ord-1", Symbol: "AAPL", Status: model.OrderStatusSubmitted}},
		cancelErr: execution.ErrCancelFailed,
	}
	rr := serve(t, http.MethodPost, "/orders/{id}/cancel", "/orders/ord-1/cancel", "", CancelOrderHandler(orders))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestExecutionReportHandler(t *testing.T) {
	orders := &mockOrders{orders: map[string]model.Order{
		"ord-1": {ID: "ord-1", Symbol: "AAPL", Status: model.OrderStatusSubmitted},
	}}
	h := ExecutionReportHandler(orders)

	body := `{"order_id":"ord-1","status":"FILLED","filled_quantity":100,"avg_fill_price":"103.5"}`
	rr := serve(t, http.MethodPost, "/execution-reports", "/execution-reports", body, h)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, orders.reports, 1)
	assert.Equal(t, int64(100), orders.reports[0].FilledQuantity)
	assert.True(t, orders.reports[0].AvgFillPrice.Equal(decimal.RequireFromString("103.5")))

	rr = serve(t, http.MethodPost, "/execution-reports", "/execution-reports", `{"order_id":"nope","status":"FILLED"}`, h)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, http.MethodPost, "/execution-reports", "/execution-reports", `{"unknown":1}`, h)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	orders.reportErr = fmt.Errorf("%w: unsupported report status", execution.ErrInvalidOrder)
	rr = serve(t, http.MethodPost, "/execution-reports", "/execution-reports", `{"order_id":"ord-1","status":"PENDING"}`, h)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderEventsHandler(t *testing.T) {
	repo := &mockEvents{events: []model.OrderExecutionLog{{OrderID: "ord-1", Event: model.OrderEventSubmitted}}}
	rr := serve(t, http.MethodGet, "/orders/{id}/events", "/orders/ord-1/events", "", OrderEventsHandler(repo))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ord-1", repo.asked)

	repo.events = nil
	rr = serve(t, http.MethodGet, "/orders/{id}/events", "/orders/ord-9/events", "", OrderEventsHandler(repo))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	repo.err = assert.AnError
	rr = serve(t, http.MethodGet, "/orders/{id}/events", "/orders/ord-9/events", "", OrderEventsHandler(repo))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestExceptionsHandlerLimit(t *testing.T) {
	repo := &mockExceptions{}

	rr := serve(t, http.MethodGet, "/exceptions", "/exceptions", "", ExceptionsHandler(repo))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultLimit, repo.limit)
	assert.JSONEq(t, `[]`, rr.Body.String())

	serve(t, http.MethodGet, "/exceptions", "/exceptions?limit=100000", "", ExceptionsHandler(repo))
	assert.Equal(t, maxLimit, repo.limit)

	rr = serve(t, http.MethodGet, "/exceptions", "/exceptions?limit=-1", "", ExceptionsHandler(repo))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	repo.err = assert.AnError
	rr = serve(t, http.MethodGet, "/exceptions", "/exceptions", "", ExceptionsHandler(repo))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
