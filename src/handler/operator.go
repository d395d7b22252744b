package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"riskexecutor/src/auth"
	"riskexecutor/src/execution"
	"riskexecutor/src/model"
	"riskexecutor/src/risk"
)

type dayResetter interface {
	ResetDay()
	State() risk.State
}

type orderCanceller interface {
	Order(orderID string) (model.Order, bool)
	Cancel(ctx context.Context, orderID, symbol string) error
}

type reportApplier interface {
	ApplyExecutionReport(ctx context.Context, report model.ExecutionReport) error
	Order(orderID string) (model.Order, bool)
}

func operatorFields(r *http.Request) map[string]interface{} {
	fields := map[string]interface{}{"path": r.URL.Path}
	if op, ok := auth.GetOperatorFromContext(r.Context()); ok {
		fields["operator"] = op.RemoteAddr
	}
	return fields
}

// ResetRiskHandler clears the daily P&L and the loss breaker, then returns the new state.
func ResetRiskHandler(book dayResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		book.ResetDay()
		logger.WithFields(operatorFields(r)).Warn("daily risk state reset by operator")
		writeJSON(w, http.StatusOK, book.State())
	}
}

// CancelOrderHandler cancels a working order by id.
func CancelOrderHandler(orders orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		order, ok := orders.Order(orderID)
		if !ok {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		if order.Status.Terminal() {
			http.Error(w, "Order is no longer working", http.StatusConflict)
			return
		}

		if err := orders.Cancel(r.Context(), orderID, order.Symbol); err != nil {
			logger.WithFields(operatorFields(r)).WithError(err).Error("operator cancel failed")
			http.Error(w, "Cancel failed", http.StatusBadGateway)
			return
		}

		order, _ = orders.Order(orderID)
		writeJSON(w, http.StatusOK, order)
	}
}

// ExecutionReportHandler accepts fill and cancel reports relayed by the order bridge.
func ExecutionReportHandler(orders reportApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report model.ExecutionReport
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&report); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		err := orders.ApplyExecutionReport(r.Context(), report)
		switch {
		case errors.Is(err, execution.ErrUnknownOrder):
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		case errors.Is(err, execution.ErrInvalidOrder):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			logger.WithFields(operatorFields(r)).WithError(err).Error("execution report failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		order, _ := orders.Order(report.OrderID)
		writeJSON(w, http.StatusOK, order)
	}
}
