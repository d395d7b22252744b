package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"riskexecutor/src/model"
)

type orderEventFinder interface {
	FindByOrderID(ctx context.Context, orderID string) ([]model.OrderExecutionLog, error)
}

type exceptionFinder interface {
	FindLatest(ctx context.Context, limit int) ([]model.Exception, error)
}

// OrderEventsHandler returns the audit trail of one order, oldest first.
func OrderEventsHandler(repo orderEventFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		events, err := repo.FindByOrderID(r.Context(), orderID)
		if err != nil {
			logger.WithError(err).WithField("order_id", orderID).Error("failed to load order events")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if len(events) == 0 {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// ExceptionsHandler lists the latest captured cycle failures.
func ExceptionsHandler(repo exceptionFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(r)
		if !ok {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		rows, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to load exceptions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []model.Exception{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
