package handler

import (
	"net/http"

	"riskexecutor/src/model"
	"riskexecutor/src/risk"
)

type positionLister interface {
	Positions() []model.Position
}

type orderLister interface {
	Orders() []model.Order
	OpenOrders() []model.Order
}

type riskStater interface {
	State() risk.State
}

func HealthcheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	}
}

// PositionsHandler lists the open positions with their current thresholds.
func PositionsHandler(book positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions := book.Positions()
		if positions == nil {
			positions = []model.Position{}
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

// OrdersHandler lists the orders known to this run. ?status=open keeps only working orders.
func OrdersHandler(orders orderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out []model.Order
		switch r.URL.Query().Get("status") {
		case "":
			out = orders.Orders()
		case "open":
			out = orders.OpenOrders()
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		if out == nil {
			out = []model.Order{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func RiskStateHandler(book riskStater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, book.State())
	}
}
