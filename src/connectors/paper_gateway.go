package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/model"
)

// PaperGateway accepts every order in process. Used when PAPER_TRADING is set.
type PaperGateway struct {
	logger *logrus.Entry

	mu     sync.Mutex
	orders map[string]model.OrderRequest
}

func NewPaperGateway(logger *logrus.Entry) *PaperGateway {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PaperGateway{
		logger: logger.WithField("component", "PaperGateway"),
		orders: make(map[string]model.OrderRequest),
	}
}

func (g *PaperGateway) Submit(_ context.Context, req model.OrderRequest) (string, error) {
	id := "paper-" + uuid.NewString()

	g.mu.Lock()
	g.orders[id] = req
	g.mu.Unlock()

	g.logger.WithFields(logrus.Fields{
		"order_id": id,
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.Type,
		"quantity": req.Quantity,
	}).Info("paper order accepted")
	return id, nil
}

func (g *PaperGateway) Cancel(_ context.Context, orderID, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.orders[orderID]
	if !ok || req.Symbol != symbol {
		return &BridgeError{Code: 5, Msg: fmt.Sprintf("order %s for %s", orderID, symbol)}
	}
	delete(g.orders, orderID)
	return nil
}

func (g *PaperGateway) CheckLocate(context.Context, string, int64) (bool, error) {
	return true, nil
}

func (g *PaperGateway) WaitForLogon(context.Context) error {
	return nil
}

// Pending returns the number of paper orders not yet cancelled.
func (g *PaperGateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}
