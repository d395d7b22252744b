package connectors

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"riskexecutor/src/model"
)

func TestPaperGateway(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	g := NewPaperGateway(logrus.NewEntry(logger))
	ctx := context.Background()

	id, err := g.Submit(ctx, model.OrderRequest{Symbol: "AAPL", Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Quantity: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(id, "paper-") {
		t.Fatalf("unexpected id %s", id)
	}
	if g.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", g.Pending())
	}
	if hook.LastEntry() == nil || hook.LastEntry().Message != "paper order accepted" {
		t.Fatalf("expected acceptance log")
	}

	if err := g.Cancel(ctx, id, "MSFT"); err == nil {
		t.Fatalf("expected symbol mismatch error")
	}
	if err := g.Cancel(ctx, id, "AAPL"); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if err := g.Cancel(ctx, id, "AAPL"); err == nil {
		t.Fatalf("expected unknown order error on second cancel")
	}

	ok, err := g.CheckLocate(ctx, "AAPL", 1_000_000)
	if err != nil || !ok {
		t.Fatalf("expected locate approval")
	}
	if err := g.WaitForLogon(ctx); err != nil {
		t.Fatalf("unexpected logon error: %v", err)
	}
}
