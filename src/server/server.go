package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"riskexecutor/src/auth"
	"riskexecutor/src/handler"
	"riskexecutor/src/model"
	"riskexecutor/src/risk"
)

type RiskBook interface {
	Positions() []model.Position
	State() risk.State
	ResetDay()
}

type OrderDesk interface {
	Orders() []model.Order
	OpenOrders() []model.Order
	Order(orderID string) (model.Order, bool)
	Cancel(ctx context.Context, orderID, symbol string) error
	ApplyExecutionReport(ctx context.Context, report model.ExecutionReport) error
}

type OrderEvents interface {
	FindByOrderID(ctx context.Context, orderID string) ([]model.OrderExecutionLog, error)
}

type Exceptions interface {
	FindLatest(ctx context.Context, limit int) ([]model.Exception, error)
}

// Services backs the routes. Events and Exceptions are nil when no database is configured,
// and their routes are not mounted.
type Services struct {
	Book              RiskBook
	Orders            OrderDesk
	Events            OrderEvents
	Exceptions        Exceptions
	OperatorTokenHash string
}

func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", handler.HealthcheckHandler())
	r.Get("/positions", handler.PositionsHandler(s.Book))
	r.Get("/risk", handler.RiskStateHandler(s.Book))
	r.Get("/orders", handler.OrdersHandler(s.Orders))
	if s.Events != nil {
		r.Get("/orders/{id}/events", handler.OrderEventsHandler(s.Events))
	}
	if s.Exceptions != nil {
		r.Get("/exceptions", handler.ExceptionsHandler(s.Exceptions))
	}

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator(s.OperatorTokenHash))
		r.Post("/risk/reset", handler.ResetRiskHandler(s.Book))
		r.Post("/orders/{id}/cancel", handler.CancelOrderHandler(s.Orders))
		r.Post("/execution-reports", handler.ExecutionReportHandler(s.Orders))
	})

	return r
}

// Serve listens on cfg.Port until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, cfg *Config, h http.Handler) error {
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return err
	}
	return serve(ctx, ln, cfg.ShutdownTimeout, h)
}

func serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return <-errCh
}
