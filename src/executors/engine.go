package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"riskexecutor/src/execution"
	"riskexecutor/src/model"
	"riskexecutor/src/risk"
	"riskexecutor/src/scanner"
)

var (
	ErrStartup    = errors.New("engine startup failed")
	ErrCyclePanic = errors.New("cycle panicked")
)

const (
	cycleScan    = "scan_cycle"
	cycleMonitor = "risk_monitor_cycle"
	cycleShort   = "short_scan_cycle"
)

type SnapshotReader interface {
	Get(symbol string) (model.MarketSnapshot, bool)
}

type SignalScanner interface {
	Scan() []model.ScanSignal
}

type ShortScanner interface {
	Scan() []model.ShortOpportunity
}

// PositionBook is the read side of the risk manager plus the new-day reset.
type PositionBook interface {
	Positions() []model.Position
	ResetDay()
}

// Trader is the execution coordinator as seen by the cycles. Position checks happen
// inside the coordinator under its per-symbol lock.
type Trader interface {
	OpenIfFlat(ctx context.Context, symbol string, side model.PositionSide, quantity int64, price decimal.Decimal) (execution.Execution, error)
	CloseIfSide(ctx context.Context, symbol string, side model.PositionSide, reason string) (*execution.Execution, error)
	MonitorPosition(ctx context.Context, symbol string, price decimal.Decimal) (*execution.Execution, error)
	ExecuteShort(ctx context.Context, opp model.ShortOpportunity, quantity int64) (execution.Execution, error)
}

// SessionGate blocks until the order collaborator is ready to accept orders.
type SessionGate interface {
	WaitForLogon(ctx context.Context) error
}

// Feed keeps the market data cache current.
type Feed interface {
	Connect(ctx context.Context) error
	Run(ctx context.Context)
}

// Settings carries the per-component options the cycles read.
type Settings struct {
	Scanner   scanner.Config
	Short     scanner.ShortConfig
	Risk      risk.Config
	Execution execution.Config
}

// Deps are the collaborators wired into the engine. Gateway, Feed and Exceptions are optional.
type Deps struct {
	Cache      SnapshotReader
	Breakout   SignalScanner
	Shorts     ShortScanner
	Book       PositionBook
	Trader     Trader
	Gateway    SessionGate
	Feed       Feed
	Exceptions ExceptionStore
}

type cycle struct {
	name     string
	interval time.Duration
	body     func(ctx context.Context) error
}

// Engine runs the scan, risk-monitor and short-scan cycles until its context ends.
type Engine struct {
	cfg      Config
	settings Settings
	deps     Deps
	logger   *logrus.Entry
}

func NewEngine(cfg Config, settings Settings, deps Deps, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "risk_executor"
	}

	return &Engine{
		cfg:      cfg,
		settings: settings,
		deps:     deps,
		logger:   logger.WithField("component", "Engine"),
	}
}

// Run waits for the collaborators, starts the cycles and the daily reset schedule,
// and blocks until ctx is done. Only startup failures are returned.
func (e *Engine) Run(ctx context.Context) error {
	scheduler, err := e.newScheduler()
	if err != nil {
		return err
	}

	if err := e.startup(ctx); err != nil {
		Capture(ctx, e.deps.Exceptions, e.cfg.ServiceName, "engine", "startup", LevelFatal, err, nil)
		return err
	}

	if scheduler != nil {
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	var wg sync.WaitGroup
	if e.deps.Feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.deps.Feed.Run(ctx)
		}()
	}

	cycles := e.cycles()
	for _, c := range cycles {
		wg.Add(1)
		go func(c cycle) {
			defer wg.Done()
			e.runCycle(ctx, c)
		}(c)
	}

	e.logger.WithField("cycles", len(cycles)).Info("engine started")
	wg.Wait()
	e.logger.Info("engine stopped")
	return nil
}

func (e *Engine) startup(ctx context.Context) error {
	if e.cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StartupTimeout)
		defer cancel()
	}

	if e.deps.Gateway != nil {
		e.logger.Info("waiting for order gateway logon")
		if err := e.deps.Gateway.WaitForLogon(ctx); err != nil {
			return fmt.Errorf("%w: order gateway: %w", ErrStartup, err)
		}
	}

	if e.deps.Feed != nil {
		if err := e.deps.Feed.Connect(ctx); err != nil {
			return fmt.Errorf("%w: market feed: %w", ErrStartup, err)
		}
	} else {
		e.logger.Warn("no market feed configured, cache will only change through direct updates")
	}

	return nil
}

func (e *Engine) cycles() []cycle {
	var out []cycle
	if e.settings.Scanner.Enabled && e.deps.Breakout != nil {
		out = append(out, cycle{cycleScan, orDefault(e.settings.Scanner.ScanInterval, time.Second), e.scanOnce})
	}
	if e.settings.Risk.Enabled {
		out = append(out, cycle{cycleMonitor, orDefault(e.settings.Risk.MonitorInterval, time.Second), e.monitorOnce})
	}
	if e.settings.Short.Enabled && e.deps.Shorts != nil {
		out = append(out, cycle{cycleShort, orDefault(e.settings.Short.ScanInterval, 5*time.Second), e.shortOnce})
	}
	return out
}

// runCycle repeats body every interval. A failed or panicking pass is captured and
// retried after the backoff instead of stopping the engine.
func (e *Engine) runCycle(ctx context.Context, c cycle) {
	log := e.logger.WithField("cycle", c.name)
	log.WithField("interval", c.interval.String()).Info("cycle started")

	for {
		if ctx.Err() != nil {
			log.Info("cycle stopped")
			return
		}

		wait := c.interval
		if err := safeRun(ctx, c.body); err != nil && ctx.Err() == nil {
			Capture(ctx, e.deps.Exceptions, e.cfg.ServiceName, c.name, "run", LevelError, err, map[string]interface{}{
				"retry_in": e.cfg.RetryBackoff.String(),
			})
			wait = e.cfg.RetryBackoff
		}

		if !sleep(ctx, wait) {
			log.Info("cycle stopped")
			return
		}
	}
}

func safeRun(ctx context.Context, body func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()
	return body(ctx)
}

// scanOnce runs one breakout pass and hands every signal to the coordinator
// before returning. Per-symbol failures do not stop the remaining signals.
func (e *Engine) scanOnce(ctx context.Context) error {
	var errs []error
	for _, signal := range e.deps.Breakout.Scan() {
		if ctx.Err() != nil {
			break
		}
		if err := e.handleSignal(ctx, signal); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) handleSignal(ctx context.Context, signal model.ScanSignal) error {
	log := e.logger.WithFields(logrus.Fields{
		"symbol": signal.Symbol,
		"kind":   signal.Kind,
		"reason": signal.Reason,
	})

	if !e.settings.Execution.Enabled {
		log.Info("signal ignored, execution disabled")
		return nil
	}

	switch signal.Kind {
	case model.SignalBreakoutUp, model.SignalVolumeSpike:
		exec, err := e.deps.Trader.OpenIfFlat(ctx, signal.Symbol, model.PositionSideLong, e.settings.Execution.EntryQuantity, signal.Price)
		if err != nil {
			return fmt.Errorf("open long %s: %w", signal.Symbol, err)
		}
		if !exec.Decision.Allowed {
			if exec.Position != nil {
				log.WithField("side", exec.Position.Side).Debug("position already open, entry skipped")
				return nil
			}
			log.WithField("rejection", exec.Decision.Reason).Info("long entry rejected")
			return nil
		}
		if exec.Order != nil {
			log = log.WithField("order_id", exec.Order.ID)
		}
		log.Info("long entry placed")

	case model.SignalBreakoutDown:
		exec, err := e.deps.Trader.CloseIfSide(ctx, signal.Symbol, model.PositionSideLong, execution.ReasonSignal)
		if err != nil {
			return fmt.Errorf("close long %s: %w", signal.Symbol, err)
		}
		if exec != nil {
			log.Info("long closed on breakdown")
		}

	default:
		log.Warn("unknown signal kind")
	}

	return nil
}

// monitorOnce marks every open position to the cached last price and lets the
// coordinator close the ones past their stop or target.
func (e *Engine) monitorOnce(ctx context.Context) error {
	var errs []error
	for _, position := range e.deps.Book.Positions() {
		if ctx.Err() != nil {
			break
		}

		snapshot, ok := e.deps.Cache.Get(position.Symbol)
		if !ok || !snapshot.Last.IsPositive() {
			continue
		}

		exec, err := e.deps.Trader.MonitorPosition(ctx, position.Symbol, snapshot.Last)
		if err != nil {
			errs = append(errs, fmt.Errorf("monitor %s: %w", position.Symbol, err))
			continue
		}
		if exec != nil {
			e.logger.WithFields(logrus.Fields{
				"symbol": position.Symbol,
				"reason": exec.Reason,
				"price":  snapshot.Last.String(),
			}).Info("position closed by risk monitor")
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) shortOnce(ctx context.Context) error {
	var errs []error
	for _, opp := range e.deps.Shorts.Scan() {
		if ctx.Err() != nil {
			break
		}

		log := e.logger.WithFields(logrus.Fields{"symbol": opp.Symbol, "reason": opp.Reason})
		if !e.settings.Execution.Enabled {
			log.Info("short opportunity ignored, execution disabled")
			continue
		}

		exec, err := e.deps.Trader.ExecuteShort(ctx, opp, e.settings.Execution.ShortQuantity)
		if err != nil {
			errs = append(errs, fmt.Errorf("short %s: %w", opp.Symbol, err))
			continue
		}
		if !exec.Decision.Allowed {
			if exec.Position != nil {
				log.WithField("side", exec.Position.Side).Debug("opposite position open, short skipped")
				continue
			}
			log.WithField("rejection", exec.Decision.Reason).Info("short rejected")
		}
	}
	return errors.Join(errs...)
}

// newScheduler builds the cron that resets the daily P&L and the loss breaker.
// An empty schedule disables the reset.
func (e *Engine) newScheduler() (*cron.Cron, error) {
	spec := e.settings.Risk.DailyResetCron
	if spec == "" {
		return nil, nil
	}

	log := e.logger.WithField("job", "daily_reset")
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.PrintfLogger(log))),
	)
	if _, err := c.AddFunc(spec, e.resetDay); err != nil {
		return nil, fmt.Errorf("register daily reset %q: %w", spec, err)
	}
	return c, nil
}

func (e *Engine) resetDay() {
	e.deps.Book.ResetDay()
	e.logger.Info("daily risk state reset")
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
