package executor

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"riskexecutor/src/connectors"
	"riskexecutor/src/database"
	"riskexecutor/src/execution"
	"riskexecutor/src/executors"
	"riskexecutor/src/marketdata"
	"riskexecutor/src/repository"
	"riskexecutor/src/risk"
	"riskexecutor/src/scanner"
	"riskexecutor/src/security"
	"riskexecutor/src/server"
)

type Executor struct {
	Log    *logrus.Entry
	Config *Config
}

// Settings is every component's environment configuration, loaded once at startup.
type Settings struct {
	Engine     executors.Config
	Scanner    scanner.Config
	Short      scanner.ShortConfig
	Risk       risk.Config
	Execution  execution.Config
	Connectors connectors.Config
	Database   database.Config
	Security   security.Config
	Server     *server.Config
}

func LoadSettings() Settings {
	return Settings{
		Engine:     executors.GetConfig(),
		Scanner:    scanner.GetConfig(),
		Short:      scanner.GetShortConfig(),
		Risk:       risk.GetConfig(),
		Execution:  execution.GetConfig(),
		Connectors: connectors.GetConfig(),
		Database:   database.GetConfig(),
		Security:   security.GetConfig(),
		Server:     server.GetConfig(),
	}
}

// App is the wired process: the engine, the operator API and the optional audit database.
type App struct {
	Cache       *marketdata.Cache
	Book        *risk.Manager
	Coordinator *execution.Coordinator
	Engine      *executors.Engine
	Router      http.Handler
	DB          *gorm.DB
}

func (t *Executor) Start() error {
	if t.Log == nil {
		t.Log = logrus.WithField("cmd", "engine")
	}
	t.Config = GetConfig()
	settings := LoadSettings()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	app, err := Wire(settings, t.Log)
	if err != nil {
		t.Log.WithError(err).Error("Failed to wire engine")
		return err
	}
	defer func() {
		if err := database.Close(app.DB); err != nil {
			t.Log.WithError(err).Warn("Failed to close database")
		}
	}()

	t.Log.WithFields(logrus.Fields{
		"app":     t.Config.AppName,
		"paper":   settings.Connectors.PaperTrading,
		"symbols": settings.Connectors.Symbols,
		"db":      app.DB != nil,
	}).Info("Starting risk executor")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Engine.Run(gctx)
	})
	if settings.Server.Enabled {
		g.Go(func() error {
			return server.Serve(gctx, settings.Server, app.Router)
		})
	}

	if err := g.Wait(); err != nil {
		t.Log.WithError(err).Error("Risk executor stopped with error")
		return err
	}
	t.Log.Info("Risk executor stopped")
	return nil
}

// Wire builds every component from settings. The database is opened only when enabled.
func Wire(settings Settings, log *logrus.Entry) (*App, error) {
	var (
		db         *gorm.DB
		recorder   execution.OrderRecorder
		exceptions executors.ExceptionStore
		events     server.OrderEvents
		latest     server.Exceptions
	)
	if settings.Database.EnableDB {
		var err error
		db, err = database.InitMainDB(settings.Database)
		if err != nil {
			return nil, err
		}
		orderRepo := repository.NewOrderExecutionRepository(db)
		exceptionRepo := repository.NewExceptionRepository(db)
		recorder, events = orderRepo, orderRepo
		exceptions, latest = exceptionRepo, exceptionRepo
	}

	var (
		gateway execution.OrderGateway
		locate  execution.LocateChecker
		session executors.SessionGate
	)
	if settings.Connectors.PaperTrading {
		paper := connectors.NewPaperGateway(log)
		gateway, locate, session = paper, paper, paper
	} else {
		bridge := connectors.NewBridgeClient(settings.Connectors, log)
		gateway, locate, session = bridge, bridge, bridge
	}

	cache := marketdata.NewCache()
	book := risk.NewManager(settings.Risk, log)
	coordinator := execution.NewCoordinator(settings.Execution, gateway, book, locate, recorder, log)

	breakout := scanner.NewBreakoutScanner(settings.Scanner, cache, log)
	shorts := scanner.NewShortScanner(settings.Short, cache, book, log)

	deps := executors.Deps{
		Cache:      cache,
		Breakout:   breakout,
		Shorts:     shorts,
		Book:       book,
		Trader:     coordinator,
		Gateway:    session,
		Exceptions: exceptions,
	}
	if settings.Connectors.FeedURL != "" {
		deps.Feed = connectors.NewMarketFeed(settings.Connectors, cache, log)
	}

	engine := executors.NewEngine(settings.Engine, executors.Settings{
		Scanner:   settings.Scanner,
		Short:     settings.Short,
		Risk:      settings.Risk,
		Execution: settings.Execution,
	}, deps, log)

	router := server.NewRouter(server.Services{
		Book:              book,
		Orders:            coordinator,
		Events:            events,
		Exceptions:        latest,
		OperatorTokenHash: settings.Security.OperatorTokenHash,
	})

	return &App{
		Cache:       cache,
		Book:        book,
		Coordinator: coordinator,
		Engine:      engine,
		Router:      router,
		DB:          db,
	}, nil
}
