package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/store/file"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fixbench/params"
	"fixbench/pkg/api"
	"fixbench/pkg/exchange/dispatch"
	"fixbench/pkg/exchange/gen"
	"fixbench/pkg/exchange/latency"
	"fixbench/pkg/exchange/router"
	"fixbench/pkg/exchange/tracker"
	"fixbench/pkg/exchange/venue"
	"fixbench/pkg/fix"
	"fixbench/pkg/storage"
	"fixbench/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile, "role", cfg.Fix.Role)

	// ---- FIX engine settings ----
	settingsFile, err := os.Open(cfg.Fix.SettingsPath)
	if err != nil {
		sugar.Fatalw("settings_open_failed", "path", cfg.Fix.SettingsPath, "err", err)
	}
	settings, err := quickfix.ParseSettings(settingsFile)
	settingsFile.Close()
	if err != nil {
		sugar.Fatalw("settings_parse_failed", "path", cfg.Fix.SettingsPath, "err", err)
	}

	// The session this process trades on; one per config file.
	var sessionID quickfix.SessionID
	for sid := range settings.SessionSettings() {
		sessionID = sid
		break
	}
	sugar.Infow("session_configured", "session", sessionID.String())

	// ---- Shared runtime ----
	clock := util.RealClock{}
	transport := fix.NewEngineTransport()
	routes := router.New(sugar)

	var journal *storage.Journal
	if cfg.Journal.Enabled {
		journal, err = storage.Open(cfg.Journal.Path)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Journal.Path, "err", err)
		}
		defer journal.Close()
		sugar.Infow("journal_opened", "path", cfg.Journal.Path, "events", journal.Len())
	}

	// ---- Role-specific components ----
	var (
		orders    *tracker.Tracker
		recorder  *latency.Recorder
		generator *gen.Generator
		sim       *venue.Simulator
	)

	switch cfg.Fix.Role {
	case "initiator":
		recorder = latency.NewRecorder(clock)
		orders = tracker.New(transport, recorder, clock, sugar)
		if cfg.Generator.Enabled {
			generator = gen.New(orders, generatorConfig(cfg.Generator, sugar), sugar)
		}
	case "acceptor":
		sim = venue.New(transport, clock,
			venue.UniformDelay(cfg.Venue.MinDelay, cfg.Venue.MaxDelay),
			cfg.Venue.ShutdownGrace, sugar)
	default:
		sugar.Fatalw("unknown_role", "role", cfg.Fix.Role)
	}

	dispatcher := dispatch.New(cfg.Dispatcher.Workers, cfg.Dispatcher.QueueCapacity,
		cfg.Dispatcher.ShutdownGrace, sugar)

	// ---- API server ----
	apiServer := api.NewServer(api.Deps{
		Orders:     orders,
		Recorder:   recorder,
		Generator:  generator,
		Dispatcher: dispatcher,
		Venue:      sim,
		Journal:    journal,
		SessionID:  sessionID,
	}, sugar)

	// ---- Message routing ----
	if cfg.Fix.Role == "initiator" {
		routes.Register(router.KindExecutionReport, &router.ExecReportHandler{
			Recorder: recorder,
			Orders:   orders,
			Journal:  journal,
			Sink:     apiServer.Hub(),
			Log:      sugar,
		})
		routes.Register(router.KindOrderCancelReject, &router.CancelRejectHandler{
			Recorder: recorder,
			Journal:  journal,
			Sink:     apiServer.Hub(),
			Log:      sugar,
		})
	} else {
		routes.Register(router.KindNewOrderSingle, &router.NewOrderHandler{
			Venue: sim, Journal: journal, Sink: apiServer.Hub(), Log: sugar,
		})
		routes.Register(router.KindOrderCancelRequest, &router.CancelRequestHandler{
			Venue: sim, Journal: journal, Sink: apiServer.Hub(), Log: sugar,
		})
		routes.Register(router.KindOrderCancelReplaceRequest, &router.ReplaceRequestHandler{
			Venue: sim, Journal: journal, Sink: apiServer.Hub(), Log: sugar,
		})
	}

	app := fix.NewApp(transport, dispatcher, routes, sugar)

	// ---- FIX engine ----
	storeFactory := file.NewStoreFactory(settings)
	logFactory, err := quickfix.NewFileLogFactory(settings)
	if err != nil {
		sugar.Fatalw("fix_log_factory_failed", "err", err)
	}

	var stopEngine func()
	if cfg.Fix.Role == "initiator" {
		initiator, err := quickfix.NewInitiator(app, storeFactory, settings, logFactory)
		if err != nil {
			sugar.Fatalw("initiator_create_failed", "err", err)
		}
		if err := initiator.Start(); err != nil {
			sugar.Fatalw("initiator_start_failed", "err", err)
		}
		stopEngine = initiator.Stop
	} else {
		acceptor, err := quickfix.NewAcceptor(app, storeFactory, settings, logFactory)
		if err != nil {
			sugar.Fatalw("acceptor_create_failed", "err", err)
		}
		if err := acceptor.Start(); err != nil {
			sugar.Fatalw("acceptor_start_failed", "err", err)
		}
		stopEngine = acceptor.Stop
	}
	sugar.Infow("engine_started", "role", cfg.Fix.Role)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// The generator waits for the session logon before sending.
	if generator != nil {
		go func() {
			for !transport.IsConnected(sessionID) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(500 * time.Millisecond):
				}
			}
			if err := generator.Start(sessionID); err != nil {
				sugar.Warnw("generator_start_failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	sugar.Infow("shutting_down")

	// Stop intake first, then drain the pipeline behind it.
	stopEngine()
	if generator != nil {
		generator.Stop()
	}
	dispatcher.Shutdown()
	if sim != nil {
		sim.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}

	if recorder != nil {
		if stats, ok := recorder.Statistics(); ok {
			sugar.Infow("latency_summary",
				"count", stats.Count,
				"pending", stats.Pending,
				"min", stats.Min.String(),
				"max", stats.Max.String(),
				"mean", stats.Mean.String(),
				"p50", stats.P50.String(),
				"p95", stats.P95.String(),
				"p99", stats.P99.String())
		}
	}
	sugar.Infow("node_stopped")
}

// generatorConfig converts the env-level generator settings into typed
// values, falling back to defaults on unparsable decimals.
func generatorConfig(g params.Generator, log *zap.SugaredLogger) gen.Config {
	quantity, err := decimal.NewFromString(g.Quantity)
	if err != nil {
		log.Warnw("invalid_gen_quantity", "value", g.Quantity)
		quantity = decimal.NewFromInt(100)
	}
	price, err := decimal.NewFromString(g.Price)
	if err != nil {
		log.Warnw("invalid_gen_price", "value", g.Price)
		price = decimal.NewFromInt(100)
	}

	side := enum.Side_BUY
	if g.Side == "SELL" {
		side = enum.Side_SELL
	}
	ordType := enum.OrdType_LIMIT
	if g.OrderType == "MARKET" {
		ordType = enum.OrdType_MARKET
	}

	return gen.Config{
		OrdersPerBatch: g.OrdersPerBatch,
		BatchInterval:  g.BatchInterval,
		Duration:       g.Duration,
		Symbol:         g.Symbol,
		Side:           side,
		OrdType:        ordType,
		Quantity:       quantity,
		Price:          price,
	}
}
