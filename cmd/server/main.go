package main

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"wager-exchange/internal/anchorbet"
	"wager-exchange/internal/api"
	"wager-exchange/internal/bookreg"
	"wager-exchange/internal/config"
	"wager-exchange/internal/engine"
	"wager-exchange/internal/events"
	"wager-exchange/internal/logging"
	"wager-exchange/internal/money"
	"wager-exchange/internal/settlement"
	"wager-exchange/internal/store"
	"wager-exchange/internal/validate"
	"wager-exchange/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		panic("build logger: " + err.Error())
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	logger.Info("connected to database")

	if err := st.Migrate(cfg.MigrateDir); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("migrations applied")

	hub := ws.NewHub()
	logSink := events.NewEventLogSink(st.DB)
	sink := events.MultiSink{Sinks: []events.Sink{logSink, hub}}

	registry := bookreg.New(st)

	limits := validate.Limits{
		PriceTick:              money.FromFloat(cfg.Limits.PriceTick),
		QuantityTick:           money.FromFloat(cfg.Limits.QuantityTick),
		MaxPerOrderQuantity:    money.FromFloat(cfg.Limits.MaxPerOrderQuantity),
		MaxOpenOrdersPerMarket: cfg.Limits.MaxOpenOrdersPerMarket,
		MaxOpenOrdersPerUser:   cfg.Limits.MaxOpenOrdersPerUser,
		MaxSharesPerUserMarket: money.FromFloat(cfg.Limits.MaxSharesPerUserMarket),
	}
	checker := validate.NewChecker(limits)

	mgr := engine.NewManager(st, registry, sink, checker, engine.Config{
		StoreRetryLimit:   cfg.Engine.StoreRetryLimit,
		CommandQueueDepth: cfg.Engine.CommandQueueDepth,
	}, engine.NoFee{})

	ctx := context.Background()
	if err := mgr.Boot(ctx); err != nil {
		logger.Fatal("engine boot", zap.Error(err))
	}

	house := settlement.NewHouse(st, sink, mgr, cfg.Engine.StoreRetryLimit)
	anchorbets := anchorbet.NewStore(st.DB)

	srv := api.NewServer(st, mgr, house, anchorbets, hub, cfg.JWTSecret, money.FromFloat(cfg.Limits.InitialBalance), logger)
	router := srv.Router()

	addr := ":" + strconv.Itoa(cfg.Port)
	logger.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
