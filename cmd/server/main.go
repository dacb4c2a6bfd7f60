package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"market_backend/internal/app/config"
	"market_backend/internal/app/di"
	"market_backend/internal/app/router"
	candleshandler "market_backend/internal/feature/candles/transport/handler"
	candlesusecase "market_backend/internal/feature/candles/usecase"
	snapshothandler "market_backend/internal/feature/snapshot/transport/handler"
	"market_backend/internal/platform/http/handler"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to an optional config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	gdb, err := di.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb, err := di.NewRedis(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// イベント出力
	sink, closeSink := di.NewEventSink(cfg.Kafka, logger)
	defer func() {
		if err := closeSink(); err != nil {
			slog.Error("failed to close event sink", "error", err)
		}
	}()

	// Usecase
	market := di.NewMarket(cfg.TwelveData)
	if !market.Configured() {
		slog.Warn("TWELVE_DATA_API_KEY is not set. Snapshots will fall back to demo data.")
	}
	snapshotUC := di.NewSnapshotUsecase(cfg, market, sink)
	candlesUC := candlesusecase.NewCandlesUsecase(di.NewCandleStore(gdb, rdb, cfg.Redis))

	// Handler
	handlers := router.Handlers{
		Snapshot: snapshothandler.NewSnapshotHandler(snapshotUC),
		Candles:  candleshandler.NewCandlesHandler(candlesUC),
	}

	readiness := map[string]handler.CheckFunc{
		"db": func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// JWT_SECRETチェック（開発中の注意喚起）
	if cfg.JWT.Secret == "" {
		slog.Warn("JWT_SECRET is not set. Every /v1 request will fail with 500.")
	}

	// ルータ生成
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.NewRouter(handlers, cfg.JWT.Secret, readiness),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
