package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"market_backend/internal/app/config"
	"market_backend/internal/app/di"
	candlesusecase "market_backend/internal/feature/candles/usecase"
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
	ctx, cancel := context.WithTimeout(ctx, cfg.Ingest.Timeout)

	// os.Exit は defer を実行しないため、終了前に明示的に解放する
	code := run(ctx, cfg, logger)
	cancel()
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	gdb, err := di.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}

	rdb, err := di.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// キャッシュ無効化ができないだけなので続行する
		slog.Warn("Redis unavailable. Cache entries will expire on their own.", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	sink, closeSink := di.NewEventSink(cfg.Kafka, logger)
	defer func() {
		if err := closeSink(); err != nil {
			slog.Error("failed to close event sink", "error", err)
		}
	}()

	market := di.NewMarket(cfg.TwelveData)
	if !market.Configured() {
		slog.Error("TWELVE_DATA_API_KEY is not set")
		return 1
	}

	uc := candlesusecase.NewIngestUsecase(
		di.NewSnapshotUsecase(cfg, market, sink),
		di.NewCandleStore(gdb, rdb, cfg.Redis),
		cfg.Ingest.Count,
		cfg.Ingest.Concurrency,
	)

	report, err := uc.IngestAll(ctx, cfg.Ingest.Symbols)
	if err != nil {
		slog.Error("ingest aborted", "error", err, "failed", report.Failed)
		return 1
	}
	slog.Info("ingest ok",
		"symbols", report.Symbols,
		"failed", report.Failed,
		"persisted_slots", report.PersistedSlots,
		"skipped_slots", report.SkippedSlots,
		"persisted_candles", report.PersistedCandles,
	)
	if report.Failed == report.Symbols && report.Symbols > 0 {
		return 1
	}
	return 0
}
