package di

import (
	"log/slog"

	"market_backend/internal/app/config"
	"market_backend/internal/feature/snapshot/adapters/events"
	"market_backend/internal/feature/snapshot/usecase"
	"market_backend/internal/platform/externalapi/twelvedata"
	"market_backend/internal/shared/ratelimiter"
)

// NewPacingPolicy pairs the per-snapshot minimum gap with the per-key budget.
// The returned policy must be shared by every usecase using the same API key.
func NewPacingPolicy(cfg config.PacingConfig) ratelimiter.BudgetedPolicy {
	return ratelimiter.BudgetedPolicy{
		Pacing: ratelimiter.PacingPolicy{MinGap: cfg.MinGap},
		Budget: ratelimiter.NewBudget(cfg.RequestsPerMinute),
	}
}

// NewEventSink returns the slog sink, fanned out to Kafka when enabled.
// closeFn flushes the Kafka writer and is never nil.
func NewEventSink(cfg config.KafkaConfig, logger *slog.Logger) (sink usecase.EventSink, closeFn func() error) {
	slogSink := usecase.SlogSink{Logger: logger}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return slogSink, func() error { return nil }
	}
	w := events.NewKafkaWriter(cfg.Brokers, cfg.Topic, cfg.ClientID)
	return usecase.MultiSink{slogSink, events.NewKafkaSink(w)}, w.Close
}

// NewSnapshotUsecase wires the resolver, generator and provider client into the orchestrator.
func NewSnapshotUsecase(cfg *config.Config, market *twelvedata.TwelveDataMarket, sink usecase.EventSink) *usecase.SnapshotUsecase {
	return usecase.NewSnapshotUsecase(
		market,
		market,
		usecase.NewSymbolResolver(cfg.Symbols),
		usecase.NewGenerator(nil, nil),
		NewPacingPolicy(cfg.Pacing),
		sink,
	)
}
