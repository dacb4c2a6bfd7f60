package usecase

import (
	"context"
	"log/slog"
	"time"

	"market_backend/internal/feature/snapshot/domain"
	"market_backend/internal/feature/snapshot/domain/entity"
)

// EventType はスナップショット取得中に発行されるイベントの種類です。
type EventType string

const (
	EventFetchStarted   EventType = "fetch_started"
	EventFetchSucceeded EventType = "fetch_succeeded"
	EventFetchDegraded  EventType = "fetch_degraded"
	EventFetchFailed    EventType = "fetch_failed"
)

// Event は1回のスナップショット取得における観測点です。
// RunID で同じ取得に属するイベントを関連付けます。
type Event struct {
	Type           EventType        `json:"type"`
	RunID          string           `json:"run_id"`
	Symbol         string           `json:"symbol"`
	ProviderSymbol string           `json:"provider_symbol"`
	Timeframe      entity.Timeframe `json:"timeframe,omitempty"`
	Err            error            `json:"-"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	ErrorMessage   string           `json:"error,omitempty"`
	DegradedCount  int              `json:"degraded_count"`
	At             time.Time        `json:"at"`
}

// EventSink はイベントの受け取り手です。
// Emit は取得処理を失敗させてはならないため、エラーを返しません。
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink はイベントを破棄します。
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// SlogSink はイベントを構造化ログとして出力します。
type SlogSink struct {
	Logger *slog.Logger // nil の場合は slog.Default()
}

// Emit は種類に応じたレベルでイベントをログ出力します。
// 設定・認証起因の失敗は運用者の対応が必要なため Error で出力します。
func (s SlogSink) Emit(ctx context.Context, ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	switch ev.Type {
	case EventFetchStarted:
		level = slog.LevelDebug
	case EventFetchDegraded:
		level = slog.LevelWarn
		if domain.IsPersistent(ev.Err) {
			level = slog.LevelError
		}
	case EventFetchFailed:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("run_id", ev.RunID),
		slog.String("symbol", ev.Symbol),
		slog.String("provider_symbol", ev.ProviderSymbol),
	}
	if ev.Timeframe != "" {
		attrs = append(attrs, slog.String("timeframe", string(ev.Timeframe)))
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("kind", domain.Kind(ev.Err)), slog.Any("error", ev.Err))
	}
	if ev.Type == EventFetchDegraded || ev.Type == EventFetchFailed {
		attrs = append(attrs, slog.Int("degraded", ev.DegradedCount))
	}
	logger.LogAttrs(ctx, level, string(ev.Type), attrs...)
}

// MultiSink は複数のシンクへイベントを配送します。
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}
