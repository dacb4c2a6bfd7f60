// Package usecase はマルチタイムフレームのスナップショット取得と合成データによる補完を実装します。
package usecase

import (
	"context"
	"fmt"
	"time"

	"market_backend/internal/feature/snapshot/domain"
	"market_backend/internal/feature/snapshot/domain/entity"
	"market_backend/internal/shared/ratelimiter"

	"github.com/google/uuid"
)

const (
	// DefaultCount は count 未指定時の1時間足あたりの取得本数です。
	DefaultCount = 100
	// MaxCount はプロバイダが1リクエストで返せる最大本数です。
	MaxCount = 5000
)

// MarketRepository はプロバイダから1つの時間足の系列を取得します。
// 成功時は昇順かつ不変条件を満たす系列を返し、部分的な結果は返しません。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type MarketRepository interface {
	GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error)
	// Configured はAPIキーが設定済みかどうかをネットワークを使わずに返します。
	Configured() bool
}

// ConnectivityProber はプロバイダへの到達性を確認します。
type ConnectivityProber interface {
	Ping(ctx context.Context) bool
}

// PacingPolicy は1回の取得ごとに新しいペーサーを生成します。
// ratelimiter.PacingPolicy がこれを満たします。
type PacingPolicy interface {
	NewLimiter() ratelimiter.RateLimiterInterface
}

// slotResult は1つの時間足の取得結果です。err が非nilなら合成データで補完されます。
type slotResult struct {
	tf     entity.Timeframe
	series entity.Series
	err    error
}

// SnapshotUsecase はシンボル解決、時間足ごとの取得、合成データによる補完をまとめます。
// 可変な状態を持たないため、複数のリクエストから同時に呼び出せます。
type SnapshotUsecase struct {
	market    MarketRepository
	prober    ConnectivityProber
	resolver  *SymbolResolver
	generator *Generator
	pacing    PacingPolicy
	sink      EventSink
	newRunID  func() string
	now       func() time.Time
}

// NewSnapshotUsecase は新しいSnapshotUsecaseを生成します。
// sink が nil の場合は SlogSink を使います。
func NewSnapshotUsecase(
	market MarketRepository,
	prober ConnectivityProber,
	resolver *SymbolResolver,
	generator *Generator,
	pacing PacingPolicy,
	sink EventSink,
) *SnapshotUsecase {
	if sink == nil {
		sink = SlogSink{}
	}
	if pacing == nil {
		pacing = ratelimiter.PacingPolicy{}
	}
	return &SnapshotUsecase{
		market:    market,
		prober:    prober,
		resolver:  resolver,
		generator: generator,
		pacing:    pacing,
		sink:      sink,
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
}

// NormalizeCount は count を [1, MaxCount] に収めます。0以下は DefaultCount になります。
func NormalizeCount(count int) int {
	switch {
	case count <= 0:
		return DefaultCount
	case count > MaxCount:
		return MaxCount
	default:
		return count
	}
}

// FetchAll は4つの時間足を固定順に、ペーシングを挟みながら逐次取得します。
//
// 失敗した時間足は同じ本数の合成データで補完され、Snapshot.Degraded に記録されます。
// 全ての時間足が失敗した場合のみ *domain.AllTimeframesFailedError を返します。
// APIキーが未設定の場合は通信せずに domain.ErrConfiguration を返します。
// ctx がキャンセルされた場合は取得を中断し、ctx のエラーを返します。
func (u *SnapshotUsecase) FetchAll(ctx context.Context, platformSymbol string, count int) (*entity.Snapshot, error) {
	count = NormalizeCount(count)
	if !u.market.Configured() {
		return nil, domain.ErrConfiguration
	}

	spec := u.resolver.Spec(platformSymbol)
	base := Event{RunID: u.newRunID(), Symbol: spec.PlatformCode, ProviderSymbol: spec.ProviderCode}
	pacer := u.pacing.NewLimiter()

	results := make([]slotResult, 0, len(entity.Timeframes))
	degraded := 0
	for _, tf := range entity.Timeframes {
		// 初回は即時、2回目以降は最小間隔を空ける
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		u.emit(ctx, base, EventFetchStarted, tf, nil, degraded)

		series, err := u.fetchSlot(ctx, spec.ProviderCode, tf, count)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results = append(results, slotResult{tf: tf, series: series, err: err})

		if err != nil {
			degraded++
			u.emit(ctx, base, EventFetchDegraded, tf, err, degraded)
			continue
		}
		u.emit(ctx, base, EventFetchSucceeded, tf, nil, degraded)
	}

	return u.assemble(ctx, base, spec, count, results)
}

// fetchSlot は1つの時間足を取得し、結果の長さと空系列を検査します。
func (u *SnapshotUsecase) fetchSlot(ctx context.Context, symbol string, tf entity.Timeframe, count int) (entity.Series, error) {
	series, err := u.market.GetTimeSeries(ctx, symbol, string(tf), count)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, &domain.ProviderError{Kind: domain.ErrNoData, Message: fmt.Sprintf("empty %s series", tf)}
	}
	if len(series) > count {
		series = series[len(series)-count:]
	}
	return series, nil
}

// assemble は時間足ごとの結果をスナップショットにまとめます。
func (u *SnapshotUsecase) assemble(ctx context.Context, base Event, spec entity.SymbolSpec, count int, results []slotResult) (*entity.Snapshot, error) {
	snap := &entity.Snapshot{
		RunID:          base.RunID,
		Symbol:         spec.PlatformCode,
		ProviderSymbol: spec.ProviderCode,
		Timeframes:     make(map[entity.Timeframe]entity.Series, len(results)),
		GeneratedAt:    u.now().UTC(),
	}
	causes := make(map[entity.Timeframe]error)
	for _, r := range results {
		if r.err != nil {
			causes[r.tf] = r.err
			snap.Degraded = append(snap.Degraded, r.tf)
			snap.Timeframes[r.tf] = u.generator.Generate(r.tf, count, spec.BasePrice)
			continue
		}
		snap.Timeframes[r.tf] = r.series
	}

	if len(causes) == len(entity.Timeframes) {
		failErr := &domain.AllTimeframesFailedError{Symbol: spec.PlatformCode, Causes: causes}
		u.emit(ctx, base, EventFetchFailed, "", failErr, len(causes))
		return nil, failErr
	}

	snap.Source = entity.SourceFor(len(snap.Degraded), len(entity.Timeframes))
	return snap, nil
}

// GenerateMock は全時間足が合成データのスナップショットを返します。常に成功します。
func (u *SnapshotUsecase) GenerateMock(platformSymbol string, count int) *entity.Snapshot {
	if count <= 0 {
		count = DefaultMockCount
	}
	snap := u.generator.GenerateSnapshot(u.resolver.Spec(platformSymbol), NormalizeCount(count))
	snap.RunID = u.newRunID()
	return snap
}

// TestConnection はプロバイダへ最小限のリクエストを送り、到達可能かどうかを返します。
// FetchAll の実行可否には影響しません。
func (u *SnapshotUsecase) TestConnection(ctx context.Context) bool {
	if u.prober == nil {
		return false
	}
	return u.prober.Ping(ctx)
}

func (u *SnapshotUsecase) emit(ctx context.Context, base Event, typ EventType, tf entity.Timeframe, err error, degraded int) {
	ev := base
	ev.Type = typ
	ev.Timeframe = tf
	ev.Err = err
	ev.DegradedCount = degraded
	ev.At = u.now().UTC()
	if err != nil {
		ev.ErrorKind = domain.Kind(err)
		ev.ErrorMessage = err.Error()
	}
	u.sink.Emit(ctx, ev)
}
