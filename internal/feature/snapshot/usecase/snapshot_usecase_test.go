package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"market_backend/internal/feature/snapshot/domain"
	"market_backend/internal/feature/snapshot/domain/entity"
	"market_backend/internal/shared/ratelimiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 12, 7, 0, 0, time.UTC)

// mockMarketRepository はMarketRepositoryのモック実装です。
type mockMarketRepository struct {
	mu                 sync.Mutex
	GetTimeSeriesFunc  func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error)
	ConfiguredValue    bool
	GetTimeSeriesCalls []string
}

func (m *mockMarketRepository) GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
	m.mu.Lock()
	m.GetTimeSeriesCalls = append(m.GetTimeSeriesCalls, interval)
	m.mu.Unlock()
	if m.GetTimeSeriesFunc != nil {
		return m.GetTimeSeriesFunc(ctx, symbol, interval, outputsize)
	}
	return nil, errors.New("GetTimeSeriesFunc is not implemented")
}

func (m *mockMarketRepository) Configured() bool { return m.ConfiguredValue }

// mockProber はConnectivityProberのモック実装です。
type mockProber struct {
	result bool
	calls  int
}

func (m *mockProber) Ping(ctx context.Context) bool {
	m.calls++
	return m.result
}

// recordingSink は発行されたイベントを記録します。
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

// realSeries はプロバイダが返す想定の有効な昇順系列を作ります。
func realSeries(tf entity.Timeframe, n int) entity.Series {
	out := make(entity.Series, n)
	start := fixedNow.Add(-time.Duration(n) * tf.Cadence())
	for i := range out {
		p := 1.1 + float64(i)*0.0001
		out[i] = entity.Candle{
			Time:  start.Add(time.Duration(i) * tf.Cadence()),
			Open:  p,
			High:  p + 0.001,
			Low:   p - 0.001,
			Close: p + 0.0005,
		}
	}
	return out
}

func newTestUsecase(market MarketRepository, prober ConnectivityProber, sink EventSink) *SnapshotUsecase {
	gen := NewGenerator(rand.NewPCG(1, 2), func() time.Time { return fixedNow })
	uc := NewSnapshotUsecase(market, prober, NewSymbolResolver(nil), gen, ratelimiter.PacingPolicy{}, sink)
	runs := 0
	uc.newRunID = func() string {
		runs++
		return fmt.Sprintf("run-%d", runs)
	}
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func assertCandleInvariants(t *testing.T, snap *entity.Snapshot) {
	t.Helper()
	for tf, series := range snap.Timeframes {
		assert.True(t, series.IsAscending(), "%s not ascending", tf)
		for i, c := range series {
			assert.NoError(t, c.Validate(), "%s[%d]", tf, i)
		}
	}
}

// TestSnapshotUsecase_FetchAll_OneSlotRateLimited は1つの時間足だけがレート制限された場合に
// その時間足のみが合成データになることを検証します。
func TestSnapshotUsecase_FetchAll_OneSlotRateLimited(t *testing.T) {
	t.Parallel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			assert.Equal(t, "EUR/USD", symbol)
			if interval == "1h" {
				return nil, &domain.ProviderError{Kind: domain.ErrRateLimited, Code: 429, Message: "You have run out of API credits"}
			}
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	sink := &recordingSink{}
	uc := newTestUsecase(market, nil, sink)

	snap, err := uc.FetchAll(context.Background(), "EURUSD", 30)
	require.NoError(t, err)

	require.Len(t, snap.Timeframes, 4)
	for _, tf := range entity.Timeframes {
		assert.Len(t, snap.Timeframes[tf], 30, tf)
	}
	assert.Equal(t, []entity.Timeframe{entity.Timeframe1H}, snap.Degraded)
	assert.Equal(t, 1, snap.DegradedCount())
	assert.Equal(t, entity.SourcePartial, snap.Source)
	assert.Equal(t, "EURUSD", snap.Symbol)
	assert.Equal(t, "EUR/USD", snap.ProviderSymbol)
	assert.Equal(t, "run-1", snap.RunID)

	// 実データの時間足はプロバイダの値をそのまま保持する
	assert.Equal(t, realSeries(entity.Timeframe5Min, 30), snap.Timeframes[entity.Timeframe5Min])
	assert.Equal(t, realSeries(entity.Timeframe4H, 30), snap.Timeframes[entity.Timeframe4H])
	assert.NotEqual(t, realSeries(entity.Timeframe1H, 30), snap.Timeframes[entity.Timeframe1H])
	assertCandleInvariants(t, snap)

	assert.Equal(t, []EventType{
		EventFetchStarted, EventFetchSucceeded,
		EventFetchStarted, EventFetchSucceeded,
		EventFetchStarted, EventFetchDegraded,
		EventFetchStarted, EventFetchSucceeded,
	}, sink.types())

	degradedEv := sink.events[5]
	assert.Equal(t, entity.Timeframe1H, degradedEv.Timeframe)
	assert.Equal(t, "rate_limited", degradedEv.ErrorKind)
	assert.ErrorIs(t, degradedEv.Err, domain.ErrRateLimited)
	assert.Equal(t, 1, degradedEv.DegradedCount)
}

// TestSnapshotUsecase_FetchAll_AllSlotsFail は全時間足の失敗が AllTimeframesFailed になり、
// その後のモック生成が成功することを検証します。
func TestSnapshotUsecase_FetchAll_AllSlotsFail(t *testing.T) {
	t.Parallel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			if interval == "4h" {
				return nil, &domain.ProviderError{Kind: domain.ErrUnauthorized, Code: 401}
			}
			return nil, &domain.ProviderError{Kind: domain.ErrTransport, Err: errors.New("connection refused")}
		},
	}
	sink := &recordingSink{}
	uc := newTestUsecase(market, nil, sink)

	snap, err := uc.FetchAll(context.Background(), "BTCUSD", 50)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, domain.ErrAllTimeframesFailed)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.True(t, domain.IsPersistent(err))

	var allErr *domain.AllTimeframesFailedError
	require.ErrorAs(t, err, &allErr)
	assert.Equal(t, "BTCUSD", allErr.Symbol)
	assert.Len(t, allErr.Causes, 4)

	types := sink.types()
	require.NotEmpty(t, types)
	assert.Equal(t, EventFetchFailed, types[len(types)-1])
	assert.Equal(t, 4, sink.events[len(sink.events)-1].DegradedCount)

	mock := uc.GenerateMock("BTCUSD", 0)
	require.NotNil(t, mock)
	require.Len(t, mock.Timeframes, 4)
	for _, tf := range entity.Timeframes {
		assert.Len(t, mock.Timeframes[tf], DefaultMockCount, tf)
	}
	assert.Equal(t, entity.SourceDemo, mock.Source)
	assert.Equal(t, 4, mock.DegradedCount())
	assert.Equal(t, "BTC/USD", mock.ProviderSymbol)
	assert.NotEmpty(t, mock.RunID)
	assertCandleInvariants(t, mock)
}

// TestSnapshotUsecase_FetchAll_NotConfigured はAPIキー未設定時に通信せずエラーを返すことを検証します。
func TestSnapshotUsecase_FetchAll_NotConfigured(t *testing.T) {
	t.Parallel()

	market := &mockMarketRepository{ConfiguredValue: false}
	sink := &recordingSink{}
	uc := newTestUsecase(market, nil, sink)

	snap, err := uc.FetchAll(context.Background(), "EURUSD", 30)

	assert.Nil(t, snap)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, market.GetTimeSeriesCalls)
	assert.Empty(t, sink.types())
}

// TestSnapshotUsecase_FetchAll_Cancellation はキャンセル時に取得を中断することを検証します。
func TestSnapshotUsecase_FetchAll_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			if interval == "15min" {
				cancel()
				return nil, ctx.Err()
			}
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := newTestUsecase(market, nil, NopSink{})

	snap, err := uc.FetchAll(ctx, "EURUSD", 10)

	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"5min", "15min"}, market.GetTimeSeriesCalls)
}

// TestSnapshotUsecase_FetchAll_NormalizesPlatformSymbol は小文字で指定された銘柄も
// 大文字の銘柄コードでスナップショットに記録されることを検証します。
func TestSnapshotUsecase_FetchAll_NormalizesPlatformSymbol(t *testing.T) {
	t.Parallel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			assert.Equal(t, "EUR/USD", symbol)
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := newTestUsecase(market, nil, NopSink{})

	snap, err := uc.FetchAll(context.Background(), "eurusd", 10)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", snap.Symbol)
	assert.Equal(t, "EUR/USD", snap.ProviderSymbol)
}

// TestSnapshotUsecase_FetchAll_DeadlineDuringPacing はペーシング待機中に期限切れになった場合、
// コンテキストのエラーを返すことを検証します。
func TestSnapshotUsecase_FetchAll_DeadlineDuringPacing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := newTestUsecase(market, nil, NopSink{})
	uc.pacing = ratelimiter.PacingPolicy{MinGap: time.Second}

	snap, err := uc.FetchAll(ctx, "EURUSD", 10)

	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"5min"}, market.GetTimeSeriesCalls)
}

// orderPacer はペーサー待機と取得の呼び出し順を記録します。
type orderPacer struct {
	log *[]string
}

func (p orderPacer) Wait(context.Context) error {
	*p.log = append(*p.log, "wait")
	return nil
}

type orderPolicy struct {
	log *[]string
}

func (p orderPolicy) NewLimiter() ratelimiter.RateLimiterInterface { return orderPacer(p) }

// TestSnapshotUsecase_FetchAll_PacingOrder は各取得の前に必ずペーサーを待つことと、
// 時間足の順序が固定であることを検証します。
func TestSnapshotUsecase_FetchAll_PacingOrder(t *testing.T) {
	t.Parallel()

	var log []string
	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			log = append(log, "fetch:"+interval)
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := newTestUsecase(market, nil, NopSink{})
	uc.pacing = orderPolicy{log: &log}

	snap, err := uc.FetchAll(context.Background(), "EURUSD", 5)
	require.NoError(t, err)
	assert.Equal(t, entity.SourceLive, snap.Source)
	assert.Empty(t, snap.Degraded)

	assert.Equal(t, []string{
		"wait", "fetch:5min",
		"wait", "fetch:15min",
		"wait", "fetch:1h",
		"wait", "fetch:4h",
	}, log)
}

// TestSnapshotUsecase_FetchAll_PacingGap は実際のペーサーで呼び出し開始の間隔が空くことを検証します。
func TestSnapshotUsecase_FetchAll_PacingGap(t *testing.T) {
	t.Parallel()

	gap := 20 * time.Millisecond
	var starts []time.Time
	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			starts = append(starts, time.Now())
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := newTestUsecase(market, nil, NopSink{})
	uc.pacing = ratelimiter.PacingPolicy{MinGap: gap}

	_, err := uc.FetchAll(context.Background(), "EURUSD", 5)
	require.NoError(t, err)

	require.Len(t, starts, 4)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), gap-5*time.Millisecond)
	}
}

// TestSnapshotUsecase_FetchAll_SeriesGuards は空系列と長すぎる系列の扱いを検証します。
func TestSnapshotUsecase_FetchAll_SeriesGuards(t *testing.T) {
	t.Parallel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			switch interval {
			case "5min":
				return entity.Series{}, nil
			case "15min":
				return realSeries(entity.Timeframe15Min, outputsize+5), nil
			}
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := newTestUsecase(market, nil, NopSink{})

	snap, err := uc.FetchAll(context.Background(), "EURUSD", 10)
	require.NoError(t, err)

	assert.Equal(t, []entity.Timeframe{entity.Timeframe5Min}, snap.Degraded)
	assert.Len(t, snap.Timeframes[entity.Timeframe5Min], 10)

	long := realSeries(entity.Timeframe15Min, 15)
	assert.Equal(t, long[5:], snap.Timeframes[entity.Timeframe15Min])
}

// TestSnapshotUsecase_FetchAll_Concurrent は独立した呼び出しを並行実行できることを検証します。
func TestSnapshotUsecase_FetchAll_Concurrent(t *testing.T) {
	t.Parallel()

	market := &mockMarketRepository{
		ConfiguredValue: true,
		GetTimeSeriesFunc: func(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
			if symbol == "GBP/USD" {
				return nil, &domain.ProviderError{Kind: domain.ErrBadSymbol, Code: 400}
			}
			return realSeries(entity.Timeframe(interval), outputsize), nil
		},
	}
	uc := NewSnapshotUsecase(market, nil, NewSymbolResolver(nil), NewGenerator(nil, nil), ratelimiter.PacingPolicy{}, NopSink{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			symbol := "EURUSD"
			if i%2 == 1 {
				symbol = "GBPUSD"
			}
			snap, err := uc.FetchAll(context.Background(), symbol, 20)
			if symbol == "GBPUSD" {
				assert.ErrorIs(t, err, domain.ErrAllTimeframesFailed)
				return
			}
			if assert.NoError(t, err) {
				assert.Len(t, snap.Timeframes, 4)
			}
		}(i)
	}
	wg.Wait()
}

func TestNormalizeCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{-1, DefaultCount},
		{0, DefaultCount},
		{1, 1},
		{30, 30},
		{MaxCount, MaxCount},
		{MaxCount + 1, MaxCount},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCount(tt.in), "NormalizeCount(%d)", tt.in)
	}
}

func TestSnapshotUsecase_TestConnection(t *testing.T) {
	t.Parallel()

	t.Run("delegates to prober", func(t *testing.T) {
		t.Parallel()
		prober := &mockProber{result: true}
		uc := newTestUsecase(&mockMarketRepository{}, prober, NopSink{})

		assert.True(t, uc.TestConnection(context.Background()))
		assert.Equal(t, 1, prober.calls)
	})

	t.Run("no prober reports unavailable", func(t *testing.T) {
		t.Parallel()
		uc := newTestUsecase(&mockMarketRepository{}, nil, NopSink{})

		assert.False(t, uc.TestConnection(context.Background()))
	})
}
