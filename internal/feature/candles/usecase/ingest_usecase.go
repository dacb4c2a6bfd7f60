package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"market_backend/internal/feature/candles/domain/entity"
	snapentity "market_backend/internal/feature/snapshot/domain/entity"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultIngestCount は1時間足あたりに取得するローソク足の本数です。
	DefaultIngestCount = 200
	// DefaultIngestConcurrency は同時にスナップショットを取得する銘柄数です。
	DefaultIngestConcurrency = 2
)

// SnapshotFetcher はマルチタイムフレームのスナップショットを取得します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type SnapshotFetcher interface {
	FetchAll(ctx context.Context, platformSymbol string, count int) (*snapentity.Snapshot, error)
}

// IngestReport は1回の取り込み結果の集計です。
type IngestReport struct {
	Symbols          int // 対象銘柄数
	Failed           int // スナップショット取得または保存に失敗した銘柄数
	PersistedSlots   int // 保存した時間足の数
	SkippedSlots     int // 合成データのため保存しなかった時間足の数
	PersistedCandles int // 保存したローソク足の本数
}

// IngestUsecase は銘柄ごとにスナップショットを取得し、プロバイダ由来の時間足だけを永続化します。
type IngestUsecase struct {
	snapshots   SnapshotFetcher
	candle      CandleWriter
	count       int
	concurrency int
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
// count と concurrency が0以下の場合は既定値を使います。
func NewIngestUsecase(snapshots SnapshotFetcher, candle CandleWriter, count, concurrency int) *IngestUsecase {
	if count <= 0 {
		count = DefaultIngestCount
	}
	if concurrency <= 0 {
		concurrency = DefaultIngestConcurrency
	}
	return &IngestUsecase{snapshots: snapshots, candle: candle, count: count, concurrency: concurrency}
}

type ingestResult struct {
	persisted int
	skipped   int
	candles   int
}

// ingestOne は1銘柄のスナップショットを取得し、合成データでない時間足をデータベースに一括で挿入（または更新）します。
func (iu *IngestUsecase) ingestOne(ctx context.Context, symbol string) (ingestResult, error) {
	var res ingestResult

	snap, err := iu.snapshots.FetchAll(ctx, symbol, iu.count)
	if err != nil {
		return res, err
	}

	for _, tf := range snapentity.Timeframes {
		if snap.IsDegraded(tf) {
			res.skipped++
			continue
		}
		series := snap.Timeframes[tf]
		cs := make([]entity.Candle, 0, len(series))
		for _, c := range series {
			cs = append(cs, entity.Candle{
				Symbol:   snap.Symbol,
				Interval: string(tf),
				Time:     c.Time,
				Open:     c.Open,
				High:     c.High,
				Low:      c.Low,
				Close:    c.Close,
				Volume:   c.Volume,
			})
		}
		if err := iu.candle.UpsertBatch(ctx, cs); err != nil {
			return res, fmt.Errorf("persist %s %s: %w", symbol, tf, err)
		}
		res.persisted++
		res.candles += len(cs)
	}
	return res, nil
}

// IngestAll は全銘柄を最大 concurrency 並列で取り込みます。
// 1銘柄の失敗は他の銘柄に影響させず、ログに残して処理を続けます。
// レート制限はスナップショット取得側のペーシングと共有バジェットに任せます。
func (iu *IngestUsecase) IngestAll(ctx context.Context, symbols []string) (IngestReport, error) {
	report := IngestReport{Symbols: len(symbols)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(iu.concurrency)
	for _, s := range symbols {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := iu.ingestOne(gctx, s)

			mu.Lock()
			defer mu.Unlock()
			report.PersistedSlots += res.persisted
			report.SkippedSlots += res.skipped
			report.PersistedCandles += res.candles
			if err != nil {
				// 1つの銘柄でエラーが発生しても処理を止めずにログに出力し、次の銘柄へ進む
				report.Failed++
				slog.Error("failed to ingest symbol", "symbol", s, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
