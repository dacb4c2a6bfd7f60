// Package usecase はローソク足データ操作のビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"market_backend/internal/feature/candles/domain/entity"
	snapentity "market_backend/internal/feature/snapshot/domain/entity"
)

const (
	// DefaultInterval はローソク足クエリのデフォルト時間間隔です。
	DefaultInterval = string(snapentity.Timeframe1H)
	// DefaultOutputSize はデフォルトのローソク足返却件数です。
	DefaultOutputSize = 200
	// MaxOutputSize はローソク足の最大返却件数です。
	MaxOutputSize = 5000
)

var (
	// ErrInvalidSymbol は銘柄コードが空の場合に返されます。
	ErrInvalidSymbol = errors.New("symbol is required")
	// ErrUnsupportedInterval は保存対象の時間足以外が指定された場合に返されます。
	ErrUnsupportedInterval = errors.New("unsupported interval")
)

// CandleRepository はローソク足データの読み取りレイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type CandleRepository interface {
	// Find はデータベースから最新 outputsize 件のローソク足を古い順に返します。
	Find(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error)
}

// CandleWriter はローソク足データの書き込みレイヤーを抽象化します。
type CandleWriter interface {
	UpsertBatch(ctx context.Context, candles []entity.Candle) error
}

// candlesUsecase は取り込み済みローソク足の参照ユースケースです。
type candlesUsecase struct {
	candle CandleRepository
}

// NewCandlesUsecase はcandlesUsecaseの新しいインスタンスを生成します。
func NewCandlesUsecase(candle CandleRepository) *candlesUsecase {
	return &candlesUsecase{candle: candle}
}

// GetCandles は銘柄と時間足を正規化し、保存済みのローソク足を古い順に返します。
//
// symbol は大文字に揃えます（取り込み時のプラットフォーム銘柄コードと一致させるため）。
// interval が空なら1時間足、outputsize は [1, MaxOutputSize] に収めます。
func (cu *candlesUsecase) GetCandles(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	if interval == "" {
		interval = DefaultInterval
	}
	if !snapentity.Timeframe(interval).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInterval, interval)
	}

	switch {
	case outputsize <= 0:
		outputsize = DefaultOutputSize
	case outputsize > MaxOutputSize:
		outputsize = MaxOutputSize
	}

	return cu.candle.Find(ctx, symbol, interval, outputsize)
}
