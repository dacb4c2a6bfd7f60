// Package ratelimiter はプロバイダーのレート制限を守るための待機ポリシーを提供します。
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	// Wait は次の呼び出しが許可されるまで待機します。ctxがキャンセルされた場合はそのエラーを返します。
	Wait(ctx context.Context) error
}

// Budget は1つのAPIキーに対する1分あたりのリクエスト上限を表します。
// 複数のリクエストから共有して使うことを想定しています。
type Budget struct {
	limit   int // 1分あたりの上限
	limiter *rate.Limiter
}

// NewBudget は1分あたりperMinute件までを許可するBudgetを生成します。
// perMinuteが0以下の場合は制限しません。
func NewBudget(perMinute int) *Budget {
	if perMinute <= 0 {
		return &Budget{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Budget{
		limit:   perMinute,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Wait はレートリミットの上限に達しているかを確認し、必要であれば待機します。
func (b *Budget) Wait(ctx context.Context) error {
	r := b.limiter.Reserve()
	if !r.OK() {
		return b.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	slog.Info("rate limit budget exhausted, waiting", "limit_per_minute", b.limit, "delay", delay)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
