package cache

import (
	"time"

	snapentity "market_backend/internal/feature/snapshot/domain/entity"
)

// DefaultTTL は時間足として解釈できない interval に使うキャッシュ有効期間です。
const DefaultTTL = 5 * time.Minute

// UntilNextBoundary は interval の次の足が始まるまでの期間を返します。
// 保存済みの足は次の足が確定するまで変わらないため、これをキャッシュのTTLに使います。
func UntilNextBoundary(now time.Time, interval string) time.Duration {
	tf := snapentity.Timeframe(interval)
	if !tf.Valid() {
		return DefaultTTL
	}
	cadence := tf.Cadence()
	next := now.UTC().Truncate(cadence).Add(cadence)
	return next.Sub(now)
}
