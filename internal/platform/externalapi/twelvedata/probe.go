package twelvedata

import (
	"context"
	"log/slog"
)

// Ping は参照銘柄に対して最小のリクエストを1回送り、プロバイダに到達できるかを返します。
// APIキーが未設定の場合は通信せずに false を返します。
func (t *TwelveDataMarket) Ping(ctx context.Context) bool {
	if !t.Configured() {
		return false
	}

	status, raw, err := t.get(ctx, ProbeSymbol, ProbeInterval, 1)
	if err != nil {
		slog.Warn("twelvedata probe failed", "error", err)
		return false
	}
	if _, err := t.parse(status, raw, 1); err != nil {
		slog.Warn("twelvedata probe returned unexpected response", "status", status, "error", err)
		return false
	}
	return true
}
