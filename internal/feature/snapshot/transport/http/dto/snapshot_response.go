// Package dto はsnapshotフィーチャーのレスポンスDTOを定義します。
package dto

import (
	"time"

	"market_backend/internal/feature/snapshot/domain/entity"
)

// CandleResponse はローソク足1本のレスポンスDTOです。
type CandleResponse struct {
	Time   string  `json:"time"`   // RFC3339（UTC）
	Open   float64 `json:"open"`   // 始値
	High   float64 `json:"high"`   // 高値
	Low    float64 `json:"low"`    // 安値
	Close  float64 `json:"close"`  // 終値
	Volume float64 `json:"volume"` // 出来高
}

// SnapshotResponse はマルチタイムフレームのスナップショットのレスポンスDTOです。
type SnapshotResponse struct {
	RunID          string                      `json:"run_id"`
	Symbol         string                      `json:"symbol"`
	ProviderSymbol string                      `json:"provider_symbol"`
	Source         string                      `json:"source"` // live / partial / demo
	Degraded       []string                    `json:"degraded"`
	DegradedCount  int                         `json:"degraded_count"`
	Notice         string                      `json:"notice,omitempty"`
	GeneratedAt    string                      `json:"generated_at"`
	Timeframes     map[string][]CandleResponse `json:"timeframes"`
}

// ConnectionStatusResponse はプロバイダ疎通確認のレスポンスDTOです。
type ConnectionStatusResponse struct {
	Connected bool `json:"connected"`
}

// ErrorResponse はエラーレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewSnapshotResponse はドメインのスナップショットをレスポンスDTOに変換します。
func NewSnapshotResponse(s *entity.Snapshot, notice string) SnapshotResponse {
	tfs := make(map[string][]CandleResponse, len(s.Timeframes))
	for tf, series := range s.Timeframes {
		out := make([]CandleResponse, 0, len(series))
		for _, c := range series {
			out = append(out, CandleResponse{
				Time:   c.Time.UTC().Format(time.RFC3339),
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
			})
		}
		tfs[string(tf)] = out
	}

	degraded := make([]string, 0, len(s.Degraded))
	for _, tf := range s.Degraded {
		degraded = append(degraded, string(tf))
	}

	return SnapshotResponse{
		RunID:          s.RunID,
		Symbol:         s.Symbol,
		ProviderSymbol: s.ProviderSymbol,
		Source:         string(s.Source),
		Degraded:       degraded,
		DegradedCount:  s.DegradedCount(),
		Notice:         notice,
		GeneratedAt:    s.GeneratedAt.UTC().Format(time.RFC3339),
		Timeframes:     tfs,
	}
}
