// Package handler はsnapshotフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"market_backend/internal/feature/snapshot/domain"
	"market_backend/internal/feature/snapshot/domain/entity"
	"market_backend/internal/feature/snapshot/transport/http/dto"

	"github.com/gin-gonic/gin"
)

// DemoNotice はライブデータの代わりにデモデータを返すときの通知文です。
const DemoNotice = "live market data is unavailable; showing demo data"

// SnapshotUsecase はスナップショット取得のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SnapshotUsecase interface {
	FetchAll(ctx context.Context, platformSymbol string, count int) (*entity.Snapshot, error)
	GenerateMock(platformSymbol string, count int) *entity.Snapshot
	TestConnection(ctx context.Context) bool
}

// SnapshotHandler はスナップショットのHTTPリクエストを処理します。
type SnapshotHandler struct {
	uc SnapshotUsecase
}

// NewSnapshotHandler は指定されたusecaseでSnapshotHandlerの新しいインスタンスを生成します。
func NewSnapshotHandler(uc SnapshotUsecase) *SnapshotHandler {
	return &SnapshotHandler{uc: uc}
}

// GetSnapshot は4つの時間足のスナップショットをJSONで返します。
//
// エンドポイント例:
// GET /v1/snapshots/:symbol?count=100&strict=false
//
// 全時間足の取得失敗またはAPIキー未設定の場合は、通知付きのデモデータを返します。
// strict=true の場合はデモデータに切り替えず 503 を返します。
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	symbol := c.Param("symbol")
	// 不正な値は0となり、usecase側で既定値に置き換えられる
	count, _ := strconv.Atoi(c.DefaultQuery("count", "0"))
	strict, _ := strconv.ParseBool(c.DefaultQuery("strict", "false"))

	snap, err := h.uc.FetchAll(c.Request.Context(), symbol, count)
	if err == nil {
		c.JSON(http.StatusOK, dto.NewSnapshotResponse(snap, ""))
		return
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAllTimeframesFailed), errors.Is(err, domain.ErrConfiguration):
		if domain.IsPersistent(err) {
			slog.Error("market data provider needs operator attention", "symbol", symbol, "kind", domain.Kind(err), "error", err)
		} else {
			slog.Warn("market data unavailable, falling back to demo data", "symbol", symbol, "error", err)
		}
		if strict {
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error(), Kind: domain.Kind(err)})
			return
		}
		c.JSON(http.StatusOK, dto.NewSnapshotResponse(h.uc.GenerateMock(symbol, count), DemoNotice))
	default:
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error(), Kind: domain.Kind(err)})
	}
}

// GetMockSnapshot は全時間足が合成データのスナップショットを返します。
//
// エンドポイント例:
// GET /v1/snapshots/:symbol/mock?count=100
func (h *SnapshotHandler) GetMockSnapshot(c *gin.Context) {
	count, _ := strconv.Atoi(c.DefaultQuery("count", "0"))
	c.JSON(http.StatusOK, dto.NewSnapshotResponse(h.uc.GenerateMock(c.Param("symbol"), count), ""))
}

// GetProviderStatus はプロバイダに到達できるかを返します。
//
// エンドポイント例:
// GET /v1/provider/status
func (h *SnapshotHandler) GetProviderStatus(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.ConnectionStatusResponse{Connected: h.uc.TestConnection(c.Request.Context())})
}
