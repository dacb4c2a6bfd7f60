package router

import (
	candleshandler "market_backend/internal/feature/candles/transport/handler"
	snapshothandler "market_backend/internal/feature/snapshot/transport/handler"
	"market_backend/internal/platform/http/handler"
	jwtmw "market_backend/internal/platform/jwt"

	"github.com/gin-gonic/gin"
)

// Handlers groups the feature handlers mounted by NewRouter.
type Handlers struct {
	Snapshot *snapshothandler.SnapshotHandler
	Candles  *candleshandler.CandlesHandler
}

func NewRouter(h Handlers, jwtSecret string, readiness map[string]handler.CheckFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	// 依存先（DB, Redis）の疎通確認
	r.GET("/readyz", handler.Readiness(readiness))

	// 認証必須のルート
	// → リクエストヘッダーに JWT が必要になる
	v1 := r.Group("/v1")
	v1.Use(jwtmw.AuthRequired(jwtSecret))
	{
		v1.GET("/snapshots/:symbol", h.Snapshot.GetSnapshot)
		v1.GET("/snapshots/:symbol/mock", h.Snapshot.GetMockSnapshot)
		v1.GET("/provider/status", h.Snapshot.GetProviderStatus)
		v1.GET("/candles/:code", h.Candles.GetCandlesHandler)
	}

	return r
}
