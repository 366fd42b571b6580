package httpapi

import (
	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/health"
	"smallbiznis-referral/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Module builds the shared gin engine. Services attach their routes with
// fx.Invoke against *gin.Engine.
var Module = fx.Module("httpapi",
	fx.Provide(NewEngine),
	fx.Invoke(registerHealthEndpoint),
)

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Recovery(),
		middleware.Error(),
	)
	return r
}

func registerHealthEndpoint(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
}
