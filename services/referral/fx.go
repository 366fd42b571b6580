package referral

import (
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/pkg/ratelimit"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.module",
	fx.Provide(NewService),
)

var Routes = fx.Module("referral.routes",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

type routeParams struct {
	fx.In

	Engine   *gin.Engine
	Handler  *Handler
	Business *business.Service
	Auth     middleware.TokenVerifier
	Limiter  ratelimit.Limiter
}

func registerRoutes(p routeParams) {
	p.Engine.POST("/api/track-conversion", ratelimit.Middleware(p.Limiter, "track_conversion"), p.Handler.TrackConversion)

	owner := p.Engine.Group("/api/businesses/:business_id/referrals",
		middleware.Auth(p.Auth),
		business.OwnerOnly(p.Business),
	)
	owner.GET("", p.Handler.List)
	owner.POST("/manual", p.Handler.Manual)
	owner.POST("/:referral_id/complete", p.Handler.Complete)
}
