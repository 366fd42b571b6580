package campaign

import (
	"smallbiznis-referral/pkg/linkcheck"
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.module",
	fx.Provide(
		NewService,
		NewSenders,
		NewRunner,
	),
)

var Routes = fx.Module("campaign.routes",
	fx.Provide(
		linkcheck.New,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

// Worker consumes scheduled dispatch tasks.
var Worker = fx.Module("campaign.worker",
	fx.Provide(NewTaskHandler),
	fx.Invoke(registerTaskHandler),
)

// Schedule enqueues a dispatch task every CAMPAIGN_DISPATCH.INTERVAL.
var Schedule = fx.Module("campaign.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

type routeParams struct {
	fx.In

	Engine   *gin.Engine
	Handler  *Handler
	Business *business.Service
	Auth     middleware.TokenVerifier
}

func registerRoutes(p routeParams) {
	p.Engine.POST("/api/campaigns/dispatch/cron", p.Handler.DispatchCron)

	authed := p.Engine.Group("/api/campaigns", middleware.Auth(p.Auth))
	authed.POST("/dispatch", p.Handler.Dispatch)
	authed.POST("/preflight", p.Handler.Preflight)
	authed.POST("/:campaign_id/messages", p.Handler.EnqueueMessages)
	authed.POST("/:campaign_id/pause", p.Handler.Pause)
	authed.POST("/:campaign_id/resume", p.Handler.Resume)

	owner := p.Engine.Group("/api/businesses/:business_id/campaigns",
		middleware.Auth(p.Auth),
		business.OwnerOnly(p.Business),
	)
	owner.POST("", p.Handler.Create)
	owner.GET("", p.Handler.List)
}
