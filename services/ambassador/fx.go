package ambassador

import (
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/pkg/ratelimit"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/referral"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("ambassador.module",
	fx.Provide(
		NewService,
		func(s *event.Service) EventReader { return s },
		func(s *Service) referral.AmbassadorDirectory { return s },
	),
	fx.Invoke(func(a *Service, r *referral.Service) {
		a.SetReferralCounter(r)
	}),
)

// Worker sends queued access emails.
var Worker = fx.Module("ambassador.worker",
	fx.Provide(NewAccessMailer, NewAccessTaskHandler),
	fx.Invoke(registerAccessTaskHandler),
)

var Routes = fx.Module("ambassador.routes",
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
	owner := p.Engine.Group("/api/businesses/:business_id/ambassadors",
		middleware.Auth(p.Auth),
		business.OwnerOnly(p.Business),
	)
	owner.POST("", p.Handler.Enroll)
	owner.GET("", p.Handler.List)

	p.Engine.POST("/api/ambassador/access", ratelimit.Middleware(p.Limiter, "ambassador_access"), p.Handler.RequestAccess)
	p.Engine.GET("/api/ambassador/:code/summary", p.Handler.Summary)
}
