package event

import (
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("event.module",
	fx.Provide(
		NewService,
		func(s *Service) Logger { return s },
	),
)

var Routes = fx.Module("event.routes",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, biz *business.Service, auth middleware.TokenVerifier) {
	g := r.Group("/api/businesses/:business_id/events", middleware.Auth(auth), business.OwnerOnly(biz))
	g.GET("", h.List)
	g.POST("/export", h.Export)
}
