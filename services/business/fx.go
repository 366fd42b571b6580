package business

import (
	"smallbiznis-referral/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("business.module",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, svc *Service, auth middleware.TokenVerifier) {
	api := r.Group("/api/businesses", middleware.Auth(auth))
	api.POST("", h.Create)
	api.GET("/:business_id", OwnerOnly(svc), h.Get)
}
