package attribution

import (
	"smallbiznis-referral/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("attribution.module",
	fx.Provide(NewCodec),
)

var Routes = fx.Module("attribution.routes",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, limiter ratelimit.Limiter) {
	api := r.Group("/api")
	api.GET("/referral-redirect", ratelimit.Middleware(limiter, "referral_redirect"), h.Redirect)
	api.GET("/verify-attribution", h.Verify)
	api.POST("/track-event", ratelimit.Middleware(limiter, "track_event"), h.TrackEvent)
}
