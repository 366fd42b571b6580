package dashboard

import (
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/services/ambassador"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/campaign"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/referral"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("dashboard",
	fx.Provide(
		func(s *business.Service) BusinessReader { return s },
		func(s *ambassador.Service) AmbassadorCounter { return s },
		func(s *referral.Service) ReferralCounter { return s },
		func(s *event.Service) EventClock { return s },
		func(s *campaign.Service) CampaignCounter { return s },
		NewService,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, biz *business.Service, auth middleware.TokenVerifier) {
	r.GET("/api/businesses/:business_id/dashboard", middleware.Auth(auth), business.OwnerOnly(biz), h.Get)
}
