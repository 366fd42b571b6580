package business

import (
	"net/http"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const businessKey = "business"

// OwnerOnly resolves :business_id and aborts unless the authenticated user
// owns it. Must run after middleware.Auth.
func OwnerOnly(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.RequireOwner(c.Request.Context(), c.Param("business_id"), middleware.UserID(c))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(businessKey, b)
		c.Next()
	}
}

// FromContext returns the business stored by OwnerOnly.
func FromContext(c *gin.Context) *Business {
	b, _ := c.Get(businessKey)
	out, _ := b.(*Business)
	return out
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	b, err := h.svc.CreateBusiness(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, FromContext(c))
}
