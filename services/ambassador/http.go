package ambassador

import (
	"net/http"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	a, err := h.svc.Enroll(c.Request.Context(), business.FromContext(c).ID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context(), business.FromContext(c).ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ambassadors": out})
}

// RequestAccess always answers 202 so callers cannot probe for codes.
func (h *Handler) RequestAccess(c *gin.Context) {
	var req AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	h.svc.RequestAccess(c.Request.Context(), req.Code)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) Summary(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c)
	}

	out, err := h.svc.Summary(c.Request.Context(), c.Param("code"), token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
