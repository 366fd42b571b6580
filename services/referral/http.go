package referral

import (
	"net/http"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc   *Service
	codec *attribution.Codec
}

func NewHandler(svc *Service, codec *attribution.Codec) *Handler {
	return &Handler{svc: svc, codec: codec}
}

// TrackConversion is public. The caller is identified only by the
// attribution cookie set on the referral click.
func (h *Handler) TrackConversion(c *gin.Context) {
	attr := h.codec.FromRequest(c)
	if !attr.Valid {
		_ = c.Error(errutil.Unauthorized("no valid referral attribution", nil,
			errutil.WithDetails(errutil.Detail{Field: "reason", Message: string(attr.Reason)})))
		return
	}

	var req TrackConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	res, err := h.svc.TrackConversion(c.Request.Context(), attr.Ambassador, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Complete(c *gin.Context) {
	ref, err := h.svc.CompleteReferral(c.Request.Context(), business.FromContext(c).ID, c.Param("referral_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (h *Handler) Manual(c *gin.Context) {
	var req ManualConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.RecordManualConversion(c.Request.Context(), business.FromContext(c).ID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func (h *Handler) List(c *gin.Context) {
	var req ListReferralsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	resp, err := h.svc.ListReferrals(c.Request.Context(), business.FromContext(c).ID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
