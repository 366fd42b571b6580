package event

import (
	"net/http"

	"smallbiznis-referral/pkg/db/pagination"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	resp, err := h.svc.ListEvents(c.Request.Context(), business.FromContext(c).ID, p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Export(c *gin.Context) {
	res, err := h.svc.ExportEvents(c.Request.Context(), business.FromContext(c).ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
