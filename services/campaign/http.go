package campaign

import (
	"context"
	"net/http"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/linkcheck"
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/pkg/security"
	"smallbiznis-referral/services/business"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc       *Service
	runner    *Runner
	links     *linkcheck.Checker
	cronToken string
	batchSize int
}

func NewHandler(cfg *config.Config, svc *Service, runner *Runner, links *linkcheck.Checker) *Handler {
	return &Handler{
		svc:       svc,
		runner:    runner,
		links:     links,
		cronToken: cfg.Dispatch.Token,
		batchSize: cfg.Dispatch.BatchSize,
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.CreateCampaign(c.Request.Context(), business.FromContext(c).ID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) List(c *gin.Context) {
	out, err := h.svc.ListCampaigns(c.Request.Context(), business.FromContext(c).ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": out})
}

func (h *Handler) EnqueueMessages(c *gin.Context) {
	var req EnqueueMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	camp, err := h.svc.Authorize(c.Request.Context(), middleware.UserID(c), c.Param("campaign_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	out, err := h.svc.EnqueueMessages(c.Request.Context(), camp, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, out)
}

func (h *Handler) Pause(c *gin.Context) {
	h.changeStatus(c, h.svc.PauseCampaign)
}

func (h *Handler) Resume(c *gin.Context) {
	h.changeStatus(c, h.svc.ResumeCampaign)
}

func (h *Handler) changeStatus(c *gin.Context, fn func(context.Context, *Campaign) (*Campaign, error)) {
	camp, err := h.svc.Authorize(c.Request.Context(), middleware.UserID(c), c.Param("campaign_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	out, err := fn(c.Request.Context(), camp)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Dispatch runs one batch for a campaign on behalf of its owner. Batch
// events are left to the scheduled run.
func (h *Handler) Dispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	camp, err := h.svc.Authorize(c.Request.Context(), middleware.UserID(c), req.CampaignID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if camp.Status == StatusPaused {
		_ = c.Error(errutil.Conflict("campaign is paused", nil))
		return
	}

	res, err := h.runner.Dispatch(c.Request.Context(), DispatchOptions{
		BatchSize:       req.BatchSize,
		CampaignID:      camp.ID,
		SkipBatchEvents: true,
	})
	if err != nil {
		_ = c.Error(errutil.Internal("dispatch failed", err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// DispatchCron is called by an external scheduler holding the dispatch token.
func (h *Handler) DispatchCron(c *gin.Context) {
	token := middleware.BearerToken(c)
	if h.cronToken == "" || token == "" || !security.EqualString(token, h.cronToken) {
		zap.L().Warn("rejected cron dispatch call", zap.String("client_ip", c.ClientIP()))
		_ = c.Error(errutil.Unauthorized("invalid dispatch token", nil))
		return
	}

	res, err := h.runner.Dispatch(c.Request.Context(), DispatchOptions{BatchSize: h.batchSize})
	if err != nil {
		_ = c.Error(errutil.Internal("dispatch failed", err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// Preflight reports whether links meant for a campaign body resolve.
func (h *Handler) Preflight(c *gin.Context) {
	var req PreflightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	results := h.links.CheckAll(c.Request.Context(), req.URLs)
	ok := true
	for _, r := range results {
		ok = ok && r.Reachable
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok, "results": results})
}
