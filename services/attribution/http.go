package attribution

import (
	"net/http"
	"strings"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/event"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	pathClientHome      = "/"
	pathReferralProgram = "/our-referral-program"
	sourceLandingPage   = "landing_page"
)

type Handler struct {
	codec  *Codec
	events event.Logger
	secure bool
}

func NewHandler(cfg *config.Config, codec *Codec, events event.Logger) *Handler {
	return &Handler{codec: codec, events: events, secure: cfg.IsProduction()}
}

// Redirect handles a referral link click. It records a link_visit, sets the
// attribution cookie and sends the visitor to the landing page. A link with
// missing identifiers only redirects home.
func (h *Handler) Redirect(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	ambassadorID := strings.TrimSpace(c.Query("ambassador_id"))
	businessID := strings.TrimSpace(c.Query("business_id"))

	if code == "" || ambassadorID == "" || businessID == "" {
		c.Redirect(http.StatusFound, pathClientHome)
		return
	}

	metadata := map[string]any{"code": code}
	for key, values := range c.Request.URL.Query() {
		if strings.HasPrefix(key, "utm_") && len(values) > 0 {
			metadata[key] = values[0]
		}
	}

	h.events.LogReferralEvent(c.Request.Context(), event.Input{
		BusinessID:   businessID,
		AmbassadorID: ambassadorID,
		EventType:    event.LinkVisit,
		Source:       SourceReferralLink,
		Device:       event.InferDevice(c.GetHeader("User-Agent")),
		Metadata:     metadata,
	})

	payload := h.codec.IssueAttributionCookie(ambassadorID, code, businessID, SourceReferralLink)
	value, err := h.codec.EncodeCookie(payload)
	if err != nil {
		zap.L().Warn("failed to encode attribution cookie", zap.String("business_id", businessID), zap.Error(err))
	} else {
		setCookie(c, value, h.secure)
	}

	target := pathReferralProgram
	if c.Query("destination") == "client" {
		target = pathClientHome
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) Verify(c *gin.Context) {
	attr := h.codec.FromRequest(c)
	if !attr.Valid {
		resp := verifyAttributionResponse{Reason: attr.Reason}
		if attr.Reason == ReasonExpired {
			days := attr.DaysOld
			resp.DaysOld = &days
		}
		if attr.Reason != ReasonNoCookie {
			clearCookie(c, h.secure)
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	days, hours := attr.DaysRemaining, attr.HoursRemaining
	c.JSON(http.StatusOK, verifyAttributionResponse{
		HasAttribution: true,
		Ambassador: &ambassadorOutput{
			ID:         attr.Ambassador.ID,
			Code:       attr.Ambassador.Code,
			BusinessID: attr.Ambassador.BusinessID,
			Source:     attr.Ambassador.Source,
		},
		DaysRemaining:  &days,
		HoursRemaining: &hours,
	})
}

// TrackEvent records landing-page interactions of an attributed visitor.
func (h *Handler) TrackEvent(c *gin.Context) {
	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	eventType := event.EventType(req.EventType)
	if eventType != event.ScheduleCallClicked && eventType != event.ContactUsClicked {
		_ = c.Error(errutil.BadRequest("unsupported event type", nil))
		return
	}

	attr := h.codec.FromRequest(c)
	if !attr.Valid {
		c.JSON(http.StatusOK, gin.H{"tracked": false, "reason": attr.Reason})
		return
	}

	h.events.LogReferralEvent(c.Request.Context(), event.Input{
		BusinessID:   attr.Ambassador.BusinessID,
		AmbassadorID: attr.Ambassador.ID,
		EventType:    eventType,
		Source:       sourceLandingPage,
		Device:       event.InferDevice(c.GetHeader("User-Agent")),
		Metadata:     req.Metadata,
	})

	c.JSON(http.StatusAccepted, gin.H{"tracked": true})
}
