package referral

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/pkg/security"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/event"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTrackRouter(t *testing.T) (*gin.Engine, *attribution.Codec, *recordingLogger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, events := newTestService(t)
	keys, err := security.DeriveKeys([]byte("test-root-secret"))
	require.NoError(t, err)
	codec := attribution.NewCodec(keys)

	r := gin.New()
	r.Use(middleware.Error())
	r.POST("/api/track-conversion", NewHandler(svc, codec).TrackConversion)
	return r, codec, events
}

func postTrack(r *gin.Engine, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/track-conversion",
		strings.NewReader(`{"eventType":"signup_submitted","name":"Jane","email":"jane@example.com","consent":true}`))
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: attribution.CookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func rejectionReason(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Error.Details, 1)
	require.Equal(t, "reason", body.Error.Details[0].Field)
	return body.Error.Details[0].Message
}

func TestTrackConversionRequiresAttribution(t *testing.T) {
	r, codec, events := newTrackRouter(t)

	valid, err := codec.EncodeCookie(codec.IssueAttributionCookie("amb-1", "ACME-1", "biz-1", attribution.SourceReferralLink))
	require.NoError(t, err)

	expired, err := codec.EncodeCookie(attribution.CookiePayload{
		ID:         "amb-1",
		Code:       "ACME-1",
		BusinessID: "biz-1",
		Timestamp:  time.Now().Add(-31 * 24 * time.Hour).UnixMilli(),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie string
		reason attribution.Reason
	}{
		{name: "no cookie", cookie: "", reason: attribution.ReasonNoCookie},
		{name: "tampered", cookie: strings.SplitN(valid, ".", 2)[0] + ".AAAA", reason: attribution.ReasonParseError},
		{name: "expired", cookie: expired, reason: attribution.ReasonExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postTrack(r, tt.cookie)
			require.Equal(t, string(tt.reason), rejectionReason(t, w))
		})
	}
	require.Empty(t, events.types())

	w := postTrack(r, valid)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res TrackConversionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.True(t, res.Tracked)
	require.True(t, res.Created)
	require.NotEmpty(t, res.ReferralID)
	require.Equal(t, []event.EventType{event.SignupSubmitted}, events.types())
}
