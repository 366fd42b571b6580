package campaign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/featureflags"
	"smallbiznis-referral/pkg/linkcheck"
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/pkg/sequence"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]string

func (s staticVerifier) Verify(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", middleware.ErrInvalidToken
}

type fixture struct {
	engine *gin.Engine
	svc    *Service
	biz    *business.Business
	sender *countingSender
	events *recordingLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t, &business.Business{}, &Campaign{}, &Message{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Dispatch.Token = "cron-secret"
	cfg.Dispatch.BatchSize = 10

	events := &recordingLogger{}
	bizSvc := business.NewService(business.ServiceParams{DB: db, Node: node})
	biz, err := bizSvc.CreateBusiness(context.Background(), "owner-1", business.CreateBusinessRequest{Name: "Acme"})
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Events: events, Businesses: bizSvc})
	sender := &countingSender{calls: map[string]int{}}
	runner := NewRunner(RunnerParams{
		Config:  cfg,
		DB:      db,
		Senders: Senders{ChannelEmail: sender, ChannelSMS: sender},
		Events:  events,
		Flags:   featureflags.Static{},
		Seq:     sequence.NewMemoryGenerator(),
	})

	r := gin.New()
	r.Use(middleware.Error())
	registerRoutes(routeParams{
		Engine:   r,
		Handler:  NewHandler(cfg, svc, runner, linkcheck.New()),
		Business: bizSvc,
		Auth:     staticVerifier{"t-owner": "owner-1", "t-other": "other"},
	})

	return &fixture{engine: r, svc: svc, biz: biz, sender: sender, events: events}
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) createCampaign(t *testing.T) *Campaign {
	t.Helper()
	w := f.do(http.MethodPost, "/api/businesses/"+f.biz.ID+"/campaigns", "t-owner",
		`{"name":"Spring promo","channel":"email","subject":"Spring is here"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var c Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	require.Equal(t, StatusDraft, c.Status)
	return &c
}

func TestEnqueueAndOwnerDispatch(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t)

	w := f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/messages", "t-owner",
		`{"messages":[{"recipient":"A@Example.com","body":"hi"},{"recipient":"b@example.com","body":"hey","subject":"Custom"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Equal(t, 2, f.events.count(event.CampaignMessageQueued))

	w = f.do(http.MethodPost, "/api/campaigns/dispatch", "t-other", `{"campaignId":"`+c.ID+`"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/dispatch", "t-owner", `{"campaignId":"missing"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/dispatch", "", `{"campaignId":"`+c.ID+`"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/dispatch", "t-owner", `{"campaignId":"`+c.ID+`","batchSize":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 2, res.Claimed)
	require.Equal(t, 2, res.Sent)
	require.Zero(t, f.events.count(event.CampaignDeliveryBatchStarted))
	require.Len(t, f.sender.calls, 2)

	var camp Campaign
	require.NoError(t, f.svc.db.First(&camp, "id = ?", c.ID).Error)
	require.Equal(t, StatusCompleted, camp.Status)

	var msgs []Message
	require.NoError(t, f.svc.db.Order("id").Find(&msgs, "campaign_id = ?", c.ID).Error)
	require.Equal(t, "a@example.com", msgs[0].Recipient)
	require.Equal(t, "Spring is here", msgs[0].Subject)
	require.Equal(t, "Custom", msgs[1].Subject)

	w = f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/messages", "t-owner", `{"messages":[{"recipient":"c@example.com","body":"late"}]}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCronDispatchToken(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t)
	_, err := f.svc.EnqueueMessages(context.Background(), c, EnqueueMessagesRequest{
		Messages: []MessageInput{{Recipient: "a@example.com", Body: "hi"}},
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/campaigns/dispatch/cron", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/campaigns/dispatch/cron", "cron-secreT", "").Code)

	w := f.do(http.MethodPost, "/api/campaigns/dispatch/cron", "cron-secret", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 1, res.Claimed)
	require.Equal(t, 1, f.events.count(event.CampaignDeliveryBatchStarted))
	require.Equal(t, 1, f.events.count(event.CampaignDeliveryBatchFinished))
}

func TestCronDispatchDisabledWithoutToken(t *testing.T) {
	f := newFixture(t)
	f.engine = gin.New()
	f.engine.Use(middleware.Error())
	h := &Handler{cronToken: ""}
	f.engine.POST("/cron", h.DispatchCron)

	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/cron", "", "").Code)
}

func TestAuthorizeMapsMissingBusiness(t *testing.T) {
	f := newFixture(t)
	c := &Campaign{ID: "orphan", BusinessID: "gone", Name: "x", Channel: ChannelSMS, Status: StatusDraft}
	require.NoError(t, f.svc.db.Create(c).Error)

	_, err := f.svc.Authorize(context.Background(), "owner-1", "orphan")
	require.Equal(t, errutil.StatusNotFound, errutil.From(err).Code)
}

func TestCreateCampaignValidation(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/businesses/"+f.biz.ID+"/campaigns", "t-owner", `{"name":"x","channel":"fax"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPauseAndResumeCampaign(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t)

	w := f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/messages", "t-owner",
		`{"messages":[{"recipient":"a@example.com","body":"hi"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/pause", "t-other", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/pause", "t-owner", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/pause", "t-owner", "")
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/messages", "t-owner",
		`{"messages":[{"recipient":"b@example.com","body":"hi"}]}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/dispatch", "t-owner", `{"campaignId":"`+c.ID+`"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/api/campaigns/dispatch/cron", "cron-secret", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Zero(t, res.Claimed)
	require.Empty(t, f.sender.calls)

	w = f.do(http.MethodPost, "/api/campaigns/"+c.ID+"/resume", "t-owner", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resumed Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resumed))
	require.Equal(t, StatusScheduled, resumed.Status)

	w = f.do(http.MethodPost, "/api/campaigns/dispatch", "t-owner", `{"campaignId":"`+c.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 1, res.Sent)
}
