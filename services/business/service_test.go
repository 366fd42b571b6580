package business

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/middleware"
	"smallbiznis-referral/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	db := testutil.NewTestDB(t, &Business{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreateBusinessSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBusiness(ctx, "owner-1", CreateBusinessRequest{Name: "Acme Plumbing & Co"})
	require.NoError(t, err)
	require.Equal(t, "acme-plumbing-and-co", b.Slug)
	require.Equal(t, "owner-1", b.OwnerID)

	_, err = svc.CreateBusiness(ctx, "owner-2", CreateBusinessRequest{Name: "Acme Plumbing & Co"})
	require.Equal(t, errutil.StatusConflict, errutil.From(err).Code)
}

func TestRequireOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBusiness(ctx, "owner-1", CreateBusinessRequest{Name: "Acme"})
	require.NoError(t, err)

	got, err := svc.RequireOwner(ctx, b.ID, "owner-1")
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	_, err = svc.RequireOwner(ctx, b.ID, "intruder")
	require.Equal(t, errutil.StatusForbidden, errutil.From(err).Code)

	_, err = svc.RequireOwner(ctx, "missing", "owner-1")
	require.Equal(t, errutil.StatusNotFound, errutil.From(err).Code)
}

type staticVerifier map[string]string

func (s staticVerifier) Verify(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", middleware.ErrInvalidToken
}

func TestOwnerOnlyRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService(t)
	b, err := svc.CreateBusiness(context.Background(), "owner-1", CreateBusinessRequest{Name: "Acme"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Error())
	registerRoutes(r, NewHandler(svc), svc, staticVerifier{"t-owner": "owner-1", "t-other": "other"})

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/businesses/"+b.ID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, do("t-owner"))
	require.Equal(t, http.StatusForbidden, do("t-other"))
	require.Equal(t, http.StatusUnauthorized, do("bogus"))
}
