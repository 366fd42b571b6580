package event

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"smallbiznis-referral/pkg/db/pagination"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewTestDB(t, &ReferralEvent{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node}), db
}

func countEvents(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&ReferralEvent{}).Count(&n).Error)
	return n
}

func TestLogReferralEventInserts(t *testing.T) {
	svc, db := newTestService(t)

	svc.LogReferralEvent(context.Background(), Input{
		BusinessID:   "b1",
		AmbassadorID: "a1",
		EventType:    LinkVisit,
		Source:       "referral_link",
		Device:       DeviceMobile,
		Metadata:     map[string]any{"utm_source": "sms"},
	})

	var ev ReferralEvent
	require.NoError(t, db.First(&ev).Error)
	require.Equal(t, "b1", ev.BusinessID)
	require.NotNil(t, ev.AmbassadorID)
	require.Equal(t, "a1", *ev.AmbassadorID)
	require.Nil(t, ev.ReferralID)
	require.JSONEq(t, `{"utm_source":"sms"}`, string(ev.Metadata))
}

func TestLogReferralEventSwallowsErrors(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NotPanics(t, func() {
		svc.LogReferralEvent(ctx, Input{EventType: LinkVisit})
		svc.LogReferralEvent(ctx, Input{BusinessID: "b1", EventType: "bogus"})
	})
	require.Equal(t, int64(0), countEvents(t, db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	require.NotPanics(t, func() {
		svc.LogReferralEvent(ctx, Input{BusinessID: "b1", EventType: LinkVisit})
	})
}

func TestLogReferralEventRecoversPanic(t *testing.T) {
	svc := &Service{}
	require.NotPanics(t, func() {
		svc.LogReferralEvent(context.Background(), Input{BusinessID: "b1", EventType: LinkVisit})
	})
}

func TestListEventsCursor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		svc.LogReferralEvent(ctx, Input{BusinessID: "b1", EventType: LinkVisit})
	}
	svc.LogReferralEvent(ctx, Input{BusinessID: "other", EventType: LinkVisit})

	first, err := svc.ListEvents(ctx, "b1", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.True(t, first.PageInfo.HasMore)
	require.Equal(t, base.Add(4*time.Minute), first.Events[0].CreatedAt.UTC())

	seen := map[string]bool{}
	for _, e := range first.Events {
		seen[e.ID] = true
	}

	cursor := first.PageInfo.NextCursor
	for cursor != "" {
		page, err := svc.ListEvents(ctx, "b1", pagination.Pagination{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, e := range page.Events {
			require.False(t, seen[e.ID])
			require.Equal(t, "b1", e.BusinessID)
			seen[e.ID] = true
		}
		cursor = page.PageInfo.NextCursor
	}
	require.Len(t, seen, 5)

	latest, err := svc.LatestEventAt(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, base.Add(4*time.Minute), latest.UTC())

	none, err := svc.LatestEventAt(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestListEventsBadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ListEvents(context.Background(), "b1", pagination.Pagination{Cursor: "!!"})
	require.Equal(t, errutil.StatusBadRequest, errutil.From(err).Code)
}

type fakeStorage struct {
	key  string
	body string
}

func (f *fakeStorage) Put(_ context.Context, key, _ string, r io.Reader, _ int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.key, f.body = key, string(b)
	return nil
}

func (f *fakeStorage) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.example.com/" + key, nil
}

func TestExportEvents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ExportEvents(ctx, "b1")
	require.Equal(t, errutil.StatusNotImplemented, errutil.From(err).Code)

	store := &fakeStorage{}
	svc.storage = store
	svc.LogReferralEvent(ctx, Input{BusinessID: "b1", EventType: ContactUsClicked, Source: "=HYPERLINK(\"x\")"})

	res, err := svc.ExportEvents(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, 1, res.Rows)
	require.Equal(t, store.key, res.ObjectKey)
	require.True(t, strings.HasPrefix(res.ObjectKey, "exports/b1/"))
	require.Contains(t, store.body, "contact_us_clicked")
	require.Contains(t, store.body, `'=HYPERLINK`)
}
