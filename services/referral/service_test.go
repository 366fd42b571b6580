package referral

import (
	"context"
	"sync"
	"testing"

	"smallbiznis-referral/pkg/db/pagination"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	inputs []event.Input
}

func (r *recordingLogger) LogReferralEvent(_ context.Context, in event.Input) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, in)
}

func (r *recordingLogger) types() []event.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.EventType, 0, len(r.inputs))
	for _, in := range r.inputs {
		out = append(out, in.EventType)
	}
	return out
}

type fakeDirectory map[string]string

func (f fakeDirectory) BelongsTo(_ context.Context, businessID, ambassadorID string) (bool, error) {
	return f[ambassadorID] == businessID, nil
}

func newTestService(t *testing.T) (*Service, *recordingLogger) {
	db := testutil.NewTestDB(t, &Referral{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	events := &recordingLogger{}
	svc := NewService(ServiceParams{
		DB:          db,
		Node:        node,
		Events:      events,
		Ambassadors: fakeDirectory{"amb-1": "biz-1"},
	})
	return svc, events
}

var attr = &attribution.CookiePayload{ID: "amb-1", Code: "ACME-1", BusinessID: "biz-1", Source: attribution.SourceReferralLink}

func TestTrackConversionCreatesPendingOnce(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	first, err := svc.TrackConversion(ctx, attr, TrackConversionRequest{
		EventType: string(event.SignupSubmitted), Name: "Jane", Email: " Jane@Example.com ", Consent: true,
	})
	require.NoError(t, err)
	require.True(t, first.Created)
	require.NotEmpty(t, first.ReferralID)

	second, err := svc.TrackConversion(ctx, attr, TrackConversionRequest{
		EventType: string(event.ConversionPending), Email: "jane@example.com",
	})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.ReferralID, second.ReferralID)

	counts, err := svc.CountByStatus(ctx, "biz-1", "")
	require.NoError(t, err)
	require.Equal(t, Counts{Pending: 1}, counts)

	require.Equal(t, []event.EventType{event.SignupSubmitted, event.ConversionPending}, events.types())
	require.Equal(t, first.ReferralID, events.inputs[0].ReferralID)
}

func TestTrackConversionLosingInsertReturnsWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// The winner's row is invisible to the email lookup, like a concurrent
	// insert that committed between lookup and create.
	key := "email:jane@example.com"
	winner := &Referral{ID: "ref-winner", BusinessID: "biz-1", AmbassadorID: "amb-1", Status: StatusPending, DedupKey: &key}
	require.NoError(t, svc.db.Create(winner).Error)

	res, err := svc.TrackConversion(ctx, attr, TrackConversionRequest{
		EventType: string(event.SignupSubmitted), Email: "jane@example.com",
	})
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, "ref-winner", res.ReferralID)

	var n int64
	require.NoError(t, svc.db.Model(&Referral{}).Where("business_id = ?", "biz-1").Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestManualConversionsDoNotCollide(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.RecordManualConversion(ctx, "biz-1", ManualConversionRequest{AmbassadorID: "amb-1", Name: "Walk-in"})
		require.NoError(t, err)
	}
}

func TestTrackConversionLowIntentDoesNotCreate(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	res, err := svc.TrackConversion(ctx, attr, TrackConversionRequest{EventType: string(event.ContactUsClicked), Email: "a@b.co"})
	require.NoError(t, err)
	require.Empty(t, res.ReferralID)
	require.Len(t, events.inputs, 1)

	_, err = svc.TrackConversion(ctx, attr, TrackConversionRequest{EventType: string(event.PayoutReleased)})
	require.Equal(t, errutil.StatusBadRequest, errutil.From(err).Code)
}

func TestCompleteReferral(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	res, err := svc.TrackConversion(ctx, attr, TrackConversionRequest{EventType: string(event.SignupSubmitted), Email: "x@y.co"})
	require.NoError(t, err)

	ref, err := svc.CompleteReferral(ctx, "biz-1", res.ReferralID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, ref.Status)
	require.NotNil(t, ref.CompletedAt)
	require.Contains(t, events.types(), event.ConversionCompleted)

	_, err = svc.CompleteReferral(ctx, "biz-1", res.ReferralID)
	require.Equal(t, errutil.StatusConflict, errutil.From(err).Code)

	_, err = svc.CompleteReferral(ctx, "biz-2", res.ReferralID)
	require.Equal(t, errutil.StatusNotFound, errutil.From(err).Code)
}

func TestRecordManualConversion(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordManualConversion(ctx, "biz-1", ManualConversionRequest{AmbassadorID: "stranger", Name: "Bob"})
	require.Equal(t, errutil.StatusNotFound, errutil.From(err).Code)

	ref, err := svc.RecordManualConversion(ctx, "biz-1", ManualConversionRequest{AmbassadorID: "amb-1", Name: "Bob"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, ref.Status)
	require.Equal(t, []event.EventType{event.ManualConversionRecorded}, events.types())

	counts, err := svc.CountByStatus(ctx, "biz-1", "amb-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), counts.Completed)
	require.Equal(t, int64(1), counts.Total())
}

func TestListReferralsPages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordManualConversion(ctx, "biz-1", ManualConversionRequest{AmbassadorID: "amb-1", Name: "n"})
		require.NoError(t, err)
	}

	page, err := svc.ListReferrals(ctx, "biz-1", ListReferralsRequest{Pagination: pagination.Pagination{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Referrals, 2)
	require.True(t, page.PageInfo.HasMore)

	next, err := svc.ListReferrals(ctx, "biz-1", ListReferralsRequest{Pagination: pagination.Pagination{Limit: 2, Cursor: page.PageInfo.NextCursor}})
	require.NoError(t, err)
	require.Len(t, next.Referrals, 1)
	require.False(t, next.PageInfo.HasMore)

	pending, err := svc.ListReferrals(ctx, "biz-1", ListReferralsRequest{Status: StatusPending})
	require.NoError(t, err)
	require.Empty(t, pending.Referrals)
}
