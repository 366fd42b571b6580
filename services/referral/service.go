package referral

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"smallbiznis-referral/pkg/db/option"
	"smallbiznis-referral/pkg/db/pagination"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/repository"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/event"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errUnknownAmbassador = errors.New("ambassador does not belong to business")

// AmbassadorDirectory answers whether an ambassador belongs to a business.
type AmbassadorDirectory interface {
	BelongsTo(ctx context.Context, businessID, ambassadorID string) (bool, error)
}

type Service struct {
	db          *gorm.DB
	node        *snowflake.Node
	events      event.Logger
	ambassadors AmbassadorDirectory
	referrals   repository.Repository[Referral]
	now         func() time.Time
}

type ServiceParams struct {
	fx.In

	DB          *gorm.DB
	Node        *snowflake.Node
	Events      event.Logger
	Ambassadors AmbassadorDirectory
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		events:      p.Events,
		ambassadors: p.Ambassadors,
		referrals:   repository.ProvideStore[Referral](p.DB),
		now:         time.Now,
	}
}

// highIntent events open a pending referral for the visitor.
var highIntent = map[event.EventType]bool{
	event.SignupSubmitted:   true,
	event.ConversionPending: true,
}

var trackable = map[event.EventType]bool{
	event.LinkVisit:           true,
	event.SignupSubmitted:     true,
	event.ConversionPending:   true,
	event.ScheduleCallClicked: true,
	event.ContactUsClicked:    true,
}

func encodeMetadata(m map[string]any) []byte {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TrackConversion records a conversion step for an attributed visitor. High
// intent events also create a pending referral unless the visitor already has
// one with this business.
func (s *Service) TrackConversion(ctx context.Context, attr *attribution.CookiePayload, req TrackConversionRequest) (*TrackConversionResult, error) {
	eventType := event.EventType(req.EventType)
	if !trackable[eventType] {
		return nil, errutil.BadRequest("unsupported event type", nil)
	}

	result := &TrackConversionResult{Tracked: true}
	email := normalizeEmail(req.Email)

	if highIntent[eventType] && (email != "" || req.Phone != "") {
		ref, created, err := s.findOrCreatePending(ctx, attr, req, email)
		if err != nil {
			return nil, err
		}
		result.ReferralID = ref.ID
		result.Created = created
	}

	s.events.LogReferralEvent(ctx, event.Input{
		BusinessID:   attr.BusinessID,
		AmbassadorID: attr.ID,
		ReferralID:   result.ReferralID,
		EventType:    eventType,
		Source:       attr.Source,
		Metadata:     req.Metadata,
	})

	return result, nil
}

func (s *Service) findOrCreatePending(ctx context.Context, attr *attribution.CookiePayload, req TrackConversionRequest, email string) (*Referral, bool, error) {
	query := &Referral{BusinessID: attr.BusinessID}
	if email != "" {
		query.ReferredEmail = email
	} else {
		query.ReferredPhone = req.Phone
	}

	existing, err := s.referrals.FindOne(ctx, query)
	if err != nil {
		zap.L().Error("failed to look up referral", zap.String("business_id", attr.BusinessID), zap.Error(err))
		return nil, false, errutil.Internal("failed to track conversion", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	key := dedupKey(email, req.Phone)
	ref := &Referral{
		ID:            s.node.Generate().String(),
		BusinessID:    attr.BusinessID,
		AmbassadorID:  attr.ID,
		DedupKey:      &key,
		ReferredName:  strings.TrimSpace(req.Name),
		ReferredEmail: email,
		ReferredPhone: strings.TrimSpace(req.Phone),
		Status:        StatusPending,
		ConsentGiven:  req.Consent,
		Metadata:      encodeMetadata(map[string]any{"code": attr.Code, "source": attr.Source}),
	}
	err = s.referrals.Create(ctx, ref)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent signup for the same contact won the insert.
		existing, err = s.referrals.FindOne(ctx, &Referral{BusinessID: attr.BusinessID, DedupKey: &key})
		if err == nil && existing != nil {
			return existing, false, nil
		}
		if err == nil {
			err = gorm.ErrDuplicatedKey
		}
	}
	if err != nil {
		zap.L().Error("failed to create referral", zap.String("business_id", attr.BusinessID), zap.Error(err))
		return nil, false, errutil.Internal("failed to track conversion", err)
	}
	return ref, true, nil
}

func dedupKey(email, phone string) string {
	if email != "" {
		return "email:" + email
	}
	return "phone:" + strings.TrimSpace(phone)
}

// CompleteReferral moves a pending referral to completed. The conditional
// update makes concurrent completions safe: only one of them wins.
func (s *Service) CompleteReferral(ctx context.Context, businessID, referralID string) (*Referral, error) {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&Referral{}).
		Where("id = ? AND business_id = ? AND status = ?", referralID, businessID, StatusPending).
		Updates(map[string]any{"status": StatusCompleted, "completed_at": now, "updated_at": now})
	if res.Error != nil {
		zap.L().Error("failed to complete referral", zap.String("referral_id", referralID), zap.Error(res.Error))
		return nil, errutil.Internal("failed to complete referral", res.Error)
	}

	ref, err := s.referrals.FindOne(ctx, &Referral{ID: referralID, BusinessID: businessID})
	if err != nil {
		return nil, errutil.Internal("failed to complete referral", err)
	}
	if ref == nil {
		return nil, errutil.NotFound("referral not found", nil)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("referral already completed", nil)
	}

	s.events.LogReferralEvent(ctx, event.Input{
		BusinessID:   businessID,
		AmbassadorID: ref.AmbassadorID,
		ReferralID:   ref.ID,
		EventType:    event.ConversionCompleted,
		Source:       "dashboard",
	})

	return ref, nil
}

// RecordManualConversion stores a conversion the business made offline.
func (s *Service) RecordManualConversion(ctx context.Context, businessID string, req ManualConversionRequest) (*Referral, error) {
	ok, err := s.ambassadors.BelongsTo(ctx, businessID, req.AmbassadorID)
	if err != nil {
		zap.L().Error("failed to check ambassador", zap.String("ambassador_id", req.AmbassadorID), zap.Error(err))
		return nil, errutil.Internal("failed to record conversion", err)
	}
	if !ok {
		return nil, errutil.NotFound("ambassador not found", errUnknownAmbassador)
	}

	now := s.now().UTC()
	ref := &Referral{
		ID:            s.node.Generate().String(),
		BusinessID:    businessID,
		AmbassadorID:  req.AmbassadorID,
		ReferredName:  strings.TrimSpace(req.Name),
		ReferredEmail: normalizeEmail(req.Email),
		ReferredPhone: strings.TrimSpace(req.Phone),
		Status:        StatusCompleted,
		ConsentGiven:  true,
		Metadata:      encodeMetadata(req.Metadata),
		CompletedAt:   &now,
	}
	if err := s.referrals.Create(ctx, ref); err != nil {
		zap.L().Error("failed to record manual conversion", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to record conversion", err)
	}

	s.events.LogReferralEvent(ctx, event.Input{
		BusinessID:   businessID,
		AmbassadorID: req.AmbassadorID,
		ReferralID:   ref.ID,
		EventType:    event.ManualConversionRecorded,
		Source:       "manual",
		Metadata:     req.Metadata,
	})

	return ref, nil
}

func (s *Service) ListReferrals(ctx context.Context, businessID string, req ListReferralsRequest) (*ListReferralsResponse, error) {
	p := req.Pagination.Normalized()
	query := &Referral{BusinessID: businessID, Status: req.Status}

	opts := []option.QueryOption{
		option.WithOrder("id DESC"),
		option.ApplyPagination(p),
	}
	if p.Cursor != "" {
		cur, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		opts = append(opts, option.WithWhere("id < ?", cur.ID))
	}

	rows, err := s.referrals.Find(ctx, query, opts...)
	if err != nil {
		zap.L().Error("failed to list referrals", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to list referrals", err)
	}

	page, info := pagination.BuildCursorPageInfo(rows, p.Limit, func(r *Referral) string {
		c, _ := pagination.EncodeCursor(pagination.Cursor{ID: r.ID})
		return c
	})
	return &ListReferralsResponse{Referrals: page, PageInfo: info}, nil
}

// CountByStatus tallies referrals for a business, optionally narrowed to one
// ambassador.
func (s *Service) CountByStatus(ctx context.Context, businessID, ambassadorID string) (Counts, error) {
	type row struct {
		Status Status
		N      int64
	}
	var rows []row

	q := s.db.WithContext(ctx).Model(&Referral{}).
		Select("status, COUNT(*) AS n").
		Where("business_id = ?", businessID)
	if ambassadorID != "" {
		q = q.Where("ambassador_id = ?", ambassadorID)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return Counts{}, err
	}

	var out Counts
	for _, r := range rows {
		switch r.Status {
		case StatusPending:
			out.Pending = r.N
		case StatusCompleted:
			out.Completed = r.N
		}
	}
	return out, nil
}
