package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smallbiznis-referral/pkg/db/option"
	"smallbiznis-referral/pkg/db/pagination"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/minio"
	"smallbiznis-referral/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	insertTimeout  = 5 * time.Second
	exportMaxRows  = 50000
	exportURLTTL   = 15 * time.Minute
	exportMimeType = "text/csv"
)

var (
	errMissingBusiness = errors.New("business_id is required")
	errUnknownType     = errors.New("unknown event type")
)

// Logger is what other services depend on to record events.
type Logger interface {
	LogReferralEvent(ctx context.Context, in Input)
}

type Service struct {
	node    *snowflake.Node
	events  repository.Repository[ReferralEvent]
	storage minio.Storage
	now     func() time.Time
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Storage minio.Storage `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:    p.Node,
		events:  repository.ProvideStore[ReferralEvent](p.DB),
		storage: p.Storage,
		now:     time.Now,
	}
}

// LogReferralEvent records one event. It never fails the caller: every error,
// including a panic inside the store, is logged at warn and dropped.
func (s *Service) LogReferralEvent(ctx context.Context, in Input) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("referral event logging panicked",
				zap.String("business_id", in.BusinessID),
				zap.String("event_type", string(in.EventType)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := s.insert(ctx, in); err != nil {
		zap.L().Warn("failed to log referral event",
			zap.String("business_id", in.BusinessID),
			zap.String("event_type", string(in.EventType)),
			zap.Error(err),
		)
	}
}

func (s *Service) insert(ctx context.Context, in Input) error {
	if in.BusinessID == "" {
		return errMissingBusiness
	}
	if !in.EventType.Valid() {
		return fmt.Errorf("%w: %q", errUnknownType, in.EventType)
	}

	ev := &ReferralEvent{
		ID:           s.node.Generate().String(),
		BusinessID:   in.BusinessID,
		AmbassadorID: optional(in.AmbassadorID),
		ReferralID:   optional(in.ReferralID),
		EventType:    in.EventType,
		Source:       in.Source,
		Device:       in.Device,
		CreatedAt:    s.now().UTC(),
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		ev.Metadata = raw
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()

	return s.events.Create(ctx, ev)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ListEvents pages through a business's events newest first.
func (s *Service) ListEvents(ctx context.Context, businessID string, p pagination.Pagination) (*ListEventsResponse, error) {
	p = p.Normalized()

	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(p),
	}
	if p.Cursor != "" {
		cur, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		at, err := time.Parse(time.RFC3339Nano, cur.CreatedAt)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		opts = append(opts, option.WithWhere("(created_at < ? OR (created_at = ? AND id < ?))", at, at, cur.ID))
	}

	rows, err := s.events.Find(ctx, &ReferralEvent{BusinessID: businessID}, opts...)
	if err != nil {
		zap.L().Error("failed to list referral events", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to list events", err)
	}

	page, info := pagination.BuildCursorPageInfo(rows, p.Limit, func(e *ReferralEvent) string {
		c, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        e.ID,
		})
		return c
	})

	return &ListEventsResponse{Events: page, PageInfo: info}, nil
}

// LatestEventAt returns nil when the business has no events yet.
func (s *Service) LatestEventAt(ctx context.Context, businessID string) (*time.Time, error) {
	ev, err := s.events.FindOne(ctx, &ReferralEvent{BusinessID: businessID}, option.WithOrder("created_at DESC"))
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, nil
	}
	at := ev.CreatedAt
	return &at, nil
}

// RecentForAmbassador returns the latest events attributed to one ambassador.
func (s *Service) RecentForAmbassador(ctx context.Context, businessID, ambassadorID string, limit int) ([]*ReferralEvent, error) {
	return s.events.Find(ctx, &ReferralEvent{BusinessID: businessID},
		option.WithWhere("ambassador_id = ?", ambassadorID),
		option.WithOrder("created_at DESC, id DESC"),
		option.WithLimit(limit),
	)
}

// ExportEvents writes the business's events to object storage as CSV and
// returns a short-lived download link.
func (s *Service) ExportEvents(ctx context.Context, businessID string) (*ExportResult, error) {
	if s.storage == nil {
		return nil, errutil.NotImplemented("event export is not configured", nil)
	}

	rows, err := s.events.Find(ctx, &ReferralEvent{BusinessID: businessID},
		option.WithOrder("created_at ASC, id ASC"),
		option.WithLimit(exportMaxRows),
	)
	if err != nil {
		zap.L().Error("failed to load events for export", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to export events", err)
	}

	body, err := renderCSV(rows)
	if err != nil {
		return nil, errutil.Internal("failed to export events", err)
	}

	key := fmt.Sprintf("exports/%s/referral-events-%s.csv", businessID, s.now().UTC().Format("20060102T150405Z"))
	if err := s.storage.Put(ctx, key, exportMimeType, bytes.NewReader(body), int64(len(body))); err != nil {
		zap.L().Error("failed to upload event export", zap.String("key", key), zap.Error(err))
		return nil, errutil.Internal("failed to export events", err)
	}

	url, err := s.storage.PresignedURL(ctx, key, exportURLTTL)
	if err != nil {
		zap.L().Error("failed to presign event export", zap.String("key", key), zap.Error(err))
		return nil, errutil.Internal("failed to export events", err)
	}

	return &ExportResult{ObjectKey: key, URL: url, Rows: len(rows)}, nil
}
