package business

import (
	"context"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	node       *snowflake.Node
	businesses repository.Repository[Business]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:       p.Node,
		businesses: repository.ProvideStore[Business](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return zap.L()
	}
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Service) CreateBusiness(ctx context.Context, ownerID string, req CreateBusinessRequest) (*Business, error) {
	zapLog := logger(ctx)

	slugName := slug.Make(req.Slug)
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}
	if slugName == "" {
		return nil, errutil.BadRequest("business name must contain letters or digits", nil)
	}

	exist, err := s.businesses.FindOne(ctx, &Business{Slug: slugName})
	if err != nil {
		zapLog.Error("failed query business by slug", zap.Error(err))
		return nil, errutil.Internal("failed to create business", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("business slug already taken", nil)
	}

	b := &Business{
		ID:      s.node.Generate().String(),
		OwnerID: ownerID,
		Name:    req.Name,
		Slug:    slugName,
	}
	if err := s.businesses.Create(ctx, b); err != nil {
		zapLog.Error("failed to create business", zap.Error(err))
		return nil, errutil.Internal("failed to create business", err)
	}

	return b, nil
}

func (s *Service) GetBusiness(ctx context.Context, businessID string) (*Business, error) {
	if businessID == "" {
		return nil, errutil.NotFound("business not found", nil)
	}

	b, err := s.businesses.FindOne(ctx, &Business{ID: businessID})
	if err != nil {
		logger(ctx).Error("failed query business", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to load business", err)
	}
	if b == nil {
		return nil, errutil.NotFound("business not found", nil)
	}
	return b, nil
}

// RequireOwner loads the business and checks that userID owns it.
func (s *Service) RequireOwner(ctx context.Context, businessID, userID string) (*Business, error) {
	b, err := s.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if userID == "" || b.OwnerID != userID {
		logger(ctx).Warn("business ownership check failed",
			zap.String("business_id", businessID),
			zap.String("user_id", userID),
		)
		return nil, errutil.Forbidden("forbidden", nil)
	}
	return b, nil
}
