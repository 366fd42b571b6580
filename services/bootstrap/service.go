package bootstrap

import (
	"context"
	"fmt"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/ambassador"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/campaign"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/referral"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by this module, in dependency order.
func Models() []any {
	return []any{
		&business.Business{},
		&ambassador.Ambassador{},
		&referral.Referral{},
		&event.ReferralEvent{},
		&campaign.Campaign{},
		&campaign.Message{},
	}
}

type Service struct {
	db         *gorm.DB
	config     *config.Config
	businesses *business.Service
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Config     *config.Config
	Businesses *business.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, config: p.Config, businesses: p.Businesses}
}

func (s *Service) Run(ctx context.Context) error {
	if s.config.Database.AutoMigrate {
		if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		zap.L().Info("[bootstrap] schema migrated")
	}

	return s.seed(ctx)
}

func (s *Service) seed(ctx context.Context) error {
	b := s.config.Bootstrap
	if b.OwnerID == "" || b.BusinessName == "" {
		zap.L().Debug("[bootstrap] no bootstrap business configured")
		return nil
	}

	created, err := s.businesses.CreateBusiness(ctx, b.OwnerID, business.CreateBusinessRequest{Name: b.BusinessName})
	if err != nil {
		if errutil.From(err).Code == errutil.StatusConflict {
			zap.L().Info("[bootstrap] business already exists", zap.String("name", b.BusinessName))
			return nil
		}
		return err
	}

	zap.L().Info("[bootstrap] business created", zap.String("business_id", created.ID), zap.String("slug", created.Slug))
	return nil
}
