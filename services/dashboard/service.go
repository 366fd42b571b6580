// Package dashboard assembles the owner overview from independent reads.
package dashboard

import (
	"context"
	"time"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/referral"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type (
	BusinessReader interface {
		GetBusiness(ctx context.Context, businessID string) (*business.Business, error)
	}
	AmbassadorCounter interface {
		Count(ctx context.Context, businessID string) (int64, error)
	}
	ReferralCounter interface {
		CountByStatus(ctx context.Context, businessID, ambassadorID string) (referral.Counts, error)
	}
	EventClock interface {
		LatestEventAt(ctx context.Context, businessID string) (*time.Time, error)
	}
	CampaignCounter interface {
		CountActive(ctx context.Context, businessID string) (int64, error)
	}
)

type Overview struct {
	Business        *business.Business `json:"business"`
	Ambassadors     int64              `json:"ambassadors"`
	Referrals       referral.Counts    `json:"referrals"`
	ActiveCampaigns int64              `json:"active_campaigns"`
	LastEventAt     *time.Time         `json:"last_event_at"`
}

type Service struct {
	businesses  BusinessReader
	ambassadors AmbassadorCounter
	referrals   ReferralCounter
	events      EventClock
	campaigns   CampaignCounter
}

type ServiceParams struct {
	fx.In

	Businesses  BusinessReader
	Ambassadors AmbassadorCounter
	Referrals   ReferralCounter
	Events      EventClock
	Campaigns   CampaignCounter
}

func NewService(p ServiceParams) *Service {
	return &Service{
		businesses:  p.Businesses,
		ambassadors: p.Ambassadors,
		referrals:   p.Referrals,
		events:      p.Events,
		campaigns:   p.Campaigns,
	}
}

// Overview runs the reads concurrently; none depends on another.
func (s *Service) Overview(ctx context.Context, businessID string) (*Overview, error) {
	out := &Overview{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.Business, err = s.businesses.GetBusiness(gctx, businessID)
		return err
	})
	g.Go(func() (err error) {
		out.Ambassadors, err = s.ambassadors.Count(gctx, businessID)
		return err
	})
	g.Go(func() (err error) {
		out.Referrals, err = s.referrals.CountByStatus(gctx, businessID, "")
		return err
	})
	g.Go(func() (err error) {
		out.ActiveCampaigns, err = s.campaigns.CountActive(gctx, businessID)
		return err
	})
	g.Go(func() (err error) {
		out.LastEventAt, err = s.events.LatestEventAt(gctx, businessID)
		return err
	})

	if err := g.Wait(); err != nil {
		if be := errutil.From(err); be.Code != errutil.StatusInternal && be.Code != errutil.StatusUnknown {
			return nil, err
		}
		zap.L().Error("failed to load dashboard", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to load dashboard", err)
	}
	return out, nil
}
