package campaign

import (
	"context"
	"strings"

	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/repository"
	"smallbiznis-referral/services/business"
	"smallbiznis-referral/services/event"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	events     event.Logger
	businesses *business.Service
	campaigns  repository.Repository[Campaign]
	messages   repository.Repository[Message]
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Events     event.Logger
	Businesses *business.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		events:     p.Events,
		businesses: p.Businesses,
		campaigns:  repository.ProvideStore[Campaign](p.DB),
		messages:   repository.ProvideStore[Message](p.DB),
	}
}

func (s *Service) CreateCampaign(ctx context.Context, businessID string, req CreateCampaignRequest) (*Campaign, error) {
	if !req.Channel.Valid() {
		return nil, errutil.BadRequest("unsupported channel", nil)
	}

	c := &Campaign{
		ID:         s.node.Generate().String(),
		BusinessID: businessID,
		Name:       strings.TrimSpace(req.Name),
		Channel:    req.Channel,
		Subject:    strings.TrimSpace(req.Subject),
		Status:     StatusDraft,
	}
	if err := s.campaigns.Create(ctx, c); err != nil {
		zap.L().Error("failed to create campaign", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to create campaign", err)
	}
	return c, nil
}

func (s *Service) ListCampaigns(ctx context.Context, businessID string) ([]*Campaign, error) {
	out, err := s.campaigns.Find(ctx, &Campaign{BusinessID: businessID})
	if err != nil {
		return nil, errutil.Internal("failed to list campaigns", err)
	}
	return out, nil
}

// Authorize loads the campaign and checks that userID owns its business.
func (s *Service) Authorize(ctx context.Context, userID, campaignID string) (*Campaign, error) {
	c, err := s.campaigns.FindOne(ctx, &Campaign{ID: campaignID})
	if err != nil {
		zap.L().Error("failed to load campaign", zap.String("campaign_id", campaignID), zap.Error(err))
		return nil, errutil.Internal("failed to load campaign", err)
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	if _, err := s.businesses.RequireOwner(ctx, c.BusinessID, userID); err != nil {
		if errutil.From(err).Code == errutil.StatusNotFound {
			return nil, errutil.NotFound("campaign not found", nil)
		}
		return nil, err
	}
	return c, nil
}

// EnqueueMessages queues one message per recipient on c. Subjects default to
// the campaign subject.
func (s *Service) EnqueueMessages(ctx context.Context, c *Campaign, req EnqueueMessagesRequest) (*EnqueueMessagesResponse, error) {
	if c.Status == StatusCompleted || c.Status == StatusPaused {
		return nil, errutil.Conflict("campaign does not accept new messages", nil)
	}

	msgs := make([]*Message, 0, len(req.Messages))
	for _, in := range req.Messages {
		subject := strings.TrimSpace(in.Subject)
		if subject == "" {
			subject = c.Subject
		}
		recipient := strings.TrimSpace(in.Recipient)
		if c.Channel == ChannelEmail {
			recipient = strings.ToLower(recipient)
		}
		msgs = append(msgs, &Message{
			ID:            s.node.Generate().String(),
			CampaignID:    c.ID,
			BusinessID:    c.BusinessID,
			Channel:       c.Channel,
			Recipient:     recipient,
			RecipientName: strings.TrimSpace(in.Name),
			Subject:       subject,
			Body:          in.Body,
			Status:        MessageQueued,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.messages.WithTrx(tx).BatchCreate(ctx, msgs); err != nil {
			return err
		}
		if c.Status == StatusDraft {
			return tx.Model(&Campaign{}).Where("id = ? AND status = ?", c.ID, StatusDraft).
				Update("status", StatusScheduled).Error
		}
		return nil
	})
	if err != nil {
		zap.L().Error("failed to enqueue campaign messages", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, errutil.Internal("failed to enqueue messages", err)
	}

	if c.Status == StatusDraft {
		c.Status = StatusScheduled
	}

	out := &EnqueueMessagesResponse{Queued: len(msgs), IDs: make([]string, 0, len(msgs))}
	for _, m := range msgs {
		out.IDs = append(out.IDs, m.ID)
		s.events.LogReferralEvent(ctx, event.Input{
			BusinessID: c.BusinessID,
			EventType:  event.CampaignMessageQueued,
			Source:     eventSource,
			Metadata: map[string]any{
				"campaign_id": c.ID,
				"message_id":  m.ID,
				"channel":     string(m.Channel),
			},
		})
	}
	return out, nil
}

// PauseCampaign stops dispatch of c's queued messages. Messages already
// claimed by a running batch still finish.
func (s *Service) PauseCampaign(ctx context.Context, c *Campaign) (*Campaign, error) {
	return s.transition(ctx, c, []Status{StatusDraft, StatusScheduled, StatusSending}, StatusPaused)
}

// ResumeCampaign makes a paused campaign's queued messages claimable again.
func (s *Service) ResumeCampaign(ctx context.Context, c *Campaign) (*Campaign, error) {
	return s.transition(ctx, c, []Status{StatusPaused}, StatusScheduled)
}

func (s *Service) transition(ctx context.Context, c *Campaign, from []Status, to Status) (*Campaign, error) {
	res := s.db.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND status IN ?", c.ID, from).
		Update("status", to)
	if res.Error != nil {
		zap.L().Error("failed to update campaign status", zap.String("campaign_id", c.ID), zap.Error(res.Error))
		return nil, errutil.Internal("failed to update campaign", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("campaign cannot move to "+string(to), nil)
	}

	zap.L().Info("campaign status changed",
		zap.String("campaign_id", c.ID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(to)),
	)
	c.Status = to
	return c, nil
}

// CountActive counts campaigns that still have work scheduled or in flight.
func (s *Service) CountActive(ctx context.Context, businessID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Campaign{}).
		Where("business_id = ? AND status IN ?", businessID, []Status{StatusScheduled, StatusSending}).
		Count(&n).Error
	return n, err
}
