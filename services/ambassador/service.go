package ambassador

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/errutil"
	"smallbiznis-referral/pkg/mailer"
	"smallbiznis-referral/pkg/repository"
	"smallbiznis-referral/pkg/sequence"
	"smallbiznis-referral/pkg/task"
	"smallbiznis-referral/services/attribution"
	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/referral"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxCodePrefix     = 12
	maxCodeAttempts   = 5
	recentEvents      = 20
	accessMailTimeout = 30 * time.Second
)

type EventReader interface {
	RecentForAmbassador(ctx context.Context, businessID, ambassadorID string, limit int) ([]*event.ReferralEvent, error)
}

type ReferralCounter interface {
	CountByStatus(ctx context.Context, businessID, ambassadorID string) (referral.Counts, error)
}

type Service struct {
	cfg         *config.Config
	db          *gorm.DB
	node        *snowflake.Node
	seq         sequence.Generator
	codec       *attribution.Codec
	access      *AccessMailer
	enqueuer    task.Enqueuer
	events      EventReader
	referrals   ReferralCounter
	ambassadors repository.Repository[Ambassador]
}

type ServiceParams struct {
	fx.In

	Config *config.Config
	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator
	Codec  *attribution.Codec
	Mailer mailer.Mailer
	Events EventReader

	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:         p.Config,
		db:          p.DB,
		node:        p.Node,
		seq:         p.Seq,
		codec:       p.Codec,
		enqueuer:    p.Enqueuer,
		events:      p.Events,
		ambassadors: repository.ProvideStore[Ambassador](p.DB),
		access: NewAccessMailer(AccessMailerParams{
			Config: p.Config,
			DB:     p.DB,
			Codec:  p.Codec,
			Mailer: p.Mailer,
		}),
	}
}

// SetReferralCounter breaks the construction cycle with the referral service,
// which itself asks this service whether an ambassador belongs to a business.
func (s *Service) SetReferralCounter(rc ReferralCounter) {
	s.referrals = rc
}

// codePrefix turns a display name into the upper-case prefix of a referral
// code, e.g. "Zoë O'Neil" -> "ZOEONEIL".
func codePrefix(name string) string {
	p := strings.ToUpper(strings.ReplaceAll(slug.Make(name), "-", ""))
	if len(p) > maxCodePrefix {
		p = p[:maxCodePrefix]
	}
	if p == "" {
		p = "REF"
	}
	return p
}

func (s *Service) referralLink(a *Ambassador) string {
	q := url.Values{}
	q.Set("code", a.ReferralCode)
	q.Set("ambassador_id", a.ID)
	q.Set("business_id", a.BusinessID)
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/api/referral-redirect?" + q.Encode()
}

// Enroll registers an ambassador with a referral code of the form
// <NAME>-<n>. n comes from a global counter per name prefix, so codes stay
// unique across businesses.
func (s *Service) Enroll(ctx context.Context, businessID string, req EnrollRequest) (*Ambassador, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" {
		exist, err := s.ambassadors.FindOne(ctx, &Ambassador{BusinessID: businessID, Email: email})
		if err != nil {
			zap.L().Error("failed query ambassador by email", zap.String("business_id", businessID), zap.Error(err))
			return nil, errutil.Internal("failed to enroll ambassador", err)
		}
		if exist != nil {
			return nil, errutil.Conflict("ambassador already enrolled", nil)
		}
	}

	a := &Ambassador{
		BusinessID: businessID,
		Name:       strings.TrimSpace(req.Name),
		Email:      email,
		Phone:      strings.TrimSpace(req.Phone),
		Status:     StatusActive,
	}

	prefix := codePrefix(req.Name)
	var offset int64
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		n, err := s.seq.NextReferralCodeSeq(ctx, prefix)
		if err != nil {
			zap.L().Error("failed to allocate referral code", zap.String("business_id", businessID), zap.Error(err))
			return nil, errutil.Internal("failed to enroll ambassador", err)
		}

		a.ID = s.node.Generate().String()
		a.ReferralCode = fmt.Sprintf("%s-%d", prefix, n+offset)
		err = s.ambassadors.Create(ctx, a)
		if err == nil {
			a.ReferralLink = s.referralLink(a)
			return a, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			zap.L().Error("failed to create ambassador", zap.String("business_id", businessID), zap.Error(err))
			return nil, errutil.Internal("failed to enroll ambassador", err)
		}

		// The counter is behind the table, e.g. an in-memory counter after a
		// restart. Skip past the codes already taken for this prefix.
		zap.L().Warn("referral code taken, retrying", zap.String("code", a.ReferralCode))
		if offset == 0 {
			offset, err = s.countCodes(ctx, prefix)
			if err != nil {
				return nil, errutil.Internal("failed to enroll ambassador", err)
			}
		}
	}

	return nil, errutil.Conflict("could not allocate a unique referral code", nil)
}

func (s *Service) countCodes(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Ambassador{}).
		Where("referral_code LIKE ?", prefix+"-%").
		Count(&n).Error
	return n, err
}

func (s *Service) List(ctx context.Context, businessID string) ([]*Ambassador, error) {
	out, err := s.ambassadors.Find(ctx, &Ambassador{BusinessID: businessID})
	if err != nil {
		zap.L().Error("failed to list ambassadors", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to list ambassadors", err)
	}
	for _, a := range out {
		a.ReferralLink = s.referralLink(a)
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context, businessID string) (int64, error) {
	return s.ambassadors.Count(ctx, &Ambassador{BusinessID: businessID})
}

func (s *Service) BelongsTo(ctx context.Context, businessID, ambassadorID string) (bool, error) {
	a, err := s.ambassadors.FindOne(ctx, &Ambassador{ID: ambassadorID, BusinessID: businessID})
	if err != nil {
		return false, err
	}
	return a != nil, nil
}

// RequestAccess queues an access email for the ambassador owning code and
// returns at once, so response timing says nothing about whether it exists.
func (s *Service) RequestAccess(ctx context.Context, code string) {
	if s.enqueuer != nil {
		t, err := NewAccessLinkTask(code)
		if err == nil {
			_, err = s.enqueuer.Enqueue(ctx, t)
		}
		if err == nil {
			return
		}
		zap.L().Warn("failed to queue access email, sending in process", zap.Error(err))
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, accessMailTimeout)
		defer cancel()
		if err := s.access.Send(ctx, code); err != nil {
			zap.L().Warn("failed to send ambassador access email", zap.String("code", code), zap.Error(err))
		}
	}()
}

// Summary returns the self-service view for the ambassador owning code after
// checking the bearer token minted by RequestAccess.
func (s *Service) Summary(ctx context.Context, code, token string) (*Summary, error) {
	v := s.codec.VerifyAmbassadorToken(token, code)
	if !v.Valid {
		zap.L().Info("ambassador token rejected", zap.String("code", code), zap.String("reason", string(v.Reason)))
		return nil, errutil.Unauthorized("invalid or expired link", nil)
	}

	a, err := s.ambassadors.FindOne(ctx, &Ambassador{ReferralCode: code})
	if err != nil {
		return nil, errutil.Internal("failed to load ambassador", err)
	}
	if a == nil {
		return nil, errutil.NotFound("ambassador not found", nil)
	}
	a.ReferralLink = s.referralLink(a)

	out := &Summary{Ambassador: a, RecentEvents: []*event.ReferralEvent{}}
	if s.referrals != nil {
		counts, err := s.referrals.CountByStatus(ctx, a.BusinessID, a.ID)
		if err != nil {
			return nil, errutil.Internal("failed to load summary", err)
		}
		out.Referrals = counts
	}

	recent, err := s.events.RecentForAmbassador(ctx, a.BusinessID, a.ID, recentEvents)
	if err != nil {
		return nil, errutil.Internal("failed to load summary", err)
	}
	if recent != nil {
		out.RecentEvents = recent
	}

	return out, nil
}
