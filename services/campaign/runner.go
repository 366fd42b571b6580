package campaign

import (
	"context"
	"fmt"
	"time"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/featureflags"
	"smallbiznis-referral/pkg/sequence"
	"smallbiznis-referral/services/event"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const eventSource = "campaign_dispatch"

// Runner processes one bounded batch of queued campaign messages per call.
// Concurrent calls never see each other's rows.
type Runner struct {
	queue    *queue
	db       *gorm.DB
	sender   Sender
	events   event.Logger
	flags    featureflags.FeatureFlag
	seq      sequence.Generator
	claimTTL time.Duration
	now      func() time.Time
}

type RunnerParams struct {
	fx.In

	Config  *config.Config
	DB      *gorm.DB
	Senders Senders
	Events  event.Logger
	Flags   featureflags.FeatureFlag
	Seq     sequence.Generator
}

func NewRunner(p RunnerParams) *Runner {
	ttl := p.Config.Dispatch.ClaimTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Runner{
		queue:    &queue{db: p.DB},
		db:       p.DB,
		sender:   p.Senders,
		events:   p.Events,
		flags:    p.Flags,
		seq:      p.Seq,
		claimTTL: ttl,
		now:      time.Now,
	}
}

func (r *Runner) batchID(ctx context.Context) string {
	code, err := r.seq.NextBatchCode(ctx)
	if err != nil {
		zap.L().Warn("failed to allocate batch code, using uuid", zap.Error(err))
		return uuid.NewString()
	}
	return code
}

// Dispatch claims up to opts.BatchSize queued messages and sends them one by
// one. A failed send is recorded on that message and the batch moves on.
// Only failures before any message is claimed are returned as errors.
func (r *Runner) Dispatch(ctx context.Context, opts DispatchOptions) (*BatchResult, error) {
	opts = opts.normalized()
	now := r.now()

	released, err := r.queue.releaseStale(ctx, now.Add(-r.claimTTL), now)
	if err != nil {
		return nil, fmt.Errorf("release stale claims: %w", err)
	}
	if released > 0 {
		zap.L().Warn("released stale campaign message claims", zap.Int64("count", released))
	}

	// Resolve the kill switch before claiming so disabled businesses keep
	// their rows queued without taking batch slots from everyone else.
	queued, err := r.queue.queuedBusinesses(ctx, opts.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("list queued businesses: %w", err)
	}
	enabled := make(map[string]bool, len(queued))
	var disabled []string
	for _, biz := range queued {
		enabled[biz] = r.flags.Enabled(ctx, biz, featureflags.CampaignDispatchEnabled, true)
		if !enabled[biz] {
			disabled = append(disabled, biz)
		}
	}

	token := uuid.NewString()
	claimed, err := r.queue.claim(ctx, token, opts.BatchSize, claimScope{
		campaignID:        opts.CampaignID,
		excludeBusinesses: disabled,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("claim messages: %w", err)
	}

	result := &BatchResult{
		BatchID:            r.batchID(ctx),
		Claimed:            len(claimed),
		Released:           released,
		DisabledBusinesses: disabled,
		Results:            make([]MessageResult, 0, len(claimed)),
	}
	log := zap.L().With(zap.String("batch_id", result.BatchID), zap.String("campaign_id", opts.CampaignID))
	log.Info("dispatch batch claimed",
		zap.Int("claimed", len(claimed)),
		zap.Int("batch_size", opts.BatchSize),
		zap.Strings("disabled_businesses", disabled),
	)

	// Bookkeeping after the claim must outlive a cancelled request.
	bg := context.WithoutCancel(ctx)

	// Rows queued between the lookup and the claim may belong to a business
	// not evaluated yet.
	var businesses []string
	seen := map[string]bool{}
	for _, m := range claimed {
		if seen[m.BusinessID] {
			continue
		}
		seen[m.BusinessID] = true
		if _, ok := enabled[m.BusinessID]; !ok {
			enabled[m.BusinessID] = r.flags.Enabled(ctx, m.BusinessID, featureflags.CampaignDispatchEnabled, true)
		}
		if enabled[m.BusinessID] {
			businesses = append(businesses, m.BusinessID)
		}
	}

	if !opts.SkipBatchEvents {
		for _, biz := range businesses {
			r.events.LogReferralEvent(bg, event.Input{
				BusinessID: biz,
				EventType:  event.CampaignDeliveryBatchStarted,
				Source:     eventSource,
				Metadata: map[string]any{
					"batch_id":    result.BatchID,
					"campaign_id": opts.CampaignID,
					"batch_size":  opts.BatchSize,
				},
			})
		}
	}

	campaigns := map[string]bool{}
	for _, m := range claimed {
		if !enabled[m.BusinessID] {
			if err := r.queue.release(bg, m.ID, token, r.now()); err != nil {
				log.Warn("failed to release message of disabled business", zap.String("message_id", m.ID), zap.Error(err))
			}
			result.Skipped++
			continue
		}

		if !campaigns[m.CampaignID] {
			campaigns[m.CampaignID] = true
			r.markSending(bg, m.CampaignID)
		}
		result.add(r.deliver(ctx, bg, token, result.BatchID, m))
	}

	if !opts.SkipBatchEvents {
		for _, biz := range businesses {
			r.events.LogReferralEvent(bg, event.Input{
				BusinessID: biz,
				EventType:  event.CampaignDeliveryBatchFinished,
				Source:     eventSource,
				Metadata: map[string]any{
					"batch_id":    result.BatchID,
					"campaign_id": opts.CampaignID,
					"claimed":     result.Claimed,
					"sent":        result.Sent,
					"delivered":   result.Delivered,
					"failed":      result.Failed,
				},
			})
		}
	}

	for id := range campaigns {
		r.completeIfDrained(bg, id)
	}

	log.Info("dispatch batch finished",
		zap.Int("sent", result.Sent),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// deliver sends one claimed message and records its outcome. It never
// panics or returns an error to the batch loop.
func (r *Runner) deliver(ctx, bg context.Context, token, batchID string, m *Message) (res MessageResult) {
	res = MessageResult{MessageID: m.ID}

	var (
		d       Delivery
		sendErr error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				sendErr = fmt.Errorf("sender panic: %v", rec)
			}
		}()
		d, sendErr = r.sender.Send(ctx, m)
	}()

	eventType := event.CampaignMessageSent
	switch {
	case sendErr != nil:
		res.Status = MessageFailed
		res.Error = sendErr.Error()
		eventType = event.CampaignMessageFailed
	case d.Delivered:
		res.Status = MessageDelivered
		eventType = event.CampaignMessageDelivered
	default:
		res.Status = MessageSent
	}

	ok, err := r.queue.finish(bg, m.ID, token, res.Status, d, res.Error, r.now())
	if err != nil {
		zap.L().Error("failed to record message outcome", zap.String("message_id", m.ID), zap.Error(err))
	} else if !ok {
		zap.L().Warn("message claim lost before outcome was recorded", zap.String("message_id", m.ID))
	}

	meta := map[string]any{
		"batch_id":    batchID,
		"campaign_id": m.CampaignID,
		"message_id":  m.ID,
		"channel":     string(m.Channel),
	}
	if res.Error != "" {
		meta["error"] = res.Error
	}
	if d.ProviderMessageID != "" {
		meta["provider_message_id"] = d.ProviderMessageID
	}
	r.events.LogReferralEvent(bg, event.Input{
		BusinessID: m.BusinessID,
		EventType:  eventType,
		Source:     eventSource,
		Metadata:   meta,
	})

	return res
}

func (r *Runner) markSending(ctx context.Context, campaignID string) {
	err := r.db.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND status IN ?", campaignID, []Status{StatusDraft, StatusScheduled}).
		Updates(map[string]any{"status": StatusSending, "updated_at": r.now()}).Error
	if err != nil {
		zap.L().Warn("failed to mark campaign sending", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

func (r *Runner) completeIfDrained(ctx context.Context, campaignID string) {
	n, err := r.queue.pending(ctx, campaignID)
	if err != nil {
		zap.L().Warn("failed to count pending messages", zap.String("campaign_id", campaignID), zap.Error(err))
		return
	}
	if n > 0 {
		return
	}

	err = r.db.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND status IN ?", campaignID, []Status{StatusDraft, StatusScheduled, StatusSending}).
		Updates(map[string]any{"status": StatusCompleted, "updated_at": r.now()}).Error
	if err != nil {
		zap.L().Warn("failed to mark campaign completed", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}
