package campaign

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// queue owns the state transitions of campaign_messages rows. Every write
// that follows a claim is guarded by the claim token, so a row released
// back to queued cannot be finalised by the batch that lost it.
type queue struct {
	db *gorm.DB
}

// claimScope narrows which queued rows a batch may take.
type claimScope struct {
	campaignID string
	// excludeBusinesses holds businesses whose dispatch is switched off.
	// Their rows stay queued without being claimed, so they never occupy a
	// batch that enabled businesses could use.
	excludeBusinesses []string
}

// claimable selects queued rows in scope. Rows of paused campaigns are never
// claimable.
func claimable(db *gorm.DB, scope claimScope) *gorm.DB {
	paused := db.Model(&Campaign{}).Select("id").Where("status = ?", StatusPaused)
	stmt := db.Model(&Message{}).
		Where("status = ?", MessageQueued).
		Where("campaign_id NOT IN (?)", paused)
	if scope.campaignID != "" {
		stmt = stmt.Where("campaign_id = ?", scope.campaignID)
	}
	if len(scope.excludeBusinesses) > 0 {
		stmt = stmt.Where("business_id NOT IN ?", scope.excludeBusinesses)
	}
	return stmt
}

// queuedBusinesses lists the businesses that have claimable rows.
func (q *queue) queuedBusinesses(ctx context.Context, campaignID string) ([]string, error) {
	var ids []string
	err := claimable(q.db.WithContext(ctx), claimScope{campaignID: campaignID}).
		Distinct().
		Order("business_id").
		Pluck("business_id", &ids).Error
	return ids, err
}

// claim moves up to limit claimable rows to sending under token in a single
// conditional update and returns the rows that carry token afterwards.
func (q *queue) claim(ctx context.Context, token string, limit int, scope claimScope, now time.Time) ([]*Message, error) {
	db := q.db.WithContext(ctx)
	values := map[string]any{
		"status":      MessageSending,
		"claim_token": token,
		"claimed_at":  now,
		"updated_at":  now,
	}

	var err error
	if db.Dialector.Name() == "mysql" {
		// mysql rejects LIMIT inside IN subqueries but accepts it on UPDATE.
		err = claimable(db, scope).Order("created_at ASC, id ASC").Limit(limit).Updates(values).Error
	} else {
		candidates := claimable(db, scope).Select("id").Order("created_at ASC, id ASC").Limit(limit)
		err = db.Model(&Message{}).
			Where("id IN (?)", candidates).
			Where("status = ?", MessageQueued).
			Updates(values).Error
	}
	if err != nil {
		return nil, err
	}

	var claimed []*Message
	err = q.db.WithContext(ctx).
		Where("claim_token = ? AND status = ?", token, MessageSending).
		Order("created_at ASC, id ASC").
		Find(&claimed).Error
	return claimed, err
}

// releaseStale returns rows left in sending by a batch that died before
// finishing them.
func (q *queue) releaseStale(ctx context.Context, olderThan time.Time, now time.Time) (int64, error) {
	res := q.db.WithContext(ctx).Model(&Message{}).
		Where("status = ? AND claimed_at < ?", MessageSending, olderThan).
		Updates(map[string]any{
			"status":      MessageQueued,
			"claim_token": nil,
			"claimed_at":  nil,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

// release hands a claimed row back to the queue untouched.
func (q *queue) release(ctx context.Context, id, token string, now time.Time) error {
	return q.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND claim_token = ? AND status = ?", id, token, MessageSending).
		Updates(map[string]any{
			"status":      MessageQueued,
			"claim_token": nil,
			"claimed_at":  nil,
			"updated_at":  now,
		}).Error
}

// finish records the outcome of one send. It reports false when the claim
// was lost in the meantime.
func (q *queue) finish(ctx context.Context, id, token string, status MessageStatus, d Delivery, errText string, now time.Time) (bool, error) {
	values := map[string]any{
		"status":     status,
		"error":      errText,
		"updated_at": now,
	}
	if status != MessageFailed {
		values["provider_message_id"] = d.ProviderMessageID
		values["sent_at"] = now
	}

	res := q.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND claim_token = ? AND status = ?", id, token, MessageSending).
		Updates(values)
	return res.RowsAffected == 1, res.Error
}

// pending counts rows of a campaign that still need a send attempt.
func (q *queue) pending(ctx context.Context, campaignID string) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&Message{}).
		Where("campaign_id = ? AND status IN ?", campaignID, []MessageStatus{MessageQueued, MessageSending}).
		Count(&n).Error
	return n, err
}
