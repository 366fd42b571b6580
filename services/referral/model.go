package referral

import (
	"time"

	"smallbiznis-referral/pkg/db/pagination"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type Referral struct {
	ID            string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	BusinessID    string         `gorm:"column:business_id;not null;index:idx_referrals_business_email,priority:1;uniqueIndex:idx_referrals_business_dedup,priority:1" json:"business_id"`
	AmbassadorID  string         `gorm:"column:ambassador_id;not null;index" json:"ambassador_id"`
	ReferredName  string         `gorm:"column:referred_name;type:varchar(255)" json:"referred_name,omitempty"`
	ReferredEmail string         `gorm:"column:referred_email;type:varchar(320);index:idx_referrals_business_email,priority:2" json:"referred_email,omitempty"`
	ReferredPhone string         `gorm:"column:referred_phone;type:varchar(32)" json:"referred_phone,omitempty"`
	// DedupKey is set on referrals created from tracked signups, one per
	// business and contact. Manual conversions leave it NULL.
	DedupKey *string `gorm:"column:dedup_key;type:varchar(340);uniqueIndex:idx_referrals_business_dedup,priority:2" json:"-"`
	Status        Status         `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	ConsentGiven  bool           `gorm:"column:consent_given;not null;default:false" json:"consent_given"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Referral) TableName() string { return "referrals" }

type TrackConversionRequest struct {
	EventType string         `json:"eventType" binding:"required"`
	Name      string         `json:"name" binding:"max=255"`
	Email     string         `json:"email" binding:"omitempty,email,max=320"`
	Phone     string         `json:"phone" binding:"max=32"`
	Consent   bool           `json:"consent"`
	Metadata  map[string]any `json:"metadata"`
}

type TrackConversionResult struct {
	Tracked    bool   `json:"tracked"`
	ReferralID string `json:"referralId,omitempty"`
	Created    bool   `json:"created"`
}

type ManualConversionRequest struct {
	AmbassadorID string         `json:"ambassadorId" binding:"required"`
	Name         string         `json:"name" binding:"required,max=255"`
	Email        string         `json:"email" binding:"omitempty,email,max=320"`
	Phone        string         `json:"phone" binding:"max=32"`
	Metadata     map[string]any `json:"metadata"`
}

type ListReferralsRequest struct {
	pagination.Pagination
	Status Status `form:"status"`
}

type ListReferralsResponse struct {
	Referrals []*Referral            `json:"referrals"`
	PageInfo  *pagination.PageInfo `json:"page_info"`
}

// Counts is the per-status tally used by summaries and the dashboard.
type Counts struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
}

func (c Counts) Total() int64 { return c.Pending + c.Completed }
