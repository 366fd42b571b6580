package ambassador

import (
	"time"

	"smallbiznis-referral/services/event"
	"smallbiznis-referral/services/referral"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Ambassador struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	BusinessID   string    `gorm:"column:business_id;not null;index" json:"business_id"`
	Name         string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email        string    `gorm:"column:email;type:varchar(320)" json:"email,omitempty"`
	Phone        string    `gorm:"column:phone;type:varchar(32)" json:"phone,omitempty"`
	ReferralCode string    `gorm:"column:referral_code;type:varchar(64);uniqueIndex;not null" json:"referral_code"`
	Status       Status    `gorm:"column:status;type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	ReferralLink string `gorm:"-" json:"referral_link,omitempty"`
}

func (Ambassador) TableName() string { return "ambassadors" }

type EnrollRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"omitempty,email,max=320"`
	Phone string `json:"phone" binding:"max=32"`
}

type AccessRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

type Summary struct {
	Ambassador   *Ambassador            `json:"ambassador"`
	Referrals    referral.Counts        `json:"referrals"`
	RecentEvents []*event.ReferralEvent `json:"recent_events"`
}
