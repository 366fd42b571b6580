package business

import "time"

type Business struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	OwnerID   string    `gorm:"column:owner_id;index;not null" json:"owner_id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"column:slug;type:varchar(255);uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Business) TableName() string { return "businesses" }

type CreateBusinessRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Slug string `json:"slug" binding:"omitempty,max=255"`
}
