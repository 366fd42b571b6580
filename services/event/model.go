package event

import (
	"time"

	"smallbiznis-referral/pkg/db/pagination"

	"gorm.io/datatypes"
)

type EventType string

const (
	LinkVisit                     EventType = "link_visit"
	SignupSubmitted               EventType = "signup_submitted"
	ConversionPending             EventType = "conversion_pending"
	ConversionCompleted           EventType = "conversion_completed"
	ManualConversionRecorded      EventType = "manual_conversion_recorded"
	PayoutReleased                EventType = "payout_released"
	PayoutAdjusted                EventType = "payout_adjusted"
	CampaignMessageQueued         EventType = "campaign_message_queued"
	CampaignMessageSent           EventType = "campaign_message_sent"
	CampaignMessageDelivered      EventType = "campaign_message_delivered"
	CampaignMessageFailed         EventType = "campaign_message_failed"
	CampaignDeliveryBatchStarted  EventType = "campaign_delivery_batch_started"
	CampaignDeliveryBatchFinished EventType = "campaign_delivery_batch_finished"
	ScheduleCallClicked           EventType = "schedule_call_clicked"
	ContactUsClicked              EventType = "contact_us_clicked"
)

var knownEventTypes = map[EventType]struct{}{
	LinkVisit: {}, SignupSubmitted: {}, ConversionPending: {}, ConversionCompleted: {},
	ManualConversionRecorded: {}, PayoutReleased: {}, PayoutAdjusted: {},
	CampaignMessageQueued: {}, CampaignMessageSent: {}, CampaignMessageDelivered: {},
	CampaignMessageFailed: {}, CampaignDeliveryBatchStarted: {}, CampaignDeliveryBatchFinished: {},
	ScheduleCallClicked: {}, ContactUsClicked: {},
}

func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
	DeviceUnknown Device = "unknown"
)

// ReferralEvent is append-only. Rows are never updated after insert.
type ReferralEvent struct {
	ID           string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	BusinessID   string         `gorm:"column:business_id;not null;index:idx_referral_events_business_created,priority:1" json:"business_id"`
	AmbassadorID *string        `gorm:"column:ambassador_id;index" json:"ambassador_id,omitempty"`
	ReferralID   *string        `gorm:"column:referral_id" json:"referral_id,omitempty"`
	EventType    EventType      `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	Source       string         `gorm:"column:source;type:varchar(64)" json:"source,omitempty"`
	Device       Device         `gorm:"column:device;type:varchar(16)" json:"device,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;index:idx_referral_events_business_created,priority:2" json:"created_at"`
}

func (ReferralEvent) TableName() string { return "referral_events" }

// Input describes one event to record. Empty optional ids are stored as NULL.
type Input struct {
	BusinessID   string
	AmbassadorID string
	ReferralID   string
	EventType    EventType
	Source       string
	Device       Device
	Metadata     map[string]any
}

type ListEventsResponse struct {
	Events   []*ReferralEvent     `json:"events"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type ExportResult struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
	Rows      int    `json:"rows"`
}
