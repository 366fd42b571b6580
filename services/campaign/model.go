package campaign

import (
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

// MessageStatus moves queued -> sending -> sent|delivered|failed. sending is
// held only while a batch owns the row.
type MessageStatus string

const (
	MessageQueued    MessageStatus = "queued"
	MessageSending   MessageStatus = "sending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

type Campaign struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	BusinessID string    `gorm:"column:business_id;not null;index" json:"business_id"`
	Name       string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Channel    Channel   `gorm:"column:channel;type:varchar(16);not null" json:"channel"`
	Subject    string    `gorm:"column:subject;type:varchar(255)" json:"subject,omitempty"`
	Status     Status    `gorm:"column:status;type:varchar(16);not null;default:'draft'" json:"status"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

type Message struct {
	ID                string        `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CampaignID        string        `gorm:"column:campaign_id;not null;index:idx_campaign_messages_queue,priority:2" json:"campaign_id"`
	BusinessID        string        `gorm:"column:business_id;not null;index" json:"business_id"`
	Channel           Channel       `gorm:"column:channel;type:varchar(16);not null" json:"channel"`
	Recipient         string        `gorm:"column:recipient;type:varchar(320);not null" json:"recipient"`
	RecipientName     string        `gorm:"column:recipient_name;type:varchar(255)" json:"recipient_name,omitempty"`
	Subject           string        `gorm:"column:subject;type:varchar(255)" json:"subject,omitempty"`
	Body              string        `gorm:"column:body;type:text;not null" json:"body"`
	Status            MessageStatus `gorm:"column:status;type:varchar(16);not null;default:'queued';index:idx_campaign_messages_queue,priority:1" json:"status"`
	Error             string        `gorm:"column:error;type:text" json:"error,omitempty"`
	ProviderMessageID string        `gorm:"column:provider_message_id;type:varchar(128)" json:"provider_message_id,omitempty"`
	ClaimToken        *string       `gorm:"column:claim_token;type:varchar(64);index" json:"-"`
	ClaimedAt         *time.Time    `gorm:"column:claimed_at" json:"-"`
	SentAt            *time.Time    `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreatedAt         time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string { return "campaign_messages" }

const (
	DefaultBatchSize = 25
	MaxBatchSize     = 100
)

type DispatchOptions struct {
	BatchSize int
	// CampaignID restricts the claim to one campaign. Empty means any.
	CampaignID string
	// SkipBatchEvents suppresses the batch started/finished events so a
	// manual run is not counted next to the scheduled one.
	SkipBatchEvents bool
}

func (o DispatchOptions) normalized() DispatchOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchSize > MaxBatchSize {
		o.BatchSize = MaxBatchSize
	}
	return o
}

type MessageResult struct {
	MessageID string        `json:"messageId"`
	Status    MessageStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

type BatchResult struct {
	BatchID   string `json:"batchId"`
	Claimed   int    `json:"claimed"`
	Sent      int    `json:"sent"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
	// Skipped counts claimed rows handed back because their business first
	// appeared after the flag lookup and turned out to be switched off.
	Skipped  int   `json:"skipped"`
	Released int64 `json:"released"`
	// DisabledBusinesses were left out of the claim by the kill switch.
	DisabledBusinesses []string        `json:"disabledBusinesses,omitempty"`
	Results            []MessageResult `json:"results"`
}

func (r *BatchResult) add(res MessageResult) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case MessageSent:
		r.Sent++
	case MessageDelivered:
		r.Delivered++
	case MessageFailed:
		r.Failed++
	}
}

type CreateCampaignRequest struct {
	Name    string  `json:"name" binding:"required,max=255"`
	Channel Channel `json:"channel" binding:"required,oneof=email sms"`
	Subject string  `json:"subject" binding:"max=255"`
}

type MessageInput struct {
	Recipient string `json:"recipient" binding:"required,max=320"`
	Name      string `json:"name" binding:"max=255"`
	Subject   string `json:"subject" binding:"max=255"`
	Body      string `json:"body" binding:"required"`
}

type EnqueueMessagesRequest struct {
	Messages []MessageInput `json:"messages" binding:"required,min=1,max=1000,dive"`
}

type EnqueueMessagesResponse struct {
	Queued int      `json:"queued"`
	IDs    []string `json:"ids"`
}

type DispatchRequest struct {
	CampaignID string `json:"campaignId" binding:"required"`
	BatchSize  int    `json:"batchSize" binding:"min=0,max=100"`
}

type PreflightRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,max=20,dive,url"`
}
