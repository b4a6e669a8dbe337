package models

import "time"

// WebhookEvent is the append-only audit/dedup log for Stripe webhook
// deliveries. Only the processed/error fields mutate, exactly once per event.
type WebhookEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StripeEventID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_event_id"`
	EventType     string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload       string     `gorm:"type:longtext;not null" json:"payload"`
	Processed     bool       `gorm:"default:false;index" json:"processed"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	ProcessedAt   *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
