package models

import "time"

const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusCancelled  = "cancelled"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

// Subscription mirrors a Stripe subscription for a user. Free-plan rows have
// empty Stripe identifiers. The reconciler guarantees at most one row with
// status=active per user.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	PlanName             string     `gorm:"type:varchar(50);not null;default:'free'" json:"plan_name"`
	Status               string     `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status"`
	Amount               float64    `gorm:"type:decimal(10,2);default:0" json:"amount"`
	Currency             string     `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	BillingCycle         string     `gorm:"type:varchar(16);default:'month'" json:"billing_cycle"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"stripe_subscription_id"`
	StripePriceID        string     `gorm:"type:varchar(191);default:''" json:"stripe_price_id"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	StartedAt            *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	CancelledAt          *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	EndsAt               *time.Time `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently entitles the user.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsPaid reports whether the subscription is backed by a Stripe subscription.
func (s *Subscription) IsPaid() bool {
	return s.StripeSubscriptionID != ""
}

// NewFreeSubscription builds the explicit free-plan row created at signup
// and by the cancellation fallback.
func NewFreeSubscription(userID uint) *Subscription {
	now := time.Now()
	return &Subscription{
		UserID:       userID,
		PlanName:     PlanFree,
		Status:       SubscriptionStatusActive,
		Amount:       0,
		Currency:     "USD",
		BillingCycle: "month",
		StartedAt:    &now,
	}
}
