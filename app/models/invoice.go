package models

import "time"

// Invoice stores a Stripe invoice for audit/history. Upserted by
// stripe_invoice_id; user_id and Stripe identifiers are never changed on update.
type Invoice struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	StripeInvoiceID  string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_invoice_id"`
	StripeCustomerID string     `gorm:"type:varchar(191);not null;index" json:"stripe_customer_id"`
	Amount           float64    `gorm:"type:decimal(10,2);default:0" json:"amount"`
	Currency         string     `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	Status           string     `gorm:"type:varchar(32);not null;default:''" json:"status"`
	InvoicePDF       string     `gorm:"type:varchar(512);default:''" json:"invoice_pdf"`
	HostedInvoiceURL string     `gorm:"type:varchar(512);default:''" json:"hosted_invoice_url"`
	BillingReason    string     `gorm:"type:varchar(64);default:''" json:"billing_reason"`
	PeriodStart      *time.Time `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd        *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	PaidAt           *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
