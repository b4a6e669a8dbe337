package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/launchfox/launchfox/app/models"
)

// Repository persists billing state. All subscription writes funnel through
// UpsertProviderSubscription so the one-active-row-per-user invariant is
// enforced in a single place.
type Repository interface {
	ActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error)
	SubscriptionByProviderID(ctx context.Context, providerSubID string) (*models.Subscription, error)
	UpsertProviderSubscription(ctx context.Context, userID uint, sub *ProviderSubscription, planName string) (*models.Subscription, error)
	EnsureFreeSubscription(ctx context.Context, userID uint) (*models.Subscription, error)
	SaveCustomerID(ctx context.Context, userID uint, customerID string) error
	UserIDByCustomerID(ctx context.Context, customerID string) (uint, error)
	SetUserPlan(ctx context.Context, userID uint, planName string) error

	UpsertInvoice(ctx context.Context, invoice *models.Invoice) error
	InvoicesByUser(ctx context.Context, userID uint, limit int) ([]models.Invoice, error)

	RecordWebhookEvent(ctx context.Context, event *models.WebhookEvent) (claimed bool, err error)
	MarkWebhookProcessed(ctx context.Context, providerEventID string) error
	MarkWebhookFailed(ctx context.Context, providerEventID string, message string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns the GORM-backed billing repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, entitlingStatuses()).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SubscriptionByProviderID(ctx context.Context, providerSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", providerSubID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertProviderSubscription reconciles a provider subscription snapshot into
// local state inside one transaction:
//
//   - known external id: update mutable fields only, never re-attribute the row
//   - unknown external id: close the user's currently entitling rows, then
//     insert the new row
//
// Rows are locked FOR UPDATE so concurrent webhook deliveries serialize on the
// same user.
func (r *gormRepository) UpsertProviderSubscription(ctx context.Context, userID uint, ps *ProviderSubscription, planName string) (*models.Subscription, error) {
	var result *models.Subscription

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("stripe_subscription_id = ?", ps.ID).
			First(&existing).Error

		switch {
		case err == nil:
			applyProviderFields(&existing, ps, planName)
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			if isEntitlingStatus(existing.Status) {
				if err := closeOtherEntitling(tx, existing.UserID, existing.ID); err != nil {
					return err
				}
			}
			result = &existing
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			if userID == 0 {
				return ErrMissingAttribution
			}
			sub := &models.Subscription{UserID: userID}
			applyProviderFields(sub, ps, planName)
			if isEntitlingStatus(sub.Status) {
				if err := closeOtherEntitling(tx, userID, 0); err != nil {
					return err
				}
			}
			if err := tx.Create(sub).Error; err != nil {
				return err
			}
			result = sub
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureFreeSubscription guarantees the user has an entitling row, creating
// the explicit free row when none exists.
func (r *gormRepository) EnsureFreeSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	var result *models.Subscription

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status IN ?", userID, entitlingStatuses()).
			Order("id DESC").
			First(&sub).Error
		if err == nil {
			result = &sub
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		free := models.NewFreeSubscription(userID)
		if err := tx.Create(free).Error; err != nil {
			return err
		}
		result = free
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SaveCustomerID stamps the provider customer id on the user's current
// entitling row so later checkouts reuse the same customer.
func (r *gormRepository) SaveCustomerID(ctx context.Context, userID uint, customerID string) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ? AND stripe_customer_id = ''", userID, entitlingStatuses()).
		Update("stripe_customer_id", customerID).Error
}

func (r *gormRepository) UserIDByCustomerID(ctx context.Context, customerID string) (uint, error) {
	if customerID == "" {
		return 0, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Select("user_id").
		Where("stripe_customer_id = ?", customerID).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return 0, err
	}
	return sub.UserID, nil
}

func (r *gormRepository) SetUserPlan(ctx context.Context, userID uint, planName string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("plan", planName).Error
}

// UpsertInvoice inserts or refreshes an invoice keyed by its provider id.
// Attribution columns are never touched on update.
func (r *gormRepository) UpsertInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_invoice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount", "currency", "status", "invoice_pdf", "hosted_invoice_url",
			"billing_reason", "period_start", "period_end", "paid_at", "updated_at",
		}),
	}).Create(invoice).Error
}

func (r *gormRepository) InvoicesByUser(ctx context.Context, userID uint, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// RecordWebhookEvent claims an event for processing. The insert-if-absent
// path claims first deliveries; redeliveries of an event whose previous
// attempt failed are re-claimed by clearing the recorded error. Exactly one
// caller wins either way.
func (r *gormRepository) RecordWebhookEvent(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Duplicate delivery. Re-claim only if the prior attempt recorded a
	// failure; a processed or in-flight event stays untouched.
	claim := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("stripe_event_id = ? AND processed = ? AND error_message <> ''", event.StripeEventID, false).
		Update("error_message", "")
	if claim.Error != nil {
		return false, claim.Error
	}
	return claim.RowsAffected > 0, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, providerEventID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("stripe_event_id = ?", providerEventID).
		Updates(map[string]any{
			"processed":     true,
			"error_message": "",
			"processed_at":  &now,
		}).Error
}

func (r *gormRepository) MarkWebhookFailed(ctx context.Context, providerEventID string, message string) error {
	if message == "" {
		message = "processing failed"
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("stripe_event_id = ? AND processed = ?", providerEventID, false).
		Update("error_message", message).Error
}

func closeOtherEntitling(tx *gorm.DB, userID uint, keepID uint) error {
	now := time.Now()
	q := tx.Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ?", userID, entitlingStatuses())
	if keepID != 0 {
		q = q.Where("id <> ?", keepID)
	}
	return q.Updates(map[string]any{
		"status":       models.SubscriptionStatusCancelled,
		"cancelled_at": &now,
		"ends_at":      &now,
	}).Error
}

// applyProviderFields copies the provider snapshot onto the row. UserID and
// the external subscription id are set only on insert.
func applyProviderFields(sub *models.Subscription, ps *ProviderSubscription, planName string) {
	if sub.StripeSubscriptionID == "" {
		sub.StripeSubscriptionID = ps.ID
	}
	if ps.CustomerID != "" {
		sub.StripeCustomerID = ps.CustomerID
	}
	sub.PlanName = planName
	sub.Status = normalizeProviderStatus(ps.Status)
	sub.Amount = ps.Amount
	if ps.Currency != "" {
		sub.Currency = ps.Currency
	}
	if ps.Interval != "" {
		sub.BillingCycle = ps.Interval
	}
	if ps.PriceID != "" {
		sub.StripePriceID = ps.PriceID
	}
	sub.CurrentPeriodStart = ps.CurrentPeriodStart
	sub.CurrentPeriodEnd = ps.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = ps.CancelAtPeriodEnd
	if sub.StartedAt == nil {
		sub.StartedAt = ps.StartDate
	}
	if sub.Status == models.SubscriptionStatusCancelled {
		if sub.CancelledAt == nil {
			now := time.Now()
			sub.CancelledAt = &now
		}
		sub.EndsAt = ps.CurrentPeriodEnd
	}
}

// normalizeProviderStatus maps Stripe statuses onto the local vocabulary.
func normalizeProviderStatus(status string) string {
	switch status {
	case "active":
		return models.SubscriptionStatusActive
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "canceled", "cancelled":
		return models.SubscriptionStatusCancelled
	case "unpaid":
		return models.SubscriptionStatusUnpaid
	case "incomplete", "incomplete_expired":
		return models.SubscriptionStatusIncomplete
	default:
		return status
	}
}

func entitlingStatuses() []string {
	return []string{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing}
}

func isEntitlingStatus(status string) bool {
	return status == models.SubscriptionStatusActive || status == models.SubscriptionStatusTrialing
}
