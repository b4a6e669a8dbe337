package billing

import "errors"

var (
	// ErrPlanNotPurchasable is returned for free or unknown plan names on checkout.
	ErrPlanNotPurchasable = errors.New("plan is not purchasable")
	// ErrPriceNotConfigured is returned when a purchasable plan has no real Stripe price id.
	ErrPriceNotConfigured = errors.New("stripe price id is not configured")
	// ErrMissingAttribution is returned when a provider object carries no user_id metadata.
	ErrMissingAttribution = errors.New("provider object has no user_id metadata")
	// ErrNoBillableSubscription is returned when an operation needs a Stripe-backed subscription.
	ErrNoBillableSubscription = errors.New("user has no stripe-backed subscription")
)
