package quota

import (
	"context"
	"fmt"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/internal/pkg/billing"
)

// ItemCounter counts a user's items. Satisfied by the item repository.
type ItemCounter interface {
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

// PlanResolver resolves the user's current plan. Satisfied by the billing
// service.
type PlanResolver interface {
	CurrentSubscription(ctx context.Context, userID uint) (*models.Subscription, error)
}

// Result is a point-in-time quota snapshot. Limit is nil for unlimited plans.
type Result struct {
	Plan      string `json:"plan"`
	Current   int64  `json:"current"`
	Limit     *int64 `json:"limit"`
	CanCreate bool   `json:"can_create"`
}

// Remaining returns the headroom left, or nil for unlimited plans.
func (r Result) Remaining() *int64 {
	if r.Limit == nil {
		return nil
	}
	left := *r.Limit - r.Current
	if left < 0 {
		left = 0
	}
	return &left
}

// Evaluator checks item counts against the plan limits.
type Evaluator struct {
	items ItemCounter
	plans PlanResolver
}

func NewEvaluator(items ItemCounter, plans PlanResolver) *Evaluator {
	return &Evaluator{items: items, plans: plans}
}

// Evaluate reads the user's plan and item count and decides whether another
// item fits. The check is advisory: reads are not serialized with the insert,
// so a burst of concurrent creates can land slightly over the limit. Rows
// already present are never affected by a later downgrade.
func (e *Evaluator) Evaluate(ctx context.Context, userID uint) (Result, error) {
	sub, err := e.plans.CurrentSubscription(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve plan: %w", err)
	}

	planName := billing.NormalizePlan(sub.PlanName)
	count, err := e.items.CountByUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("count items: %w", err)
	}

	limit := billing.ItemLimit(planName)
	return Result{
		Plan:      planName,
		Current:   count,
		Limit:     limit,
		CanCreate: limit == nil || count < *limit,
	}, nil
}
