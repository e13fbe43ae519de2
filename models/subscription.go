package models

import "time"

// Subscription mirrors the user's paid plan state as reported by Stripe.
// The ai_features flag grant is provisioned from this when a subscription
// is verified.
type Subscription struct {
	ID               string     `json:"id" bson:"id"`
	Plan             string     `json:"plan" bson:"plan"`
	Active           bool       `json:"active" bson:"active"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty" bson:"currentPeriodEnd,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Subscription plan identifiers
const (
	PlanFree     = "free"
	PlanExplorer = "explorer"
	PlanVoyager  = "voyager"
)
