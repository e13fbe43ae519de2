package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InviteMetadata records delivery state for the invite email. It is
// written by the engine after dispatch and never read back into any
// redemption decision.
type InviteMetadata struct {
	EmailSent bool       `json:"emailSent" bson:"emailSent"`
	SentAt    *time.Time `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	SentFrom  string     `json:"sentFrom,omitempty" bson:"sentFrom,omitempty"`
	LastError string     `json:"lastError,omitempty" bson:"lastError,omitempty"`
}

// InviteCode represents the structure of an invite code document in MongoDB
type InviteCode struct {
	ID            primitive.ObjectID   `json:"_id,omitempty" bson:"_id,omitempty"`
	Code          string               `json:"code" bson:"code" index:"unique"`
	CreatedBy     primitive.ObjectID   `json:"createdBy" bson:"createdBy"`
	Email         string               `json:"email,omitempty" bson:"email,omitempty"`
	InviteeName   string               `json:"inviteeName,omitempty" bson:"inviteeName,omitempty"`
	Experiences   []primitive.ObjectID `json:"experiences" bson:"experiences"`
	Destinations  []primitive.ObjectID `json:"destinations" bson:"destinations"`
	MaxUses       int                  `json:"maxUses" bson:"maxUses"`
	UsesCount     int                  `json:"usesCount" bson:"usesCount"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	Active        bool                 `json:"active" bson:"active"`
	CustomMessage string               `json:"customMessage,omitempty" bson:"customMessage,omitempty"`
	Metadata      InviteMetadata       `json:"inviteMetadata" bson:"inviteMetadata"`
	CreatedAt     time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// IsExpired reports whether the code's expiry timestamp has passed.
// Codes with no expiry never expire.
func (i *InviteCode) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// IsExhausted reports whether every permitted use has been consumed.
// Exhaustion is always derived from the counters, never stored.
func (i *InviteCode) IsExhausted() bool {
	return i.UsesCount >= i.MaxUses
}

// Redeemable reports whether the code can be redeemed at the given
// instant. A code must be active, under its use limit and unexpired.
func (i *InviteCode) Redeemable(now time.Time) bool {
	return i.Active && !i.IsExhausted() && !i.IsExpired(now)
}
