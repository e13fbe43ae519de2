package models

import "time"

// FeatureFlag is a capability grant embedded on a user document. A grant is
// only honored while Enabled is true and, when ExpiresAt is set, before that
// deadline passes.
type FeatureFlag struct {
	Key       string     `json:"key" bson:"key"`
	Enabled   bool       `json:"enabled" bson:"enabled"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	GrantedAt time.Time  `json:"grantedAt" bson:"grantedAt"`
	Source    string     `json:"source,omitempty" bson:"source,omitempty"`
}

// ActiveAt reports whether the grant is live at the given instant
func (f FeatureFlag) ActiveAt(now time.Time) bool {
	if !f.Enabled {
		return false
	}
	if f.ExpiresAt != nil && !now.Before(*f.ExpiresAt) {
		return false
	}
	return true
}

// Well-known flag keys
const (
	FlagAIFeatures    = "ai_features"
	FlagEarlyAccess   = "early_access"
	FlagUnlimitedMaps = "unlimited_maps"
)
