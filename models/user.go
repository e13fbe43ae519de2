package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the user collection in mongo
type User struct {
	ID                   primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Email                string               `json:"email" bson:"email"`
	Username             string               `json:"username" bson:"username"`
	Name                 string               `json:"name" bson:"name"`
	Password             string               `json:"-" bson:"password"`
	ProfilePicture       string               `json:"profilePicture" bson:"profilePicture"`
	SuperAdmin           bool                 `json:"superAdmin" bson:"superAdmin"`
	FeatureFlags         []FeatureFlag        `json:"featureFlags" bson:"featureFlags"`
	FavoriteDestinations []primitive.ObjectID `json:"favoriteDestinations" bson:"favoriteDestinations"`
	Subscription         Subscription         `json:"subscription" bson:"subscription"`
	ResetPasswordToken   string               `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time           `json:"-" bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// Flag returns the user's grant for the given key, or nil when absent
func (u *User) Flag(key string) *FeatureFlag {
	if u == nil {
		return nil
	}
	for i := range u.FeatureFlags {
		if u.FeatureFlags[i].Key == key {
			return &u.FeatureFlags[i]
		}
	}
	return nil
}

// HasFavoriteDestination reports whether the destination is already favorited
func (u *User) HasFavoriteDestination(destinationID primitive.ObjectID) bool {
	if u == nil {
		return false
	}
	for _, id := range u.FavoriteDestinations {
		if id == destinationID {
			return true
		}
	}
	return false
}
