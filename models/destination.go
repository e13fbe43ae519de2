package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Destination holds the structure for the destination collection in mongo
type Destination struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Country     string             `json:"country,omitempty" bson:"country,omitempty"`
	Region      string             `json:"region,omitempty" bson:"region,omitempty"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	CoverPhoto  string             `json:"coverPhoto,omitempty" bson:"coverPhoto,omitempty"`
	Creator     primitive.ObjectID `json:"creator" bson:"creator"`
	Permissions []Permission       `json:"permissions" bson:"permissions"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}
