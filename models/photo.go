package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Photo holds the structure for the photo collection in mongo
type Photo struct {
	ID          primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	URL         string              `json:"url" bson:"url"`
	Caption     string              `json:"caption,omitempty" bson:"caption,omitempty"`
	Creator     primitive.ObjectID  `json:"creator" bson:"creator"`
	Destination *primitive.ObjectID `json:"destination,omitempty" bson:"destination,omitempty"`
	Experience  *primitive.ObjectID `json:"experience,omitempty" bson:"experience,omitempty"`
	Permissions []Permission        `json:"permissions" bson:"permissions"`
	CreatedAt   time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt" bson:"updatedAt"`
}
