package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanItem is a single step in an experience's plan template. Items
// form a tree via Parent so that activities can nest under days.
type PlanItem struct {
	ID           primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	Text         string              `json:"text" bson:"text"`
	Cost         float64             `json:"cost" bson:"cost"`
	PlanningDays int                 `json:"planning_days" bson:"planning_days"`
	URL          string              `json:"url,omitempty" bson:"url,omitempty"`
	Photo        string              `json:"photo,omitempty" bson:"photo,omitempty"`
	Parent       *primitive.ObjectID `json:"parent,omitempty" bson:"parent,omitempty"`
}

// Experience holds the structure for the experience collection in mongo
type Experience struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Destination primitive.ObjectID `json:"destination,omitempty" bson:"destination,omitempty"`
	Creator     primitive.ObjectID `json:"creator" bson:"creator"`
	PlanItems   []PlanItem         `json:"plan_items" bson:"plan_items"`
	Permissions []Permission       `json:"permissions" bson:"permissions"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}
