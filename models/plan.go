package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanItemSnapshot is a frozen copy of a template PlanItem taken when a
// plan is created. Later edits to the experience template never reach
// snapshots that were already written.
type PlanItemSnapshot struct {
	PlanItemID   primitive.ObjectID  `json:"plan_item_id" bson:"plan_item_id"`
	Complete     bool                `json:"complete" bson:"complete"`
	Cost         float64             `json:"cost" bson:"cost"`
	PlanningDays int                 `json:"planning_days" bson:"planning_days"`
	Text         string              `json:"text" bson:"text"`
	URL          string              `json:"url,omitempty" bson:"url,omitempty"`
	Photo        string              `json:"photo,omitempty" bson:"photo,omitempty"`
	Parent       *primitive.ObjectID `json:"parent,omitempty" bson:"parent,omitempty"`
}

// Plan holds the structure for the plan collection in mongo. At most
// one plan exists per (user, experience) pair, enforced by a unique
// compound index.
type Plan struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	User        primitive.ObjectID `json:"user" bson:"user"`
	Experience  primitive.ObjectID `json:"experience" bson:"experience"`
	Items       []PlanItemSnapshot `json:"plan" bson:"plan"`
	Permissions []Permission       `json:"permissions" bson:"permissions"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SnapshotPlanItems copies an experience's template items into
// snapshot form. The whole array is built before any insert happens so
// a failed write never leaves a half-constructed plan behind.
func SnapshotPlanItems(items []PlanItem) []PlanItemSnapshot {
	snapshots := make([]PlanItemSnapshot, 0, len(items))
	for _, item := range items {
		snapshots = append(snapshots, PlanItemSnapshot{
			PlanItemID:   item.ID,
			Complete:     false,
			Cost:         item.Cost,
			PlanningDays: item.PlanningDays,
			Text:         item.Text,
			URL:          item.URL,
			Photo:        item.Photo,
			Parent:       item.Parent,
		})
	}
	return snapshots
}
