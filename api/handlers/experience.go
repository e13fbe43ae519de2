package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
)

// Experience exported for testing purposes
type Experience struct {
	DB databases.ExperienceDatabase
}

// ExperienceHandler returns an experience given an experienceID
func (e Experience) ExperienceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	expID := mux.Vars(r)["experience_id"]

	zap.S().Debugf("experience_id: %v", expID)

	eID, err := primitive.ObjectIDFromHex(expID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := e.DB.FindOne(context.Background(), bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus("failed to get experience by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ExperienceCreateHandler creates an experience with its plan item
// template. Each template item gets its own ObjectID so later snapshots
// can reference items individually.
func (e Experience) ExperienceCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var experience models.Experience
	err := json.NewDecoder(r.Body).Decode(&experience)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if experience.Title == "" {
		config.ErrorStatus("title is required", http.StatusBadRequest, w, fmt.Errorf("title is required"))
		return
	}
	if experience.Creator.IsZero() {
		config.ErrorStatus("creator is required", http.StatusBadRequest, w, fmt.Errorf("creator is required"))
		return
	}

	now := time.Now()
	experience.ID = primitive.NewObjectID()
	for i := range experience.PlanItems {
		if experience.PlanItems[i].ID.IsZero() {
			experience.PlanItems[i].ID = primitive.NewObjectID()
		}
	}
	experience.Permissions = []models.Permission{models.NewUserPermission(experience.Creator, models.RoleOwner)}
	experience.CreatedAt = now
	experience.UpdatedAt = now

	_, err = e.DB.InsertOne(context.Background(), experience)
	if err != nil {
		config.ErrorStatus("failed to insert experience", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(experience)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ExperienceUpdateHandler updates the template fields of an experience.
// Plans already materialized from this experience keep their frozen
// snapshots; template edits only affect future redemptions.
func (e Experience) ExperienceUpdateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	expID := mux.Vars(r)["experience_id"]

	eID, err := primitive.ObjectIDFromHex(expID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var experience models.Experience
	err = json.NewDecoder(r.Body).Decode(&experience)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	for i := range experience.PlanItems {
		if experience.PlanItems[i].ID.IsZero() {
			experience.PlanItems[i].ID = primitive.NewObjectID()
		}
	}

	update := bson.M{"$set": bson.M{
		"title":       experience.Title,
		"description": experience.Description,
		"plan_items":  experience.PlanItems,
		"updatedAt":   time.Now(),
	}}

	res, err := e.DB.UpdateOne(context.Background(), bson.M{"_id": eID}, update)
	if err != nil {
		config.ErrorStatus("failed to update experience", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("experience not found", http.StatusNotFound, w, fmt.Errorf("no experience with id %s", expID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"updated": true}`))
}

// ExperienceDeleteHandler deletes an experience
func (e Experience) ExperienceDeleteHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	expID := mux.Vars(r)["experience_id"]

	eID, err := primitive.ObjectIDFromHex(expID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	err = e.DB.DeleteOne(context.Background(), bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus("failed to delete experience", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"deleted": true}`))
}

// ExperiencesByUserHandler returns every experience the user holds a
// permission entry on.
func (e Experience) ExperiencesByUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	filter := bson.M{"permissions": bson.M{"$elemMatch": bson.M{"entity": models.GranteeEntityUser, "_id": uID}}}
	dbResp, err := e.DB.Find(context.Background(), filter)
	if err != nil {
		config.ErrorStatus("failed to get experiences by user", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Experience{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ExperiencesByDestinationHandler returns the experiences under a
// destination.
func (e Experience) ExperiencesByDestinationHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	destID := mux.Vars(r)["destination_id"]

	zap.S().Debugf("destination_id: %v", destID)

	dID, err := primitive.ObjectIDFromHex(destID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := e.DB.Find(context.Background(), bson.M{"destination": dID})
	if err != nil {
		config.ErrorStatus("failed to get experiences by destination", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Experience{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
