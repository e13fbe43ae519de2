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

// Destination exported for testing purposes
type Destination struct {
	DB databases.DestinationDatabase
}

// DestinationHandler returns a destination given a destinationID
func (d Destination) DestinationHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	destID := mux.Vars(r)["destination_id"]

	zap.S().Debugf("destination_id: %v", destID)

	dID, err := primitive.ObjectIDFromHex(destID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := d.DB.FindOne(context.Background(), bson.M{"_id": dID})
	if err != nil {
		config.ErrorStatus("failed to get destination by ID", http.StatusNotFound, w, err)
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

// DestinationCreateHandler creates a destination. The creator receives
// the single owner permission entry; it stays on the document for the
// life of the entity.
func (d Destination) DestinationCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var destination models.Destination
	err := json.NewDecoder(r.Body).Decode(&destination)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if destination.Name == "" {
		config.ErrorStatus("name is required", http.StatusBadRequest, w, fmt.Errorf("name is required"))
		return
	}
	if destination.Creator.IsZero() {
		config.ErrorStatus("creator is required", http.StatusBadRequest, w, fmt.Errorf("creator is required"))
		return
	}

	now := time.Now()
	destination.ID = primitive.NewObjectID()
	destination.Permissions = []models.Permission{models.NewUserPermission(destination.Creator, models.RoleOwner)}
	destination.CreatedAt = now
	destination.UpdatedAt = now

	_, err = d.DB.InsertOne(context.Background(), destination)
	if err != nil {
		config.ErrorStatus("failed to insert destination", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(destination)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// DestinationUpdateHandler updates the mutable fields of a destination.
// Permission entries are never touched here; that goes through the
// permission endpoints.
func (d Destination) DestinationUpdateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	destID := mux.Vars(r)["destination_id"]

	dID, err := primitive.ObjectIDFromHex(destID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var destination models.Destination
	err = json.NewDecoder(r.Body).Decode(&destination)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	update := bson.M{"$set": bson.M{
		"name":        destination.Name,
		"country":     destination.Country,
		"region":      destination.Region,
		"description": destination.Description,
		"coverPhoto":  destination.CoverPhoto,
		"updatedAt":   time.Now(),
	}}

	res, err := d.DB.UpdateOne(context.Background(), bson.M{"_id": dID}, update)
	if err != nil {
		config.ErrorStatus("failed to update destination", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("destination not found", http.StatusNotFound, w, fmt.Errorf("no destination with id %s", destID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"updated": true}`))
}

// DestinationDeleteHandler deletes a destination
func (d Destination) DestinationDeleteHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	destID := mux.Vars(r)["destination_id"]

	dID, err := primitive.ObjectIDFromHex(destID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	err = d.DB.DeleteOne(context.Background(), bson.M{"_id": dID})
	if err != nil {
		config.ErrorStatus("failed to delete destination", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"deleted": true}`))
}

// DestinationsByUserHandler returns every destination the user holds a
// permission entry on, owner or otherwise.
func (d Destination) DestinationsByUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	filter := bson.M{"permissions": bson.M{"$elemMatch": bson.M{"entity": models.GranteeEntityUser, "_id": uID}}}
	dbResp, err := d.DB.Find(context.Background(), filter)
	if err != nil {
		config.ErrorStatus("failed to get destinations by user", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Destination{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
