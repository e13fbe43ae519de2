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

// Photo exported for testing purposes
type Photo struct {
	DB databases.PhotoDatabase
}

// PhotoHandler returns a photo given a photoID
func (p Photo) PhotoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	photoID := mux.Vars(r)["photo_id"]

	zap.S().Debugf("photo_id: %v", photoID)

	pID, err := primitive.ObjectIDFromHex(photoID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := p.DB.FindOne(context.Background(), bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get photo by ID", http.StatusNotFound, w, err)
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

// PhotoCreateHandler stores a photo record after the client has pushed
// the bytes to the CDN with a signed upload. The URL is the CDN's, not
// ours.
func (p Photo) PhotoCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var photo models.Photo
	err := json.NewDecoder(r.Body).Decode(&photo)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if photo.URL == "" {
		config.ErrorStatus("url is required", http.StatusBadRequest, w, fmt.Errorf("url is required"))
		return
	}
	if photo.Creator.IsZero() {
		config.ErrorStatus("creator is required", http.StatusBadRequest, w, fmt.Errorf("creator is required"))
		return
	}

	now := time.Now()
	photo.ID = primitive.NewObjectID()
	photo.Permissions = []models.Permission{models.NewUserPermission(photo.Creator, models.RoleOwner)}
	photo.CreatedAt = now
	photo.UpdatedAt = now

	_, err = p.DB.InsertOne(context.Background(), photo)
	if err != nil {
		config.ErrorStatus("failed to insert photo", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(photo)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// PhotoDeleteHandler deletes a photo record
func (p Photo) PhotoDeleteHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	photoID := mux.Vars(r)["photo_id"]

	pID, err := primitive.ObjectIDFromHex(photoID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	err = p.DB.DeleteOne(context.Background(), bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to delete photo", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"deleted": true}`))
}

// PhotosByUserHandler returns every photo the user holds a permission
// entry on, including contributor-only grants.
func (p Photo) PhotosByUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	filter := bson.M{"permissions": bson.M{"$elemMatch": bson.M{"entity": models.GranteeEntityUser, "_id": uID}}}
	dbResp, err := p.DB.Find(context.Background(), filter)
	if err != nil {
		config.ErrorStatus("failed to get photos by user", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Photo{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
