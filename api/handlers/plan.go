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
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
)

// Plan exported for testing purposes
type Plan struct {
	DB    databases.PlanDatabase
	ExpDB databases.ExperienceDatabase
}

// PlanHandler returns a plan given a planID
func (p Plan) PlanHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	planID := mux.Vars(r)["plan_id"]

	zap.S().Debugf("plan_id: %v", planID)

	pID, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := p.DB.FindOne(context.Background(), bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get plan by ID", http.StatusNotFound, w, err)
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

// PlanCreateRequest is the body for self-serve plan creation, the
// no-invite path onto an experience the user can already see.
type PlanCreateRequest struct {
	User       primitive.ObjectID `json:"user"`
	Experience primitive.ObjectID `json:"experience"`
}

// PlanCreateHandler materializes a plan directly from an experience
// template. The same unique (user, experience) index that guards
// redemption guards this path, so double-submits surface as 409.
func (p Plan) PlanCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req PlanCreateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if req.User.IsZero() || req.Experience.IsZero() {
		config.ErrorStatus("user and experience are required", http.StatusBadRequest, w, fmt.Errorf("user and experience are required"))
		return
	}

	experience, err := p.ExpDB.FindOne(context.Background(), bson.M{"_id": req.Experience})
	if err != nil {
		config.ErrorStatus("failed to get experience by ID", http.StatusNotFound, w, err)
		return
	}

	now := time.Now()
	plan := models.Plan{
		ID:          primitive.NewObjectID(),
		User:        req.User,
		Experience:  experience.ID,
		Items:       models.SnapshotPlanItems(experience.PlanItems),
		Permissions: []models.Permission{models.NewUserPermission(req.User, models.RoleOwner)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = p.DB.InsertOne(context.Background(), plan)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("plan already exists for this user and experience", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to insert plan", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(plan)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// PlanItemCompleteRequest toggles completion on one snapshot item
type PlanItemCompleteRequest struct {
	Complete bool `json:"complete"`
}

// PlanItemCompleteHandler marks one snapshot item complete or not.
// Only the plan's own copy changes; the experience template is never
// touched from here.
func (p Plan) PlanItemCompleteHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	planID := mux.Vars(r)["plan_id"]
	itemID := mux.Vars(r)["item_id"]

	pID, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	iID, err := primitive.ObjectIDFromHex(itemID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req PlanItemCompleteRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	res, err := p.DB.UpdateOne(context.Background(),
		bson.M{"_id": pID, "plan.plan_item_id": iID},
		bson.M{"$set": bson.M{"plan.$.complete": req.Complete, "updatedAt": time.Now()}},
	)
	if err != nil {
		config.ErrorStatus("failed to update plan item", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("plan item not found", http.StatusNotFound, w, fmt.Errorf("no item %s on plan %s", itemID, planID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"updated": true}`))
}

// PlanDeleteHandler deletes a plan
func (p Plan) PlanDeleteHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	planID := mux.Vars(r)["plan_id"]

	pID, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	err = p.DB.DeleteOne(context.Background(), bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to delete plan", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"deleted": true}`))
}

// PlansByUserHandler returns the plans a user owns
func (p Plan) PlansByUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := p.DB.Find(context.Background(), bson.M{"user": uID})
	if err != nil {
		config.ErrorStatus("failed to get plans by user", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Plan{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
