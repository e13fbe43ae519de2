package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/flags"
	"github.com/wanderlist/wanderlist-api/invites"
	"github.com/wanderlist/wanderlist-api/models"
)

// User exported for testing purposes
type User struct {
	DB        databases.UserDatabase
	Invites   *invites.Service
	Flags     *flags.Evaluator
	FlagCache *flags.StatusCache
}

// UserHandler returns a user given a userID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
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

// UserCreateRequest is the signup body. InviteCode is optional; when
// present the new account redeems it in the same request so the join
// flow is one round trip.
type UserCreateRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode,omitempty"`
}

// UserCreateResponse returns the new user and, when an invite code was
// supplied, the outcome of redeeming it. A failed redemption never
// rolls the account back; the error is reported alongside instead.
type UserCreateResponse struct {
	User            models.User           `json:"user"`
	Redemption      *invites.RedeemResult `json:"redemption,omitempty"`
	RedemptionError string                `json:"redemptionError,omitempty"`
}

// UserCreateHandler creates a user
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req UserCreateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w, fmt.Errorf("email and password are required"))
		return
	}

	// check if the user already exists
	existingUser, _ := u.DB.FindOne(context.Background(), bson.M{"email": email})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	// hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	user := models.User{
		ID:                   primitive.NewObjectID(),
		Email:                email,
		Username:             req.Username,
		Name:                 req.Name,
		Password:             string(hashedPassword),
		FeatureFlags:         []models.FeatureFlag{},
		FavoriteDestinations: []primitive.ObjectID{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err = u.DB.InsertOne(context.Background(), user)
	if err != nil {
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}

	resp := UserCreateResponse{User: user}
	if req.InviteCode != "" && u.Invites != nil {
		redemption, redeemErr := u.Invites.Redeem(context.Background(), req.InviteCode, user.ID)
		if redeemErr != nil {
			zap.S().Warnw("signup invite redemption failed", "user", user.ID.Hex(), "error", redeemErr)
			resp.RedemptionError = redeemErr.Error()
		} else {
			resp.Redemption = redemption
		}
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UserCheckEmailHandler checks if an email exists using POST
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req UserCreateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	existingUser, _ := u.DB.FindOne(context.Background(), bson.M{"email": strings.ToLower(strings.TrimSpace(req.Email))})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UserUpdateHandler updates the mutable profile fields of a user
func (u User) UserUpdateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var user models.User
	err = json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	update := bson.M{"$set": bson.M{
		"name":           user.Name,
		"username":       user.Username,
		"profilePicture": user.ProfilePicture,
		"updatedAt":      time.Now(),
	}}

	res, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, update)
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("user not found", http.StatusNotFound, w, fmt.Errorf("no user with id %s", userID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"updated": true}`))
}

// ToggleFavoriteDestinationHandler flips whether the destination is in
// the user's favorites. Redemption hands bundled destinations to this
// flow rather than writing favorites itself, so toggling stays the one
// place favorites change.
func (u User) ToggleFavoriteDestinationHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)

	uID, err := primitive.ObjectIDFromHex(vars["user_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	dID, err := primitive.ObjectIDFromHex(vars["destination_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	var update bson.M
	favorited := !user.HasFavoriteDestination(dID)
	if favorited {
		update = bson.M{"$addToSet": bson.M{"favoriteDestinations": dID}, "$set": bson.M{"updatedAt": time.Now()}}
	} else {
		update = bson.M{"$pull": bson.M{"favoriteDestinations": dID}, "$set": bson.M{"updatedAt": time.Now()}}
	}

	_, err = u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, update)
	if err != nil {
		config.ErrorStatus("failed to toggle favorite destination", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]bool{"favorited": favorited})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserFeatureFlagsHandler lists the flag grants on a user document.
// Active is computed per grant at read time; nothing is stored.
func (u User) UserFeatureFlagsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	now := time.Now()
	type flagStatus struct {
		models.FeatureFlag
		Active bool `json:"active"`
	}
	statuses := make([]flagStatus, 0, len(user.FeatureFlags))
	for _, f := range user.FeatureFlags {
		statuses = append(statuses, flagStatus{FeatureFlag: f, Active: f.ActiveAt(now)})
	}

	b, err := json.Marshal(statuses)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// FeatureFlagCheckHandler evaluates one flag for a request. The context
// query param picks whose grant is inspected: the acting user or the
// creator of the entity being acted on. An unknown user id fails closed
// as a denied decision rather than an error.
func (u User) FeatureFlagCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	flagKey := r.URL.Query().Get("flag")
	if flagKey == "" {
		config.ErrorStatus("query param flag is required", http.StatusBadRequest, w, fmt.Errorf("query param flag is required"))
		return
	}
	evalCtx := flags.ParseEvalContext(r.URL.Query().Get("context"))

	acting, err := u.loadOptionalUser(r.URL.Query().Get("actorId"))
	if err != nil {
		config.ErrorStatus("failed to get acting user", http.StatusInternalServerError, w, err)
		return
	}
	creator, err := u.loadOptionalUser(r.URL.Query().Get("creatorId"))
	if err != nil {
		config.ErrorStatus("failed to get creator user", http.StatusInternalServerError, w, err)
		return
	}

	decision := u.Flags.Evaluate(acting, creator, flagKey, evalCtx, nil)

	zap.S().Debugw("feature flag evaluated",
		"flag", flagKey,
		"context", evalCtx,
		"allowed", decision.Allowed,
		"reason", decision.Reason,
	)

	b, err := json.Marshal(decision)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// loadOptionalUser resolves a user id query param. An empty param or a
// user that does not exist both come back nil so the evaluator can fail
// closed; only real storage errors propagate.
func (u User) loadOptionalUser(id string) (*models.User, error) {
	if id == "" {
		return nil, nil
	}
	uID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	user, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
