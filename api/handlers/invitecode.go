package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/invites"
)

// InviteCode exported for testing purposes
type InviteCode struct {
	Service *invites.Service
}

// InviteCodeCreateRequest wraps the engine's create request with the
// creating user.
type InviteCodeCreateRequest struct {
	CreatedBy primitive.ObjectID    `json:"createdBy"`
	Invite    invites.CreateRequest `json:"invite"`
}

// InviteCodeCreateHandler issues a single invite code
func (i InviteCode) InviteCodeCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req InviteCodeCreateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.CreatedBy.IsZero() {
		config.ErrorStatus("createdBy is required", http.StatusBadRequest, w, errRequired("createdBy"))
		return
	}

	result, err := i.Service.Create(context.Background(), req.CreatedBy, req.Invite)
	if err != nil {
		engineErrorStatus("failed to create invite code", w, err)
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// InviteCodeBulkCreateRequest carries one creator and many rows
type InviteCodeBulkCreateRequest struct {
	CreatedBy primitive.ObjectID      `json:"createdBy"`
	Invites   []invites.CreateRequest `json:"invites"`
}

// InviteCodeBulkCreateHandler issues many invite codes in one request.
// Row failures are reported per row; the response is 200 even when some
// rows fail, because partial success is the expected outcome.
func (i InviteCode) InviteCodeBulkCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req InviteCodeBulkCreateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.CreatedBy.IsZero() {
		config.ErrorStatus("createdBy is required", http.StatusBadRequest, w, errRequired("createdBy"))
		return
	}
	if len(req.Invites) == 0 {
		config.ErrorStatus("invites must not be empty", http.StatusBadRequest, w, errRequired("invites"))
		return
	}

	result := i.Service.BulkCreate(context.Background(), req.CreatedBy, req.Invites)

	zap.S().Debugw("bulk invite create finished",
		"requested", len(req.Invites),
		"created", len(result.Created),
		"failed", len(result.Errors),
	)

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// InviteCodeValidateHandler is the read-only redeemability check used
// by the join flow before the user commits to an account. It never
// consumes a use.
func (i InviteCode) InviteCodeValidateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	code := r.URL.Query().Get("code")
	email := r.URL.Query().Get("email")

	zap.S().Debugf("validate code: %v", code)

	result, err := i.Service.Validate(context.Background(), code, email)
	if err != nil {
		engineErrorStatus("failed to validate invite code", w, err)
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// InviteCodeRedeemRequest names the code and the redeeming user
type InviteCodeRedeemRequest struct {
	Code   string             `json:"code"`
	UserID primitive.ObjectID `json:"userId"`
}

// InviteCodeRedeemHandler converts a valid code into plans for the
// user. Repeat redemptions come back 200 with everything in skipped;
// per-experience failures come back in failures without failing the
// request.
func (i InviteCode) InviteCodeRedeemHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req InviteCodeRedeemRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.UserID.IsZero() {
		config.ErrorStatus("userId is required", http.StatusBadRequest, w, errRequired("userId"))
		return
	}

	result, err := i.Service.Redeem(context.Background(), req.Code, req.UserID)
	if err != nil {
		engineErrorStatus("failed to redeem invite code", w, err)
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// InviteCodeDeactivateHandler retires a code. Deactivating an already
// inactive code reports deactivated false with a 200; the end state is
// the same either way.
func (i InviteCode) InviteCodeDeactivateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	inviteID := mux.Vars(r)["invite_id"]

	zap.S().Debugf("invite_id: %v", inviteID)

	iID, err := primitive.ObjectIDFromHex(inviteID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	changed, err := i.Service.Deactivate(context.Background(), iID)
	if err != nil {
		engineErrorStatus("failed to deactivate invite code", w, err)
		return
	}

	b, err := json.Marshal(map[string]bool{"deactivated": changed})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// InviteCodesByUserHandler returns the invites a user has created,
// newest first, paginated with limit and page query params.
func (i InviteCode) InviteCodesByUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	limit := 10 // default limit
	page := 1   // default page
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil {
			limit = l
		}
	}
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if p, err := strconv.Atoi(pageParam); err == nil {
			page = p
		}
	}

	zap.S().Debugf("user_id: %v, limit: %v, page: %v", userID, limit, page)

	dbResp, err := i.Service.GetUserInvites(context.Background(), uID, limit, page)
	if err != nil {
		config.ErrorStatus("failed to get invites by user", http.StatusInternalServerError, w, err)
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
