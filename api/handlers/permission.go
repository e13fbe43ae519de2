package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
	"github.com/wanderlist/wanderlist-api/permissions"
)

// Permissions exported for testing purposes
type Permissions struct {
	Service *permissions.Service
	UserDB  databases.UserDatabase
	Hub     *EventHub
}

// PermissionGrantRequest mirrors the embedded permission entry shape
type PermissionGrantRequest struct {
	Entity string                `json:"entity"`
	Type   models.PermissionRole `json:"type"`
	ID     primitive.ObjectID    `json:"_id"`
}

// PermissionListHandler returns the permission entries on an entity
func (p Permissions) PermissionListHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	kind, entityID, ok := p.entityVars(w, r)
	if !ok {
		return
	}

	perms, err := p.Service.List(context.Background(), kind, entityID)
	if err != nil {
		engineErrorStatus("failed to list permissions", w, err)
		return
	}
	if len(perms) == 0 {
		perms = []models.Permission{}
	}

	b, err := json.Marshal(perms)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// PermissionAddHandler grants a role on an entity. The actor must hold
// a managing role on the entity or be a super admin.
func (p Permissions) PermissionAddHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	kind, entityID, ok := p.entityVars(w, r)
	if !ok {
		return
	}

	var req PermissionGrantRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.Entity == "" {
		req.Entity = models.GranteeEntityUser
	}
	if req.ID.IsZero() {
		config.ErrorStatus("grantee _id is required", http.StatusBadRequest, w, fmt.Errorf("grantee _id is required"))
		return
	}

	if !p.authorizeManage(w, r, kind, entityID) {
		return
	}

	err = p.Service.Add(context.Background(), kind, entityID, req.Entity, req.ID, req.Type)
	if err != nil {
		engineErrorStatus("failed to add permission", w, err)
		return
	}

	p.notifyGrantee(req.ID, kind, entityID, string(req.Type))

	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{"granted": true}`))
}

// PermissionUpdateHandler changes the role on an existing entry
func (p Permissions) PermissionUpdateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	kind, entityID, ok := p.entityVars(w, r)
	if !ok {
		return
	}

	granteeID, err := primitive.ObjectIDFromHex(mux.Vars(r)["grantee_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req PermissionGrantRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.Entity == "" {
		req.Entity = models.GranteeEntityUser
	}

	if !p.authorizeManage(w, r, kind, entityID) {
		return
	}

	err = p.Service.Update(context.Background(), kind, entityID, req.Entity, granteeID, req.Type)
	if err != nil {
		engineErrorStatus("failed to update permission", w, err)
		return
	}

	p.notifyGrantee(granteeID, kind, entityID, string(req.Type))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"updated": true}`))
}

// PermissionRemoveHandler deletes a grantee's entry. Owner entries are
// denied downstream; they live exactly as long as the entity does.
func (p Permissions) PermissionRemoveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	kind, entityID, ok := p.entityVars(w, r)
	if !ok {
		return
	}

	granteeID, err := primitive.ObjectIDFromHex(mux.Vars(r)["grantee_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	granteeType := r.URL.Query().Get("entity")
	if granteeType == "" {
		granteeType = models.GranteeEntityUser
	}

	if !p.authorizeManage(w, r, kind, entityID) {
		return
	}

	err = p.Service.Remove(context.Background(), kind, entityID, granteeType, granteeID)
	if err != nil {
		engineErrorStatus("failed to remove permission", w, err)
		return
	}

	p.notifyGrantee(granteeID, kind, entityID, "")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"removed": true}`))
}

func (p Permissions) entityVars(w http.ResponseWriter, r *http.Request) (models.EntityKind, primitive.ObjectID, bool) {
	vars := mux.Vars(r)
	kind := models.EntityKind(vars["entity_kind"])
	if !kind.IsValid() {
		config.ErrorStatus("unknown entity kind", http.StatusBadRequest, w, fmt.Errorf("unknown entity kind %q", vars["entity_kind"]))
		return "", primitive.NilObjectID, false
	}

	entityID, err := primitive.ObjectIDFromHex(vars["entity_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return "", primitive.NilObjectID, false
	}

	zap.S().Debugf("entity_kind: %v, entity_id: %v", kind, entityID.Hex())
	return kind, entityID, true
}

// authorizeManage gates permission mutations on the acting user. Super
// admins pass unconditionally; everyone else needs a managing role on
// the entity itself. Writes false and answers the request on failure.
func (p Permissions) authorizeManage(w http.ResponseWriter, r *http.Request, kind models.EntityKind, entityID primitive.ObjectID) bool {
	actorParam := r.URL.Query().Get("actorId")
	if actorParam == "" {
		config.ErrorStatus("query param actorId is required", http.StatusBadRequest, w, fmt.Errorf("query param actorId is required"))
		return false
	}
	actorID, err := primitive.ObjectIDFromHex(actorParam)
	if err != nil {
		config.ErrorStatus("invalid actorId", http.StatusBadRequest, w, err)
		return false
	}

	actor, err := p.UserDB.FindOne(context.Background(), bson.M{"_id": actorID})
	if err != nil {
		config.ErrorStatus("failed to get acting user", http.StatusNotFound, w, err)
		return false
	}
	if actor.SuperAdmin {
		return true
	}

	role, held, err := p.Service.RoleOf(context.Background(), kind, entityID, actorID)
	if err != nil {
		engineErrorStatus("failed to resolve actor role", w, err)
		return false
	}
	if !held || !permissions.CanManagePermissions(role) {
		config.ErrorStatus("actor may not manage permissions on this entity", http.StatusForbidden,
			w, fmt.Errorf("actor %s holds no managing role on %s %s", actorID.Hex(), kind, entityID.Hex()))
		return false
	}
	return true
}

// notifyGrantee pushes a permission_changed event to the affected user.
// Best effort after the write has committed.
func (p Permissions) notifyGrantee(granteeID primitive.ObjectID, kind models.EntityKind, entityID primitive.ObjectID, role string) {
	if p.Hub == nil {
		return
	}
	p.Hub.SendToUser(granteeID.Hex(), "permission_changed", map[string]interface{}{
		"entityKind": kind.String(),
		"entityId":   entityID.Hex(),
		"role":       role,
	})
}
