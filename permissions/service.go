// Package permissions manages the (grantee, role) entries embedded in
// destination, experience, plan and photo documents. Every entity
// keeps exactly one owner entry from creation until deletion; the
// operations here never remove or downgrade it.
package permissions

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
)

// Service applies the permission rules uniformly across the four
// entity kinds.
type Service struct {
	entities map[models.EntityKind]PermissionedEntity
}

// NewService wires one adapter per permission-bearing collection.
func NewService(dest databases.DestinationDatabase, exp databases.ExperienceDatabase, plans databases.PlanDatabase, photos databases.PhotoDatabase) *Service {
	s := &Service{entities: make(map[models.EntityKind]PermissionedEntity)}
	for _, e := range []PermissionedEntity{
		NewDestinationEntity(dest),
		NewExperienceEntity(exp),
		NewPlanEntity(plans),
		NewPhotoEntity(photos),
	} {
		s.entities[e.Kind()] = e
	}
	return s
}

func (s *Service) entity(kind models.EntityKind) (PermissionedEntity, error) {
	e, ok := s.entities[kind]
	if !ok {
		return nil, &models.ValidationError{Field: "entityKind", Reason: "unknown entity kind " + kind.String()}
	}
	return e, nil
}

// List returns the permission entries on the entity.
func (s *Service) List(ctx context.Context, kind models.EntityKind, entityID primitive.ObjectID) ([]models.Permission, error) {
	e, err := s.entity(kind)
	if err != nil {
		return nil, err
	}
	perms, err := e.Permissions(ctx, entityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Resource: kind.String(), ID: entityID.Hex()}
		}
		return nil, err
	}
	return perms, nil
}

// RoleOf returns the role the grantee currently holds on the entity.
// The boolean is false when the grantee holds no entry at all.
func (s *Service) RoleOf(ctx context.Context, kind models.EntityKind, entityID primitive.ObjectID, granteeID primitive.ObjectID) (models.PermissionRole, bool, error) {
	perms, err := s.List(ctx, kind, entityID)
	if err != nil {
		return "", false, err
	}
	entry := findEntry(perms, models.GranteeEntityUser, granteeID)
	if entry == nil {
		return "", false, nil
	}
	return entry.Type, true, nil
}

// CanManagePermissions reports whether a role may alter other
// entries. Contributors may attach content but never touch the
// permission list.
func CanManagePermissions(role models.PermissionRole) bool {
	return role == models.RoleOwner || role == models.RoleCollaborator
}

// Add grants role to the grantee, replacing any entry the grantee
// already holds on the entity so no grantee ever appears twice. An
// existing owner entry is immutable: replacing it with a lesser role
// is denied, and owner-to-owner is a no-op.
func (s *Service) Add(ctx context.Context, kind models.EntityKind, entityID primitive.ObjectID, granteeType string, granteeID primitive.ObjectID, role models.PermissionRole) error {
	e, err := s.entity(kind)
	if err != nil {
		return err
	}
	if err := validateGrant(kind, granteeType, role); err != nil {
		return err
	}

	perms, err := e.Permissions(ctx, entityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.NotFoundError{Resource: kind.String(), ID: entityID.Hex()}
		}
		return err
	}

	if existing := findEntry(perms, granteeType, granteeID); existing != nil && existing.Type == models.RoleOwner {
		if role == models.RoleOwner {
			return nil
		}
		return &models.AuthorizationDenied{Reason: "owner permission cannot be replaced"}
	}

	// Pull unconditionally so concurrent adds collapse to one entry.
	if err := e.PullPermission(ctx, entityID, granteeType, granteeID); err != nil {
		return err
	}
	return e.PushPermission(ctx, entityID, models.Permission{Entity: granteeType, Type: role, ID: granteeID})
}

// Remove deletes the grantee's entry. Removing the owner entry is
// always denied; ownership ends only with the entity itself.
func (s *Service) Remove(ctx context.Context, kind models.EntityKind, entityID primitive.ObjectID, granteeType string, granteeID primitive.ObjectID) error {
	e, err := s.entity(kind)
	if err != nil {
		return err
	}

	perms, err := e.Permissions(ctx, entityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.NotFoundError{Resource: kind.String(), ID: entityID.Hex()}
		}
		return err
	}

	entry := findEntry(perms, granteeType, granteeID)
	if entry == nil {
		return &models.NotFoundError{Resource: "permission", ID: granteeID.Hex()}
	}
	if entry.Type == models.RoleOwner {
		return &models.AuthorizationDenied{Reason: "owner permission cannot be removed"}
	}
	return e.PullPermission(ctx, entityID, granteeType, granteeID)
}

// Update changes the role on the grantee's existing entry in place.
func (s *Service) Update(ctx context.Context, kind models.EntityKind, entityID primitive.ObjectID, granteeType string, granteeID primitive.ObjectID, newRole models.PermissionRole) error {
	e, err := s.entity(kind)
	if err != nil {
		return err
	}
	if err := validateGrant(kind, granteeType, newRole); err != nil {
		return err
	}

	perms, err := e.Permissions(ctx, entityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.NotFoundError{Resource: kind.String(), ID: entityID.Hex()}
		}
		return err
	}

	entry := findEntry(perms, granteeType, granteeID)
	if entry == nil {
		return &models.NotFoundError{Resource: "permission", ID: granteeID.Hex()}
	}
	if entry.Type == models.RoleOwner {
		if newRole == models.RoleOwner {
			return nil
		}
		return &models.AuthorizationDenied{Reason: "owner permission cannot be replaced"}
	}
	if entry.Type == newRole {
		return nil
	}

	modified, err := e.SetPermissionRole(ctx, entityID, granteeType, granteeID, newRole)
	if err != nil {
		return err
	}
	if modified == 0 {
		// The entry vanished between the read and the update.
		return &models.NotFoundError{Resource: "permission", ID: granteeID.Hex()}
	}
	return nil
}

func validateGrant(kind models.EntityKind, granteeType string, role models.PermissionRole) error {
	if granteeType != models.GranteeEntityUser {
		return &models.ValidationError{Field: "entity", Reason: "unsupported grantee type " + granteeType}
	}
	if !role.IsValid() {
		return &models.ValidationError{Field: "type", Reason: "unknown role " + role.String()}
	}
	if role == models.RoleContributor && kind != models.EntityPhoto {
		return &models.ValidationError{Field: "type", Reason: "contributor is a photo-only role"}
	}
	return nil
}

func findEntry(perms []models.Permission, granteeType string, granteeID primitive.ObjectID) *models.Permission {
	for i := range perms {
		if perms[i].Entity == granteeType && perms[i].ID == granteeID {
			return &perms[i]
		}
	}
	return nil
}
