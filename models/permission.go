package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// PermissionRole represents the standardized roles a grantee can hold on an entity
type PermissionRole string

// Predefined PermissionRole values
const (
	RoleOwner        PermissionRole = "owner"
	RoleCollaborator PermissionRole = "collaborator"
	RoleContributor  PermissionRole = "contributor"
)

// ValidPermissionRoles returns all valid PermissionRole values
func ValidPermissionRoles() []PermissionRole {
	return []PermissionRole{
		RoleOwner,
		RoleCollaborator,
		RoleContributor,
	}
}

// IsValid checks if the PermissionRole value is one of the predefined constants
func (r PermissionRole) IsValid() bool {
	for _, validRole := range ValidPermissionRoles() {
		if r == validRole {
			return true
		}
	}
	return false
}

// String returns the string representation of the PermissionRole
func (r PermissionRole) String() string {
	return string(r)
}

// EntityKind identifies which permission-bearing collection a request targets
type EntityKind string

// Predefined EntityKind values
const (
	EntityDestination EntityKind = "destination"
	EntityExperience  EntityKind = "experience"
	EntityPlan        EntityKind = "plan"
	EntityPhoto       EntityKind = "photo"
)

// ValidEntityKinds returns all valid EntityKind values
func ValidEntityKinds() []EntityKind {
	return []EntityKind{
		EntityDestination,
		EntityExperience,
		EntityPlan,
		EntityPhoto,
	}
}

// IsValid checks if the EntityKind value is one of the predefined constants
func (k EntityKind) IsValid() bool {
	for _, validKind := range ValidEntityKinds() {
		if k == validKind {
			return true
		}
	}
	return false
}

// String returns the string representation of the EntityKind
func (k EntityKind) String() string {
	return string(k)
}

// Permission is a single (grantee, role) entry embedded in the permissions
// array of destinations, experiences, plans and photos. Entity names the kind
// of grantee, currently always "user". The grantee reference is stored under
// _id inside the array element.
type Permission struct {
	Entity string             `json:"entity" bson:"entity"`
	Type   PermissionRole     `json:"type" bson:"type"`
	ID     primitive.ObjectID `json:"_id" bson:"_id"`
}

// GranteeEntityUser is the only grantee kind currently issued
const GranteeEntityUser = "user"

// NewUserPermission builds a permission entry granting role to the given user
func NewUserPermission(userID primitive.ObjectID, role PermissionRole) Permission {
	return Permission{
		Entity: GranteeEntityUser,
		Type:   role,
		ID:     userID,
	}
}
