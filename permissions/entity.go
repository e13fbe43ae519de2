package permissions

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
)

// PermissionedEntity adapts one permission-bearing collection so the
// rules in Service are written once and applied uniformly across
// destinations, experiences, plans and photos.
type PermissionedEntity interface {
	Kind() models.EntityKind
	Permissions(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error)
	PullPermission(ctx context.Context, id primitive.ObjectID, granteeType string, granteeID primitive.ObjectID) error
	PushPermission(ctx context.Context, id primitive.ObjectID, perm models.Permission) error
	SetPermissionRole(ctx context.Context, id primitive.ObjectID, granteeType string, granteeID primitive.ObjectID, role models.PermissionRole) (int64, error)
}

// permissionUpdater is the slice of the typed database wrappers the
// adapter needs for array mutations. All four collections satisfy it.
type permissionUpdater interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type entityAdapter struct {
	kind    models.EntityKind
	updater permissionUpdater
	load    func(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error)
}

// NewDestinationEntity adapts the destination collection.
func NewDestinationEntity(db databases.DestinationDatabase) PermissionedEntity {
	return &entityAdapter{
		kind:    models.EntityDestination,
		updater: db,
		load: func(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error) {
			dest, err := db.FindOne(ctx, bson.M{"_id": id})
			if err != nil {
				return nil, err
			}
			return dest.Permissions, nil
		},
	}
}

// NewExperienceEntity adapts the experience collection.
func NewExperienceEntity(db databases.ExperienceDatabase) PermissionedEntity {
	return &entityAdapter{
		kind:    models.EntityExperience,
		updater: db,
		load: func(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error) {
			exp, err := db.FindOne(ctx, bson.M{"_id": id})
			if err != nil {
				return nil, err
			}
			return exp.Permissions, nil
		},
	}
}

// NewPlanEntity adapts the plan collection.
func NewPlanEntity(db databases.PlanDatabase) PermissionedEntity {
	return &entityAdapter{
		kind:    models.EntityPlan,
		updater: db,
		load: func(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error) {
			plan, err := db.FindOne(ctx, bson.M{"_id": id})
			if err != nil {
				return nil, err
			}
			return plan.Permissions, nil
		},
	}
}

// NewPhotoEntity adapts the photo collection.
func NewPhotoEntity(db databases.PhotoDatabase) PermissionedEntity {
	return &entityAdapter{
		kind:    models.EntityPhoto,
		updater: db,
		load: func(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error) {
			photo, err := db.FindOne(ctx, bson.M{"_id": id})
			if err != nil {
				return nil, err
			}
			return photo.Permissions, nil
		},
	}
}

func (a *entityAdapter) Kind() models.EntityKind { return a.kind }

func (a *entityAdapter) Permissions(ctx context.Context, id primitive.ObjectID) ([]models.Permission, error) {
	return a.load(ctx, id)
}

func (a *entityAdapter) PullPermission(ctx context.Context, id primitive.ObjectID, granteeType string, granteeID primitive.ObjectID) error {
	_, err := a.updater.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"permissions": bson.M{"_id": granteeID, "entity": granteeType}},
	})
	return err
}

func (a *entityAdapter) PushPermission(ctx context.Context, id primitive.ObjectID, perm models.Permission) error {
	_, err := a.updater.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"permissions": perm},
	})
	return err
}

func (a *entityAdapter) SetPermissionRole(ctx context.Context, id primitive.ObjectID, granteeType string, granteeID primitive.ObjectID, role models.PermissionRole) (int64, error) {
	res, err := a.updater.UpdateOne(ctx,
		bson.M{"_id": id, "permissions": bson.M{"$elemMatch": bson.M{"_id": granteeID, "entity": granteeType}}},
		bson.M{"$set": bson.M{"permissions.$.type": role}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
