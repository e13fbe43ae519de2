package permissions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/databases/mocks"
	"github.com/wanderlist/wanderlist-api/models"
	"github.com/wanderlist/wanderlist-api/permissions"
)

// newService wires a permission service where every collection is
// served by the same mocked database helper.
func newService(db databases.DatabaseHelper) *permissions.Service {
	return permissions.NewService(
		databases.NewDestinationDatabase(db),
		databases.NewExperienceDatabase(db),
		databases.NewPlanDatabase(db),
		databases.NewPhotoDatabase(db),
	)
}

func experienceFindOne(t *testing.T, conn *mocks.CollectionHelper, expID primitive.ObjectID, perms []models.Permission) {
	t.Helper()
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		exp := args.Get(0).(*models.Experience)
		exp.ID = expID
		exp.Permissions = perms
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)
}

func TestService_AddReplacesExistingEntry(t *testing.T) {
	expID := primitive.NewObjectID()
	granteeID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
		models.NewUserPermission(granteeID, models.RoleCollaborator),
	})

	var updates []bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			updates = append(updates, args.Get(2).(bson.M))
		})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Add(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, granteeID, models.RoleOwner)
	assert.NoError(t, err)

	// The existing collaborator entry is pulled before the owner
	// grant is pushed, so the grantee ends with exactly one entry.
	assert.Len(t, updates, 2)
	_, hasPull := updates[0]["$pull"]
	assert.True(t, hasPull)
	pushed := updates[1]["$push"].(bson.M)["permissions"].(models.Permission)
	assert.Equal(t, models.RoleOwner, pushed.Type)
	assert.Equal(t, granteeID, pushed.ID)
}

func TestService_AddCannotReplaceOwnerEntry(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
	})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Add(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, ownerID, models.RoleCollaborator)

	var denied *models.AuthorizationDenied
	assert.True(t, errors.As(err, &denied))
	conn.AssertNumberOfCalls(t, "UpdateOne", 0)

	// Re-granting owner to the owner is a harmless no-op.
	err = svc.Add(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, ownerID, models.RoleOwner)
	assert.NoError(t, err)
	conn.AssertNumberOfCalls(t, "UpdateOne", 0)
}

func TestService_RemoveOwnerIsDenied(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
	})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Remove(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, ownerID)

	var denied *models.AuthorizationDenied
	assert.True(t, errors.As(err, &denied))
	conn.AssertNumberOfCalls(t, "UpdateOne", 0)
}

func TestService_RemoveCollaborator(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	granteeID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
		models.NewUserPermission(granteeID, models.RoleCollaborator),
	})

	var updates []bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			updates = append(updates, args.Get(2).(bson.M))
		})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Remove(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, granteeID)
	assert.NoError(t, err)
	assert.Len(t, updates, 1)
	_, hasPull := updates[0]["$pull"]
	assert.True(t, hasPull)
}

func TestService_RemoveMissingEntry(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
	})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Remove(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, primitive.NewObjectID())

	var notFound *models.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestService_ContributorIsPhotoOnly(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	svc := newService(db)

	err := svc.Add(context.Background(), models.EntityExperience, primitive.NewObjectID(), models.GranteeEntityUser, primitive.NewObjectID(), models.RoleContributor)
	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestService_ContributorAllowedOnPhotos(t *testing.T) {
	photoID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	granteeID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		photo := args.Get(0).(*models.Photo)
		photo.ID = photoID
		photo.Permissions = []models.Permission{models.NewUserPermission(ownerID, models.RoleOwner)}
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)

	var updates []bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			updates = append(updates, args.Get(2).(bson.M))
		})
	db.On("Collection", "photos").Return(conn)

	svc := newService(db)
	err := svc.Add(context.Background(), models.EntityPhoto, photoID, models.GranteeEntityUser, granteeID, models.RoleContributor)
	assert.NoError(t, err)
	pushed := updates[1]["$push"].(bson.M)["permissions"].(models.Permission)
	assert.Equal(t, models.RoleContributor, pushed.Type)
}

func TestService_UpdateRoleInPlace(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	granteeID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
		models.NewUserPermission(granteeID, models.RoleCollaborator),
	})

	var updates []bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			updates = append(updates, args.Get(2).(bson.M))
		})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Update(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, granteeID, models.RoleOwner)
	assert.NoError(t, err)

	assert.Len(t, updates, 1)
	set := updates[0]["$set"].(bson.M)
	assert.Equal(t, models.RoleOwner, set["permissions.$.type"])
}

func TestService_UpdateOwnerEntryIsDenied(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
	})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	err := svc.Update(context.Background(), models.EntityExperience, expID, models.GranteeEntityUser, ownerID, models.RoleCollaborator)

	var denied *models.AuthorizationDenied
	assert.True(t, errors.As(err, &denied))
	conn.AssertNumberOfCalls(t, "UpdateOne", 0)
}

func TestService_EntityNotFound(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)
	db.On("Collection", "plans").Return(conn)

	svc := newService(db)
	_, err := svc.List(context.Background(), models.EntityPlan, primitive.NewObjectID())

	var notFound *models.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestService_UnknownEntityKind(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	svc := newService(db)

	_, err := svc.List(context.Background(), models.EntityKind("community"), primitive.NewObjectID())
	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestService_RoleOf(t *testing.T) {
	expID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	experienceFindOne(t, conn, expID, []models.Permission{
		models.NewUserPermission(ownerID, models.RoleOwner),
	})
	db.On("Collection", "experiences").Return(conn)

	svc := newService(db)
	role, ok, err := svc.RoleOf(context.Background(), models.EntityExperience, expID, ownerID)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleOwner, role)

	_, ok, err = svc.RoleOf(context.Background(), models.EntityExperience, expID, primitive.NewObjectID())
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, permissions.CanManagePermissions(models.RoleOwner))
	assert.True(t, permissions.CanManagePermissions(models.RoleCollaborator))
	assert.False(t, permissions.CanManagePermissions(models.RoleContributor))
}
