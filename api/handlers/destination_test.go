package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderlist/wanderlist-api/api/handlers"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/databases/mocks"
	"github.com/wanderlist/wanderlist-api/models"
)

func TestDestination_DestinationHandlerBadID(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	req := httptest.NewRequest("GET", "/api/v1/destination/asdf", nil)
	req = mux.SetURLVars(req, map[string]string{"destination_id": "asdf"})
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"response": "failed to get objectID from Hex, the provided hex string is not a valid ObjectID"}`, rr.Body.String())
}

func TestDestination_DestinationHandler(t *testing.T) {
	destID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	res := &mocks.SingleResultHelper{}
	res.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		d := args.Get(0).(*models.Destination)
		d.ID = destID
		d.Name = "Kyoto"
		d.Country = "Japan"
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(res)
	db.On("Collection", "destinations").Return(conn)

	req := httptest.NewRequest("GET", "/api/v1/destination/"+destID.Hex(), nil)
	req = mux.SetURLVars(req, map[string]string{"destination_id": destID.Hex()})
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var dest models.Destination
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dest))
	assert.Equal(t, "Kyoto", dest.Name)
	assert.Equal(t, "Japan", dest.Country)
}

func TestDestination_CreateHandlerRequiresName(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	body := jsonBody(t, models.Destination{Creator: primitive.NewObjectID()})
	req := httptest.NewRequest("POST", "/api/v1/destination", body)
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationCreateHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"response": "name is required, name is required"}`, rr.Body.String())
}

func TestDestination_CreateHandlerRequiresCreator(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	body := jsonBody(t, models.Destination{Name: "Kyoto"})
	req := httptest.NewRequest("POST", "/api/v1/destination", body)
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationCreateHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "creator is required")
}

func TestDestination_CreateHandlerGrantsOwner(t *testing.T) {
	creatorID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var inserted models.Destination
	conn.On("InsertOne", mock.Anything, mock.Anything).
		Return(&mocks.InsertOneResultHelper{}, nil).
		Run(func(args mock.Arguments) {
			inserted = args.Get(1).(models.Destination)
		})
	db.On("Collection", "destinations").Return(conn)

	body := jsonBody(t, models.Destination{Name: "Kyoto", Country: "Japan", Creator: creatorID})
	req := httptest.NewRequest("POST", "/api/v1/destination", body)
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationCreateHandler(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	assert.False(t, inserted.ID.IsZero())
	assert.Len(t, inserted.Permissions, 1, "creation grants exactly the owner entry")
	assert.Equal(t, models.GranteeEntityUser, inserted.Permissions[0].Entity)
	assert.Equal(t, models.RoleOwner, inserted.Permissions[0].Type)
	assert.Equal(t, creatorID, inserted.Permissions[0].ID)

	var resp models.Destination
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, inserted.ID, resp.ID)
}

func TestDestination_UpdateHandlerNotFound(t *testing.T) {
	destID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)
	db.On("Collection", "destinations").Return(conn)

	body := jsonBody(t, models.Destination{Name: "Kyoto"})
	req := httptest.NewRequest("PUT", "/api/v1/destination/"+destID.Hex(), body)
	req = mux.SetURLVars(req, map[string]string{"destination_id": destID.Hex()})
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationUpdateHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "destination not found")
}

func TestDestination_UpdateHandlerLeavesPermissionsAlone(t *testing.T) {
	destID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var update bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(bson.M)
		})
	db.On("Collection", "destinations").Return(conn)

	body := jsonBody(t, models.Destination{Name: "Kyoto", Country: "Japan"})
	req := httptest.NewRequest("PUT", "/api/v1/destination/"+destID.Hex(), body)
	req = mux.SetURLVars(req, map[string]string{"destination_id": destID.Hex()})
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationUpdateHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"updated": true}`, rr.Body.String())

	set := update["$set"].(bson.M)
	assert.Equal(t, "Kyoto", set["name"])
	assert.NotContains(t, set, "permissions", "profile updates never touch the permissions array")
}

func TestDestination_DestinationsByUserHandler(t *testing.T) {
	userID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var filter bson.M
	cur := &mocks.CursorHelper{}
	cur.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*[]models.Destination) = []models.Destination{{ID: primitive.NewObjectID(), Name: "Lisbon"}}
	})
	conn.On("Find", mock.Anything, mock.Anything).Return(cur, nil).Run(func(args mock.Arguments) {
		filter = args.Get(1).(bson.M)
	})
	db.On("Collection", "destinations").Return(conn)

	req := httptest.NewRequest("GET", "/api/v1/destinations/user/"+userID.Hex(), nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": userID.Hex()})
	rr := httptest.NewRecorder()
	handlers.Destination{DB: databases.NewDestinationDatabase(db)}.DestinationsByUserHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	elem := filter["permissions"].(bson.M)["$elemMatch"].(bson.M)
	assert.Equal(t, models.GranteeEntityUser, elem["entity"], "any role qualifies, the filter only pins the grantee")
	assert.Equal(t, userID, elem["_id"])

	var dests []models.Destination
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dests))
	assert.Len(t, dests, 1)
	assert.Equal(t, "Lisbon", dests[0].Name)
}
