package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderlist/wanderlist-api/api/handlers"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/databases/mocks"
	"github.com/wanderlist/wanderlist-api/models"
)

func newAdminHandler(db databases.DatabaseHelper) handlers.Admin {
	return handlers.Admin{
		ADB: databases.NewAdminDatabase(db),
		RDB: databases.NewAdminResetDatabase(db),
		UDB: databases.NewUserDatabase(db),
		IDB: databases.NewInviteCodeDatabase(db),
	}
}

func stubAdminFindOne(conn *mocks.CollectionHelper, admin models.AdminUser) {
	res := &mocks.SingleResultHelper{}
	res.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.AdminUser) = admin
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(res)
}

func TestAdmin_LoginUnknownEmail(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	res := &mocks.SingleResultHelper{}
	res.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(res)
	db.On("Collection", "admin_users").Return(conn)

	body := jsonBody(t, map[string]string{"email": "nobody@wanderlist.app", "password": "whatever123"})
	req := httptest.NewRequest("POST", "/api/v1/admin/login", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminLoginHandler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid credentials")
}

func TestAdmin_LoginInvalidCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	stubAdminFindOne(conn, models.AdminUser{
		ID:           primitive.NewObjectID(),
		Email:        "ops@wanderlist.app",
		PasswordHash: string(hash),
		Active:       true,
	})
	db.On("Collection", "admin_users").Return(conn)

	body := jsonBody(t, map[string]string{"email": "ops@wanderlist.app", "password": "wrong-horse"})
	req := httptest.NewRequest("POST", "/api/v1/admin/login", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminLoginHandler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var resp models.ErrorResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Code)
}

func TestAdmin_LoginIssuesToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	adminID := primitive.NewObjectID()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	stubAdminFindOne(conn, models.AdminUser{
		ID:           adminID,
		Email:        "ops@wanderlist.app",
		PasswordHash: string(hash),
		Active:       true,
		Roles:        []string{"head_admin"},
	})
	db.On("Collection", "admin_users").Return(conn)

	body := jsonBody(t, map[string]string{"email": "ops@wanderlist.app", "password": "correct-horse"})
	req := httptest.NewRequest("POST", "/api/v1/admin/login", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminLoginHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string `json:"token"`
		Admin struct {
			ID    string   `json:"id"`
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"admin"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, adminID.Hex(), resp.Admin.ID)

	parsed, err := jwt.Parse(resp.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin", claims["scope"])
	assert.Equal(t, adminID.Hex(), claims["sub"])
}

func TestAdmin_UserFlagsHandlerGrant(t *testing.T) {
	userID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var updates []bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			updates = append(updates, args.Get(2).(bson.M))
		})
	db.On("Collection", "users").Return(conn)

	body := jsonBody(t, map[string]string{"action": "grant", "key": models.FlagAIFeatures})
	req := httptest.NewRequest("POST", "/api/v1/admin/users/"+userID.Hex()+"/flags", body)
	req = mux.SetURLVars(req, map[string]string{"user_id": userID.Hex()})
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminUserFlagsHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// A grant replaces any stale entry for the key before pushing the
	// fresh one.
	assert.Len(t, updates, 2)
	pull := updates[0]["$pull"].(bson.M)["featureFlags"].(bson.M)
	assert.Equal(t, models.FlagAIFeatures, pull["key"])

	granted := updates[1]["$push"].(bson.M)["featureFlags"].(models.FeatureFlag)
	assert.Equal(t, models.FlagAIFeatures, granted.Key)
	assert.True(t, granted.Enabled)
	assert.Equal(t, "admin", granted.Source, "console grants stay distinguishable from subscription provisioning")
}

func TestAdmin_UserFlagsHandlerRevoke(t *testing.T) {
	userID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var update bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(bson.M)
		})
	db.On("Collection", "users").Return(conn)

	body := jsonBody(t, map[string]string{"action": "revoke", "key": models.FlagEarlyAccess})
	req := httptest.NewRequest("POST", "/api/v1/admin/users/"+userID.Hex()+"/flags", body)
	req = mux.SetURLVars(req, map[string]string{"user_id": userID.Hex()})
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminUserFlagsHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	pull := update["$pull"].(bson.M)["featureFlags"].(bson.M)
	assert.Equal(t, models.FlagEarlyAccess, pull["key"])
}

func TestAdmin_UserFlagsHandlerRejectsUnknownAction(t *testing.T) {
	userID := primitive.NewObjectID()
	db := &mocks.DatabaseHelper{}

	body := jsonBody(t, map[string]string{"action": "toggle", "key": models.FlagAIFeatures})
	req := httptest.NewRequest("POST", "/api/v1/admin/users/"+userID.Hex()+"/flags", body)
	req = mux.SetURLVars(req, map[string]string{"user_id": userID.Hex()})
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminUserFlagsHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "action must be grant or revoke")
}

func TestAdmin_UserTempPasswordHandler(t *testing.T) {
	userID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	stubUserFindOne(conn, models.User{ID: userID, Email: "joan@example.com"})

	var update bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(bson.M)
		})
	db.On("Collection", "users").Return(conn)

	req := httptest.NewRequest("POST", "/api/v1/admin/users/"+userID.Hex()+"/temp-password", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": userID.Hex()})
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminUserTempPasswordHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success      bool   `json:"success"`
		TempPassword string `json:"tempPassword"`
		UserEmail    string `json:"userEmail"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.TempPassword, 8)
	assert.Equal(t, "joan@example.com", resp.UserEmail)

	stored := update["$set"].(bson.M)["password"].(string)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte(resp.TempPassword)),
		"the stored hash must match the password handed to support")
}

func TestAdmin_InviteSearchHandler(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var filter bson.M
	cur := &mocks.CursorHelper{}
	cur.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*[]models.InviteCode) = []models.InviteCode{
			{Code: "wanderaaaa01"}, {Code: "wanderaaaa02"}, {Code: "wanderaaaa03"},
		}
	})
	conn.On("Find", mock.Anything, mock.Anything).Return(cur, nil).Run(func(args mock.Arguments) {
		filter = args.Get(1).(bson.M)
	})
	db.On("Collection", "inviteCodes").Return(conn)

	body := jsonBody(t, map[string]interface{}{"code": "wander", "limit": 2})
	req := httptest.NewRequest("POST", "/api/v1/admin/invites/search", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminInviteSearchHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	code := filter["code"].(bson.M)
	assert.Equal(t, "wander", code["$regex"])
	assert.Equal(t, "i", code["$options"])

	var resp struct {
		Invites []models.InviteCode `json:"invites"`
		Count   int                 `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Invites, 2, "results are truncated to the requested limit")
	assert.Equal(t, 2, resp.Count)
}

func TestAdmin_UserSearchRequiresQuery(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	body := jsonBody(t, map[string]string{"query": "   "})
	req := httptest.NewRequest("POST", "/api/v1/admin/users/search", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminUserSearchHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "query required")
}

func TestAdmin_UserSearchHandler(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	var filter bson.M
	cur := &mocks.CursorHelper{}
	cur.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*[]models.User) = []models.User{{Email: "joan@example.com"}}
	})
	conn.On("Find", mock.Anything, mock.Anything).Return(cur, nil).Run(func(args mock.Arguments) {
		filter = args.Get(1).(bson.M)
	})
	db.On("Collection", "users").Return(conn)

	body := jsonBody(t, map[string]string{"query": "joan"})
	req := httptest.NewRequest("POST", "/api/v1/admin/users/search", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminUserSearchHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, filter["$or"].([]bson.M), 3, "email, name and username are all searched")

	var resp struct {
		Users []models.User `json:"users"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 1)
}

func TestAdmin_ResetPasswordRejectsBadToken(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	res := &mocks.SingleResultHelper{}
	res.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(res)
	db.On("Collection", "admin_password_resets").Return(conn)

	body := jsonBody(t, map[string]string{"token": "deadbeef", "password": "new-pass-123"})
	req := httptest.NewRequest("POST", "/api/v1/admin/reset-password", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminResetPasswordHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid or expired token")
}

func TestAdmin_ResetPasswordUpdatesHash(t *testing.T) {
	adminID := primitive.NewObjectID()
	resetID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	resets := &mocks.CollectionHelper{}
	admins := &mocks.CollectionHelper{}

	resetRes := &mocks.SingleResultHelper{}
	resetRes.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.AdminPasswordReset) = models.AdminPasswordReset{
			ID:        resetID,
			AdminID:   adminID,
			ExpiresAt: time.Now().Add(time.Hour),
		}
	})
	resets.On("FindOne", mock.Anything, mock.Anything).Return(resetRes)

	var tokenUpdate bson.M
	resets.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			tokenUpdate = args.Get(2).(bson.M)
		})

	var adminUpdate bson.M
	admins.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			adminUpdate = args.Get(2).(bson.M)
		})

	db.On("Collection", "admin_password_resets").Return(resets)
	db.On("Collection", "admin_users").Return(admins)

	body := jsonBody(t, map[string]string{"token": "plaintoken", "password": "new-pass-123"})
	req := httptest.NewRequest("POST", "/api/v1/admin/reset-password", body)
	rr := httptest.NewRecorder()
	newAdminHandler(db).AdminResetPasswordHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "password updated")

	stored := adminUpdate["$set"].(bson.M)["passwordHash"].(string)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("new-pass-123")))
	assert.Contains(t, tokenUpdate["$set"].(bson.M), "usedAt", "a spent token can never be replayed")
}

func TestAdmin_EnsureHeadAdminSeedsAccount(t *testing.T) {
	t.Setenv("HEAD_ADMIN_EMAIL", "Ops@Wanderlist.app")
	t.Setenv("HEAD_ADMIN_PASSWORD", "bootstrap-pass")

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	res := &mocks.SingleResultHelper{}
	res.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(res)

	var inserted models.AdminUser
	conn.On("InsertOne", mock.Anything, mock.Anything).
		Return(&mocks.InsertOneResultHelper{}, nil).
		Run(func(args mock.Arguments) {
			inserted = args.Get(1).(models.AdminUser)
		})
	db.On("Collection", "admin_users").Return(conn)

	err := handlers.EnsureHeadAdmin(databases.NewAdminDatabase(db))
	assert.NoError(t, err)

	assert.Equal(t, "ops@wanderlist.app", inserted.Email)
	assert.True(t, inserted.Active)
	assert.Equal(t, []string{"head_admin"}, inserted.Roles)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(inserted.PasswordHash), []byte("bootstrap-pass")))
}

func TestAdmin_EnsureHeadAdminSkipsWhenUnset(t *testing.T) {
	t.Setenv("HEAD_ADMIN_EMAIL", "")
	t.Setenv("HEAD_ADMIN_PASSWORD", "")

	db := &mocks.DatabaseHelper{}
	err := handlers.EnsureHeadAdmin(databases.NewAdminDatabase(db))
	assert.NoError(t, err)
	db.AssertNotCalled(t, "Collection", "admin_users")
}
