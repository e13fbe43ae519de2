package invites_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderlist/wanderlist-api/databases/mocks"
	"github.com/wanderlist/wanderlist-api/invites"
	"github.com/wanderlist/wanderlist-api/models"
)

// userFindOne stubs the redeeming user lookup.
func userFindOne(conn *mocks.CollectionHelper, user models.User) {
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.User) = user
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)
}

// planFind stubs the existing-plans lookup that guards repeat redemptions.
func planFind(conn *mocks.CollectionHelper, plans []models.Plan) {
	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*[]models.Plan) = plans
	})
	conn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)
}

// claimReturns stubs the atomic use-count claim with the post-increment document.
func claimReturns(conn *mocks.CollectionHelper, claimed models.InviteCode) {
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.InviteCode) = claimed
	})
	conn.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(singleResult)
}

func TestService_RedeemMaterializesPlanSnapshots(t *testing.T) {
	userA := primitive.NewObjectID()
	expID := primitive.NewObjectID()
	destID := primitive.NewObjectID()
	parentItem := primitive.NewObjectID()
	childItem := primitive.NewObjectID()

	invite := models.InviteCode{
		ID:           primitive.NewObjectID(),
		Code:         "trip-code-24",
		Active:       true,
		MaxUses:      1,
		Experiences:  []primitive.ObjectID{expID},
		Destinations: []primitive.ObjectID{destID},
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}
	planConn := &mocks.CollectionHelper{}
	expConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userA, Email: "a@example.com"})
	inviteFindOne(codeConn, invite)

	planFind(planConn, nil)

	claimed := invite
	claimed.UsesCount = 1
	claimReturns(codeConn, claimed)

	planConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	expResult := &mocks.SingleResultHelper{}
	expResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.Experience) = models.Experience{
			ID:    expID,
			Title: "Kyoto in Autumn",
			PlanItems: []models.PlanItem{
				{ID: parentItem, Text: "Book flights", Cost: 450, PlanningDays: 2, URL: "https://flights.example.com", Photo: "flights.jpg"},
				{ID: childItem, Text: "Seat selection", Cost: 30, Parent: &parentItem},
			},
		}
	})
	expConn.On("FindOne", mock.Anything, mock.Anything).Return(expResult)

	var insertedPlan models.Plan
	planConn.On("InsertOne", mock.Anything, mock.Anything).
		Return(&mocks.InsertOneResultHelper{}, nil).
		Run(func(args mock.Arguments) {
			insertedPlan = args.Get(1).(models.Plan)
		})

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)
	db.On("Collection", "plans").Return(planConn)
	db.On("Collection", "experiences").Return(expConn)

	svc := newInviteService(db)
	result, err := svc.Redeem(context.Background(), "trip-code-24", userA)

	assert.NoError(t, err)
	assert.Len(t, result.CreatedPlans, 1)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Failures)
	assert.Equal(t, 1, result.Invite.UsesCount)
	assert.Equal(t, []primitive.ObjectID{destID}, result.Destinations, "destinations hand back ids only")

	assert.Equal(t, userA, insertedPlan.User)
	assert.Equal(t, expID, insertedPlan.Experience)
	assert.Equal(t, []models.Permission{models.NewUserPermission(userA, models.RoleOwner)}, insertedPlan.Permissions)

	if assert.Len(t, insertedPlan.Items, 2) {
		first := insertedPlan.Items[0]
		assert.Equal(t, parentItem, first.PlanItemID)
		assert.False(t, first.Complete)
		assert.Equal(t, 450.0, first.Cost)
		assert.Equal(t, 2, first.PlanningDays)
		assert.Equal(t, "Book flights", first.Text)
		assert.Equal(t, "https://flights.example.com", first.URL)
		assert.Equal(t, "flights.jpg", first.Photo)

		second := insertedPlan.Items[1]
		assert.Equal(t, childItem, second.PlanItemID)
		if assert.NotNil(t, second.Parent) {
			assert.Equal(t, parentItem, *second.Parent)
		}
	}
}

func TestService_RedeemRepeatIsNoOpWithoutConsumingUse(t *testing.T) {
	userA := primitive.NewObjectID()
	expID := primitive.NewObjectID()

	invite := models.InviteCode{
		ID:          primitive.NewObjectID(),
		Code:        "trip-code-24",
		Active:      true,
		MaxUses:     2,
		UsesCount:   1,
		Experiences: []primitive.ObjectID{expID},
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}
	planConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userA, Email: "a@example.com"})
	inviteFindOne(codeConn, invite)
	planFind(planConn, []models.Plan{{User: userA, Experience: expID}})

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)
	db.On("Collection", "plans").Return(planConn)

	svc := newInviteService(db)
	result, err := svc.Redeem(context.Background(), "trip-code-24", userA)

	assert.NoError(t, err, "repeat redemption is a success no-op")
	assert.Empty(t, result.CreatedPlans)
	assert.Equal(t, []primitive.ObjectID{expID}, result.Skipped)
	assert.Equal(t, 1, result.Invite.UsesCount, "no use consumed")
	codeConn.AssertNumberOfCalls(t, "FindOneAndUpdate", 0)
	planConn.AssertNumberOfCalls(t, "InsertOne", 0)
}

func TestService_RedeemExhaustedCodeIsDenied(t *testing.T) {
	userB := primitive.NewObjectID()

	invite := models.InviteCode{
		Code:        "trip-code-24",
		Active:      true,
		MaxUses:     1,
		UsesCount:   1,
		Experiences: []primitive.ObjectID{primitive.NewObjectID()},
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userB, Email: "b@example.com"})
	inviteFindOne(codeConn, invite)

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)

	svc := newInviteService(db)
	_, err := svc.Redeem(context.Background(), "trip-code-24", userB)

	var denied *invites.RedeemDenied
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, invites.ReasonExhausted, denied.Reason)
	codeConn.AssertNumberOfCalls(t, "FindOneAndUpdate", 0)
}

func TestService_RedeemEmailMismatchIsDenied(t *testing.T) {
	userB := primitive.NewObjectID()

	invite := models.InviteCode{
		Code:    "trip-code-24",
		Active:  true,
		MaxUses: 5,
		Email:   "a@example.com",
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userB, Email: "b@example.com"})
	inviteFindOne(codeConn, invite)

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)

	svc := newInviteService(db)
	_, err := svc.Redeem(context.Background(), "trip-code-24", userB)

	var denied *invites.RedeemDenied
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, invites.ReasonEmailMismatch, denied.Reason)
}

func TestService_RedeemUnknownUser(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	gone := &mocks.SingleResultHelper{}
	gone.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	userConn.On("FindOne", mock.Anything, mock.Anything).Return(gone)
	db.On("Collection", "users").Return(userConn)

	svc := newInviteService(db)
	_, err := svc.Redeem(context.Background(), "trip-code-24", primitive.NewObjectID())

	var notFound *models.NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "user", notFound.Resource)
}

func TestService_RedeemLostClaimRaceReportsExhausted(t *testing.T) {
	userB := primitive.NewObjectID()
	expID := primitive.NewObjectID()

	open := models.InviteCode{Code: "trip-code-24", Active: true, MaxUses: 1, Experiences: []primitive.ObjectID{expID}}
	drained := open
	drained.UsesCount = 1

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}
	planConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userB, Email: "b@example.com"})

	// First validation sees an open code, a concurrent redemption takes
	// the last use before the claim, and the recheck sees it drained.
	firstLook := &mocks.SingleResultHelper{}
	firstLook.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.InviteCode) = open
	})
	codeConn.On("FindOne", mock.Anything, mock.Anything).Return(firstLook).Once()

	lostClaim := &mocks.SingleResultHelper{}
	lostClaim.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	codeConn.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(lostClaim)

	recheck := &mocks.SingleResultHelper{}
	recheck.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.InviteCode) = drained
	})
	codeConn.On("FindOne", mock.Anything, mock.Anything).Return(recheck).Once()

	planFind(planConn, nil)

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)
	db.On("Collection", "plans").Return(planConn)

	svc := newInviteService(db)
	_, err := svc.Redeem(context.Background(), "trip-code-24", userB)

	var denied *invites.RedeemDenied
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, invites.ReasonExhausted, denied.Reason)
	planConn.AssertNumberOfCalls(t, "InsertOne", 0)
}

func TestService_RedeemConcurrentPlanInsertIsSkipped(t *testing.T) {
	userA := primitive.NewObjectID()
	expID := primitive.NewObjectID()

	invite := models.InviteCode{
		ID:          primitive.NewObjectID(),
		Code:        "trip-code-24",
		Active:      true,
		MaxUses:     5,
		Experiences: []primitive.ObjectID{expID},
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}
	planConn := &mocks.CollectionHelper{}
	expConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userA, Email: "a@example.com"})
	inviteFindOne(codeConn, invite)
	planFind(planConn, nil)

	claimed := invite
	claimed.UsesCount = 1
	claimReturns(codeConn, claimed)

	planConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	expResult := &mocks.SingleResultHelper{}
	expResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.Experience) = models.Experience{ID: expID}
	})
	expConn.On("FindOne", mock.Anything, mock.Anything).Return(expResult)

	// A racing request wins the unique (user, experience) index.
	planConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, duplicateKeyErr())

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)
	db.On("Collection", "plans").Return(planConn)
	db.On("Collection", "experiences").Return(expConn)

	svc := newInviteService(db)
	result, err := svc.Redeem(context.Background(), "trip-code-24", userA)

	assert.NoError(t, err, "losing the insert race is a skip, not an error")
	assert.Empty(t, result.CreatedPlans)
	assert.Empty(t, result.Failures)
	assert.Equal(t, []primitive.ObjectID{expID}, result.Skipped)
}

func TestService_RedeemIsolatesDeletedExperience(t *testing.T) {
	userA := primitive.NewObjectID()
	liveExp := primitive.NewObjectID()
	deletedExp := primitive.NewObjectID()

	invite := models.InviteCode{
		ID:          primitive.NewObjectID(),
		Code:        "trip-code-24",
		Active:      true,
		MaxUses:     1,
		Experiences: []primitive.ObjectID{liveExp, deletedExp},
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}
	planConn := &mocks.CollectionHelper{}
	expConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userA, Email: "a@example.com"})
	inviteFindOne(codeConn, invite)
	planFind(planConn, nil)

	claimed := invite
	claimed.UsesCount = 1
	claimReturns(codeConn, claimed)

	planConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	liveResult := &mocks.SingleResultHelper{}
	liveResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.Experience) = models.Experience{ID: liveExp, Title: "Lisbon food tour"}
	})
	expConn.On("FindOne", mock.Anything, bson.M{"_id": liveExp}).Return(liveResult)

	goneResult := &mocks.SingleResultHelper{}
	goneResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	expConn.On("FindOne", mock.Anything, bson.M{"_id": deletedExp}).Return(goneResult)

	planConn.On("InsertOne", mock.Anything, mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)
	db.On("Collection", "plans").Return(planConn)
	db.On("Collection", "experiences").Return(expConn)

	svc := newInviteService(db)
	result, err := svc.Redeem(context.Background(), "trip-code-24", userA)

	assert.NoError(t, err, "one broken experience never sinks the bundle")
	assert.Len(t, result.CreatedPlans, 1)
	assert.Equal(t, liveExp, result.CreatedPlans[0].Experience)
	if assert.Len(t, result.Failures, 1) {
		assert.Equal(t, deletedExp, result.Failures[0].Experience)
	}
	assert.Equal(t, 1, result.Invite.UsesCount, "claimed use is not refunded")
}

func TestService_RedeemDestinationOnlyInvite(t *testing.T) {
	userA := primitive.NewObjectID()
	destinations := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}

	invite := models.InviteCode{
		ID:           primitive.NewObjectID(),
		Code:         "city-pass",
		Active:       true,
		MaxUses:      10,
		Destinations: destinations,
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userA, Email: "a@example.com"})
	inviteFindOne(codeConn, invite)

	claimed := invite
	claimed.UsesCount = 1
	claimReturns(codeConn, claimed)

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)

	svc := newInviteService(db)
	result, err := svc.Redeem(context.Background(), "city-pass", userA)

	assert.NoError(t, err)
	assert.Empty(t, result.CreatedPlans)
	assert.Equal(t, destinations, result.Destinations)
	assert.Equal(t, 1, result.Invite.UsesCount, "destination-only redemption still consumes a use")
}

func TestService_RedeemDispatchesRedemptionHook(t *testing.T) {
	userA := primitive.NewObjectID()
	expID := primitive.NewObjectID()

	invite := models.InviteCode{
		ID:          primitive.NewObjectID(),
		Code:        "trip-code-24",
		Active:      true,
		MaxUses:     1,
		Experiences: []primitive.ObjectID{expID},
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	codeConn := &mocks.CollectionHelper{}
	planConn := &mocks.CollectionHelper{}
	expConn := &mocks.CollectionHelper{}

	userFindOne(userConn, models.User{ID: userA, Email: "a@example.com"})
	inviteFindOne(codeConn, invite)
	planFind(planConn, nil)

	claimed := invite
	claimed.UsesCount = 1
	claimReturns(codeConn, claimed)

	planConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	expResult := &mocks.SingleResultHelper{}
	expResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*models.Experience) = models.Experience{ID: expID}
	})
	expConn.On("FindOne", mock.Anything, mock.Anything).Return(expResult)
	planConn.On("InsertOne", mock.Anything, mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)

	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "inviteCodes").Return(codeConn)
	db.On("Collection", "plans").Return(planConn)
	db.On("Collection", "experiences").Return(expConn)

	var seen []invites.Event
	svc := newInviteService(db)
	svc.AddHook(invites.Hook{
		Name: "capture",
		Run: func(_ context.Context, ev invites.Event) error {
			seen = append(seen, ev)
			return nil
		},
	})
	svc.AddHook(invites.Hook{
		Name: "flaky-analytics",
		Run: func(_ context.Context, _ invites.Event) error {
			return errors.New("analytics endpoint down")
		},
	})

	result, err := svc.Redeem(context.Background(), "trip-code-24", userA)

	assert.NoError(t, err, "hook failures never roll back redemption")
	if assert.Len(t, seen, 1) {
		assert.Equal(t, invites.EventInviteRedeemed, seen[0].Kind)
		assert.Equal(t, userA, seen[0].RedeemedBy)
		assert.Len(t, seen[0].CreatedPlans, 1)
	}
	if assert.Len(t, result.Dispatch, 1) {
		assert.Equal(t, "flaky-analytics", result.Dispatch[0].Collaborator)
		assert.Contains(t, result.Dispatch[0].Error, "analytics endpoint down")
	}
}
