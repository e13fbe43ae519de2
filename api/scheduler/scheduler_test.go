package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/databases/mocks"
	"github.com/wanderlist/wanderlist-api/models"
	templates "github.com/wanderlist/wanderlist-api/templates/html"
)

type recordingMailer struct {
	to   []string
	sent []templates.DigestEmailData
}

func (m *recordingMailer) SendDigestEmail(_ context.Context, toEmail string, data templates.DigestEmailData) error {
	m.to = append(m.to, toEmail)
	m.sent = append(m.sent, data)
	return nil
}

func newTestScheduler(db databases.DatabaseHelper, mailer DigestMailer) *Scheduler {
	return NewScheduler(
		databases.NewInviteCodeDatabase(db),
		databases.NewUserDatabase(db),
		databases.NewSchedulerLockDatabase(db),
		mailer,
	)
}

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

// stubLockAcquired makes every lease acquisition succeed and accepts the
// release that follows.
func stubLockAcquired(locks *mocks.CollectionHelper) {
	locks.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)
	locks.On("DeleteOne", mock.Anything, mock.Anything).Return(nil)
}

func TestPurgeTerminalInvitesDeletesOldRows(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	locks := &mocks.CollectionHelper{}
	codes := &mocks.CollectionHelper{}

	stubLockAcquired(locks)

	var filter bson.M
	codes.On("DeleteMany", mock.Anything, mock.Anything).
		Return(int64(3), nil).
		Run(func(args mock.Arguments) {
			filter = args.Get(1).(bson.M)
		})

	db.On("Collection", "schedulerLocks").Return(locks)
	db.On("Collection", "inviteCodes").Return(codes)

	newTestScheduler(db, &recordingMailer{}).purgeTerminalInvites()

	cutoff := filter["updatedAt"].(bson.M)["$lt"].(time.Time)
	assert.WithinDuration(t, time.Now().Add(-90*24*time.Hour), cutoff, time.Minute,
		"only codes untouched for the whole retention window are swept")

	or := filter["$or"].([]bson.M)
	assert.Equal(t, bson.M{"active": false}, or[0])
	assert.Contains(t, or[2], "$expr", "exhausted codes are matched by comparing usesCount to maxUses")
}

func TestPurgeSkipsWhenLockHeld(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	locks := &mocks.CollectionHelper{}
	codes := &mocks.CollectionHelper{}

	locks.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, duplicateKeyErr())

	db.On("Collection", "schedulerLocks").Return(locks)
	db.On("Collection", "inviteCodes").Return(codes)

	newTestScheduler(db, &recordingMailer{}).purgeTerminalInvites()

	codes.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything)
	locks.AssertNotCalled(t, "DeleteOne", mock.Anything, mock.Anything)
}

func TestSendWeeklyDigests(t *testing.T) {
	joanID := primitive.NewObjectID()
	ghostID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	locks := &mocks.CollectionHelper{}
	codes := &mocks.CollectionHelper{}
	users := &mocks.CollectionHelper{}

	stubLockAcquired(locks)

	var pipeline []bson.M
	cur := &mocks.CursorHelper{}
	cur.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*[]digestRow) = []digestRow{
			{CreatorID: joanID, ActiveInvites: 2, TotalUses: 7},
			{CreatorID: ghostID, ActiveInvites: 1, TotalUses: 0},
		}
	})
	codes.On("Aggregate", mock.Anything, mock.Anything).Return(cur, nil).Run(func(args mock.Arguments) {
		pipeline = args.Get(1).([]bson.M)
	})

	joanRes := &mocks.SingleResultHelper{}
	joanRes.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		u := args.Get(0).(*models.User)
		u.ID = joanID
		u.Email = "joan@example.com"
		u.Name = "Joan"
	})
	users.On("FindOne", mock.Anything, mock.Anything).Return(joanRes).Once()

	ghostRes := &mocks.SingleResultHelper{}
	ghostRes.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	users.On("FindOne", mock.Anything, mock.Anything).Return(ghostRes).Once()

	db.On("Collection", "schedulerLocks").Return(locks)
	db.On("Collection", "inviteCodes").Return(codes)
	db.On("Collection", "users").Return(users)

	mailer := &recordingMailer{}
	newTestScheduler(db, mailer).sendWeeklyDigests()

	assert.Equal(t, bson.M{"active": true}, pipeline[0]["$match"], "only live invites count toward the digest")

	// The creator without an account is skipped; the send still happens
	// for everyone resolvable.
	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"joan@example.com"}, mailer.to)
	assert.Equal(t, "Joan", mailer.sent[0].CreatorName)
	assert.Equal(t, 2, mailer.sent[0].ActiveInvites)
	assert.Equal(t, 7, mailer.sent[0].TotalUses)
}

func TestGetCreatorEmailFallsBackToUsername(t *testing.T) {
	userID := primitive.NewObjectID()

	db := &mocks.DatabaseHelper{}
	users := &mocks.CollectionHelper{}

	res := &mocks.SingleResultHelper{}
	res.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		u := args.Get(0).(*models.User)
		u.ID = userID
		u.Email = "joan@example.com"
		u.Username = "joan_travels"
	})
	users.On("FindOne", mock.Anything, mock.Anything).Return(res)
	db.On("Collection", "users").Return(users)

	email, name := newTestScheduler(db, &recordingMailer{}).getCreatorEmail(context.Background(), userID)
	assert.Equal(t, "joan@example.com", email)
	assert.Equal(t, "joan_travels", name)
}
