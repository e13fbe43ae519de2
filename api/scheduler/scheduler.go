package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/api"
	"github.com/wanderlist/wanderlist-api/databases"
	templates "github.com/wanderlist/wanderlist-api/templates/html"
)

// DigestMailer sends the weekly creator digest. The sendgrid-backed
// implementation lives in the handlers package.
type DigestMailer interface {
	SendDigestEmail(ctx context.Context, toEmail string, data templates.DigestEmailData) error
}

// Scheduler handles periodic maintenance jobs for the invite engine
type Scheduler struct {
	cron       *cron.Cron
	IDB        databases.InviteCodeDatabase
	UDB        databases.UserDatabase
	LockDB     databases.SchedulerLockDatabase
	Mailer     DigestMailer
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	idb databases.InviteCodeDatabase,
	udb databases.UserDatabase,
	lockDB databases.SchedulerLockDatabase,
	mailer DigestMailer,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		IDB:        idb,
		UDB:        udb,
		LockDB:     lockDB,
		Mailer:     mailer,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Purge long-dead invites daily at 3 AM UTC
	_, err := s.cron.AddFunc("0 3 * * *", s.purgeTerminalInvites)
	if err != nil {
		zap.S().Errorw("failed to register invite purge job", "error", err)
	}

	// Weekly digest to invite creators on Mondays at 9 AM UTC
	_, err = s.cron.AddFunc("0 9 * * 1", s.sendWeeklyDigests)
	if err != nil {
		zap.S().Errorw("failed to register weekly digest job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Invite maintenance scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Invite maintenance scheduler stopped")
}

// purgeTerminalInvites deletes invites that have been dead for over 90
// days. Dead means deactivated, expired or exhausted; a code that is
// merely unredeemed stays. This is retention housekeeping only, expiry
// itself is always evaluated per request against the document.
func (s *Scheduler) purgeTerminalInvites() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "invite_purge_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for invite purge job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Invite purge job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "invite_purge_job", s.instanceID)

	cutoff := time.Now().Add(-90 * 24 * time.Hour)

	zap.S().Infow("Running invite purge job", "instance", s.instanceID, "cutoff", cutoff)

	// updatedAt < cutoff keeps recently touched codes out of the sweep,
	// so anything matched has been in its terminal state the whole window
	filter := bson.M{
		"updatedAt": bson.M{"$lt": cutoff},
		"$or": []bson.M{
			{"active": false},
			{"expiresAt": bson.M{"$lt": cutoff}},
			{"$expr": bson.M{"$gte": bson.A{"$usesCount", "$maxUses"}}},
		},
	}

	deleted, err := s.IDB.DeleteMany(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to purge terminal invites", "error", err)
		return
	}

	zap.S().Infow("Invite purge complete", "deleted", deleted)
}

// digestRow is one creator's aggregated invite activity.
type digestRow struct {
	CreatorID     primitive.ObjectID `bson:"_id"`
	ActiveInvites int                `bson:"activeInvites"`
	TotalUses     int                `bson:"totalUses"`
}

// sendWeeklyDigests emails every creator with at least one active
// invite a summary of their invite activity.
func (s *Scheduler) sendWeeklyDigests() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (15 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "weekly_digest_job", s.instanceID, 15*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for weekly digest job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Weekly digest job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "weekly_digest_job", s.instanceID)

	zap.S().Infow("Running weekly digest job", "instance", s.instanceID)

	pipeline := []bson.M{
		{"$match": bson.M{"active": true}},
		{"$group": bson.M{
			"_id":           "$createdBy",
			"activeInvites": bson.M{"$sum": 1},
			"totalUses":     bson.M{"$sum": "$usesCount"},
		}},
	}

	cursor, err := s.IDB.Aggregate(ctx, pipeline)
	if err != nil {
		zap.S().Errorw("failed to aggregate invite activity", "error", err)
		return
	}

	var rows []digestRow
	if err := cursor.Decode(&rows); err != nil {
		zap.S().Errorw("failed to decode invite activity", "error", err)
		return
	}

	sent := 0
	for _, row := range rows {
		email, name := s.getCreatorEmail(ctx, row.CreatorID)
		if email == "" {
			continue
		}

		err := s.Mailer.SendDigestEmail(ctx, email, templates.DigestEmailData{
			CreatorName:   name,
			ActiveInvites: row.ActiveInvites,
			TotalUses:     row.TotalUses,
		})
		if err != nil {
			zap.S().Errorw("failed to send digest email", "error", err, "creatorId", row.CreatorID.Hex())
			continue
		}
		sent++
	}

	zap.S().Infow("Weekly digest complete", "creators", len(rows), "sent", sent)
}

// getCreatorEmail resolves a creator's email and display name. Each
// lookup gets its own short deadline so one hung query cannot eat the
// whole job window.
func (s *Scheduler) getCreatorEmail(ctx context.Context, userID primitive.ObjectID) (email, name string) {
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	user, err := s.UDB.FindOne(qctx, bson.M{"_id": userID})
	if err != nil || user.Email == "" {
		return "", ""
	}
	if user.Name != "" {
		return user.Email, user.Name
	}
	return user.Email, user.Username
}
