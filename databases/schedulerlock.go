package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schedulerLockName = "schedulerLocks"

// SchedulerLockDatabase hands out short leases so scheduled jobs run
// on a single instance even when multiple dynos are up.
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, jobName, holder string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName, holder string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of the scheduler lock database
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{db: db}
}

// TryAcquireLock upserts a lease document keyed by job name. The
// filter only matches our own lease or an expired one, so a live
// lease held elsewhere makes the upsert collide on _id and we report
// the lock as taken rather than erroring.
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, jobName, holder string, ttl time.Duration) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"_id": jobName,
		"$or": []bson.M{
			{"holder": holder},
			{"expiresAt": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"holder":     holder,
			"acquiredAt": now,
			"expiresAt":  now.Add(ttl),
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(schedulerLockName).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, jobName, holder string) error {
	return s.db.Collection(schedulerLockName).DeleteOne(ctx, bson.M{"_id": jobName, "holder": holder})
}
