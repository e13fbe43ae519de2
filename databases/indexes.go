package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the engine's concurrency model
// depends on. The unique (user, experience) index on plans is what
// makes concurrent redemption idempotent, and the unique code index
// keeps generated invite codes collision free. CreateOne is a no-op
// when the index already exists, so this is safe to run on every boot.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	unique := options.Index().SetUnique(true)

	_, err := db.Collection(planName).EnsureIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "experience", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(inviteCodeName).EnsureIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(userName).EnsureIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	})
	return err
}
