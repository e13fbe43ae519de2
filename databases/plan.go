package databases

// go generate: mockery --name PlanDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderlist/wanderlist-api/models"
)

const planName = "plans"

// PlanDatabase contains the methods to use with the plan database.
// InsertOne returns the driver error unwrapped so callers can detect
// duplicate key violations from the unique (user, experience) index.
type PlanDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Plan, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Plan, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, plan models.Plan, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
}

type planDatabase struct {
	db DatabaseHelper
}

// NewPlanDatabase initializes a new instance of plan database with the provided db connection
func NewPlanDatabase(db DatabaseHelper) PlanDatabase {
	return &planDatabase{
		db: db,
	}
}

func (p *planDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Plan, error) {
	plan := &models.Plan{}
	err := p.db.Collection(planName).FindOne(ctx, filter, opts...).Decode(plan)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *planDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Plan, error) {
	var plans []models.Plan
	cur, err := p.db.Collection(planName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&plans)
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (p *planDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	count, err := p.db.Collection(planName).CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (p *planDatabase) InsertOne(ctx context.Context, plan models.Plan, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return p.db.Collection(planName).InsertOne(ctx, plan, opts...)
}

func (p *planDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := p.db.Collection(planName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *planDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return p.db.Collection(planName).DeleteOne(ctx, filter, opts...)
}
