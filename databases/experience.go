package databases

// go generate: mockery --name ExperienceDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderlist/wanderlist-api/models"
)

const experienceName = "experiences"

// ExperienceDatabase contains the methods to use with the experience database
type ExperienceDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Experience, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Experience, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, experience models.Experience, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
}

type experienceDatabase struct {
	db DatabaseHelper
}

// NewExperienceDatabase initializes a new instance of experience database with the provided db connection
func NewExperienceDatabase(db DatabaseHelper) ExperienceDatabase {
	return &experienceDatabase{
		db: db,
	}
}

func (e *experienceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Experience, error) {
	experience := &models.Experience{}
	err := e.db.Collection(experienceName).FindOne(ctx, filter, opts...).Decode(experience)
	if err != nil {
		return nil, err
	}
	return experience, nil
}

func (e *experienceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Experience, error) {
	var experiences []models.Experience
	cur, err := e.db.Collection(experienceName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&experiences)
	if err != nil {
		return nil, err
	}
	return experiences, nil
}

func (e *experienceDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	count, err := e.db.Collection(experienceName).CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (e *experienceDatabase) InsertOne(ctx context.Context, experience models.Experience, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return e.db.Collection(experienceName).InsertOne(ctx, experience, opts...)
}

func (e *experienceDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := e.db.Collection(experienceName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *experienceDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return e.db.Collection(experienceName).DeleteOne(ctx, filter, opts...)
}
