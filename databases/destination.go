package databases

// go generate: mockery --name DestinationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderlist/wanderlist-api/models"
)

const destinationName = "destinations"

// DestinationDatabase contains the methods to use with the destination database
type DestinationDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Destination, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Destination, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, destination models.Destination, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
}

type destinationDatabase struct {
	db DatabaseHelper
}

// NewDestinationDatabase initializes a new instance of destination database with the provided db connection
func NewDestinationDatabase(db DatabaseHelper) DestinationDatabase {
	return &destinationDatabase{
		db: db,
	}
}

func (d *destinationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Destination, error) {
	destination := &models.Destination{}
	err := d.db.Collection(destinationName).FindOne(ctx, filter, opts...).Decode(destination)
	if err != nil {
		return nil, err
	}
	return destination, nil
}

func (d *destinationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Destination, error) {
	var destinations []models.Destination
	cur, err := d.db.Collection(destinationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&destinations)
	if err != nil {
		return nil, err
	}
	return destinations, nil
}

func (d *destinationDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	count, err := d.db.Collection(destinationName).CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (d *destinationDatabase) InsertOne(ctx context.Context, destination models.Destination, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return d.db.Collection(destinationName).InsertOne(ctx, destination, opts...)
}

func (d *destinationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := d.db.Collection(destinationName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *destinationDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return d.db.Collection(destinationName).DeleteOne(ctx, filter, opts...)
}
