package databases

// go generate: mockery --name PhotoDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wanderlist/wanderlist-api/models"
)

const photoName = "photos"

// PhotoDatabase contains the methods to use with the photo database
type PhotoDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Photo, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Photo, error)
	InsertOne(ctx context.Context, photo models.Photo, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
}

type photoDatabase struct {
	db DatabaseHelper
}

// NewPhotoDatabase initializes a new instance of photo database with the provided db connection
func NewPhotoDatabase(db DatabaseHelper) PhotoDatabase {
	return &photoDatabase{
		db: db,
	}
}

func (p *photoDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Photo, error) {
	photo := &models.Photo{}
	err := p.db.Collection(photoName).FindOne(ctx, filter, opts...).Decode(photo)
	if err != nil {
		return nil, err
	}
	return photo, nil
}

func (p *photoDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Photo, error) {
	var photos []models.Photo
	cur, err := p.db.Collection(photoName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&photos)
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (p *photoDatabase) InsertOne(ctx context.Context, photo models.Photo, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return p.db.Collection(photoName).InsertOne(ctx, photo, opts...)
}

func (p *photoDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := p.db.Collection(photoName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *photoDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return p.db.Collection(photoName).DeleteOne(ctx, filter, opts...)
}
