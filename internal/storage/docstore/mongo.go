package docstore

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DatabaseHelper hands out collections.
type DatabaseHelper interface {
	Collection(name string) CollectionHelper
}

// CollectionHelper contains the collection methods the store uses.
type CollectionHelper interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResultHelper
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// SingleResultHelper decodes a single result. Decode may be called more
// than once.
type SingleResultHelper interface {
	Decode(v interface{}) error
}

type mongoDatabase struct {
	db *mongo.Database
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (md *mongoDatabase) Collection(name string) CollectionHelper {
	return &mongoCollection{coll: md.db.Collection(name)}
}

func (mc *mongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResultHelper {
	return mc.coll.FindOne(ctx, filter, opts...)
}

func (mc *mongoCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	return mc.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

// Mongo is the MongoDB backed Store.
type Mongo struct {
	client *mongo.Client
	db     DatabaseHelper
}

// Connect opens a client for uri and selects database.
func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to mongo")
	}
	return &Mongo{client: client, db: &mongoDatabase{db: client.Database(database)}}, nil
}

// NewMongo builds a store over an existing database helper, used in tests.
func NewMongo(db DatabaseHelper) *Mongo {
	return &Mongo{db: db}
}

type idHolder struct {
	ID interface{} `bson:"_id"`
}

func (m *Mongo) FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) (string, bool, error) {
	res := m.db.Collection(collection).FindOne(ctx, filter)

	var holder idHolder
	if err := res.Decode(&holder); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, eris.Wrapf(err, "failed to find in %s", collection)
	}
	if err := res.Decode(out); err != nil {
		return "", false, eris.Wrapf(err, "failed to decode document from %s", collection)
	}
	return idString(holder.ID), true, nil
}

func (m *Mongo) Upsert(ctx context.Context, collection string, filter bson.M, doc interface{}) (string, error) {
	coll := m.db.Collection(collection)

	res, err := coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return "", eris.Wrapf(err, "failed to upsert into %s", collection)
	}
	if res != nil && res.UpsertedID != nil {
		return idString(res.UpsertedID), nil
	}

	var holder idHolder
	if err := coll.FindOne(ctx, filter).Decode(&holder); err != nil {
		return "", eris.Wrapf(err, "failed to read id back from %s", collection)
	}
	return idString(holder.ID), nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
