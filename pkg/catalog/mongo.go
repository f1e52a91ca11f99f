package catalog

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/overlay/pkg/errors"
)

// Defaults for the MongoDB backend.
const (
	DefaultMongoDatabase   = "overlay"
	DefaultMongoCollection = "presets"
	mongoConnectTimeout    = 10 * time.Second
)

// MongoOptions configures a MongoDB catalog.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// Mongo is a catalog backed by a MongoDB collection whose documents use the
// preset id as _id.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	if opts.URI == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "mongo uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultMongoDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(mongoConnectTimeout).
		SetServerSelectionTimeout(mongoConnectTimeout))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "mongo ping")
	}
	return &Mongo{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Lookup implements Catalog.
func (m *Mongo) Lookup(ctx context.Context, id string) (Entry, error) {
	var e Entry
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return Entry{}, errors.New(errors.ErrCodeNotFound, "preset %q not found", id)
	}
	if err != nil {
		return Entry{}, errors.Wrap(errors.ErrCodeFetch, err, "lookup preset %q", id)
	}
	return e, nil
}

// List implements Catalog.
func (m *Mongo) List(ctx context.Context) ([]Entry, error) {
	cur, err := m.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "list presets")
	}
	var out []Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "list presets")
	}
	return out, nil
}

// Put inserts or replaces an entry.
func (m *Mongo) Put(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": e.ID}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "store preset %q", e.ID)
	}
	return nil
}

// Close implements Catalog.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Catalog = (*Mongo)(nil)
