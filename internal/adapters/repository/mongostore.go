package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/racecheck"
)

const defaultMongoTimeout = 5 * time.Second

// MongoStore keeps one document per event, keyed by the event ID.
type MongoStore struct {
	client     *mongo.Client
	coll       *mongo.Collection
	database   string
	collection string
	timeout    time.Duration
}

// NewMongoStore connects to uri and verifies the server is reachable.
func NewMongoStore(ctx context.Context, uri string, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{
		database:   "racecheck",
		collection: "events",
		timeout:    defaultMongoTimeout,
	}
	for _, o := range opts {
		o(s)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(s.timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s.client = client
	s.coll = client.Database(s.database).Collection(s.collection)
	return s, nil
}

// Create implements Store.Create.
func (s *MongoStore) Create(ctx context.Context, e model.Event) error {
	start := time.Now()
	_, err := s.coll.InsertOne(ctx, e)
	err = mapMongoError(err, e.ID)
	observe("create", start, err)
	return err
}

// Get implements Store.Get.
func (s *MongoStore) Get(ctx context.Context, id string) (model.Event, error) {
	start := time.Now()
	var e model.Event
	err := mapMongoError(s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e), id)
	observe("get", start, err)
	if err != nil {
		return model.Event{}, err
	}
	return normalize(e), nil
}

// List implements Store.List.
func (s *MongoStore) List(ctx context.Context) ([]model.Event, error) {
	start := time.Now()
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		observe("list", start, err)
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := []model.Event{}
	if err := cur.All(ctx, &events); err != nil {
		observe("list", start, err)
		return nil, fmt.Errorf("decode events: %w", err)
	}
	for i := range events {
		events[i] = normalize(events[i])
	}
	observe("list", start, nil)
	return events, nil
}

// Update implements Store.Update.
func (s *MongoStore) Update(ctx context.Context, e model.Event) error {
	start := time.Now()
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
	if err == nil && res.MatchedCount == 0 {
		err = fmt.Errorf("%w: %s", ErrNotFound, e.ID)
	}
	err = mapMongoError(err, e.ID)
	observe("update", start, err)
	return err
}

// Delete implements Store.Delete.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err == nil && res.DeletedCount == 0 {
		err = fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	err = mapMongoError(err, id)
	observe("delete", start, err)
	return err
}

// Count implements Store.Count.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mapMongoError turns driver errors into store sentinels.
func mapMongoError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s", ErrConflict, id)
	default:
		return fmt.Errorf("mongo: %w", err)
	}
}

// normalize replaces nil slices left by decoding empty arrays.
func normalize(e model.Event) model.Event {
	if e.Modalities == nil {
		e.Modalities = []racecheck.Modality{}
	}
	if e.Genders == nil {
		e.Genders = []racecheck.Gender{}
	}
	return e
}
