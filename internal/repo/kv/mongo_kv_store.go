package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mkrupp/teamify/internal/infra/logging"
)

// ErrNoURI is returned when the mongo driver is selected without a URI.
var ErrNoURI = errors.New("no mongo uri")

// MongoStoreConfig holds configuration for the MongoDB store.
type MongoStoreConfig struct {
	// URI is the connection string, e.g. mongodb://localhost:27017
	URI string `env:"URI" default:""`
	// Database is the database name
	Database string `env:"DATABASE" default:"teamify"`
	// Collection is the collection holding one document per key
	Collection string `env:"COLLECTION" default:"identity_kv"`
	// ConnectTimeout bounds the initial connection and ping
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" default:"10s"`
}

// mongoEntry is the document stored for each key.
type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore implements Store on a MongoDB collection keyed by _id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        logging.Logger
}

var _ Store = (*MongoStore)(nil)

// MongoStoreFactory creates a factory function that returns a new MongoStore.
func MongoStoreFactory(cfg MongoStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewMongoStore(ctx, cfg)
	}
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoStoreConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}

	log := logging.GetLogger("repo.kv.mongo_kv_store").With(
		logging.Group("db", "database", cfg.Database, "collection", cfg.Collection),
	)

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("ping: %w", err)
	}

	log.DebugContext(ctx, "mongo store opened")

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		log:        log,
	}, nil
}

// Get implements Store.Get using MongoDB.
func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	var entry mongoEntry

	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("find %s: %w", key, err)
	}

	return clone(entry.Value), true, nil
}

// Set implements Store.Set using an upsert.
func (s *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": clone(value), "updatedAt": time.Now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}

	return nil
}

// Delete implements Store.Delete using MongoDB.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// Close implements Store.Close by disconnecting the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}
