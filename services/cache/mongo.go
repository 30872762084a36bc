package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nasdaq_screener/config"
)

const (
	// MongoCacheCollection holds one document per cached response
	MongoCacheCollection = "screener_cache"
	// MongoGenerationCollection holds one invalidation counter per tag
	MongoGenerationCollection = "screener_cache_generations"
)

type mongoGeneration struct {
	Tag        string `bson:"_id"`
	Generation int64  `bson:"generation"`
}

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	Tags      []string  `bson:"tags"`
	ExpiresAt time.Time `bson:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps entries in a collection with a TTL index on expires_at
type MongoStore struct {
	client      *mongo.Client
	collection  *mongo.Collection
	generations *mongo.Collection
}

// NewMongoStore connects to MongoDB and prepares the cache collection
func NewMongoStore(ctx context.Context, cfg config.CacheConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(cfg.MongoDatabase).Collection(MongoCacheCollection)
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "tags", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(connectCtx, indexes); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create cache indexes: %w", err)
	}

	return &MongoStore{
		client:      client,
		collection:  collection,
		generations: client.Database(cfg.MongoDatabase).Collection(MongoGenerationCollection),
	}, nil
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry mongoEntry
	filter := bson.M{"_id": key, "expires_at": bson.M{"$gt": time.Now()}}
	err := m.collection.FindOne(ctx, filter).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo find failed: %w", err)
	}
	return entry.Value, true, nil
}

func (m *MongoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	now := time.Now()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entry := mongoEntry{
		Key:       key,
		Value:     value,
		Tags:      tags,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, entry, opts); err != nil {
		return fmt.Errorf("mongo upsert failed: %w", err)
	}
	return nil
}

func (m *MongoStore) Invalidate(ctx context.Context, tag string) error {
	update := bson.M{"$inc": bson.M{"generation": 1}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.generations.UpdateOne(ctx, bson.M{"_id": tag}, update, opts); err != nil {
		return fmt.Errorf("mongo generation update failed: %w", err)
	}
	if _, err := m.collection.DeleteMany(ctx, bson.M{"tags": tag}); err != nil {
		return fmt.Errorf("mongo delete failed: %w", err)
	}
	return nil
}

// Generation sums the invalidation counters of tags; unknown tags count zero
func (m *MongoStore) Generation(ctx context.Context, tags ...string) (uint64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	cursor, err := m.generations.Find(ctx, bson.M{"_id": bson.M{"$in": tags}})
	if err != nil {
		return 0, fmt.Errorf("mongo generation find failed: %w", err)
	}
	var docs []mongoGeneration
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("mongo generation decode failed: %w", err)
	}

	var sum uint64
	for _, doc := range docs {
		sum += uint64(doc.Generation)
	}
	return sum, nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
