package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reminder-agent/internal/reminder"
)

// MongoStorage implements the Storage interface using MongoDB. The
// collection lives in a single document so its order survives round trips.
type MongoStorage struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
}

// collectionDoc is the document holding the whole reminder list.
type collectionDoc struct {
	ID    string     `bson:"_id"`
	Value []bson.Raw `bson:"value"`
}

// NewMongoStorage creates a new MongoDB storage instance
func NewMongoStorage(connectionString, databaseName string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test the connection
	err = client.Ping(ctx, nil)
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(databaseName)

	return &MongoStorage{
		client:     client,
		database:   database,
		collection: database.Collection("kv"),
	}, nil
}

func (ms *MongoStorage) Load(ctx context.Context) ([]*reminder.Reminder, error) {
	var doc collectionDoc
	err := ms.collection.FindOne(ctx, bson.M{"_id": Key}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return []*reminder.Reminder{}, nil
		}
		return nil, fmt.Errorf("failed to get reminders: %w", err)
	}

	list := make([]*reminder.Reminder, 0, len(doc.Value))
	for _, raw := range doc.Value {
		var r reminder.Reminder
		if err := bson.Unmarshal(raw, &r); err != nil {
			var loose bson.M
			if err := bson.Unmarshal(raw, &loose); err != nil {
				list = append(list, &reminder.Reminder{})
				continue
			}
			list = append(list, reminder.Salvage(loose))
			continue
		}
		list = append(list, &r)
	}
	return list, nil
}

func (ms *MongoStorage) Save(ctx context.Context, list []*reminder.Reminder) error {
	if err := checkUnique(list); err != nil {
		return err
	}
	if list == nil {
		list = []*reminder.Reminder{}
	}

	filter := bson.M{"_id": Key}
	doc := bson.M{"_id": Key, "value": list}
	opts := options.Replace().SetUpsert(true)

	if _, err := ms.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save reminders: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (ms *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
