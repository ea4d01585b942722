package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// skipIfNoDocker skips the test if Docker is not available
func skipIfNoDocker(t *testing.T) {
	if os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true" {
		t.Skip("Skipping Docker-based tests in CI environment")
	}
}

// setupMongoTestContainer sets up a MongoDB test container and returns the storage instance and cleanup function
func setupMongoTestContainer(t *testing.T) (*MongoStorage, func()) {
	skipIfNoDocker(t)

	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:6")
	if err != nil {
		t.Skipf("Failed to start MongoDB container (Docker may not be available): %v", err)
	}

	connectionString, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		mongoContainer.Terminate(ctx)
		t.Skipf("Failed to get MongoDB connection string: %v", err)
	}

	mongoStorage, err := NewMongoStorage(connectionString, "test_reminder_agent")
	if err != nil {
		mongoContainer.Terminate(ctx)
		t.Skipf("Failed to create MongoDB storage: %v", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		mongoStorage.Close()
		mongoContainer.Terminate(ctx)
	}

	return mongoStorage, cleanup
}

func TestMongoStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MongoDB integration test in short mode")
	}

	mongoStorage, cleanup := setupMongoTestContainer(t)
	defer cleanup()

	runStorageTests(t, mongoStorage)
}

func TestMongoStorageSalvagesMalformedDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MongoDB integration test in short mode")
	}

	mongoStorage, cleanup := setupMongoTestContainer(t)
	defer cleanup()

	ctx := context.Background()
	doc := bson.M{
		"_id": Key,
		"value": bson.A{
			bson.M{"id": "a", "title": "ok", "dueAt": int64(1000), "done": false, "notifiedAt": nil},
			bson.M{"id": "b", "title": "bad", "dueAt": "tomorrow"},
		},
	}
	if _, err := mongoStorage.collection.InsertOne(ctx, doc); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	list, err := mongoStorage.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(list))
	}
	if !list[0].Valid() {
		t.Errorf("first reminder should be valid: %+v", list[0])
	}
	if list[1].ID != "b" || list[1].Valid() {
		t.Errorf("second reminder should be salvaged: %+v", list[1])
	}
}
