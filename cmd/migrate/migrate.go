package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"claims-intake-platform/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  create-indexes       - Create claim, blob and precedent indexes")
		fmt.Println("  verify-indexes       - List indexes and report missing ones")
		fmt.Println("  create-vector-index  - Create the Atlas vector search index on precedents")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)

	switch command {
	case "create-indexes":
		if err := config.CreateIndexes(ctx, db, cfg.PrecedentCollection); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created successfully!")

	case "verify-indexes":
		missing, err := verifyIndexes(ctx, db, cfg.PrecedentCollection)
		if err != nil {
			log.Fatalf("Verification failed: %v", err)
		}
		if missing > 0 {
			fmt.Printf("%d index(es) missing, run create-indexes\n", missing)
			os.Exit(1)
		}
		fmt.Println("All indexes present")

	case "create-vector-index":
		if err := createVectorIndex(ctx, db.Collection(cfg.PrecedentCollection), cfg.VectorIndexName, cfg.VectorDimensions); err != nil {
			log.Fatalf("Vector index creation failed: %v", err)
		}
		fmt.Printf("Vector index %q requested on %s\n", cfg.VectorIndexName, cfg.PrecedentCollection)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func verifyIndexes(ctx context.Context, db *mongo.Database, precedentCollection string) (int, error) {
	plan := config.IndexPlan(precedentCollection)

	collections := make([]string, 0, len(plan))
	for name := range plan {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	missing := 0
	for _, name := range collections {
		existing, err := indexKeys(ctx, db.Collection(name))
		if err != nil {
			return 0, fmt.Errorf("list indexes of %s: %w", name, err)
		}

		fmt.Printf("%s:\n", name)
		for _, model := range plan[name] {
			key := keySignature(model.Keys.(bson.D))
			if existing[key] {
				fmt.Printf("  ok       %s\n", key)
				continue
			}
			missing++
			fmt.Printf("  missing  %s\n", key)
		}
	}
	return missing, nil
}

func indexKeys(ctx context.Context, col *mongo.Collection) (map[string]bool, error) {
	cursor, err := col.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var specs []struct {
		Key bson.D `bson:"key"`
	}
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, err
	}

	keys := make(map[string]bool, len(specs))
	for _, spec := range specs {
		keys[keySignature(spec.Key)] = true
	}
	return keys, nil
}

func keySignature(keys bson.D) string {
	sig := ""
	for i, k := range keys {
		if i > 0 {
			sig += ","
		}
		sig += fmt.Sprintf("%s:%v", k.Key, k.Value)
	}
	return sig
}

func createVectorIndex(ctx context.Context, col *mongo.Collection, name string, dimensions int) error {
	model := mongo.SearchIndexModel{
		Definition: bson.D{
			{Key: "fields", Value: bson.A{
				bson.D{
					{Key: "type", Value: "vector"},
					{Key: "path", Value: "vector"},
					{Key: "numDimensions", Value: dimensions},
					{Key: "similarity", Value: "cosine"},
				},
			}},
		},
		Options: options.SearchIndexes().SetName(name).SetType("vectorSearch"),
	}

	_, err := col.SearchIndexes().CreateOne(ctx, model)
	return err
}
