package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the repositories and the index migration
const (
	ClaimsCollection      = "claims"
	BlobFilesCollection   = "fs.files"
	BlobChunksCollection  = "fs.chunks"
	DefaultPrecedentsName = "precedents"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := CreateIndexes(ctx, client.Database(cfg.DBName), cfg.PrecedentCollection); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// IndexPlan lists the indexes each collection needs
func IndexPlan(precedentCollection string) map[string][]mongo.IndexModel {
	if precedentCollection == "" {
		precedentCollection = DefaultPrecedentsName
	}

	return map[string][]mongo.IndexModel{
		ClaimsCollection: {
			{
				Keys:    bson.D{{Key: "claimId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("claimId_unique"),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "submittedAt", Value: -1}}},
		},
		BlobFilesCollection: {
			{Keys: bson.D{{Key: "filename", Value: 1}, {Key: "uploadDate", Value: 1}}},
			{Keys: bson.D{{Key: "metadata.claim_id", Value: 1}}},
			{Keys: bson.D{{Key: "metadata.user_id", Value: 1}}},
			{Keys: bson.D{{Key: "metadata.claim_mongodb_id", Value: 1}}},
		},
		BlobChunksCollection: {
			{
				Keys:    bson.D{{Key: "files_id", Value: 1}, {Key: "n", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		precedentCollection: {
			{Keys: bson.D{{Key: "source", Value: 1}}},
		},
	}
}

// CreateIndexes creates every index of IndexPlan
func CreateIndexes(ctx context.Context, db *mongo.Database, precedentCollection string) error {
	for collection, indexes := range IndexPlan(precedentCollection) {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("%s: %w", collection, err)
		}
	}
	return nil
}
