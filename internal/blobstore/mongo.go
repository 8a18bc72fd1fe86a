package blobstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoChunkRepository stores chunks in an fs.chunks collection
type MongoChunkRepository struct {
	collection *mongo.Collection
}

func NewMongoChunkRepository(collection *mongo.Collection) *MongoChunkRepository {
	return &MongoChunkRepository{collection: collection}
}

func (r *MongoChunkRepository) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}

	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert %d chunks: %w", len(chunks), err)
	}
	return nil
}

func (r *MongoChunkRepository) FindChunks(ctx context.Context, filesID primitive.ObjectID) ([]Chunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "n", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"files_id": filesID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

func (r *MongoChunkRepository) DeleteChunks(ctx context.Context, filesID primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"files_id": filesID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *MongoChunkRepository) DistinctFilesIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	values, err := r.collection.Distinct(ctx, "files_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk owners: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MongoFileRepository stores files documents in an fs.files collection
type MongoFileRepository struct {
	collection *mongo.Collection
}

func NewMongoFileRepository(collection *mongo.Collection) *MongoFileRepository {
	return &MongoFileRepository{collection: collection}
}

func (r *MongoFileRepository) InsertFile(ctx context.Context, doc *FileDocument) error {
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert file document: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) FindFile(ctx context.Context, id primitive.ObjectID) (*FileDocument, error) {
	var doc FileDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file document: %w", err)
	}
	return &doc, nil
}

func (r *MongoFileRepository) FindFiles(ctx context.Context, filter FileFilter) ([]FileDocument, error) {
	if filter.Empty() {
		return nil, errors.New("file filter must set at least one field")
	}

	opts := options.Find().SetSort(bson.D{{Key: "uploadDate", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query file documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []FileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode file documents: %w", err)
	}
	return docs, nil
}

func (r *MongoFileRepository) DeleteFile(ctx context.Context, id primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func filterDocument(filter FileFilter) bson.M {
	doc := bson.M{}
	if filter.ClaimID != "" {
		doc["metadata.claim_id"] = filter.ClaimID
	}
	if filter.UserID != "" {
		doc["metadata.user_id"] = filter.UserID
	}
	if filter.ObjectID != nil {
		doc["$or"] = bson.A{
			bson.M{"metadata.mongodb_id": *filter.ObjectID},
			bson.M{"metadata.claim_mongodb_id": *filter.ObjectID},
		}
	}
	return doc
}
