package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claims-intake-platform/internal/telemetry"
	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "claims"

// MongoRepository stores claims in a MongoDB collection
type MongoRepository struct {
	collection *mongo.Collection
	metrics    *telemetry.Metrics
}

func NewMongoRepository(collection *mongo.Collection, metrics *telemetry.Metrics) *MongoRepository {
	return &MongoRepository{collection: collection, metrics: metrics}
}

func (r *MongoRepository) Insert(ctx context.Context, claim *models.Claim) error {
	result, err := r.collection.InsertOne(ctx, claim)
	r.metrics.RecordDatabaseOperation("insert", collectionName, err == nil)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, claim.ClaimID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		claim.ID = id
	}
	return nil
}

func (r *MongoRepository) FindOne(ctx context.Context, filter Filter) (*models.Claim, error) {
	raw, err := r.collection.FindOne(ctx, bson.M{filter.Field: filter.Value}).Raw()
	r.metrics.RecordDatabaseOperation("find", collectionName, err == nil || errors.Is(err, mongo.ErrNoDocuments))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find claim: %w", err)
	}
	return decodeClaim(raw)
}

func (r *MongoRepository) List(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error) {
	filter := bson.M{}
	if query.Status != "" {
		filter["status"] = query.Status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count claims: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(query.Offset).
		SetLimit(query.Limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	r.metrics.RecordDatabaseOperation("find", collectionName, err == nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list claims: %w", err)
	}
	defer cursor.Close(ctx)

	claims := []models.Claim{}
	for cursor.Next(ctx) {
		claim, err := decodeClaim(cursor.Current)
		if err != nil {
			return nil, 0, err
		}
		claims = append(claims, *claim)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read claims: %w", err)
	}

	return claims, total, nil
}

func (r *MongoRepository) Update(ctx context.Context, filter Filter, update Update) (int64, error) {
	set, err := updateDocument(update)
	if err != nil {
		return 0, err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{filter.Field: filter.Value}, bson.M{"$set": set})
	r.metrics.RecordDatabaseOperation("update", collectionName, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to update claim: %w", err)
	}
	return result.MatchedCount, nil
}

func (r *MongoRepository) PushFiles(ctx context.Context, filter Filter, blobIDs []string, at time.Time) (int64, error) {
	update := bson.M{
		"$push": bson.M{models.FileReferencesField: bson.M{"$each": blobIDs}},
		"$set":  bson.M{"updatedAt": at},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{filter.Field: filter.Value}, update)
	r.metrics.RecordDatabaseOperation("push_files", collectionName, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to append file references: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *MongoRepository) Delete(ctx context.Context, filter Filter) (int64, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{filter.Field: filter.Value})
	r.metrics.RecordDatabaseOperation("delete", collectionName, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to delete claim: %w", err)
	}
	return result.DeletedCount, nil
}

// updateDocument builds the $set document. Service fields are set one by one
// so service.uploadedFiles is never overwritten.
func updateDocument(update Update) (bson.M, error) {
	set := bson.M{"updatedAt": update.UpdatedAt}

	if update.Provider != nil {
		set["provider"] = update.Provider
	}
	if update.Patient != nil {
		set["patient"] = update.Patient
	}
	if update.Service != nil {
		raw, err := bson.Marshal(update.Service)
		if err != nil {
			return nil, fmt.Errorf("failed to encode service: %w", err)
		}
		var fields bson.M
		if err := bson.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to encode service: %w", err)
		}
		delete(fields, "uploadedFiles")
		for key, value := range fields {
			set["service."+key] = value
		}
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Extraction != nil {
		set["extraction"] = update.Extraction
	}
	return set, nil
}

// decodeClaim decodes a claim document whose _id may be an ObjectID or a string
func decodeClaim(raw bson.Raw) (*models.Claim, error) {
	var claim models.Claim

	id := raw.Lookup("_id")
	if id.Type != bsontype.String {
		if err := bson.Unmarshal(raw, &claim); err != nil {
			return nil, fmt.Errorf("failed to decode claim: %w", err)
		}
		return &claim, nil
	}

	elements, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("failed to decode claim: %w", err)
	}
	stripped := make(bson.D, 0, len(elements))
	for _, element := range elements {
		if element.Key() == "_id" {
			continue
		}
		stripped = append(stripped, bson.E{Key: element.Key(), Value: element.Value()})
	}

	data, err := bson.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("failed to decode claim: %w", err)
	}
	if err := bson.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("failed to decode claim: %w", err)
	}
	claim.StringID = id.StringValue()
	return &claim, nil
}
