package precedent

import (
	"context"
	"fmt"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/telemetry"
	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SearchService names the vector search collaborator in upstream errors
const SearchService = "vector_search"

// candidatesPerResult is the $vectorSearch numCandidates multiplier
const candidatesPerResult = 20

// MongoStore runs Atlas $vectorSearch over the precedents collection
type MongoStore struct {
	col       *mongo.Collection
	indexName string
	metrics   *telemetry.Metrics
}

func NewMongoStore(col *mongo.Collection, indexName string, metrics *telemetry.Metrics) *MongoStore {
	return &MongoStore{col: col, indexName: indexName, metrics: metrics}
}

func (s *MongoStore) Search(ctx context.Context, vector []float32, limit int) ([]models.Precedent, error) {
	if err := validateQuery(vector, limit); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("precedent").Start(ctx, "precedent.search")
	defer span.End()
	span.SetAttributes(attribute.Int("precedent.limit", limit))

	cursor, err := s.col.Aggregate(ctx, searchPipeline(s.indexName, vector, limit))
	s.metrics.RecordDatabaseOperation("vector_search", s.col.Name(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("precedent search: %w", ai.WrapUpstream(SearchService, err))
	}
	defer cursor.Close(ctx)

	results := []models.Precedent{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode precedents: %w", ai.WrapUpstream(SearchService, err))
	}
	span.SetAttributes(attribute.Int("precedent.results", len(results)))
	return results, nil
}

func (s *MongoStore) Upsert(ctx context.Context, precedents []models.Precedent) (int64, error) {
	if len(precedents) == 0 {
		return 0, nil
	}

	batch := make([]mongo.WriteModel, 0, len(precedents))
	for _, p := range precedents {
		if p.Source == "" {
			return 0, fmt.Errorf("precedent without source cannot be upserted")
		}
		p.ID = primitive.NilObjectID
		batch = append(batch, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"source": p.Source}).
			SetReplacement(p).
			SetUpsert(true))
	}

	res, err := s.col.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	s.metrics.RecordDatabaseOperation("bulk_upsert", s.col.Name(), err == nil)
	if err != nil {
		return 0, fmt.Errorf("upsert precedents: %w", err)
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

// searchPipeline ranks by vector similarity, exposes the score and drops the vector
func searchPipeline(indexName string, vector []float32, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: indexName},
			{Key: "path", Value: "vector"},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: limit * candidatesPerResult},
			{Key: "limit", Value: limit},
		}}},
		{{Key: "$set", Value: bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
		{{Key: "$unset", Value: "vector"}},
	}
}
