package precedent

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func TestMemoryStoreSearchOrdersBySimilarity(t *testing.T) {
	store := NewMemoryStore(
		models.Precedent{Source: "a", Decision: "overturned", Vector: []float32{1, 0, 0}},
		models.Precedent{Source: "b", Decision: "upheld", Vector: []float32{0, 1, 0}},
		models.Precedent{Source: "c", Decision: "partial", Vector: []float32{0.7, 0.7, 0}},
	)

	results, err := store.Search(context.Background(), []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Source)
	assert.Equal(t, "c", results[1].Source)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Nil(t, results[0].Vector)
}

func TestMemoryStoreUpsertReplacesBySource(t *testing.T) {
	store := NewMemoryStore(models.Precedent{Source: "a", Decision: "upheld", Vector: []float32{1, 0}})

	n, err := store.Upsert(context.Background(), []models.Precedent{
		{Source: "a", Decision: "overturned", Vector: []float32{1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	results, err := store.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "overturned", results[0].Decision)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	_, err := NewMemoryStore().Search(context.Background(), nil, 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = NewMemoryStore().Search(context.Background(), []float32{1}, 0)
	assert.Error(t, err)
}

func TestIndexerEmbedsMissingVectors(t *testing.T) {
	store := NewMemoryStore()
	embedder := &stubEmbedder{}
	ix := NewIndexer(store, embedder)
	ix.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }

	n, err := ix.Index(context.Background(), []models.Precedent{
		{Source: "p-1", Decision: "overturned", Condition: "depression"},
		{Source: "p-2", Decision: "upheld", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, embedder.calls)

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p-1", results[0].Source)
	assert.Equal(t, 2025, results[0].IndexedAt.Year())
}

func TestIndexerStopsOnEmbeddingFailure(t *testing.T) {
	store := NewMemoryStore()
	ix := NewIndexer(store, &stubEmbedder{err: errors.New("quota")})

	_, err := ix.Index(context.Background(), []models.Precedent{{Source: "p-1", Decision: "upheld"}})
	assert.Error(t, err)

	_, err = ix.Index(context.Background(), []models.Precedent{{Decision: "no source"}})
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	text := Text(models.Precedent{Decision: "Overturned", Condition: "PTSD", Rationale: " medically necessary "})
	assert.Equal(t, "Decision: Overturned\nCondition: PTSD\nRationale: medically necessary", text)
}

func TestSearchPipeline(t *testing.T) {
	pipeline := searchPipeline("precedent_vector", []float32{0.5}, 3)
	require.Len(t, pipeline, 3)

	stage := pipeline[0][0]
	assert.Equal(t, "$vectorSearch", stage.Key)
	params := stage.Value.(bson.D).Map()
	assert.Equal(t, "precedent_vector", params["index"])
	assert.Equal(t, 60, params["numCandidates"])
	assert.Equal(t, 3, params["limit"])
	assert.Equal(t, "$unset", pipeline[2][0].Key)
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("search decodes scored precedents", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll, "precedent_vector", nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "claims.precedents", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "decision", Value: "overturned"},
			{Key: "rationale", Value: "treatment is standard of care"},
			{Key: "source", Value: "imr-1"},
			{Key: "score", Value: 0.91},
		}))

		results, err := store.Search(context.Background(), []float32{0.1, 0.2}, 3)
		require.NoError(mt, err)
		require.Len(mt, results, 1)
		assert.Equal(mt, "imr-1", results[0].Source)
		assert.InDelta(mt, 0.91, results[0].Score, 1e-9)
	})

	mt.Run("search with no hits returns empty slice", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll, "precedent_vector", nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "claims.precedents", mtest.FirstBatch))

		results, err := store.Search(context.Background(), []float32{0.1}, 1)
		require.NoError(mt, err)
		assert.NotNil(mt, results)
		assert.Empty(mt, results)
	})

	mt.Run("search failure is an upstream failure", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll, "precedent_vector", nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "$vectorSearch not allowed",
		}))

		_, err := store.Search(context.Background(), []float32{0.1}, 1)
		var upstream *ai.UpstreamError
		require.True(mt, errors.As(err, &upstream))
		assert.Equal(mt, SearchService, upstream.Service)
		assert.Equal(mt, http.StatusBadGateway, upstream.StatusCode)
		assert.Contains(mt, upstream.Message, "$vectorSearch not allowed")
	})

	mt.Run("upsert counts written precedents", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll, "precedent_vector", nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		n, err := store.Upsert(context.Background(), []models.Precedent{{Source: "imr-1", Decision: "upheld"}})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), n)
	})

	mt.Run("upsert requires a source", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll, "precedent_vector", nil)

		_, err := store.Upsert(context.Background(), []models.Precedent{{Decision: "upheld"}})
		assert.Error(mt, err)
	})
}
