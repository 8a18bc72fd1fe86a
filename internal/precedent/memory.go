package precedent

import (
	"context"
	"math"
	"sort"
	"sync"

	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore ranks precedents by cosine similarity in process.
// Used with the memory storage driver and in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	precedents []models.Precedent
}

func NewMemoryStore(precedents ...models.Precedent) *MemoryStore {
	s := &MemoryStore{}
	_, _ = s.Upsert(context.Background(), precedents)
	return s
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, limit int) ([]models.Precedent, error) {
	if err := validateQuery(vector, limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.Precedent, 0, len(s.precedents))
	for _, p := range s.precedents {
		if len(p.Vector) != len(vector) {
			continue
		}
		p.Score = cosine(vector, p.Vector)
		p.Vector = nil
		results = append(results, p)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Upsert(_ context.Context, precedents []models.Precedent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range precedents {
		p.Vector = append([]float32(nil), p.Vector...)
		replaced := false
		for i := range s.precedents {
			if p.Source != "" && s.precedents[i].Source == p.Source {
				p.ID = s.precedents[i].ID
				s.precedents[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			if p.ID.IsZero() {
				p.ID = primitive.NewObjectID()
			}
			s.precedents = append(s.precedents, p)
		}
		n++
	}
	return n, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
