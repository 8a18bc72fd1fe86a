package claims

import (
	"context"
	"sort"
	"sync"
	"time"

	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository keeps claims in process memory
type MemoryRepository struct {
	mu     sync.RWMutex
	claims []*models.Claim
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Insert(ctx context.Context, claim *models.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.claims {
		if existing.ClaimID == claim.ClaimID {
			return ErrDuplicateReference
		}
	}

	if claim.StringID == "" && claim.ID.IsZero() {
		claim.ID = primitive.NewObjectID()
	}
	r.claims = append(r.claims, cloneClaim(claim))
	return nil
}

func (r *MemoryRepository) FindOne(ctx context.Context, filter Filter) (*models.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim := r.find(filter)
	if claim == nil {
		return nil, ErrNotFound
	}
	return cloneClaim(claim), nil
}

func (r *MemoryRepository) List(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Claim
	for _, claim := range r.claims {
		if query.Status == "" || claim.Status == query.Status {
			matched = append(matched, claim)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	total := int64(len(matched))
	page := []models.Claim{}
	for i := query.Offset; i < total && (query.Limit <= 0 || int64(len(page)) < query.Limit); i++ {
		page = append(page, *cloneClaim(matched[i]))
	}
	return page, total, nil
}

func (r *MemoryRepository) Update(ctx context.Context, filter Filter, update Update) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim := r.find(filter)
	if claim == nil {
		return 0, nil
	}

	if update.Provider != nil {
		claim.Provider = *update.Provider
	}
	if update.Patient != nil {
		claim.Patient = *update.Patient
	}
	if update.Service != nil {
		files := claim.Service.UploadedFiles
		claim.Service = *update.Service
		claim.Service.UploadedFiles = files
	}
	if update.Status != nil {
		claim.Status = *update.Status
	}
	if update.Extraction != nil {
		claim.Extraction = append([]models.FileExtraction(nil), update.Extraction...)
	}
	at := update.UpdatedAt
	claim.UpdatedAt = &at
	return 1, nil
}

func (r *MemoryRepository) PushFiles(ctx context.Context, filter Filter, blobIDs []string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim := r.find(filter)
	if claim == nil {
		return 0, nil
	}
	claim.Service.UploadedFiles = append(claim.Service.UploadedFiles, blobIDs...)
	claim.UpdatedAt = &at
	return 1, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, filter Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, claim := range r.claims {
		if matchesFilter(claim, filter) {
			r.claims = append(r.claims[:i], r.claims[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *MemoryRepository) find(filter Filter) *models.Claim {
	for _, claim := range r.claims {
		if matchesFilter(claim, filter) {
			return claim
		}
	}
	return nil
}

// matchesFilter compares the way the document store does: an ObjectID value
// only matches ObjectID keys and a string value only matches string keys.
func matchesFilter(claim *models.Claim, filter Filter) bool {
	switch filter.Field {
	case models.ClaimPrimaryKeyField:
		switch v := filter.Value.(type) {
		case primitive.ObjectID:
			return claim.StringID == "" && claim.ID == v
		case string:
			return claim.StringID != "" && claim.StringID == v
		}
	case models.ClaimReferenceField:
		ref, ok := filter.Value.(string)
		return ok && ref != "" && claim.ClaimID == ref
	}
	return false
}

func cloneClaim(claim *models.Claim) *models.Claim {
	c := *claim
	c.Service.UploadedFiles = append([]string{}, claim.Service.UploadedFiles...)
	if claim.Extraction != nil {
		c.Extraction = append([]models.FileExtraction(nil), claim.Extraction...)
	}
	if claim.UpdatedAt != nil {
		at := *claim.UpdatedAt
		c.UpdatedAt = &at
	}
	return &c
}
