package claims

import (
	"context"
	"errors"
	"sync"
	"time"

	"claims-intake-platform/models"
)

var _ Repository = (*MockRepository)(nil)

// MockRepository records every filter it receives
type MockRepository struct {
	InsertFunc    func(ctx context.Context, claim *models.Claim) error
	FindOneFunc   func(ctx context.Context, filter Filter) (*models.Claim, error)
	ListFunc      func(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error)
	UpdateFunc    func(ctx context.Context, filter Filter, update Update) (int64, error)
	PushFilesFunc func(ctx context.Context, filter Filter, blobIDs []string, at time.Time) (int64, error)
	DeleteFunc    func(ctx context.Context, filter Filter) (int64, error)

	mu           sync.Mutex
	FindFilters  []Filter
	PushFilters  []Filter
	InsertedRefs []string
}

func (m *MockRepository) Insert(ctx context.Context, claim *models.Claim) error {
	m.mu.Lock()
	m.InsertedRefs = append(m.InsertedRefs, claim.ClaimID)
	m.mu.Unlock()
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, claim)
	}
	return nil
}

func (m *MockRepository) FindOne(ctx context.Context, filter Filter) (*models.Claim, error) {
	m.mu.Lock()
	m.FindFilters = append(m.FindFilters, filter)
	m.mu.Unlock()
	if m.FindOneFunc != nil {
		return m.FindOneFunc(ctx, filter)
	}
	return nil, ErrNotFound
}

func (m *MockRepository) List(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, query)
	}
	return nil, 0, errors.New("ListFunc not implemented in mock")
}

func (m *MockRepository) Update(ctx context.Context, filter Filter, update Update) (int64, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, filter, update)
	}
	return 0, errors.New("UpdateFunc not implemented in mock")
}

func (m *MockRepository) PushFiles(ctx context.Context, filter Filter, blobIDs []string, at time.Time) (int64, error) {
	m.mu.Lock()
	m.PushFilters = append(m.PushFilters, filter)
	m.mu.Unlock()
	if m.PushFilesFunc != nil {
		return m.PushFilesFunc(ctx, filter, blobIDs, at)
	}
	return 0, errors.New("PushFilesFunc not implemented in mock")
}

func (m *MockRepository) Delete(ctx context.Context, filter Filter) (int64, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, filter)
	}
	return 0, errors.New("DeleteFunc not implemented in mock")
}
