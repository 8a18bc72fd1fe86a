// Package claims owns the claim aggregate: creation with generated
// references, identifier resolution, file linkage and status updates.
package claims

import (
	"context"
	"errors"
	"time"

	"claims-intake-platform/models"
)

var (
	ErrNotFound           = errors.New("claim not found")
	ErrUpdateConflict     = errors.New("claim update matched no document")
	ErrInvalidStatus      = errors.New("invalid claim status")
	ErrDuplicateReference = errors.New("claim reference already exists")
)

// Filter is a single-field equality predicate on a claim document
type Filter struct {
	Field string
	Value interface{}
}

// PrimaryKeyFilter matches the claim by its stored primary key encoding
func PrimaryKeyFilter(claim *models.Claim) Filter {
	if claim.StringID != "" {
		return Filter{Field: models.ClaimPrimaryKeyField, Value: claim.StringID}
	}
	return Filter{Field: models.ClaimPrimaryKeyField, Value: claim.ID}
}

// ReferenceFilter matches the claim by its claimId
func ReferenceFilter(claim *models.Claim) Filter {
	return Filter{Field: models.ClaimReferenceField, Value: claim.ClaimID}
}

// Update lists the fields to overwrite; nil fields are left untouched.
// Service never overwrites the file references.
type Update struct {
	Provider   *models.Provider
	Patient    *models.Patient
	Service    *models.Service
	Status     *models.ClaimStatus
	Extraction []models.FileExtraction
	UpdatedAt  time.Time
}

// Repository persists claims
type Repository interface {
	// Insert stores a new claim and sets its ID.
	// A claimId collision returns ErrDuplicateReference.
	Insert(ctx context.Context, claim *models.Claim) error
	// FindOne returns ErrNotFound when no document matches
	FindOne(ctx context.Context, filter Filter) (*models.Claim, error)
	List(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error)
	// Update returns the number of matched documents
	Update(ctx context.Context, filter Filter, update Update) (int64, error)
	// PushFiles appends blob ids to the file references and returns the
	// number of modified documents
	PushFiles(ctx context.Context, filter Filter, blobIDs []string, at time.Time) (int64, error)
	Delete(ctx context.Context, filter Filter) (int64, error)
}
