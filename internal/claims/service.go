package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	// generated references are short, so a collision is retried with a new one
	referenceAttempts = 5
)

// Service implements claim CRUD on top of a Repository and a Linkage
type Service struct {
	repo    Repository
	linkage *Linkage
	strict  bool
	now     func() time.Time
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	// StrictTransitions rejects status changes not listed in the transition table
	StrictTransitions bool
}

func NewService(repo Repository, linkage *Linkage, opts ServiceOptions) *Service {
	return &Service{
		repo:    repo,
		linkage: linkage,
		strict:  opts.StrictTransitions,
		now:     time.Now,
	}
}

// Linkage returns the resolver used by the service
func (s *Service) Linkage() *Linkage {
	return s.linkage
}

// Create stores a new claim, generating its reference when the input has none
func (s *Service) Create(ctx context.Context, input models.ClaimInput) (*models.Claim, error) {
	status := input.Status
	if status == "" {
		status = models.ClaimStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := s.now().UTC()
	claim := &models.Claim{
		ClaimID:     input.ClaimID,
		Provider:    input.Provider,
		Patient:     input.Patient,
		Service:     input.Service,
		Status:      status,
		SubmittedAt: now,
	}
	applyDefaults(claim)

	generated := claim.ClaimID == ""
	for attempt := 1; ; attempt++ {
		if generated {
			claim.ClaimID = NewReference(now)
		}

		err := s.repo.Insert(ctx, claim)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateReference) || !generated || attempt >= referenceAttempts {
			return nil, err
		}
		logger.Warn("claim reference collision, generating a new one", "claim_id", claim.ClaimID, "attempt", attempt)
	}

	logger.Info("claim created", "claim_id", claim.ClaimID, "status", claim.Status)
	return claim, nil
}

func applyDefaults(claim *models.Claim) {
	if claim.Service.PlaceOfService == "" {
		claim.Service.PlaceOfService = models.DefaultPlaceOfService
	}
	if claim.Service.PaymentCollected == "" {
		claim.Service.PaymentCollected = models.DefaultPaymentCollected
	}
	if claim.Provider.NetworkStatus == "" {
		claim.Provider.NetworkStatus = models.DefaultProviderNetworkStatus
	}
	// an empty array, never null, so appends by $push always apply
	if claim.Service.UploadedFiles == nil {
		claim.Service.UploadedFiles = []string{}
	}
}

// Get resolves a claim by primary key, string key or reference
func (s *Service) Get(ctx context.Context, identifier string) (*models.Claim, error) {
	return s.linkage.Resolve(ctx, identifier)
}

// List returns one page of claims and the total number of matches
func (s *Service) List(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error) {
	if query.Limit <= 0 {
		query.Limit = DefaultListLimit
	}
	if query.Limit > MaxListLimit {
		query.Limit = MaxListLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, query.Status)
	}

	return s.repo.List(ctx, query)
}

// Update replaces the provider, patient and service records of a claim.
// File references are kept as they are.
func (s *Service) Update(ctx context.Context, identifier string, input models.ClaimInput) (*models.Claim, error) {
	claim, err := s.linkage.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	update := Update{
		Provider:  &input.Provider,
		Patient:   &input.Patient,
		Service:   &input.Service,
		UpdatedAt: s.now().UTC(),
	}
	if input.Status != "" && input.Status != claim.Status {
		if err := s.checkStatus(claim.Status, input.Status); err != nil {
			return nil, err
		}
		update.Status = &input.Status
	}

	return s.apply(ctx, claim, update)
}

// UpdateStatus sets the review status of a claim
func (s *Service) UpdateStatus(ctx context.Context, identifier string, status models.ClaimStatus) (*models.Claim, error) {
	claim, err := s.linkage.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := s.checkStatus(claim.Status, status); err != nil {
		return nil, err
	}

	claim, err = s.apply(ctx, claim, Update{Status: &status, UpdatedAt: s.now().UTC()})
	if err != nil {
		return nil, err
	}

	logger.Info("claim status updated", "claim_id", claim.ClaimID, "status", status)
	return claim, nil
}

// RecordExtraction stores the structured extraction results of a claim's files
func (s *Service) RecordExtraction(ctx context.Context, identifier string, results []models.FileExtraction) (*models.Claim, error) {
	claim, err := s.linkage.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.FileExtraction{}
	}
	return s.apply(ctx, claim, Update{Extraction: results, UpdatedAt: s.now().UTC()})
}

// Delete removes a claim record. Blobs attached to it are not removed.
func (s *Service) Delete(ctx context.Context, identifier string) error {
	claim, err := s.linkage.Resolve(ctx, identifier)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, PrimaryKeyFilter(claim))
	if err != nil {
		return err
	}
	if deleted == 0 {
		deleted, err = s.repo.Delete(ctx, ReferenceFilter(claim))
		if err != nil {
			return err
		}
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}

	logger.Info("claim deleted", "claim_id", claim.ClaimID)
	return nil
}

func (s *Service) checkStatus(from, to models.ClaimStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if s.strict {
		return ValidateTransition(from, to)
	}
	return nil
}

// apply writes update by primary key, falling back to the reference
func (s *Service) apply(ctx context.Context, claim *models.Claim, update Update) (*models.Claim, error) {
	filter := PrimaryKeyFilter(claim)
	matched, err := s.repo.Update(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if matched == 0 && claim.ClaimID != "" {
		filter = ReferenceFilter(claim)
		if matched, err = s.repo.Update(ctx, filter, update); err != nil {
			return nil, err
		}
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUpdateConflict, claim.ClaimID)
	}
	return s.repo.FindOne(ctx, filter)
}
