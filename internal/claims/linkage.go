package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// resolver turns a caller-supplied identifier into a predicate.
// ok=false skips the step, for identifiers that cannot be encoded for it.
type resolver struct {
	name   string
	filter func(identifier string) (Filter, bool)
}

// Linkage resolves claims from loosely typed identifiers and appends file
// references to them
type Linkage struct {
	repo      Repository
	resolvers []resolver
	now       func() time.Time
}

func NewLinkage(repo Repository) *Linkage {
	return &Linkage{
		repo: repo,
		resolvers: []resolver{
			{name: "object_id", filter: byObjectID},
			{name: "raw_string_id", filter: byRawStringID},
			{name: "claim_reference", filter: byClaimReference},
		},
		now: time.Now,
	}
}

func byObjectID(identifier string) (Filter, bool) {
	id, err := primitive.ObjectIDFromHex(identifier)
	if err != nil {
		return Filter{}, false
	}
	return Filter{Field: models.ClaimPrimaryKeyField, Value: id}, true
}

func byRawStringID(identifier string) (Filter, bool) {
	return Filter{Field: models.ClaimPrimaryKeyField, Value: identifier}, identifier != ""
}

func byClaimReference(identifier string) (Filter, bool) {
	return Filter{Field: models.ClaimReferenceField, Value: identifier}, identifier != ""
}

// Resolve tries each resolver in order and returns the first match.
// A store failure other than a miss stops the chain.
func (l *Linkage) Resolve(ctx context.Context, identifier string) (*models.Claim, error) {
	for _, r := range l.resolvers {
		filter, ok := r.filter(identifier)
		if !ok {
			continue
		}

		claim, err := l.repo.FindOne(ctx, filter)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %q by %s: %w", identifier, r.name, err)
		}

		logger.Debug("claim resolved", "identifier", identifier, "resolver", r.name)
		return claim, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
}

// AttachFiles appends blobIDs to the claim's file references in the given
// order. The append is retried once by claim reference when the primary key
// predicate modifies nothing.
func (l *Linkage) AttachFiles(ctx context.Context, identifier string, blobIDs []string) (*models.Claim, error) {
	claim, err := l.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(blobIDs) == 0 {
		return claim, nil
	}

	at := l.now().UTC()
	filter := PrimaryKeyFilter(claim)

	modified, err := l.repo.PushFiles(ctx, filter, blobIDs, at)
	if err != nil {
		return nil, err
	}

	if modified == 0 && claim.ClaimID != "" {
		logger.Warn("file attach by primary key modified nothing, retrying by reference",
			"identifier", identifier, "claim_id", claim.ClaimID)

		filter = ReferenceFilter(claim)
		modified, err = l.repo.PushFiles(ctx, filter, blobIDs, at)
		if err != nil {
			return nil, err
		}
	}

	if modified == 0 {
		return nil, fmt.Errorf("%w: attaching %d files to %s", ErrUpdateConflict, len(blobIDs), identifier)
	}

	updated, err := l.repo.FindOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to reload claim %s: %w", identifier, err)
	}
	return updated, nil
}
