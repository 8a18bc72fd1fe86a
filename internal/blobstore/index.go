package blobstore

import (
	"context"
	"fmt"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Index answers metadata queries over stored blobs
type Index struct {
	files   FileRepository
	lookups []referenceLookup
}

// referenceLookup turns a caller reference into a filter; ok=false skips the step
type referenceLookup struct {
	name   string
	filter func(ref string) (FileFilter, bool)
}

func NewIndex(files FileRepository) *Index {
	return &Index{
		files: files,
		lookups: []referenceLookup{
			{name: "claim_reference", filter: byClaimReference},
			{name: "object_id", filter: byObjectID},
		},
	}
}

func byClaimReference(ref string) (FileFilter, bool) {
	return FileFilter{ClaimID: ref}, ref != ""
}

func byObjectID(ref string) (FileFilter, bool) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return FileFilter{}, false
	}
	return FileFilter{ObjectID: &id}, true
}

// FindByOwningClaim lists blobs whose metadata names claimRef as owner
func (x *Index) FindByOwningClaim(ctx context.Context, claimRef string) ([]models.FileInfo, error) {
	if claimRef == "" {
		return []models.FileInfo{}, nil
	}
	return x.find(ctx, FileFilter{ClaimID: claimRef})
}

// FindByUploader lists blobs uploaded by userRef
func (x *Index) FindByUploader(ctx context.Context, userRef string) ([]models.FileInfo, error) {
	if userRef == "" {
		return []models.FileInfo{}, nil
	}
	return x.find(ctx, FileFilter{UserID: userRef})
}

// FindByAmbiguousReference tries each lookup in order and returns the first
// non-empty result. Store failures are logged and the next lookup is tried,
// so the result is empty rather than an error when nothing matches.
func (x *Index) FindByAmbiguousReference(ctx context.Context, ref string) []models.FileInfo {
	for _, lookup := range x.lookups {
		filter, ok := lookup.filter(ref)
		if !ok {
			continue
		}

		files, err := x.find(ctx, filter)
		if err != nil {
			logger.Warn("blob lookup failed", "lookup", lookup.name, "reference", ref, "error", err)
			continue
		}
		if len(files) > 0 {
			return files
		}
	}
	return []models.FileInfo{}
}

func (x *Index) find(ctx context.Context, filter FileFilter) ([]models.FileInfo, error) {
	docs, err := x.files.FindFiles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	files := make([]models.FileInfo, 0, len(docs))
	for i := range docs {
		files = append(files, toFileInfo(&docs[i]))
	}
	return files, nil
}
