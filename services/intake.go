package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrFileTooLarge is reported for uploads above the configured size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// attachTimeout bounds linking already stored blobs after the caller went away
const attachTimeout = 10 * time.Second

// FileUpload is one file of a multi-file upload
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// BlobStore persists and reads chunked blobs
type BlobStore interface {
	Store(ctx context.Context, content []byte, meta blobstore.UploadMetadata) (string, error)
	Retrieve(ctx context.Context, blobID string) (*blobstore.Blob, error)
	Stat(ctx context.Context, blobID string) (*models.FileInfo, error)
	Delete(ctx context.Context, blobID string) (bool, error)
}

// BlobIndex finds blobs by their metadata
type BlobIndex interface {
	FindByOwningClaim(ctx context.Context, claimRef string) ([]models.FileInfo, error)
	FindByUploader(ctx context.Context, userRef string) ([]models.FileInfo, error)
	FindByAmbiguousReference(ctx context.Context, ref string) []models.FileInfo
}

// ClaimLinker resolves claims and links blobs to them
type ClaimLinker interface {
	Resolve(ctx context.Context, identifier string) (*models.Claim, error)
	AttachFiles(ctx context.Context, identifier string, blobIDs []string) (*models.Claim, error)
}

// IntakeService stores claim documents and keeps claims pointing at them
type IntakeService struct {
	blobs       BlobStore
	index       BlobIndex
	linker      ClaimLinker
	maxFileSize int64
}

func NewIntakeService(blobs BlobStore, index BlobIndex, linker ClaimLinker, maxFileSize int64) *IntakeService {
	return &IntakeService{
		blobs:       blobs,
		index:       index,
		linker:      linker,
		maxFileSize: maxFileSize,
	}
}

// UploadFiles stores each file independently and appends the ids of the
// stored ones to the claim in arrival order. Nothing is stored when the claim
// cannot be resolved. When linking fails the blobs stay retrievable by id and
// the report carries both the ids and the linkage error.
func (s *IntakeService) UploadFiles(ctx context.Context, claimIdentifier, uploaderRef string, files []FileUpload) (*models.FileUploadResponse, error) {
	claim, err := s.linker.Resolve(ctx, claimIdentifier)
	if err != nil {
		return nil, err
	}

	meta := blobstore.UploadMetadata{
		ClaimID: claim.ClaimID,
		UserID:  uploaderRef,
	}
	if meta.ClaimID == "" {
		meta.ClaimID = claimIdentifier
	}
	if !claim.ID.IsZero() {
		id := claim.ID
		meta.ClaimObjectID = &id
	}

	report := &models.FileUploadResponse{
		ClaimID: meta.ClaimID,
		FileIDs: []string{},
		Results: make([]models.FileUploadResult, 0, len(files)),
	}

	for i, file := range files {
		if ctx.Err() != nil {
			for _, skipped := range files[i:] {
				report.Results = append(report.Results, models.FileUploadResult{
					Filename: skipped.Filename,
					Size:     skipped.Size,
					Error:    "upload cancelled",
				})
			}
			break
		}

		result := models.FileUploadResult{Filename: file.Filename, Size: file.Size}
		id, err := s.storeOne(ctx, file, meta)
		if err != nil {
			logger.Warn("File upload failed", "claim_id", meta.ClaimID, "filename", file.Filename, "error", err)
			result.Error = err.Error()
		} else {
			result.FileID = id
			report.FileIDs = append(report.FileIDs, id)
		}
		report.Results = append(report.Results, result)
	}

	if len(report.FileIDs) > 0 {
		attachCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), attachTimeout)
		_, err := s.linker.AttachFiles(attachCtx, claimIdentifier, report.FileIDs)
		cancel()
		if err != nil {
			report.Error = err.Error()
			logger.Error("Stored files could not be linked to claim",
				"claim_id", meta.ClaimID, "file_ids", report.FileIDs, "error", err)
			return report, fmt.Errorf("attach files to claim %s: %w", meta.ClaimID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	logger.Info("Files uploaded", "claim_id", meta.ClaimID, "stored", len(report.FileIDs), "total", len(files))
	return report, nil
}

func (s *IntakeService) storeOne(ctx context.Context, file FileUpload, meta blobstore.UploadMetadata) (string, error) {
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.Size)
	}

	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if s.maxFileSize > 0 {
		r = io.LimitReader(rc, s.maxFileSize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return "", fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.maxFileSize)
	}

	meta.Filename = file.Filename
	meta.ContentType = file.ContentType
	return s.blobs.Store(ctx, content, meta)
}

// GetFile returns a blob with its content
func (s *IntakeService) GetFile(ctx context.Context, fileID string) (*blobstore.Blob, error) {
	return s.blobs.Retrieve(ctx, fileID)
}

// StatFile returns a blob's metadata without reading its chunks
func (s *IntakeService) StatFile(ctx context.Context, fileID string) (*models.FileInfo, error) {
	return s.blobs.Stat(ctx, fileID)
}

// ListClaimFiles lists the blobs of a claim identified by any accepted identifier.
// Unknown identifiers fall back to the ambiguous reference lookup.
func (s *IntakeService) ListClaimFiles(ctx context.Context, identifier string) ([]models.FileInfo, error) {
	claim, err := s.linker.Resolve(ctx, identifier)
	switch {
	case errors.Is(err, claims.ErrNotFound):
		return s.index.FindByAmbiguousReference(ctx, identifier), nil
	case err != nil:
		return nil, err
	}

	files, err := s.index.FindByOwningClaim(ctx, claim.ClaimID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 && !claim.ID.IsZero() {
		return s.index.FindByAmbiguousReference(ctx, claim.ID.Hex()), nil
	}
	return files, nil
}

// ListByObjectID lists blobs for a claim primary key. A value that is not an
// ObjectID skips the claim lookup and matches blob metadata directly.
func (s *IntakeService) ListByObjectID(ctx context.Context, objectID string) ([]models.FileInfo, error) {
	if _, err := primitive.ObjectIDFromHex(objectID); err != nil {
		return s.index.FindByAmbiguousReference(ctx, objectID), nil
	}
	return s.ListClaimFiles(ctx, objectID)
}

// ListUserFiles lists blobs uploaded by a user
func (s *IntakeService) ListUserFiles(ctx context.Context, userID string) ([]models.FileInfo, error) {
	return s.index.FindByUploader(ctx, userID)
}

// DeleteFile removes a blob. Claims keep their reference to it.
func (s *IntakeService) DeleteFile(ctx context.Context, fileID string) (bool, error) {
	deleted, err := s.blobs.Delete(ctx, fileID)
	if err != nil {
		return false, err
	}
	if deleted {
		logger.Info("File deleted", "file_id", fileID)
	}
	return deleted, nil
}
