package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"
)

// ExtractionRecorder saves extraction results on a claim
type ExtractionRecorder interface {
	RecordExtraction(ctx context.Context, identifier string, results []models.FileExtraction) (*models.Claim, error)
}

// ClaimFileProcessor runs structured extraction over the PDFs attached to a claim
type ClaimFileProcessor struct {
	linker     ClaimLinker
	blobs      BlobStore
	processing *ProcessingService
	recorder   ExtractionRecorder
	now        func() time.Time
}

func NewClaimFileProcessor(linker ClaimLinker, blobs BlobStore, processing *ProcessingService, recorder ExtractionRecorder) *ClaimFileProcessor {
	return &ClaimFileProcessor{
		linker:     linker,
		blobs:      blobs,
		processing: processing,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Process extracts every PDF referenced by the claim and records one result
// per file. A failing file is recorded with its error; only configuration
// errors and failures to save the results abort the run.
func (p *ClaimFileProcessor) Process(ctx context.Context, identifier string) ([]models.FileExtraction, error) {
	claim, err := p.linker.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	results := make([]models.FileExtraction, 0, len(claim.FileReferences()))
	for _, fileID := range claim.FileReferences() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := models.FileExtraction{FileID: fileID}
		blob, err := p.blobs.Retrieve(ctx, fileID)
		if err != nil {
			result.Error = err.Error()
			result.ProcessedAt = p.now().UTC()
			results = append(results, result)
			continue
		}
		result.Filename = blob.Info.Filename

		if !IsPDF(blob.Info.Filename) && blob.Info.ContentType != "application/pdf" {
			continue
		}

		healthClaim, err := p.processing.ExtractClaim(ctx, blob.Content)
		switch {
		case errors.Is(err, ai.ErrNotConfigured):
			return nil, err
		case err != nil:
			result.Error = err.Error()
		default:
			result.HealthClaim = healthClaim
		}
		result.ProcessedAt = p.now().UTC()
		results = append(results, result)
	}

	if _, err := p.recorder.RecordExtraction(ctx, identifier, results); err != nil {
		return nil, fmt.Errorf("record extraction for %s: %w", identifier, err)
	}

	logger.Info("Claim files processed", "claim", identifier, "files", len(results))
	return results, nil
}
