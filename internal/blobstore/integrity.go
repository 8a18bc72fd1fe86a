package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// IntegrityReport lists chunk groups that have no files document.
// These come from interrupted stores or deletes; nothing here removes them.
// A store still in flight also shows up until its files document is written.
type IntegrityReport struct {
	CheckedBlobs int      `json:"checked_blobs"`
	OrphanBlobs  []string `json:"orphan_blobs"`
}

// CheckIntegrity scans chunk owners and reports those without metadata
func CheckIntegrity(ctx context.Context, chunks ChunkRepository, files FileRepository) (*IntegrityReport, error) {
	ids, err := chunks.DistinctFilesIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{CheckedBlobs: len(ids), OrphanBlobs: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		_, err := files.FindFile(ctx, id)
		if errors.Is(err, ErrNotFound) {
			report.OrphanBlobs = append(report.OrphanBlobs, id.Hex())
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to check blob %s: %w", id.Hex(), err)
		}
	}
	return report, nil
}
