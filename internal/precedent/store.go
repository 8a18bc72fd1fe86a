// Package precedent stores prior coverage decisions with their embedding vectors
// and finds the ones most similar to a claim.
package precedent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"claims-intake-platform/models"
)

// ErrEmptyQuery is returned when a search is issued without a vector
var ErrEmptyQuery = errors.New("precedent: empty query vector")

// Store searches and maintains the precedent collection
type Store interface {
	// Search returns at most limit precedents ordered by descending similarity
	Search(ctx context.Context, vector []float32, limit int) ([]models.Precedent, error)
	// Upsert replaces precedents keyed by Source, inserting new ones
	Upsert(ctx context.Context, precedents []models.Precedent) (int64, error)
}

// Text is the string embedded for a precedent
func Text(p models.Precedent) string {
	parts := make([]string, 0, 6)
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", label, value))
		}
	}
	add("Decision", p.Decision)
	add("Coverage type", p.CoverageType)
	add("Condition", p.Condition)
	add("Treatment", p.Treatment)
	add("Rationale", p.Rationale)
	return strings.Join(parts, "\n")
}

func validateQuery(vector []float32, limit int) error {
	if len(vector) == 0 {
		return ErrEmptyQuery
	}
	if limit <= 0 {
		return fmt.Errorf("precedent: limit must be positive, got %d", limit)
	}
	return nil
}
