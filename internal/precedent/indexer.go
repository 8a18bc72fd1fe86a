package precedent

import (
	"context"
	"fmt"
	"time"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"
)

// Indexer embeds precedents and writes them to a Store
type Indexer struct {
	store    Store
	embedder ai.Embedder
	now      func() time.Time
}

func NewIndexer(store Store, embedder ai.Embedder) *Indexer {
	return &Indexer{store: store, embedder: embedder, now: time.Now}
}

// Index embeds every precedent and upserts the batch. Precedents already
// carrying a vector are written as they are.
func (ix *Indexer) Index(ctx context.Context, precedents []models.Precedent) (int64, error) {
	batch := make([]models.Precedent, 0, len(precedents))
	for _, p := range precedents {
		if p.Source == "" {
			return 0, fmt.Errorf("precedent %q has no source", p.Decision)
		}
		if len(p.Vector) == 0 {
			vector, err := ix.embedder.Embed(ctx, Text(p))
			if err != nil {
				return 0, fmt.Errorf("embed precedent %s: %w", p.Source, err)
			}
			p.Vector = vector
		}
		p.IndexedAt = ix.now().UTC()
		batch = append(batch, p)
	}

	n, err := ix.store.Upsert(ctx, batch)
	if err != nil {
		return 0, err
	}
	logger.Info("Precedents indexed", "count", n)
	return n, nil
}
