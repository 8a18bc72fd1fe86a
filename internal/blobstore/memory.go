package blobstore

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository keeps chunks and files documents in process memory.
// It implements both ChunkRepository and FileRepository.
type MemoryRepository struct {
	mu     sync.RWMutex
	chunks map[primitive.ObjectID]map[int]Chunk
	files  map[primitive.ObjectID]FileDocument
	order  []primitive.ObjectID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		chunks: make(map[primitive.ObjectID]map[int]Chunk),
		files:  make(map[primitive.ObjectID]FileDocument),
	}
}

var (
	_ ChunkRepository = (*MemoryRepository)(nil)
	_ FileRepository  = (*MemoryRepository)(nil)
)

func (r *MemoryRepository) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range chunks {
		byN, ok := r.chunks[ch.FilesID]
		if !ok {
			byN = make(map[int]Chunk)
			r.chunks[ch.FilesID] = byN
		}
		ch.Data = append([]byte(nil), ch.Data...)
		byN[ch.N] = ch
	}
	return nil
}

func (r *MemoryRepository) FindChunks(ctx context.Context, filesID primitive.ObjectID) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byN := r.chunks[filesID]
	chunks := make([]Chunk, 0, len(byN))
	for _, ch := range byN {
		ch.Data = append([]byte(nil), ch.Data...)
		chunks = append(chunks, ch)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].N < chunks[j].N })
	return chunks, nil
}

func (r *MemoryRepository) DeleteChunks(ctx context.Context, filesID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.chunks[filesID]))
	delete(r.chunks, filesID)
	return n, nil
}

func (r *MemoryRepository) DistinctFilesIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]primitive.ObjectID, 0, len(r.chunks))
	for id := range r.chunks {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *MemoryRepository) InsertFile(ctx context.Context, doc *FileDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[doc.ID]; !exists {
		r.order = append(r.order, doc.ID)
	}
	r.files[doc.ID] = *doc
	return nil
}

func (r *MemoryRepository) FindFile(ctx context.Context, id primitive.ObjectID) (*FileDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (r *MemoryRepository) FindFiles(ctx context.Context, filter FileFilter) ([]FileDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var docs []FileDocument
	for _, id := range r.order {
		doc, ok := r.files[id]
		if ok && matches(doc, filter) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (r *MemoryRepository) DeleteFile(ctx context.Context, id primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[id]; !ok {
		return 0, nil
	}
	delete(r.files, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

func matches(doc FileDocument, filter FileFilter) bool {
	if filter.Empty() {
		return false
	}
	if filter.ClaimID != "" && doc.Metadata.ClaimID != filter.ClaimID {
		return false
	}
	if filter.UserID != "" && doc.Metadata.UserID != filter.UserID {
		return false
	}
	if filter.ObjectID != nil {
		id := *filter.ObjectID
		byMongoID := doc.Metadata.MongoDBID != nil && *doc.Metadata.MongoDBID == id
		byClaimID := doc.Metadata.ClaimMongoDBID != nil && *doc.Metadata.ClaimMongoDBID == id
		if !byMongoID && !byClaimID {
			return false
		}
	}
	return true
}
