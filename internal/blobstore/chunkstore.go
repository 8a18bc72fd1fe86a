package blobstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/telemetry"
	"claims-intake-platform/models"

	"github.com/zeebo/blake3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize matches the GridFS default of 255 KiB
	DefaultChunkSize = 261120

	defaultWriteConcurrency = 4
	defaultBatchSize        = 16
)

// Options configures a ChunkStore. Zero values select the defaults.
type Options struct {
	ChunkSize        int
	WriteConcurrency int
	// BatchSize is the number of chunks sent per insert call
	BatchSize int
	Metrics   *telemetry.Metrics
}

// UploadMetadata describes a blob at store time
type UploadMetadata struct {
	Filename    string
	ContentType string
	ClaimID     string
	UserID      string
	// ClaimObjectID is the owning claim's primary key, when known
	ClaimObjectID *primitive.ObjectID
}

// Blob is a retrieved blob with its content
type Blob struct {
	Info    models.FileInfo
	Content []byte
}

// ChunkStore splits content into chunks and reassembles it on read
type ChunkStore struct {
	chunks      ChunkRepository
	files       FileRepository
	chunkSize   int
	concurrency int
	batchSize   int
	metrics     *telemetry.Metrics
	now         func() time.Time
}

// NewChunkStore creates a chunk store over the given repositories
func NewChunkStore(chunks ChunkRepository, files FileRepository, opts Options) *ChunkStore {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.WriteConcurrency <= 0 {
		opts.WriteConcurrency = defaultWriteConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &ChunkStore{
		chunks:      chunks,
		files:       files,
		chunkSize:   opts.ChunkSize,
		concurrency: opts.WriteConcurrency,
		batchSize:   opts.BatchSize,
		metrics:     opts.Metrics,
		now:         time.Now,
	}
}

// ChunkSize returns the configured chunk size in bytes
func (s *ChunkStore) ChunkSize() int {
	return s.chunkSize
}

// Store persists content and returns the new blob id.
// The files document is written only after every chunk write succeeded; on
// failure the chunks already written are removed on a best-effort basis.
func (s *ChunkStore) Store(ctx context.Context, content []byte, meta UploadMetadata) (string, error) {
	ctx, span := otel.Tracer("blobstore").Start(ctx, "blobstore.store")
	defer span.End()

	fileID := primitive.NewObjectID()
	parts := splitChunks(content, s.chunkSize)
	span.SetAttributes(
		attribute.String("blob.id", fileID.Hex()),
		attribute.Int("blob.length", len(content)),
		attribute.Int("blob.chunks", len(parts)),
	)

	if err := s.writeChunks(ctx, fileID, parts); err != nil {
		s.discardChunks(ctx, fileID)
		span.SetAttributes(attribute.Bool("blob.error", true))
		s.metrics.RecordBlobOperation("store", false, 0)
		return "", fmt.Errorf("failed to write chunks for %s: %w", fileID.Hex(), err)
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = models.DefaultContentType
	}
	now := s.now().UTC()

	doc := &FileDocument{
		ID:         fileID,
		Length:     int64(len(content)),
		ChunkSize:  int32(s.chunkSize),
		UploadDate: now,
		Filename:   meta.Filename,
		Metadata: FileMetadata{
			ContentType:    contentType,
			ClaimID:        meta.ClaimID,
			UserID:         meta.UserID,
			UploadedAt:     now,
			ClaimMongoDBID: meta.ClaimObjectID,
			Checksum:       checksum(content),
		},
	}
	if err := s.files.InsertFile(ctx, doc); err != nil {
		s.discardChunks(ctx, fileID)
		s.metrics.RecordBlobOperation("store", false, 0)
		return "", fmt.Errorf("failed to write file document for %s: %w", fileID.Hex(), err)
	}

	s.metrics.RecordBlobOperation("store", true, int64(len(content)))
	logger.Debug("blob stored", "blob_id", fileID.Hex(), "length", len(content), "chunks", len(parts))
	return fileID.Hex(), nil
}

// writeChunks inserts chunk batches concurrently and waits for all of them
func (s *ChunkStore) writeChunks(ctx context.Context, fileID primitive.ObjectID, parts [][]byte) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(parts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(parts) {
			end = len(parts)
		}

		batch := make([]Chunk, 0, end-start)
		for n := start; n < end; n++ {
			batch = append(batch, Chunk{
				ID:      primitive.NewObjectID(),
				FilesID: fileID,
				N:       n,
				Data:    parts[n],
			})
		}

		g.Go(func() error {
			return s.chunks.InsertChunks(gctx, batch)
		})
	}

	return g.Wait()
}

func (s *ChunkStore) discardChunks(ctx context.Context, fileID primitive.ObjectID) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := s.chunks.DeleteChunks(cleanupCtx, fileID); err != nil {
		logger.Warn("failed to discard chunks of incomplete blob", "blob_id", fileID.Hex(), "error", err)
	}
}

// Retrieve reads a blob and verifies its chunks against the files document
func (s *ChunkStore) Retrieve(ctx context.Context, blobID string) (*Blob, error) {
	ctx, span := otel.Tracer("blobstore").Start(ctx, "blobstore.retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("blob.id", blobID))

	doc, err := s.findFile(ctx, blobID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.FindChunks(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks for %s: %w", blobID, err)
	}

	content, err := assemble(doc, chunks)
	if err != nil {
		span.SetAttributes(attribute.Bool("blob.error", true))
		s.metrics.RecordBlobOperation("retrieve", false, 0)
		return nil, err
	}

	s.metrics.RecordBlobOperation("retrieve", true, int64(len(content)))
	return &Blob{Info: toFileInfo(doc), Content: content}, nil
}

// Stat returns blob metadata without reading chunks
func (s *ChunkStore) Stat(ctx context.Context, blobID string) (*models.FileInfo, error) {
	doc, err := s.findFile(ctx, blobID)
	if err != nil {
		return nil, err
	}
	info := toFileInfo(doc)
	return &info, nil
}

// Delete removes the files document and then the chunks of a blob.
// Unknown or undecodable ids report false without an error.
func (s *ChunkStore) Delete(ctx context.Context, blobID string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(blobID)
	if err != nil {
		return false, nil
	}

	filesDeleted, err := s.files.DeleteFile(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete file document %s: %w", blobID, err)
	}

	chunksDeleted, err := s.chunks.DeleteChunks(ctx, id)
	if err != nil {
		return filesDeleted > 0, fmt.Errorf("failed to delete chunks of %s: %w", blobID, err)
	}

	found := filesDeleted+chunksDeleted > 0
	if found {
		s.metrics.RecordBlobOperation("delete", true, 0)
		logger.Debug("blob deleted", "blob_id", blobID, "chunks", chunksDeleted)
	}
	return found, nil
}

func (s *ChunkStore) findFile(ctx context.Context, blobID string) (*FileDocument, error) {
	id, err := primitive.ObjectIDFromHex(blobID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, blobID)
	}

	doc, err := s.files.FindFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", blobID, err)
	}
	return doc, nil
}

// splitChunks slices content into pieces of at most size bytes
func splitChunks(content []byte, size int) [][]byte {
	count := expectedChunkCount(int64(len(content)), size)
	parts := make([][]byte, 0, count)
	for start := 0; start < len(content); start += size {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		parts = append(parts, content[start:end])
	}
	return parts
}

func expectedChunkCount(length int64, size int) int {
	if length == 0 {
		return 0
	}
	return int((length + int64(size) - 1) / int64(size))
}

// assemble concatenates chunks after checking count, order, sizes and checksum.
// A blob whose chunks are all missing is reported as not found; any partial
// disagreement is reported as corruption.
func assemble(doc *FileDocument, chunks []Chunk) ([]byte, error) {
	size := int(doc.ChunkSize)
	if size <= 0 {
		return nil, fmt.Errorf("%w: blob %s has chunk size %d", ErrCorrupt, doc.ID.Hex(), size)
	}

	expected := expectedChunkCount(doc.Length, size)
	if expected > 0 && len(chunks) == 0 {
		return nil, fmt.Errorf("%w: blob %s has no chunks", ErrNotFound, doc.ID.Hex())
	}
	if len(chunks) != expected {
		return nil, fmt.Errorf("%w: blob %s has %d chunks, expected %d", ErrCorrupt, doc.ID.Hex(), len(chunks), expected)
	}

	var buf bytes.Buffer
	buf.Grow(int(doc.Length))

	for i, ch := range chunks {
		if ch.N != i {
			return nil, fmt.Errorf("%w: blob %s chunk index gap at %d (found %d)", ErrCorrupt, doc.ID.Hex(), i, ch.N)
		}
		want := size
		if i == expected-1 {
			want = int(doc.Length - int64(i)*int64(size))
		}
		if len(ch.Data) != want {
			return nil, fmt.Errorf("%w: blob %s chunk %d has %d bytes, expected %d", ErrCorrupt, doc.ID.Hex(), i, len(ch.Data), want)
		}
		buf.Write(ch.Data)
	}

	content := buf.Bytes()
	if doc.Metadata.Checksum != "" && doc.Metadata.Checksum != checksum(content) {
		return nil, fmt.Errorf("%w: blob %s checksum mismatch", ErrCorrupt, doc.ID.Hex())
	}
	return content, nil
}

func checksum(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func toFileInfo(doc *FileDocument) models.FileInfo {
	contentType := doc.Metadata.ContentType
	if contentType == "" {
		contentType = models.DefaultContentType
	}
	uploadedAt := doc.Metadata.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = doc.UploadDate
	}

	return models.FileInfo{
		FileID:      doc.ID.Hex(),
		Filename:    doc.Filename,
		ContentType: contentType,
		Length:      doc.Length,
		ChunkSize:   int(doc.ChunkSize),
		ClaimID:     doc.Metadata.ClaimID,
		UserID:      doc.Metadata.UserID,
		Checksum:    doc.Metadata.Checksum,
		UploadedAt:  uploadedAt,
	}
}
