package blobstore

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testChunkSize = 1024

func randomContent(t *testing.T, n int) []byte {
	t.Helper()
	content := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(content)
	return content
}

func newTestStore(repo *MemoryRepository, chunkSize int) *ChunkStore {
	return NewChunkStore(repo, repo, Options{ChunkSize: chunkSize, BatchSize: 2})
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	lengths := []int{0, 1, testChunkSize - 1, testChunkSize, testChunkSize + 1, 5 * testChunkSize}

	for _, length := range lengths {
		repo := NewMemoryRepository()
		store := newTestStore(repo, testChunkSize)
		content := randomContent(t, length)

		id, err := store.Store(context.Background(), content, UploadMetadata{Filename: "claim.pdf", ClaimID: "MH-2025-ab12"})
		require.NoError(t, err, "length %d", length)

		blob, err := store.Retrieve(context.Background(), id)
		require.NoError(t, err, "length %d", length)
		assert.True(t, bytes.Equal(content, blob.Content), "length %d: content differs", length)
		assert.Equal(t, int64(length), blob.Info.Length)
		assert.Equal(t, "claim.pdf", blob.Info.Filename)
		assert.Equal(t, "MH-2025-ab12", blob.Info.ClaimID)

		oid, _ := primitive.ObjectIDFromHex(id)
		chunks, _ := repo.FindChunks(context.Background(), oid)
		assert.Len(t, chunks, expectedChunkCount(int64(length), testChunkSize), "length %d", length)
	}
}

func TestStoreDefaultChunkSizeSplit(t *testing.T) {
	repo := NewMemoryRepository()
	store := NewChunkStore(repo, repo, Options{})
	content := randomContent(t, 600000)

	id, err := store.Store(context.Background(), content, UploadMetadata{Filename: "large.pdf"})
	require.NoError(t, err)

	oid, err := primitive.ObjectIDFromHex(id)
	require.NoError(t, err)
	chunks, err := repo.FindChunks(context.Background(), oid)
	require.NoError(t, err)

	sizes := make([]int, len(chunks))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.N)
		sizes[i] = len(ch.Data)
	}
	assert.Equal(t, []int{261120, 261120, 77760}, sizes)

	doc, err := repo.FindFile(context.Background(), oid)
	require.NoError(t, err)
	assert.Equal(t, int64(600000), doc.Length)
	assert.Equal(t, int32(DefaultChunkSize), doc.ChunkSize)
	assert.NotEmpty(t, doc.Metadata.Checksum)
}

func TestStoreDefaultsContentType(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(repo, testChunkSize)

	id, err := store.Store(context.Background(), []byte("x"), UploadMetadata{Filename: "a.bin"})
	require.NoError(t, err)

	info, err := store.Stat(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", info.ContentType)
}

var errInjected = errors.New("injected write failure")

// failingChunks fails the failOn-th insert call
type failingChunks struct {
	*MemoryRepository
	failOn int32
	calls  atomic.Int32
}

func (f *failingChunks) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if f.calls.Add(1) == f.failOn {
		return errInjected
	}
	return f.MemoryRepository.InsertChunks(ctx, chunks)
}

func TestStoreChunkFailureRegistersNothing(t *testing.T) {
	repo := NewMemoryRepository()
	chunks := &failingChunks{MemoryRepository: repo, failOn: 2}
	store := NewChunkStore(chunks, repo, Options{ChunkSize: testChunkSize, BatchSize: 1, WriteConcurrency: 1})

	id, err := store.Store(context.Background(), randomContent(t, 4*testChunkSize), UploadMetadata{Filename: "broken.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, id)

	owners, err := repo.DistinctFilesIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, owners, "chunks of a failed store should be discarded")
	assert.Empty(t, repo.files)
}

func TestRetrieveNotFound(t *testing.T) {
	store := newTestStore(NewMemoryRepository(), testChunkSize)

	_, err := store.Retrieve(context.Background(), "not-an-object-id")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Retrieve(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieveDetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(byN map[int]Chunk)
		want    error
	}{
		{
			name:    "missing middle chunk",
			corrupt: func(byN map[int]Chunk) { delete(byN, 1) },
			want:    ErrCorrupt,
		},
		{
			name: "index gap",
			corrupt: func(byN map[int]Chunk) {
				ch := byN[2]
				delete(byN, 2)
				ch.N = 7
				byN[7] = ch
			},
			want: ErrCorrupt,
		},
		{
			name: "short chunk",
			corrupt: func(byN map[int]Chunk) {
				ch := byN[0]
				ch.Data = ch.Data[:10]
				byN[0] = ch
			},
			want: ErrCorrupt,
		},
		{
			name: "flipped byte",
			corrupt: func(byN map[int]Chunk) {
				ch := byN[1]
				ch.Data[5] ^= 0xff
				byN[1] = ch
			},
			want: ErrCorrupt,
		},
		{
			name: "all chunks missing",
			corrupt: func(byN map[int]Chunk) {
				for n := range byN {
					delete(byN, n)
				}
			},
			want: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			store := newTestStore(repo, testChunkSize)

			id, err := store.Store(context.Background(), randomContent(t, 3*testChunkSize+17), UploadMetadata{})
			require.NoError(t, err)

			oid, _ := primitive.ObjectIDFromHex(id)
			tt.corrupt(repo.chunks[oid])

			_, err = store.Retrieve(context.Background(), id)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(repo, testChunkSize)

	id, err := store.Store(context.Background(), randomContent(t, 2*testChunkSize), UploadMetadata{})
	require.NoError(t, err)

	found, err := store.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.Retrieve(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err = store.Delete(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSplitChunks(t *testing.T) {
	assert.Empty(t, splitChunks(nil, 4))
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("ef")}, splitChunks([]byte("abcdef"), 4))
	assert.Equal(t, [][]byte{[]byte("abcd")}, splitChunks([]byte("abcd"), 4))
}
