// Package blobstore stores uploaded files as fixed-size chunks next to a
// metadata document, using the GridFS collection layout (fs.files / fs.chunks)
// so blobs written by earlier versions of the intake backend stay readable.
//
// The chunk documents and the files document live in two collections and are
// written in two steps. There is no transaction across them: a blob becomes
// visible only once its files document exists, and that document is written
// after every chunk write has returned successfully.
package blobstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a blob id is unknown or cannot be decoded
	ErrNotFound = errors.New("blob not found")
	// ErrCorrupt is returned when stored chunks disagree with the files document
	ErrCorrupt = errors.New("blob chunks corrupted")
)

// Chunk is one document of fs.chunks
type Chunk struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	FilesID primitive.ObjectID `bson:"files_id"`
	N       int                `bson:"n"`
	Data    []byte             `bson:"data"`
}

// FileMetadata is the metadata sub-document of fs.files.
// ClaimMongoDBID and MongoDBID hold the owning claim's primary key in its
// native encoding for lookups made with an ObjectID instead of a claim reference.
type FileMetadata struct {
	ContentType    string              `bson:"content_type"`
	ClaimID        string              `bson:"claim_id,omitempty"`
	UserID         string              `bson:"user_id,omitempty"`
	UploadedAt     time.Time           `bson:"uploaded_at"`
	ClaimMongoDBID *primitive.ObjectID `bson:"claim_mongodb_id,omitempty"`
	MongoDBID      *primitive.ObjectID `bson:"mongodb_id,omitempty"`
	Checksum       string              `bson:"checksum,omitempty"`
}

// FileDocument is one document of fs.files
type FileDocument struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	ChunkSize  int32              `bson:"chunkSize"`
	UploadDate time.Time          `bson:"uploadDate"`
	Filename   string             `bson:"filename"`
	Metadata   FileMetadata       `bson:"metadata"`
}

// FileFilter selects files documents. Set fields are combined with AND;
// ObjectID matches either metadata.mongodb_id or metadata.claim_mongodb_id.
type FileFilter struct {
	ClaimID  string
	UserID   string
	ObjectID *primitive.ObjectID
}

// Empty reports whether no field of the filter is set
func (f FileFilter) Empty() bool {
	return f.ClaimID == "" && f.UserID == "" && f.ObjectID == nil
}

// ChunkRepository persists chunk documents
type ChunkRepository interface {
	InsertChunks(ctx context.Context, chunks []Chunk) error
	// FindChunks returns the chunks of one blob ordered by ascending n
	FindChunks(ctx context.Context, filesID primitive.ObjectID) ([]Chunk, error)
	DeleteChunks(ctx context.Context, filesID primitive.ObjectID) (int64, error)
	// DistinctFilesIDs lists every files_id referenced by a chunk
	DistinctFilesIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// FileRepository persists files documents
type FileRepository interface {
	InsertFile(ctx context.Context, doc *FileDocument) error
	// FindFile returns ErrNotFound when no document has the given id
	FindFile(ctx context.Context, id primitive.ObjectID) (*FileDocument, error)
	// FindFiles returns matching documents in upload order
	FindFiles(ctx context.Context, filter FileFilter) ([]FileDocument, error)
	DeleteFile(ctx context.Context, id primitive.ObjectID) (int64, error)
}
