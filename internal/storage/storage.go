package storage

import (
	"context"
	"time"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed
// document data
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id types.DocumentID) (*types.Document, error)
	GetDocumentByPath(ctx context.Context, path string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error)
	SetDocumentStatus(ctx context.Context, id types.DocumentID, status types.DocumentStatus, errorMessage string) error
	DeleteDocument(ctx context.Context, id types.DocumentID) error

	// Chunk operations. ftsText is the tokenizer-preprocessed text fed
	// to the full-text index; it may differ from chunk.Text for CJK
	// content.
	InsertChunk(ctx context.Context, chunk *types.Chunk, ftsText string) error
	GetChunk(ctx context.Context, id types.ChunkID) (*types.Chunk, error)
	ListChunksByDocument(ctx context.Context, docID types.DocumentID) ([]*types.Chunk, error)
	ListChunkIDsByDocument(ctx context.Context, docID types.DocumentID) ([]types.ChunkID, error)
	DeleteChunksByDocument(ctx context.Context, docID types.DocumentID) error

	// Embedding metadata operations. Vector data lives in the vector
	// index; these rows record slot assignments and the producing model.
	UpsertEmbedding(ctx context.Context, embedding *types.Embedding) error
	GetEmbedding(ctx context.Context, chunkID types.ChunkID) (*types.Embedding, error)
	UpdateEmbeddingSlots(ctx context.Context, slots map[types.ChunkID]int64) error

	// SearchText performs BM25 full-text search. Scores are raw FTS5
	// bm25 values: negative, lower is better.
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)

	// Index job operations
	CreateIndexJob(ctx context.Context, job *IndexJob) error
	UpdateIndexJob(ctx context.Context, job *IndexJob) error
	GetLatestIndexJob(ctx context.Context) (*IndexJob, error)

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Status operations
	GetStatus(ctx context.Context) (*IndexStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   types.ChunkID
	BM25Score float64 // Raw FTS5 bm25 value: negative, lower is better
}

// Job status values for IndexJob.Status.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// IndexJob records one indexing run
type IndexJob struct {
	ID               int64
	Status           string
	StartedAt        time.Time
	FinishedAt       *time.Time // Nullable - nil while running
	DocumentsTotal   int
	DocumentsIndexed int
	DocumentsFailed  int
	ErrorMessages    string // JSON array of per-document errors
}

// IndexStatus contains statistics about the index
type IndexStatus struct {
	DocumentsCount  int
	PendingCount    int
	ErrorCount      int
	ChunksCount     int
	EmbeddingsCount int
	IndexSizeMB     float64
	LastJob         *IndexJob // nil when no job has run yet
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexBuilt       bool
}
