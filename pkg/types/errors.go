package types

import "errors"

// Sentinel errors shared across components. Callers match them with
// errors.Is after unwrapping.
var (
	// ErrNotFound indicates a requested document, chunk, or embedding
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates invalid configuration, such as a chunk
	// overlap that is not smaller than the chunk size.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedFormat indicates a file extension no extractor
	// handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrIntegrity indicates an on-disk file changed while it was being
	// indexed.
	ErrIntegrity = errors.New("file changed during indexing")

	// ErrCorruptedState indicates persisted vector index files are
	// missing, truncated, or inconsistent with each other.
	ErrCorruptedState = errors.New("corrupted index state")
)

// Validation errors for search results.
var (
	ErrInvalidChunkID      = errors.New("invalid chunk ID")
	ErrInvalidRank         = errors.New("rank must be >= 1")
	ErrMissingDocumentInfo = errors.New("document info is required")
	ErrEmptyText           = errors.New("text cannot be empty")
)
