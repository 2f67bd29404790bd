package types

import "time"

// Embedding records the vector-index slot assigned to a chunk, along with
// the model that produced the vector. The vector data itself lives in the
// vector index files, not in storage.
type Embedding struct {
	ChunkID   ChunkID
	VectorID  int64 // Slot in the vector index
	ModelName string
	CreatedAt time.Time
}
