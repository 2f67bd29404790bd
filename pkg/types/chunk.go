package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// ChunkID uniquely identifies a chunk in the index.
type ChunkID string

// NewChunkID generates a random chunk identifier.
func NewChunkID() ChunkID {
	return ChunkID(uuid.NewString())
}

// HashText computes the SHA-256 hex digest of a chunk's text, used for
// deduplication within a document.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TextChunk is the output of the chunker: a token window over source text
// before it is bound to a stored document.
type TextChunk struct {
	Text string
	Page *int // Nullable - plain-text sources carry no page numbers

	// Character offsets into the source text. EndOffset is exclusive.
	// Offsets are proportional estimates derived from token positions,
	// not exact character positions.
	StartOffset int
	EndOffset   int

	TextHash   string // SHA-256 hex digest of Text
	TokenCount int
}

// Chunk represents a stored section of a document for embedding and search.
type Chunk struct {
	ID         ChunkID
	DocumentID DocumentID

	Text string
	Page *int

	StartOffset int
	EndOffset   int

	TextHash string
}

// FromTextChunk binds a chunker output to a document, assigning a fresh ID.
func FromTextChunk(docID DocumentID, tc TextChunk) *Chunk {
	return &Chunk{
		ID:          NewChunkID(),
		DocumentID:  docID,
		Text:        tc.Text,
		Page:        tc.Page,
		StartOffset: tc.StartOffset,
		EndOffset:   tc.EndOffset,
		TextHash:    tc.TextHash,
	}
}

// ValidateText checks if the chunk text and offsets are valid.
func (c *Chunk) ValidateText() error {
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	if c.StartOffset < 0 || c.EndOffset < 0 {
		return errors.New("offsets must be non-negative")
	}
	if c.StartOffset > c.EndOffset {
		return errors.New("start offset must be before or equal to end offset")
	}
	return nil
}

// Validate performs comprehensive validation of the chunk.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID is required")
	}
	if c.DocumentID == "" {
		return errors.New("document ID is required")
	}
	if err := c.ValidateText(); err != nil {
		return err
	}
	if c.TextHash == "" {
		return errors.New("text hash must be computed")
	}
	return nil
}
