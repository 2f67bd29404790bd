package types

// SearchResult represents a single search result with relevance information.
type SearchResult struct {
	// Identification
	ChunkID ChunkID
	Rank    int // Position in result set (1-based)

	// Score for the mode that produced the result. Keyword scores are
	// absolute BM25 values, semantic scores are cosine similarities, and
	// hybrid scores are weighted min-max normalized sums in [0, 1].
	Score float64

	// Metadata
	DocumentID DocumentID
	Path       string // Document path on disk
	Title      string
	Page       *int
	Text       string // Chunk text
	Snippet    string // Query-centered excerpt of Text
}

// Validate checks if the search result is valid.
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.DocumentID == "" {
		return ErrMissingDocumentInfo
	}
	if sr.Text == "" {
		return ErrEmptyText
	}
	return nil
}
