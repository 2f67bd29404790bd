package chunker

import (
	"fmt"
	"strings"

	"github.com/localrag/folderrag-mcp/internal/extractor"
	"github.com/localrag/folderrag-mcp/internal/tokenizer"
	"github.com/localrag/folderrag-mcp/pkg/types"
)

const (
	// DefaultChunkSize is the default token window size
	DefaultChunkSize = 800

	// DefaultOverlap is the default number of tokens shared between
	// consecutive windows
	DefaultOverlap = 150
)

// Chunker slices tokenized text into overlapping windows
type Chunker struct {
	tok       *tokenizer.Tokenizer
	chunkSize int
	overlap   int
}

// New creates a Chunker. Overlap must be smaller than chunkSize or every
// window would restart at the same position.
func New(tok *tokenizer.Tokenizer, chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfiguration, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", types.ErrConfiguration, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", types.ErrConfiguration, overlap, chunkSize)
	}
	return &Chunker{tok: tok, chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkText splits text into overlapping token windows. Empty or
// whitespace-only input yields no chunks.
func (c *Chunker) ChunkText(text string) []types.TextChunk {
	tokens := c.tok.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	// Offsets are proportional estimates: the average characters per
	// token maps token positions back onto the source text.
	charsPerToken := float64(len(text)) / float64(len(tokens))

	var chunks []types.TextChunk
	start := 0
	prevEndOffset := 0
	for start < len(tokens) {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := strings.Join(tokens[start:end], " ")
		endOffset := int(float64(end) * charsPerToken)
		if end == len(tokens) || endOffset > len(text) {
			endOffset = len(text)
		}
		if endOffset < prevEndOffset {
			endOffset = prevEndOffset
		}

		chunks = append(chunks, types.TextChunk{
			Text:        window,
			StartOffset: prevEndOffset,
			EndOffset:   endOffset,
			TextHash:    types.HashText(window),
			TokenCount:  end - start,
		})
		prevEndOffset = endOffset

		next := end - c.overlap
		if next <= start {
			// Guard against non-advancing windows on short tails.
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkPages chunks each extracted page independently, stamping the page
// number on every chunk. Offsets are relative to the page text.
func (c *Chunker) ChunkPages(pages []extractor.Page) []types.TextChunk {
	var chunks []types.TextChunk
	for _, page := range pages {
		number := page.Number
		for _, chunk := range c.ChunkText(page.Text) {
			chunk.Page = &number
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Deduplicate drops chunks whose text hash was already seen, keeping the
// first occurrence in order.
func Deduplicate(chunks []types.TextChunk) []types.TextChunk {
	if len(chunks) == 0 {
		return chunks
	}

	seen := make(map[string]struct{}, len(chunks))
	deduped := make([]types.TextChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.TextHash]; ok {
			continue
		}
		seen[chunk.TextHash] = struct{}{}
		deduped = append(deduped, chunk)
	}
	return deduped
}
