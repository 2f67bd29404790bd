// Package chunker divides extracted document text into overlapping token
// windows for embedding and search.
//
// # Basic Usage
//
//	c, err := chunker.New(tok, chunker.DefaultChunkSize, chunker.DefaultOverlap)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	chunks := c.ChunkText(text)
//	for _, chunk := range chunks {
//	    fmt.Printf("Chunk: %d tokens, offsets %d-%d\n",
//	        chunk.TokenCount, chunk.StartOffset, chunk.EndOffset)
//	}
//
// # Chunking Strategy
//
// Text is tokenized with the language-aware tokenizer and sliced into
// windows of at most ChunkSize tokens. Consecutive windows share Overlap
// tokens so that passages spanning a boundary remain searchable.
//
// Character offsets are proportional estimates: tokenization discards the
// original whitespace, so offsets are derived from token positions scaled
// by the average characters per token. Each chunk starts where the
// previous one ended, and the final chunk ends at the text length.
//
// # Content Hashing
//
// Each chunk carries a SHA-256 hex digest of its text:
//
//	chunk.TextHash // 64-char hex string
//
// Deduplicate uses the digest to drop repeated windows within a document,
// keeping the first occurrence in order. Highly repetitive documents can
// otherwise flood the index with identical chunks.
//
// # Paged Sources
//
// ChunkPages chunks each page independently and stamps the page number on
// every resulting chunk. Offsets are relative to the page text.
package chunker
