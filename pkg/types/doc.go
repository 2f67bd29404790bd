// Package types provides shared type definitions for the FolderRAG MCP server.
//
// This package defines domain types used across multiple components of
// FolderRAG, including documents, chunks, embeddings, and search results.
//
// # Core Types
//
// Document represents a file tracked by the index:
//
//	doc := &types.Document{
//	    ID:     types.NewDocumentID(),
//	    Path:   "/docs/guide.pdf",
//	    Ext:    ".pdf",
//	    Status: types.StatusPending,
//	}
//
// Chunk represents a token-windowed section of a document for embedding
// and search:
//
//	chunk := &types.Chunk{
//	    ID:          types.NewChunkID(),
//	    DocumentID:  doc.ID,
//	    Text:        passage,
//	    StartOffset: 0,
//	    EndOffset:   len(passage),
//	}
//
// # Validation
//
// Domain types implement validation methods to ensure data integrity:
//
//	if err := chunk.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Search Results
//
// SearchResult combines chunk content with relevance scoring:
//
//	result := &types.SearchResult{
//	    ChunkID: chunk.ID,
//	    Rank:    1,
//	    Score:   0.92,
//	}
//
// Scores produced by hybrid search are normalized to [0, 1] range, with
// higher values indicating better matches.
package types
