// Package storage provides SQLite-based persistence for indexed document
// data.
//
// The storage layer manages:
//   - Document metadata and indexing status
//   - Text chunks with character offsets and page numbers
//   - Embedding metadata (vector slots and model names)
//   - The FTS5 full-text search index
//   - Indexing job history and key/value settings
//
// # Database Schema
//
// Tables:
//   - documents: File paths, mtimes, and indexing status
//   - chunks: Token-windowed text with original and FTS-preprocessed forms
//   - chunks_fts: Contentless FTS5 index over the preprocessed text
//   - embeddings: Chunk-to-vector-slot assignments
//   - index_jobs: One row per indexing run
//   - settings: Index configuration pinned at first run
//
// Deleting a document cascades to its chunks and embeddings; triggers keep
// the FTS index in sync.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.folderrag/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.UpsertDocument(ctx, doc)
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	for i, chunk := range chunks {
//	    if err := tx.InsertChunk(ctx, chunk, ftsTexts[i]); err != nil {
//	        return err
//	    }
//	}
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Modes
//
// The package compiles against modernc.org/sqlite by default (pure Go, no
// C compiler required). Building with the cgo_sqlite tag switches to
// github.com/mattn/go-sqlite3 for faster FTS5 queries.
package storage
