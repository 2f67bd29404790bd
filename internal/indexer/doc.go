// Package indexer coordinates the end-to-end indexing pipeline for document folders.
//
// The indexer orchestrates extraction, chunking, embedding, and storage,
// managing concurrency and per-document error isolation.
//
// # Basic Usage
//
//	idx := indexer.New(store, extractor, chunker, tokenizer, embedder, index, dataDir)
//
//	files, err := idx.ScanFolder("/path/to/docs")
//	pending, err := idx.AddFiles(ctx, files)
//	stats, err := idx.IndexPending(ctx, nil, func(current, total int, msg string) {
//	    log.Printf("indexing %d/%d: %s", current, total, msg)
//	})
//
//	fmt.Printf("Indexed %d documents in %v\n", stats.DocumentsIndexed, stats.Duration)
//
// # Indexing Pipeline
//
// IndexPending executes a multi-stage pipeline per pending document:
//
//  1. Integrity check: the file must match its registered mtime and size
//  2. Extract: PDF pages or plain text via the extractor
//  3. Chunk & dedupe: overlapping token windows, duplicates dropped
//  4. Store: chunk rows and FTS entries committed in one transaction
//  5. Embed: vectors generated in batches, inserted into the vector index
//
// Documents are processed concurrently with a bounded worker pool. A
// document that fails is marked errored and the run continues; its error
// lands in the index job record.
//
// # Incremental Indexing
//
// AddFiles compares modification time and size against the stored
// document row. Unchanged indexed files are skipped; changed files have
// their chunks and vectors dropped and are re-marked pending.
//
// # Single Writer
//
// AddFiles, IndexPending, and RemoveDocument share a non-blocking run
// lock: each can rebuild the vector index, so none may overlap. A call
// arriving while another holds the lock fails immediately with
// ErrIndexingInProgress rather than queueing.
//
// # Settings Pinning
//
// The first run pins the index kind, embedding model, and dimension in
// the settings table. Later runs with a different configuration fail
// instead of mixing incompatible vectors in one index.
package indexer
