// Package vecindex provides an embedded vector index for semantic search
// over chunk embeddings, with exact (flat), graph-based (hnsw), and
// clustered (ivf) backends.
//
// # Store
//
// Store maps chunk IDs to vector slots and owns the backing index:
//
//	store, err := vecindex.NewStore(vecindex.KindFlat, 768)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := store.Insert(chunkID, vector); err != nil {
//	    log.Fatal(err)
//	}
//
//	matches, err := store.Search(queryVector, 10)
//
// Slots are assigned from a monotonic counter. Removal rebuilds the index
// from the retained vectors, so slots restart at zero after every removal;
// between removals they are dense.
//
// # Persistence
//
// Save writes two companion files: a binary vector file and a JSON mapping
// file. Load restores both and rebuilds the backend by re-inserting the
// vectors in slot order. A missing or inconsistent pair surfaces
// types.ErrCorruptedState.
//
// # Concurrency
//
// Store is safe for concurrent use. Searches take a read lock; inserts,
// removals, and loads take a write lock. The ivf backend trains its
// clustering during insert, so search never mutates index state. Rebuilds
// construct the new index off to the side and swap it in, so readers
// never observe a partially rebuilt index.
package vecindex
