// Package retriever coordinates hybrid document search.
//
// A Retriever combines two retrieval paths over the same chunk corpus:
// BM25 full-text search from the storage layer and cosine similarity
// from the vector index. Hybrid mode runs both, min-max normalizes each
// result list independently, and fuses scores as a weighted sum keyed by
// chunk ID.
//
//	ret := retriever.New(store, emb, index, tok)
//	resp, err := ret.Search(ctx, retriever.SearchRequest{
//	    Query: "quarterly revenue",
//	    Mode:  retriever.SearchModeHybrid,
//	    Limit: 10,
//	})
//
// Keyword queries pass through the same tokenizer that preprocessed text
// into the full-text index, so CJK queries match the segmented form the
// index stores. Keyword search works without an embedder or vector index;
// semantic and hybrid modes need both. Results carry document metadata
// and a short snippet centered on the first matching query word.
//
// Responses can be cached in an LRU keyed by a hash of the request.
// InvalidateCache must run after any reindex or document removal so
// stale hits never reference deleted chunks.
package retriever
