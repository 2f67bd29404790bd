// Package embedder generates vector embeddings for document chunks.
//
// The embedder supports multiple providers (OpenAI-compatible APIs,
// Ollama, deterministic local) and provides batching, caching, and
// retry handling.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	// Generate single embedding
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: chunk.Text,
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Batch Processing
//
// For efficiency, use batch processing:
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
//	for i, embedding := range resp.Embeddings {
//	    // Store embedding for chunk i
//	}
//
// OpenAI-compatible endpoints embed the whole batch in one call;
// Ollama has no batch endpoint, so batches loop over single requests.
//
// # Provider Selection
//
// The embedder selects a provider based on environment variables:
//
//  1. If FOLDERRAG_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if OPENAI_API_KEY is set → use OpenAI
//  3. Else if OLLAMA_HOST is set → use Ollama
//  4. Else → fallback to local provider (offline mode)
//
// OPENAI_BASE_URL points the openai provider at any server exposing a
// compatible /embeddings endpoint.
//
// # Caching
//
// Each provider shares an in-memory LRU cache keyed by the SHA-256
// hash of the input text. Get returns a deep copy so callers cannot
// mutate cached vectors.
//
// # Error Handling
//
// Transient HTTP failures are retried with exponential backoff; after
// MaxRetries the error wraps ErrProviderFailed:
//
//	resp, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // API temporarily unavailable, retry later
//	}
//
// The local provider never fails and is deterministic: identical text
// always yields the identical 384-dimension vector. It exists for
// offline use and tests, not for retrieval quality.
package embedder
