package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/localrag/folderrag-mcp/internal/embedder"
	"github.com/localrag/folderrag-mcp/internal/storage"
	"github.com/localrag/folderrag-mcp/internal/tokenizer"
	"github.com/localrag/folderrag-mcp/internal/vecindex"
	"github.com/localrag/folderrag-mcp/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Keyword + semantic with score fusion
	SearchModeSemantic SearchMode = "semantic" // Vector similarity only
	SearchModeKeyword  SearchMode = "keyword"  // BM25 text search only
)

// Default fusion weights when the caller does not supply any
const (
	DefaultKeywordWeight  = 0.5
	DefaultSemanticWeight = 0.5

	// SnippetMaxLen bounds the snippet attached to each result
	SnippetMaxLen = 200
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query          string
	Limit          int
	Mode           SearchMode
	KeywordWeight  float64
	SemanticWeight float64

	// Per-leg over-fetch limits for hybrid mode. Zero means Limit*2,
	// so fusion has candidates beyond the cut line.
	KeywordLimit  int
	SemanticLimit int

	UseCache bool // Whether to use query cache
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	SearchMode   SearchMode
	Duration     time.Duration
	CacheHit     bool
	KeywordHits  int
	SemanticHits int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Retriever coordinates search operations across keyword and vector search
type Retriever struct {
	storage  storage.Storage
	embedder embedder.Embedder
	index    *vecindex.Store
	tok      *tokenizer.Tokenizer
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// New creates a Retriever. The tokenizer must be the same one that fed
// the full-text index so queries segment the way indexed text did. The
// embedder and index may be nil, which disables semantic search; keyword
// search works against storage alone.
func New(store storage.Storage, emb embedder.Embedder, index *vecindex.Store, tok *tokenizer.Tokenizer) *Retriever {
	// Create LRU cache with 1000 entry limit
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Retriever{
		storage:  store,
		embedder: emb,
		index:    index,
		tok:      tok,
		cache:    cache,
	}
}

// Search performs a search based on the request parameters
func (r *Retriever) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := r.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	// Check cache if enabled
	if req.UseCache {
		cached, err := r.checkCache(req)
		if err == nil && cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeHybrid:
		response, err = r.hybridSearch(ctx, req)
	case SearchModeSemantic:
		response, err = r.semanticSearch(ctx, req)
	case SearchModeKeyword:
		response, err = r.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}

	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		r.storeInCache(req, response)
	}

	return response, nil
}

// scoredChunk is a chunk with its fused or raw relevance score
type scoredChunk struct {
	chunkID types.ChunkID
	score   float64
}

// keywordSearch performs only BM25 text search. FTS5 rank is negative
// (lower is better); scores surface as abs(rank) so higher is better.
func (r *Retriever) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	scored, err := r.keywordCandidates(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}

	results, err := r.resolveResults(ctx, scored, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		KeywordHits:  len(scored),
	}, nil
}

// semanticSearch performs only vector similarity search
func (r *Retriever) semanticSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	scored, err := r.semanticCandidates(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}

	results, err := r.resolveResults(ctx, scored, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		SemanticHits: len(scored),
	}, nil
}

// hybridSearch runs keyword and semantic search concurrently, min-max
// normalizes each result list independently, and fuses scores with the
// requested weights. One leg failing is tolerated; both failing is an error.
func (r *Retriever) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	type legResult struct {
		scored []scoredChunk
		err    error
	}

	keywordChan := make(chan legResult, 1)
	semanticChan := make(chan legResult, 1)

	go func() {
		scored, err := r.keywordCandidates(ctx, req.Query, req.KeywordLimit)
		keywordChan <- legResult{scored: scored, err: err}
	}()
	go func() {
		scored, err := r.semanticCandidates(ctx, req.Query, req.SemanticLimit)
		semanticChan <- legResult{scored: scored, err: err}
	}()

	var keywordRes, semanticRes legResult
	for i := 0; i < 2; i++ {
		select {
		case keywordRes = <-keywordChan:
		case semanticRes = <-semanticChan:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if keywordRes.err != nil && semanticRes.err != nil {
		return nil, fmt.Errorf("both searches failed: keyword=%w, semantic=%v", keywordRes.err, semanticRes.err)
	}

	fused := fuseScores(keywordRes.scored, semanticRes.scored, req.KeywordWeight, req.SemanticWeight)

	results, err := r.resolveResults(ctx, fused, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		KeywordHits:  len(keywordRes.scored),
		SemanticHits: len(semanticRes.scored),
	}, nil
}

// keywordCandidates runs the FTS query. An empty query yields no hits.
// The query passes through the same tokenizer that preprocessed indexed
// text, so CJK queries match the segmented form stored in the index.
func (r *Retriever) keywordCandidates(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if r.tok != nil {
		query = r.tok.TokenizeJoined(query)
	}

	textResults, err := r.storage.SearchText(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	scored := make([]scoredChunk, len(textResults))
	for i, tr := range textResults {
		scored[i] = scoredChunk{
			chunkID: tr.ChunkID,
			score:   math.Abs(tr.BM25Score),
		}
	}
	return scored, nil
}

// semanticCandidates embeds the query once and searches the vector index.
// An unconfigured embedder or index is a configuration error; an empty
// query or empty index yields no hits without touching the embedder.
func (r *Retriever) semanticCandidates(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if r.embedder == nil || r.index == nil {
		return nil, fmt.Errorf("%w: semantic search requires an embedder and a vector index", types.ErrConfiguration)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if r.index.Size() == 0 {
		return nil, nil
	}

	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Search(emb.Vector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	scored := make([]scoredChunk, len(matches))
	for i, m := range matches {
		scored[i] = scoredChunk{chunkID: m.ChunkID, score: m.Score}
	}
	return scored, nil
}

// normalizeScores applies min-max normalization in place. Empty input
// stays empty; a single score and all-equal scores map to 1.0 so a lone
// hit is never zeroed out.
func normalizeScores(scored []scoredChunk) {
	if len(scored) == 0 {
		return
	}

	minScore, maxScore := scored[0].score, scored[0].score
	for _, s := range scored[1:] {
		if s.score < minScore {
			minScore = s.score
		}
		if s.score > maxScore {
			maxScore = s.score
		}
	}

	if maxScore == minScore {
		for i := range scored {
			scored[i].score = 1.0
		}
		return
	}

	span := maxScore - minScore
	for i := range scored {
		scored[i].score = (scored[i].score - minScore) / span
	}
}

// fuseScores normalizes each list independently, then combines them as a
// weighted sum keyed by chunk ID, sorted by descending fused score.
func fuseScores(keyword, semantic []scoredChunk, keywordWeight, semanticWeight float64) []scoredChunk {
	normalizeScores(keyword)
	normalizeScores(semantic)

	scores := make(map[types.ChunkID]float64, len(keyword)+len(semantic))
	for _, s := range keyword {
		scores[s.chunkID] += keywordWeight * s.score
	}
	for _, s := range semantic {
		scores[s.chunkID] += semanticWeight * s.score
	}

	fused := make([]scoredChunk, 0, len(scores))
	for chunkID, score := range scores {
		fused = append(fused, scoredChunk{chunkID: chunkID, score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].chunkID < fused[j].chunkID
	})

	return fused
}

// resolveResults loads chunk and document data for the top candidates.
// Chunks that no longer resolve are skipped; ranks stay dense over the
// returned results.
func (r *Retriever) resolveResults(ctx context.Context, scored []scoredChunk, query string, limit int) ([]types.SearchResult, error) {
	if limit > len(scored) {
		limit = len(scored)
	}

	results := make([]types.SearchResult, 0, limit)

	for i := 0; len(results) < limit && i < len(scored); i++ {
		sc := scored[i]

		chunk, err := r.storage.GetChunk(ctx, sc.chunkID)
		if err != nil {
			continue // Skip chunks that can't be loaded
		}

		doc, err := r.storage.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			continue
		}

		results = append(results, types.SearchResult{
			ChunkID:    chunk.ID,
			Rank:       len(results) + 1,
			Score:      sc.score,
			DocumentID: doc.ID,
			Path:       doc.Path,
			Title:      doc.Title,
			Page:       chunk.Page,
			Text:       chunk.Text,
			Snippet:    FormatResultSnippet(chunk.Text, query, SnippetMaxLen),
		})
	}

	return results, nil
}

// GetChunkContext returns the chunk together with up to before preceding
// and after following chunks of the same document, in reading order. The
// window clamps to the document bounds.
func (r *Retriever) GetChunkContext(ctx context.Context, chunkID types.ChunkID, before, after int) ([]*types.Chunk, error) {
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}

	chunk, err := r.storage.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	chunks, err := r.storage.ListChunksByDocument(ctx, chunk.DocumentID)
	if err != nil {
		return nil, err
	}

	pos := -1
	for i, c := range chunks {
		if c.ID == chunkID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("chunk %s missing from document listing: %w", chunkID, types.ErrNotFound)
	}

	start := pos - before
	if start < 0 {
		start = 0
	}
	end := pos + after + 1
	if end > len(chunks) {
		end = len(chunks)
	}

	return chunks[start:end], nil
}

// FormatResultSnippet extracts a snippet of at most maxLen characters,
// centered on the first query word found in the text. When no query word
// matches, the snippet starts at the beginning. Truncated edges get "..."
// affixes.
func FormatResultSnippet(text, query string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	lower := strings.ToLower(text)
	matchPos := 0
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if idx := strings.Index(lower, word); idx >= 0 {
			matchPos = idx
			break
		}
	}

	start := matchPos - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	// Avoid splitting a multi-byte rune at either edge
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// validateRequest ensures search request is valid
func (r *Retriever) validateRequest(req *SearchRequest) error {
	if req.Limit <= 0 {
		req.Limit = 10 // Default limit
	}
	if req.Limit > 100 {
		req.Limit = 100 // Max limit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid // Default mode
	}

	if req.KeywordWeight == 0 && req.SemanticWeight == 0 {
		req.KeywordWeight = DefaultKeywordWeight
		req.SemanticWeight = DefaultSemanticWeight
	}

	if req.KeywordLimit <= 0 {
		req.KeywordLimit = req.Limit * 2
	}
	if req.SemanticLimit <= 0 {
		req.SemanticLimit = req.Limit * 2
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = 1 * time.Hour // Default TTL
	}

	return nil
}

// checkCache looks up cached search results
func (r *Retriever) checkCache(req SearchRequest) (*SearchResponse, error) {
	hash := computeQueryHash(req)
	now := time.Now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(hash)

	if !found {
		r.cacheMu.RUnlock()
		return nil, fmt.Errorf("cache miss")
	}

	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(hash)
		r.cacheMu.Unlock()
		return nil, fmt.Errorf("cache expired")
	}

	// Return a deep copy while still holding the read lock so the entry
	// cannot change mid-copy
	response := copySearchResponse(entry.response)
	r.cacheMu.RUnlock()

	return response, nil
}

// storeInCache saves search results to cache
func (r *Retriever) storeInCache(req SearchRequest, response *SearchResponse) {
	hash := computeQueryHash(req)

	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	r.cacheMu.Lock()
	r.cache.Add(hash, entry)
	r.cacheMu.Unlock()
}

// InvalidateCache drops all cached queries. Called after any reindex or
// removal, since stale hits would reference deleted chunks.
func (r *Retriever) InvalidateCache() {
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		SearchMode:   src.SearchMode,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		KeywordHits:  src.KeywordHits,
		SemanticHits: src.SemanticHits,
		Results:      make([]types.SearchResult, len(src.Results)),
	}

	for i, result := range src.Results {
		dst.Results[i] = result
		if result.Page != nil {
			page := *result.Page
			dst.Results[i].Page = &page
		}
	}

	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.Limit))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%.4f:%.4f", req.KeywordWeight, req.SemanticWeight))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d:%d", req.KeywordLimit, req.SemanticLimit))

	return sha256.Sum256([]byte(data.String()))
}
