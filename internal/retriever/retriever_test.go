package retriever

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrag/folderrag-mcp/internal/embedder"
	"github.com/localrag/folderrag-mcp/internal/storage"
	"github.com/localrag/folderrag-mcp/internal/tokenizer"
	"github.com/localrag/folderrag-mcp/internal/vecindex"
	"github.com/localrag/folderrag-mcp/pkg/types"
)

const testDimension = 4

// mockEmbedder returns fixed vectors per text so similarity scores are
// predictable in tests.
type mockEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.calls++
	vec, ok := m.vectors[req.Text]
	if !ok {
		vec = []float32{1, 0, 0, 0}
	}
	return &embedder.Embedding{
		Vector:    vec,
		Dimension: testDimension,
		Provider:  "mock",
		Model:     "mock-model",
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   "mock",
		Model:      "mock-model",
	}, nil
}

func (m *mockEmbedder) Dimension() int   { return testDimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func setupTestRetriever(t *testing.T, emb embedder.Embedder) (*Retriever, storage.Storage, *vecindex.Store) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	index, err := vecindex.NewStore(vecindex.KindFlat, testDimension)
	require.NoError(t, err)

	return New(store, emb, index, tokenizer.New(nil)), store, index
}

// stubSegmenter segments known inputs from a fixed table, standing in for
// the morphological segmenter without loading its dictionary.
type stubSegmenter struct {
	segments map[string][]string
}

func (s stubSegmenter) Segment(text string) []string {
	if segs, ok := s.segments[text]; ok {
		return segs
	}
	return []string{text}
}

// seedChunk persists a document-bound chunk whose FTS text is its own text.
func seedChunk(t *testing.T, store storage.Storage, docID types.DocumentID, text string) types.ChunkID {
	t.Helper()
	chunk := &types.Chunk{
		ID:          types.NewChunkID(),
		DocumentID:  docID,
		Text:        text,
		StartOffset: 0,
		EndOffset:   len(text),
		TextHash:    types.HashText(text),
	}
	require.NoError(t, store.InsertChunk(context.Background(), chunk, strings.ToLower(text)))
	return chunk.ID
}

func seedDocument(t *testing.T, store storage.Storage, path string) types.DocumentID {
	t.Helper()
	doc := types.NewDocument(path, time.Now(), 100)
	require.NoError(t, store.UpsertDocument(context.Background(), doc))
	return doc.ID
}

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{name: "empty", scores: nil, want: nil},
		{name: "single score becomes one", scores: []float64{7.3}, want: []float64{1.0}},
		{name: "all equal become one", scores: []float64{2, 2, 2}, want: []float64{1, 1, 1}},
		{name: "spread maps to unit range", scores: []float64{10, 20, 30}, want: []float64{0, 0.5, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scored := make([]scoredChunk, len(tt.scores))
			for i, s := range tt.scores {
				scored[i] = scoredChunk{chunkID: types.ChunkID(rune('a' + i)), score: s}
			}
			normalizeScores(scored)
			for i, want := range tt.want {
				assert.InDelta(t, want, scored[i].score, 1e-9)
			}
		})
	}
}

func TestFuseScores(t *testing.T) {
	keyword := []scoredChunk{
		{chunkID: "a", score: 10},
		{chunkID: "b", score: 5},
	}
	semantic := []scoredChunk{
		{chunkID: "b", score: 0.9},
		{chunkID: "c", score: 0.3},
	}

	fused := fuseScores(keyword, semantic, 0.5, 0.5)
	require.Len(t, fused, 3)

	scores := make(map[types.ChunkID]float64)
	for _, f := range fused {
		scores[f.chunkID] = f.score
	}

	// a: keyword-normalized 1.0 * 0.5; b: 0*0.5 + 1.0*0.5; c: 0*0.5
	assert.InDelta(t, 0.5, scores["a"], 1e-9)
	assert.InDelta(t, 0.5, scores["b"], 1e-9)
	assert.InDelta(t, 0.0, scores["c"], 1e-9)

	// Sorted descending, ties broken by chunk ID
	assert.Equal(t, types.ChunkID("a"), fused[0].chunkID)
	assert.Equal(t, types.ChunkID("b"), fused[1].chunkID)
	assert.Equal(t, types.ChunkID("c"), fused[2].chunkID)
}

func TestFuseScoresWeighted(t *testing.T) {
	keyword := []scoredChunk{{chunkID: "a", score: 3}}
	semantic := []scoredChunk{{chunkID: "b", score: 0.8}}

	fused := fuseScores(keyword, semantic, 0.8, 0.2)
	require.Len(t, fused, 2)
	assert.Equal(t, types.ChunkID("a"), fused[0].chunkID)
	assert.InDelta(t, 0.8, fused[0].score, 1e-9)
	assert.InDelta(t, 0.2, fused[1].score, 1e-9)
}

func TestKeywordSearch(t *testing.T) {
	ret, store, _ := setupTestRetriever(t, nil)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/languages.txt")
	pythonChunk := seedChunk(t, store, docID, "python is a programming language for data work")
	seedChunk(t, store, docID, "javascript runs in the browser runtime")

	resp, err := ret.Search(ctx, SearchRequest{Query: "python", Mode: SearchModeKeyword, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	assert.Equal(t, pythonChunk, result.ChunkID)
	assert.Equal(t, 1, result.Rank)
	assert.Greater(t, result.Score, 0.0, "BM25 rank surfaces as abs()")
	assert.Equal(t, "/docs/languages.txt", result.Path)
	assert.Equal(t, "languages", result.Title)
	assert.Contains(t, result.Snippet, "python")
}

func TestKeywordSearchEmptyQuery(t *testing.T) {
	ret, _, _ := setupTestRetriever(t, nil)

	resp, err := ret.Search(context.Background(), SearchRequest{Query: "   ", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestKeywordSearchCJKQuery(t *testing.T) {
	// The index stores segmented text, so an unsegmented query must pass
	// through the same tokenizer to match.
	tok := tokenizer.New(stubSegmenter{segments: map[string][]string{
		"日本語の文章です": {"日本語", "の", "文章", "です"},
		"日本語の文章":   {"日本語", "の", "文章"},
	}})

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ret := New(store, nil, nil, tok)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/nihongo.txt")
	target := &types.Chunk{
		ID:         types.NewChunkID(),
		DocumentID: docID,
		Text:       "日本語の文章です",
		EndOffset:  len("日本語の文章です"),
		TextHash:   types.HashText("日本語の文章です"),
	}
	require.NoError(t, store.InsertChunk(ctx, target, tok.TokenizeJoined(target.Text)))
	seedChunk(t, store, docID, "english only filler")

	resp, err := ret.Search(ctx, SearchRequest{Query: "日本語の文章", Mode: SearchModeKeyword, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, target.ID, resp.Results[0].ChunkID)
}

func TestSemanticSearch(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"find python": {1, 0, 0, 0},
	}}
	ret, store, index := setupTestRetriever(t, emb)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/guide.txt")
	near := seedChunk(t, store, docID, "python deep dive")
	far := seedChunk(t, store, docID, "gardening tips")
	require.NoError(t, index.Insert(near, []float32{0.9, 0.1, 0, 0}))
	require.NoError(t, index.Insert(far, []float32{0, 0, 1, 0}))

	resp, err := ret.Search(ctx, SearchRequest{Query: "find python", Mode: SearchModeSemantic, Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, near, resp.Results[0].ChunkID)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestSemanticSearchRequiresEmbedder(t *testing.T) {
	ret, _, _ := setupTestRetriever(t, nil)

	_, err := ret.Search(context.Background(), SearchRequest{Query: "q", Mode: SearchModeSemantic})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestSemanticSearchWhitespaceQuery(t *testing.T) {
	emb := &mockEmbedder{}
	ret, store, index := setupTestRetriever(t, emb)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/any.txt")
	chunkID := seedChunk(t, store, docID, "some indexed text")
	require.NoError(t, index.Insert(chunkID, []float32{1, 0, 0, 0}))

	resp, err := ret.Search(ctx, SearchRequest{Query: "   ", Mode: SearchModeSemantic})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, emb.calls, "whitespace query must not reach the embedder")
}

func TestSemanticSearchEmptyIndex(t *testing.T) {
	ret, _, _ := setupTestRetriever(t, &mockEmbedder{})

	resp, err := ret.Search(context.Background(), SearchRequest{Query: "anything", Mode: SearchModeSemantic})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestHybridSearch(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"python": {1, 0, 0, 0},
	}}
	ret, store, index := setupTestRetriever(t, emb)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/languages.txt")
	both := seedChunk(t, store, docID, "python language overview")
	keywordOnly := seedChunk(t, store, docID, "python packaging appendix")
	semanticOnly := seedChunk(t, store, docID, "snake care handbook")

	require.NoError(t, index.Insert(both, []float32{1, 0, 0, 0}))
	require.NoError(t, index.Insert(keywordOnly, []float32{0, 0, 0, 1}))
	require.NoError(t, index.Insert(semanticOnly, []float32{0.9, 0.1, 0, 0}))

	resp, err := ret.Search(ctx, SearchRequest{Query: "python", Mode: SearchModeHybrid, Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	// The chunk matched by both legs must rank first
	assert.Equal(t, both, resp.Results[0].ChunkID)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
		assert.Equal(t, i+1, resp.Results[i].Rank)
	}
}

func TestHybridSearchLegLimits(t *testing.T) {
	// Keyword-only hybrid (nil embedder fails the semantic leg, which
	// hybrid tolerates), so KeywordLimit caps the candidate pool directly.
	ret, store, _ := setupTestRetriever(t, nil)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/limits.txt")
	seedChunk(t, store, docID, "python basics chapter")
	seedChunk(t, store, docID, "python tooling chapter")
	seedChunk(t, store, docID, "python deployment chapter")

	resp, err := ret.Search(ctx, SearchRequest{
		Query:        "python",
		Mode:         SearchModeHybrid,
		Limit:        10,
		KeywordLimit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.KeywordHits)

	full, err := ret.Search(ctx, SearchRequest{Query: "python", Mode: SearchModeHybrid, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, full.Results, 3)
}

func TestSearchUnknownMode(t *testing.T) {
	ret, _, _ := setupTestRetriever(t, nil)

	_, err := ret.Search(context.Background(), SearchRequest{Query: "q", Mode: "telepathy"})
	assert.ErrorContains(t, err, "unsupported search mode")
}

func TestSearchDefaults(t *testing.T) {
	req := SearchRequest{Query: "q"}
	ret, _, _ := setupTestRetriever(t, nil)
	require.NoError(t, ret.validateRequest(&req))

	assert.Equal(t, SearchModeHybrid, req.Mode)
	assert.Equal(t, 10, req.Limit)
	assert.Equal(t, DefaultKeywordWeight, req.KeywordWeight)
	assert.Equal(t, DefaultSemanticWeight, req.SemanticWeight)
	assert.Equal(t, 20, req.KeywordLimit, "legs over-fetch at twice the limit by default")
	assert.Equal(t, 20, req.SemanticLimit)

	capped := SearchRequest{Query: "q", Limit: 5000}
	require.NoError(t, ret.validateRequest(&capped))
	assert.Equal(t, 100, capped.Limit)
}

func TestSearchCache(t *testing.T) {
	ret, store, _ := setupTestRetriever(t, nil)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/cache.txt")
	seedChunk(t, store, docID, "cache invalidation is hard")

	req := SearchRequest{Query: "cache", Mode: SearchModeKeyword, UseCache: true}

	first, err := ret.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := ret.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	ret.InvalidateCache()
	third, err := ret.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestGetChunkContext(t *testing.T) {
	ret, store, _ := setupTestRetriever(t, nil)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/book.txt")
	ids := make([]types.ChunkID, 5)
	for i := range ids {
		chunk := &types.Chunk{
			ID:          types.NewChunkID(),
			DocumentID:  docID,
			Text:        strings.Repeat("x", 10),
			StartOffset: i * 10,
			EndOffset:   (i + 1) * 10,
			TextHash:    types.HashText(strings.Repeat("x", 10) + string(rune('a'+i))),
		}
		require.NoError(t, store.InsertChunk(ctx, chunk, "filler text"))
		ids[i] = chunk.ID
	}

	// Middle of the document: full window
	chunks, err := ret.GetChunkContext(ctx, ids[2], 1, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, ids[1], chunks[0].ID)
	assert.Equal(t, ids[2], chunks[1].ID)
	assert.Equal(t, ids[3], chunks[2].ID)

	// Clamped at the start
	chunks, err = ret.GetChunkContext(ctx, ids[0], 2, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, ids[0], chunks[0].ID)

	// Clamped at the end
	chunks, err = ret.GetChunkContext(ctx, ids[4], 1, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, ids[4], chunks[1].ID)

	// Unknown chunk
	_, err = ret.GetChunkContext(ctx, types.NewChunkID(), 1, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestFormatResultSnippet(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 30) + "needle in the haystack " + strings.Repeat("dolor sit ", 30)

	tests := []struct {
		name   string
		text   string
		query  string
		maxLen int
		check  func(t *testing.T, snippet string)
	}{
		{
			name:   "short text unchanged",
			text:   "tiny",
			query:  "tiny",
			maxLen: 100,
			check: func(t *testing.T, snippet string) {
				assert.Equal(t, "tiny", snippet)
			},
		},
		{
			name:   "match centered with both affixes",
			text:   long,
			query:  "needle",
			maxLen: 60,
			check: func(t *testing.T, snippet string) {
				assert.Contains(t, snippet, "needle")
				assert.True(t, strings.HasPrefix(snippet, "..."))
				assert.True(t, strings.HasSuffix(snippet, "..."))
			},
		},
		{
			name:   "no match falls back to start",
			text:   long,
			query:  "absent",
			maxLen: 40,
			check: func(t *testing.T, snippet string) {
				assert.True(t, strings.HasPrefix(snippet, "lorem"))
				assert.True(t, strings.HasSuffix(snippet, "..."))
			},
		},
		{
			name:   "match near start keeps leading text",
			text:   "alpha beta " + strings.Repeat("gamma ", 50),
			query:  "alpha",
			maxLen: 30,
			check: func(t *testing.T, snippet string) {
				assert.True(t, strings.HasPrefix(snippet, "alpha"))
				assert.True(t, strings.HasSuffix(snippet, "..."))
			},
		},
		{
			name:   "case insensitive match",
			text:   long,
			query:  "NEEDLE",
			maxLen: 60,
			check: func(t *testing.T, snippet string) {
				assert.Contains(t, snippet, "needle")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snippet := FormatResultSnippet(tt.text, tt.query, tt.maxLen)
			assert.LessOrEqual(t, len(snippet), tt.maxLen+6) // affixes on top of the window
			tt.check(t, snippet)
		})
	}
}

func TestResolveResultsSkipsMissingChunks(t *testing.T) {
	ret, store, _ := setupTestRetriever(t, nil)
	ctx := context.Background()

	docID := seedDocument(t, store, "/docs/real.txt")
	real := seedChunk(t, store, docID, "existing chunk text")

	scored := []scoredChunk{
		{chunkID: "ghost-chunk", score: 0.9},
		{chunkID: real, score: 0.5},
	}

	results, err := ret.resolveResults(ctx, scored, "existing", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, real, results[0].ChunkID)
	assert.Equal(t, 1, results[0].Rank, "ranks stay dense when chunks are skipped")
}
