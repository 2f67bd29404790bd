package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrag/folderrag-mcp/internal/chunker"
	"github.com/localrag/folderrag-mcp/internal/embedder"
	"github.com/localrag/folderrag-mcp/internal/extractor"
	"github.com/localrag/folderrag-mcp/internal/storage"
	"github.com/localrag/folderrag-mcp/internal/tokenizer"
	"github.com/localrag/folderrag-mcp/internal/vecindex"
	"github.com/localrag/folderrag-mcp/pkg/types"
)

func newTestIndexer(t *testing.T) (*Indexer, storage.Storage, *vecindex.Store, string) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	tok := tokenizer.New(nil)
	chk, err := chunker.New(tok, 50, 10)
	require.NoError(t, err)

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	index, err := vecindex.NewStore(vecindex.KindFlat, embedder.LocalDimension)
	require.NoError(t, err)

	dataDir := t.TempDir()
	idx := New(store, extractor.New(), chk, tok, emb, index, dataDir)
	return idx, store, index, dataDir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanFolder(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", "plain text")
	md := writeFile(t, dir, "sub/readme.md", "# heading")
	pdf := writeFile(t, dir, "report.pdf", "not really a pdf")
	writeFile(t, dir, "data.csv", "a,b,c")
	writeFile(t, dir, ".hidden/secret.txt", "skipped")

	idx, _, _, _ := newTestIndexer(t)
	files, err := idx.ScanFolder(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{txt, pdf, md}, files, "sorted, supported extensions only")
}

func TestScanFolderErrors(t *testing.T) {
	idx, _, _, _ := newTestIndexer(t)

	_, err := idx.ScanFolder(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := writeFile(t, t.TempDir(), "file.txt", "x")
	_, err = idx.ScanFolder(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestAddFilesRegistersPending(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.txt", "alpha beta gamma")
	two := writeFile(t, dir, "two.txt", "delta epsilon")

	idx, store, _, _ := newTestIndexer(t)
	ctx := context.Background()

	pending, err := idx.AddFiles(ctx, []string{one, two, one})
	require.NoError(t, err)
	assert.Equal(t, 2, pending, "duplicate paths count once")

	docs, err := store.ListDocumentsByStatus(ctx, types.StatusPending)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestAddFilesSkipsUnchangedIndexed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stable.txt", strings.Repeat("steady words ", 20))

	idx, store, _, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.AddFiles(ctx, []string{path})
	require.NoError(t, err)
	_, err = idx.IndexPending(ctx, nil, nil)
	require.NoError(t, err)

	pending, err := idx.AddFiles(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	// Touching the mtime forces a re-index
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	pending, err = idx.AddFiles(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	doc, err := store.GetDocumentByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, doc.Status)

	// The stale chunks were dropped along with the re-mark
	chunks, err := store.ListChunkIDsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIndexPendingEndToEnd(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.txt", strings.Repeat("searchable content here ", 30))
	two := writeFile(t, dir, "two.md", strings.Repeat("markdown material ", 30))
	empty := writeFile(t, dir, "empty.txt", "   ")

	idx, store, index, dataDir := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.AddFiles(ctx, []string{one, two, empty})
	require.NoError(t, err)

	var progressCalls []int
	stats, err := idx.IndexPending(ctx, nil, func(current, total int, msg string) {
		assert.Equal(t, 3, total)
		progressCalls = append(progressCalls, current)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.DocumentsTotal)
	assert.Equal(t, 3, stats.DocumentsIndexed)
	assert.Equal(t, 0, stats.DocumentsFailed)
	assert.Greater(t, stats.ChunksCreated, 0)
	assert.Empty(t, stats.ErrorMessages)

	// Progress reached the total
	require.NotEmpty(t, progressCalls)
	assert.Equal(t, 3, progressCalls[len(progressCalls)-1])

	// Every document is indexed, including the empty one
	docs, err := store.ListDocumentsByStatus(ctx, types.StatusIndexed)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	// Vectors landed in the index and slot metadata matches
	assert.Equal(t, stats.ChunksCreated, index.Size())
	for chunkID, slot := range index.Slots() {
		embRow, err := store.GetEmbedding(ctx, chunkID)
		require.NoError(t, err)
		assert.Equal(t, slot, embRow.VectorID)
	}

	// The index was saved to disk
	_, err = os.Stat(filepath.Join(dataDir, "vectors.bin"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataDir, "mappings.json"))
	assert.NoError(t, err)

	// The job record reflects the run
	job, err := store.GetLatestIndexJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.JobCompleted, job.Status)
	assert.Equal(t, 3, job.DocumentsTotal)
	assert.Equal(t, 3, job.DocumentsIndexed)
	require.NotNil(t, job.FinishedAt)
}

func TestIndexPendingFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", strings.Repeat("fine content ", 20))
	doomed := writeFile(t, dir, "doomed.txt", "this file will vanish")

	idx, store, _, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.AddFiles(ctx, []string{good, doomed})
	require.NoError(t, err)

	require.NoError(t, os.Remove(doomed))

	stats, err := idx.IndexPending(ctx, nil, nil)
	require.NoError(t, err, "one failing document must not fail the run")

	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 1, stats.DocumentsFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "doomed.txt")

	doc, err := store.GetDocumentByPath(ctx, doomed)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, doc.Status)
	assert.NotEmpty(t, doc.ErrorMessage)

	job, err := store.GetLatestIndexJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, job.DocumentsFailed)

	var messages []string
	require.NoError(t, json.Unmarshal([]byte(job.ErrorMessages), &messages))
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "doomed.txt")
}

func TestIndexPendingIntegrityCheck(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shifty.txt", "original content")

	idx, store, _, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.AddFiles(ctx, []string{path})
	require.NoError(t, err)

	// The file changes between registration and indexing
	future := time.Now().Add(5 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	stats, err := idx.IndexPending(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsFailed)

	doc, err := store.GetDocumentByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "file changed during indexing")
}

func TestRunLockMutualExclusion(t *testing.T) {
	idx, _, _, _ := newTestIndexer(t)
	ctx := context.Background()

	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.IndexPending(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	err = idx.RemoveDocument(ctx, "/any/path")
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	// Registration can reset documents, which rebuilds the index, so it
	// is excluded by the same lock.
	_, err = idx.AddFiles(ctx, nil)
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	idx.lock.Release()
	_, err = idx.AddFiles(ctx, nil)
	assert.NoError(t, err)
	require.True(t, idx.lock.TryAcquire(), "AddFiles releases the lock on return")
}

func TestRunLock(t *testing.T) {
	var lock RunLock
	assert.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}

func TestRemoveDocument(t *testing.T) {
	dir := t.TempDir()
	keep := writeFile(t, dir, "keep.txt", strings.Repeat("kept words ", 30))
	drop := writeFile(t, dir, "drop.txt", strings.Repeat("dropped words ", 30))

	idx, store, index, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.AddFiles(ctx, []string{keep, drop})
	require.NoError(t, err)
	_, err = idx.IndexPending(ctx, nil, nil)
	require.NoError(t, err)

	keptDoc, err := store.GetDocumentByPath(ctx, keep)
	require.NoError(t, err)
	keptChunks, err := store.ListChunkIDsByDocument(ctx, keptDoc.ID)
	require.NoError(t, err)

	sizeBefore := index.Size()
	require.NoError(t, idx.RemoveDocument(ctx, drop))

	_, err = store.GetDocumentByPath(ctx, drop)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Only the kept document's vectors remain, slots resynced
	assert.Equal(t, len(keptChunks), index.Size())
	assert.Less(t, index.Size(), sizeBefore)
	for chunkID, slot := range index.Slots() {
		embRow, err := store.GetEmbedding(ctx, chunkID)
		require.NoError(t, err)
		assert.Equal(t, slot, embRow.VectorID)
	}

	// Unknown documents surface not-found
	err = idx.RemoveDocument(ctx, "/no/such/file.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettingsPinning(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "pin these settings down")

	idx, store, _, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.AddFiles(ctx, []string{path})
	require.NoError(t, err)
	_, err = idx.IndexPending(ctx, nil, nil)
	require.NoError(t, err)

	kind, err := store.GetSetting(ctx, settingIndexKind)
	require.NoError(t, err)
	assert.Equal(t, vecindex.KindFlat, kind)

	model, err := store.GetSetting(ctx, settingEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, embedder.DefaultLocalModel, model)

	// A later run against different pinned settings is refused
	require.NoError(t, store.SetSetting(ctx, settingEmbeddingModel, "some-other-model"))
	_, err = idx.IndexPending(ctx, nil, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestDimensionMismatch(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	tok := tokenizer.New(nil)
	chk, err := chunker.New(tok, 50, 10)
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	// Index dimension disagrees with the embedder
	index, err := vecindex.NewStore(vecindex.KindFlat, 8)
	require.NoError(t, err)

	idx := New(store, extractor.New(), chk, tok, emb, index, t.TempDir())
	_, err = idx.IndexPending(context.Background(), nil, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
