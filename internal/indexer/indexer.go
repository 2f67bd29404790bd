package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localrag/folderrag-mcp/internal/chunker"
	"github.com/localrag/folderrag-mcp/internal/embedder"
	"github.com/localrag/folderrag-mcp/internal/extractor"
	"github.com/localrag/folderrag-mcp/internal/storage"
	"github.com/localrag/folderrag-mcp/internal/tokenizer"
	"github.com/localrag/folderrag-mcp/internal/vecindex"
	"github.com/localrag/folderrag-mcp/pkg/types"
)

// ErrIndexingInProgress is returned when a run or removal is refused
// because another one holds the run lock.
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Settings keys pinning the index configuration across runs. Once set,
// later runs must match or fail instead of mixing incompatible vectors.
const (
	settingIndexKind      = "index_kind"
	settingEmbeddingModel = "embedding_model"
	settingDimension      = "embedding_dimension"
)

// ProgressFunc receives indexing progress. current is monotone
// non-decreasing and reaches total when the run completes.
type ProgressFunc func(current, total int, message string)

// Indexer coordinates the pipeline: extract -> chunk -> store -> embed -> index
type Indexer struct {
	storage   storage.Storage
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	tokenizer *tokenizer.Tokenizer
	embedder  embedder.Embedder
	index     *vecindex.Store

	// dataDir holds the vector index companion files
	dataDir string

	workers int
	lock    RunLock
}

// Config contains per-run configuration for the indexer
type Config struct {
	Workers        int // Number of concurrent workers (default: runtime.NumCPU())
	EmbedBatchSize int // Texts per embedding batch (default: embedder.DefaultBatchSize)
}

// Statistics contains statistics about one indexing run
type Statistics struct {
	DocumentsTotal   int
	DocumentsIndexed int
	DocumentsFailed  int
	ChunksCreated    int
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance
func New(store storage.Storage, ext *extractor.Extractor, chk *chunker.Chunker, tok *tokenizer.Tokenizer, emb embedder.Embedder, index *vecindex.Store, dataDir string) *Indexer {
	return &Indexer{
		storage:   store,
		extractor: ext,
		chunker:   chk,
		tokenizer: tok,
		embedder:  emb,
		index:     index,
		dataDir:   dataDir,
		workers:   runtime.NumCPU(),
	}
}

// ScanFolder walks the folder recursively and returns the supported
// document files in sorted order. Hidden directories are skipped.
func (idx *Indexer) ScanFolder(folder string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var files []string
	err = filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != folder && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if extractor.Supported(strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// AddFiles registers files for indexing. New files become pending
// documents; files whose modification time or size changed are reset
// and re-marked pending; unchanged indexed files are left alone.
// Returns the number of documents now pending. Resetting a changed
// document rebuilds the vector index, so registration refuses to run
// concurrently with an indexing run.
func (idx *Indexer) AddFiles(ctx context.Context, paths []string) (int, error) {
	if !idx.lock.TryAcquire() {
		return 0, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	seen := make(map[string]bool, len(paths))
	pending := 0

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return pending, err
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(abs)
		if err != nil {
			return pending, fmt.Errorf("stat %s: %w", abs, err)
		}

		existing, err := idx.storage.GetDocumentByPath(ctx, abs)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			doc := types.NewDocument(abs, info.ModTime(), info.Size())
			if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
				return pending, fmt.Errorf("register %s: %w", abs, err)
			}
			pending++
		case err != nil:
			return pending, err
		default:
			if existing.Status == types.StatusIndexed &&
				existing.MTime.Equal(info.ModTime()) && existing.Size == info.Size() {
				continue
			}
			// Changed or previously failed: drop stale chunks and vectors,
			// then re-mark pending with the fresh metadata.
			if err := idx.resetDocument(ctx, existing.ID); err != nil {
				return pending, fmt.Errorf("reset %s: %w", abs, err)
			}
			existing.MTime = info.ModTime()
			existing.Size = info.Size()
			existing.Status = types.StatusPending
			existing.ErrorMessage = ""
			if err := idx.storage.UpsertDocument(ctx, existing); err != nil {
				return pending, fmt.Errorf("update %s: %w", abs, err)
			}
			pending++
		}
	}

	return pending, nil
}

// resetDocument removes a document's chunks from storage and the vector
// index, keeping the document row itself.
func (idx *Indexer) resetDocument(ctx context.Context, docID types.DocumentID) error {
	chunkIDs, err := idx.storage.ListChunkIDsByDocument(ctx, docID)
	if err != nil {
		return err
	}
	if len(chunkIDs) > 0 {
		if err := idx.index.Remove(chunkIDs...); err != nil {
			return err
		}
		if err := idx.storage.UpdateEmbeddingSlots(ctx, idx.index.Slots()); err != nil {
			return err
		}
	}
	return idx.storage.DeleteChunksByDocument(ctx, docID)
}

// IndexPending processes every pending document: extract, chunk, dedupe,
// persist, embed, and insert into the vector index. One document's
// failure marks it errored and the run continues. The vector index is
// saved at the end of the run. Refuses to run concurrently with itself
// or with RemoveDocument.
func (idx *Indexer) IndexPending(ctx context.Context, config *Config, progress ProgressFunc) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = idx.workers
	}
	batchSize := config.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = embedder.DefaultBatchSize
	}

	if err := idx.ensureSettings(ctx); err != nil {
		return nil, err
	}

	docs, err := idx.storage.ListDocumentsByStatus(ctx, types.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}

	startTime := time.Now()
	stats := &Statistics{
		DocumentsTotal: len(docs),
		ErrorMessages:  make([]string, 0),
	}

	job := &storage.IndexJob{
		Status:         storage.JobRunning,
		StartedAt:      startTime,
		DocumentsTotal: len(docs),
	}
	if err := idx.storage.CreateIndexJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create index job: %w", err)
	}

	var (
		indexed int32
		failed  int32
		chunks  int32
		done    int32
		mu      sync.Mutex // Protects stats.ErrorMessages
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			chunkCount, err := idx.indexDocument(gctx, doc, batchSize)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", doc.Path, err))
				mu.Unlock()
				if serr := idx.storage.SetDocumentStatus(gctx, doc.ID, types.StatusError, err.Error()); serr != nil {
					return serr
				}
			} else {
				atomic.AddInt32(&indexed, 1)
				atomic.AddInt32(&chunks, int32(chunkCount))
			}

			if progress != nil {
				progress(int(atomic.AddInt32(&done, 1)), len(docs), doc.Path)
			}
			return nil
		})
	}

	runErr := g.Wait()

	stats.DocumentsIndexed = int(indexed)
	stats.DocumentsFailed = int(failed)
	stats.ChunksCreated = int(chunks)
	stats.Duration = time.Since(startTime)

	// Persist whatever made it into the index even on a cancelled run
	if saveErr := idx.index.Save(idx.dataDir); saveErr != nil && runErr == nil {
		runErr = fmt.Errorf("save vector index: %w", saveErr)
	}

	idx.finishJob(job, stats, runErr)

	if runErr != nil {
		return stats, runErr
	}
	return stats, nil
}

// finishJob records the run outcome. A background context keeps the
// bookkeeping write alive when the run was cancelled.
func (idx *Indexer) finishJob(job *storage.IndexJob, stats *Statistics, runErr error) {
	now := time.Now()
	job.FinishedAt = &now
	job.DocumentsIndexed = stats.DocumentsIndexed
	job.DocumentsFailed = stats.DocumentsFailed
	if runErr != nil {
		job.Status = storage.JobFailed
	} else {
		job.Status = storage.JobCompleted
	}
	if msgs, err := json.Marshal(stats.ErrorMessages); err == nil {
		job.ErrorMessages = string(msgs)
	}
	_ = idx.storage.UpdateIndexJob(context.Background(), job)
}

// indexDocument runs the pipeline for a single document and returns the
// number of chunks created.
func (idx *Indexer) indexDocument(ctx context.Context, doc *types.Document, batchSize int) (int, error) {
	// The file must still look the way it did when it was registered
	info, err := os.Stat(doc.Path)
	if err != nil {
		return 0, err
	}
	if !info.ModTime().Equal(doc.MTime) || info.Size() != doc.Size {
		return 0, fmt.Errorf("%w: %s", types.ErrIntegrity, doc.Path)
	}

	content, err := idx.extractor.Extract(doc.Path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	var textChunks []types.TextChunk
	if content.Paged {
		textChunks = idx.chunker.ChunkPages(content.Pages)
	} else {
		textChunks = idx.chunker.ChunkText(content.Text())
	}
	textChunks = chunker.Deduplicate(textChunks)

	if len(textChunks) == 0 {
		return 0, idx.storage.SetDocumentStatus(ctx, doc.ID, types.StatusIndexed, "")
	}

	boundChunks := make([]*types.Chunk, len(textChunks))
	for i, tc := range textChunks {
		boundChunks[i] = types.FromTextChunk(doc.ID, tc)
	}

	// Persist chunks atomically per document
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, chunk := range boundChunks {
		ftsText := idx.tokenizer.TokenizeJoined(chunk.Text)
		if err := tx.InsertChunk(ctx, chunk, ftsText); err != nil {
			return 0, fmt.Errorf("store chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit chunks: %w", err)
	}

	// Embed in batches and load vectors into the index
	for start := 0; start < len(boundChunks); start += batchSize {
		end := start + batchSize
		if end > len(boundChunks) {
			end = len(boundChunks)
		}
		batch := boundChunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return 0, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Embeddings))
		}

		for i, emb := range resp.Embeddings {
			if err := idx.index.Insert(batch[i].ID, emb.Vector); err != nil {
				return 0, fmt.Errorf("index vector: %w", err)
			}
		}
	}

	// Record slot assignments for the new vectors
	slots := idx.index.Slots()
	for _, chunk := range boundChunks {
		slot, ok := slots[chunk.ID]
		if !ok {
			return 0, fmt.Errorf("chunk %s missing from vector index after insert", chunk.ID)
		}
		if err := idx.storage.UpsertEmbedding(ctx, &types.Embedding{
			ChunkID:   chunk.ID,
			VectorID:  slot,
			ModelName: idx.embedder.Model(),
		}); err != nil {
			return 0, fmt.Errorf("store embedding metadata: %w", err)
		}
	}

	if err := idx.storage.SetDocumentStatus(ctx, doc.ID, types.StatusIndexed, ""); err != nil {
		return 0, err
	}

	return len(boundChunks), nil
}

// RemoveDocument deletes a document and everything derived from it: its
// chunk rows, FTS entries, embedding metadata, and index vectors. The
// argument is a document path; an unmatched path is retried as an ID.
func (idx *Indexer) RemoveDocument(ctx context.Context, pathOrID string) error {
	if !idx.lock.TryAcquire() {
		return ErrIndexingInProgress
	}
	defer idx.lock.Release()

	doc, err := idx.storage.GetDocumentByPath(ctx, pathOrID)
	if errors.Is(err, storage.ErrNotFound) {
		doc, err = idx.storage.GetDocument(ctx, types.DocumentID(pathOrID))
	}
	if err != nil {
		return err
	}

	chunkIDs, err := idx.storage.ListChunkIDsByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}

	if err := idx.storage.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}

	if len(chunkIDs) > 0 {
		if err := idx.index.Remove(chunkIDs...); err != nil {
			return err
		}
		// The rebuild reassigned every surviving slot
		if err := idx.storage.UpdateEmbeddingSlots(ctx, idx.index.Slots()); err != nil {
			return err
		}
	}

	return idx.index.Save(idx.dataDir)
}

// ensureSettings pins the index kind, embedding model, and dimension on
// first use, and refuses to run against an index built with different
// settings.
func (idx *Indexer) ensureSettings(ctx context.Context) error {
	if idx.index.Dimension() != idx.embedder.Dimension() {
		return fmt.Errorf("%w: vector index dimension %d does not match embedder dimension %d",
			types.ErrConfiguration, idx.index.Dimension(), idx.embedder.Dimension())
	}

	pins := []struct {
		key   string
		value string
	}{
		{settingIndexKind, idx.index.Kind()},
		{settingEmbeddingModel, idx.embedder.Model()},
		{settingDimension, strconv.Itoa(idx.embedder.Dimension())},
	}

	for _, pin := range pins {
		current, err := idx.storage.GetSetting(ctx, pin.key)
		if errors.Is(err, storage.ErrNotFound) {
			if err := idx.storage.SetSetting(ctx, pin.key, pin.value); err != nil {
				return fmt.Errorf("pin %s: %w", pin.key, err)
			}
			continue
		}
		if err != nil {
			return err
		}
		if current != pin.value {
			return fmt.Errorf("%w: %s is pinned to %q but the current configuration uses %q",
				types.ErrConfiguration, pin.key, current, pin.value)
		}
	}

	return nil
}
