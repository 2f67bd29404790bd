package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = types.ErrNotFound
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Document operations

const documentColumns = `id, path, title, ext, mtime, size_bytes, status, error_message, created_at, updated_at`

// upsertDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	query := `
		INSERT INTO documents (id, path, title, ext, mtime, size_bytes, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			ext = excluded.ext,
			mtime = excluded.mtime,
			size_bytes = excluded.size_bytes,
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	var id string
	err := q.QueryRowContext(ctx, query,
		string(doc.ID), doc.Path, doc.Title, doc.Ext, doc.MTime, doc.Size,
		string(doc.Status), nullString(doc.ErrorMessage), now, now,
	).Scan(&id, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	// An existing path keeps its original ID.
	doc.ID = types.DocumentID(id)
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return s.upsertDocumentWithQuerier(ctx, s.querier(), doc)
}

func scanDocument(row interface{ Scan(...interface{}) error }) (*types.Document, error) {
	var doc types.Document
	var id, status string
	var mtime sql.NullTime
	var errorMessage sql.NullString
	err := row.Scan(
		&id, &doc.Path, &doc.Title, &doc.Ext, &mtime, &doc.Size,
		&status, &errorMessage, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ID = types.DocumentID(id)
	doc.Status = types.DocumentStatus(status)
	if mtime.Valid {
		doc.MTime = mtime.Time
	}
	if errorMessage.Valid {
		doc.ErrorMessage = errorMessage.String
	}
	return &doc, nil
}

// getDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, id types.DocumentID) (*types.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, string(id)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id types.DocumentID) (*types.Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), id)
}

// getDocumentByPathWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getDocumentByPathWithQuerier(ctx context.Context, q querier, path string) (*types.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE path = ?`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStorage) GetDocumentByPath(ctx context.Context, path string) (*types.Document, error) {
	return s.getDocumentByPathWithQuerier(ctx, s.querier(), path)
}

// listDocumentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listDocumentsWithQuerier(ctx context.Context, q querier, status string) ([]*types.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY path`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier(), "")
}

func (s *SQLiteStorage) ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier(), string(status))
}

// setDocumentStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) setDocumentStatusWithQuerier(ctx context.Context, q querier, id types.DocumentID, status types.DocumentStatus, errorMessage string) error {
	query := `UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, query, string(status), nullString(errorMessage), time.Now(), string(id))
	if err != nil {
		return fmt.Errorf("failed to set document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) SetDocumentStatus(ctx context.Context, id types.DocumentID, status types.DocumentStatus, errorMessage string) error {
	return s.setDocumentStatusWithQuerier(ctx, s.querier(), id, status, errorMessage)
}

// deleteDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteDocumentWithQuerier(ctx context.Context, q querier, id types.DocumentID) error {
	result, err := q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id types.DocumentID) error {
	return s.deleteDocumentWithQuerier(ctx, s.querier(), id)
}

// Chunk operations

const chunkColumns = `id, document_id, page, start_offset, end_offset, text, text_hash`

// insertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk, ftsText string) error {
	query := `
		INSERT INTO chunks (id, document_id, page, start_offset, end_offset, text, fts_text, text_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var page interface{}
	if chunk.Page != nil {
		page = *chunk.Page
	}
	_, err := q.ExecContext(ctx, query,
		string(chunk.ID), string(chunk.DocumentID), page,
		chunk.StartOffset, chunk.EndOffset, chunk.Text, ftsText, chunk.TextHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *types.Chunk, ftsText string) error {
	return s.insertChunkWithQuerier(ctx, s.querier(), chunk, ftsText)
}

func scanChunk(row interface{ Scan(...interface{}) error }) (*types.Chunk, error) {
	var chunk types.Chunk
	var id, docID string
	var page sql.NullInt64
	err := row.Scan(&id, &docID, &page, &chunk.StartOffset, &chunk.EndOffset, &chunk.Text, &chunk.TextHash)
	if err != nil {
		return nil, err
	}
	chunk.ID = types.ChunkID(id)
	chunk.DocumentID = types.DocumentID(docID)
	if page.Valid {
		p := int(page.Int64)
		chunk.Page = &p
	}
	return &chunk, nil
}

// getChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, id types.ChunkID) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`
	chunk, err := scanChunk(q.QueryRowContext(ctx, query, string(id)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, id types.ChunkID) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), id)
}

// listChunksByDocumentWithQuerier returns a document's chunks in reading
// order: by page, then by start offset.
func (s *SQLiteStorage) listChunksByDocumentWithQuerier(ctx context.Context, q querier, docID types.DocumentID) ([]*types.Chunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM chunks
		WHERE document_id = ?
		ORDER BY COALESCE(page, 0), start_offset
	`
	rows, err := q.QueryContext(ctx, query, string(docID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, docID types.DocumentID) ([]*types.Chunk, error) {
	return s.listChunksByDocumentWithQuerier(ctx, s.querier(), docID)
}

// listChunkIDsByDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunkIDsByDocumentWithQuerier(ctx context.Context, q querier, docID types.DocumentID) ([]types.ChunkID, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, string(docID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]types.ChunkID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ChunkID(id))
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) ListChunkIDsByDocument(ctx context.Context, docID types.DocumentID) ([]types.ChunkID, error) {
	return s.listChunkIDsByDocumentWithQuerier(ctx, s.querier(), docID)
}

// deleteChunksByDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksByDocumentWithQuerier(ctx context.Context, q querier, docID types.DocumentID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, string(docID))
	return err
}

func (s *SQLiteStorage) DeleteChunksByDocument(ctx context.Context, docID types.DocumentID) error {
	return s.deleteChunksByDocumentWithQuerier(ctx, s.querier(), docID)
}

// Embedding operations

// upsertEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *types.Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector_id, model_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector_id = excluded.vector_id,
			model_name = excluded.model_name
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		string(embedding.ChunkID), embedding.VectorID, embedding.ModelName, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *types.Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID types.ChunkID) (*types.Embedding, error) {
	query := `
		SELECT chunk_id, vector_id, model_name, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding types.Embedding
	var id string
	err := s.db.QueryRowContext(ctx, query, string(chunkID)).Scan(
		&id, &embedding.VectorID, &embedding.ModelName, &embedding.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	embedding.ChunkID = types.ChunkID(id)
	return &embedding, nil
}

// updateEmbeddingSlotsWithQuerier rewrites vector slot assignments after
// the vector index is rebuilt.
func (s *SQLiteStorage) updateEmbeddingSlotsWithQuerier(ctx context.Context, q querier, slots map[types.ChunkID]int64) error {
	for chunkID, slot := range slots {
		if _, err := q.ExecContext(ctx,
			`UPDATE embeddings SET vector_id = ? WHERE chunk_id = ?`, slot, string(chunkID)); err != nil {
			return fmt.Errorf("failed to update embedding slot: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) UpdateEmbeddingSlots(ctx context.Context, slots map[types.ChunkID]int64) error {
	return s.updateEmbeddingSlotsWithQuerier(ctx, s.querier(), slots)
}

// Search operations

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.querier(), query, limit)
}

// Index job operations

// createIndexJobWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createIndexJobWithQuerier(ctx context.Context, q querier, job *IndexJob) error {
	query := `
		INSERT INTO index_jobs (status, started_at, documents_total, documents_indexed, documents_failed, error_messages)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if job.Status == "" {
		job.Status = JobRunning
	}
	result, err := q.ExecContext(ctx, query,
		job.Status, now, job.DocumentsTotal, job.DocumentsIndexed, job.DocumentsFailed,
		nullString(job.ErrorMessages))
	if err != nil {
		return fmt.Errorf("failed to create index job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	job.ID = id
	job.StartedAt = now
	return nil
}

func (s *SQLiteStorage) CreateIndexJob(ctx context.Context, job *IndexJob) error {
	return s.createIndexJobWithQuerier(ctx, s.querier(), job)
}

// updateIndexJobWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateIndexJobWithQuerier(ctx context.Context, q querier, job *IndexJob) error {
	query := `
		UPDATE index_jobs
		SET status = ?, finished_at = ?, documents_total = ?, documents_indexed = ?,
		    documents_failed = ?, error_messages = ?
		WHERE id = ?
	`
	var finished interface{}
	if job.FinishedAt != nil {
		finished = *job.FinishedAt
	}
	_, err := q.ExecContext(ctx, query,
		job.Status, finished, job.DocumentsTotal, job.DocumentsIndexed,
		job.DocumentsFailed, nullString(job.ErrorMessages), job.ID)
	if err != nil {
		return fmt.Errorf("failed to update index job: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpdateIndexJob(ctx context.Context, job *IndexJob) error {
	return s.updateIndexJobWithQuerier(ctx, s.querier(), job)
}

// getLatestIndexJobWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getLatestIndexJobWithQuerier(ctx context.Context, q querier) (*IndexJob, error) {
	query := `
		SELECT id, status, started_at, finished_at, documents_total, documents_indexed, documents_failed, error_messages
		FROM index_jobs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`
	var job IndexJob
	var finished sql.NullTime
	var errorMessages sql.NullString
	err := q.QueryRowContext(ctx, query).Scan(
		&job.ID, &job.Status, &job.StartedAt, &finished,
		&job.DocumentsTotal, &job.DocumentsIndexed, &job.DocumentsFailed, &errorMessages)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	if errorMessages.Valid {
		job.ErrorMessages = errorMessages.String
	}
	return &job, nil
}

func (s *SQLiteStorage) GetLatestIndexJob(ctx context.Context) (*IndexJob, error) {
	return s.getLatestIndexJobWithQuerier(ctx, s.querier())
}

// Settings operations

// getSettingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getSettingWithQuerier(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (string, error) {
	return s.getSettingWithQuerier(ctx, s.querier(), key)
}

// setSettingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) setSettingWithQuerier(ctx context.Context, q querier, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query, key, value, time.Now())
	return err
}

func (s *SQLiteStorage) SetSetting(ctx context.Context, key, value string) error {
	return s.setSettingWithQuerier(ctx, s.querier(), key, value)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*IndexStatus, error) {
	status := &IndexStatus{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &status.DocumentsCount},
		{"SELECT COUNT(*) FROM documents WHERE status = 'pending'", &status.PendingCount},
		{"SELECT COUNT(*) FROM documents WHERE status = 'error'", &status.ErrorCount},
		{"SELECT COUNT(*) FROM chunks", &status.ChunksCount},
		{"SELECT COUNT(*) FROM embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	// Calculate database size
	var pageCount, pageSize int
	err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	job, err := s.GetLatestIndexJob(ctx)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	status.LastJob = job

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexBuilt:       true, // FTS index is created with migrations
	}

	return status, nil
}

// Transaction implementations

func (t *sqliteTx) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return t.storage.upsertDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, id types.DocumentID) (*types.Document, error) {
	return t.storage.getDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetDocumentByPath(ctx context.Context, path string) (*types.Document, error) {
	return t.storage.getDocumentByPathWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier(), "")
}

func (t *sqliteTx) ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier(), string(status))
}

func (t *sqliteTx) SetDocumentStatus(ctx context.Context, id types.DocumentID, status types.DocumentStatus, errorMessage string) error {
	return t.storage.setDocumentStatusWithQuerier(ctx, t.querier(), id, status, errorMessage)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, id types.DocumentID) error {
	return t.storage.deleteDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *types.Chunk, ftsText string) error {
	return t.storage.insertChunkWithQuerier(ctx, t.querier(), chunk, ftsText)
}

func (t *sqliteTx) GetChunk(ctx context.Context, id types.ChunkID) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListChunksByDocument(ctx context.Context, docID types.DocumentID) ([]*types.Chunk, error) {
	return t.storage.listChunksByDocumentWithQuerier(ctx, t.querier(), docID)
}

func (t *sqliteTx) ListChunkIDsByDocument(ctx context.Context, docID types.DocumentID) ([]types.ChunkID, error) {
	return t.storage.listChunkIDsByDocumentWithQuerier(ctx, t.querier(), docID)
}

func (t *sqliteTx) DeleteChunksByDocument(ctx context.Context, docID types.DocumentID) error {
	return t.storage.deleteChunksByDocumentWithQuerier(ctx, t.querier(), docID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *types.Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID types.ChunkID) (*types.Embedding, error) {
	return t.storage.GetEmbedding(ctx, chunkID)
}

func (t *sqliteTx) UpdateEmbeddingSlots(ctx context.Context, slots map[types.ChunkID]int64) error {
	return t.storage.updateEmbeddingSlotsWithQuerier(ctx, t.querier(), slots)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, t.querier(), query, limit)
}

func (t *sqliteTx) CreateIndexJob(ctx context.Context, job *IndexJob) error {
	return t.storage.createIndexJobWithQuerier(ctx, t.querier(), job)
}

func (t *sqliteTx) UpdateIndexJob(ctx context.Context, job *IndexJob) error {
	return t.storage.updateIndexJobWithQuerier(ctx, t.querier(), job)
}

func (t *sqliteTx) GetLatestIndexJob(ctx context.Context) (*IndexJob, error) {
	return t.storage.getLatestIndexJobWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) GetSetting(ctx context.Context, key string) (string, error) {
	return t.storage.getSettingWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) SetSetting(ctx context.Context, key, value string) error {
	return t.storage.setSettingWithQuerier(ctx, t.querier(), key, value)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return t.storage.GetStatus(ctx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

// nullString maps an empty string to NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
