package types

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentID uniquely identifies a document in the index.
type DocumentID string

// NewDocumentID generates a random document identifier.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.NewString())
}

// DocumentStatus represents the indexing state of a document.
type DocumentStatus string

const (
	// StatusPending marks a document that has been registered but whose
	// chunks and embeddings are not yet stored.
	StatusPending DocumentStatus = "pending"
	// StatusIndexed marks a fully indexed document.
	StatusIndexed DocumentStatus = "indexed"
	// StatusError marks a document whose last indexing attempt failed.
	StatusError DocumentStatus = "error"
)

// Document represents a file tracked by the index.
type Document struct {
	ID    DocumentID
	Path  string // Absolute path on disk
	Title string // Base name without extension
	Ext   string // Lowercased extension including the dot

	// File metadata captured at registration time, used to detect
	// on-disk changes between indexing runs.
	MTime time.Time
	Size  int64

	Status       DocumentStatus
	ErrorMessage string // Populated only when Status == StatusError

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDocument builds a pending document from a file path and its stat info.
func NewDocument(path string, mtime time.Time, size int64) *Document {
	ext := strings.ToLower(filepath.Ext(path))
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return &Document{
		ID:     NewDocumentID(),
		Path:   path,
		Title:  title,
		Ext:    ext,
		MTime:  mtime,
		Size:   size,
		Status: StatusPending,
	}
}

// ValidateStatus checks if the document status is a known value.
func (d *Document) ValidateStatus() error {
	switch d.Status {
	case StatusPending, StatusIndexed, StatusError:
		return nil
	default:
		return errors.New("invalid document status")
	}
}

// Validate performs comprehensive validation of the document.
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document ID is required")
	}
	if d.Path == "" {
		return errors.New("document path is required")
	}
	if !filepath.IsAbs(d.Path) {
		return errors.New("document path must be absolute")
	}
	return d.ValidateStatus()
}
