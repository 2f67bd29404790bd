//go:build cgo_sqlite
// +build cgo_sqlite

package storage

// This file is compiled when building with CGO and the cgo_sqlite tag.
// It uses the C SQLite implementation for faster FTS5 queries.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "cgo_sqlite,fts5" ./...
//
// The C implementation provides:
//   - Faster FTS5 full-text search
//   - Recommended for large document sets
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
