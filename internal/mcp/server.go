package mcp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/localrag/folderrag-mcp/internal/chunker"
	"github.com/localrag/folderrag-mcp/internal/config"
	"github.com/localrag/folderrag-mcp/internal/embedder"
	"github.com/localrag/folderrag-mcp/internal/extractor"
	"github.com/localrag/folderrag-mcp/internal/indexer"
	"github.com/localrag/folderrag-mcp/internal/retriever"
	"github.com/localrag/folderrag-mcp/internal/storage"
	"github.com/localrag/folderrag-mcp/internal/tokenizer"
	"github.com/localrag/folderrag-mcp/internal/vecindex"
)

const (
	// ServerName is the MCP server name
	ServerName = "folderrag-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DatabaseFile is the SQLite file name inside the data directory
	DatabaseFile = "folderrag.db"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	cfg       *config.Config
	storage   storage.Storage
	index     *vecindex.Store
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
}

// NewServer wires the full pipeline and registers the MCP tools.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(cfg.DataDir, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	// A persisted index wins over the configured kind: its vectors are
	// already committed to one backend and dimension.
	index, err := vecindex.Load(cfg.DataDir)
	if errors.Is(err, fs.ErrNotExist) {
		index, err = vecindex.NewStore(cfg.IndexKind, emb.Dimension())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	tok := newTokenizer()
	chk, err := chunker.New(tok, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	idx := indexer.New(store, extractor.New(), chk, tok, emb, index, cfg.DataDir)
	ret := retriever.New(store, emb, index, tok)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:       mcpServer,
		cfg:       cfg,
		storage:   store,
		index:     index,
		indexer:   idx,
		retriever: ret,
	}

	s.registerTools()

	return s, nil
}

// newEmbedder builds the embedder from explicit config, falling back to
// environment auto-detection when no provider is configured.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	if cfg.EmbeddingProvider == "" {
		return embedder.NewFromEnv()
	}
	return embedder.New(embedder.Config{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModel,
		CacheSize: 10000,
	})
}

// newTokenizer prefers the Japanese morphological segmenter and falls
// back to whitespace tokenization when the dictionary cannot load.
func newTokenizer() *tokenizer.Tokenizer {
	seg, err := tokenizer.NewKagomeSegmenter()
	if err != nil {
		return tokenizer.New(nil)
	}
	return tokenizer.New(seg)
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexFolderTool(), s.handleIndexFolder)
	s.mcp.AddTool(searchDocsTool(), s.handleSearchDocs)
	s.mcp.AddTool(removeDocumentTool(), s.handleRemoveDocument)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
