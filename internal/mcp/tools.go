package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/localrag/folderrag-mcp/internal/indexer"
	"github.com/localrag/folderrag-mcp/internal/retriever"
	"github.com/localrag/folderrag-mcp/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound   = -32001 // Document not present in the index
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexFolder handles the index_folder tool invocation
func (s *Server) handleIndexFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	folder, ok := args["folder"].(string)
	if !ok || folder == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "folder parameter is required", map[string]interface{}{
			"param":  "folder",
			"reason": "missing or empty",
		})
	}

	if err := validateFolder(folder); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid folder", map[string]interface{}{
			"param":  "folder",
			"reason": err.Error(),
		})
	}

	files, err := s.indexer.ScanFolder(folder)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "folder scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	pending, err := s.indexer.AddFiles(ctx, files)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "file registration failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := s.indexer.IndexPending(ctx, &indexer.Config{Workers: s.cfg.Workers}, nil)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached query results may now be stale
	s.retriever.InvalidateCache()

	response := map[string]interface{}{
		"indexed":           true,
		"files_found":       len(files),
		"documents_pending": pending,
		"documents_indexed": stats.DocumentsIndexed,
		"documents_failed":  stats.DocumentsFailed,
		"documents_total":   stats.DocumentsTotal,
		"chunks_created":    stats.ChunksCreated,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocs handles the search_docs tool invocation
func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.cfg.TopK)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := getStringDefault(args, "mode", string(retriever.SearchModeHybrid))
	switch retriever.SearchMode(mode) {
	case retriever.SearchModeHybrid, retriever.SearchModeSemantic, retriever.SearchModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{"hybrid", "semantic", "keyword"},
		})
	}

	resp, err := s.retriever.Search(ctx, retriever.SearchRequest{
		Query:          query,
		Limit:          limit,
		Mode:           retriever.SearchMode(mode),
		KeywordWeight:  getFloatDefault(args, "keyword_weight", retriever.DefaultKeywordWeight),
		SemanticWeight: getFloatDefault(args, "semantic_weight", retriever.DefaultSemanticWeight),
		KeywordLimit:   getIntDefault(args, "keyword_limit", 0),
		SemanticLimit:  getIntDefault(args, "semantic_limit", 0),
		UseCache:       true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		result := map[string]interface{}{
			"rank":        r.Rank,
			"score":       r.Score,
			"chunk_id":    string(r.ChunkID),
			"document_id": string(r.DocumentID),
			"path":        r.Path,
			"title":       r.Title,
			"snippet":     r.Snippet,
		}
		if r.Page != nil {
			result["page"] = *r.Page
		}
		results[i] = result
	}

	response := map[string]interface{}{
		"query":         query,
		"mode":          mode,
		"total_results": resp.TotalResults,
		"duration_ms":   resp.Duration.Milliseconds(),
		"cache_hit":     resp.CacheHit,
		"results":       results,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRemoveDocument handles the remove_document tool invocation
func (s *Server) handleRemoveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	err := s.indexer.RemoveDocument(ctx, path)
	switch {
	case errors.Is(err, indexer.ErrIndexingInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is already running", nil)
	case errors.Is(err, storage.ErrNotFound):
		return nil, newMCPError(ErrorCodeDocumentNotFound, "document not found", map[string]interface{}{
			"path": path,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "removal failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.retriever.InvalidateCache()

	response := map[string]interface{}{
		"removed": true,
		"path":    path,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"documents_count":  status.DocumentsCount,
			"pending_count":    status.PendingCount,
			"error_count":      status.ErrorCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
			"vectors_count":    s.index.Size(),
			"index_kind":       s.index.Kind(),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_index_built":      status.Health.FTSIndexBuilt,
		},
	}

	if status.LastJob != nil {
		job := map[string]interface{}{
			"status":            status.LastJob.Status,
			"started_at":        status.LastJob.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			"documents_total":   status.LastJob.DocumentsTotal,
			"documents_indexed": status.LastJob.DocumentsIndexed,
			"documents_failed":  status.LastJob.DocumentsFailed,
		}
		if status.LastJob.FinishedAt != nil {
			job["finished_at"] = status.LastJob.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		response["last_job"] = job
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateFolder checks that the path is an absolute, readable directory
func validateFolder(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
