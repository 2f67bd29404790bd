// Package mcp implements the Model Context Protocol (MCP) server for FolderRAG.
//
// The MCP server exposes four tools to AI assistants (Claude Code, Codex CLI):
//   - index_folder: Scan a local folder and index its documents for search
//   - search_docs: Search indexed documents with natural language queries
//   - remove_document: Remove a single document from the index
//   - get_status: Check index statistics and health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Basic Usage
//
// The MCP server is started by running the binary with no arguments:
//
//	folderrag-mcp
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: index_folder
//
// Index a folder of documents to make it searchable:
//
//	Request:
//	{
//	  "name": "index_folder",
//	  "arguments": {
//	    "folder": "/path/to/documents"
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "files_found": 42,
//	  "documents_pending": 12,
//	  "documents_indexed": 12,
//	  "documents_failed": 0,
//	  "chunks_created": 318,
//	  "duration_ms": 5204
//	}
//
// Re-running index_folder on the same folder only re-indexes files whose
// modification time or size changed since the last run.
//
// # Tool: search_docs
//
// Search indexed documents semantically, by keywords, or both:
//
//	Request:
//	{
//	  "name": "search_docs",
//	  "arguments": {
//	    "query": "quarterly revenue forecast",
//	    "limit": 10,
//	    "mode": "hybrid",
//	    "keyword_weight": 0.5,
//	    "semantic_weight": 0.5
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.92,
//	      "path": "/docs/finance/q3-report.pdf",
//	      "title": "q3-report",
//	      "page": 4,
//	      "snippet": "...projected quarterly revenue of..."
//	    }
//	  ]
//	}
//
// # Tool: remove_document
//
// Remove a document and its chunks and vectors from the index:
//
//	Request:
//	{
//	  "name": "remove_document",
//	  "arguments": {
//	    "path": "/docs/finance/q3-report.pdf"
//	  }
//	}
//
// # Tool: get_status
//
// Check index statistics:
//
//	Request:
//	{
//	  "name": "get_status",
//	  "arguments": {}
//	}
//
//	Response:
//	{
//	  "statistics": {
//	    "documents_count": 42,
//	    "chunks_count": 318,
//	    "vectors_count": 318,
//	    "index_kind": "flat"
//	  },
//	  "health": {
//	    "database_accessible": true,
//	    "embeddings_available": true,
//	    "fts_index_built": true
//	  }
//	}
//
// # MCP Client Configuration
//
// Configure in Claude Code's MCP settings:
//
//	{
//	  "mcpServers": {
//	    "folderrag": {
//	      "command": "/usr/local/bin/folderrag-mcp",
//	      "env": {
//	        "FOLDERRAG_DATA_DIR": "/var/lib/folderrag",
//	        "OPENAI_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// The MCP server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {
//	      "param": "folder",
//	      "reason": "path does not exist"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Document not found
//   - -32002: Indexing in progress
//   - -32004: Empty query
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol).
package mcp
