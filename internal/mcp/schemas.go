package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexFolderTool returns the tool definition for index_folder
func indexFolderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_folder",
		Description: "Index a folder of documents (PDF, text, Markdown) to make it searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"folder": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the folder to index",
				},
			},
			Required: []string{"folder"},
		},
	}
}

// searchDocsTool returns the tool definition for search_docs
func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_docs",
		Description: "Search indexed documents with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (keyword + semantic), semantic (vector only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "semantic", "keyword"},
					"default":     "hybrid",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"keyword_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the keyword score in hybrid fusion",
					"default":     0.5,
				},
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the semantic score in hybrid fusion",
					"default":     0.5,
				},
				"keyword_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates fetched by the keyword leg in hybrid mode (default: limit*2)",
				},
				"semantic_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates fetched by the semantic leg in hybrid mode (default: limit*2)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// removeDocumentTool returns the tool definition for remove_document
func removeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_document",
		Description: "Remove a document and all of its chunks and vectors from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the indexed document to remove",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
