package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// searchText performs BM25 full-text search using FTS5. Scores come back
// raw: negative, lower is better. Callers normalize.
func searchText(ctx context.Context, q querier, query string, limit int) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	sqlQuery := `
		SELECT c.id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		results = append(results, TextResult{ChunkID: types.ChunkID(id), BM25Score: score})
	}
	return results, rows.Err()
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery sanitizes a search query for FTS5 to prevent injection
// attacks. Escapes special FTS5 operators and characters.
func sanitizeFTSQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	// Replace special characters that have meaning in FTS5
	replacer := strings.NewReplacer(
		`"`, `""`, // Quote
		`*`, ` `, // Wildcard
		`(`, ` `, // Grouping
		`)`, ` `, // Grouping
		`:`, ` `, // Column filter
		`^`, ` `, // Initial token match
		`-`, ` `, // Negation in some dialects
	)
	escaped := replacer.Replace(query)

	// Lowercase Boolean operators so they match as plain terms
	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, strings.ToLower)

	// Quote each remaining term so punctuation cannot reach the FTS
	// parser.
	terms := strings.Fields(escaped)
	for i, term := range terms {
		terms[i] = `"` + term + `"`
	}
	return strings.Join(terms, " ")
}
