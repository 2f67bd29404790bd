// Package extractor reads source documents from disk and produces plain
// text for chunking. PDF files yield one Page per physical page; text and
// markdown files yield a single unpaged body.
package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// Page holds the extracted text of one physical page. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// Content is the result of extracting a document.
type Content struct {
	Pages []Page
	// Paged is true when page numbers are meaningful (PDF sources).
	// Unpaged content carries its full text in a single page entry.
	Paged bool
}

// Text returns the concatenated text of all pages.
func (c *Content) Text() string {
	if len(c.Pages) == 1 {
		return c.Pages[0].Text
	}
	var sb strings.Builder
	for i, p := range c.Pages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Extractor dispatches extraction by file extension.
type Extractor struct{}

// New creates a new Extractor instance.
func New() *Extractor {
	return &Extractor{}
}

// Supported reports whether the extension (lowercased, including the dot)
// has an extractor.
func Supported(ext string) bool {
	switch ext {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	default:
		return false
	}
}

// Extract reads the file at path and returns its text content. Returns
// types.ErrUnsupportedFormat for extensions without an extractor.
func (e *Extractor) Extract(path string) (*Content, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md", ".markdown":
		return extractText(path)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, ext)
	}
}

func extractText(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Content{
		Pages: []Page{{Number: 1, Text: string(data)}},
		Paged: false,
	}, nil
}
