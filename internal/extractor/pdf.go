package extractor

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF pulls plain text from every page of a PDF. Pages whose text
// cannot be decoded are skipped rather than failing the whole document;
// scanned PDFs routinely contain pages with no extractable text.
func extractPDF(path string) (*Content, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	content := &Content{Paged: true}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content.Pages = append(content.Pages, Page{Number: i, Text: text})
	}

	if len(content.Pages) == 0 {
		return nil, fmt.Errorf("no extractable text in PDF %s", path)
	}
	return content, nil
}
