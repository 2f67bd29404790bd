// Package tokenizer provides language-aware text segmentation for chunking
// and keyword indexing. Latin-script text splits on whitespace; Japanese
// and Chinese text is segmented morphologically so that token windows and
// FTS queries work on languages without word delimiters.
package tokenizer

import (
	"strings"
	"unicode"
)

// Segmenter splits a run of text into tokens. Implementations must be safe
// for concurrent use.
type Segmenter interface {
	Segment(text string) []string
}

// Tokenizer splits text into tokens, delegating CJK runs to a Segmenter
// and everything else to whitespace splitting.
type Tokenizer struct {
	seg Segmenter
}

// New creates a Tokenizer backed by the given segmenter. A nil segmenter
// falls back to whitespace splitting for all input.
func New(seg Segmenter) *Tokenizer {
	return &Tokenizer{seg: seg}
}

// ContainsCJK reports whether the text contains hiragana, katakana, or
// CJK unified ideograph codepoints.
func ContainsCJK(text string) bool {
	for _, r := range text {
		if isCJK(r) {
			return true
		}
	}
	return false
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x309f: // Hiragana
		return true
	case r >= 0x30a0 && r <= 0x30ff: // Katakana
		return true
	case r >= 0x4e00 && r <= 0x9fff: // CJK unified ideographs
		return true
	}
	return false
}

// Tokenize splits text into tokens. Empty and whitespace-only input yields
// nil.
func (t *Tokenizer) Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if t.seg == nil || !ContainsCJK(text) {
		return strings.Fields(text)
	}

	// Mixed input is common in practice (Japanese prose with Latin
	// identifiers), so segment the whole text and drop whitespace tokens
	// the segmenter may emit.
	var tokens []string
	for _, tok := range t.seg.Segment(text) {
		if strings.TrimFunc(tok, unicode.IsSpace) == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenizeJoined tokenizes text and rejoins the tokens with single spaces.
// Used to preprocess CJK text before inserting it into the full-text index
// so that BM25 matching operates on segmented words.
func (t *Tokenizer) TokenizeJoined(text string) string {
	return strings.Join(t.Tokenize(text), " ")
}
