package tokenizer

import (
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"
)

// KagomeSegmenter segments Japanese text using the kagome morphological
// analyzer with the IPA dictionary. The underlying tokenizer is safe for
// concurrent use.
type KagomeSegmenter struct {
	tok *kagome.Tokenizer
}

// NewKagomeSegmenter loads the IPA dictionary and builds a segmenter.
// Dictionary loading is relatively expensive, so callers should construct
// one segmenter and share it.
func NewKagomeSegmenter() (*KagomeSegmenter, error) {
	tok, err := kagome.New(ipa.Dict(), kagome.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kagome tokenizer: %w", err)
	}
	return &KagomeSegmenter{tok: tok}, nil
}

// Segment splits text into surface forms.
func (s *KagomeSegmenter) Segment(text string) []string {
	return s.tok.Wakati(text)
}
