package token

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// newWordPieceCounter loads a WordPiece vocab from disk and returns an
// exact sub-word counting function. The tokenizer keeps internal caches,
// which is why a Strategy wrapping it must stay worker-local.
func newWordPieceCounter(vocabPath string) (func(string) int, error) {
	model, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, fmt.Errorf("loading wordpiece vocab %s: %w", vocabPath, err)
	}

	tk := tokenizer.NewTokenizer(model)
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	return func(text string) int {
		if text == "" {
			return 0
		}
		en, err := tk.EncodeSingle(text)
		if err != nil {
			// Counting must never fail a page; approximate instead.
			return simpleCount(text)
		}
		return len(en.Ids)
	}, nil
}
