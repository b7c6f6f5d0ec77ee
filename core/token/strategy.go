package token

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/confchunk/core"
)

// Counting backend names.
const (
	StrategySimple    = "simple"
	StrategyWordPiece = "wordpiece"
)

// Config selects the counting and segmentation backends for one strategy
// instance.
type Config struct {
	Strategy         string
	SentenceSplitter string
	// VocabPath is the local WordPiece vocab file, required for the
	// wordpiece backend.
	VocabPath string
}

// Strategy implements core.TokenStrategy on top of a counting function and
// a sentence splitter. The instance is cheap for the simple backend; the
// wordpiece backend carries tokenizer state, so give each concurrent
// worker its own instance via New.
type Strategy struct {
	name      string
	count     func(string) int
	sentences SentenceSplitter
}

// New builds the strategy named in cfg. An unknown name is a configuration
// error; an unavailable wordpiece backend degrades to the simple counter
// with a warning so no page ever fails on a missing optional dependency.
func New(cfg Config) (*Strategy, error) {
	splitter, err := NewSentenceSplitter(cfg.SentenceSplitter)
	if err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case StrategySimple:
		return &Strategy{name: StrategySimple, count: simpleCount, sentences: splitter}, nil
	case StrategyWordPiece:
		if cfg.VocabPath == "" {
			logrus.Warn("wordpiece strategy selected but TOKENIZER_PATH is empty, falling back to simple")
			return &Strategy{name: StrategySimple, count: simpleCount, sentences: splitter}, nil
		}
		count, err := newWordPieceCounter(cfg.VocabPath)
		if err != nil {
			logrus.WithError(err).Warn("wordpiece tokenizer unavailable, falling back to simple")
			return &Strategy{name: StrategySimple, count: simpleCount, sentences: splitter}, nil
		}
		return &Strategy{name: StrategyWordPiece, count: count, sentences: splitter}, nil
	default:
		return nil, fmt.Errorf("unknown token strategy: %q", cfg.Strategy)
	}
}

// wordOrPunct matches one word or one punctuation character. Each match
// approximates one token.
var wordOrPunct = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

func simpleCount(text string) int {
	if text == "" {
		return 0
	}
	return len(wordOrPunct.FindAllString(text, -1))
}

// Name reports the backend actually in use (after any fallback).
func (s *Strategy) Name() string { return s.name }

// Count returns the token count of text.
func (s *Strategy) Count(text string) int { return s.count(text) }

// Split segments text into parts of at most maxTokens, packing consecutive
// whole sentences greedily. A single sentence over the limit is further
// split at word boundaries.
func (s *Strategy) Split(text string, maxTokens int) []string {
	sentences := s.sentences.Split(text)
	var parts []string
	var buf []string
	bufTokens := 0

	for _, sent := range sentences {
		st := s.count(sent)

		if st > maxTokens {
			if len(buf) > 0 {
				parts = append(parts, strings.Join(buf, " "))
				buf, bufTokens = nil, 0
			}
			parts = append(parts, s.splitByWords(sent, maxTokens)...)
			continue
		}

		if bufTokens+st > maxTokens {
			parts = append(parts, strings.Join(buf, " "))
			buf, bufTokens = []string{sent}, st
		} else {
			buf = append(buf, sent)
			bufTokens += st
		}
	}

	if len(buf) > 0 {
		parts = append(parts, strings.Join(buf, " "))
	}
	return parts
}

// splitByWords packs whitespace-separated words into parts of at most
// maxTokens each.
func (s *Strategy) splitByWords(text string, maxTokens int) []string {
	words := strings.Fields(text)
	var parts []string
	var buf []string
	bufTokens := 0

	for _, word := range words {
		wt := s.count(word)
		if bufTokens+wt > maxTokens && len(buf) > 0 {
			parts = append(parts, strings.Join(buf, " "))
			buf, bufTokens = nil, 0
		}
		buf = append(buf, word)
		bufTokens += wt
	}

	if len(buf) > 0 {
		parts = append(parts, strings.Join(buf, " "))
	}
	return parts
}

// TakePrefix returns the longest run of whole sentences from the start of
// text that fits maxTokens, plus the remainder. If even the first sentence
// is over budget: with mustTake=false the caller gets ("", text) and can
// end the current chunk; with mustTake=true the first sentence is cut at a
// word boundary so at least one word is always consumed.
func (s *Strategy) TakePrefix(text string, maxTokens int, mustTake bool) (string, string) {
	sentences := s.sentences.Split(text)
	if len(sentences) == 0 {
		return "", ""
	}

	var acc []string
	used := 0
	i := 0
	for ; i < len(sentences); i++ {
		st := s.count(sentences[i])
		if used+st > maxTokens {
			break
		}
		acc = append(acc, sentences[i])
		used += st
	}

	if len(acc) > 0 {
		if i >= len(sentences) {
			return strings.Join(acc, " "), ""
		}
		return strings.Join(acc, " "), strings.Join(sentences[i:], " ")
	}

	if !mustTake {
		return "", text
	}

	// Forward progress is mandatory: cut inside the first sentence.
	words := strings.Fields(sentences[0])
	var wacc []string
	used = 0
	for j, word := range words {
		wt := s.count(word)
		if len(wacc) > 0 && used+wt > maxTokens {
			rest := append([]string{strings.Join(words[j:], " ")}, sentences[1:]...)
			return strings.Join(wacc, " "), strings.Join(rest, " ")
		}
		wacc = append(wacc, word)
		used += wt
	}

	if len(sentences) == 1 {
		return strings.Join(wacc, " "), ""
	}
	return strings.Join(wacc, " "), strings.Join(sentences[1:], " ")
}

var _ core.TokenStrategy = (*Strategy)(nil)
