// Package token implements the pluggable token counting and text
// segmentation strategies used by the normalizer and the chunk builder.
//
// Two counting backends exist: a regex-based approximation (each word or
// punctuation run is one token) and an exact sub-word counter backed by a
// WordPiece tokenizer. Sentence segmentation is pluggable independently.
package token

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Sentence splitter backend names.
const (
	SplitterSimple  = "simple"
	SplitterUnicode = "unicode"
)

// SentenceSplitter segments text into sentences. Terminal punctuation
// stays attached to its sentence.
type SentenceSplitter interface {
	Split(text string) []string
}

// NewSentenceSplitter returns the named splitter backend.
func NewSentenceSplitter(name string) (SentenceSplitter, error) {
	switch name {
	case SplitterSimple:
		return simpleSplitter{}, nil
	case SplitterUnicode:
		return unicodeSplitter{}, nil
	default:
		return nil, fmt.Errorf("unknown sentence splitter: %q", name)
	}
}

// simpleSplitter cuts after '.', '!', '?' or '…' followed by whitespace.
type simpleSplitter struct{}

func (simpleSplitter) Split(text string) []string {
	rs := []rune(text)
	var parts []string
	start := 0
	for i := 0; i < len(rs)-1; i++ {
		if isSentenceEnd(rs[i]) && isSpaceRune(rs[i+1]) {
			if p := strings.TrimSpace(string(rs[start : i+1])); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(string(rs[start:])); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// unicodeSplitter uses UAX #29 sentence boundaries. Handles abbreviations
// and multi-script text better than the rule-based splitter.
type unicodeSplitter struct{}

func (unicodeSplitter) Split(text string) []string {
	var parts []string
	state := -1
	var sentence string
	rest := text
	for len(rest) > 0 {
		sentence, rest, state = uniseg.FirstSentenceInString(rest, state)
		if sentence == "" {
			break
		}
		if p := strings.TrimSpace(sentence); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
