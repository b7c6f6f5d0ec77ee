package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/confchunk/core"
)

// CompositeSink fans writes out to several sinks, so a run can produce
// the JSON document and the SQLite database at once. When one sink fails
// mid-page the others still get the page, then the error propagates so
// the writer counts the page as failed.
type CompositeSink struct {
	sinks []core.Sink
}

// NewCompositeSink wraps the given sinks. At least one is required.
func NewCompositeSink(sinks ...core.Sink) (*CompositeSink, error) {
	var kept []core.Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("composite sink requires at least one sink")
	}
	return &CompositeSink{sinks: kept}, nil
}

// OutputPath lists every destination.
func (c *CompositeSink) OutputPath() string {
	paths := make([]string, len(c.sinks))
	for i, s := range c.sinks {
		paths[i] = s.OutputPath()
	}
	return strings.Join(paths, " | ")
}

// Open opens every sink, failing on the first error.
func (c *CompositeSink) Open() error {
	for _, s := range c.sinks {
		if err := s.Open(); err != nil {
			return fmt.Errorf("opening %s: %w", s.OutputPath(), err)
		}
	}
	return nil
}

// WritePage writes the page to every sink and returns the first error
// after all sinks had their turn.
func (c *CompositeSink) WritePage(page *core.Page, blocks []*core.ContentBlock, chunks []*core.Chunk) error {
	var first error
	for _, s := range c.sinks {
		if err := s.WritePage(page, blocks, chunks); err != nil {
			logrus.WithError(err).WithField("sink", s.OutputPath()).Error("sink write failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close closes every sink, collecting errors and returning the first.
func (c *CompositeSink) Close(meta core.RunMetadata) error {
	var first error
	for _, s := range c.sinks {
		if err := s.Close(meta); err != nil {
			logrus.WithError(err).WithField("sink", s.OutputPath()).Error("sink close failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
