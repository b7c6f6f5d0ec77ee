// Package output implements the Sink interface: persistence backends for
// chunk and block output. Sinks are driven by the pipeline's single writer
// goroutine, one page per call.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/confchunk/core"
)

// JSONSink streams the run into one JSON document:
//
//	{"chunks": [...], "pages": [...], "blocks": [...], "metadata": {...}}
//
// Chunks are written as they arrive. Page infos and blocks go to JSONL
// sidecar files and are folded into the document at Close, so the whole
// run is never held in memory and the final file is still a single valid
// JSON object.
type JSONSink struct {
	path          string
	includeBlocks bool

	file *os.File
	buf  *bufio.Writer

	firstChunk bool

	totalPages  int
	totalChunks int
	totalBlocks int
}

// NewJSONSink creates a sink writing to outputDir. The filename carries a
// timestamp so consecutive runs never clobber each other.
func NewJSONSink(outputDir, filePrefix string, includeBlocks bool) (*JSONSink, error) {
	if filePrefix == "" {
		filePrefix = "confluence_chunks"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", filePrefix, time.Now().Format("20060102_150405"))
	return &JSONSink{
		path:          filepath.Join(outputDir, name),
		includeBlocks: includeBlocks,
		firstChunk:    true,
	}, nil
}

// OutputPath returns the document path.
func (s *JSONSink) OutputPath() string { return s.path }

// Open creates the document and starts the chunks array.
func (s *JSONSink) Open() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	s.file = f
	s.buf = bufio.NewWriter(f)
	if _, err := s.buf.WriteString("{\"chunks\":[\n"); err != nil {
		return fmt.Errorf("writing document header: %w", err)
	}
	logrus.WithField("path", s.path).Info("streaming JSON output")
	return nil
}

// WritePage streams the page's chunks into the document and appends the
// page info (and blocks, when enabled) to the sidecars.
func (s *JSONSink) WritePage(page *core.Page, blocks []*core.ContentBlock, chunks []*core.Chunk) error {
	if s.buf == nil {
		return fmt.Errorf("sink is not open")
	}

	s.totalPages++
	if err := appendJSONL(s.pagesSidecar(), page.Info()); err != nil {
		return fmt.Errorf("writing page sidecar: %w", err)
	}

	for _, ch := range chunks {
		data, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("encoding chunk %s: %w", ch.ChunkID, err)
		}
		if !s.firstChunk {
			if _, err := s.buf.WriteString(",\n"); err != nil {
				return err
			}
		}
		if _, err := s.buf.Write(data); err != nil {
			return err
		}
		s.firstChunk = false
		s.totalChunks++
	}

	if s.includeBlocks {
		for _, b := range blocks {
			if err := appendJSONL(s.blocksSidecar(), b); err != nil {
				return fmt.Errorf("writing block sidecar: %w", err)
			}
			s.totalBlocks++
		}
	}
	return nil
}

// Close finishes the chunks array, folds the sidecars in as proper JSON
// arrays, writes the run metadata and closes the file.
func (s *JSONSink) Close(meta core.RunMetadata) error {
	if s.buf == nil {
		return nil
	}

	if _, err := s.buf.WriteString("\n]"); err != nil {
		return err
	}

	if _, err := s.buf.WriteString(",\n\"pages\":[\n"); err != nil {
		return err
	}
	if err := foldSidecar(s.buf, s.pagesSidecar()); err != nil {
		return fmt.Errorf("folding pages sidecar: %w", err)
	}
	if _, err := s.buf.WriteString("\n]"); err != nil {
		return err
	}

	if s.includeBlocks {
		if _, err := s.buf.WriteString(",\n\"blocks\":[\n"); err != nil {
			return err
		}
		if err := foldSidecar(s.buf, s.blocksSidecar()); err != nil {
			return fmt.Errorf("folding blocks sidecar: %w", err)
		}
		if _, err := s.buf.WriteString("\n]"); err != nil {
			return err
		}
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if _, err := s.buf.WriteString(",\n\"metadata\":"); err != nil {
		return err
	}
	if _, err := s.buf.Write(metaData); err != nil {
		return err
	}
	if _, err := s.buf.WriteString("\n}"); err != nil {
		return err
	}

	if err := s.buf.Flush(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	s.buf = nil
	s.file = nil

	logrus.WithFields(logrus.Fields{
		"path":   s.path,
		"pages":  s.totalPages,
		"chunks": s.totalChunks,
	}).Info("output file closed")
	return nil
}

func (s *JSONSink) pagesSidecar() string {
	return sidecarPath(s.path, ".pages.jsonl")
}

func (s *JSONSink) blocksSidecar() string {
	return sidecarPath(s.path, ".blocks.jsonl")
}

func sidecarPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + suffix
}

// appendJSONL writes one record as a JSONL line. Open/append per call is
// deliberate: sidecars see one write per page, not per chunk, and the OS
// cache makes this cheap enough.
func appendJSONL(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// foldSidecar copies a JSONL sidecar into the document as comma-separated
// array elements, then deletes it. A missing sidecar just yields an empty
// array.
func foldSidecar(buf *bufio.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	first := true
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !first {
			if _, err := buf.WriteString(",\n"); err != nil {
				return err
			}
		}
		if _, err := buf.Write(line); err != nil {
			return err
		}
		first = false
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Best effort: leaving the sidecar behind is not fatal.
	os.Remove(path)
	return nil
}
