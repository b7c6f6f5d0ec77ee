package output

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/gaurav-prasanna/confchunk/core"
)

// SQLiteSink writes one row per chunk: chunk_id as primary key, the rest
// of the chunk as a JSON payload column. INSERT OR REPLACE keeps repeat
// runs idempotent. Pages and blocks are not stored here; the JSON sink
// covers them.
type SQLiteSink struct {
	dbPath  string
	table   string
	payload string

	db *sql.DB

	totalPages  int
	totalChunks int
}

// NewSQLiteSink creates a sink writing to a database file in outputDir.
// Table and payload column names come from configuration and must be
// pre-validated (identifiers cannot be bound as SQL parameters).
func NewSQLiteSink(outputDir, dbFilename, table, payloadField string) (*SQLiteSink, error) {
	if dbFilename == "" {
		dbFilename = "confluence_chunks.sqlite3"
	}
	if table == "" {
		table = "chunks"
	}
	if payloadField == "" {
		payloadField = "payload"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &SQLiteSink{
		dbPath:  filepath.Join(outputDir, dbFilename),
		table:   table,
		payload: payloadField,
	}, nil
}

// OutputPath returns the database file path.
func (s *SQLiteSink) OutputPath() string { return s.dbPath }

// Open connects and makes sure the schema exists. WAL mode improves
// concurrent reads while the run is writing; failure to enable it is not
// fatal.
func (s *SQLiteSink) Open() error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logrus.WithError(err).Debug("could not enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		logrus.WithError(err).Debug("could not relax synchronous mode")
	}

	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (chunk_id TEXT PRIMARY KEY, %s TEXT NOT NULL);",
		s.table, s.payload,
	)
	if _, err := db.Exec(createSQL); err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}

	logrus.WithFields(logrus.Fields{
		"path":  s.dbPath,
		"table": s.table,
	}).Info("SQLite output")
	return nil
}

// WritePage inserts the page's chunks in one transaction. A transaction
// per page is far cheaper than a commit per chunk.
func (s *SQLiteSink) WritePage(page *core.Page, _ []*core.ContentBlock, chunks []*core.Chunk) error {
	if s.db == nil {
		return fmt.Errorf("sink is not open")
	}
	s.totalPages++
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	insertSQL := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (chunk_id, %s) VALUES (?, ?);",
		s.table, s.payload,
	)
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		payload, err := chunkPayload(ch)
		if err != nil {
			return fmt.Errorf("encoding chunk %s: %w", ch.ChunkID, err)
		}
		if _, err := stmt.Exec(ch.ChunkID, payload); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", ch.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing page %s: %w", page.ID, err)
	}
	s.totalChunks += len(chunks)
	return nil
}

// Close closes the database. Run metadata is not stored in this sink.
func (s *SQLiteSink) Close(_ core.RunMetadata) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logrus.WithFields(logrus.Fields{
		"path":   s.dbPath,
		"pages":  s.totalPages,
		"chunks": s.totalChunks,
	}).Info("SQLite database closed")
	return err
}

// chunkPayload serializes a chunk without its chunk_id, which already
// lives in the key column.
func chunkPayload(ch *core.Chunk) (string, error) {
	data, err := json.Marshal(ch)
	if err != nil {
		return "", err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	delete(m, "chunk_id")
	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
