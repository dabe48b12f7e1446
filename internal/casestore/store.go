package casestore

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	meta_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id),
	seq INTEGER NOT NULL,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id INTEGER NOT NULL UNIQUE REFERENCES chunks(id),
	vector BLOB NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	chunk_id UNINDEXED,
	tokenize='unicode61'
);
`

// Store is the per-case document index: one SQLite file holding the
// extracted chunks, their embeddings, and an FTS5 mirror of the chunk
// text for lexical search.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open case store %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the file the store is backed by.
func (s *Store) Path() string {
	return s.path
}

// InsertDocument registers a source document and returns its id.
func (s *Store) InsertDocument(path, metaJSON string) (int64, error) {
	if metaJSON == "" {
		metaJSON = "{}"
	}
	res, err := s.db.Exec(`INSERT INTO documents (path, meta_json) VALUES (?, ?)`, path, metaJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return res.LastInsertId()
}

// InsertChunk stores one chunk of a document together with its
// embedding and mirrors the content into the FTS index. The three
// writes go in one transaction so the index never sees a chunk
// without its vector.
func (s *Store) InsertChunk(documentID int64, seq int, content string, vector []float32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO chunks (document_id, seq, content) VALUES (?, ?, ?)`,
		documentID, seq, content)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	chunkID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT INTO embeddings (chunk_id, vector) VALUES (?, ?)`,
		chunkID, float32SliceToBytes(vector)); err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO chunks_fts (rowid, content, chunk_id) VALUES (?, ?, ?)`,
		chunkID, content, chunkID); err != nil {
		return fmt.Errorf("failed to index chunk: %w", err)
	}

	return tx.Commit()
}

// ChunkCount reports the number of chunks in the store.
func (s *Store) ChunkCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// float32SliceToBytes packs a vector into little-endian bytes for BLOB
// storage.
func float32SliceToBytes(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func bytesToFloat32Slice(buf []byte) []float32 {
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector
}
