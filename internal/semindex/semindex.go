// Package semindex implements the FTS-backed semantic chunk store (spec
// component C3) on top of an embedded SQLite database.
package semindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ainoob2025/AICore/internal/model"
)

const schemaSQL = `
PRAGMA journal_mode=WAL;
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS chunks (
	source_id  TEXT NOT NULL,
	chunk_id   TEXT NOT NULL,
	text       TEXT NOT NULL,
	meta_json  TEXT,
	updated_ts REAL NOT NULL,
	PRIMARY KEY (source_id, chunk_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	text,
	content='chunks',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
	INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;
`

// Index is a SQLite FTS5-backed semantic chunk store. Writes are
// serialized through mu; reads share the same lock to coordinate with the
// sync triggers, per spec.md §5.
type Index struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("semindex: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("semindex: create schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// UpsertChunk inserts or replaces a chunk, keyed by (SourceID, ChunkID).
func (idx *Index) UpsertChunk(c model.Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	metaJSON := "null"
	if c.Meta != nil {
		b, err := json.Marshal(c.Meta)
		if err != nil {
			return fmt.Errorf("semindex: marshal meta: %w", err)
		}
		metaJSON = string(b)
	}
	if c.UpdatedTS == 0 {
		c.UpdatedTS = float64(time.Now().UnixMilli()) / 1000.0
	}

	_, err := idx.db.Exec(`
		INSERT INTO chunks (source_id, chunk_id, text, meta_json, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, chunk_id) DO UPDATE SET
			text=excluded.text, meta_json=excluded.meta_json, updated_ts=excluded.updated_ts
	`, c.SourceID, c.ChunkID, c.Text, metaJSON, c.UpdatedTS)
	if err != nil {
		return fmt.Errorf("semindex: upsert: %w", err)
	}
	return nil
}

// SearchHit is one ranked result from Search.
type SearchHit struct {
	SourceID string  `json:"source_id"`
	ChunkID  string  `json:"chunk_id"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

// Search runs a BM25-ranked full-text query, optionally filtered to a
// single source. Lower scores rank better. limit is clamped to 50.
func (idx *Index) Search(query string, limit int, sourceFilter string) ([]SearchHit, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ftsQuery := escapeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT c.source_id, c.chunk_id, snippet(chunks_fts, 0, '[', ']', '...', 12) AS snip, bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?`
	args := []any{ftsQuery}
	if sourceFilter != "" {
		sqlQuery += " AND c.source_id = ?"
		args = append(args, sourceFilter)
	}
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := idx.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("semindex: search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.SourceID, &h.ChunkID, &h.Snippet, &h.Score); err != nil {
			return nil, fmt.Errorf("semindex: scan: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// escapeFTSQuery quotes the raw user query as a single FTS5 phrase so
// reserved characters (", *, -, etc.) never produce a syntax error.
func escapeFTSQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

// DeleteSource removes every chunk belonging to sourceID.
func (idx *Index) DeleteSource(sourceID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.Exec(`DELETE FROM chunks WHERE source_id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("semindex: delete source: %w", err)
	}
	return nil
}

// Stats reports chunk and source counts.
type Stats struct {
	TotalChunks  int `json:"total_chunks"`
	TotalSources int `json:"total_sources"`
}

// Stats reports the current size of the index.
func (idx *Index) Stats() (Stats, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var st Stats
	row := idx.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT source_id) FROM chunks`)
	if err := row.Scan(&st.TotalChunks, &st.TotalSources); err != nil {
		return Stats{}, fmt.Errorf("semindex: stats: %w", err)
	}
	return st, nil
}

// Vacuum compacts the underlying database file.
func (idx *Index) Vacuum() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.Exec(`VACUUM`)
	if err != nil {
		return fmt.Errorf("semindex: vacuum: %w", err)
	}
	return nil
}
