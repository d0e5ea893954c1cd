package semindex

import (
	"path/filepath"
	"testing"

	"github.com/ainoob2025/AICore/internal/model"
)

func TestUpsertAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.sqlite")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.UpsertChunk(model.Chunk{SourceID: "doc1", ChunkID: "c1", Text: "the quick brown fox"}); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}
	if err := idx.UpsertChunk(model.Chunk{SourceID: "doc1", ChunkID: "c2", Text: "jumps over the lazy dog"}); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}

	hits, err := idx.Search("fox", 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c1" {
		t.Fatalf("unexpected search hits: %+v", hits)
	}
}

func TestUpsertReplacesByPrimaryKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.sqlite")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.UpsertChunk(model.Chunk{SourceID: "s", ChunkID: "c", Text: "version one"}); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}
	if err := idx.UpsertChunk(model.Chunk{SourceID: "s", ChunkID: "c", Text: "version two"}); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}

	stats, err := idx.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalChunks != 1 {
		t.Fatalf("expected a single chunk after replace, got %d", stats.TotalChunks)
	}

	hits, err := idx.Search("two", 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected replaced text to be searchable, got %+v", hits)
	}
}

func TestDeleteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.sqlite")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	idx.UpsertChunk(model.Chunk{SourceID: "a", ChunkID: "1", Text: "alpha"})
	idx.UpsertChunk(model.Chunk{SourceID: "b", ChunkID: "1", Text: "beta"})

	if err := idx.DeleteSource("a"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	stats, err := idx.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalChunks != 1 || stats.TotalSources != 1 {
		t.Fatalf("unexpected stats after delete: %+v", stats)
	}
}
