package assembler

import (
	"strings"
	"testing"

	"github.com/ainoob2025/AICore/internal/convlog"
	"github.com/ainoob2025/AICore/internal/model"
	"github.com/ainoob2025/AICore/internal/semindex"
)

func TestBuildComposesLabeledSections(t *testing.T) {
	log, err := convlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("convlog.New: %v", err)
	}
	log.Append("s1", model.Message{Role: model.RoleUser, Content: "hello there"})

	idx, err := semindex.Open(t.TempDir() + "/knowledge.sqlite")
	if err != nil {
		t.Fatalf("semindex.Open: %v", err)
	}
	defer idx.Close()
	idx.UpsertChunk(model.Chunk{SourceID: "doc", ChunkID: "1", Text: "hello there general kenobi"})

	a := New(log, idx, DefaultConfig())
	res, err := a.Build("s1", "hello")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected ok result")
	}
	if !strings.Contains(res.ContextText, "## task") || !strings.Contains(res.ContextText, "## episodic") || !strings.Contains(res.ContextText, "## semantic") {
		t.Fatalf("missing labeled sections: %s", res.ContextText)
	}
	if !strings.Contains(res.ContextText, "user: hello there") {
		t.Fatalf("expected episodic turn present: %s", res.ContextText)
	}
}

func TestBuildTruncatesToBudgetKeepingTail(t *testing.T) {
	log, err := convlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("convlog.New: %v", err)
	}
	for i := 0; i < 50; i++ {
		log.Append("s1", model.Message{Role: model.RoleUser, Content: strings.Repeat("x", 500)})
	}

	a := New(log, nil, Config{EpisodicTurns: 50, CharBudget: 100})
	res, err := a.Build("s1", "task")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len([]rune(res.ContextText)) != 100 {
		t.Fatalf("expected truncated text of length 100, got %d", len([]rune(res.ContextText)))
	}
}

func TestBuildWithNilIndexSkipsSemantic(t *testing.T) {
	a := New(nil, nil, DefaultConfig())
	res, err := a.Build("s1", "task")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Semantic != nil {
		t.Fatalf("expected no semantic hits with nil index")
	}
}
