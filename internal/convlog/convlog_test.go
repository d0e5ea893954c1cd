package convlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ainoob2025/AICore/internal/model"
)

func TestAppendAndGetConversation(t *testing.T) {
	log, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := log.Append("sess-1", model.Message{Role: model.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append("sess-1", model.Message{Role: model.RoleAssistant, Content: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := log.GetConversation("sess-1", 0)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestGetConversationLimit(t *testing.T) {
	log, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := log.Append("sess", model.Message{Role: model.RoleUser, Content: "m"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	msgs, err := log.GetConversation("sess", 2)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestLegacyPlainTextLineCoerced(t *testing.T) {
	dir := t.TempDir()
	log, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := filepath.Join(dir, "legacy.jsonl")
	if err := os.WriteFile(path, []byte("just some plain text\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	msgs, err := log.GetConversation("legacy", 0)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser || msgs[0].Content != "just some plain text" {
		t.Fatalf("unexpected coercion: %+v", msgs)
	}
}

func TestClearNeverErrors(t *testing.T) {
	log, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Clear("nonexistent-session")
}

func TestSessionIDSanitized(t *testing.T) {
	log, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := log.Append("../../evil", model.Message{Role: model.RoleUser, Content: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(filepath.Join(log.RootDir, "....evil.jsonl")); err != nil {
		t.Fatalf("expected sanitized path to exist: %v", err)
	}
}
