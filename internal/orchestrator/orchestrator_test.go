package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ainoob2025/AICore/internal/assembler"
	"github.com/ainoob2025/AICore/internal/checkpoint"
	"github.com/ainoob2025/AICore/internal/convlog"
	"github.com/ainoob2025/AICore/internal/llm"
	"github.com/ainoob2025/AICore/internal/model"
	"github.com/ainoob2025/AICore/internal/tools"
)

// sequencedLLMServer replies with the dialect/result scripted for each
// successive chat-completions call, letting a single test drive the
// planner call then the final-synthesis call with distinct content.
func sequencedLLMServer(t *testing.T, replies []string) *httptest.Server {
	t.Helper()
	i := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "{}"
		if i < len(replies) {
			content = replies[i]
		}
		i++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
}

func newTestOrchestrator(t *testing.T, llmReplies []string) *Orchestrator {
	t.Helper()
	dir := t.TempDir()

	convLog, err := convlog.New(filepath.Join(dir, "conversations"))
	if err != nil {
		t.Fatalf("convlog.New: %v", err)
	}
	cp, err := checkpoint.New(filepath.Join(dir, "plans"))
	if err != nil {
		t.Fatalf("checkpoint.New: %v", err)
	}
	asm := assembler.New(convLog, nil, assembler.Config{})
	router := tools.NewRouter()

	srv := sequencedLLMServer(t, llmReplies)
	t.Cleanup(srv.Close)
	llmClient := llm.New(llm.Config{BaseURL: srv.URL, ModelID: "local-model", Timeout: 2 * time.Second}, nil)

	return New(convLog, asm, cp, router, llmClient, nil, nil, nil)
}

func TestHandleChatToolCallsDialectEndToEnd(t *testing.T) {
	planJSON := `{"tool_calls":[{"name":"ping","method":"ping","args":{}}],"final":"done"}`
	finalJSON := `{"final":"The ping succeeded."}`
	o := newTestOrchestrator(t, []string{planJSON, finalJSON})

	res := o.HandleChat(context.Background(), "ping the system", "sess-1", "")
	if !res.OK {
		t.Fatalf("expected ok result, got error=%q details=%v", res.Error, res.Details)
	}
	if res.Final != "The ping succeeded." {
		t.Fatalf("unexpected final text: %q", res.Final)
	}
	if res.ToolCallsCount != 1 {
		t.Fatalf("expected 1 tool call, got %d", res.ToolCallsCount)
	}
	if res.Plan == nil || res.Plan.Status != "done" {
		t.Fatalf("expected plan marked done, got %+v", res.Plan)
	}
	if !res.Checkpoint.OK || res.Checkpoint.Status != model.PlanStatusDone {
		t.Fatalf("expected checkpoint ok=true status=done, got %+v", res.Checkpoint)
	}
}

func TestHandleChatFullPlanDialectEndToEnd(t *testing.T) {
	planJSON := `{"steps":[{"id":"s1","title":"say hi","type":"tool","tool":{"name":"echo","method":"echo","args":{"text":"hi"}}}]}`
	finalJSON := `{"final":"Echoed hi."}`
	o := newTestOrchestrator(t, []string{planJSON, finalJSON})

	res := o.HandleChat(context.Background(), "echo hi", "sess-2", "")
	if !res.OK {
		t.Fatalf("expected ok result, got error=%q", res.Error)
	}
	if res.Final != "Echoed hi." {
		t.Fatalf("unexpected final: %q", res.Final)
	}
	if res.ToolBatches == 0 {
		t.Fatalf("expected at least one tool batch scheduled")
	}
}

func TestHandleChatPlanLLMFailureSurfacesError(t *testing.T) {
	dir := t.TempDir()
	convLog, _ := convlog.New(filepath.Join(dir, "c"))
	cp, _ := checkpoint.New(filepath.Join(dir, "p"))
	asm := assembler.New(convLog, nil, assembler.Config{})
	router := tools.NewRouter()

	// Point the LLM client at a server that always 500s.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()
	llmClient := llm.New(llm.Config{BaseURL: srv.URL, ModelID: "local-model", Timeout: 2 * time.Second}, nil)

	o := New(convLog, asm, cp, router, llmClient, nil, nil, nil)
	res := o.HandleChat(context.Background(), "anything", "sess-3", "")
	if res.OK {
		t.Fatalf("expected failure result")
	}
	if res.Error != "HTTP_ERROR" {
		t.Fatalf("expected HTTP_ERROR, got %q", res.Error)
	}
}

func TestHandleChatNonJSONPlanFallsBackToFinalText(t *testing.T) {
	o := newTestOrchestrator(t, []string{"just plain text, not json"})
	res := o.HandleChat(context.Background(), "chat casually", "sess-4", "")
	if !res.OK {
		t.Fatalf("expected ok result for plain-text fallback, got error=%q", res.Error)
	}
	if res.Final != "just plain text, not json" {
		t.Fatalf("expected raw text passed through as final, got %q", res.Final)
	}
}

func TestHandleChatPlanNormalizeFailureFallsBackToDiagnosticCheckpoint(t *testing.T) {
	o := newTestOrchestrator(t, []string{`{"steps": 123}`})
	res := o.HandleChat(context.Background(), "do something", "sess-6", "")

	if !res.OK {
		t.Fatalf("expected ok=true with a best-effort textual answer, got error=%q", res.Error)
	}
	if res.Error != "PLAN_NORMALIZE_FAILED" {
		t.Fatalf("expected PLAN_NORMALIZE_FAILED, got %q", res.Error)
	}
	if res.Final == "" {
		t.Fatalf("expected raw plan text surfaced as final, got empty")
	}
	if !res.Checkpoint.OK || res.Checkpoint.Status != model.PlanStatusFailedNormalize {
		t.Fatalf("expected checkpoint ok=true status=failed_normalize, got %+v", res.Checkpoint)
	}
}

func TestHandleChatResumesFromExistingCheckpoint(t *testing.T) {
	planJSON := `{"tool_calls":[{"name":"ping","method":"ping","args":{}}],"final":"done"}`
	finalJSON := `{"final":"resumed ok"}`
	o := newTestOrchestrator(t, []string{planJSON, finalJSON, finalJSON})

	first := o.HandleChat(context.Background(), "start task", "sess-5", "")
	if !first.OK {
		t.Fatalf("expected first turn ok, got %q", first.Error)
	}
	planID := first.Plan.PlanID

	second := o.HandleChat(context.Background(), "continue", "sess-5", planID)
	if !second.OK {
		t.Fatalf("expected resumed turn ok, got %q", second.Error)
	}
	if second.Plan.PlanID != planID {
		t.Fatalf("expected resumed plan id to match, got %q want %q", second.Plan.PlanID, planID)
	}
}
