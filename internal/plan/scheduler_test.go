package plan

import (
	"testing"

	"github.com/ainoob2025/AICore/internal/model"
)

func threeStepPlan() *model.Plan {
	return &model.Plan{
		PlanID: "p",
		Steps: []*model.Step{
			{ID: "a", Type: model.StepTypeTool, Status: model.StepStatusPending, Tool: &model.ToolCall{Name: "ping", Method: "get"}},
			{ID: "b", Type: model.StepTypeTool, Status: model.StepStatusPending, Tool: &model.ToolCall{Name: "echo", Method: "say"}, DependsOn: []string{"a"}},
			{ID: "c", Type: model.StepTypeNote, Status: model.StepStatusPending, DependsOn: []string{"b"}},
		},
	}
}

func TestGetReadyToolBatchRespectsDependencies(t *testing.T) {
	p := threeStepPlan()
	batch := GetReadyToolBatch(p, 10)
	if len(batch.ToolCalls) != 1 || batch.ToolCalls[0].StepID != "a" {
		t.Fatalf("expected only step a ready, got %+v", batch.ToolCalls)
	}
}

func TestApplyToolResultsUnblocksDependents(t *testing.T) {
	p := threeStepPlan()
	ApplyToolResults(p, []model.ToolResult{
		model.OkResult("ping", "get", map[string]any{"pong": true}),
	})
	// Correlate by name/method fallback since no StepID set above.
	if p.StepByID("a").Status != model.StepStatusDone {
		t.Fatalf("expected step a done, got %+v", p.StepByID("a"))
	}

	batch := GetReadyToolBatch(p, 10)
	if len(batch.ToolCalls) != 1 || batch.ToolCalls[0].StepID != "b" {
		t.Fatalf("expected step b ready next, got %+v", batch.ToolCalls)
	}
}

func TestApplyToolResultsByStepIDPreferred(t *testing.T) {
	p := threeStepPlan()
	res := model.OkResult("ping", "get", map[string]any{"pong": true})
	res.StepID = "a"
	ApplyToolResults(p, []model.ToolResult{res})
	if p.StepByID("a").Status != model.StepStatusDone {
		t.Fatalf("expected step a done via step id correlation")
	}
}

func TestApplyToolResultsFailure(t *testing.T) {
	p := threeStepPlan()
	res := model.ErrResult("ping", "get", "TOOL_EXCEPTION", map[string]any{"type": "x"})
	res.StepID = "a"
	ApplyToolResults(p, []model.ToolResult{res})
	if p.StepByID("a").Status != model.StepStatusFailed {
		t.Fatalf("expected step a failed, got %+v", p.StepByID("a"))
	}
}

func TestSchedulerIndependentOfBatchSize(t *testing.T) {
	build := func() *model.Plan {
		return &model.Plan{
			PlanID: "p",
			Steps: []*model.Step{
				{ID: "a", Type: model.StepTypeTool, Status: model.StepStatusPending, Tool: &model.ToolCall{Name: "ping", Method: "get"}},
				{ID: "b", Type: model.StepTypeTool, Status: model.StepStatusPending, Tool: &model.ToolCall{Name: "ping", Method: "get"}},
				{ID: "c", Type: model.StepTypeTool, Status: model.StepStatusPending, Tool: &model.ToolCall{Name: "ping", Method: "get"}},
			},
		}
	}

	run := func(batchSize int) []model.StepStatus {
		p := build()
		for {
			batch := GetReadyToolBatch(p, batchSize)
			if len(batch.ToolCalls) == 0 {
				break
			}
			var results []model.ToolResult
			for _, c := range batch.ToolCalls {
				r := model.OkResult(c.Name, c.Method, map[string]any{"pong": true})
				r.StepID = c.StepID
				results = append(results, r)
			}
			ApplyToolResults(p, results)
		}
		statuses := make([]model.StepStatus, len(p.Steps))
		for i, s := range p.Steps {
			statuses[i] = s.Status
		}
		return statuses
	}

	small := run(1)
	large := run(200)
	if len(small) != len(large) {
		t.Fatalf("mismatched lengths")
	}
	for i := range small {
		if small[i] != large[i] {
			t.Fatalf("batch-size-dependent result at index %d: %v vs %v", i, small[i], large[i])
		}
	}
}
