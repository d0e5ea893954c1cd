package plan

import (
	"testing"

	"github.com/ainoob2025/AICore/internal/model"
)

func TestNormalizeToolCallsDialect(t *testing.T) {
	payload := []byte(`{"tool_calls":[{"name":"ping","method":"get","args":{}}],"final":"done"}`)
	p, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("expected 2 steps (tool + final), got %d", len(p.Steps))
	}
	if p.Steps[0].Type != model.StepTypeTool || p.Steps[1].Type != model.StepTypeNote {
		t.Fatalf("unexpected step types: %+v", p.Steps)
	}
	if len(p.Steps[1].DependsOn) != 1 || p.Steps[1].DependsOn[0] != p.Steps[0].ID {
		t.Fatalf("final step should depend on the tool step")
	}
}

func TestNormalizeFullPlanDialect(t *testing.T) {
	payload := []byte(`{"plan_id":"p1","goal":"g","steps":[{"id":"a","title":"first","type":"tool","tool":{"name":"ping","method":"get","args":{}}},{"id":"b","title":"second","type":"note","depends_on":["a"]}]}`)
	p, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.PlanID != "p1" || len(p.Steps) != 2 {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestNormalizeDedupesDuplicateStepIDs(t *testing.T) {
	payload := []byte(`{"plan_id":"p1","goal":"g","steps":[{"id":"dup","title":"one","type":"note"},{"id":"dup","title":"two","type":"note"}]}`)
	p, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	ids := map[string]bool{}
	for _, s := range p.Steps {
		if ids[s.ID] {
			t.Fatalf("duplicate step id survived normalization: %s", s.ID)
		}
		ids[s.ID] = true
	}
}

func TestNormalizeRejectsUnknownDependency(t *testing.T) {
	payload := []byte(`{"plan_id":"p1","steps":[{"id":"a","title":"x","type":"note","depends_on":["missing"]}]}`)
	_, err := Normalize(payload)
	if err == nil {
		t.Fatalf("expected error for dangling dependency")
	}
	nerr, ok := err.(*NormalizeError)
	if !ok || nerr.Kind != "INVALID_STEPS" {
		t.Fatalf("expected INVALID_STEPS, got %v", err)
	}
}

func TestNormalizeRejectsCycle(t *testing.T) {
	payload := []byte(`{"plan_id":"p1","steps":[{"id":"a","title":"x","type":"note","depends_on":["b"]},{"id":"b","title":"y","type":"note","depends_on":["a"]}]}`)
	_, err := Normalize(payload)
	if err == nil {
		t.Fatalf("expected error for cyclic dependency")
	}
}

func TestNormalizeNonArrayStepsInvalid(t *testing.T) {
	_, err := Normalize([]byte(`{"steps":123}`))
	if err == nil {
		t.Fatalf("expected error for non-array steps")
	}
	nerr, ok := err.(*NormalizeError)
	if !ok || nerr.Kind != "INVALID_STEPS" {
		t.Fatalf("expected INVALID_STEPS, got %v", err)
	}
}

func TestNormalizeMalformedJSON(t *testing.T) {
	_, err := Normalize([]byte(`not json`))
	if err == nil {
		t.Fatalf("expected error for malformed json")
	}
	nerr, ok := err.(*NormalizeError)
	if !ok || nerr.Kind != "UNSUPPORTED_PLAN_FORMAT" {
		t.Fatalf("expected UNSUPPORTED_PLAN_FORMAT, got %v", err)
	}
}

func TestNormalizeCoercesUnknownStepType(t *testing.T) {
	payload := []byte(`{"plan_id":"p1","steps":[{"id":"a","title":"x","type":"bogus"}]}`)
	p, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Steps[0].Type != model.StepTypeNote {
		t.Fatalf("expected unknown type coerced to note, got %s", p.Steps[0].Type)
	}
}
