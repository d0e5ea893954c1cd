// Package plan implements the plan normalizer and scheduler (spec
// component C5): validating and canonicalizing the two plan dialects the
// LLM may return, and scheduling dependency-ordered tool batches.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ainoob2025/AICore/internal/model"
)

// ErrTooManySteps is returned when a plan exceeds model.MaxStepsPerPlan.
const ErrTooManySteps = "TOO_MANY_STEPS"

// NormalizeError carries a structured planner error kind and raw payload
// for post-mortem, matching spec.md §7's planner error taxonomy.
type NormalizeError struct {
	Kind string
	Raw  any
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("plan: normalize failed: %s", e.Kind)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// rawToolCall mirrors the {tool_calls, final} dialect's element shape.
type rawToolCall struct {
	Name   string         `json:"name"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

// rawToolCallsDialect is the second supported incoming shape.
type rawToolCallsDialect struct {
	ToolCalls []rawToolCall `json:"tool_calls"`
	Final     string        `json:"final"`
}

// rawStep mirrors one element of the full-plan dialect's steps array,
// permissively typed so malformed fields can be coerced rather than
// rejected outright.
type rawStep struct {
	ID        any            `json:"id"`
	Title     any            `json:"title"`
	Type      any            `json:"type"`
	DependsOn any            `json:"depends_on"`
	Tool      *rawToolCall   `json:"tool"`
	Prompt    any            `json:"prompt"`
}

// rawFullPlan mirrors the full-plan dialect.
type rawFullPlan struct {
	PlanID string    `json:"plan_id"`
	Goal   string    `json:"goal"`
	Steps  []rawStep `json:"steps"`
}

// Normalize accepts the raw bytes of a model response payload believed to
// contain a plan (in either supported dialect) and returns a canonical
// model.Plan, or a *NormalizeError describing why it could not.
func Normalize(payload []byte) (*model.Plan, error) {
	var generic map[string]any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return nil, &NormalizeError{Kind: "UNSUPPORTED_PLAN_FORMAT", Raw: string(payload)}
	}

	if stepsRaw, ok := generic["steps"]; ok {
		stepsArr, ok := stepsRaw.([]any)
		if !ok {
			return nil, &NormalizeError{Kind: "INVALID_STEPS", Raw: generic}
		}
		return normalizeFullPlan(generic, stepsArr)
	}

	if _, ok := generic["tool_calls"]; ok {
		var dialect rawToolCallsDialect
		if err := json.Unmarshal(payload, &dialect); err != nil {
			return nil, &NormalizeError{Kind: "UNSUPPORTED_PLAN_FORMAT", Raw: generic}
		}
		return normalizeToolCallsDialect(generic, dialect)
	}

	return nil, &NormalizeError{Kind: "UNSUPPORTED_PLAN_FORMAT", Raw: generic}
}

func planIDFrom(generic map[string]any, payload any) string {
	if v, ok := generic["plan_id"].(string); ok && v != "" {
		return v
	}
	b, _ := json.Marshal(payload)
	return sha256Hex(string(b))[:16]
}

func normalizeFullPlan(generic map[string]any, stepsArr []any) (*model.Plan, error) {
	planID := planIDFrom(generic, generic)
	goal, _ := generic["goal"].(string)

	steps := make([]*model.Step, 0, len(stepsArr))
	seen := make(map[string]bool, len(stepsArr))

	for i, raw := range stepsArr {
		stepMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		step := coerceStep(planID, i, stepMap)
		step.ID = dedupID(step.ID, seen)
		seen[step.ID] = true
		steps = append(steps, step)
	}

	if len(steps) > model.MaxStepsPerPlan {
		return nil, &NormalizeError{Kind: ErrTooManySteps, Raw: generic}
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return nil, &NormalizeError{Kind: "INVALID_STEPS", Raw: generic}
			}
		}
	}
	if hasCycle(steps) {
		return nil, &NormalizeError{Kind: "INVALID_STEPS", Raw: generic}
	}

	return &model.Plan{
		PlanID:    planID,
		Goal:      goal,
		CreatedTS: nowTS(),
		Status:    model.PlanStatusNew,
		Steps:     steps,
	}, nil
}

func normalizeToolCallsDialect(generic map[string]any, dialect rawToolCallsDialect) (*model.Plan, error) {
	planID := planIDFrom(generic, generic)

	steps := make([]*model.Step, 0, len(dialect.ToolCalls)+1)
	seen := make(map[string]bool, len(dialect.ToolCalls)+1)
	finalDeps := make([]string, 0, len(dialect.ToolCalls))

	for i, tc := range dialect.ToolCalls {
		title := fmt.Sprintf("%s.%s", tc.Name, tc.Method)
		id := sha256Hex(fmt.Sprintf("%s|%d|%s", planID, i, model.Truncate(title, 50)))[:16]
		id = dedupID(id, seen)
		seen[id] = true
		finalDeps = append(finalDeps, id)

		steps = append(steps, &model.Step{
			ID:    id,
			Title: model.Truncate(title, model.MaxTitleLen),
			Type:  model.StepTypeTool,
			Tool: &model.ToolCall{
				Name:   tc.Name,
				Method: tc.Method,
				Args:   tc.Args,
			},
			Status: model.StepStatusPending,
		})
	}

	finalID := sha256Hex(fmt.Sprintf("%s|%d|final", planID, len(dialect.ToolCalls)))[:16]
	finalID = dedupID(finalID, seen)
	steps = append(steps, &model.Step{
		ID:        finalID,
		Title:     "final",
		Type:      model.StepTypeNote,
		DependsOn: finalDeps,
		Status:    model.StepStatusPending,
	})

	if len(steps) > model.MaxStepsPerPlan {
		return nil, &NormalizeError{Kind: ErrTooManySteps, Raw: generic}
	}

	return &model.Plan{
		PlanID:    planID,
		Goal:      dialect.Final,
		CreatedTS: nowTS(),
		Status:    model.PlanStatusNew,
		Steps:     steps,
	}, nil
}

func coerceStep(planID string, index int, m map[string]any) *model.Step {
	title, _ := m["title"].(string)

	id, _ := m["id"].(string)
	if id == "" {
		id = sha256Hex(fmt.Sprintf("%s|%d|%s", planID, index, model.Truncate(title, 50)))[:16]
	}

	typ := model.StepType("note")
	if t, ok := m["type"].(string); ok {
		switch model.StepType(t) {
		case model.StepTypeTool, model.StepTypeLLM, model.StepTypeNote:
			typ = model.StepType(t)
		}
	}

	var depends []string
	if raw, ok := m["depends_on"].([]any); ok {
		for _, d := range raw {
			if s, ok := d.(string); ok {
				depends = append(depends, s)
			}
		}
	}

	var tool *model.ToolCall
	if raw, ok := m["tool"].(map[string]any); ok && typ == model.StepTypeTool {
		name, _ := raw["name"].(string)
		method, _ := raw["method"].(string)
		args, _ := raw["args"].(map[string]any)
		tool = &model.ToolCall{Name: name, Method: method, Args: args}
	}

	prompt, _ := m["prompt"].(string)

	return &model.Step{
		ID:        id,
		Title:     model.Truncate(title, model.MaxTitleLen),
		Type:      typ,
		DependsOn: depends,
		Tool:      tool,
		Prompt:    model.Truncate(prompt, model.MaxPromptLen),
		Status:    model.StepStatusPending,
	}
}

func dedupID(id string, seen map[string]bool) string {
	if !seen[id] {
		return id
	}
	for i := 1; ; i++ {
		candidate := sha256Hex(fmt.Sprintf("%s|%d", id, i))[:16]
		if !seen[candidate] {
			return candidate
		}
	}
}

func hasCycle(steps []*model.Step) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	byID := make(map[string]*model.Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
		color[s.ID] = white
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch color[id] {
		case gray:
			return true
		case black:
			return false
		}
		color[id] = gray
		for _, dep := range byID[id].DependsOn {
			if visit(dep) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, s := range steps {
		if color[s.ID] == white {
			if visit(s.ID) {
				return true
			}
		}
	}
	return false
}

func nowTS() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}
