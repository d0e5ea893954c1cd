package plan

import "github.com/ainoob2025/AICore/internal/model"

// MaxBatchSize is the hard cap on the number of calls in one scheduled
// batch (spec.md §5).
const MaxBatchSize = 200

// ReadyBatch is the result of GetReadyToolBatch.
type ReadyBatch struct {
	OK        bool
	ToolCalls []ScheduledCall
	Remaining int
}

// ScheduledCall is one tool call extracted from a ready step, tagged with
// the step id it correlates to so results can be applied back
// deterministically regardless of execution order.
type ScheduledCall struct {
	StepID string
	Name   string
	Method string
	Args   map[string]any
}

// GetReadyToolBatch is a pure function of plan: a step is ready iff it is
// pending, of type tool, and every dependency is done. The batch is the
// first batchSize ready steps in plan order (stable); batchSize is
// clamped to MaxBatchSize.
func GetReadyToolBatch(p *model.Plan, batchSize int) ReadyBatch {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	done := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Status == model.StepStatusDone {
			done[s.ID] = true
		}
	}

	var calls []ScheduledCall
	remaining := 0
	for _, s := range p.Steps {
		if s.Status != model.StepStatusPending || s.Type != model.StepTypeTool {
			continue
		}
		ready := true
		for _, dep := range s.DependsOn {
			if !done[dep] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if len(calls) < batchSize {
			var name, method string
			var args map[string]any
			if s.Tool != nil {
				name, method, args = s.Tool.Name, s.Tool.Method, s.Tool.Args
			}
			calls = append(calls, ScheduledCall{StepID: s.ID, Name: name, Method: method, Args: args})
		} else {
			remaining++
		}
	}

	return ReadyBatch{OK: true, ToolCalls: calls, Remaining: remaining}
}

// ApplyToolResults merges results back into plan, preferring correlation
// by StepID; when a result carries no StepID, it is applied to the first
// pending tool step whose (name, method) matches. A result with ok=true
// transitions its step pending→done with its payload attached; ok=false
// marks the step failed. This is a pure function with respect to plan
// aside from mutating the steps it applies to in place.
func ApplyToolResults(p *model.Plan, results []model.ToolResult) {
	byID := make(map[string]*model.Step, len(p.Steps))
	for _, s := range p.Steps {
		byID[s.ID] = s
	}

	for _, res := range results {
		var target *model.Step
		if res.StepID != "" {
			target = byID[res.StepID]
		}
		if target == nil {
			target = firstPendingMatch(p, res.Name, res.Method)
		}
		if target == nil {
			continue
		}
		if res.OK {
			target.Status = model.StepStatusDone
			target.Result = res.Result
		} else {
			target.Status = model.StepStatusFailed
			target.Result = map[string]any{"error": res.Error, "details": res.Details}
		}
	}
}

func firstPendingMatch(p *model.Plan, name, method string) *model.Step {
	for _, s := range p.Steps {
		if s.Status != model.StepStatusPending || s.Type != model.StepTypeTool || s.Tool == nil {
			continue
		}
		if s.Tool.Name == name && s.Tool.Method == method {
			return s
		}
	}
	return nil
}
