// Package orchestrator implements the master orchestrator (spec component
// C10): it sequences one turn from admitted message to finished response,
// driving the context assembler, LLM client, plan normalizer/scheduler,
// tool router, and checkpoint store.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ainoob2025/AICore/internal/assembler"
	"github.com/ainoob2025/AICore/internal/checkpoint"
	"github.com/ainoob2025/AICore/internal/convlog"
	"github.com/ainoob2025/AICore/internal/jsonx"
	"github.com/ainoob2025/AICore/internal/llm"
	"github.com/ainoob2025/AICore/internal/metrics"
	"github.com/ainoob2025/AICore/internal/model"
	"github.com/ainoob2025/AICore/internal/plan"
	"github.com/ainoob2025/AICore/internal/semindex"
	"github.com/ainoob2025/AICore/internal/tools"
)

// Timings records per-phase durations in milliseconds, returned verbatim
// in the response (spec.md §4.2).
type Timings struct {
	Total         int64 `json:"total"`
	MemoryAdd     int64 `json:"memory_add"`
	ContextBuild  int64 `json:"context_build"`
	LLMPlan       int64 `json:"llm_plan"`
	PlannerTools  int64 `json:"planner_tools"`
	LLMFinal      int64 `json:"llm_final"`
}

// Result is the orchestrator's response shape, the "enterprise variant"
// adopted per spec.md §9 Open Questions.
type Result struct {
	OK              bool                `json:"ok"`
	SessionID       string              `json:"session_id"`
	Final           string              `json:"final"`
	ToolResults     []model.ToolResult  `json:"tool_results"`
	Plan            *model.Plan         `json:"plan,omitempty"`
	Error           string              `json:"error,omitempty"`
	Details         map[string]any      `json:"details,omitempty"`
	TimingMS        Timings             `json:"timing_ms"`
	ToolCallsCount  int                 `json:"tool_calls_count"`
	ToolBatches     int                 `json:"tool_batches"`
	Checkpoint      checkpoint.SaveResult `json:"checkpoint"`
}

// Orchestrator wires together the subsystems driving one turn.
type Orchestrator struct {
	Log        *convlog.Log
	Assembler  *assembler.Assembler
	Checkpoint *checkpoint.Store
	Router     *tools.Router
	LLM        *llm.Client
	Index      *semindex.Index
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	BatchSize int
}

// New constructs an Orchestrator. A nil logger falls back to slog.Default.
func New(log *convlog.Log, asm *assembler.Assembler, cp *checkpoint.Store, router *tools.Router, llmClient *llm.Client, index *semindex.Index, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Log: log, Assembler: asm, Checkpoint: cp, Router: router,
		LLM: llmClient, Index: index, Metrics: m, Logger: logger,
		BatchSize: plan.MaxBatchSize,
	}
}

// HandleChat sequences one turn, per spec.md §4.2.
func (o *Orchestrator) HandleChat(ctx context.Context, message, sessionID, planID string) (result Result) {
	start := time.Now()
	var timings Timings

	defer func() {
		if rec := recover(); rec != nil {
			result = Result{
				OK: false, SessionID: sessionID,
				Error: "MASTERAGENT_EXCEPTION",
				Details: map[string]any{"type": fmt.Sprintf("%T", rec), "message": fmt.Sprint(rec)},
				TimingMS: timings,
			}
		}
		timings.Total = time.Since(start).Milliseconds()
		result.TimingMS = timings
	}()

	if sessionID == "" {
		sessionID = "default"
	}

	t0 := time.Now()
	if o.Log != nil {
		if err := o.Log.Append(sessionID, model.Message{Role: model.RoleUser, Content: message}); err != nil {
			o.Logger.Warn("convlog append failed", "error", err)
		}
	}
	timings.MemoryAdd = time.Since(t0).Milliseconds()

	t0 = time.Now()
	var ctxResult assembler.Result
	if o.Assembler != nil {
		var err error
		ctxResult, err = o.Assembler.Build(sessionID, message)
		if err != nil {
			o.Logger.Warn("context build failed", "error", err)
		}
	}
	timings.ContextBuild = time.Since(t0).Milliseconds()

	var p *model.Plan
	var rawPlanText string

	if planID != "" && o.Checkpoint != nil && o.Checkpoint.Exists(planID) {
		state, err := o.Checkpoint.Load(planID)
		if err != nil {
			return o.finishLoadFailure(sessionID, planID, err, timings)
		}
		p = state.Plan
		p.Status = model.PlanStatusRunning
		o.saveCheckpoint(p, model.PlanStatusRunning)
	} else {
		t0 = time.Now()
		llmRes := o.LLM.Plan(ctx, "", ctxResult.ContextText)
		timings.LLMPlan = time.Since(t0).Milliseconds()

		if !llmRes.OK {
			return Result{OK: false, SessionID: sessionID, Error: llmRes.Error, Details: llmRes.Details, TimingMS: timings}
		}
		rawPlanText = llmRes.Text

		objText, found := jsonx.ExtractBalancedObject(rawPlanText)
		if !found {
			return Result{OK: true, SessionID: sessionID, Final: rawPlanText, TimingMS: timings}
		}

		normalized, err := plan.Normalize([]byte(objText))
		if err != nil {
			nerr, _ := err.(*plan.NormalizeError)
			kind := "PLAN_NORMALIZE_FAILED"
			var adapted any
			if nerr != nil {
				kind = nerr.Kind
				adapted = nerr.Raw
			}
			cpResult := o.saveDiagnosticCheckpoint(message, objText, adapted)
			return Result{OK: true, SessionID: sessionID, Final: rawPlanText, Error: "PLAN_NORMALIZE_FAILED", Details: map[string]any{"kind": kind}, TimingMS: timings, Checkpoint: cpResult}
		}
		p = normalized
		p.Status = model.PlanStatusRunning
		o.saveCheckpoint(p, model.PlanStatusRunning)
	}

	var allResults []model.ToolResult
	batches := 0
	toolCallsCount := 0

	t0 = time.Now()
	for {
		ready := plan.GetReadyToolBatch(p, o.BatchSize)
		if len(ready.ToolCalls) == 0 {
			break
		}
		batches++
		batchResults := make([]model.ToolResult, 0, len(ready.ToolCalls))
		for _, call := range ready.ToolCalls {
			toolCallsCount++
			res := o.Router.Dispatch(ctx, call.Name, call.Method, call.Args)
			res.StepID = call.StepID
			batchResults = append(batchResults, res)
		}
		plan.ApplyToolResults(p, batchResults)
		allResults = append(allResults, batchResults...)
		o.saveCheckpoint(p, model.PlanStatusRunning)
	}
	timings.PlannerTools = time.Since(t0).Milliseconds()

	statusSummary := planStatusSummary(p)

	t0 = time.Now()
	finalPrompt := fmt.Sprintf("context:\n%s\n\nplan_status: %s\n\ntool_results: %s",
		ctxResult.ContextText, mustJSON(statusSummary), mustJSON(allResults))
	finalRes := o.LLM.Final(ctx, finalPrompt)
	timings.LLMFinal = time.Since(t0).Milliseconds()

	var finalText string
	if finalRes.OK {
		if obj, found := jsonx.ExtractBalancedObject(finalRes.Text); found {
			var parsed struct {
				Final string `json:"final"`
			}
			if err := json.Unmarshal([]byte(obj), &parsed); err == nil {
				finalText = parsed.Final
			}
		}
		if finalText == "" {
			finalText = finalRes.Text
		}
	}
	if finalText == "" {
		finalText = "(no output)"
	}

	if o.Log != nil {
		if err := o.Log.Append(sessionID, model.Message{Role: model.RoleAssistant, Content: finalText}); err != nil {
			o.Logger.Warn("convlog append failed", "error", err)
		}
	}

	if o.Index != nil {
		o.upsertSummary(sessionID, p.Goal, finalText)
	}

	p.Status = model.PlanStatusDone
	cpResult := o.saveCheckpoint(p, model.PlanStatusDone)

	if o.Metrics != nil {
		o.Metrics.RecordPlanSaved(p.PlanID)
	}

	return Result{
		OK:             true,
		SessionID:      sessionID,
		Final:          finalText,
		ToolResults:    allResults,
		Plan:           p,
		TimingMS:       timings,
		ToolCallsCount: toolCallsCount,
		ToolBatches:    batches,
		Checkpoint:     cpResult,
	}
}

func (o *Orchestrator) finishLoadFailure(sessionID, planID string, err error, timings Timings) Result {
	o.Logger.Warn("checkpoint load failed", "plan_id", planID, "error", err)
	return Result{OK: false, SessionID: sessionID, Error: "SCHEMA_MISMATCH", Details: map[string]any{"message": err.Error()}, TimingMS: timings}
}

// originalCreatedUTC returns the plan's first-save creation timestamp, if
// a checkpoint already exists for it, so repeated saves don't reset
// created_utc to the current save time.
func (o *Orchestrator) originalCreatedUTC(planID string) string {
	prev, err := o.Checkpoint.Load(planID)
	if err != nil {
		return ""
	}
	return prev.CreatedUTC
}

func (o *Orchestrator) saveCheckpoint(p *model.Plan, status model.PlanStatus) checkpoint.SaveResult {
	if o.Checkpoint == nil {
		return checkpoint.SaveResult{}
	}
	state := checkpoint.Wrap(p, status, "", nil, o.originalCreatedUTC(p.PlanID))
	res, err := o.Checkpoint.Save(state)
	if err != nil {
		o.Logger.Warn("checkpoint save failed", "plan_id", p.PlanID, "error", err)
		return checkpoint.SaveResult{}
	}
	return res
}

// saveDiagnosticCheckpoint preserves both the JSON object text extracted
// from the model's reply (raw_plan)
// and, when available, the decoded-but-invalid payload the normalizer
// rejected (adapted_plan), so a failed turn can be diagnosed post-mortem
// (spec.md §4.2 step 4, §7, scenario S8).
func (o *Orchestrator) saveDiagnosticCheckpoint(goal, rawObj string, adapted any) checkpoint.SaveResult {
	if o.Checkpoint == nil {
		return checkpoint.SaveResult{}
	}
	diag := &model.Plan{
		PlanID: sha256Hex(rawObj)[:16],
		Goal:   goal,
		Status: model.PlanStatusFailedNormalize,
	}
	cursors := map[string]any{"raw_plan": rawObj}
	if adapted != nil {
		cursors["adapted_plan"] = adapted
	}
	state := checkpoint.Wrap(diag, model.PlanStatusFailedNormalize, "", cursors, o.originalCreatedUTC(diag.PlanID))
	res, err := o.Checkpoint.Save(state)
	if err != nil {
		o.Logger.Warn("diagnostic checkpoint save failed", "error", err)
		return checkpoint.SaveResult{}
	}
	return res
}

// upsertSummary derives a deterministic chunk id so re-finalizing the
// same (session, date, task, output[:2000]) is idempotent (spec.md §4.2
// step 7).
func (o *Orchestrator) upsertSummary(sessionID, task, output string) {
	date := time.Now().UTC().Format("2006-01-02")
	truncated := model.Truncate(output, 2000)
	chunkID := sha256Hex(fmt.Sprintf("%s|%s|%s|%s", sessionID, date, task, truncated))[:24]
	err := o.Index.UpsertChunk(model.Chunk{
		SourceID: "task_summaries",
		ChunkID:  chunkID,
		Text:     truncated,
	})
	if err != nil {
		o.Logger.Warn("semantic summary upsert failed", "error", err)
	}
}

type statusCounts struct {
	PlanID  string `json:"plan_id"`
	Goal    string `json:"goal"`
	Total   int    `json:"total"`
	Done    int    `json:"done"`
	Failed  int    `json:"failed"`
	Pending int    `json:"pending"`
}

func planStatusSummary(p *model.Plan) statusCounts {
	s := statusCounts{PlanID: p.PlanID, Goal: p.Goal, Total: len(p.Steps)}
	for _, step := range p.Steps {
		switch step.Status {
		case model.StepStatusDone:
			s.Done++
		case model.StepStatusFailed:
			s.Failed++
		case model.StepStatusPending:
			s.Pending++
		}
	}
	return s
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
