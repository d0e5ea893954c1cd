// Package model holds the data types shared across AICore's subsystems:
// messages, chunks, plans, steps, checkpoints, and the tagged result types
// used at component boundaries instead of dictionary-shaped payloads.
package model

import "fmt"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one immutable turn in a conversation log.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp float64        `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Chunk is a unit of retrievable text in the semantic index, keyed by
// (SourceID, ChunkID).
type Chunk struct {
	SourceID  string         `json:"source_id"`
	ChunkID   string         `json:"chunk_id"`
	Text      string         `json:"text"`
	Meta      map[string]any `json:"meta,omitempty"`
	UpdatedTS float64        `json:"updated_ts"`
}

// PlanStatus enumerates the lifecycle states of a Plan.
type PlanStatus string

const (
	PlanStatusNew             PlanStatus = "new"
	PlanStatusRunning         PlanStatus = "running"
	PlanStatusDone            PlanStatus = "done"
	PlanStatusFailed          PlanStatus = "failed"
	PlanStatusFailedNormalize PlanStatus = "failed_normalize"
)

// StepType enumerates the kinds of work a Step represents.
type StepType string

const (
	StepTypeTool StepType = "tool"
	StepTypeLLM  StepType = "llm"
	StepTypeNote StepType = "note"
)

// StepStatus enumerates the lifecycle states of a Step.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusDone    StepStatus = "done"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// MaxStepsPerPlan is the hard cap on steps in a single plan (spec.md §3).
const MaxStepsPerPlan = 10000

// MaxTitleLen is the truncation length for Step.Title.
const MaxTitleLen = 200

// MaxPromptLen is the truncation length for Step.Prompt.
const MaxPromptLen = 8000

// MaxSummaryLen is the truncation length for Checkpoint.Summary.
const MaxSummaryLen = 2000

// ToolCall names the provider/method/args a tool step wants executed.
type ToolCall struct {
	Name   string         `json:"name"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
}

// Step is one node in a Plan's DAG.
type Step struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Type       StepType       `json:"type"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Tool       *ToolCall      `json:"tool,omitempty"`
	Prompt     string         `json:"prompt,omitempty"`
	Status     StepStatus     `json:"status"`
	Result     map[string]any `json:"result,omitempty"`
}

// Checkpoint is an in-plan marker of a phase transition.
type Checkpoint struct {
	AtStep  string  `json:"at_step"`
	TS      float64 `json:"ts"`
	Summary string  `json:"summary"`
}

// Plan is the canonical DAG of steps derived from an LLM response or
// resumed from disk.
type Plan struct {
	PlanID      string       `json:"plan_id"`
	Goal        string       `json:"goal"`
	CreatedTS   float64      `json:"created_ts"`
	Status      PlanStatus   `json:"status"`
	Steps       []*Step      `json:"steps"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
}

// StepByID returns the step with the given id, or nil.
func (p *Plan) StepByID(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ToolResult is the tagged sum type returned by the tool router: either a
// successful payload or a structured error. Construct only through
// OkResult/ErrResult so call sites must branch on OK before reading the payload.
type ToolResult struct {
	OK      bool           `json:"ok"`
	Name    string         `json:"name,omitempty"`
	Method  string         `json:"method,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"_step_id,omitempty"`
}

// OkResult constructs a successful ToolResult.
func OkResult(name, method string, result map[string]any) ToolResult {
	return ToolResult{OK: true, Name: name, Method: method, Result: result}
}

// ErrResult constructs a failed ToolResult.
func ErrResult(name, method, kind string, details map[string]any) ToolResult {
	return ToolResult{OK: false, Name: name, Method: method, Error: kind, Details: details}
}

// LLMResult is the tagged sum type returned by the LLM client.
type LLMResult struct {
	OK      bool
	Text    string
	Error   string
	Details map[string]any
}

// LLMOk constructs a successful LLMResult.
func LLMOk(text string) LLMResult { return LLMResult{OK: true, Text: text} }

// LLMErr constructs a failed LLMResult.
func LLMErr(kind string, details map[string]any) LLMResult {
	return LLMResult{OK: false, Error: kind, Details: details}
}

// PlanOpKind discriminates a PlanOp.
type PlanOpKind int

const (
	PlanOpNew PlanOpKind = iota
	PlanOpResume
)

// PlanOp tags whether a turn starts a new plan or resumes an existing one.
type PlanOp struct {
	Kind   PlanOpKind
	PlanID string
}

// NewPlanOp constructs a PlanOp for starting a fresh plan.
func NewPlanOp() PlanOp { return PlanOp{Kind: PlanOpNew} }

// ResumePlanOp constructs a PlanOp for resuming an existing plan id.
func ResumePlanOp(planID string) PlanOp { return PlanOp{Kind: PlanOpResume, PlanID: planID} }

func (o PlanOp) String() string {
	if o.Kind == PlanOpResume {
		return fmt.Sprintf("resume(%s)", o.PlanID)
	}
	return "new"
}

// Truncate cuts s to at most n runes, matching the spec's char-count caps.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
