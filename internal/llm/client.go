// Package llm implements the synchronous JSON chat RPC client (spec
// component C9) against a locally-hosted OpenAI-compatible
// chat-completions endpoint.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ainoob2025/AICore/internal/model"
)

// DefaultTimeout is the default per-call timeout (spec.md §4.5).
const DefaultTimeout = 180 * time.Second

// PlanSystemPrompt mandates the two supported plan dialects only.
const PlanSystemPrompt = `You are a planning engine. Respond with exactly one JSON object, ` +
	`in one of two shapes only: {"steps":[...]} (a full plan) or ` +
	`{"tool_calls":[{"name":...,"method":...,"args":{...}}...],"final":"..."}. ` +
	`Do not include any text outside the JSON object.`

// FinalSystemPrompt mandates the {"final": string} response shape.
const FinalSystemPrompt = `Respond with exactly one JSON object of the shape {"final": "<answer>"} and nothing else.`

// Config configures the LLM client.
type Config struct {
	BaseURL    string
	ModelID    string
	Timeout    time.Duration
	MaxRetries int
}

// Client issues chat-completions requests against a local endpoint.
type Client struct {
	cfg    Config
	client *openai.Client
	logger *slog.Logger

	warmup atomic.Pointer[WarmupStatus]
}

// New constructs a Client. BaseURL must include a scheme (spec.md §6).
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	oaiCfg := openai.DefaultConfig("not-needed")
	oaiCfg.BaseURL = cfg.BaseURL
	return &Client{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oaiCfg),
		logger: logger,
	}
}

// WarmupStatus is the background warmup's atomically-readable status,
// exposed at /metrics (Design Note "Background warmup as supervised
// task").
type WarmupStatus struct {
	Started bool
	Done    bool
	OK      bool
	MS      int64
	Error   string
}

// Warmup returns the most recently published warmup status, or a
// zero-value Started=false status before the background task runs.
func (c *Client) Warmup() WarmupStatus {
	if s := c.warmup.Load(); s != nil {
		return *s
	}
	return WarmupStatus{}
}

// StartWarmup launches a background goroutine that issues a single
// trivial chat and publishes its outcome. It never blocks the caller and
// never gates server readiness.
func (c *Client) StartWarmup(ctx context.Context) {
	c.warmup.Store(&WarmupStatus{Started: true})
	go func() {
		start := time.Now()
		res := c.chat(ctx, "", []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "OK"},
		}, 0.2, 16)
		status := WarmupStatus{Started: true, Done: true, OK: res.OK, MS: time.Since(start).Milliseconds()}
		if !res.OK {
			status.Error = res.Error
		}
		c.warmup.Store(&status)
	}()
}

// Plan issues the plan-elicitation call: temperature 0.2, max_tokens 1800.
func (c *Client) Plan(ctx context.Context, systemPrompt, userPrompt string) model.LLMResult {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: orDefault(systemPrompt, PlanSystemPrompt)},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}
	return c.chat(ctx, c.cfg.ModelID, msgs, 0.2, 1800)
}

// Final issues the final-synthesis call: temperature 0.2, max_tokens 1800.
func (c *Client) Final(ctx context.Context, userPrompt string) model.LLMResult {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: FinalSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}
	return c.chat(ctx, c.cfg.ModelID, msgs, 0.2, 1800)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// chat performs the actual RPC. On transport or HTTP error it returns a
// structured LLMResult rather than raising, per spec.md §4.5.
func (c *Client) chat(ctx context.Context, model_ string, msgs []openai.ChatCompletionMessage, temperature float32, maxTokens int) model.LLMResult {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       model_,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		kind := "HTTP_ERROR"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "LLM_UNREACHABLE"
		}
		c.logger.Warn("llm request failed", "error", err, "kind", kind)
		return model.LLMErr(kind, map[string]any{"code": 0, "reason": err.Error()})
	}

	if len(resp.Choices) == 0 {
		return model.LLMErr("NO_CHOICES", map[string]any{"reason": "empty choices array"})
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return model.LLMErr("INVALID_LLM_RESPONSE", map[string]any{"reason": "empty content"})
	}

	return model.LLMOk(content)
}
