// Package assembler implements the context assembler (spec component C4):
// it composes a bounded prompt context from the conversation log and the
// semantic index.
package assembler

import (
	"fmt"
	"strings"

	"github.com/ainoob2025/AICore/internal/convlog"
	"github.com/ainoob2025/AICore/internal/semindex"
)

// Config tunes the assembler's retrieval and budget behavior.
type Config struct {
	EpisodicTurns    int
	SemanticTopK     int
	SnippetMaxChars  int
	CharBudget       int
}

// DefaultConfig matches the defaults named in spec.md §4.3.
func DefaultConfig() Config {
	return Config{
		EpisodicTurns:   20,
		SemanticTopK:    8,
		SnippetMaxChars: 900,
		CharBudget:      18000,
	}
}

// Assembler builds context blocks from a conversation log and a semantic
// index.
type Assembler struct {
	Log   *convlog.Log
	Index *semindex.Index
	Cfg   Config
}

// New constructs an Assembler with cfg (zero-valued fields fall back to
// DefaultConfig).
func New(log *convlog.Log, index *semindex.Index, cfg Config) *Assembler {
	def := DefaultConfig()
	if cfg.EpisodicTurns <= 0 {
		cfg.EpisodicTurns = def.EpisodicTurns
	}
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = def.SemanticTopK
	}
	if cfg.SnippetMaxChars <= 0 {
		cfg.SnippetMaxChars = def.SnippetMaxChars
	}
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = def.CharBudget
	}
	return &Assembler{Log: log, Index: index, Cfg: cfg}
}

// Result is the assembled context, along with the raw pieces that went
// into it so callers can inspect what was retrieved.
type Result struct {
	OK          bool     `json:"ok"`
	ContextText string   `json:"context_text"`
	Episodic    []string `json:"episodic"`
	Semantic    []string `json:"semantic"`
	Budget      int      `json:"budget"`
}

// Build composes a labeled context block: task, episodic (role-tagged
// recent turns), semantic (retrieved chunks prefixed by source/chunk).
// When the composed text exceeds the character budget, the tail is kept —
// the most recent conversation and retrieved snippets survive truncation.
func (a *Assembler) Build(sessionID, task string) (Result, error) {
	episodicLines, err := a.episodic(sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("assembler: episodic: %w", err)
	}

	semanticLines, err := a.semantic(task)
	if err != nil {
		return Result{}, fmt.Errorf("assembler: semantic: %w", err)
	}

	var b strings.Builder
	b.WriteString("## task\n")
	b.WriteString(task)
	b.WriteString("\n\n## episodic\n")
	for _, l := range episodicLines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n## semantic\n")
	for _, l := range semanticLines {
		b.WriteString(l)
		b.WriteString("\n")
	}

	text := b.String()
	if len([]rune(text)) > a.Cfg.CharBudget {
		r := []rune(text)
		text = string(r[len(r)-a.Cfg.CharBudget:])
	}

	return Result{
		OK:          true,
		ContextText: text,
		Episodic:    episodicLines,
		Semantic:    semanticLines,
		Budget:      a.Cfg.CharBudget,
	}, nil
}

func (a *Assembler) episodic(sessionID string) ([]string, error) {
	if a.Log == nil {
		return nil, nil
	}
	msgs, err := a.Log.GetConversation(sessionID, a.Cfg.EpisodicTurns)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return lines, nil
}

func (a *Assembler) semantic(query string) ([]string, error) {
	if a.Index == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	hits, err := a.Index.Search(query, a.Cfg.SemanticTopK, "")
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		snippet := h.Snippet
		if r := []rune(snippet); len(r) > a.Cfg.SnippetMaxChars {
			snippet = string(r[:a.Cfg.SnippetMaxChars])
		}
		lines = append(lines, fmt.Sprintf("[%s/%s] %s", h.SourceID, h.ChunkID, snippet))
	}
	return lines, nil
}
