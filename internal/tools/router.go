// Package tools implements the tool router (spec component C6): a
// registry of capability providers dispatched through one uniform
// contract, with a single canonicalization table resolving method
// aliases before dispatch.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ainoob2025/AICore/internal/model"
)

// Provider is the uniform dispatch surface every capability implements.
// The router never looks up a method by name on a provider beyond this
// single call.
type Provider interface {
	Run(ctx context.Context, method string, args map[string]any) model.ToolResult
}

// aliasTable is the single source of truth for method-name
// canonicalization (spec.md §4.6, Design Notes "Canonicalization is the
// single source of truth"). Keyed by provider name, then alias→canonical.
var aliasTable = map[string]map[string]string{
	"browser": {
		"fetch": "http_get", "get": "http_get", "get_url": "http_get",
		"download": "http_get", "httpget": "http_get",
	},
	"terminal": {
		"exec": "run_cmd", "run": "run_cmd", "cmd": "run_cmd",
	},
	"file": {
		"read": "read_text", "write": "write_text",
		"ls": "list_dir", "dir": "list_dir", "mkdir": "mkdirs",
	},
}

// Canonicalize resolves method to its canonical name for provider, leaving
// it unchanged when no alias applies (including for providers, like ping
// and echo, that have no alias table at all).
func Canonicalize(provider, method string) string {
	if table, ok := aliasTable[provider]; ok {
		if canon, ok := table[method]; ok {
			return canon
		}
	}
	return method
}

// Router dispatches tool calls to registered providers, canonicalizing
// method names first.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRouter constructs a Router with the baseline providers (ping, echo)
// always present, per spec.md §4.6.
func NewRouter() *Router {
	r := &Router{providers: make(map[string]Provider)}
	r.Register("ping", pingProvider{})
	r.Register("echo", echoProvider{})
	return r
}

// Register adds or replaces a provider under name.
func (r *Router) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// AvailableTools returns the sorted set of registered provider names.
func (r *Router) AvailableTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch canonicalizes (name, method) and invokes the provider, catching
// panics as TOOL_EXCEPTION so a misbehaving provider never takes down the
// turn.
func (r *Router) Dispatch(ctx context.Context, name, method string, args map[string]any) (result model.ToolResult) {
	if name == "" || method == "" {
		return model.ErrResult(name, method, "INVALID_TOOL_CALL", map[string]any{"reason": "name and method are required"})
	}

	r.mu.RLock()
	provider, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return model.ErrResult(name, method, "UNKNOWN_TOOL", map[string]any{"available": r.AvailableTools()})
	}

	canon := Canonicalize(name, method)

	defer func() {
		if rec := recover(); rec != nil {
			result = model.ErrResult(name, method, "TOOL_EXCEPTION", map[string]any{
				"type": fmt.Sprintf("%T", rec), "message": fmt.Sprint(rec),
			})
		}
	}()

	return provider.Run(ctx, canon, args)
}

// pingProvider is a baseline liveness provider.
type pingProvider struct{}

func (pingProvider) Run(_ context.Context, method string, _ map[string]any) model.ToolResult {
	if method != "get" && method != "ping" && method != "" {
		return model.ErrResult("ping", method, "UNKNOWN_METHOD", nil)
	}
	return model.OkResult("ping", method, map[string]any{"pong": true})
}

// echoProvider reflects its args back as the result.
type echoProvider struct{}

func (echoProvider) Run(_ context.Context, method string, args map[string]any) model.ToolResult {
	return model.OkResult("echo", method, map[string]any{"echo": args})
}
