package tools

import (
	"context"
	"testing"

	"github.com/ainoob2025/AICore/internal/model"
)

type panicProviderAdapter struct{}

func (panicProviderAdapter) Run(context.Context, string, map[string]any) model.ToolResult {
	panic("boom")
}

func TestCanonicalizeResolvesAliases(t *testing.T) {
	cases := []struct {
		provider, method, want string
	}{
		{"browser", "fetch", "http_get"},
		{"browser", "get_url", "http_get"},
		{"terminal", "exec", "run_cmd"},
		{"file", "read", "read_text"},
		{"file", "ls", "list_dir"},
		{"file", "mkdir", "mkdirs"},
		{"ping", "get", "get"},
	}
	for _, c := range cases {
		if got := Canonicalize(c.provider, c.method); got != c.want {
			t.Errorf("Canonicalize(%q,%q) = %q, want %q", c.provider, c.method, got, c.want)
		}
	}
}

func TestDispatchPing(t *testing.T) {
	r := NewRouter()
	res := r.Dispatch(context.Background(), "ping", "get", nil)
	if !res.OK || res.Result["pong"] != true {
		t.Fatalf("unexpected ping result: %+v", res)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRouter()
	res := r.Dispatch(context.Background(), "nonexistent", "get", nil)
	if res.OK || res.Error != "UNKNOWN_TOOL" {
		t.Fatalf("expected UNKNOWN_TOOL, got %+v", res)
	}
	if len(res.Details["available"].([]string)) == 0 {
		t.Fatalf("expected available tools listed in details")
	}
}

func TestDispatchInvalidToolCall(t *testing.T) {
	r := NewRouter()
	res := r.Dispatch(context.Background(), "", "", nil)
	if res.OK || res.Error != "INVALID_TOOL_CALL" {
		t.Fatalf("expected INVALID_TOOL_CALL, got %+v", res)
	}
}

func TestDispatchRecoversFromPanickingProvider(t *testing.T) {
	r := NewRouter()
	r.Register("panicky", panicProviderAdapter{})
	res := r.Dispatch(context.Background(), "panicky", "go", nil)
	if res.OK || res.Error != "TOOL_EXCEPTION" {
		t.Fatalf("expected TOOL_EXCEPTION, got %+v", res)
	}
}
