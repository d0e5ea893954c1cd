package tools

import (
	"context"

	"github.com/ainoob2025/AICore/internal/fetch"
	"github.com/ainoob2025/AICore/internal/model"
)

// BrowserProvider implements the "browser" capability's single http_get
// operation by delegating to the guarded fetcher.
type BrowserProvider struct {
	Fetcher *fetch.Fetcher
}

// NewBrowserProvider constructs a BrowserProvider over f.
func NewBrowserProvider(f *fetch.Fetcher) *BrowserProvider {
	return &BrowserProvider{Fetcher: f}
}

func (p *BrowserProvider) Run(ctx context.Context, method string, args map[string]any) model.ToolResult {
	if method != "http_get" {
		return model.ErrResult("browser", method, "UNKNOWN_METHOD", nil)
	}

	url, _ := args["url"].(string)
	if url == "" {
		return model.ErrResult("browser", method, "INVALID_ARGS", map[string]any{"reason": "url is required"})
	}

	timeoutSec := intArg(args, "timeout_sec")
	maxBytes := intArg(args, "max_bytes")
	maxTextChars := intArg(args, "max_text_chars")

	res := p.Fetcher.Get(ctx, url, timeoutSec, maxBytes, maxTextChars)
	if !res.OK {
		return model.ErrResult("browser", method, res.Error, res.Details)
	}
	return model.OkResult("browser", method, map[string]any{
		"url":            res.URL,
		"status":         res.Status,
		"headers":        res.Headers,
		"content_type":   res.ContentType,
		"text":           res.Text,
		"json":           res.JSON,
		"body_truncated": res.BodyTruncated,
		"text_truncated": res.TextTruncated,
	})
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
