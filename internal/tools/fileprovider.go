package tools

import (
	"context"
	"os"
	"sort"

	"github.com/ainoob2025/AICore/internal/files"
	"github.com/ainoob2025/AICore/internal/model"
)

// FileProvider implements the "file" capability: read_text, write_text,
// list_dir, mkdirs, all confined to a workspace root.
type FileProvider struct {
	Resolver *files.Resolver
}

// NewFileProvider constructs a FileProvider confined to root.
func NewFileProvider(root string) *FileProvider {
	return &FileProvider{Resolver: files.NewResolver(root)}
}

func (p *FileProvider) Run(_ context.Context, method string, args map[string]any) model.ToolResult {
	path, _ := args["path"].(string)
	if path == "" {
		return model.ErrResult("file", method, "INVALID_ARGS", map[string]any{"reason": "path is required"})
	}

	resolved, err := p.Resolver.Resolve(path)
	if err != nil {
		return model.ErrResult("file", method, "PERMISSION_ERROR", map[string]any{"message": err.Error()})
	}

	switch method {
	case "read_text":
		data, err := os.ReadFile(resolved)
		if err != nil {
			return model.ErrResult("file", method, "NOT_FOUND", map[string]any{"message": err.Error()})
		}
		return model.OkResult("file", method, map[string]any{"path": path, "text": string(data)})

	case "write_text":
		text, _ := args["text"].(string)
		if err := os.WriteFile(resolved, []byte(text), 0o644); err != nil {
			return model.ErrResult("file", method, "TOOL_EXCEPTION", map[string]any{"message": err.Error()})
		}
		return model.OkResult("file", method, map[string]any{"path": path, "bytes": len(text)})

	case "list_dir":
		entries, err := os.ReadDir(resolved)
		if err != nil {
			return model.ErrResult("file", method, "NOT_FOUND", map[string]any{"message": err.Error()})
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		return model.OkResult("file", method, map[string]any{"path": path, "entries": names})

	case "mkdirs":
		if err := os.MkdirAll(resolved, 0o755); err != nil {
			return model.ErrResult("file", method, "TOOL_EXCEPTION", map[string]any{"message": err.Error()})
		}
		return model.OkResult("file", method, map[string]any{"path": path})

	default:
		return model.ErrResult("file", method, "UNKNOWN_METHOD", nil)
	}
}
