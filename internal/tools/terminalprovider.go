package tools

import (
	"context"

	"github.com/ainoob2025/AICore/internal/execrunner"
	"github.com/ainoob2025/AICore/internal/model"
)

// TerminalProvider implements the "terminal" capability's single run_cmd
// operation by delegating to the allowlisted subprocess runner.
type TerminalProvider struct {
	Runner *execrunner.Runner
}

// NewTerminalProvider constructs a TerminalProvider over r.
func NewTerminalProvider(r *execrunner.Runner) *TerminalProvider {
	return &TerminalProvider{Runner: r}
}

func (p *TerminalProvider) Run(ctx context.Context, method string, args map[string]any) model.ToolResult {
	if method != "run_cmd" {
		return model.ErrResult("terminal", method, "UNKNOWN_METHOD", nil)
	}

	cmdStr, _ := args["cmd"].(string)
	var argv []string
	if raw, ok := args["cmd"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				argv = append(argv, s)
			}
		}
	}
	if cmdStr == "" && len(argv) == 0 {
		return model.ErrResult("terminal", method, "INVALID_ARGS", map[string]any{"reason": "cmd is required"})
	}

	timeoutSec := intArg(args, "timeout_sec")
	cwd, _ := args["cwd"].(string)

	env := map[string]string{}
	if raw, ok := args["env"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}

	res := p.Runner.Run(ctx, cmdStr, argv, timeoutSec, cwd, env)
	if !res.OK {
		return model.ErrResult("terminal", method, res.Error, res.Details)
	}
	return model.OkResult("terminal", method, map[string]any{
		"exe":              res.Exe,
		"cmd":              res.Cmd,
		"cwd":              res.Cwd,
		"returncode":       res.ReturnCode,
		"stdout":           res.Stdout,
		"stderr":           res.Stderr,
		"stdout_truncated": res.StdoutTruncated,
		"stderr_truncated": res.StderrTruncated,
	})
}
