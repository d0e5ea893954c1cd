// Package main provides the CLI entry point for AICore, a local-first
// conversational agent runtime.
//
// AICore plans and executes multi-step tasks against an OpenAI-compatible
// local LLM server (e.g. LM Studio), dispatching tool calls through an
// SSRF-guarded HTTP fetcher, a path-confined file provider, and an
// allowlisted subprocess runner, with durable plan checkpoints and a
// conversational/semantic memory layer.
//
// # Basic Usage
//
// Start the server:
//
//	aicore serve --config aicore.yaml
//
// Inspect or clear saved plan checkpoints:
//
//	aicore checkpoints list
//	aicore checkpoints show <plan_id>
//	aicore checkpoints delete <plan_id>
//
// Inspect the semantic index:
//
//	aicore rag stats
//	aicore rag vacuum
//
// # Environment Variables
//
// The optional YAML configuration file is passed with --config/-c; these
// variables always win over it:
//
//   - AICORE_LMSTUDIO_BASE_URL: OpenAI-compatible base URL (default http://127.0.0.1:1234/v1)
//   - AICORE_MAIN_MODEL_ID: model id to request (default local-model)
//   - AICORE_HTTP_ALLOWLIST: comma-separated private hosts the fetcher may reach
//   - AICORE_WORKSPACE_ROOT: root directory the file/terminal providers are confined to
//   - AICORE_CHECKPOINT_DIR, AICORE_CONVLOG_DIR, AICORE_SEMINDEX_PATH: storage roots
//   - AICORE_RATE_LIMIT: requests per 60s window per remote IP (default 30)
//   - AICORE_CHAT_CONCURRENCY: concurrent /chat turns admitted (default 4)
//   - AICORE_LOG_LEVEL: debug, info, warn, or error
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "aicore",
		Short: "AICore - local-first conversational agent runtime",
		Long: `AICore plans and executes multi-step tasks against a local LLM,
dispatching tool calls through guarded fetch/file/terminal providers,
with durable plan checkpoints and conversational/semantic memory.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional; env vars always override)")

	rootCmd.AddCommand(
		buildServeCmd(&configPath),
		buildCheckpointsCmd(&configPath),
		buildRagCmd(&configPath),
	)

	return rootCmd
}
