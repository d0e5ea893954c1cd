package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ainoob2025/AICore/internal/assembler"
	"github.com/ainoob2025/AICore/internal/checkpoint"
	"github.com/ainoob2025/AICore/internal/config"
	"github.com/ainoob2025/AICore/internal/convlog"
	"github.com/ainoob2025/AICore/internal/execrunner"
	"github.com/ainoob2025/AICore/internal/fetch"
	"github.com/ainoob2025/AICore/internal/httpapi"
	"github.com/ainoob2025/AICore/internal/llm"
	"github.com/ainoob2025/AICore/internal/logging"
	"github.com/ainoob2025/AICore/internal/metrics"
	"github.com/ainoob2025/AICore/internal/orchestrator"
	"github.com/ainoob2025/AICore/internal/ratelimit"
	"github.com/ainoob2025/AICore/internal/semindex"
	"github.com/ainoob2025/AICore/internal/ssrf"
	"github.com/ainoob2025/AICore/internal/tools"
)

// =============================================================================
// Serve Command Handler
// =============================================================================

// runServe wires every component and blocks serving HTTP until a shutdown
// signal arrives.
func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Output: os.Stderr})
	logger.Info(cmd.Context(), "starting AICore",
		"version", version, "commit", commit, "config", configPath,
		"bind_addr", config.HTTPBindAddr, "model_id", cfg.MainModelID)

	convLog, err := convlog.New(cfg.ConvLogDir)
	if err != nil {
		return fmt.Errorf("convlog: %w", err)
	}
	cp, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	index, err := semindex.Open(cfg.SemIndexPath)
	if err != nil {
		return fmt.Errorf("semindex: %w", err)
	}
	defer index.Close()

	asm := assembler.New(convLog, index, assembler.DefaultConfig())

	allowlist := ssrf.ParseAllowlist(cfg.HTTPAllowlist)

	router := tools.NewRouter()
	router.Register("file", tools.NewFileProvider(cfg.WorkspaceRoot))
	router.Register("browser", tools.NewBrowserProvider(fetch.New(allowlist)))
	router.Register("terminal", tools.NewTerminalProvider(execrunner.New(cfg.WorkspaceRoot, execrunner.DefaultAllowlist)))

	llmClient := llm.New(llm.Config{
		BaseURL: cfg.LMStudioBaseURL,
		ModelID: cfg.MainModelID,
		Timeout: cfg.RequestTimeout,
	}, logger.Slog())
	llmClient.StartWarmup(cmd.Context())

	m := metrics.New()
	orc := orchestrator.New(convLog, asm, cp, router, llmClient, index, m, logger.Slog())

	limiter := ratelimit.New(ratelimit.Config{Limit: cfg.RateLimit, Window: cfg.RateLimitWindow})
	server := httpapi.New(orc, limiter, m, logger, cfg.ChatConcurrency, cfg.GatewayLogPath)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info(ctx, "AICore HTTP front door listening", "addr", config.HTTPBindAddr)

	if err := server.ListenAndServe(ctx, config.HTTPBindAddr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info(context.Background(), "AICore stopped gracefully")
	return nil
}

// =============================================================================
// Checkpoints Command Handlers
// =============================================================================

func runCheckpointsList(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(cfg.CheckpointDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fmt.Fprintln(out, trimJSONExt(e.Name()))
	}
	return nil
}

func runCheckpointsShow(cmd *cobra.Command, configPath, planID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cp, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		return err
	}
	state, err := cp.Load(planID)
	if err != nil {
		return fmt.Errorf("load checkpoint %q: %w", planID, err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func runCheckpointsDelete(cmd *cobra.Command, configPath, planID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cp, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		return err
	}
	if err := os.Remove(cp.PathFor(planID)); err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", planID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", planID)
	return nil
}

func trimJSONExt(name string) string {
	const suffix = ".json"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// =============================================================================
// RAG Command Handlers
// =============================================================================

func runRagStats(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	index, err := semindex.Open(cfg.SemIndexPath)
	if err != nil {
		return err
	}
	defer index.Close()

	stats, err := index.Stats()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func runRagVacuum(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	index, err := semindex.Open(cfg.SemIndexPath)
	if err != nil {
		return err
	}
	defer index.Close()

	start := time.Now()
	if err := index.Vacuum(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "vacuumed %s in %s\n", cfg.SemIndexPath, time.Since(start))
	return nil
}
