package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the HTTP front
// door, wiring every component: context assembler, LLM client, plan
// normalizer/scheduler, tool router, and checkpoint store.
func buildServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the AICore HTTP front door",
		Long: `Start the AICore HTTP front door, exposing:

  GET  /health      liveness probe
  GET  /health/llm  LLM warmup status
  GET  /metrics     JSON metrics snapshot
  POST /chat        submit a message and get back the orchestrator's result

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
	return cmd
}

// buildCheckpointsCmd creates the "checkpoints" command group for
// inspecting and clearing saved plan checkpoints.
func buildCheckpointsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect and manage saved plan checkpoints",
	}
	cmd.AddCommand(
		buildCheckpointsListCmd(configPath),
		buildCheckpointsShowCmd(configPath),
		buildCheckpointsDeleteCmd(configPath),
	)
	return cmd
}

func buildCheckpointsListCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved plan ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpointsList(cmd, *configPath)
		},
	}
	return cmd
}

func buildCheckpointsShowCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <plan_id>",
		Short: "Print a saved checkpoint as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpointsShow(cmd, *configPath, args[0])
		},
	}
	return cmd
}

func buildCheckpointsDeleteCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <plan_id>",
		Short: "Delete a saved checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpointsDelete(cmd, *configPath, args[0])
		},
	}
	return cmd
}

// buildRagCmd creates the "rag" command group for inspecting the
// semantic index.
func buildRagCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Inspect and maintain the semantic index",
	}
	cmd.AddCommand(buildRagStatsCmd(configPath), buildRagVacuumCmd(configPath))
	return cmd
}

func buildRagStatsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print chunk/source counts for the semantic index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRagStats(cmd, *configPath)
		},
	}
	return cmd
}

func buildRagVacuumCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim space in the semantic index database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRagVacuum(cmd, *configPath)
		},
	}
	return cmd
}
