// Package config loads AICore's runtime configuration: environment
// variables are the primary source (spec.md §6), with an optional YAML
// config file scraped for a handful of fallback keys. This intentionally
// does not replicate the teacher's merged/$include loader (config.Load in
// haasonsaas-nexus) since spec.md §1 scopes multi-file config composition
// out.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HTTPBindAddr is the fixed loopback bind address (spec.md §6 "Network
// contract"). Not configurable: AICore is local-first by construction and
// never listens on a non-loopback interface.
const HTTPBindAddr = "127.0.0.1:10010"

// Config is AICore's runtime configuration.
type Config struct {
	LMStudioBaseURL string
	MainModelID     string
	HTTPAllowlist   string
	WorkspaceRoot   string
	CheckpointDir   string
	ConvLogDir      string
	SemIndexPath    string
	GatewayLogPath  string
	RateLimit       int
	RateLimitWindow time.Duration
	ChatConcurrency int
	RequestTimeout  time.Duration
	LogLevel        string
}

// Defaults mirrors the teacher's applyDefaults pattern: zero-valued fields
// get conservative, locally-runnable values.
func Defaults() Config {
	return Config{
		LMStudioBaseURL: "http://127.0.0.1:1234/v1",
		MainModelID:     "local-model",
		HTTPAllowlist:   "",
		WorkspaceRoot:   "./.runtime/workspace",
		CheckpointDir:   "./.runtime/plans",
		ConvLogDir:      "./.runtime/conversations",
		SemIndexPath:    "./.runtime/semindex.db",
		GatewayLogPath:  "./.runtime/logs/gateway_requests.jsonl",
		RateLimit:       30,
		RateLimitWindow: 60 * time.Second,
		ChatConcurrency: 4,
		RequestTimeout:  180 * time.Second,
		LogLevel:        "info",
	}
}

// yamlFallback is the shape scraped from an optional config file: only the
// keys spec.md §4.5 names as fallback sources, under a handful of common
// aliases real configs use for them.
type yamlFallback struct {
	BaseURL string `yaml:"base_url"`
	URL     string `yaml:"url"`
	Endpoint string `yaml:"endpoint"`
	ModelID string `yaml:"model_id"`
	ID      string `yaml:"id"`
	Model   string `yaml:"model"`
}

// Load builds a Config from environment variables, falling back to
// filePath (if non-empty and readable) for base_url/model_id when the
// corresponding env var is unset.
func Load(filePath string) (Config, error) {
	cfg := Defaults()

	if filePath != "" {
		if data, err := os.ReadFile(filePath); err == nil {
			var fb yamlFallback
			if err := yaml.Unmarshal(data, &fb); err == nil {
				if v := firstNonEmpty(fb.BaseURL, fb.URL, fb.Endpoint); v != "" {
					cfg.LMStudioBaseURL = v
				}
				if v := firstNonEmpty(fb.ModelID, fb.ID, fb.Model); v != "" {
					cfg.MainModelID = v
				}
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AICORE_LMSTUDIO_BASE_URL")); v != "" {
		cfg.LMStudioBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_MAIN_MODEL_ID")); v != "" {
		cfg.MainModelID = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_HTTP_ALLOWLIST")); v != "" {
		cfg.HTTPAllowlist = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_WORKSPACE_ROOT")); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_CHECKPOINT_DIR")); v != "" {
		cfg.CheckpointDir = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_CONVLOG_DIR")); v != "" {
		cfg.ConvLogDir = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_SEMINDEX_PATH")); v != "" {
		cfg.SemIndexPath = v
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_RATE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_CHAT_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChatConcurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AICORE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
