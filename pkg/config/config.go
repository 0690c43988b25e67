// Package config loads the agent system configuration from YAML with
// environment variable substitution and sensible defaults.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Iteration ceilings for the development cycle. The coder and reviewer
// share the per-issue counter stored in iteration-<N> labels.
const (
	DefaultMaxDevIterations    = 5
	DefaultMaxReviewIterations = 5
	DefaultMaxAgentIterations  = 50
	DefaultPollSeconds         = 15
	DefaultLLMRetries          = 3
)

// LLM provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Retries     int     `yaml:"retries"`
}

// Config is the root configuration for all agents and the watcher.
type Config struct {
	// Repo is the target repository in "owner/name" form.
	Repo string `yaml:"repo"`

	// Token is the GitHub token used for authenticated clones. The gh CLI
	// handles API auth on its own.
	Token string `yaml:"token"`

	PollSeconds       int  `yaml:"poll_seconds"`
	AutoCodeAfterPlan bool `yaml:"auto_code_after_plan"`

	MaxDevIterations    int `yaml:"max_dev_iterations"`
	MaxReviewIterations int `yaml:"max_review_iterations"`
	MaxAgentIterations  int `yaml:"max_agent_iterations"`

	// ExcludedChecks are CI check names ignored by the reviewer and
	// CI-fixer, typically the agents' own workflow checks.
	ExcludedChecks []string `yaml:"excluded_checks"`

	// StatePath is the sqlite database holding watcher cursors.
	StatePath string `yaml:"state_path"`

	// MetricsAddr, when set, exposes /metrics on this listen address.
	MetricsAddr string `yaml:"metrics_addr"`

	LLM LLMConfig `yaml:"llm"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and validates configuration from a YAML file. ${VAR}
// placeholders are replaced with environment values before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match // Leave the placeholder when the env var is unset
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets the hosting environment (CI jobs, containers)
// override file settings without editing the file.
func applyEnvOverrides(cfg *Config) {
	if repo := os.Getenv("GITHUB_REPOSITORY"); repo != "" {
		cfg.Repo = repo
	}
	if token := os.Getenv("GH_TOKEN"); token != "" {
		cfg.Token = token
	}
	if poll := os.Getenv("POLL_SECONDS"); poll != "" {
		if n, err := strconv.Atoi(poll); err == nil && n > 0 {
			cfg.PollSeconds = n
		}
	}
	if auto := os.Getenv("AUTO_CODE_AFTER_PLAN"); auto != "" {
		cfg.AutoCodeAfterPlan = strings.EqualFold(auto, "true") || auto == "1"
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
}

func applyDefaults(cfg *Config) {
	if cfg.PollSeconds <= 0 {
		cfg.PollSeconds = DefaultPollSeconds
	}
	if cfg.MaxDevIterations <= 0 {
		cfg.MaxDevIterations = DefaultMaxDevIterations
	}
	if cfg.MaxReviewIterations <= 0 {
		cfg.MaxReviewIterations = DefaultMaxReviewIterations
	}
	if cfg.MaxAgentIterations <= 0 {
		cfg.MaxAgentIterations = DefaultMaxAgentIterations
	}
	if cfg.StatePath == "" {
		cfg.StatePath = "watcher_state.db"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderAnthropic
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 8192
	}
	if cfg.LLM.Retries <= 0 {
		cfg.LLM.Retries = DefaultLLMRetries
	}
}

func (c *Config) validate() error {
	if c.Repo == "" {
		return fmt.Errorf("repo is required (owner/name)")
	}
	if !strings.Contains(c.Repo, "/") {
		return fmt.Errorf("repo must be in owner/name form, got %q", c.Repo)
	}
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// Owner returns the repository owner part of Repo.
func (c *Config) Owner() string {
	owner, _, _ := strings.Cut(c.Repo, "/")
	return owner
}

// Name returns the repository name part of Repo.
func (c *Config) Name() string {
	_, name, _ := strings.Cut(c.Repo, "/")
	return name
}
