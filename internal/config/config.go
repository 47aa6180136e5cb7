package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete osagent configuration
type Config struct {
	Model      ModelConfig     `mapstructure:"model"`
	Execution  ExecutionConfig `mapstructure:"execution"`
	Retry      RetryConfig     `mapstructure:"retry"`
	Store      StoreConfig     `mapstructure:"store"`
	Events     EventsConfig    `mapstructure:"events"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Tools      ToolsConfig     `mapstructure:"tools"`
	Skills     []SkillConfig   `mapstructure:"skills"`
	SkillsFile string          `mapstructure:"skills_file"`
}

// ModelConfig controls the connection to the OpenAI-compatible model server
type ModelConfig struct {
	// BaseURL is the API base, e.g. "http://127.0.0.1:1337/v1" for a local
	// Osaurus server. Any OpenAI-compatible endpoint works.
	BaseURL string `mapstructure:"base_url"`
	// Name is the model identifier sent with each request.
	// Empty uses the server's default model.
	Name string `mapstructure:"name"`
	// APIKey is sent as a bearer token when non-empty.
	// Local servers generally do not need one.
	APIKey string `mapstructure:"api_key"`
	// Temperature is the sampling temperature (0 to 2)
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens caps completion length per request (0 = server default)
	MaxTokens int `mapstructure:"max_tokens"`
	// TopP is the nucleus sampling parameter (0 = unset)
	TopP float64 `mapstructure:"top_p"`
	// SystemPrompt overrides the built-in system prompt when non-empty
	SystemPrompt string `mapstructure:"system_prompt"`
	// RequestTimeoutSeconds bounds a single model request including streaming
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// ExecutionConfig controls the agent execution loop
type ExecutionConfig struct {
	// MaxIterations is the maximum number of model round-trips per issue
	MaxIterations int `mapstructure:"max_iterations"`
	// MaxToolCalls is the maximum number of tool executions per issue
	MaxToolCalls int `mapstructure:"max_tool_calls"`
	// ToolTimeoutSeconds bounds a single tool execution
	ToolTimeoutSeconds int `mapstructure:"tool_timeout_seconds"`
	// StepToolBudget is the number of model sub-calls allowed per plan step
	// when executing a stepped plan
	StepToolBudget int `mapstructure:"step_tool_budget"`
	// MaxTextOnly aborts the loop after this many consecutive model
	// responses that neither call a tool nor signal completion
	MaxTextOnly int `mapstructure:"max_text_only"`
	// MaxTokensPerIssue limits total token usage per issue (0 = unlimited)
	MaxTokensPerIssue int64 `mapstructure:"max_tokens_per_issue"`
}

// RetryConfig controls retry backoff for transient execution failures
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelayMs is the backoff base delay in milliseconds
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	// MaxDelayMs caps the backoff delay in milliseconds
	MaxDelayMs int `mapstructure:"max_delay_ms"`
	// Multiplier is the exponential backoff factor
	Multiplier float64 `mapstructure:"multiplier"`
}

// StoreConfig controls issue persistence
type StoreConfig struct {
	// Dir is the directory holding state.json and events.jsonl.
	// Empty keeps all state in memory only.
	// Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir"`
}

// EventsConfig controls event publishing
type EventsConfig struct {
	// NATSURL enables publishing lifecycle events to a NATS server when
	// non-empty, e.g. "nats://127.0.0.1:4222". Empty disables publishing.
	NATSURL string `mapstructure:"nats_url"`
	// SubjectPrefix is prepended to event types to form NATS subjects,
	// e.g. "osagent.events" publishes on "osagent.events.issue.started"
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path. Empty writes to stderr.
	// Supports ~ for home directory expansion.
	File string `mapstructure:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// ToolsConfig controls the built-in tool sandbox and permission policies
type ToolsConfig struct {
	// Root is the directory the file tools are confined to (default: ".")
	Root string `mapstructure:"root"`
	// Policies overrides the permission policy per tool name.
	// Values: "auto", "ask", "deny".
	Policies map[string]string `mapstructure:"policies"`
}

// SkillConfig declares a skill inline in the config file. Skills are
// instruction packs the planner can select for an issue; a selected
// skill's prompt is appended to the execution system prompt.
type SkillConfig struct {
	// Name identifies the skill for selection
	Name string `mapstructure:"name"`
	// Description tells the planner what the skill is for
	Description string `mapstructure:"description"`
	// Prompt is the instruction text injected when the skill is selected
	Prompt string `mapstructure:"prompt"`
}

// RequestTimeout returns the model request timeout as a time.Duration
func (c *ModelConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ToolTimeout returns the per-tool execution timeout as a time.Duration
func (c *ExecutionConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// BaseDelay returns the backoff base delay as a time.Duration
func (c *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff delay cap as a time.Duration
func (c *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// ResolveDir returns the resolved store directory path.
// An empty Dir stays empty (in-memory store). A path starting with ~ is
// expanded to the user's home directory. A relative path is resolved
// relative to baseDir.
func (c *StoreConfig) ResolveDir(baseDir string) string {
	if c.Dir == "" {
		return ""
	}

	path := expandHome(c.Dir)

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// ResolveFile returns the resolved log file path, expanding a leading ~.
// An empty File stays empty (stderr).
func (c *LoggingConfig) ResolveFile() string {
	if c.File == "" {
		return ""
	}
	return expandHome(c.File)
}

// expandHome expands a leading ~ or ~/ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			BaseURL:               "http://127.0.0.1:1337/v1",
			Name:                  "", // Server default model
			APIKey:                "",
			Temperature:           0.7,
			MaxTokens:             4096,
			TopP:                  0, // Unset
			SystemPrompt:          "",
			RequestTimeoutSeconds: 300,
		},
		Execution: ExecutionConfig{
			MaxIterations:      20,
			MaxToolCalls:       10,
			ToolTimeoutSeconds: 120,
			StepToolBudget:     3,
			MaxTextOnly:        3,
			MaxTokensPerIssue:  0, // No limit by default
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 1000,
			MaxDelayMs:  30000,
			Multiplier:  2.0,
		},
		Store: StoreConfig{
			Dir: "", // In-memory only by default
		},
		Events: EventsConfig{
			NATSURL:       "", // Publishing off by default
			SubjectPrefix: "osagent.events",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			File:       "", // stderr
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Tools: ToolsConfig{
			Root:     ".",
			Policies: map[string]string{},
		},
		Skills:     []SkillConfig{},
		SkillsFile: "",
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Model defaults
	viper.SetDefault("model.base_url", defaults.Model.BaseURL)
	viper.SetDefault("model.name", defaults.Model.Name)
	viper.SetDefault("model.api_key", defaults.Model.APIKey)
	viper.SetDefault("model.temperature", defaults.Model.Temperature)
	viper.SetDefault("model.max_tokens", defaults.Model.MaxTokens)
	viper.SetDefault("model.top_p", defaults.Model.TopP)
	viper.SetDefault("model.system_prompt", defaults.Model.SystemPrompt)
	viper.SetDefault("model.request_timeout_seconds", defaults.Model.RequestTimeoutSeconds)

	// Execution defaults
	viper.SetDefault("execution.max_iterations", defaults.Execution.MaxIterations)
	viper.SetDefault("execution.max_tool_calls", defaults.Execution.MaxToolCalls)
	viper.SetDefault("execution.tool_timeout_seconds", defaults.Execution.ToolTimeoutSeconds)
	viper.SetDefault("execution.step_tool_budget", defaults.Execution.StepToolBudget)
	viper.SetDefault("execution.max_text_only", defaults.Execution.MaxTextOnly)
	viper.SetDefault("execution.max_tokens_per_issue", defaults.Execution.MaxTokensPerIssue)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.base_delay_ms", defaults.Retry.BaseDelayMs)
	viper.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMs)
	viper.SetDefault("retry.multiplier", defaults.Retry.Multiplier)

	// Store defaults
	viper.SetDefault("store.dir", defaults.Store.Dir)

	// Events defaults
	viper.SetDefault("events.nats_url", defaults.Events.NATSURL)
	viper.SetDefault("events.subject_prefix", defaults.Events.SubjectPrefix)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Tools defaults
	viper.SetDefault("tools.root", defaults.Tools.Root)
	viper.SetDefault("tools.policies", defaults.Tools.Policies)

	// Skills defaults
	viper.SetDefault("skills", defaults.Skills)
	viper.SetDefault("skills_file", defaults.SkillsFile)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "osagent")
	}
	// Fall back to ~/.config/osagent
	home, err := os.UserHomeDir()
	if err != nil {
		return ".osagent"
	}
	return filepath.Join(home, ".config", "osagent")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidPolicies returns the list of valid tool permission policy values
func ValidPolicies() []string {
	return []string{"auto", "ask", "deny"}
}

// IsValidPolicy checks if the given policy value is valid
func IsValidPolicy(policy string) bool {
	for _, valid := range ValidPolicies() {
		if policy == valid {
			return true
		}
	}
	return false
}
