package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dinoki-ai/osagent/internal/config"
	"github.com/dinoki-ai/osagent/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the osagent configuration",
	Long: `Inspect and edit the osagent configuration.

Examples:
  osagent config show
  osagent config set model.name qwen2.5-coder
  osagent config set tools.policies.write_file ask
  osagent config init
  osagent config path`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write it to the config file.

Keys use dotted paths matching the config file layout, for example
model.name or retry.max_attempts. Tool policies are set with
tools.policies.<tool>, for example tools.policies.write_file.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location and search paths",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBool
)

var validKeys = map[string]keyKind{
	"model.base_url":                 kindString,
	"model.name":                     kindString,
	"model.api_key":                  kindString,
	"model.temperature":              kindFloat,
	"model.max_tokens":               kindInt,
	"model.top_p":                    kindFloat,
	"model.system_prompt":            kindString,
	"model.request_timeout_seconds":  kindInt,
	"execution.max_iterations":       kindInt,
	"execution.max_tool_calls":       kindInt,
	"execution.tool_timeout_seconds": kindInt,
	"execution.step_tool_budget":     kindInt,
	"execution.max_text_only":        kindInt,
	"execution.max_tokens_per_issue": kindInt,
	"retry.max_attempts":             kindInt,
	"retry.base_delay_ms":            kindInt,
	"retry.max_delay_ms":             kindInt,
	"retry.multiplier":               kindFloat,
	"store.dir":                      kindString,
	"events.nats_url":                kindString,
	"events.subject_prefix":          kindString,
	"logging.enabled":                kindBool,
	"logging.level":                  kindString,
	"logging.file":                   kindString,
	"logging.max_size_mb":            kindInt,
	"logging.max_backups":            kindInt,
	"logging.compress":               kindBool,
	"tools.root":                     kindString,
	"skills_file":                    kindString,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Printf("%s# %s%s\n", colorGray, file, colorReset)
	} else {
		fmt.Printf("%s# built-in defaults (no config file found)%s\n", colorGray, colorReset)
	}

	fmt.Println("model:")
	fmt.Printf("  base_url: %s\n", cfg.Model.BaseURL)
	fmt.Printf("  name: %s\n", orDefault(cfg.Model.Name, "(server default)"))
	fmt.Printf("  api_key: %s\n", maskSecret(cfg.Model.APIKey))
	fmt.Printf("  temperature: %g\n", cfg.Model.Temperature)
	fmt.Printf("  max_tokens: %d\n", cfg.Model.MaxTokens)
	fmt.Printf("  request_timeout_seconds: %d\n", cfg.Model.RequestTimeoutSeconds)
	fmt.Println("execution:")
	fmt.Printf("  max_iterations: %d\n", cfg.Execution.MaxIterations)
	fmt.Printf("  max_tool_calls: %d\n", cfg.Execution.MaxToolCalls)
	fmt.Printf("  tool_timeout_seconds: %d\n", cfg.Execution.ToolTimeoutSeconds)
	fmt.Printf("  step_tool_budget: %d\n", cfg.Execution.StepToolBudget)
	fmt.Printf("  max_text_only: %d\n", cfg.Execution.MaxTextOnly)
	fmt.Printf("  max_tokens_per_issue: %d\n", cfg.Execution.MaxTokensPerIssue)
	fmt.Println("retry:")
	fmt.Printf("  max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  base_delay_ms: %d\n", cfg.Retry.BaseDelayMs)
	fmt.Printf("  max_delay_ms: %d\n", cfg.Retry.MaxDelayMs)
	fmt.Printf("  multiplier: %g\n", cfg.Retry.Multiplier)
	fmt.Println("store:")
	fmt.Printf("  dir: %s\n", orDefault(cfg.Store.Dir, "(in-memory)"))
	fmt.Println("events:")
	fmt.Printf("  nats_url: %s\n", orDefault(cfg.Events.NATSURL, "(disabled)"))
	fmt.Printf("  subject_prefix: %s\n", cfg.Events.SubjectPrefix)
	fmt.Println("logging:")
	fmt.Printf("  enabled: %t\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  file: %s\n", orDefault(cfg.Logging.File, "(stderr)"))
	fmt.Println("tools:")
	fmt.Printf("  root: %s\n", cfg.Tools.Root)
	if len(cfg.Tools.Policies) > 0 {
		fmt.Println("  policies:")
		names := make([]string, 0, len(cfg.Tools.Policies))
		for name := range cfg.Tools.Policies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("    %s: %s\n", name, cfg.Tools.Policies[name])
		}
	}
	if len(cfg.Skills) > 0 {
		fmt.Println("skills:")
		for _, sk := range cfg.Skills {
			fmt.Printf("  - %s\n", sk.Name)
		}
	}
	if cfg.SkillsFile != "" {
		fmt.Printf("skills_file: %s\n", cfg.SkillsFile)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	value, err := parseConfigValue(key, raw)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	viper.Set(key, value)
	if err := viper.WriteConfigAs(config.ConfigFile()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %v in %s\n", key, value, config.ConfigFile())
	return nil
}

// parseConfigValue validates key and converts raw to the key's type.
func parseConfigValue(key, raw string) (any, error) {
	if name, ok := strings.CutPrefix(key, "tools.policies."); ok && name != "" {
		if !config.IsValidPolicy(raw) {
			return nil, fmt.Errorf("invalid policy %q: valid policies are %s",
				raw, strings.Join(config.ValidPolicies(), ", "))
		}
		return raw, nil
	}
	if key == "logging.level" && !isValidLevel(raw) {
		return nil, fmt.Errorf("invalid log level %q: valid levels are %s",
			raw, strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
	}

	kind, ok := validKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s requires an integer value, got %q", key, raw)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s requires a numeric value, got %q", key, raw)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s requires true or false, got %q", key, raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func isValidLevel(s string) bool {
	for _, lvl := range logging.ValidLevels() {
		if strings.EqualFold(s, lvl) {
			return true
		}
	}
	return false
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Printf("Active config: %s\n", file)
	} else {
		fmt.Println("Active config: (none, using built-in defaults)")
	}
	fmt.Println("Search paths:")
	fmt.Printf("  %s\n", config.ConfigFile())
	fmt.Println("  $HOME/.config/osagent/config.yaml")
	fmt.Println("  ./config.yaml")
	fmt.Println("Environment variables: OSAGENT_* (e.g., OSAGENT_MODEL_NAME)")
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "(set)"
}

const starterConfig = `# osagent configuration.
# Uncomment and edit the settings you need; anything left commented
# falls back to the built-in default shown.

# model:
#   base_url: http://127.0.0.1:1337/v1
#   name: ""
#   api_key: ""
#   temperature: 0.7
#   max_tokens: 4096
#   request_timeout_seconds: 300

# execution:
#   max_iterations: 20
#   max_tool_calls: 10
#   tool_timeout_seconds: 120
#   step_tool_budget: 3
#   max_text_only: 3
#   max_tokens_per_issue: 0

# retry:
#   max_attempts: 3
#   base_delay_ms: 1000
#   max_delay_ms: 30000
#   multiplier: 2.0

# store:
#   dir: ~/.local/share/osagent

# events:
#   nats_url: nats://127.0.0.1:4222
#   subject_prefix: osagent.events

# logging:
#   enabled: true
#   level: info
#   file: ""
#   max_size_mb: 10
#   max_backups: 3
#   compress: false

# tools:
#   root: .
#   policies:
#     write_file: ask

# skills:
#   - name: reviewer
#     description: Reviews code changes for correctness
#     prompt: |
#       Focus on correctness first, style second.
`
