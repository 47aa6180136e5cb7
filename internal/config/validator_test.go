package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

// hasFieldError reports whether errs contains an error for the given field.
func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate_Model(t *testing.T) {
	t.Run("empty base_url", func(t *testing.T) {
		cfg := Default()
		cfg.Model.BaseURL = ""
		if !hasFieldError(cfg.Validate(), "model.base_url") {
			t.Error("expected error for empty base_url")
		}
	})

	t.Run("malformed base_url", func(t *testing.T) {
		cfg := Default()
		cfg.Model.BaseURL = "not a url"
		if !hasFieldError(cfg.Validate(), "model.base_url") {
			t.Error("expected error for malformed base_url")
		}
	})

	t.Run("valid https base_url", func(t *testing.T) {
		cfg := Default()
		cfg.Model.BaseURL = "https://api.example.com/v1"
		if hasFieldError(cfg.Validate(), "model.base_url") {
			t.Error("https URL should be valid")
		}
	})

	t.Run("temperature bounds", func(t *testing.T) {
		for _, temp := range []float64{-0.1, 2.1} {
			cfg := Default()
			cfg.Model.Temperature = temp
			if !hasFieldError(cfg.Validate(), "model.temperature") {
				t.Errorf("expected error for temperature %v", temp)
			}
		}
		for _, temp := range []float64{0, 0.7, 2} {
			cfg := Default()
			cfg.Model.Temperature = temp
			if hasFieldError(cfg.Validate(), "model.temperature") {
				t.Errorf("temperature %v should be valid", temp)
			}
		}
	})

	t.Run("top_p bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Model.TopP = 1.5
		if !hasFieldError(cfg.Validate(), "model.top_p") {
			t.Error("expected error for top_p > 1")
		}
	})

	t.Run("negative max_tokens", func(t *testing.T) {
		cfg := Default()
		cfg.Model.MaxTokens = -1
		if !hasFieldError(cfg.Validate(), "model.max_tokens") {
			t.Error("expected error for negative max_tokens")
		}
	})

	t.Run("zero request timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Model.RequestTimeoutSeconds = 0
		if !hasFieldError(cfg.Validate(), "model.request_timeout_seconds") {
			t.Error("expected error for zero request timeout")
		}
	})

	t.Run("excessive request timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Model.RequestTimeoutSeconds = 7200
		if !hasFieldError(cfg.Validate(), "model.request_timeout_seconds") {
			t.Error("expected error for excessive request timeout")
		}
	})
}

func TestConfig_Validate_Execution(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero max_iterations", func(c *Config) { c.Execution.MaxIterations = 0 }, "execution.max_iterations"},
		{"excessive max_iterations", func(c *Config) { c.Execution.MaxIterations = 2000 }, "execution.max_iterations"},
		{"zero max_tool_calls", func(c *Config) { c.Execution.MaxToolCalls = 0 }, "execution.max_tool_calls"},
		{"zero tool_timeout", func(c *Config) { c.Execution.ToolTimeoutSeconds = 0 }, "execution.tool_timeout_seconds"},
		{"excessive tool_timeout", func(c *Config) { c.Execution.ToolTimeoutSeconds = 7200 }, "execution.tool_timeout_seconds"},
		{"zero step_tool_budget", func(c *Config) { c.Execution.StepToolBudget = 0 }, "execution.step_tool_budget"},
		{"zero max_text_only", func(c *Config) { c.Execution.MaxTextOnly = 0 }, "execution.max_text_only"},
		{"negative max_tokens_per_issue", func(c *Config) { c.Execution.MaxTokensPerIssue = -1 }, "execution.max_tokens_per_issue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if !hasFieldError(cfg.Validate(), tt.field) {
				t.Errorf("expected error for field %s", tt.field)
			}
		})
	}

	t.Run("zero max_tokens_per_issue is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Execution.MaxTokensPerIssue = 0
		if hasFieldError(cfg.Validate(), "execution.max_tokens_per_issue") {
			t.Error("zero max_tokens_per_issue should be valid (means unlimited)")
		}
	})
}

func TestConfig_Validate_Retry(t *testing.T) {
	t.Run("zero max_attempts", func(t *testing.T) {
		cfg := Default()
		cfg.Retry.MaxAttempts = 0
		if !hasFieldError(cfg.Validate(), "retry.max_attempts") {
			t.Error("expected error for zero max_attempts")
		}
	})

	t.Run("negative base delay", func(t *testing.T) {
		cfg := Default()
		cfg.Retry.BaseDelayMs = -1
		if !hasFieldError(cfg.Validate(), "retry.base_delay_ms") {
			t.Error("expected error for negative base_delay_ms")
		}
	})

	t.Run("base delay above cap", func(t *testing.T) {
		cfg := Default()
		cfg.Retry.BaseDelayMs = 60000
		cfg.Retry.MaxDelayMs = 30000
		if !hasFieldError(cfg.Validate(), "retry.base_delay_ms") {
			t.Error("expected error when base_delay_ms exceeds max_delay_ms")
		}
	})

	t.Run("multiplier below one", func(t *testing.T) {
		cfg := Default()
		cfg.Retry.Multiplier = 0.5
		if !hasFieldError(cfg.Validate(), "retry.multiplier") {
			t.Error("expected error for multiplier < 1.0")
		}
	})

	t.Run("multiplier of one is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Retry.Multiplier = 1.0
		if hasFieldError(cfg.Validate(), "retry.multiplier") {
			t.Error("multiplier of 1.0 should be valid (constant backoff)")
		}
	})
}

func TestConfig_Validate_Store(t *testing.T) {
	t.Run("empty dir is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Dir = ""
		if hasFieldError(cfg.Validate(), "store.dir") {
			t.Error("empty store.dir should be valid (in-memory)")
		}
	})

	t.Run("null byte in dir", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Dir = "state\x00dir"
		if !hasFieldError(cfg.Validate(), "store.dir") {
			t.Error("expected error for null byte in store.dir")
		}
	})
}

func TestConfig_Validate_Events(t *testing.T) {
	t.Run("empty nats_url is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Events.NATSURL = ""
		if hasFieldError(cfg.Validate(), "events.nats_url") {
			t.Error("empty nats_url should be valid (publishing off)")
		}
	})

	t.Run("valid nats_url", func(t *testing.T) {
		cfg := Default()
		cfg.Events.NATSURL = "nats://127.0.0.1:4222"
		if hasFieldError(cfg.Validate(), "events.nats_url") {
			t.Error("nats:// URL should be valid")
		}
	})

	t.Run("malformed nats_url", func(t *testing.T) {
		cfg := Default()
		cfg.Events.NATSURL = "127.0.0.1:4222"
		if !hasFieldError(cfg.Validate(), "events.nats_url") {
			t.Error("expected error for nats_url without scheme")
		}
	})

	t.Run("empty subject prefix with nats enabled", func(t *testing.T) {
		cfg := Default()
		cfg.Events.NATSURL = "nats://127.0.0.1:4222"
		cfg.Events.SubjectPrefix = ""
		if !hasFieldError(cfg.Validate(), "events.subject_prefix") {
			t.Error("expected error for empty subject_prefix when nats_url is set")
		}
	})

	t.Run("subject prefix with wildcard", func(t *testing.T) {
		cfg := Default()
		cfg.Events.SubjectPrefix = "osagent.*"
		if !hasFieldError(cfg.Validate(), "events.subject_prefix") {
			t.Error("expected error for wildcard in subject_prefix")
		}
	})

	t.Run("subject prefix with trailing dot", func(t *testing.T) {
		cfg := Default()
		cfg.Events.SubjectPrefix = "osagent.events."
		if !hasFieldError(cfg.Validate(), "events.subject_prefix") {
			t.Error("expected error for trailing dot in subject_prefix")
		}
	})
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			if hasFieldError(cfg.Validate(), "logging.level") {
				t.Errorf("level %q should be valid", level)
			}
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "verbose"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("uppercase level is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("zero max_size_mb", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 0
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error for zero max_size_mb")
		}
	})

	t.Run("excessive max_size_mb", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 2000
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error for excessive max_size_mb")
		}
	})

	t.Run("negative max_backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		if !hasFieldError(cfg.Validate(), "logging.max_backups") {
			t.Error("expected error for negative max_backups")
		}
	})
}

func TestConfig_Validate_Tools(t *testing.T) {
	t.Run("empty root", func(t *testing.T) {
		cfg := Default()
		cfg.Tools.Root = ""
		if !hasFieldError(cfg.Validate(), "tools.root") {
			t.Error("expected error for empty tools.root")
		}
	})

	t.Run("valid policy overrides", func(t *testing.T) {
		cfg := Default()
		cfg.Tools.Policies = map[string]string{
			"write_file": "ask",
			"read_file":  "auto",
			"list_files": "deny",
		}
		errs := cfg.Validate()
		for _, err := range errs {
			if strings.HasPrefix(err.Field, "tools.policies") {
				t.Errorf("valid policies should not error: %v", err)
			}
		}
	})

	t.Run("invalid policy value", func(t *testing.T) {
		cfg := Default()
		cfg.Tools.Policies = map[string]string{"write_file": "maybe"}
		if !hasFieldError(cfg.Validate(), "tools.policies.write_file") {
			t.Error("expected error for invalid policy value")
		}
	})

	t.Run("empty tool name", func(t *testing.T) {
		cfg := Default()
		cfg.Tools.Policies = map[string]string{"": "auto"}
		if !hasFieldError(cfg.Validate(), "tools.policies") {
			t.Error("expected error for empty tool name")
		}
	})
}

func TestConfig_Validate_Skills(t *testing.T) {
	t.Run("valid skills", func(t *testing.T) {
		cfg := Default()
		cfg.Skills = []SkillConfig{
			{Name: "code-review", Description: "review code", Prompt: "Review carefully."},
			{Name: "summarize", Description: "summarize text", Prompt: "Be brief."},
		}
		errs := cfg.Validate()
		for _, err := range errs {
			if strings.HasPrefix(err.Field, "skills") {
				t.Errorf("valid skills should not error: %v", err)
			}
		}
	})

	t.Run("empty skill name", func(t *testing.T) {
		cfg := Default()
		cfg.Skills = []SkillConfig{{Name: ""}}
		if !hasFieldError(cfg.Validate(), "skills[0].name") {
			t.Error("expected error for empty skill name")
		}
	})

	t.Run("invalid skill name characters", func(t *testing.T) {
		cfg := Default()
		cfg.Skills = []SkillConfig{{Name: "1bad name!"}}
		if !hasFieldError(cfg.Validate(), "skills[0].name") {
			t.Error("expected error for invalid skill name")
		}
	})

	t.Run("duplicate skill names", func(t *testing.T) {
		cfg := Default()
		cfg.Skills = []SkillConfig{
			{Name: "summarize"},
			{Name: "summarize"},
		}
		if !hasFieldError(cfg.Validate(), "skills[1].name") {
			t.Error("expected error for duplicate skill name")
		}
	})
}
