package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "execution.max_iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// skillNameRegex validates skill name characters.
// Skill names should start with a letter and can contain alphanumeric,
// hyphen, underscore.
var skillNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Model config
	errors = append(errors, c.validateModel()...)

	// Validate Execution config
	errors = append(errors, c.validateExecution()...)

	// Validate Retry config
	errors = append(errors, c.validateRetry()...)

	// Validate Store config
	errors = append(errors, c.validateStore()...)

	// Validate Events config
	errors = append(errors, c.validateEvents()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate Tools config
	errors = append(errors, c.validateTools()...)

	// Validate Skills config
	errors = append(errors, c.validateSkills()...)

	return errors
}

// validateModel validates the ModelConfig
func (c *Config) validateModel() []ValidationError {
	var errors []ValidationError

	if c.Model.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "model.base_url",
			Value:   c.Model.BaseURL,
			Message: "cannot be empty",
		})
	} else if u, err := url.Parse(c.Model.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "model.base_url",
			Value:   c.Model.BaseURL,
			Message: "must be a valid URL like http://127.0.0.1:1337/v1",
		})
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "model.temperature",
			Value:   c.Model.Temperature,
			Message: "must be between 0 and 2",
		})
	}

	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		errors = append(errors, ValidationError{
			Field:   "model.top_p",
			Value:   c.Model.TopP,
			Message: "must be between 0 and 1 (0 = unset)",
		})
	}

	if c.Model.MaxTokens < 0 {
		errors = append(errors, ValidationError{
			Field:   "model.max_tokens",
			Value:   c.Model.MaxTokens,
			Message: "must be non-negative (0 = server default)",
		})
	}

	const maxRequestTimeout = 3600 // 1 hour
	if c.Model.RequestTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "model.request_timeout_seconds",
			Value:   c.Model.RequestTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Model.RequestTimeoutSeconds > maxRequestTimeout {
		errors = append(errors, ValidationError{
			Field:   "model.request_timeout_seconds",
			Value:   c.Model.RequestTimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxRequestTimeout),
		})
	}

	return errors
}

// validateExecution validates the ExecutionConfig
func (c *Config) validateExecution() []ValidationError {
	var errors []ValidationError

	const maxIterationsLimit = 1000
	if c.Execution.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.max_iterations",
			Value:   c.Execution.MaxIterations,
			Message: "must be at least 1",
		})
	}
	if c.Execution.MaxIterations > maxIterationsLimit {
		errors = append(errors, ValidationError{
			Field:   "execution.max_iterations",
			Value:   c.Execution.MaxIterations,
			Message: fmt.Sprintf("exceeds maximum of %d", maxIterationsLimit),
		})
	}

	const maxToolCallsLimit = 1000
	if c.Execution.MaxToolCalls < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.max_tool_calls",
			Value:   c.Execution.MaxToolCalls,
			Message: "must be at least 1",
		})
	}
	if c.Execution.MaxToolCalls > maxToolCallsLimit {
		errors = append(errors, ValidationError{
			Field:   "execution.max_tool_calls",
			Value:   c.Execution.MaxToolCalls,
			Message: fmt.Sprintf("exceeds maximum of %d", maxToolCallsLimit),
		})
	}

	const maxToolTimeout = 3600 // 1 hour
	if c.Execution.ToolTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.tool_timeout_seconds",
			Value:   c.Execution.ToolTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Execution.ToolTimeoutSeconds > maxToolTimeout {
		errors = append(errors, ValidationError{
			Field:   "execution.tool_timeout_seconds",
			Value:   c.Execution.ToolTimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxToolTimeout),
		})
	}

	if c.Execution.StepToolBudget < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.step_tool_budget",
			Value:   c.Execution.StepToolBudget,
			Message: "must be at least 1",
		})
	}

	const maxTextOnlyLimit = 100
	if c.Execution.MaxTextOnly < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.max_text_only",
			Value:   c.Execution.MaxTextOnly,
			Message: "must be at least 1",
		})
	}
	if c.Execution.MaxTextOnly > maxTextOnlyLimit {
		errors = append(errors, ValidationError{
			Field:   "execution.max_text_only",
			Value:   c.Execution.MaxTextOnly,
			Message: fmt.Sprintf("exceeds maximum of %d", maxTextOnlyLimit),
		})
	}

	if c.Execution.MaxTokensPerIssue < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.max_tokens_per_issue",
			Value:   c.Execution.MaxTokensPerIssue,
			Message: "must be non-negative (0 disables limit)",
		})
	}

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	const maxAttemptsLimit = 100
	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Retry.MaxAttempts > maxAttemptsLimit {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: fmt.Sprintf("exceeds maximum of %d", maxAttemptsLimit),
		})
	}

	if c.Retry.BaseDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.base_delay_ms",
			Value:   c.Retry.BaseDelayMs,
			Message: "must be non-negative",
		})
	}

	if c.Retry.MaxDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_ms",
			Value:   c.Retry.MaxDelayMs,
			Message: "must be non-negative",
		})
	}

	// If both are set, base delay should not exceed the cap
	if c.Retry.MaxDelayMs > 0 && c.Retry.BaseDelayMs > c.Retry.MaxDelayMs {
		errors = append(errors, ValidationError{
			Field:   "retry.base_delay_ms",
			Value:   c.Retry.BaseDelayMs,
			Message: fmt.Sprintf("should not exceed max_delay_ms (%v)", c.Retry.MaxDelayMs),
		})
	}

	if c.Retry.Multiplier < 1.0 {
		errors = append(errors, ValidationError{
			Field:   "retry.multiplier",
			Value:   c.Retry.Multiplier,
			Message: "must be at least 1.0",
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if c.Store.Dir != "" {
		errors = append(errors, validatePath(c.Store.Dir, "store.dir")...)
	}

	return errors
}

// validateEvents validates the EventsConfig
func (c *Config) validateEvents() []ValidationError {
	var errors []ValidationError

	if c.Events.NATSURL != "" {
		if !strings.Contains(c.Events.NATSURL, "://") {
			errors = append(errors, ValidationError{
				Field:   "events.nats_url",
				Value:   c.Events.NATSURL,
				Message: "must be a URL like nats://127.0.0.1:4222",
			})
		}

		if c.Events.SubjectPrefix == "" {
			errors = append(errors, ValidationError{
				Field:   "events.subject_prefix",
				Value:   c.Events.SubjectPrefix,
				Message: "cannot be empty when nats_url is set",
			})
		}
	}

	if c.Events.SubjectPrefix != "" {
		prefix := c.Events.SubjectPrefix

		// NATS subjects are dot-separated tokens without spaces or wildcards
		if strings.ContainsAny(prefix, " \t*>") {
			errors = append(errors, ValidationError{
				Field:   "events.subject_prefix",
				Value:   prefix,
				Message: "cannot contain spaces or NATS wildcard characters (* >)",
			})
		}
		if strings.HasPrefix(prefix, ".") || strings.HasSuffix(prefix, ".") || strings.Contains(prefix, "..") {
			errors = append(errors, ValidationError{
				Field:   "events.subject_prefix",
				Value:   prefix,
				Message: "must be dot-separated tokens without leading, trailing, or empty segments",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.File != "" {
		errors = append(errors, validatePath(c.Logging.File, "logging.file")...)
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateTools validates the ToolsConfig
func (c *Config) validateTools() []ValidationError {
	var errors []ValidationError

	if c.Tools.Root == "" {
		errors = append(errors, ValidationError{
			Field:   "tools.root",
			Value:   c.Tools.Root,
			Message: "cannot be empty (use \".\" for the current directory)",
		})
	} else {
		errors = append(errors, validatePath(c.Tools.Root, "tools.root")...)
	}

	for name, policy := range c.Tools.Policies {
		if name == "" {
			errors = append(errors, ValidationError{
				Field:   "tools.policies",
				Value:   name,
				Message: "tool name cannot be empty",
			})
			continue
		}
		if !IsValidPolicy(policy) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tools.policies.%s", name),
				Value:   policy,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPolicies(), ", ")),
			})
		}
	}

	return errors
}

// validateSkills validates the inline skill declarations and skills_file
func (c *Config) validateSkills() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool)
	for i, skill := range c.Skills {
		fieldName := fmt.Sprintf("skills[%d].name", i)

		if skill.Name == "" {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   skill.Name,
				Message: "cannot be empty",
			})
			continue
		}

		if !skillNameRegex.MatchString(skill.Name) {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   skill.Name,
				Message: "must start with a letter and contain only alphanumeric characters, hyphens, or underscores",
			})
		}

		if seen[skill.Name] {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   skill.Name,
				Message: "duplicate skill name",
			})
		}
		seen[skill.Name] = true
	}

	if c.SkillsFile != "" {
		errors = append(errors, validatePath(c.SkillsFile, "skills_file")...)
	}

	return errors
}

// validatePath performs common path sanity checks
func validatePath(path, field string) []ValidationError {
	var errors []ValidationError

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	// Reasonable path length limit (most filesystems have limits around 4096)
	const maxPathLength = 4096
	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
