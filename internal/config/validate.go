package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.WhatsApp != "" && !slices.Contains(validLogLevels, cfg.Logging.WhatsApp) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.whatsapp",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.WhatsApp),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Routing validation
	if cfg.Routing.HistoryLimit < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "routing.historyLimit",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Routing.HistoryLimit),
		})
	}
	if cfg.Routing.MemoryLimit < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "routing.memoryLimit",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Routing.MemoryLimit),
		})
	}

	// Inference validation
	validProviders := []string{"openrouter", "huggingface", "ollama"}
	if !slices.Contains(validProviders, cfg.Inference.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "inference.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Inference.Provider),
		})
	}
	if cfg.Inference.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "inference.maxTokens",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Inference.MaxTokens),
		})
	}

	// Store validation
	validDrivers := []string{"supabase", "sqlite"}
	if !slices.Contains(validDrivers, cfg.Store.Driver) {
		issues = append(issues, ValidationIssue{
			Path:    "store.driver",
			Message: fmt.Sprintf("must be one of %v, got %q", validDrivers, cfg.Store.Driver),
		})
	}

	// Dedupe validation
	validDedupe := []string{"memory", "redis", "none"}
	if !slices.Contains(validDedupe, cfg.Dedupe.Driver) {
		issues = append(issues, ValidationIssue{
			Path:    "dedupe.driver",
			Message: fmt.Sprintf("must be one of %v, got %q", validDedupe, cfg.Dedupe.Driver),
		})
	}
	if cfg.Dedupe.Driver == "redis" && cfg.Dedupe.RedisURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "dedupe.redisUrl",
			Message: "required when dedupe.driver is redis (or set REDIS_URL)",
		})
	}

	return issues
}

// MissingCredentials reports required secrets that are absent. The bot
// refuses to start while any are missing.
func MissingCredentials(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Inference.NeedsAPIKey() && cfg.Inference.APIKey == "" {
		env := "OPENROUTER_API_KEY"
		if cfg.Inference.Provider == "huggingface" {
			env = "HUGGINGFACE_API_KEY"
		}
		issues = append(issues, ValidationIssue{
			Path:    "inference.apiKey",
			Message: env + " is missing",
		})
	}

	if cfg.Store.Driver == "supabase" {
		if cfg.Store.SupabaseURL == "" {
			issues = append(issues, ValidationIssue{
				Path:    "store.supabaseUrl",
				Message: "SUPABASE_URL is missing",
			})
		}
		if cfg.Store.SupabaseKey == "" {
			issues = append(issues, ValidationIssue{
				Path:    "store.supabaseKey",
				Message: "SUPABASE_KEY is missing",
			})
		}
	}

	return issues
}
