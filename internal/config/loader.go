package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Inference.APIKey = expandEnvVars(cfg.Inference.APIKey)
	cfg.Store.SupabaseURL = expandEnvVars(cfg.Store.SupabaseURL)
	cfg.Store.SupabaseKey = expandEnvVars(cfg.Store.SupabaseKey)
	cfg.Dedupe.RedisURL = expandEnvVars(cfg.Dedupe.RedisURL)
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped and variables already set are never overwritten.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults plus environment only.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Defaults(), err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyEnvOverrides reads the well-known environment variables and
// overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANNABOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ANNABOT_INFERENCE_PROVIDER"); v != "" {
		cfg.Inference.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ANNABOT_MODEL"); v != "" {
		cfg.Inference.Model = v
	}
	if v := os.Getenv("ANNABOT_STORE"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("ANNABOT_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Enabled = true
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.Store.SupabaseURL = v
	}
	if v := os.Getenv("SUPABASE_KEY"); v != "" {
		cfg.Store.SupabaseKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Dedupe.RedisURL = v
		if cfg.Dedupe.Driver == "" {
			cfg.Dedupe.Driver = "redis"
		}
	}
	if cfg.Inference.APIKey == "" {
		switch cfg.Inference.Provider {
		case "", "openrouter":
			cfg.Inference.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "huggingface":
			cfg.Inference.APIKey = os.Getenv("HUGGINGFACE_API_KEY")
		}
	}
}
