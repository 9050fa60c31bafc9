package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// DefaultReconnectDelaySeconds is the pause between reconnect attempts when
// session.reconnectDelaySeconds is unset.
const DefaultReconnectDelaySeconds = 2

// DefaultGatewayAddr is the status server's listen address when
// gateway.addr is unset.
const DefaultGatewayAddr = "127.0.0.1:18790"

// DefaultMemoryKeywords flag a message for long-term recall.
var DefaultMemoryKeywords = []string{"exam", "birthday", "interview", "meeting", "deadline", "vacation"}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Logging.WhatsApp == "" {
		cfg.Logging.WhatsApp = "warn"
	}
	if cfg.WhatsApp.OSName == "" {
		cfg.WhatsApp.OSName = "annabot"
	}
	if cfg.Session.ReconnectDelaySeconds == nil {
		delay := DefaultReconnectDelaySeconds
		cfg.Session.ReconnectDelaySeconds = &delay
	}
	if cfg.Session.AnnounceText == "" {
		cfg.Session.AnnounceText = "Bot is now connected and online!"
	}
	if cfg.Routing.TriggerPrefix == "" {
		cfg.Routing.TriggerPrefix = "@ai"
	}
	if cfg.Routing.HistoryLimit == 0 {
		cfg.Routing.HistoryLimit = 40
	}
	if cfg.Routing.MemoryLimit == 0 {
		cfg.Routing.MemoryLimit = 5
	}
	if len(cfg.Routing.MemoryKeywords) == 0 {
		cfg.Routing.MemoryKeywords = append([]string(nil), DefaultMemoryKeywords...)
	}
	if cfg.Routing.DefaultUserName == "" {
		cfg.Routing.DefaultUserName = "User"
	}
	if cfg.Routing.DefaultGroupName == "" {
		cfg.Routing.DefaultGroupName = "Group"
	}
	if cfg.Inference.Provider == "" {
		cfg.Inference.Provider = "openrouter"
	}
	if cfg.Inference.Model == "" {
		switch cfg.Inference.Provider {
		case "huggingface":
			cfg.Inference.Model = "gpt2"
		case "ollama":
			cfg.Inference.Model = "llama3"
		default:
			cfg.Inference.Model = "opengvlab/internvl3-14b:free"
		}
	}
	if cfg.Inference.Temperature == nil {
		t := 1.2
		cfg.Inference.Temperature = &t
	}
	if cfg.Inference.MaxTokens == 0 {
		cfg.Inference.MaxTokens = 200
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "supabase"
	}
	if cfg.Dedupe.Driver == "" {
		cfg.Dedupe.Driver = "memory"
	}
	if cfg.Dedupe.TTLMinutes == 0 {
		cfg.Dedupe.TTLMinutes = 60
	}
	if cfg.Gateway.Addr == "" {
		cfg.Gateway.Addr = DefaultGatewayAddr
	}
}

// ReconnectDelay returns the pause between reconnect attempts.
func (c SessionConfig) ReconnectDelay() time.Duration {
	secs := DefaultReconnectDelaySeconds
	if c.ReconnectDelaySeconds != nil {
		secs = *c.ReconnectDelaySeconds
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Announce reports whether the online notice should be sent.
func (c SessionConfig) Announce() bool {
	return c.AnnounceOnline == nil || *c.AnnounceOnline
}

// Probe reports whether the inference key is checked at startup.
func (c InferenceConfig) Probe() bool {
	return c.ProbeOnStart == nil || *c.ProbeOnStart
}

// NeedsAPIKey reports whether the selected provider requires a key.
func (c InferenceConfig) NeedsAPIKey() bool {
	return c.Provider != "ollama"
}

// TTL returns how long a processed message ID is remembered.
func (c DedupeConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}
