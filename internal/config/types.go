package config

// Config is the root configuration for annabot.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Routing   RoutingConfig   `yaml:"routing,omitempty"`
	Persona   PersonaConfig   `yaml:"persona,omitempty"`
	Inference InferenceConfig `yaml:"inference,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Dedupe    DedupeConfig    `yaml:"dedupe,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
	WhatsApp     string `yaml:"whatsapp,omitempty"`     // level for the protocol client's own logs
}

// WhatsAppConfig configures the WhatsApp transport.
type WhatsAppConfig struct {
	DeviceStore string `yaml:"deviceStore,omitempty"` // sqlite file holding the device keys; defaults to <data>/whatsapp.db
	OSName      string `yaml:"osName,omitempty"`      // shown in the "linked devices" list
}

// SessionConfig defines session manager behavior.
type SessionConfig struct {
	ReconnectDelaySeconds *int   `yaml:"reconnectDelaySeconds,omitempty"` // defaults to 2; 0 reconnects at once
	AnnounceOnline        *bool  `yaml:"announceOnline,omitempty"`        // defaults to true
	AnnounceText          string `yaml:"announceText,omitempty"`
}

// RoutingConfig defines how inbound messages are selected and answered.
type RoutingConfig struct {
	TriggerPrefix      string   `yaml:"triggerPrefix,omitempty"`
	HistoryLimit       int      `yaml:"historyLimit,omitempty"`
	MemoryLimit        int      `yaml:"memoryLimit,omitempty"`
	MemoryKeywords     []string `yaml:"memoryKeywords,omitempty"`
	QuoteDirect        bool     `yaml:"quoteDirect,omitempty"`
	RecordGroupChatter bool     `yaml:"recordGroupChatter,omitempty"`
	DefaultUserName    string   `yaml:"defaultUserName,omitempty"`
	DefaultGroupName   string   `yaml:"defaultGroupName,omitempty"`
}

// PersonaConfig selects the system prompt persona.
type PersonaConfig struct {
	Prompt string `yaml:"prompt,omitempty"`
	File   string `yaml:"file,omitempty"` // read at startup; wins over Prompt
}

// InferenceConfig selects and configures the chat-completion provider.
type InferenceConfig struct {
	Provider     string   `yaml:"provider,omitempty"` // "openrouter" | "huggingface" | "ollama"
	APIKey       string   `yaml:"apiKey,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Fallbacks    []string `yaml:"fallbacks,omitempty"` // models tried in order on rate limits and outages
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Temperature  *float64 `yaml:"temperature,omitempty"`
	MaxTokens    int      `yaml:"maxTokens,omitempty"`
	Referer      string   `yaml:"referer,omitempty"`
	Title        string   `yaml:"title,omitempty"`
	ProbeOnStart *bool    `yaml:"probeOnStart,omitempty"` // defaults to true
}

// StoreConfig selects the conversation persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver,omitempty"` // "supabase" | "sqlite"
	SupabaseURL string `yaml:"supabaseUrl,omitempty"`
	SupabaseKey string `yaml:"supabaseKey,omitempty"`
	SQLitePath  string `yaml:"sqlitePath,omitempty"` // defaults to <data>/annabot.db
}

// DedupeConfig configures duplicate message suppression.
type DedupeConfig struct {
	Driver     string `yaml:"driver,omitempty"` // "memory" | "redis" | "none"
	RedisURL   string `yaml:"redisUrl,omitempty"`
	TTLMinutes int    `yaml:"ttlMinutes,omitempty"`
}

// GatewayConfig controls the optional HTTP status server.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}
