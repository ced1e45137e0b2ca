package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the comms engine.
type Config struct {
	Port      int
	Version   string
	Data      DataConfig
	Providers ProvidersConfig
	Telemetry TelemetryConfig
}

type DataConfig struct {
	// Backend selects the draft store: "memory" (JSON snapshot) or
	// "sqlite".
	Backend string

	// Dir is where the memory backend writes its snapshot. Empty
	// disables persistence.
	Dir string

	// DraftsDB and DirectoryDB are the sqlite file paths.
	DraftsDB    string
	DirectoryDB string

	// RetentionDays bounds how long unsent drafts are kept.
	RetentionDays int

	// ToneLogCapacity bounds the rolling tone log.
	ToneLogCapacity int
}

type ProvidersConfig struct {
	// Strategy is "fallback" (config order) or "latency".
	Strategy string

	DefaultModel string

	OpenAIKey      string
	OpenAIEndpoint string
	OpenAIModel    string

	AnthropicKey      string
	AnthropicEndpoint string
	AnthropicModel    string

	GeminiKey   string
	GeminiModel string

	OllamaEndpoint string
	OllamaModel    string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("COMMS_PORT", 8080),
		Version: envStr("COMMS_VERSION", "0.2.0"),
		Data: DataConfig{
			Backend:         envStr("COMMS_STORE_BACKEND", "memory"),
			Dir:             envStr("COMMS_DATA_DIR", "data"),
			DraftsDB:        envStr("COMMS_DRAFTS_DB", "data/drafts.db"),
			DirectoryDB:     envStr("COMMS_DIRECTORY_DB", "data/directory.db"),
			RetentionDays:   envInt("COMMS_DRAFT_RETENTION_DAYS", 30),
			ToneLogCapacity: envInt("COMMS_TONELOG_CAPACITY", 100),
		},
		Providers: ProvidersConfig{
			Strategy:          envStr("COMMS_PROVIDER_STRATEGY", "fallback"),
			DefaultModel:      envStr("COMMS_DEFAULT_MODEL", "gpt-4"),
			OpenAIKey:         envStr("OPENAI_API_KEY", ""),
			OpenAIEndpoint:    envStr("OPENAI_ENDPOINT", ""),
			OpenAIModel:       envStr("OPENAI_MODEL", "gpt-4"),
			AnthropicKey:      envStr("ANTHROPIC_API_KEY", ""),
			AnthropicEndpoint: envStr("ANTHROPIC_ENDPOINT", ""),
			AnthropicModel:    envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			GeminiKey:         envStr("GEMINI_API_KEY", ""),
			GeminiModel:       envStr("GEMINI_MODEL", "gemini-2.0-flash"),
			OllamaEndpoint:    envStr("OLLAMA_ENDPOINT", ""),
			OllamaModel:       envStr("OLLAMA_MODEL", "llama3.2"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "blociq-comms-engine"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
