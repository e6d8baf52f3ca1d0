// Package config loads Recall configuration from the environment with
// optional YAML file overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM/embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"` // "root" or "database"

	// LLM / embedding providers
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	EmbedProvider   Provider `yaml:"embed_provider"`
	EmbedModel      string   `yaml:"embed_model"`
	EmbedDimension  int      `yaml:"embed_dimension"`
	OllamaHost      string   `yaml:"ollama_host"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`

	// Server
	ListenAddr string `yaml:"listen_addr"`

	// Answer-write failure policy: when true, store read/write failures while
	// attaching an answer are logged and swallowed instead of raised.
	SwallowAnswerWriteErrors bool `yaml:"swallow_answer_write_errors"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables. If RECALL_CONFIG
// points at a YAML file, its values override the environment-derived ones.
func Load() (Config, error) {
	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "recall"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "conversations"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:    Provider(getEnv("RECALL_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:       getEnv("RECALL_LLM_MODEL", "llama3.2"),
		EmbedProvider:  Provider(getEnv("RECALL_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("RECALL_EMBED_MODEL", "nomic-embed-text"),
		EmbedDimension: getEnvInt("RECALL_EMBED_DIMENSION", 1536),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		ListenAddr: getEnv("RECALL_LISTEN_ADDR", ":8000"),

		SwallowAnswerWriteErrors: getEnv("RECALL_STRICT_ANSWER_WRITES", "false") != "true",

		LogFile:  getEnv("RECALL_LOG_FILE", "/tmp/recall.log"),
		LogLevel: parseLogLevel(getEnv("RECALL_LOG_LEVEL", "INFO")),
	}

	if path := os.Getenv("RECALL_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// mergeFile overlays values from a YAML file onto the config.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a provider.
func (c *Config) Validate() error {
	if c.EmbedDimension <= 0 {
		return fmt.Errorf("embed dimension must be positive, got %d", c.EmbedDimension)
	}
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM provider: %s", c.LLMProvider)
	}
	switch c.EmbedProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.EmbedProvider)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
