package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, "recall", cfg.SurrealDBNamespace)
	assert.Equal(t, "conversations", cfg.SurrealDBDatabase)
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, "llama3.2", cfg.LLMModel)
	assert.Equal(t, 1536, cfg.EmbedDimension)
	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.True(t, cfg.SwallowAnswerWriteErrors, "swallow policy is the default")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SURREALDB_NAMESPACE", "other")
	t.Setenv("RECALL_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RECALL_EMBED_DIMENSION", "384")
	t.Setenv("RECALL_STRICT_ANSWER_WRITES", "true")
	t.Setenv("RECALL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "other", cfg.SurrealDBNamespace)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 384, cfg.EmbedDimension)
	assert.False(t, cfg.SwallowAnswerWriteErrors)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"llm_model: mistral\nembed_dimension: 768\n"), 0644))
	t.Setenv("RECALL_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.LLMModel)
	assert.Equal(t, 768, cfg.EmbedDimension)
	// Untouched values keep their environment defaults.
	assert.Equal(t, "recall", cfg.SurrealDBNamespace)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("RECALL_LLM_PROVIDER", "skynet")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("RECALL_CONFIG", "/does/not/exist.yaml")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidateDimension(t *testing.T) {
	cfg := Config{
		LLMProvider:    ProviderOllama,
		EmbedProvider:  ProviderOllama,
		EmbedDimension: 0,
	}
	assert.Error(t, cfg.Validate())

	cfg.EmbedDimension = 1536
	assert.NoError(t, cfg.Validate())
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("hello", "key", "value")

	assert.Contains(t, stderr.String(), "hello")

	// The file side is structured JSON.
	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}
