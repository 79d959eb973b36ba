package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fintalk")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, ":8000", cfg.Addr())
	require.Equal(t, ProviderBedrock, cfg.LLMProvider)
	require.Equal(t, "amazon.nova-lite-v1:0", cfg.BedrockModel)
	require.Equal(t, 1024, cfg.EmbeddingDim)
	require.Equal(t, 10, cfg.AgentMaxIterations)
	require.Equal(t, 60*time.Second, cfg.AgentTimeout)
	require.Equal(t, 120*time.Second, cfg.StreamTimeout)
	require.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	require.Equal(t, 5, cfg.SearchTopK)
	require.Empty(t, cfg.AllowedOrigins)
	require.False(t, cfg.RunMigrations)
	require.Empty(t, cfg.Param("api-token"))
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fintalk")
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("AGENT_TIMEOUT", "15s")
	t.Setenv("RUN_MIGRATIONS", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://fintalk.example ,")
	t.Setenv("PARAM_PREFIX", "/fintalk/prod/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	require.Equal(t, 15*time.Second, cfg.AgentTimeout)
	require.True(t, cfg.RunMigrations)
	require.Equal(t, []string{"http://localhost:3000", "https://fintalk.example"}, cfg.AllowedOrigins)
	require.Equal(t, "/fintalk/prod/api-token", cfg.Param("api-token"))
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fintalk")
	t.Setenv("PORT", "eighty")
	t.Setenv("STREAM_TIMEOUT", "-3s")
	t.Setenv("RUN_MIGRATIONS", "maybe")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, 120*time.Second, cfg.StreamTimeout)
	require.False(t, cfg.RunMigrations)
}

func TestFromEnv_Errors(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/fintalk")
		t.Setenv("LLM_PROVIDER", "gemini")
		_, err := FromEnv()
		require.Error(t, err)
		require.Contains(t, err.Error(), "LLM_PROVIDER")
	})
}
