package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

type Config struct {
	Port        int
	DatabaseURL string
	AWSRegion   string

	LLMProvider           string
	BedrockModel          string
	BedrockEmbeddingModel string
	EmbeddingDim          int
	BedrockMaxAttempts    int

	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAIEmbeddingModel string
	OpenAIAPIKey         string

	ParamPrefix     string
	APIToken        string
	CardEventsTable string

	AgentMaxIterations int
	AgentTimeout       time.Duration
	StreamTimeout      time.Duration
	MaxUploadBytes     int64
	SearchTopK         int

	AllowedOrigins []string
	RunMigrations  bool
	LogLevel       string
	LogFormat      string
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the environment only.
func FromEnv() (*Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        envInt("PORT", 8000),
		DatabaseURL: databaseURL,
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),

		LLMProvider:           strings.ToLower(getEnv("LLM_PROVIDER", ProviderBedrock)),
		BedrockModel:          getEnv("BEDROCK_LLM_MODEL", "amazon.nova-lite-v1:0"),
		BedrockEmbeddingModel: getEnv("BEDROCK_EMBEDDING_MODEL", "amazon.titan-embed-text-v2:0"),
		EmbeddingDim:          envInt("EMBEDDING_DIM", 1024),
		BedrockMaxAttempts:    envInt("BEDROCK_MAX_ATTEMPTS", 4),

		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),

		ParamPrefix:     strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
		APIToken:        getEnv("API_TOKEN", ""),
		CardEventsTable: getEnv("CARD_EVENTS_TABLE", ""),

		AgentMaxIterations: envInt("AGENT_MAX_ITERATIONS", 10),
		AgentTimeout:       envDuration("AGENT_TIMEOUT", 60*time.Second),
		StreamTimeout:      envDuration("STREAM_TIMEOUT", 120*time.Second),
		MaxUploadBytes:     int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
		SearchTopK:         envInt("SEARCH_TOP_K", 5),

		AllowedOrigins: envList("ALLOWED_ORIGINS"),
		RunMigrations:  envBool("RUN_MIGRATIONS", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	switch cfg.LLMProvider {
	case ProviderBedrock, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("config: LLM_PROVIDER must be %q or %q, got %q", ProviderBedrock, ProviderOpenAI, cfg.LLMProvider)
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, errors.New("config: EMBEDDING_DIM must be positive")
	}
	return cfg, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Param returns the full SSM parameter name under ParamPrefix, or "" when
// no prefix is configured.
func (c *Config) Param(name string) string {
	if c.ParamPrefix == "" {
		return ""
	}
	return c.ParamPrefix + "/" + name
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustEnv(key string) (string, error) {
	v := getEnv(key, "")
	if v == "" {
		return "", fmt.Errorf("config: required environment variable %s is not set", key)
	}
	return v, nil
}

func envInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
