// Package app wires configuration, AWS clients, storage, the agent and the
// HTTP surface into a runnable service. The API server, the Lambda
// entrypoint and the operations CLI all build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbu-europe/fintalk/internal/agent"
	"github.com/sbu-europe/fintalk/internal/config"
	"github.com/sbu-europe/fintalk/internal/db"
	"github.com/sbu-europe/fintalk/internal/healthcheck"
	apphttp "github.com/sbu-europe/fintalk/internal/http"
	"github.com/sbu-europe/fintalk/internal/integrations/bedrock"
	"github.com/sbu-europe/fintalk/internal/integrations/openai"
	"github.com/sbu-europe/fintalk/internal/integrations/paramstore"
	"github.com/sbu-europe/fintalk/internal/repository"
	"github.com/sbu-europe/fintalk/internal/tools"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

const (
	paramAPIToken    = "api-token"
	paramOpenAIToken = "open-ai-token"
)

// LLM is a chat model that can also embed text.
type LLM interface {
	agent.Model
	usecase.Embedder
}

// App holds the long-lived components of a running service.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool        *pgxpool.Pool
	Cardholders *repository.CardholderRepository
	Documents   *repository.DocumentRepository
	// CardEvents is nil when CARD_EVENTS_TABLE is not configured.
	CardEvents *repository.CardEventLog

	LLM         LLM
	Agent       *agent.Agent
	Completions *usecase.CompletionService
	Uploads     *usecase.DocumentService
	Health      *healthcheck.Service

	Handler *apphttp.Handler
	Router  http.Handler
	// APIToken is the bearer token callers must present; "" disables it.
	APIToken string

	params paramstore.Getter
}

// Core builds storage, AWS clients and the model client, without the agent
// or the HTTP layer. The CLI uses it directly.
func Core(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithRetryMaxAttempts(cfg.BedrockMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}

	if cfg.ParamPrefix != "" {
		store, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		a.params = store
	}

	if cfg.RunMigrations {
		version, err := db.Migrate(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		logger.Info("database migrated", "version", version)
	}

	a.Pool, err = db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if a.Cardholders, err = repository.NewCardholderRepository(a.Pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	if a.Documents, err = repository.NewDocumentRepository(a.Pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	if cfg.CardEventsTable != "" {
		a.CardEvents, err = repository.NewCardEventLog(awsdynamodb.NewFromConfig(awsCfg), cfg.CardEventsTable)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	a.LLM, err = NewLLM(cfg, awsCfg, a.params)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Build assembles the whole service. A failure to build the agent does not
// fail Build: the service starts with a disabled agent and reports it
// through the health check and 503 answers.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a, err := Core(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Agent = a.newAgent(ctx)

	a.Completions, err = usecase.NewCompletionService(a.Agent,
		usecase.WithTimeouts(cfg.AgentTimeout, cfg.StreamTimeout),
		usecase.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.Uploads, err = usecase.NewDocumentService(a.LLM, a.Documents,
		usecase.WithMaxUploadBytes(cfg.MaxUploadBytes),
		usecase.WithDocumentLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Health = healthcheck.New(logger,
		healthcheck.Postgres(a.Pool),
		healthcheck.VectorStore(a.Documents),
		healthcheck.Agent(a.Agent),
	)

	a.Handler, err = apphttp.NewHandler(a.Completions, a.Uploads, a.Health,
		apphttp.WithModelID(modelID(cfg)),
		apphttp.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	token, err := ResolveAPIToken(ctx, cfg, a.params)
	if err != nil {
		a.Close()
		return nil, err
	}
	if token == "" {
		logger.Warn("API authentication disabled: no API_TOKEN or api-token parameter configured")
	}

	a.APIToken = token
	a.Router = apphttp.NewRouter(a.Handler, apphttp.RouterConfig{
		APIToken:       token,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	return a, nil
}

func (a *App) newAgent(ctx context.Context) *agent.Agent {
	toolset, err := a.tools()
	if err != nil {
		a.Logger.Error("agent tools unavailable", "err", err)
		return agent.Disabled(err)
	}
	ag, err := agent.New(a.LLM, toolset,
		agent.WithMaxIterations(a.Config.AgentMaxIterations),
		agent.WithLogger(a.Logger),
	)
	if err != nil {
		a.Logger.Error("agent could not be built", "err", err)
		return agent.Disabled(err)
	}
	if err := ag.Start(ctx); err != nil {
		a.Logger.Error("agent could not be started", "err", err)
		return agent.Disabled(err)
	}
	return ag
}

func (a *App) tools() ([]agent.Tool, error) {
	search, err := tools.NewSearchDocuments(a.LLM, a.Documents, a.Config.SearchTopK, a.Logger)
	if err != nil {
		return nil, err
	}
	opts := []tools.CardOption{tools.WithCardLogger(a.Logger)}
	if a.CardEvents != nil {
		opts = append(opts, tools.WithEventRecorder(a.CardEvents))
	}
	block, err := tools.NewBlockCreditCard(a.Cardholders, opts...)
	if err != nil {
		return nil, err
	}
	enable, err := tools.NewEnableCreditCard(a.Cardholders, opts...)
	if err != nil {
		return nil, err
	}
	return []agent.Tool{search, block, enable}, nil
}

// Close stops the agent and releases the database pool.
func (a *App) Close() {
	if a.Agent != nil {
		_ = a.Agent.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// NewLLM returns the model client selected by LLM_PROVIDER.
func NewLLM(cfg *config.Config, awsCfg aws.Config, params paramstore.Getter) (LLM, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		tokens, err := OpenAITokens(cfg, params)
		if err != nil {
			return nil, err
		}
		c, err := openai.NewClient(tokens,
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithModel(cfg.OpenAIModel),
			openai.WithEmbeddingModel(cfg.OpenAIEmbeddingModel, cfg.EmbeddingDim),
		)
		if err != nil {
			return nil, fmt.Errorf("app: create OpenAI client: %w", err)
		}
		return c, nil
	default:
		c, err := bedrock.New(bedrockruntime.NewFromConfig(awsCfg),
			bedrock.WithModelID(cfg.BedrockModel),
			bedrock.WithEmbeddingModel(cfg.BedrockEmbeddingModel, cfg.EmbeddingDim),
		)
		if err != nil {
			return nil, fmt.Errorf("app: create Bedrock client: %w", err)
		}
		return c, nil
	}
}

// OpenAITokens prefers OPENAI_API_KEY and falls back to the open-ai-token
// parameter under PARAM_PREFIX.
func OpenAITokens(cfg *config.Config, params paramstore.Getter) (openai.TokenSource, error) {
	if cfg.OpenAIAPIKey != "" {
		return openai.StaticToken(cfg.OpenAIAPIKey), nil
	}
	name := cfg.Param(paramOpenAIToken)
	if name == "" || params == nil {
		return nil, errors.New("app: LLM_PROVIDER=openai needs OPENAI_API_KEY or PARAM_PREFIX")
	}
	src, err := paramstore.NewTokenSource(params, name)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return src, nil
}

// ResolveAPIToken returns the bearer token protecting the API: API_TOKEN,
// else the api-token parameter, else "" (authentication off). A configured
// parameter that cannot be read is an error so the API never opens up by
// accident.
func ResolveAPIToken(ctx context.Context, cfg *config.Config, params paramstore.Getter) (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}
	name := cfg.Param(paramAPIToken)
	if name == "" || params == nil {
		return "", nil
	}
	src, err := paramstore.NewTokenSource(params, name)
	if err != nil {
		return "", fmt.Errorf("app: %w", err)
	}
	token, err := src.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("app: resolve API token: %w", err)
	}
	return token, nil
}

func modelID(cfg *config.Config) string {
	if cfg.LLMProvider == config.ProviderOpenAI {
		return cfg.OpenAIModel
	}
	return cfg.BedrockModel
}
