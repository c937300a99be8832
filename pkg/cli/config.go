package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/docent/pkg/adapter"
	"github.com/m-mizutani/docent/pkg/agent"
	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/repository"
	"github.com/m-mizutani/docent/pkg/session"
	"github.com/m-mizutani/docent/pkg/tool/knowledge"
	"github.com/m-mizutani/docent/pkg/usecase/document"
	"github.com/m-mizutani/docent/pkg/utils/chunk"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Global
	configFile string
	logLevel   string
	logFormat  string

	// LLM
	llmProvider        string
	llmURL             string
	llmModel           string
	embeddingModel     string
	embeddingDimension int64
	openaiAPIKey       string
	geminiProject      string
	geminiLocation     string
	geminiAPIKey       string

	// Knowledge store
	storeBackend string
	qdrantURL    string
	qdrantAPIKey string
	chunkSize    int64
	topK         int64

	// Session
	sessionLabel    string
	sessionTTL      time.Duration
	sessionCapacity int64
	historyBudget   int64

	// Staging
	stagingDir   string
	gcsBucket    string
	gcsPrefix    string
	fetchTimeout time.Duration
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML file with default values for any flag (keys are flag names)",
			Sources:     cli.EnvVars("DOCENT_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("DOCENT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("DOCENT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM backend (ollama, gemini, openai)",
			Value:       "ollama",
			Sources:     cli.EnvVars("DOCENT_LLM_PROVIDER"),
			Destination: &cfg.llmProvider,
		},
		&cli.StringFlag{
			Name:        "llm-url",
			Usage:       "Base URL of the Ollama server or OpenAI compatible endpoint",
			Sources:     cli.EnvVars("DOCENT_LLM_URL"),
			Destination: &cfg.llmURL,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Text generation model (provider default if empty)",
			Sources:     cli.EnvVars("DOCENT_LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model (provider default if empty)",
			Sources:     cli.EnvVars("DOCENT_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Vector dimension of the embedding model",
			Value:       384,
			Sources:     cli.EnvVars("DOCENT_EMBEDDING_DIMENSION"),
			Destination: &cfg.embeddingDimension,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key (uses the Gemini API instead of Vertex AI)",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
	}
}

// storeFlags returns flags for the knowledge store backend
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Knowledge store backend (memory, qdrant)",
			Value:       "memory",
			Sources:     cli.EnvVars("DOCENT_STORE"),
			Destination: &cfg.storeBackend,
		},
		&cli.StringFlag{
			Name:        "qdrant-url",
			Usage:       "Qdrant gRPC endpoint, e.g. http://localhost:6334",
			Sources:     cli.EnvVars("DOCENT_QDRANT_URL"),
			Destination: &cfg.qdrantURL,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Sources:     cli.EnvVars("DOCENT_QDRANT_API_KEY"),
			Destination: &cfg.qdrantAPIKey,
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "Chunk size in estimated tokens",
			Value:       chunk.DefaultSize,
			Sources:     cli.EnvVars("DOCENT_CHUNK_SIZE"),
			Destination: &cfg.chunkSize,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Number of chunks retrieved per message",
			Value:       knowledge.DefaultTopK,
			Sources:     cli.EnvVars("DOCENT_TOP_K"),
			Destination: &cfg.topK,
		},
	}
}

// sessionFlags returns flags for the session registry and staging area
func sessionFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "session-label",
			Usage:       "Label given to new sessions",
			Value:       document.DefaultLabel,
			Sources:     cli.EnvVars("DOCENT_SESSION_LABEL"),
			Destination: &cfg.sessionLabel,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Idle time after which a session and its knowledge store are released (0 disables)",
			Value:       time.Hour,
			Sources:     cli.EnvVars("DOCENT_SESSION_TTL"),
			Destination: &cfg.sessionTTL,
		},
		&cli.IntFlag{
			Name:        "session-capacity",
			Usage:       "Maximum number of live sessions, least recently used is released first (0 disables)",
			Value:       1000,
			Sources:     cli.EnvVars("DOCENT_SESSION_CAPACITY"),
			Destination: &cfg.sessionCapacity,
		},
		&cli.IntFlag{
			Name:        "history-budget",
			Usage:       "Estimated tokens of conversation history sent to the model (0 disables)",
			Value:       agent.DefaultHistoryBudget,
			Sources:     cli.EnvVars("DOCENT_HISTORY_BUDGET"),
			Destination: &cfg.historyBudget,
		},
		&cli.StringFlag{
			Name:        "staging-dir",
			Usage:       "Directory where uploaded files are stored",
			Value:       "./uploads",
			Sources:     cli.EnvVars("DOCENT_STAGING_DIR"),
			Destination: &cfg.stagingDir,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Store uploaded files in this Cloud Storage bucket instead of the staging directory",
			Sources:     cli.EnvVars("DOCENT_GCS_BUCKET"),
			Destination: &cfg.gcsBucket,
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object name prefix in the Cloud Storage bucket",
			Value:       "uploads/",
			Sources:     cli.EnvVars("DOCENT_GCS_PREFIX"),
			Destination: &cfg.gcsPrefix,
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "Timeout for fetching URLs",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("DOCENT_FETCH_TIMEOUT"),
			Destination: &cfg.fetchTimeout,
		},
	}
}

// before loads the config file and sets up logging. Values from the file apply
// only to flags not set on the command line or by environment variables.
func (cfg *config) before(ctx context.Context, c *cli.Command) (context.Context, error) {
	if cfg.configFile != "" {
		if err := cfg.loadFile(c); err != nil {
			return ctx, err
		}
	}

	w := c.Root().ErrWriter
	if w == nil {
		w = os.Stderr
	}
	logger := logging.NewWithFormat(cfg.logLevel, cfg.logFormat, w)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func (cfg *config) loadFile(c *cli.Command) error {
	raw, err := os.ReadFile(cfg.configFile)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configFile))
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configFile))
	}

	for name, v := range values {
		if name == "config" || c.IsSet(name) {
			continue
		}

		items := []any{v}
		if list, ok := v.([]any); ok {
			items = list
		}
		for _, item := range items {
			if err := c.Set(name, fmt.Sprint(item)); err != nil {
				return goerr.Wrap(err, "invalid config value",
					goerr.V("path", cfg.configFile),
					goerr.V("key", name))
			}
		}
	}
	return nil
}

// llmClient is an LLM adapter that reports its configured models
type llmClient interface {
	interfaces.LLM
	GenerativeModel() string
	EmbeddingModel() string
}

// newLLM creates the LLM adapter selected by --llm-provider
func (cfg *config) newLLM(ctx context.Context) (llmClient, error) {
	switch cfg.llmProvider {
	case "ollama":
		var opts []adapter.OllamaOption
		if cfg.llmModel != "" {
			opts = append(opts, adapter.WithOllamaModel(cfg.llmModel))
		}
		if cfg.embeddingModel != "" {
			opts = append(opts, adapter.WithOllamaEmbeddingModel(cfg.embeddingModel))
		}
		client, err := adapter.NewOllama(cfg.llmURL, nil, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create ollama client")
		}
		return client, nil

	case "gemini":
		if cfg.geminiAPIKey == "" && cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project or gemini-api-key is required")
		}
		opts := []adapter.GeminiOption{adapter.WithEmbeddingDimensions(int(cfg.embeddingDimension))}
		if cfg.llmModel != "" {
			opts = append(opts, adapter.WithGenerativeModel(cfg.llmModel))
		}
		if cfg.embeddingModel != "" {
			opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
		}
		client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, cfg.geminiAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini client")
		}
		return client, nil

	case "openai":
		if cfg.openaiAPIKey == "" && cfg.llmURL == "" {
			return nil, goerr.New("openai-api-key is required unless llm-url points to a compatible server")
		}
		opts := []adapter.OpenAIOption{adapter.WithOpenAIEmbeddingDimensions(int(cfg.embeddingDimension))}
		if cfg.llmModel != "" {
			opts = append(opts, adapter.WithOpenAIModel(cfg.llmModel))
		}
		if cfg.embeddingModel != "" {
			opts = append(opts, adapter.WithOpenAIEmbeddingModel(cfg.embeddingModel))
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey, cfg.llmURL, opts...), nil

	default:
		return nil, goerr.New("unsupported llm provider",
			goerr.V("provider", cfg.llmProvider),
			goerr.V("supported", []string{"ollama", "gemini", "openai"}))
	}
}

// newRepository creates the knowledge store backend selected by --store
func (cfg *config) newRepository() (repository.Repository, error) {
	switch cfg.storeBackend {
	case "memory":
		return repository.NewMemory(), nil

	case "qdrant":
		if cfg.qdrantURL == "" {
			return nil, goerr.New("qdrant-url is required")
		}
		repo, err := repository.NewQdrant(cfg.qdrantURL, cfg.qdrantAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create qdrant repository")
		}
		return repo, nil

	default:
		return nil, goerr.New("unsupported store backend",
			goerr.V("store", cfg.storeBackend),
			goerr.V("supported", []string{"memory", "qdrant"}))
	}
}

// newStager creates the staging area: Cloud Storage if a bucket is given, otherwise a local directory
func (cfg *config) newStager(ctx context.Context) (adapter.Stager, error) {
	if cfg.gcsBucket != "" {
		stager, err := adapter.NewStorage(ctx, cfg.gcsBucket, cfg.gcsPrefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return stager, nil
	}

	if cfg.stagingDir == "" {
		return nil, goerr.New("staging-dir is required")
	}
	stager, err := adapter.NewLocalStager(cfg.stagingDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create staging directory")
	}
	return stager, nil
}

// system is the wired document service shared by serve, chat and mcp
type system struct {
	uc       *document.UseCase
	registry *session.Registry
	repo     repository.Repository
}

func (cfg *config) newSystem(ctx context.Context) (*system, error) {
	llm, err := cfg.newLLM(ctx)
	if err != nil {
		return nil, err
	}

	repo, err := cfg.newRepository()
	if err != nil {
		return nil, err
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "knowledge store is not reachable", goerr.V("store", cfg.storeBackend))
	}

	stager, err := cfg.newStager(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	registry := session.New(
		session.WithTTL(cfg.sessionTTL),
		session.WithCapacity(int(cfg.sessionCapacity)),
		session.WithOnEvict(func(ctx context.Context, s *model.Session) {
			if err := repo.DeleteStore(ctx, s.StoreID); err != nil {
				logging.From(ctx).Warn("failed to delete knowledge store", "store_id", s.StoreID, "error", err)
			}
		}),
	)

	binder := document.NewBinder(repo, llm, model.EmbeddingConfig{
		Model:     llm.EmbeddingModel(),
		Dimension: int(cfg.embeddingDimension),
	}, document.WithChunkSize(int(cfg.chunkSize)))

	factory := agent.NewFactory(llm, repo,
		agent.WithModelID(llm.GenerativeModel()),
		agent.WithTopK(int(cfg.topK)),
		agent.WithHistoryBudget(int(cfg.historyBudget)),
	)

	uc := document.New(stager, binder, factory, registry,
		document.WithLabel(cfg.sessionLabel),
		document.WithFetcher(adapter.NewFetcher(adapter.WithFetchTimeout(cfg.fetchTimeout))),
	)

	logging.From(ctx).Info("document service ready",
		"llm_provider", cfg.llmProvider,
		"model", llm.GenerativeModel(),
		"embedding_model", llm.EmbeddingModel(),
		"store", cfg.storeBackend,
	)

	return &system{uc: uc, registry: registry, repo: repo}, nil
}

// Close releases every session and the knowledge store connection
func (s *system) Close(ctx context.Context) {
	s.registry.Close(ctx)
	if err := s.repo.Close(); err != nil {
		logging.From(ctx).Warn("failed to close repository", "error", err)
	}
}
