package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
	"github.com/ternarybob/secsignal/internal/models"
	"github.com/ternarybob/secsignal/internal/pipeline"
	"github.com/ternarybob/secsignal/internal/services/agentic"
	"github.com/ternarybob/secsignal/internal/services/edgar"
	"github.com/ternarybob/secsignal/internal/services/fetch"
	"github.com/ternarybob/secsignal/internal/services/llm"
	"github.com/ternarybob/secsignal/internal/services/rules"
	"github.com/ternarybob/secsignal/internal/services/sentiment"
	"github.com/ternarybob/secsignal/internal/storage/badger"
)

// Options controls how much of the application is built
type Options struct {
	// Stages that will run; models are required only for these. Empty means all.
	Stages []string

	// AllowUnconfiguredModels replaces models without credentials by a placeholder
	// instead of failing. Used by commands that only describe the pipeline.
	AllowUnconfiguredModels bool
}

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Resolved stage selection in pipeline order
	Stages []string

	// EDGAR collaborators share one rate-limited client
	EdgarClient    *edgar.Client
	FeedClient     *edgar.FeedClient
	DocumentClient *edgar.DocumentClient
	Extractor      *edgar.Extractor

	// Language models
	SentimentLLM interfaces.LLMService
	AgenticLLM   interfaces.LLMService

	// Stages
	FetchService     *fetch.Service
	SentimentService *sentiment.Service
	RulesService     *rules.Service
	AgenticService   *agentic.Service

	Orchestrator *pipeline.Orchestrator
}

// New validates the configuration and wires every component. Configuration
// problems are returned as *common.ConfigurationError before any external call.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stages, err := pipeline.Resolve(opts.Stages)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Stages: stages,
	}

	if err := app.initEdgar(); err != nil {
		return nil, err
	}

	if err := app.initLLM(ctx, opts); err != nil {
		app.closeLLM()
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		app.closeLLM()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initStages(); err != nil {
		app.Close()
		return nil, err
	}

	logger.Info().
		Strs("stages", stages).
		Str("user_agent", app.EdgarClient.UserAgent()).
		Str("sentiment_model", app.SentimentLLM.Model()).
		Str("agentic_model", app.AgenticLLM.Model()).
		Msg("Application initialized")

	return app, nil
}

// OpenStorage opens only the store, for read-only commands such as status
func OpenStorage(cfg *common.Config, logger arbor.ILogger) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &cfg.Storage.Badger)
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := OpenStorage(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager
	return nil
}

func (a *App) initEdgar() error {
	client, err := edgar.NewClientFromConfig(&a.Config.Edgar, a.Logger)
	if err != nil {
		return err
	}

	a.EdgarClient = client
	a.FeedClient = edgar.NewFeedClient(client, a.Config.Edgar.FeedURL, a.Config.Edgar.FeedCount, a.Config.Edgar.FeedMaxAttempts, a.Logger)
	a.DocumentClient = edgar.NewDocumentClient(client, a.Config.Edgar.BaseURL, a.Config.Edgar.FeedMaxAttempts, a.Logger)
	a.Extractor = edgar.NewExtractor(a.Logger)
	return nil
}

// initLLM builds one chat service per model stage. A stage that will not run,
// or any stage when opts allow it, tolerates missing credentials.
func (a *App) initLLM(ctx context.Context, opts Options) error {
	var err error

	sc := a.Config.Sentiment
	a.SentimentLLM, err = a.newLLM(ctx, sc.Provider, sc.Model, sc.Temperature, sc.Timeout,
		opts.AllowUnconfiguredModels || !pipeline.Contains(a.Stages, pipeline.StageSentiment))
	if err != nil {
		return err
	}

	ac := a.Config.Agentic
	a.AgenticLLM, err = a.newLLM(ctx, ac.Provider, ac.Model, ac.Temperature, ac.Timeout,
		opts.AllowUnconfiguredModels || !pipeline.Contains(a.Stages, pipeline.StageAgentic))
	return err
}

func (a *App) newLLM(ctx context.Context, provider common.LLMProvider, model string, temperature float32, timeout string, optional bool) (interfaces.LLMService, error) {
	service, err := llm.NewLLMService(ctx, a.Config, provider, model, temperature, timeout, a.Logger)
	if err == nil {
		return service, nil
	}
	if optional && errors.Is(err, common.ErrConfiguration) {
		a.Logger.Debug().
			Str("provider", string(provider)).
			Str("model", model).
			Err(err).
			Msg("Model not configured, using placeholder")
		return llm.NewDisabledService(model, err), nil
	}
	return nil, err
}

func (a *App) initStages() error {
	forms := make([]models.FormType, 0, len(a.Config.Edgar.Forms))
	for _, f := range a.Config.Edgar.Forms {
		form := models.ParseFormType(f)
		if form == models.FormTypeOther {
			return &common.ConfigurationError{Field: "edgar.forms", Reason: fmt.Sprintf("unsupported form %q", f)}
		}
		forms = append(forms, form)
	}

	a.FetchService = fetch.NewService(a.StorageManager, a.FeedClient, a.DocumentClient, a.Extractor, forms, a.Logger)

	scorer := sentiment.NewLLMScorer(a.SentimentLLM, a.Config.Sentiment.MaxChars, a.Logger)
	a.SentimentService = sentiment.NewService(a.StorageManager, scorer, &a.Config.Sentiment, a.Logger)

	a.RulesService = rules.NewService(a.StorageManager, &a.Config.Rules, a.Logger)

	reasoner := agentic.NewLLMReasoner(a.AgenticLLM, a.Logger)
	a.AgenticService = agentic.NewService(a.StorageManager, reasoner, &a.Config.Agentic, &a.Config.Rules, a.Logger)

	a.Orchestrator = pipeline.NewOrchestrator(a.Logger)
	for _, stage := range []pipeline.Stage{a.FetchService, a.SentimentService, a.RulesService, a.AgenticService} {
		if err := a.Orchestrator.Register(stage); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) closeLLM() {
	for _, service := range []interfaces.LLMService{a.SentimentLLM, a.AgenticLLM} {
		if service == nil {
			continue
		}
		if err := service.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}
}

// Close closes all application resources
func (a *App) Close() error {
	a.closeLLM()

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}
	return nil
}
