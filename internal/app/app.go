package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/handlers"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/services/chat"
	"github.com/ternarybob/colloquy/internal/services/embeddings"
	"github.com/ternarybob/colloquy/internal/services/extract"
	"github.com/ternarybob/colloquy/internal/services/ingest"
	"github.com/ternarybob/colloquy/internal/services/llm"
	"github.com/ternarybob/colloquy/internal/services/retrieval"
	"github.com/ternarybob/colloquy/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Pipeline services
	ExtractService   interfaces.TextExtractor
	EmbeddingClient  interfaces.EmbeddingClient
	CompletionClient interfaces.CompletionClient
	IngestService    interfaces.IngestService
	RetrievalService interfaces.RetrievalService
	ChatService      interfaces.ChatService
	Scheduler        *ingest.Scheduler

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DocumentHandler *handlers.DocumentHandler
	IngestHandler   *handlers.IngestHandler
	ChatHandler     *handlers.ChatHandler
	SearchHandler   *handlers.SearchHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Processing.Enabled {
		if err := app.Scheduler.Start(cfg.Processing.Schedule); err != nil {
			logger.Warn().Err(err).Msg("Failed to start retry scheduler")
		} else {
			logger.Debug().Str("schedule", cfg.Processing.Schedule).Msg("Retry scheduler started")
		}
	}

	logger.Info().
		Bool("processing_enabled", cfg.Processing.Enabled).
		Bool("websocket_enabled", cfg.WebSocket.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger and blob store)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Str("blobs", a.Config.Storage.Blobs.Dir).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes business services in dependency order
func (a *App) initServices() error {
	a.ExtractService = extract.NewService(a.Logger)

	embedTimeout, err := time.ParseDuration(a.Config.Embedding.Timeout)
	if err != nil {
		return fmt.Errorf("invalid embedding timeout: %w", err)
	}
	a.EmbeddingClient = embeddings.NewClient(
		a.Config.Embedding.BaseURL,
		a.Config.Embedding.APIKey,
		a.Config.Embedding.Model,
		embeddings.WithHTTPClient(&http.Client{Timeout: embedTimeout}),
		embeddings.WithLogger(a.Logger),
		embeddings.WithRateLimit(a.Config.Embedding.RateLimit),
		embeddings.WithMaxRetries(a.Config.Embedding.MaxRetries),
		embeddings.WithMaxInputChars(a.Config.Embedding.MaxInputChars),
		embeddings.WithDimension(a.Config.Embedding.Dimension),
	)
	if a.Config.Embedding.APIKey == "" {
		a.Logger.Warn().Msg("No embedding API key configured - ingestion and search will fail")
		a.Logger.Info().Msg("Set COLLOQUY_EMBEDDING_API_KEY or embedding.api_key in config")
	}

	completionTimeout, err := time.ParseDuration(a.Config.Completion.Timeout)
	if err != nil {
		return fmt.Errorf("invalid completion timeout: %w", err)
	}
	a.CompletionClient = llm.NewClient(
		a.Config.Completion.BaseURL,
		a.Config.Completion.APIKey,
		llm.WithModel(a.Config.Completion.Model),
		llm.WithHTTPClient(&http.Client{Timeout: completionTimeout}),
		llm.WithLogger(a.Logger),
	)
	if a.Config.Completion.APIKey == "" {
		a.Logger.Warn().Msg("No completion API key configured - chat will fail")
		a.Logger.Info().Msg("Set COLLOQUY_COMPLETION_API_KEY or completion.api_key in config")
	}

	// Event service doubles as the WebSocket handler so ingest status
	// changes reach connected browsers directly.
	a.WSHandler = handlers.NewWebSocketHandler(a.Logger, &a.Config.WebSocket)

	a.IngestService = ingest.NewService(
		a.StorageManager,
		a.ExtractService,
		a.EmbeddingClient,
		a.WSHandler,
		&a.Config.Ingest,
		a.Logger,
	)

	a.RetrievalService = retrieval.NewService(
		a.EmbeddingClient,
		a.StorageManager.ChunkStorage(),
		a.Logger,
	)

	a.ChatService = chat.NewService(
		a.RetrievalService,
		a.CompletionClient,
		&a.Config.Chat,
		a.Logger,
	)

	a.Scheduler = ingest.NewScheduler(
		a.IngestService,
		a.StorageManager.DocumentStorage(),
		&a.Config.Processing,
		a.Logger,
	)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.DocumentHandler = handlers.NewDocumentHandler(a.StorageManager, a.IngestService, a.Logger)
	a.IngestHandler = handlers.NewIngestHandler(a.IngestService, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.RetrievalService, &a.Config.Search, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
