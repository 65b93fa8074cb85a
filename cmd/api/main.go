package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/empathyapp/backend/internal/api/handlers"
	"github.com/empathyapp/backend/internal/api/middleware"
	"github.com/empathyapp/backend/internal/config"
	"github.com/empathyapp/backend/internal/empathy"
	"github.com/empathyapp/backend/internal/googleai"
	"github.com/empathyapp/backend/internal/observability"
	"github.com/empathyapp/backend/internal/openai"
	"github.com/empathyapp/backend/internal/repository"
	"github.com/empathyapp/backend/internal/service"
	"github.com/empathyapp/backend/pkg/database"
)

// queryEmbeddingCacheSize bounds the in-process cache of query embeddings.
const queryEmbeddingCacheSize = 1024

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Initialize database connection
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Optional metrics: Prometheus exposition on /metrics when enabled
	var metrics *observability.Metrics

	var metricsHandler http.Handler

	if cfg.MetricsEnabled {
		shutdown, handler, m, err := observability.NewMeterProvider("empathy-backend")
		if err != nil {
			slog.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}

		defer func() {
			if err := shutdown.Shutdown(context.Background()); err != nil {
				slog.Error("Metrics shutdown failed", "error", err)
			}
		}()

		metrics = m
		metricsHandler = handler

		slog.Info("Metrics enabled")
	}

	// OpenAI chat client for analysis and rewriting
	chatClient := openai.NewClient(cfg.OpenAIAPIKey,
		openai.WithChatModel(cfg.OpenAIModel),
		openai.WithDimensions(cfg.EmbeddingDimensions),
	)

	// Embedding client for the similarity index
	embeddingClient, err := newEmbeddingClient(ctx, cfg, chatClient)
	if err != nil {
		slog.Error("Failed to initialize embedding client", "error", err)
		os.Exit(1)
	}

	// Rate limiter shared by all upstream LLM calls
	limiter := rate.NewLimiter(rate.Limit(cfg.ProviderRateLimit), 1)

	provider := empathy.NewProvider(empathy.ProviderParams{
		Chat:    chatClient,
		Limiter: limiter,
		Logger:  slog.Default(),
	})

	resultsRepo := repository.NewResultsRepository(db)

	queryCache, err := lru.New[string, []float32](queryEmbeddingCacheSize)
	if err != nil {
		slog.Error("Failed to create query embedding cache", "error", err)
		os.Exit(1)
	}

	analyzeParams := service.AnalyzeServiceParams{
		Store:           resultsRepo,
		Provider:        provider,
		EmbeddingClient: embeddingClient,
		Threshold:       cfg.SimilarityThreshold,
		QueryCache:      queryCache,
		Logger:          slog.Default(),
	}
	feedbackParams := service.FeedbackServiceParams{
		Store:  resultsRepo,
		Floor:  cfg.ScoreEvictionFloor,
		Logger: slog.Default(),
	}

	if metrics != nil {
		analyzeParams.CacheMetrics = metrics.Cache
		analyzeParams.ProviderMetrics = metrics.Provider
		feedbackParams.Metrics = metrics.Provider
	}

	analyzeService := service.NewAnalyzeService(analyzeParams)
	feedbackService := service.NewFeedbackService(feedbackParams)
	speechClient := service.NewSpeechClient(cfg.SpeechServiceURL)

	messageHandler := handlers.NewMessageHandler(analyzeService)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	transcribeHandler := handlers.NewTranscribeHandler(speechClient)
	healthHandler := handlers.NewHealthHandler()

	// Set up public endpoints (no authentication required)
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)

	if metricsHandler != nil {
		publicMux.Handle("GET /metrics", metricsHandler)
	}

	// JSON endpoints get the request body cap; transcribe streams multipart
	// audio and enforces its own multipart limits instead.
	jsonMux := http.NewServeMux()
	jsonMux.HandleFunc("POST /api/analyzeMessage", messageHandler.Analyze)
	jsonMux.HandleFunc("POST /api/rewriteMessage", messageHandler.Rewrite)
	jsonMux.HandleFunc("POST /api/feedback", feedbackHandler.Submit)

	apiMux := http.NewServeMux()
	apiMux.Handle("/api/", middleware.MaxBody(cfg.MaxRequestBodyBytes)(jsonMux))
	apiMux.HandleFunc("POST /api/transcribe", transcribeHandler.Transcribe)

	// Order matters: CORS must wrap Auth so OPTIONS preflight requests bypass authentication
	var apiHandler http.Handler = apiMux
	apiHandler = middleware.Auth(cfg.APIKey)(apiHandler)
	apiHandler = middleware.CORS(cfg.CORSOrigins)(apiHandler)

	// Combine both handlers
	mainMux := http.NewServeMux()
	mainMux.Handle("/api/", apiHandler)
	mainMux.Handle("/", publicMux) // Catch-all for public routes (/health, /metrics)

	// Outermost middleware see the full request lifetime
	var handler http.Handler = mainMux
	handler = middleware.Logging(slog.Default())(handler)

	if metrics != nil {
		handler = middleware.Metrics(metrics.API)(handler)
	}

	handler = middleware.RequestID(handler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// newEmbeddingClient picks the embedding backend for the similarity index.
// "openai" reuses the chat client's SDK connection; "google" talks to the
// Gemini API with its own key.
func newEmbeddingClient(
	ctx context.Context, cfg *config.Config, openaiClient *openai.Client,
) (service.EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return openaiClient, nil
	case "google":
		opts := []googleai.ClientOption{googleai.WithDimensions(cfg.EmbeddingDimensions)}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, googleai.WithModel(cfg.EmbeddingModel))
		}

		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("google embedding client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// setupLogging configures slog with the specified log level. Every record
// carries the request_id from context when one is present.
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := observability.NewRequestIDHandler(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(slog.New(handler))
}
