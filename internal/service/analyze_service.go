// Package service contains the business logic between HTTP handlers and the
// repositories/provider adapters.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/empathyapp/backend/internal/apperrors"
	"github.com/empathyapp/backend/internal/empathy"
	"github.com/empathyapp/backend/internal/models"
	"github.com/empathyapp/backend/internal/observability"
	embeddingsutil "github.com/empathyapp/backend/pkg/embeddings"
)

const (
	similarityIndexCacheName = "similarity_index"
	queryEmbeddingCacheName  = "query_embedding"

	operationAnalyze = "analyze"
	operationRewrite = "rewrite"

	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeMalformed   = "malformed"
)

// ErrEmptyMessage is returned when the submitted message is empty after trimming.
var ErrEmptyMessage = apperrors.NewValidationError("message", "message is required and must be non-empty")

// EmbeddingClient is the embedding surface the orchestrator needs.
// internal/openai and internal/googleai both satisfy it.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// AnalysisProvider produces validated drafts from raw text.
type AnalysisProvider interface {
	Analyze(ctx context.Context, text string) (*empathy.Draft, error)
	Rewrite(ctx context.Context, text string) (*empathy.Draft, error)
}

// ResultsStore is the store/index surface the orchestrator needs.
type ResultsStore interface {
	Insert(ctx context.Context, sourceText string, analysis *models.FullAnalysis,
		longVersion, shortVersion string, embedding []float32) (*models.AnalysisResult, error)
	Nearest(ctx context.Context, queryEmbedding []float32, threshold float64,
		requireAnalysis bool) (*models.ResultMatch, error)
}

// AnalyzeService orchestrates one analysis request: embed the text, query the
// similarity index, and either serve the cached result or call the provider
// and store the fresh one. Nothing is stored on provider failure, so every
// stored record is complete.
type AnalyzeService struct {
	store           ResultsStore
	provider        AnalysisProvider
	embeddingClient EmbeddingClient
	threshold       float64
	queryCache      *lru.Cache[string, []float32]
	queryLoadGroup  singleflight.Group
	cacheMetrics    observability.CacheMetrics
	providerMetrics observability.ProviderMetrics
	logger          *slog.Logger
}

// AnalyzeServiceParams configures AnalyzeService. QueryCache and the metrics
// may be nil (no caching of query embeddings, no recording).
type AnalyzeServiceParams struct {
	Store           ResultsStore
	Provider        AnalysisProvider
	EmbeddingClient EmbeddingClient
	Threshold       float64
	QueryCache      *lru.Cache[string, []float32]
	CacheMetrics    observability.CacheMetrics
	ProviderMetrics observability.ProviderMetrics
	Logger          *slog.Logger
}

// NewAnalyzeService creates an AnalyzeService.
func NewAnalyzeService(p AnalyzeServiceParams) *AnalyzeService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalyzeService{
		store:           p.Store,
		provider:        p.Provider,
		embeddingClient: p.EmbeddingClient,
		threshold:       p.Threshold,
		queryCache:      p.QueryCache,
		cacheMetrics:    p.CacheMetrics,
		providerMetrics: p.ProviderMetrics,
		logger:          logger,
	}
}

// AnalyzeMessage handles POST /api/analyzeMessage. A cache hit must carry an
// analysis section; rewrite-only records never serve analyze requests.
func (s *AnalyzeService) AnalyzeMessage(ctx context.Context, message string) (*models.AnalyzeMessageResponse, error) {
	result, additional, err := s.process(ctx, message, true)
	if err != nil {
		return nil, err
	}

	return &models.AnalyzeMessageResponse{
		Analysis:     result.Analysis,
		LongVersion:  result.LongVersion,
		ShortVersion: result.ShortVersion,
		Additional:   additional,
	}, nil
}

// RewriteMessage handles POST /api/rewriteMessage. Any sufficiently similar
// record qualifies as a hit since the rewrite payload is a subset of both
// record kinds.
func (s *AnalyzeService) RewriteMessage(ctx context.Context, message string) (*models.RewriteMessageResponse, error) {
	result, additional, err := s.process(ctx, message, false)
	if err != nil {
		return nil, err
	}

	return &models.RewriteMessageResponse{
		LongVersion:  result.LongVersion,
		ShortVersion: result.ShortVersion,
		Additional:   additional,
	}, nil
}

func (s *AnalyzeService) process(
	ctx context.Context, message string, withAnalysis bool,
) (*models.AnalysisResult, models.ResponseAdditional, error) {
	none := models.ResponseAdditional{}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, none, ErrEmptyMessage
	}

	embedding, err := s.queryEmbedding(ctx, message)
	if err != nil {
		s.logger.Error("create query embedding failed", "error", err)

		return nil, none, fmt.Errorf("create embedding: %w", err)
	}

	match, err := s.store.Nearest(ctx, embedding, s.threshold, withAnalysis)
	if err != nil {
		s.logger.Error("similarity lookup failed", "error", err)

		return nil, none, fmt.Errorf("similarity lookup: %w", err)
	}

	if match != nil {
		if s.cacheMetrics != nil {
			s.cacheMetrics.RecordHit(ctx, similarityIndexCacheName)
		}

		s.logger.Info("similarity cache hit",
			"result_id", match.Result.ID.String(), "similarity", match.Similarity)

		return &match.Result, models.ResponseAdditional{
			ID:         match.Result.ID,
			Cached:     true,
			Similarity: match.Similarity,
		}, nil
	}

	if s.cacheMetrics != nil {
		s.cacheMetrics.RecordMiss(ctx, similarityIndexCacheName)
	}

	draft, err := s.callProvider(ctx, message, withAnalysis)
	if err != nil {
		return nil, none, err
	}

	record, err := s.store.Insert(ctx, message, draft.Analysis, draft.LongVersion, draft.ShortVersion, embedding)
	if err != nil {
		s.logger.Error("store analysis result failed", "error", err)

		return nil, none, fmt.Errorf("store result: %w", err)
	}

	return record, models.ResponseAdditional{ID: record.ID, Cached: false, Similarity: 1}, nil
}

// callProvider invokes the adapter and records the outcome. Provider failures
// pass through untouched so handlers can map the taxonomy to status codes.
func (s *AnalyzeService) callProvider(ctx context.Context, message string, withAnalysis bool) (*empathy.Draft, error) {
	operation := operationRewrite
	call := s.provider.Rewrite

	if withAnalysis {
		operation = operationAnalyze
		call = s.provider.Analyze
	}

	start := time.Now()

	draft, err := call(ctx, message)
	if s.providerMetrics != nil {
		s.providerMetrics.RecordCall(ctx, operation, outcomeFor(err), time.Since(start))
	}

	if err != nil {
		s.logger.Error("provider call failed", "operation", operation, "error", err)

		return nil, err
	}

	return draft, nil
}

// queryEmbedding returns the normalized embedding for message, via the lru
// cache when configured. Singleflight collapses concurrent misses for the
// same text into one upstream call.
func (s *AnalyzeService) queryEmbedding(ctx context.Context, message string) ([]float32, error) {
	if s.queryCache == nil {
		return s.loadEmbedding(ctx, message)
	}

	if vec, ok := s.queryCache.Get(message); ok {
		if s.cacheMetrics != nil {
			s.cacheMetrics.RecordHit(ctx, queryEmbeddingCacheName)
		}

		return vec, nil
	}

	val, err, _ := s.queryLoadGroup.Do(message, func() (any, error) {
		// Inside the singleflight so collapsed concurrent lookups count
		// one miss per upstream call, not one per caller.
		if s.cacheMetrics != nil {
			s.cacheMetrics.RecordMiss(ctx, queryEmbeddingCacheName)
		}

		vec, loadErr := s.loadEmbedding(ctx, message)
		if loadErr != nil {
			return nil, loadErr
		}

		s.queryCache.Add(message, vec)

		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	return val.([]float32), nil
}

func (s *AnalyzeService) loadEmbedding(ctx context.Context, message string) ([]float32, error) {
	vec, err := s.embeddingClient.CreateEmbedding(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	embeddingsutil.NormalizeL2(vec)

	return vec, nil
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, apperrors.ErrMalformedResponse):
		return outcomeMalformed
	default:
		return outcomeUnavailable
	}
}
