package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empathyapp/backend/internal/apperrors"
	"github.com/empathyapp/backend/internal/empathy"
	"github.com/empathyapp/backend/internal/models"
)

type mockEmbeddingClient struct {
	createFunc func(ctx context.Context, input string) ([]float32, error)
	calls      int
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.calls++

	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return []float32{1, 0, 0}, nil
}

type mockProvider struct {
	analyzeFunc func(ctx context.Context, text string) (*empathy.Draft, error)
	rewriteFunc func(ctx context.Context, text string) (*empathy.Draft, error)
	calls       int
}

func (m *mockProvider) Analyze(ctx context.Context, text string) (*empathy.Draft, error) {
	m.calls++

	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, text)
	}

	return &empathy.Draft{
		Analysis:     &models.FullAnalysis{},
		LongVersion:  "long",
		ShortVersion: "short",
	}, nil
}

func (m *mockProvider) Rewrite(ctx context.Context, text string) (*empathy.Draft, error) {
	m.calls++

	if m.rewriteFunc != nil {
		return m.rewriteFunc(ctx, text)
	}

	return &empathy.Draft{LongVersion: "long", ShortVersion: "short"}, nil
}

type mockStore struct {
	nearestFunc func(ctx context.Context, queryEmbedding []float32, threshold float64, requireAnalysis bool) (*models.ResultMatch, error)
	insertFunc  func(ctx context.Context, sourceText string, analysis *models.FullAnalysis, longVersion, shortVersion string, embedding []float32) (*models.AnalysisResult, error)
	inserts     int
}

func (m *mockStore) Nearest(
	ctx context.Context, queryEmbedding []float32, threshold float64, requireAnalysis bool,
) (*models.ResultMatch, error) {
	if m.nearestFunc != nil {
		return m.nearestFunc(ctx, queryEmbedding, threshold, requireAnalysis)
	}

	return nil, nil
}

func (m *mockStore) Insert(
	ctx context.Context, sourceText string, analysis *models.FullAnalysis,
	longVersion, shortVersion string, embedding []float32,
) (*models.AnalysisResult, error) {
	m.inserts++

	if m.insertFunc != nil {
		return m.insertFunc(ctx, sourceText, analysis, longVersion, shortVersion, embedding)
	}

	return &models.AnalysisResult{
		ID:           uuid.New(),
		SourceText:   sourceText,
		Analysis:     analysis,
		LongVersion:  longVersion,
		ShortVersion: shortVersion,
	}, nil
}

type mockCacheMetrics struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func (m *mockCacheMetrics) RecordHit(_ context.Context, cacheName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hits == nil {
		m.hits = make(map[string]int)
	}

	m.hits[cacheName]++
}

func (m *mockCacheMetrics) RecordMiss(_ context.Context, cacheName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.misses == nil {
		m.misses = make(map[string]int)
	}

	m.misses[cacheName]++
}

func (m *mockCacheMetrics) hitCount(cacheName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hits[cacheName]
}

func (m *mockCacheMetrics) missCount(cacheName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.misses[cacheName]
}

func newService(t *testing.T, store *mockStore, provider *mockProvider, client *mockEmbeddingClient) *AnalyzeService {
	t.Helper()

	cache, err := lru.New[string, []float32](16)
	require.NoError(t, err)

	return NewAnalyzeService(AnalyzeServiceParams{
		Store:           store,
		Provider:        provider,
		EmbeddingClient: client,
		Threshold:       0.95,
		QueryCache:      cache,
	})
}

func TestAnalyzeMessage(t *testing.T) {
	t.Run("empty message returns validation error", func(t *testing.T) {
		svc := newService(t, &mockStore{}, &mockProvider{}, &mockEmbeddingClient{})

		resp, err := svc.AnalyzeMessage(context.Background(), "   ")
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("cache hit returns stored result without provider call", func(t *testing.T) {
		storedID := uuid.New()
		provider := &mockProvider{}
		store := &mockStore{
			nearestFunc: func(_ context.Context, _ []float32, threshold float64, requireAnalysis bool) (*models.ResultMatch, error) {
				assert.InDelta(t, 0.95, threshold, 1e-9)
				assert.True(t, requireAnalysis)

				return &models.ResultMatch{
					Result: models.AnalysisResult{
						ID:           storedID,
						Analysis:     &models.FullAnalysis{},
						LongVersion:  "stored long",
						ShortVersion: "stored short",
					},
					Similarity: 0.97,
				}, nil
			},
		}

		svc := newService(t, store, provider, &mockEmbeddingClient{})

		resp, err := svc.AnalyzeMessage(context.Background(), "I am frustrated with you")
		require.NoError(t, err)

		assert.Equal(t, storedID, resp.Additional.ID)
		assert.True(t, resp.Additional.Cached)
		assert.InDelta(t, 0.97, resp.Additional.Similarity, 1e-9)
		assert.Equal(t, "stored long", resp.LongVersion)
		assert.Zero(t, provider.calls)
		assert.Zero(t, store.inserts)
	})

	t.Run("cache miss calls provider and stores result", func(t *testing.T) {
		provider := &mockProvider{}
		store := &mockStore{}
		svc := newService(t, store, provider, &mockEmbeddingClient{})

		resp, err := svc.AnalyzeMessage(context.Background(), "I am frustrated with you")
		require.NoError(t, err)

		assert.Equal(t, 1, provider.calls)
		assert.Equal(t, 1, store.inserts)
		assert.False(t, resp.Additional.Cached)
		assert.InDelta(t, 1.0, resp.Additional.Similarity, 1e-9)
		assert.NotEqual(t, uuid.Nil, resp.Additional.ID)
	})

	t.Run("provider failure stores nothing", func(t *testing.T) {
		provider := &mockProvider{
			analyzeFunc: func(context.Context, string) (*empathy.Draft, error) {
				return nil, apperrors.NewProviderUnavailableError("", errors.New("timeout"))
			},
		}
		store := &mockStore{}
		svc := newService(t, store, provider, &mockEmbeddingClient{})

		resp, err := svc.AnalyzeMessage(context.Background(), "hello there")
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
		assert.Zero(t, store.inserts)
	})

	t.Run("query embedding is cached across requests", func(t *testing.T) {
		client := &mockEmbeddingClient{}
		svc := newService(t, &mockStore{}, &mockProvider{}, client)

		_, err := svc.AnalyzeMessage(context.Background(), "same text")
		require.NoError(t, err)
		_, err = svc.AnalyzeMessage(context.Background(), "same text")
		require.NoError(t, err)

		assert.Equal(t, 1, client.calls)
	})

	t.Run("collapsed concurrent lookups record one miss per upstream call", func(t *testing.T) {
		entered := make(chan struct{}, 3)
		release := make(chan struct{})
		client := &mockEmbeddingClient{
			createFunc: func(context.Context, string) ([]float32, error) {
				entered <- struct{}{}
				<-release

				return []float32{1, 0, 0}, nil
			},
		}

		cache, err := lru.New[string, []float32](16)
		require.NoError(t, err)

		metrics := &mockCacheMetrics{}
		svc := NewAnalyzeService(AnalyzeServiceParams{
			Store:           &mockStore{},
			Provider:        &mockProvider{},
			EmbeddingClient: client,
			Threshold:       0.95,
			QueryCache:      cache,
			CacheMetrics:    metrics,
		})

		var wg sync.WaitGroup

		for range 3 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				vec, err := svc.queryEmbedding(context.Background(), "same text")
				assert.NoError(t, err)
				assert.Len(t, vec, 3)
			}()
		}

		<-entered
		close(release)
		wg.Wait()

		assert.Equal(t, client.calls, metrics.missCount(queryEmbeddingCacheName))

		// A warm lookup afterwards is a hit, not another miss.
		misses := metrics.missCount(queryEmbeddingCacheName)
		_, err = svc.queryEmbedding(context.Background(), "same text")
		require.NoError(t, err)
		assert.Equal(t, misses, metrics.missCount(queryEmbeddingCacheName))
		assert.Positive(t, metrics.hitCount(queryEmbeddingCacheName))
	})

	t.Run("embedding failure surfaces without provider call", func(t *testing.T) {
		client := &mockEmbeddingClient{
			createFunc: func(context.Context, string) ([]float32, error) {
				return nil, errors.New("embedding api down")
			},
		}
		provider := &mockProvider{}
		svc := newService(t, &mockStore{}, provider, client)

		_, err := svc.AnalyzeMessage(context.Background(), "hello")
		assert.Error(t, err)
		assert.Zero(t, provider.calls)
	})
}

func TestRewriteMessage(t *testing.T) {
	t.Run("does not require analysis on cache lookup", func(t *testing.T) {
		var gotRequireAnalysis *bool

		store := &mockStore{
			nearestFunc: func(_ context.Context, _ []float32, _ float64, requireAnalysis bool) (*models.ResultMatch, error) {
				gotRequireAnalysis = &requireAnalysis

				return nil, nil
			},
		}
		svc := newService(t, store, &mockProvider{}, &mockEmbeddingClient{})

		_, err := svc.RewriteMessage(context.Background(), "hello")
		require.NoError(t, err)
		require.NotNil(t, gotRequireAnalysis)
		assert.False(t, *gotRequireAnalysis)
	})

	t.Run("stores rewrite-only record on miss", func(t *testing.T) {
		var storedAnalysis *models.FullAnalysis = &models.FullAnalysis{}

		store := &mockStore{
			insertFunc: func(_ context.Context, sourceText string, analysis *models.FullAnalysis,
				long, short string, _ []float32,
			) (*models.AnalysisResult, error) {
				storedAnalysis = analysis

				return &models.AnalysisResult{
					ID: uuid.New(), SourceText: sourceText,
					LongVersion: long, ShortVersion: short,
				}, nil
			},
		}
		svc := newService(t, store, &mockProvider{}, &mockEmbeddingClient{})

		resp, err := svc.RewriteMessage(context.Background(), "This code is terrible!")
		require.NoError(t, err)

		assert.Nil(t, storedAnalysis)
		assert.Equal(t, "long", resp.LongVersion)
	})
}
