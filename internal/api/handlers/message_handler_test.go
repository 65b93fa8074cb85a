package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empathyapp/backend/internal/apperrors"
	"github.com/empathyapp/backend/internal/models"
)

type mockMessageService struct {
	analyzeFunc func(ctx context.Context, message string) (*models.AnalyzeMessageResponse, error)
	rewriteFunc func(ctx context.Context, message string) (*models.RewriteMessageResponse, error)
}

func (m *mockMessageService) AnalyzeMessage(
	ctx context.Context, message string,
) (*models.AnalyzeMessageResponse, error) {
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, message)
	}

	return &models.AnalyzeMessageResponse{}, nil
}

func (m *mockMessageService) RewriteMessage(
	ctx context.Context, message string,
) (*models.RewriteMessageResponse, error) {
	if m.rewriteFunc != nil {
		return m.rewriteFunc(ctx, message)
	}

	return &models.RewriteMessageResponse{}, nil
}

func TestMessageHandler_Analyze(t *testing.T) {
	t.Run("success returns 200 with analysis and additional metadata", func(t *testing.T) {
		resultID := uuid.MustParse("018e1234-5678-9abc-def0-111111111111")
		mock := &mockMessageService{
			analyzeFunc: func(_ context.Context, message string) (*models.AnalyzeMessageResponse, error) {
				assert.Equal(t, "You never listen to me!", message)

				return &models.AnalyzeMessageResponse{
					Analysis:     &models.FullAnalysis{},
					LongVersion:  "long rewrite",
					ShortVersion: "short rewrite",
					Additional: models.ResponseAdditional{
						ID:         resultID,
						Cached:     true,
						Similarity: 0.97,
					},
				}, nil
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":"You never listen to me!"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp models.AnalyzeMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, resultID, resp.Additional.ID)
		assert.True(t, resp.Additional.Cached)
		assert.Equal(t, "long rewrite", resp.LongVersion)
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		handler := NewMessageHandler(&mockMessageService{})
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader([]byte("{not json")))

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing message is rejected before the service is called", func(t *testing.T) {
		mock := &mockMessageService{
			analyzeFunc: func(context.Context, string) (*models.AnalyzeMessageResponse, error) {
				t.Fatal("service must not be called for an invalid payload")

				return nil, nil
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":""}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("empty message returns 400", func(t *testing.T) {
		mock := &mockMessageService{
			analyzeFunc: func(context.Context, string) (*models.AnalyzeMessageResponse, error) {
				return nil, apperrors.NewValidationError("message", "message is required and must be non-empty")
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":"  "}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider unavailable returns 502", func(t *testing.T) {
		mock := &mockMessageService{
			analyzeFunc: func(context.Context, string) (*models.AnalyzeMessageResponse, error) {
				return nil, apperrors.NewProviderUnavailableError("", errors.New("dial tcp: timeout"))
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":"hello"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "dial tcp")
	})

	t.Run("malformed provider output returns 502", func(t *testing.T) {
		mock := &mockMessageService{
			analyzeFunc: func(context.Context, string) (*models.AnalyzeMessageResponse, error) {
				return nil, apperrors.NewMalformedResponseError("missing field empathy", nil)
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":"hello"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("unexpected error returns 500 without detail", func(t *testing.T) {
		mock := &mockMessageService{
			analyzeFunc: func(context.Context, string) (*models.AnalyzeMessageResponse, error) {
				return nil, errors.New("pq: connection refused")
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":"hello"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/analyzeMessage", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Analyze(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestMessageHandler_Rewrite(t *testing.T) {
	t.Run("success returns 200 with both versions", func(t *testing.T) {
		mock := &mockMessageService{
			rewriteFunc: func(_ context.Context, message string) (*models.RewriteMessageResponse, error) {
				assert.Equal(t, "This code is garbage", message)

				return &models.RewriteMessageResponse{
					LongVersion:  "I think this code could be improved.",
					ShortVersion: "Let's improve this code.",
					Additional:   models.ResponseAdditional{ID: uuid.New(), Similarity: 1},
				}, nil
			},
		}
		handler := NewMessageHandler(mock)
		body := []byte(`{"message":"This code is garbage"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/rewriteMessage", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Rewrite(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.RewriteMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "I think this code could be improved.", resp.LongVersion)
		assert.NotEmpty(t, resp.ShortVersion)
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		handler := NewMessageHandler(&mockMessageService{})
		req := httptest.NewRequest(http.MethodPost, "http://test/api/rewriteMessage", bytes.NewReader(nil))

		rec := httptest.NewRecorder()

		handler.Rewrite(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
