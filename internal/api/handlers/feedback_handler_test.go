package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empathyapp/backend/internal/apperrors"
)

type mockFeedbackProcessor struct {
	submitFunc func(ctx context.Context, resultID uuid.UUID, liked bool) error
}

func (m *mockFeedbackProcessor) Submit(ctx context.Context, resultID uuid.UUID, liked bool) error {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, resultID, liked)
	}

	return nil
}

func TestFeedbackHandler_Submit(t *testing.T) {
	t.Run("success returns 200 with status ok", func(t *testing.T) {
		id := uuid.MustParse("018e1234-5678-9abc-def0-111111111111")
		mock := &mockFeedbackProcessor{
			submitFunc: func(_ context.Context, resultID uuid.UUID, liked bool) error {
				assert.Equal(t, id, resultID)
				assert.True(t, liked)

				return nil
			},
		}
		handler := NewFeedbackHandler(mock)
		body := []byte(`{"message_id":"018e1234-5678-9abc-def0-111111111111","liked":true}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/feedback", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()

		handler.Submit(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	})

	t.Run("missing message_id returns 400", func(t *testing.T) {
		handler := NewFeedbackHandler(&mockFeedbackProcessor{})
		body := []byte(`{"liked":true}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/feedback", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Submit(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed message_id returns 400", func(t *testing.T) {
		handler := NewFeedbackHandler(&mockFeedbackProcessor{})
		body := []byte(`{"message_id":"not-a-uuid","liked":false}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/feedback", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Submit(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown result returns 404", func(t *testing.T) {
		mock := &mockFeedbackProcessor{
			submitFunc: func(context.Context, uuid.UUID, bool) error {
				return apperrors.NewNotFoundError("analysis result", "analysis result not found")
			},
		}
		handler := NewFeedbackHandler(mock)
		body := []byte(`{"message_id":"018e1234-5678-9abc-def0-222222222222","liked":false}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/api/feedback", bytes.NewReader(body))

		rec := httptest.NewRecorder()

		handler.Submit(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		handler := NewFeedbackHandler(&mockFeedbackProcessor{})
		req := httptest.NewRequest(http.MethodPost, "http://test/api/feedback", bytes.NewReader([]byte("woops")))

		rec := httptest.NewRecorder()

		handler.Submit(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
