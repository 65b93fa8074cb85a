package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/empathyapp/backend/internal/api/response"
	"github.com/empathyapp/backend/internal/api/validation"
	"github.com/empathyapp/backend/internal/models"
)

// FeedbackProcessor defines the interface for applying like/dislike feedback.
type FeedbackProcessor interface {
	Submit(ctx context.Context, resultID uuid.UUID, liked bool) error
}

// FeedbackHandler handles HTTP requests for result feedback.
type FeedbackHandler struct {
	service FeedbackProcessor
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(service FeedbackProcessor) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Submit handles POST /api/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	resultID, err := uuid.Parse(req.MessageID)
	if err != nil {
		response.RespondBadRequest(w, "Invalid message_id")

		return
	}

	if err := h.service.Submit(r.Context(), resultID, req.Liked); err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, models.FeedbackResponse{Status: "success"})
}
