package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/empathyapp/backend/internal/api/response"
	"github.com/empathyapp/backend/internal/api/validation"
	"github.com/empathyapp/backend/internal/models"
)

// MessageService defines the interface for analysis and rewriting of messages.
type MessageService interface {
	AnalyzeMessage(ctx context.Context, message string) (*models.AnalyzeMessageResponse, error)
	RewriteMessage(ctx context.Context, message string) (*models.RewriteMessageResponse, error)
}

// MessageHandler handles HTTP requests for message analysis and rewriting.
type MessageHandler struct {
	service MessageService
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(service MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Analyze handles POST /api/analyzeMessage.
func (h *MessageHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	message, ok := decodeMessage(w, r)
	if !ok {
		return
	}

	res, err := h.service.AnalyzeMessage(r.Context(), message)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// Rewrite handles POST /api/rewriteMessage.
func (h *MessageHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	message, ok := decodeMessage(w, r)
	if !ok {
		return
	}

	res, err := h.service.RewriteMessage(r.Context(), message)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

func decodeMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.MessageRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return "", false
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return "", false
	}

	return req.Message, true
}
